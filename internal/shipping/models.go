package shipping

import (
	"time"

	"github.com/tournevent/dispatch/internal/store"
	"github.com/tournevent/dispatch/pkg/shiplogic"
)

// RatesRequest is a customer-facing rate request for a delivery
// address and set of parcels.
type RatesRequest struct {
	DeliveryAddress shiplogic.Address
	Parcels         []shiplogic.Parcel
	DeclaredValue   float64
}

// ShippingOption is a customer-facing shipping choice. It is produced
// fresh per rate request and never mutated after creation.
type ShippingOption struct {
	ServiceLevelID   int
	ServiceLevelCode string
	ServiceLevelName string
	Rate             float64 // marked up, excluding VAT
	VAT              float64 // marked up VAT component
	Total            float64
	DeliveryDateFrom *time.Time
	DeliveryDateTo   *time.Time
	DeliveryEstimate string // e.g. "2-4 business days"
}

// RatesResult is the quoter's response.
type RatesResult struct {
	Rates                 []ShippingOption
	FreeShippingAvailable bool
	AmountToFreeShipping  float64
}

// CreateShipmentRequest books a shipment for an existing order.
type CreateShipmentRequest struct {
	OrderID          string
	ServiceLevelCode string
	Parcels          []shiplogic.Parcel
	DeclaredValue    float64 // defaults to the order total when zero
	Instructions     string
}

// ShipmentResult is the orchestrator's response after booking.
type ShipmentResult struct {
	OrderID               string
	CarrierShipmentID     string
	ShortTrackingRef      string
	CustomTrackingRef     string
	CarrierStatus         string
	ServiceLevelCode      string
	Rate                  float64
	EstimatedCollection   *time.Time
	EstimatedDeliveryFrom *time.Time
	EstimatedDeliveryTo   *time.Time
	LabelURL              string // empty when the best-effort fetch failed
}

// TrackingEvent is a carrier-reported occurrence, enriched with a
// display message.
type TrackingEvent struct {
	Status   string
	Message  string
	Location string
	Time     time.Time
}

// ProofOfDelivery is carrier-captured evidence that a parcel was
// delivered.
type ProofOfDelivery struct {
	Method      string
	ImageURLs   []string
	PDFURLs     []string
	Recipient   string
	Lat         float64
	Lng         float64
	DeliveredAt *time.Time
}

// TrackingResult is the reconciled tracking state returned to callers.
// Events are ordered newest first.
type TrackingResult struct {
	ShipmentID            string
	ShortTrackingRef      string
	CustomTrackingRef     string
	CarrierStatus         string
	OrderStatus           store.OrderStatus // empty when the carrier status has no mapping
	CollectedDate         *time.Time
	DeliveredDate         *time.Time
	EstimatedDeliveryFrom *time.Time
	EstimatedDeliveryTo   *time.Time
	Events                []TrackingEvent
	ProofOfDelivery       *ProofOfDelivery
}
