package shiplogic

import (
	"context"
)

// APIClient defines the interface for carrier API operations.
// This abstraction allows for mock implementations during testing
// and real implementations in production.
type APIClient interface {
	// GetRates fetches shipping rates for the given details
	GetRates(ctx context.Context, req *RatesRequest) (*RatesResponse, error)

	// CreateShipment books a new shipment
	CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error)

	// GetTracking retrieves tracking state by tracking reference
	GetTracking(ctx context.Context, trackingReference string) (*TrackingResponse, error)

	// GetLabel retrieves the label URL for a shipment
	GetLabel(ctx context.Context, shipmentID string) (*LabelResponse, error)

	// CancelShipment cancels an existing shipment
	CancelShipment(ctx context.Context, trackingReference string) (*CancelResponse, error)
}

// ============================================================================
// API Request/Response Types (match the carrier REST API v2 structure)
// ============================================================================

// APIAddress is the wire form of an address.
type APIAddress struct {
	Type          string  `json:"type,omitempty"` // "business" or "residential"
	Company       string  `json:"company,omitempty"`
	StreetAddress string  `json:"street_address"`
	LocalArea     string  `json:"local_area,omitempty"`
	City          string  `json:"city"`
	Zone          string  `json:"zone,omitempty"`
	Country       string  `json:"country"`
	Code          string  `json:"code,omitempty"` // postal code
	Lat           float64 `json:"lat,omitempty"`
	Lng           float64 `json:"lng,omitempty"`
}

// APIContact is the wire form of a contact.
type APIContact struct {
	Name         string `json:"name"`
	MobileNumber string `json:"mobile_number,omitempty"`
	Email        string `json:"email,omitempty"`
}

// APIParcel is the wire form of a parcel.
type APIParcel struct {
	ParcelDescription string  `json:"parcel_description,omitempty"`
	SubmittedLengthCM float64 `json:"submitted_length_cm"`
	SubmittedWidthCM  float64 `json:"submitted_width_cm"`
	SubmittedHeightCM float64 `json:"submitted_height_cm"`
	SubmittedWeightKG float64 `json:"submitted_weight_kg"`
}

// RatesRequest represents a carrier rate quote request.
// POST /rates endpoint
type RatesRequest struct {
	CollectionAddress APIAddress  `json:"collection_address"`
	DeliveryAddress   APIAddress  `json:"delivery_address"`
	Parcels           []APIParcel `json:"parcels"`
	DeclaredValue     float64     `json:"declared_value,omitempty"`
}

// APIServiceLevel describes a service level attached to a rate.
type APIServiceLevel struct {
	ID               int    `json:"id"`
	Code             string `json:"code"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	DeliveryDateFrom string `json:"delivery_date_from,omitempty"`
	DeliveryDateTo   string `json:"delivery_date_to,omitempty"`
}

// APIRate is a single rate option.
type APIRate struct {
	Rate             float64         `json:"rate"` // VAT inclusive
	RateExcludingVAT float64         `json:"rate_excluding_vat"`
	ServiceLevel     APIServiceLevel `json:"service_level"`
}

// RatesResponse represents the carrier rate quote response.
type RatesResponse struct {
	Rates []APIRate `json:"rates"`
}

// ShipmentRequest represents a shipment booking request.
// POST /shipments endpoint
type ShipmentRequest struct {
	CustomerReference           string      `json:"customer_reference,omitempty"`
	CustomTrackingReference     string      `json:"custom_tracking_reference,omitempty"`
	ServiceLevelCode            string      `json:"service_level_code"`
	CollectionAddress           APIAddress  `json:"collection_address"`
	CollectionContact           APIContact  `json:"collection_contact"`
	DeliveryAddress             APIAddress  `json:"delivery_address"`
	DeliveryContact             APIContact  `json:"delivery_contact"`
	Parcels                     []APIParcel `json:"parcels"`
	DeclaredValue               float64     `json:"declared_value,omitempty"`
	SpecialInstructionsDelivery string      `json:"special_instructions_delivery,omitempty"`
	CollectionMinDate           string      `json:"collection_min_date,omitempty"` // ISO-8601, millisecond Z
	CollectionAfter             string      `json:"collection_after,omitempty"`
	CollectionBefore            string      `json:"collection_before,omitempty"`
	DeliveryMinDate             string      `json:"delivery_min_date,omitempty"`
	DeliveryAfter               string      `json:"delivery_after,omitempty"`
	DeliveryBefore              string      `json:"delivery_before,omitempty"`
}

// ShipmentResponse represents the shipment booking response.
type ShipmentResponse struct {
	ID                      string  `json:"id"`
	ShortTrackingReference  string  `json:"short_tracking_reference"`
	CustomTrackingReference string  `json:"custom_tracking_reference,omitempty"`
	Status                  string  `json:"status"`
	Rate                    float64 `json:"rate"`
	ServiceLevelCode        string  `json:"service_level_code"`
	EstimatedCollectionDate string  `json:"estimated_collection_date,omitempty"`
	EstimatedDeliveryFrom   string  `json:"estimated_delivery_from,omitempty"`
	EstimatedDeliveryTo     string  `json:"estimated_delivery_to,omitempty"`
}

// APITrackingEvent is a single tracking event on the wire.
type APITrackingEvent struct {
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Source  string        `json:"source,omitempty"` // hub or location
	Date    string        `json:"date"`
	Data    *APIEventData `json:"data,omitempty"`
}

// APIEventData is the structured payload some events carry,
// notably proof of delivery.
type APIEventData struct {
	Images    []string `json:"images,omitempty"`
	PDFs      []string `json:"pdfs,omitempty"`
	Message   string   `json:"message,omitempty"`
	Recipient string   `json:"recipient,omitempty"`
	Lat       float64  `json:"lat,omitempty"`
	Lng       float64  `json:"lng,omitempty"`
}

// TrackingResponse represents tracking information.
// GET /tracking?tracking_reference={ref}
type TrackingResponse struct {
	ShipmentID              string             `json:"shipment_id"`
	ShortTrackingReference  string             `json:"short_tracking_reference"`
	CustomTrackingReference string             `json:"custom_tracking_reference,omitempty"`
	Status                  string             `json:"status"`
	CollectedDate           string             `json:"collected_date,omitempty"`
	DeliveredDate           string             `json:"delivered_date,omitempty"`
	EstimatedDeliveryFrom   string             `json:"estimated_delivery_from,omitempty"`
	EstimatedDeliveryTo     string             `json:"estimated_delivery_to,omitempty"`
	Events                  []APITrackingEvent `json:"events"`
}

// LabelResponse represents the label fetch response.
// POST /shipments/label
type LabelResponse struct {
	URL string `json:"url"`
}

// CancelResponse represents the cancellation response.
// POST /shipments/cancel
type CancelResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status,omitempty"`
}

// WebhookPayload is the carrier-pushed shipment status notification.
// The carrier is not consistent about which references it includes,
// so all three identifiers are optional.
type WebhookPayload struct {
	ShipmentID              string `json:"shipment_id,omitempty"`
	ShortTrackingReference  string `json:"short_tracking_reference,omitempty"`
	CustomTrackingReference string `json:"custom_tracking_reference,omitempty"`
	Status                  string `json:"status"`
	EventDate               string `json:"event_date,omitempty"`
	CollectedDate           string `json:"collected_date,omitempty"`
	DeliveredDate           string `json:"delivered_date,omitempty"`
	EstimatedDeliveryTo     string `json:"estimated_delivery_to,omitempty"`
}

// APIError represents an error from the carrier API.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Body       string `json:"-"` // raw response body
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Body
}
