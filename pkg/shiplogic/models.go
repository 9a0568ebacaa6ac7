package shiplogic

import (
	"time"
)

// Address represents a collection or delivery address.
type Address struct {
	Type          string // "business" or "residential"
	Company       string
	StreetAddress string
	LocalArea     string
	City          string
	Zone          string // province/state code
	PostalCode    string
	Country       string // ISO 3166-1 alpha-2
	Lat           float64
	Lng           float64
}

// Contact represents collection or delivery contact info.
type Contact struct {
	Name  string
	Phone string
	Email string
}

// Parcel represents a single parcel to be shipped.
type Parcel struct {
	Description string
	LengthCM    float64
	WidthCM     float64
	HeightCM    float64
	WeightKG    float64
}

// RateQuote is a single carrier rate for a service level.
type RateQuote struct {
	ServiceLevelID   int
	ServiceLevelCode string
	ServiceLevelName string
	Rate             float64 // VAT inclusive
	RateExVAT        float64
	DeliveryDateFrom *time.Time
	DeliveryDateTo   *time.Time
}

// QuoteInput is the request for rate quotes.
type QuoteInput struct {
	CollectionAddress Address
	DeliveryAddress   Address
	Parcels           []Parcel
	DeclaredValue     float64
}

// QuoteResult is the response from a rate quote.
type QuoteResult struct {
	Rates []RateQuote
}

// BookInput is the request for booking a shipment.
type BookInput struct {
	OrderReference          string
	CustomTrackingReference string
	ServiceLevelCode        string
	CollectionAddress       Address
	CollectionContact       Contact
	DeliveryAddress         Address
	DeliveryContact         Contact
	Parcels                 []Parcel
	DeclaredValue           float64
	Instructions            string
	CollectionAfter         time.Time
	CollectionBefore        time.Time
	DeliveryAfter           time.Time
	DeliveryBefore          time.Time
}

// BookResult is the response from booking a shipment.
type BookResult struct {
	ShipmentID              string
	ShortTrackingReference  string
	CustomTrackingReference string
	Status                  string
	ServiceLevelCode        string
	Rate                    float64
	EstimatedCollection     *time.Time
	EstimatedDeliveryFrom   *time.Time
	EstimatedDeliveryTo     *time.Time
}

// Event is a single carrier tracking event.
type Event struct {
	Status   string
	Message  string
	Location string
	Time     time.Time
	Data     *EventData
}

// EventData carries structured event payloads such as proof of delivery.
type EventData struct {
	Images    []string
	PDFs      []string
	Message   string
	Recipient string
	Lat       float64
	Lng       float64
}

// TrackResult is the parsed tracking state of a shipment.
type TrackResult struct {
	ShipmentID              string
	ShortTrackingReference  string
	CustomTrackingReference string
	Status                  string
	CollectedDate           *time.Time
	DeliveredDate           *time.Time
	EstimatedDeliveryFrom   *time.Time
	EstimatedDeliveryTo     *time.Time
	Events                  []Event
}

// LabelResult is the response from a label fetch.
type LabelResult struct {
	URL string
}

// WebhookEvent is a parsed carrier webhook notification.
type WebhookEvent struct {
	ShipmentID              string
	ShortTrackingReference  string
	CustomTrackingReference string
	Status                  string
	EventTime               *time.Time
	CollectedDate           *time.Time
	DeliveredDate           *time.Time
	EstimatedDeliveryTo     *time.Time
}
