// Package shiplogic provides integration with the store's parcel carrier API.
package shiplogic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TimeFormat is the ISO-8601 millisecond-precision format the carrier
// expects on request submission fields.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// Config holds carrier configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Sandbox bool // When true, targets the carrier's sandbox environment
	UseMock bool // When true, uses a mock API client
}

// Client is the carrier gateway. It translates internal rate, shipment
// and tracking requests into the carrier's wire format and parses its
// responses, delegating API calls to the underlying APIClient (mock or HTTP).
// It carries no business rules beyond format translation.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new carrier client.
// If cfg.UseMock is true, it uses a mock API client for testing.
// Otherwise, it uses the real HTTP API client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: 30 * time.Second,
		})
	}

	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// NewWithAPIClient creates a new carrier client with a custom API client.
// This is useful for injecting mock clients in tests.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// Quote returns carrier rates for the given collection/delivery details.
func (c *Client) Quote(ctx context.Context, in *QuoteInput) (*QuoteResult, error) {
	c.logger.Info("Getting carrier rates",
		zap.String("delivery_city", in.DeliveryAddress.City),
		zap.Int("parcel_count", len(in.Parcels)),
	)

	apiReq := &RatesRequest{
		CollectionAddress: addressToAPI(in.CollectionAddress),
		DeliveryAddress:   addressToAPI(in.DeliveryAddress),
		Parcels:           parcelsToAPI(in.Parcels),
		DeclaredValue:     in.DeclaredValue,
	}

	apiResp, err := c.apiClient.GetRates(ctx, apiReq)
	if err != nil {
		c.logger.Error("Carrier API error", zap.Error(err))
		return nil, err
	}

	return ratesResponseToResult(apiResp), nil
}

// Book creates a shipment with the carrier.
func (c *Client) Book(ctx context.Context, in *BookInput) (*BookResult, error) {
	c.logger.Info("Booking carrier shipment",
		zap.String("order_reference", in.OrderReference),
		zap.String("service_level", in.ServiceLevelCode),
	)

	apiReq := &ShipmentRequest{
		CustomerReference:           in.OrderReference,
		CustomTrackingReference:     in.CustomTrackingReference,
		ServiceLevelCode:            in.ServiceLevelCode,
		CollectionAddress:           addressToAPI(in.CollectionAddress),
		CollectionContact:           contactToAPI(in.CollectionContact),
		DeliveryAddress:             addressToAPI(in.DeliveryAddress),
		DeliveryContact:             contactToAPI(in.DeliveryContact),
		Parcels:                     parcelsToAPI(in.Parcels),
		DeclaredValue:               in.DeclaredValue,
		SpecialInstructionsDelivery: in.Instructions,
		CollectionMinDate:           formatTime(in.CollectionAfter),
		CollectionAfter:             formatTime(in.CollectionAfter),
		CollectionBefore:            formatTime(in.CollectionBefore),
		DeliveryMinDate:             formatTime(in.DeliveryAfter),
		DeliveryAfter:               formatTime(in.DeliveryAfter),
		DeliveryBefore:              formatTime(in.DeliveryBefore),
	}

	apiResp, err := c.apiClient.CreateShipment(ctx, apiReq)
	if err != nil {
		c.logger.Error("Carrier API error", zap.Error(err))
		return nil, err
	}

	return shipmentResponseToResult(apiResp), nil
}

// Track retrieves current tracking state for a tracking reference.
func (c *Client) Track(ctx context.Context, trackingReference string) (*TrackResult, error) {
	c.logger.Info("Fetching carrier tracking",
		zap.String("tracking_reference", trackingReference),
	)

	apiResp, err := c.apiClient.GetTracking(ctx, trackingReference)
	if err != nil {
		c.logger.Error("Carrier API error", zap.Error(err))
		return nil, err
	}

	return trackingResponseToResult(apiResp), nil
}

// FetchLabel retrieves the label URL for a shipment.
func (c *Client) FetchLabel(ctx context.Context, shipmentID string) (*LabelResult, error) {
	c.logger.Info("Fetching shipment label",
		zap.String("shipment_id", shipmentID),
	)

	apiResp, err := c.apiClient.GetLabel(ctx, shipmentID)
	if err != nil {
		c.logger.Error("Carrier API error", zap.Error(err))
		return nil, err
	}

	return &LabelResult{URL: apiResp.URL}, nil
}

// Cancel cancels a shipment by tracking reference.
func (c *Client) Cancel(ctx context.Context, trackingReference string) (bool, error) {
	c.logger.Info("Cancelling carrier shipment",
		zap.String("tracking_reference", trackingReference),
	)

	apiResp, err := c.apiClient.CancelShipment(ctx, trackingReference)
	if err != nil {
		c.logger.Error("Carrier API error", zap.Error(err))
		return false, err
	}

	return apiResp.Success, nil
}

// ParseWebhook decodes a carrier webhook payload into a WebhookEvent.
func ParseWebhook(payload []byte) (*WebhookEvent, error) {
	var wire WebhookPayload
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode webhook payload: %w", err)
	}

	return &WebhookEvent{
		ShipmentID:              wire.ShipmentID,
		ShortTrackingReference:  wire.ShortTrackingReference,
		CustomTrackingReference: wire.CustomTrackingReference,
		Status:                  wire.Status,
		EventTime:               parseTime(wire.EventDate),
		CollectedDate:           parseTime(wire.CollectedDate),
		DeliveredDate:           parseTime(wire.DeliveredDate),
		EstimatedDeliveryTo:     parseTime(wire.EstimatedDeliveryTo),
	}, nil
}

// ============================================================================
// Conversion helpers: internal models -> API models
// ============================================================================

func addressToAPI(a Address) APIAddress {
	return APIAddress{
		Type:          a.Type,
		Company:       a.Company,
		StreetAddress: a.StreetAddress,
		LocalArea:     a.LocalArea,
		City:          a.City,
		Zone:          a.Zone,
		Country:       a.Country,
		Code:          a.PostalCode,
		Lat:           a.Lat,
		Lng:           a.Lng,
	}
}

func contactToAPI(c Contact) APIContact {
	return APIContact{
		Name:         c.Name,
		MobileNumber: c.Phone,
		Email:        c.Email,
	}
}

func parcelsToAPI(parcels []Parcel) []APIParcel {
	result := make([]APIParcel, len(parcels))
	for i, p := range parcels {
		result[i] = APIParcel{
			ParcelDescription: p.Description,
			SubmittedLengthCM: p.LengthCM,
			SubmittedWidthCM:  p.WidthCM,
			SubmittedHeightCM: p.HeightCM,
			SubmittedWeightKG: p.WeightKG,
		}
	}
	return result
}

// ============================================================================
// Conversion helpers: API models -> internal models
// ============================================================================

func ratesResponseToResult(resp *RatesResponse) *QuoteResult {
	rates := make([]RateQuote, len(resp.Rates))
	for i, r := range resp.Rates {
		rates[i] = RateQuote{
			ServiceLevelID:   r.ServiceLevel.ID,
			ServiceLevelCode: r.ServiceLevel.Code,
			ServiceLevelName: r.ServiceLevel.Name,
			Rate:             r.Rate,
			RateExVAT:        r.RateExcludingVAT,
			DeliveryDateFrom: parseTime(r.ServiceLevel.DeliveryDateFrom),
			DeliveryDateTo:   parseTime(r.ServiceLevel.DeliveryDateTo),
		}
	}
	return &QuoteResult{Rates: rates}
}

func shipmentResponseToResult(resp *ShipmentResponse) *BookResult {
	return &BookResult{
		ShipmentID:              resp.ID,
		ShortTrackingReference:  resp.ShortTrackingReference,
		CustomTrackingReference: resp.CustomTrackingReference,
		Status:                  resp.Status,
		ServiceLevelCode:        resp.ServiceLevelCode,
		Rate:                    resp.Rate,
		EstimatedCollection:     parseTime(resp.EstimatedCollectionDate),
		EstimatedDeliveryFrom:   parseTime(resp.EstimatedDeliveryFrom),
		EstimatedDeliveryTo:     parseTime(resp.EstimatedDeliveryTo),
	}
}

func trackingResponseToResult(resp *TrackingResponse) *TrackResult {
	events := make([]Event, len(resp.Events))
	for i, e := range resp.Events {
		var when time.Time
		if t := parseTime(e.Date); t != nil {
			when = *t
		}
		events[i] = Event{
			Status:   e.Status,
			Message:  e.Message,
			Location: e.Source,
			Time:     when,
			Data:     eventDataToResult(e.Data),
		}
	}

	return &TrackResult{
		ShipmentID:              resp.ShipmentID,
		ShortTrackingReference:  resp.ShortTrackingReference,
		CustomTrackingReference: resp.CustomTrackingReference,
		Status:                  resp.Status,
		CollectedDate:           parseTime(resp.CollectedDate),
		DeliveredDate:           parseTime(resp.DeliveredDate),
		EstimatedDeliveryFrom:   parseTime(resp.EstimatedDeliveryFrom),
		EstimatedDeliveryTo:     parseTime(resp.EstimatedDeliveryTo),
		Events:                  events,
	}
}

func eventDataToResult(d *APIEventData) *EventData {
	if d == nil {
		return nil
	}
	return &EventData{
		Images:    d.Images,
		PDFs:      d.PDFs,
		Message:   d.Message,
		Recipient: d.Recipient,
		Lat:       d.Lat,
		Lng:       d.Lng,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeFormat)
}

// parseTime accepts the carrier's date strings, which vary between
// millisecond-precision ISO-8601, RFC3339 and plain dates.
func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{TimeFormat, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
