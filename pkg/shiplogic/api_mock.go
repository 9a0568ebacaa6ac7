package shiplogic

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnGetRates       func(ctx context.Context, req *RatesRequest) (*RatesResponse, error)
	OnCreateShipment func(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error)
	OnGetTracking    func(ctx context.Context, trackingReference string) (*TrackingResponse, error)
	OnGetLabel       func(ctx context.Context, shipmentID string) (*LabelResponse, error)
	OnCancelShipment func(ctx context.Context, trackingReference string) (*CancelResponse, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// GetRates returns mock shipping rates.
func (m *MockAPIClient) GetRates(ctx context.Context, req *RatesRequest) (*RatesResponse, error) {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}

	if m.SimulateErrors {
		return nil, &APIError{StatusCode: 500, Message: "Simulated API error", Body: `{"message":"Simulated API error"}`}
	}

	if m.OnGetRates != nil {
		return m.OnGetRates(ctx, req)
	}

	from := time.Now().AddDate(0, 0, 2).Format(TimeFormat)
	to := time.Now().AddDate(0, 0, 4).Format(TimeFormat)
	nextDay := time.Now().AddDate(0, 0, 1).Format(TimeFormat)

	return &RatesResponse{
		Rates: []APIRate{
			{
				Rate:             93.30,
				RateExcludingVAT: 81.13,
				ServiceLevel: APIServiceLevel{
					ID:               2,
					Code:             "ECO",
					Name:             "Economy",
					DeliveryDateFrom: from,
					DeliveryDateTo:   to,
				},
			},
			{
				Rate:             149.50,
				RateExcludingVAT: 130.00,
				ServiceLevel: APIServiceLevel{
					ID:               5,
					Code:             "ONP",
					Name:             "Overnight",
					DeliveryDateFrom: nextDay,
					DeliveryDateTo:   nextDay,
				},
			},
		},
	}, nil
}

// CreateShipment books a mock shipment.
func (m *MockAPIClient) CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error) {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}

	if m.SimulateErrors {
		return nil, &APIError{StatusCode: 500, Message: "Simulated API error", Body: `{"message":"Simulated API error"}`}
	}

	if m.OnCreateShipment != nil {
		return m.OnCreateShipment(ctx, req)
	}

	shipmentID := "sl-" + uuid.New().String()[:8]
	shortRef := fmt.Sprintf("G%09d", time.Now().UnixNano()%1000000000)

	return &ShipmentResponse{
		ID:                      shipmentID,
		ShortTrackingReference:  shortRef,
		CustomTrackingReference: req.CustomTrackingReference,
		Status:                  "submitted",
		Rate:                    93.30,
		ServiceLevelCode:        req.ServiceLevelCode,
		EstimatedCollectionDate: time.Now().AddDate(0, 0, 1).Format(TimeFormat),
		EstimatedDeliveryFrom:   time.Now().AddDate(0, 0, 2).Format(TimeFormat),
		EstimatedDeliveryTo:     time.Now().AddDate(0, 0, 4).Format(TimeFormat),
	}, nil
}

// GetTracking retrieves mock tracking information.
func (m *MockAPIClient) GetTracking(ctx context.Context, trackingReference string) (*TrackingResponse, error) {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}

	if m.SimulateErrors {
		return nil, &APIError{StatusCode: 500, Message: "Simulated API error", Body: `{"message":"Simulated API error"}`}
	}

	if m.OnGetTracking != nil {
		return m.OnGetTracking(ctx, trackingReference)
	}

	now := time.Now()
	return &TrackingResponse{
		ShipmentID:             "sl-" + uuid.New().String()[:8],
		ShortTrackingReference: trackingReference,
		Status:                 "in-transit",
		CollectedDate:          now.Add(-24 * time.Hour).Format(TimeFormat),
		EstimatedDeliveryTo:    now.AddDate(0, 0, 2).Format(TimeFormat),
		Events: []APITrackingEvent{
			{
				Status: "collected",
				Source: "JHB hub",
				Date:   now.Add(-24 * time.Hour).Format(TimeFormat),
			},
			{
				Status:  "in-transit",
				Message: "Linehaul departed",
				Source:  "JHB hub",
				Date:    now.Add(-12 * time.Hour).Format(TimeFormat),
			},
		},
	}, nil
}

// GetLabel retrieves a mock shipping label URL.
func (m *MockAPIClient) GetLabel(ctx context.Context, shipmentID string) (*LabelResponse, error) {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}

	if m.SimulateErrors {
		return nil, &APIError{StatusCode: 500, Message: "Simulated API error", Body: `{"message":"Simulated API error"}`}
	}

	if m.OnGetLabel != nil {
		return m.OnGetLabel(ctx, shipmentID)
	}

	return &LabelResponse{
		URL: fmt.Sprintf("https://api.shiplogic.com/shipments/%s/label.pdf", shipmentID),
	}, nil
}

// CancelShipment cancels a mock shipment.
func (m *MockAPIClient) CancelShipment(ctx context.Context, trackingReference string) (*CancelResponse, error) {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}

	if m.SimulateErrors {
		return nil, &APIError{StatusCode: 500, Message: "Simulated API error", Body: `{"message":"Simulated API error"}`}
	}

	if m.OnCancelShipment != nil {
		return m.OnCancelShipment(ctx, trackingReference)
	}

	return &CancelResponse{Success: true, Status: "cancelled"}, nil
}

var _ APIClient = (*MockAPIClient)(nil)
