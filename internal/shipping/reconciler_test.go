package shipping

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/tournevent/dispatch/internal/store"
	"github.com/tournevent/dispatch/internal/store/memorders"
	"github.com/tournevent/dispatch/pkg/shiplogic"
)

func newTestReconciler(mockAPI *shiplogic.MockAPIClient, orders store.OrderStore) *Reconciler {
	return NewReconciler(newTestGateway(mockAPI), orders, otelzap.New(zap.NewNop()))
}

func seedShippedOrder(orders *memorders.Store) {
	order := testOrder()
	order.Status = store.StatusProcessing
	order.Shipment = &store.Shipment{
		CarrierShipmentID: "sl-abc123",
		ShortTrackingRef:  "G000000001",
		CustomTrackingRef: "ct-1",
		CarrierStatus:     "submitted",
	}
	orders.Put(order)
}

func webhookPayload(status, eventDate string) []byte {
	return []byte(fmt.Sprintf(`{
		"shipment_id": "sl-abc123",
		"custom_tracking_reference": "ct-1",
		"status": %q,
		"event_date": %q
	}`, status, eventDate))
}

func TestReconciler_ProcessWebhook_Applied(t *testing.T) {
	orders := memorders.New()
	seedShippedOrder(orders)
	rec := newTestReconciler(shiplogic.NewMockAPIClient(), orders)

	outcome := rec.ProcessWebhook(context.Background(),
		webhookPayload("collected", "2026-09-02T09:15:00.000Z"))

	assert.Equal(t, OutcomeApplied, outcome)

	saved, err := orders.FindOrderByID(context.Background(), "order-77")
	require.NoError(t, err)
	assert.Equal(t, store.StatusShipped, saved.Status)
	assert.Equal(t, "collected", saved.Shipment.CarrierStatus)
	require.NotNil(t, saved.Shipment.LastEventAt)
	assert.Equal(t, 2026, saved.Shipment.LastEventAt.Year())
}

func TestReconciler_ProcessWebhook_Idempotent(t *testing.T) {
	orders := memorders.New()
	seedShippedOrder(orders)
	rec := newTestReconciler(shiplogic.NewMockAPIClient(), orders)

	payload := webhookPayload("collected", "2026-09-02T09:15:00.000Z")

	first := rec.ProcessWebhook(context.Background(), payload)
	assert.Equal(t, OutcomeApplied, first)

	afterFirst, err := orders.FindOrderByID(context.Background(), "order-77")
	require.NoError(t, err)

	second := rec.ProcessWebhook(context.Background(), payload)
	assert.Equal(t, OutcomeNoChange, second)

	afterSecond, err := orders.FindOrderByID(context.Background(), "order-77")
	require.NoError(t, err)
	assert.Equal(t, afterFirst.Status, afterSecond.Status)
	assert.Equal(t, afterFirst.Shipment.CarrierStatus, afterSecond.Shipment.CarrierStatus)
	assert.Equal(t, afterFirst.UpdatedAt, afterSecond.UpdatedAt)
}

func TestReconciler_ProcessWebhook_UnknownOrder(t *testing.T) {
	rec := newTestReconciler(shiplogic.NewMockAPIClient(), memorders.New())

	outcome := rec.ProcessWebhook(context.Background(),
		webhookPayload("collected", "2026-09-02T09:15:00.000Z"))

	assert.Equal(t, OutcomeUnknownOrder, outcome)
	assert.True(t, outcome.Acknowledged())
}

func TestReconciler_ProcessWebhook_MalformedPayload(t *testing.T) {
	rec := newTestReconciler(shiplogic.NewMockAPIClient(), memorders.New())

	outcome := rec.ProcessWebhook(context.Background(), []byte(`{not json`))

	assert.Equal(t, OutcomeError, outcome)
	assert.False(t, outcome.Acknowledged())
}

func TestReconciler_ProcessWebhook_StaleEventDoesNotRegressStatus(t *testing.T) {
	orders := memorders.New()
	seedShippedOrder(orders)
	rec := newTestReconciler(shiplogic.NewMockAPIClient(), orders)

	outcome := rec.ProcessWebhook(context.Background(),
		webhookPayload("out-for-delivery", "2026-09-03T08:00:00.000Z"))
	require.Equal(t, OutcomeApplied, outcome)

	// An older event arriving late must not rewind the carrier status.
	outcome = rec.ProcessWebhook(context.Background(),
		webhookPayload("collected", "2026-09-02T09:15:00.000Z"))
	assert.Equal(t, OutcomeNoChange, outcome)

	saved, err := orders.FindOrderByID(context.Background(), "order-77")
	require.NoError(t, err)
	assert.Equal(t, "out-for-delivery", saved.Shipment.CarrierStatus)
	assert.Equal(t, store.StatusShipped, saved.Status)
	assert.Equal(t, "2026-09-03T08:00:00Z", saved.Shipment.LastEventAt.UTC().Format(time.RFC3339))
}

func TestReconciler_ProcessWebhook_StaleEventStillLandsDates(t *testing.T) {
	orders := memorders.New()
	seedShippedOrder(orders)
	rec := newTestReconciler(shiplogic.NewMockAPIClient(), orders)

	outcome := rec.ProcessWebhook(context.Background(),
		webhookPayload("delivered", "2026-09-04T11:00:00.000Z"))
	require.Equal(t, OutcomeApplied, outcome)

	// A late-arriving collection event carries the collected date, which
	// is still worth recording even though its status is stale.
	outcome = rec.ProcessWebhook(context.Background(), []byte(`{
		"custom_tracking_reference": "ct-1",
		"status": "collected",
		"event_date": "2026-09-02T09:15:00.000Z",
		"collected_date": "2026-09-02T09:15:00.000Z"
	}`))
	assert.Equal(t, OutcomeApplied, outcome)

	saved, err := orders.FindOrderByID(context.Background(), "order-77")
	require.NoError(t, err)
	assert.Equal(t, store.StatusDelivered, saved.Status)
	assert.Equal(t, "delivered", saved.Shipment.CarrierStatus)
	assert.NotNil(t, saved.Shipment.CollectedDate)
}

func TestReconciler_ProcessWebhook_UnmappedStatusKeepsOrderStatus(t *testing.T) {
	orders := memorders.New()
	seedShippedOrder(orders)
	rec := newTestReconciler(shiplogic.NewMockAPIClient(), orders)

	outcome := rec.ProcessWebhook(context.Background(),
		webhookPayload("on-hold", "2026-09-02T09:15:00.000Z"))

	assert.Equal(t, OutcomeApplied, outcome)

	saved, err := orders.FindOrderByID(context.Background(), "order-77")
	require.NoError(t, err)
	assert.Equal(t, "on-hold", saved.Shipment.CarrierStatus)
	assert.Equal(t, store.StatusProcessing, saved.Status)
}

func TestReconciler_GetTracking_EnrichesAndSorts(t *testing.T) {
	orders := memorders.New()
	seedShippedOrder(orders)

	mockAPI := shiplogic.NewMockAPIClient()
	mockAPI.OnGetTracking = func(ctx context.Context, ref string) (*shiplogic.TrackingResponse, error) {
		return &shiplogic.TrackingResponse{
			ShipmentID:             "sl-abc123",
			ShortTrackingReference: "G000000001",
			Status:                 "in-transit",
			CollectedDate:          "2026-09-02T09:15:00.000Z",
			Events: []shiplogic.APITrackingEvent{
				{Status: "collected", Date: "2026-09-02T09:15:00.000Z"},
				{Status: "in-transit", Message: "Linehaul departed", Source: "JHB hub", Date: "2026-09-02T21:00:00.000Z"},
			},
		}, nil
	}

	rec := newTestReconciler(mockAPI, orders)

	result, err := rec.GetTracking(context.Background(), "G000000001")

	require.NoError(t, err)
	assert.Equal(t, "in-transit", result.CarrierStatus)
	assert.Equal(t, store.StatusShipped, result.OrderStatus)

	// Newest first, and events without a message get display text.
	require.Len(t, result.Events, 2)
	assert.Equal(t, "in-transit", result.Events[0].Status)
	assert.Equal(t, "Linehaul departed", result.Events[0].Message)
	assert.Equal(t, "collected", result.Events[1].Status)
	assert.Equal(t, "Parcel collected", result.Events[1].Message)

	assert.Nil(t, result.ProofOfDelivery)

	// The lookup also reconciles the stored order.
	saved, err := orders.FindOrderByID(context.Background(), "order-77")
	require.NoError(t, err)
	assert.Equal(t, store.StatusShipped, saved.Status)
	assert.Equal(t, "in-transit", saved.Shipment.CarrierStatus)
	assert.NotNil(t, saved.Shipment.CollectedDate)
}

func TestReconciler_GetTracking_ProofOfDeliveryFromEventData(t *testing.T) {
	mockAPI := shiplogic.NewMockAPIClient()
	mockAPI.OnGetTracking = func(ctx context.Context, ref string) (*shiplogic.TrackingResponse, error) {
		return &shiplogic.TrackingResponse{
			ShipmentID:    "sl-abc123",
			Status:        "delivered",
			DeliveredDate: "2026-09-04T11:00:00.000Z",
			Events: []shiplogic.APITrackingEvent{
				{Status: "out-for-delivery", Date: "2026-09-04T07:30:00.000Z"},
				{
					Status: "delivered",
					Date:   "2026-09-04T11:00:00.000Z",
					Data: &shiplogic.APIEventData{
						Message:   "Signed by recipient",
						Recipient: "J. Buyer",
						Images:    []string{"https://cdn.example.com/pod/1.jpg"},
					},
				},
			},
		}, nil
	}

	rec := newTestReconciler(mockAPI, memorders.New())

	result, err := rec.GetTracking(context.Background(), "G000000001")

	require.NoError(t, err)
	require.NotNil(t, result.ProofOfDelivery)
	assert.Equal(t, "Signed by recipient", result.ProofOfDelivery.Method)
	assert.Equal(t, "J. Buyer", result.ProofOfDelivery.Recipient)
	assert.Len(t, result.ProofOfDelivery.ImageURLs, 1)
	require.NotNil(t, result.ProofOfDelivery.DeliveredAt)
}

func TestReconciler_GetTracking_ProofOfDeliverySynthesized(t *testing.T) {
	mockAPI := shiplogic.NewMockAPIClient()
	mockAPI.OnGetTracking = func(ctx context.Context, ref string) (*shiplogic.TrackingResponse, error) {
		return &shiplogic.TrackingResponse{
			ShipmentID:    "sl-abc123",
			Status:        "delivered",
			DeliveredDate: "2026-09-04T11:00:00.000Z",
			Events: []shiplogic.APITrackingEvent{
				{Status: "delivered", Date: "2026-09-04T11:00:00.000Z"},
			},
		}, nil
	}

	rec := newTestReconciler(mockAPI, memorders.New())

	result, err := rec.GetTracking(context.Background(), "G000000001")

	require.NoError(t, err)
	require.NotNil(t, result.ProofOfDelivery)
	assert.Equal(t, "Delivered", result.ProofOfDelivery.Method)
	assert.Empty(t, result.ProofOfDelivery.ImageURLs)
	require.NotNil(t, result.ProofOfDelivery.DeliveredAt)
	assert.Equal(t, time.Date(2026, 9, 4, 11, 0, 0, 0, time.UTC), result.ProofOfDelivery.DeliveredAt.UTC())
}

func TestReconciler_GetTracking_UpstreamError(t *testing.T) {
	mockAPI := shiplogic.NewMockAPIClient()
	mockAPI.SimulateErrors = true
	rec := newTestReconciler(mockAPI, memorders.New())

	_, err := rec.GetTracking(context.Background(), "G000000001")

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, OpTracking, upstream.Op)
}

func TestWebhookOutcome_String(t *testing.T) {
	assert.Equal(t, "unknown_order", OutcomeUnknownOrder.String())
	assert.Equal(t, "applied", OutcomeApplied.String())
	assert.Equal(t, "no_change", OutcomeNoChange.String())
	assert.Equal(t, "error", OutcomeError.String())
}
