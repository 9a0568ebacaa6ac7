package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/tournevent/dispatch/internal/server"
	"github.com/tournevent/dispatch/internal/shipping"
	"github.com/tournevent/dispatch/internal/store"
	"github.com/tournevent/dispatch/internal/store/memorders"
	"github.com/tournevent/dispatch/pkg/shiplogic"
)

func newTestHandler(t *testing.T, mockAPI *shiplogic.MockAPIClient, orders *memorders.Store) http.Handler {
	t.Helper()

	logger := otelzap.New(zap.NewNop())
	gateway := shiplogic.NewWithAPIClient(shiplogic.Config{}, mockAPI, logger, nil)

	origin := shiplogic.Address{
		Type:          "business",
		StreetAddress: "12 Warehouse Rd",
		City:          "Johannesburg",
		PostalCode:    "2000",
		Country:       "ZA",
	}

	quoter := shipping.NewQuoter(gateway, origin, shipping.QuoterConfig{
		MarkupPercent:         10,
		FreeShippingThreshold: 1000,
	}, logger)

	orchestrator := shipping.NewOrchestrator(gateway, orders, shipping.OrchestratorConfig{
		CollectionAddress:   origin,
		CollectionContact:   shiplogic.Contact{Name: "Warehouse"},
		DefaultServiceLevel: "ECO",
	}, logger)

	reconciler := shipping.NewReconciler(gateway, orders, logger)

	srv := server.New(server.Config{
		Port:          8080,
		WebhookSecret: "hush",
	}, quoter, orchestrator, reconciler, logger)

	return srv.Handler()
}

func seedOrder(orders *memorders.Store) {
	orders.Put(&store.Order{
		ID:                "order-77",
		CustomerName:      "John Buyer",
		ShipStreetAddress: "8 Beach Ave",
		ShipCity:          "Cape Town",
		ShipPostalCode:    "8001",
		ShipCountry:       "ZA",
		Subtotal:          850,
		Total:             977.50,
		Status:            store.StatusPending,
	})
}

func TestServer_Health(t *testing.T) {
	handler := newTestHandler(t, shiplogic.NewMockAPIClient(), memorders.New())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestServer_Rates(t *testing.T) {
	handler := newTestHandler(t, shiplogic.NewMockAPIClient(), memorders.New())

	body := `{
		"delivery_address": {"street_address": "8 Beach Ave", "city": "Cape Town", "postal_code": "8001", "country": "ZA"},
		"parcels": [{"length_cm": 30, "width_cm": 20, "height_cm": 10, "weight_kg": 2}],
		"order_subtotal": 800
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rates", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Rates []struct {
			ServiceLevelCode string  `json:"service_level_code"`
			Rate             float64 `json:"rate"`
			Total            float64 `json:"total"`
			DeliveryEstimate string  `json:"delivery_estimate"`
		} `json:"rates"`
		FreeShippingAvailable bool    `json:"free_shipping_available"`
		AmountToFreeShipping  float64 `json:"amount_to_free_shipping"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	require.Len(t, resp.Rates, 2)
	assert.Equal(t, "ECO", resp.Rates[0].ServiceLevelCode)
	assert.Equal(t, 89.24, resp.Rates[0].Rate)
	assert.False(t, resp.FreeShippingAvailable)
	assert.Equal(t, 200.0, resp.AmountToFreeShipping)
}

func TestServer_Rates_NoParcels(t *testing.T) {
	handler := newTestHandler(t, shiplogic.NewMockAPIClient(), memorders.New())

	body := `{"delivery_address": {"street_address": "8 Beach Ave", "city": "Cape Town", "postal_code": "8001", "country": "ZA"}, "parcels": []}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rates", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Rates_CarrierDown(t *testing.T) {
	mockAPI := shiplogic.NewMockAPIClient()
	mockAPI.SimulateErrors = true
	handler := newTestHandler(t, mockAPI, memorders.New())

	body := `{
		"delivery_address": {"street_address": "8 Beach Ave", "city": "Cape Town", "postal_code": "8001", "country": "ZA"},
		"parcels": [{"length_cm": 30, "width_cm": 20, "height_cm": 10, "weight_kg": 2}]
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rates", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestServer_CreateShipment(t *testing.T) {
	orders := memorders.New()
	seedOrder(orders)
	handler := newTestHandler(t, shiplogic.NewMockAPIClient(), orders)

	body := `{
		"order_id": "order-77",
		"parcels": [{"length_cm": 30, "width_cm": 20, "height_cm": 10, "weight_kg": 2}]
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/shipments", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		OrderID          string `json:"order_id"`
		ShipmentID       string `json:"shipment_id"`
		ShortTrackingRef string `json:"short_tracking_reference"`
		LabelURL         string `json:"label_url"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "order-77", resp.OrderID)
	assert.NotEmpty(t, resp.ShipmentID)
	assert.NotEmpty(t, resp.ShortTrackingRef)
	assert.NotEmpty(t, resp.LabelURL)
}

func TestServer_CreateShipment_OrderNotFound(t *testing.T) {
	handler := newTestHandler(t, shiplogic.NewMockAPIClient(), memorders.New())

	body := `{"order_id": "missing", "parcels": [{"length_cm": 30, "width_cm": 20, "height_cm": 10, "weight_kg": 2}]}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/shipments", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CreateShipment_AlreadyShipped(t *testing.T) {
	orders := memorders.New()
	orders.Put(&store.Order{
		ID:       "order-77",
		Status:   store.StatusProcessing,
		Shipment: &store.Shipment{CarrierShipmentID: "sl-existing"},
	})
	handler := newTestHandler(t, shiplogic.NewMockAPIClient(), orders)

	body := `{"order_id": "order-77", "parcels": [{"length_cm": 30, "width_cm": 20, "height_cm": 10, "weight_kg": 2}]}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/shipments", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_Tracking(t *testing.T) {
	handler := newTestHandler(t, shiplogic.NewMockAPIClient(), memorders.New())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tracking/G000000001", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		CarrierStatus string `json:"carrier_status"`
		OrderStatus   string `json:"order_status"`
		Events        []struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"events"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "in-transit", resp.CarrierStatus)
	assert.Equal(t, "Shipped", resp.OrderStatus)
	require.Len(t, resp.Events, 2)
	assert.Equal(t, "in-transit", resp.Events[0].Status)
}

func TestServer_Label(t *testing.T) {
	handler := newTestHandler(t, shiplogic.NewMockAPIClient(), memorders.New())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/shipments/sl-abc123/label", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp["label_url"], "sl-abc123")
}

func TestServer_CancelShipment(t *testing.T) {
	handler := newTestHandler(t, shiplogic.NewMockAPIClient(), memorders.New())

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/shipments/G000000001", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]bool
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp["cancelled"])
}

func TestServer_Webhook(t *testing.T) {
	orders := memorders.New()
	orders.Put(&store.Order{
		ID:     "order-77",
		Status: store.StatusProcessing,
		Shipment: &store.Shipment{
			CarrierShipmentID: "sl-abc123",
			ShortTrackingRef:  "G000000001",
		},
	})
	handler := newTestHandler(t, shiplogic.NewMockAPIClient(), orders)

	body := `{"shipment_id": "sl-abc123", "status": "collected", "event_date": "2026-09-02T09:15:00.000Z"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shiplogic", strings.NewReader(body))
	req.Header.Set("X-Webhook-Secret", "hush")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]bool
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp["success"])

	saved, err := orders.FindOrderByID(req.Context(), "order-77")
	require.NoError(t, err)
	assert.Equal(t, store.StatusShipped, saved.Status)
}

func TestServer_Webhook_UnknownOrderStillAcknowledged(t *testing.T) {
	handler := newTestHandler(t, shiplogic.NewMockAPIClient(), memorders.New())

	body := `{"shipment_id": "sl-unknown", "status": "collected"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shiplogic", strings.NewReader(body))
	req.Header.Set("X-Webhook-Secret", "hush")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]bool
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp["success"])
}

func TestServer_Webhook_BadSecret(t *testing.T) {
	handler := newTestHandler(t, shiplogic.NewMockAPIClient(), memorders.New())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shiplogic", strings.NewReader(`{}`))
	req.Header.Set("X-Webhook-Secret", "wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_Webhook_ProcessingFailureStillReturns200(t *testing.T) {
	handler := newTestHandler(t, shiplogic.NewMockAPIClient(), memorders.New())

	// A malformed payload is a processing failure. The carrier must
	// still get a 2xx so it does not retry a payload that can never
	// parse; the body carries the failure.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shiplogic", strings.NewReader(`{not json`))
	req.Header.Set("X-Webhook-Secret", "hush")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]bool
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp["success"])
}
