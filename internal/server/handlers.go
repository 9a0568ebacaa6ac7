package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tournevent/dispatch/internal/shipping"
	"github.com/tournevent/dispatch/pkg/shiplogic"
)

// maxWebhookBody caps carrier notification payload size.
const maxWebhookBody = 1 << 20

type addressDTO struct {
	Type          string  `json:"type,omitempty"`
	Company       string  `json:"company,omitempty"`
	StreetAddress string  `json:"street_address"`
	LocalArea     string  `json:"local_area,omitempty"`
	City          string  `json:"city"`
	Zone          string  `json:"zone,omitempty"`
	PostalCode    string  `json:"postal_code"`
	Country       string  `json:"country"`
	Lat           float64 `json:"lat,omitempty"`
	Lng           float64 `json:"lng,omitempty"`
}

type parcelDTO struct {
	Description string  `json:"description,omitempty"`
	LengthCM    float64 `json:"length_cm"`
	WidthCM     float64 `json:"width_cm"`
	HeightCM    float64 `json:"height_cm"`
	WeightKG    float64 `json:"weight_kg"`
}

type ratesRequestDTO struct {
	DeliveryAddress addressDTO  `json:"delivery_address"`
	Parcels         []parcelDTO `json:"parcels"`
	DeclaredValue   float64     `json:"declared_value,omitempty"`
	OrderSubtotal   float64     `json:"order_subtotal,omitempty"`
}

type shippingOptionDTO struct {
	ServiceLevelID   int        `json:"service_level_id"`
	ServiceLevelCode string     `json:"service_level_code"`
	ServiceLevelName string     `json:"service_level_name"`
	Rate             float64    `json:"rate"`
	VAT              float64    `json:"vat"`
	Total            float64    `json:"total"`
	DeliveryDateFrom *time.Time `json:"delivery_date_from,omitempty"`
	DeliveryDateTo   *time.Time `json:"delivery_date_to,omitempty"`
	DeliveryEstimate string     `json:"delivery_estimate"`
}

type ratesResponseDTO struct {
	Rates                 []shippingOptionDTO `json:"rates"`
	FreeShippingAvailable bool                `json:"free_shipping_available"`
	AmountToFreeShipping  float64             `json:"amount_to_free_shipping"`
}

type createShipmentDTO struct {
	OrderID          string      `json:"order_id"`
	ServiceLevelCode string      `json:"service_level_code,omitempty"`
	Parcels          []parcelDTO `json:"parcels"`
	DeclaredValue    float64     `json:"declared_value,omitempty"`
	Instructions     string      `json:"instructions,omitempty"`
}

type shipmentResponseDTO struct {
	OrderID               string     `json:"order_id"`
	ShipmentID            string     `json:"shipment_id"`
	ShortTrackingRef      string     `json:"short_tracking_reference"`
	CustomTrackingRef     string     `json:"custom_tracking_reference"`
	CarrierStatus         string     `json:"carrier_status"`
	ServiceLevelCode      string     `json:"service_level_code"`
	Rate                  float64    `json:"rate"`
	EstimatedCollection   *time.Time `json:"estimated_collection,omitempty"`
	EstimatedDeliveryFrom *time.Time `json:"estimated_delivery_from,omitempty"`
	EstimatedDeliveryTo   *time.Time `json:"estimated_delivery_to,omitempty"`
	LabelURL              string     `json:"label_url,omitempty"`
}

type trackingEventDTO struct {
	Status   string    `json:"status"`
	Message  string    `json:"message"`
	Location string    `json:"location,omitempty"`
	Time     time.Time `json:"time"`
}

type proofOfDeliveryDTO struct {
	Method      string     `json:"method"`
	ImageURLs   []string   `json:"image_urls,omitempty"`
	PDFURLs     []string   `json:"pdf_urls,omitempty"`
	Recipient   string     `json:"recipient,omitempty"`
	Lat         float64    `json:"lat,omitempty"`
	Lng         float64    `json:"lng,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

type trackingResponseDTO struct {
	ShipmentID            string              `json:"shipment_id"`
	ShortTrackingRef      string              `json:"short_tracking_reference"`
	CustomTrackingRef     string              `json:"custom_tracking_reference"`
	CarrierStatus         string              `json:"carrier_status"`
	OrderStatus           string              `json:"order_status,omitempty"`
	CollectedDate         *time.Time          `json:"collected_date,omitempty"`
	DeliveredDate         *time.Time          `json:"delivered_date,omitempty"`
	EstimatedDeliveryFrom *time.Time          `json:"estimated_delivery_from,omitempty"`
	EstimatedDeliveryTo   *time.Time          `json:"estimated_delivery_to,omitempty"`
	Events                []trackingEventDTO  `json:"events"`
	ProofOfDelivery       *proofOfDeliveryDTO `json:"proof_of_delivery,omitempty"`
}

type errorResponseDTO struct {
	Error string `json:"error"`
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ratesRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "rates", http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.quoter.GetRates(r.Context(), &shipping.RatesRequest{
		DeliveryAddress: addressFromDTO(req.DeliveryAddress),
		Parcels:         parcelsFromDTO(req.Parcels),
		DeclaredValue:   req.DeclaredValue,
	}, req.OrderSubtotal)
	if err != nil {
		s.writeShippingError(w, "rates", err)
		return
	}

	options := make([]shippingOptionDTO, len(result.Rates))
	for i, o := range result.Rates {
		options[i] = shippingOptionDTO{
			ServiceLevelID:   o.ServiceLevelID,
			ServiceLevelCode: o.ServiceLevelCode,
			ServiceLevelName: o.ServiceLevelName,
			Rate:             o.Rate,
			VAT:              o.VAT,
			Total:            o.Total,
			DeliveryDateFrom: o.DeliveryDateFrom,
			DeliveryDateTo:   o.DeliveryDateTo,
			DeliveryEstimate: o.DeliveryEstimate,
		}
	}

	s.metrics.RecordRequest("rates", "ok", time.Since(start).Seconds())
	s.writeJSON(w, http.StatusOK, ratesResponseDTO{
		Rates:                 options,
		FreeShippingAvailable: result.FreeShippingAvailable,
		AmountToFreeShipping:  result.AmountToFreeShipping,
	})
}

func (s *Server) handleCreateShipment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req createShipmentDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "shipment", http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.OrderID == "" {
		s.writeError(w, "shipment", http.StatusBadRequest, "order_id is required")
		return
	}

	result, err := s.orchestrator.CreateShipment(r.Context(), &shipping.CreateShipmentRequest{
		OrderID:          req.OrderID,
		ServiceLevelCode: req.ServiceLevelCode,
		Parcels:          parcelsFromDTO(req.Parcels),
		DeclaredValue:    req.DeclaredValue,
		Instructions:     req.Instructions,
	})
	if err != nil {
		s.writeShippingError(w, "shipment", err)
		return
	}

	s.metrics.RecordRequest("shipment", "ok", time.Since(start).Seconds())
	s.writeJSON(w, http.StatusCreated, shipmentResponseDTO{
		OrderID:               result.OrderID,
		ShipmentID:            result.CarrierShipmentID,
		ShortTrackingRef:      result.ShortTrackingRef,
		CustomTrackingRef:     result.CustomTrackingRef,
		CarrierStatus:         result.CarrierStatus,
		ServiceLevelCode:      result.ServiceLevelCode,
		Rate:                  result.Rate,
		EstimatedCollection:   result.EstimatedCollection,
		EstimatedDeliveryFrom: result.EstimatedDeliveryFrom,
		EstimatedDeliveryTo:   result.EstimatedDeliveryTo,
		LabelURL:              result.LabelURL,
	})
}

func (s *Server) handleLabel(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	shipmentID := r.PathValue("id")
	url, err := s.orchestrator.GetLabelURL(r.Context(), shipmentID)
	if err != nil {
		s.writeShippingError(w, "label", err)
		return
	}

	s.metrics.RecordRequest("label", "ok", time.Since(start).Seconds())
	s.writeJSON(w, http.StatusOK, map[string]string{"label_url": url})
}

func (s *Server) handleCancelShipment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	reference := r.PathValue("reference")
	ok, err := s.orchestrator.CancelShipment(r.Context(), reference)
	if err != nil {
		s.writeShippingError(w, "cancel", err)
		return
	}

	s.metrics.RecordRequest("cancel", "ok", time.Since(start).Seconds())
	s.writeJSON(w, http.StatusOK, map[string]bool{"cancelled": ok})
}

func (s *Server) handleTracking(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	reference := r.PathValue("reference")
	result, err := s.reconciler.GetTracking(r.Context(), reference)
	if err != nil {
		s.writeShippingError(w, "tracking", err)
		return
	}

	events := make([]trackingEventDTO, len(result.Events))
	for i, e := range result.Events {
		events[i] = trackingEventDTO{
			Status:   e.Status,
			Message:  e.Message,
			Location: e.Location,
			Time:     e.Time,
		}
	}

	var pod *proofOfDeliveryDTO
	if result.ProofOfDelivery != nil {
		pod = &proofOfDeliveryDTO{
			Method:      result.ProofOfDelivery.Method,
			ImageURLs:   result.ProofOfDelivery.ImageURLs,
			PDFURLs:     result.ProofOfDelivery.PDFURLs,
			Recipient:   result.ProofOfDelivery.Recipient,
			Lat:         result.ProofOfDelivery.Lat,
			Lng:         result.ProofOfDelivery.Lng,
			DeliveredAt: result.ProofOfDelivery.DeliveredAt,
		}
	}

	s.metrics.RecordRequest("tracking", "ok", time.Since(start).Seconds())
	s.writeJSON(w, http.StatusOK, trackingResponseDTO{
		ShipmentID:            result.ShipmentID,
		ShortTrackingRef:      result.ShortTrackingRef,
		CustomTrackingRef:     result.CustomTrackingRef,
		CarrierStatus:         result.CarrierStatus,
		OrderStatus:           string(result.OrderStatus),
		CollectedDate:         result.CollectedDate,
		DeliveredDate:         result.DeliveredDate,
		EstimatedDeliveryFrom: result.EstimatedDeliveryFrom,
		EstimatedDeliveryTo:   result.EstimatedDeliveryTo,
		Events:                events,
		ProofOfDelivery:       pod,
	})
}

// handleWebhook acknowledges carrier notifications. Processing failures
// are reported in the body but never as an error status: a non-2xx
// response would make the carrier redeliver, turning any processing bug
// into a retry storm.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhookSecret != "" && r.Header.Get("X-Webhook-Secret") != s.webhookSecret {
		s.writeError(w, "webhook", http.StatusUnauthorized, "invalid webhook secret")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		s.writeError(w, "webhook", http.StatusBadRequest, "failed to read body")
		return
	}

	outcome := s.reconciler.ProcessWebhook(r.Context(), payload)
	s.metrics.RecordWebhookOutcome(outcome.String())

	s.writeJSON(w, http.StatusOK, map[string]bool{"success": outcome.Acknowledged()})
}

// writeShippingError maps shipping-layer errors onto HTTP statuses.
func (s *Server) writeShippingError(w http.ResponseWriter, operation string, err error) {
	var upstream *shipping.UpstreamError
	if errors.As(err, &upstream) {
		s.metrics.RecordError(string(upstream.Op))
		s.logger.Error("Carrier request failed",
			zap.String("operation", operation),
			zap.Int("carrier_status_code", upstream.StatusCode),
			zap.Error(err),
		)
		s.writeError(w, operation, http.StatusBadGateway, upstream.Error())
		return
	}

	switch {
	case errors.Is(err, shipping.ErrOrderNotFound):
		s.writeError(w, operation, http.StatusNotFound, err.Error())
	case errors.Is(err, shipping.ErrAlreadyShipped):
		s.writeError(w, operation, http.StatusConflict, err.Error())
	case errors.Is(err, shipping.ErrNoParcels), errors.Is(err, shipping.ErrInvalidParcel):
		s.writeError(w, operation, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("Request failed",
			zap.String("operation", operation),
			zap.Error(err),
		)
		s.writeError(w, operation, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, operation string, status int, message string) {
	s.metrics.RecordRequest(operation, "error", 0)
	s.writeJSON(w, status, errorResponseDTO{Error: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func addressFromDTO(a addressDTO) shiplogic.Address {
	return shiplogic.Address{
		Type:          a.Type,
		Company:       a.Company,
		StreetAddress: a.StreetAddress,
		LocalArea:     a.LocalArea,
		City:          a.City,
		Zone:          a.Zone,
		PostalCode:    a.PostalCode,
		Country:       a.Country,
		Lat:           a.Lat,
		Lng:           a.Lng,
	}
}

func parcelsFromDTO(parcels []parcelDTO) []shiplogic.Parcel {
	result := make([]shiplogic.Parcel, len(parcels))
	for i, p := range parcels {
		result[i] = shiplogic.Parcel{
			Description: p.Description,
			LengthCM:    p.LengthCM,
			WidthCM:     p.WidthCM,
			HeightCM:    p.HeightCM,
			WeightKG:    p.WeightKG,
		}
	}
	return result
}
