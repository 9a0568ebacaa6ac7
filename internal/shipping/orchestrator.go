package shipping

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/tournevent/dispatch/internal/store"
	"github.com/tournevent/dispatch/pkg/shiplogic"
)

// OrchestratorConfig holds the store-side booking defaults.
type OrchestratorConfig struct {
	CollectionAddress   shiplogic.Address
	CollectionContact   shiplogic.Contact
	DefaultServiceLevel string
}

// Orchestrator books shipments for orders and persists the resulting
// tracking identifiers. A shipment is created at most once per order,
// while the order is still in a pre-shipped state.
type Orchestrator struct {
	gateway Gateway
	orders  store.OrderStore
	cfg     OrchestratorConfig
	logger  *otelzap.Logger
	now     func() time.Time
}

// NewOrchestrator creates a shipment orchestrator.
func NewOrchestrator(gateway Gateway, orders store.OrderStore, cfg OrchestratorConfig, logger *otelzap.Logger) *Orchestrator {
	return &Orchestrator{
		gateway: gateway,
		orders:  orders,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateShipment books a shipment for an order with the carrier and
// persists tracking references, rate and delivery estimates onto it.
// The order mutation is a single save: either the full update set
// commits or none of it does. Label retrieval is best-effort; its
// failure leaves the label URL empty without failing the booking.
func (o *Orchestrator) CreateShipment(ctx context.Context, req *CreateShipmentRequest) (*ShipmentResult, error) {
	order, err := o.orders.FindOrderByID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if shipped(order) {
		return nil, ErrAlreadyShipped
	}

	if err := validateParcels(req.Parcels); err != nil {
		return nil, err
	}

	serviceLevel := req.ServiceLevelCode
	if serviceLevel == "" {
		serviceLevel = o.cfg.DefaultServiceLevel
	}

	declaredValue := req.DeclaredValue
	if declaredValue <= 0 {
		declaredValue = order.Total
	}

	// Default collection and delivery window: next calendar day,
	// 08:00-17:00 local.
	windowFrom, windowTo := o.nextDayWindow()

	customRef := uuid.New().String()

	booking, err := o.gateway.Book(ctx, &shiplogic.BookInput{
		OrderReference:          order.ID,
		CustomTrackingReference: customRef,
		ServiceLevelCode:        serviceLevel,
		CollectionAddress:       o.cfg.CollectionAddress,
		CollectionContact:       o.cfg.CollectionContact,
		DeliveryAddress:         deliveryAddress(order),
		DeliveryContact:         deliveryContact(order),
		Parcels:                 req.Parcels,
		DeclaredValue:           declaredValue,
		Instructions:            req.Instructions,
		CollectionAfter:         windowFrom,
		CollectionBefore:        windowTo,
		DeliveryAfter:           windowFrom,
		DeliveryBefore:          windowTo,
	})
	if err != nil {
		o.logger.Error("Shipment booking failed",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
		return nil, NewUpstreamError(OpShipment, err)
	}

	labelURL := ""
	if label, err := o.gateway.FetchLabel(ctx, booking.ShipmentID); err != nil {
		o.logger.Warn("Label fetch failed, continuing without label",
			zap.String("order_id", order.ID),
			zap.String("shipment_id", booking.ShipmentID),
			zap.Error(err),
		)
	} else {
		labelURL = label.URL
	}

	order.Shipment = &store.Shipment{
		CarrierShipmentID:     booking.ShipmentID,
		ShortTrackingRef:      booking.ShortTrackingReference,
		CustomTrackingRef:     customRef,
		CarrierStatus:         booking.Status,
		Rate:                  booking.Rate,
		ServiceLevelCode:      booking.ServiceLevelCode,
		EstimatedCollection:   booking.EstimatedCollection,
		EstimatedDeliveryFrom: booking.EstimatedDeliveryFrom,
		EstimatedDeliveryTo:   booking.EstimatedDeliveryTo,
		LabelURL:              labelURL,
	}
	order.Status = store.StatusProcessing
	order.UpdatedAt = o.now()

	if err := o.orders.SaveOrder(ctx, order); err != nil {
		return nil, err
	}

	o.logger.Info("Shipment booked",
		zap.String("order_id", order.ID),
		zap.String("shipment_id", booking.ShipmentID),
		zap.String("tracking_reference", booking.ShortTrackingReference),
	)

	return &ShipmentResult{
		OrderID:               order.ID,
		CarrierShipmentID:     booking.ShipmentID,
		ShortTrackingRef:      booking.ShortTrackingReference,
		CustomTrackingRef:     customRef,
		CarrierStatus:         booking.Status,
		ServiceLevelCode:      booking.ServiceLevelCode,
		Rate:                  booking.Rate,
		EstimatedCollection:   booking.EstimatedCollection,
		EstimatedDeliveryFrom: booking.EstimatedDeliveryFrom,
		EstimatedDeliveryTo:   booking.EstimatedDeliveryTo,
		LabelURL:              labelURL,
	}, nil
}

// GetLabelURL fetches the label URL for a carrier shipment id.
func (o *Orchestrator) GetLabelURL(ctx context.Context, shipmentID string) (string, error) {
	label, err := o.gateway.FetchLabel(ctx, shipmentID)
	if err != nil {
		return "", NewUpstreamError(OpLabel, err)
	}
	return label.URL, nil
}

// CancelShipment cancels a shipment with the carrier. When an order
// matches the tracking reference it is marked cancelled as well; a
// failure to persist that is logged but does not undo the carrier-side
// cancellation.
func (o *Orchestrator) CancelShipment(ctx context.Context, trackingReference string) (bool, error) {
	ok, err := o.gateway.Cancel(ctx, trackingReference)
	if err != nil {
		return false, NewUpstreamError(OpCancel, err)
	}
	if !ok {
		return false, nil
	}

	order, err := o.orders.FindOrderByTrackingOrShipmentID(ctx, trackingReference, trackingReference, trackingReference)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			o.logger.Warn("Order lookup after cancellation failed", zap.Error(err))
		}
		return true, nil
	}

	order.Status = store.StatusCancelled
	if order.Shipment != nil {
		order.Shipment.CarrierStatus = "cancelled"
	}
	order.UpdatedAt = o.now()
	if err := o.orders.SaveOrder(ctx, order); err != nil {
		o.logger.Warn("Failed to persist cancelled order",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
	}

	return true, nil
}

// nextDayWindow returns tomorrow 08:00-17:00 in local time.
func (o *Orchestrator) nextDayWindow() (time.Time, time.Time) {
	d := o.now().AddDate(0, 0, 1)
	from := time.Date(d.Year(), d.Month(), d.Day(), 8, 0, 0, 0, d.Location())
	to := time.Date(d.Year(), d.Month(), d.Day(), 17, 0, 0, 0, d.Location())
	return from, to
}

// shipped reports whether the order has left the pre-shipped states.
func shipped(order *store.Order) bool {
	if order.Shipment != nil && order.Shipment.CarrierShipmentID != "" {
		return true
	}
	switch order.Status {
	case store.StatusShipped, store.StatusDelivered, store.StatusCancelled:
		return true
	}
	return false
}

// deliveryAddress builds the carrier delivery address from the order's
// shipping snapshot.
func deliveryAddress(order *store.Order) shiplogic.Address {
	addrType := "residential"
	if order.ShipCompany != "" {
		addrType = "business"
	}
	return shiplogic.Address{
		Type:          addrType,
		Company:       order.ShipCompany,
		StreetAddress: order.ShipStreetAddress,
		LocalArea:     order.ShipLocalArea,
		City:          order.ShipCity,
		Zone:          order.ShipZone,
		PostalCode:    order.ShipPostalCode,
		Country:       order.ShipCountry,
	}
}

// deliveryContact prefers the shipping snapshot's recipient fields and
// falls back per field to the customer's details when blank.
func deliveryContact(order *store.Order) shiplogic.Contact {
	c := shiplogic.Contact{
		Name:  order.RecipientName,
		Phone: order.RecipientPhone,
		Email: order.RecipientEmail,
	}
	if c.Name == "" {
		c.Name = order.CustomerName
	}
	if c.Phone == "" {
		c.Phone = order.CustomerPhone
	}
	if c.Email == "" {
		c.Email = order.CustomerEmail
	}
	return c
}
