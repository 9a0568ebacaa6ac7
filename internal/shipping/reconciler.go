package shipping

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/tournevent/dispatch/internal/store"
	"github.com/tournevent/dispatch/pkg/shiplogic"
)

// WebhookOutcome classifies how a carrier notification was handled.
type WebhookOutcome int

const (
	// OutcomeUnknownOrder means no order matched the notification's
	// references. The notification is acknowledged and discarded.
	OutcomeUnknownOrder WebhookOutcome = iota

	// OutcomeApplied means the order was updated and saved.
	OutcomeApplied

	// OutcomeNoChange means the order matched but nothing differed,
	// so no save was performed.
	OutcomeNoChange

	// OutcomeError means the notification could not be processed and
	// should be redelivered.
	OutcomeError
)

// String implements fmt.Stringer.
func (o WebhookOutcome) String() string {
	switch o {
	case OutcomeUnknownOrder:
		return "unknown_order"
	case OutcomeApplied:
		return "applied"
	case OutcomeNoChange:
		return "no_change"
	case OutcomeError:
		return "error"
	}
	return "unknown"
}

// Acknowledged reports whether the notification should be acked to the
// carrier. Only processing errors warrant redelivery.
func (o WebhookOutcome) Acknowledged() bool {
	return o != OutcomeError
}

// Reconciler keeps order statuses in sync with carrier-reported
// shipment state, via webhooks (push) and tracking lookups (pull).
// Both paths converge on the same apply step, so repeated or
// interleaved notifications settle on the same final order state.
type Reconciler struct {
	gateway Gateway
	orders  store.OrderStore
	logger  *otelzap.Logger
	now     func() time.Time
}

// NewReconciler creates a status reconciler.
func NewReconciler(gateway Gateway, orders store.OrderStore, logger *otelzap.Logger) *Reconciler {
	return &Reconciler{
		gateway: gateway,
		orders:  orders,
		logger:  logger,
		now:     time.Now,
	}
}

// statusUpdate is the carrier-reported state both reconciliation paths
// reduce to before touching the order.
type statusUpdate struct {
	customRef  string
	shortRef   string
	shipmentID string

	carrierStatus string
	eventTime     *time.Time

	collectedDate       *time.Time
	deliveredDate       *time.Time
	estimatedDeliveryTo *time.Time
}

// ProcessWebhook applies a raw carrier webhook payload to the matching
// order. Malformed payloads and save failures report OutcomeError;
// everything else is acknowledged.
func (r *Reconciler) ProcessWebhook(ctx context.Context, payload []byte) WebhookOutcome {
	event, err := shiplogic.ParseWebhook(payload)
	if err != nil {
		r.logger.Error("Webhook payload rejected", zap.Error(err))
		return OutcomeError
	}

	outcome := r.apply(ctx, &statusUpdate{
		customRef:           event.CustomTrackingReference,
		shortRef:            event.ShortTrackingReference,
		shipmentID:          event.ShipmentID,
		carrierStatus:       event.Status,
		eventTime:           event.EventTime,
		collectedDate:       event.CollectedDate,
		deliveredDate:       event.DeliveredDate,
		estimatedDeliveryTo: event.EstimatedDeliveryTo,
	})

	r.logger.Info("Webhook processed",
		zap.String("shipment_id", event.ShipmentID),
		zap.String("carrier_status", event.Status),
		zap.String("outcome", outcome.String()),
	)
	return outcome
}

// GetTracking fetches the carrier's current view of a shipment and
// reconciles the matching order with it before returning. A tracking
// reference with no matching order is still a valid lookup.
func (r *Reconciler) GetTracking(ctx context.Context, trackingReference string) (*TrackingResult, error) {
	track, err := r.gateway.Track(ctx, trackingReference)
	if err != nil {
		return nil, NewUpstreamError(OpTracking, err)
	}

	events := make([]TrackingEvent, len(track.Events))
	for i, e := range track.Events {
		message := e.Message
		if message == "" {
			message = DescribeStatus(e.Status)
		}
		events[i] = TrackingEvent{
			Status:   e.Status,
			Message:  message,
			Location: e.Location,
			Time:     e.Time,
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time.After(events[j].Time)
	})

	result := &TrackingResult{
		ShipmentID:            track.ShipmentID,
		ShortTrackingRef:      track.ShortTrackingReference,
		CustomTrackingRef:     track.CustomTrackingReference,
		CarrierStatus:         track.Status,
		CollectedDate:         track.CollectedDate,
		DeliveredDate:         track.DeliveredDate,
		EstimatedDeliveryFrom: track.EstimatedDeliveryFrom,
		EstimatedDeliveryTo:   track.EstimatedDeliveryTo,
		Events:                events,
		ProofOfDelivery:       proofOfDelivery(track),
	}
	if mapped, ok := MapStatus(track.Status); ok {
		result.OrderStatus = mapped
	}

	outcome := r.apply(ctx, &statusUpdate{
		customRef:           track.CustomTrackingReference,
		shortRef:            track.ShortTrackingReference,
		shipmentID:          track.ShipmentID,
		carrierStatus:       track.Status,
		eventTime:           latestEventTime(track.Events),
		collectedDate:       track.CollectedDate,
		deliveredDate:       track.DeliveredDate,
		estimatedDeliveryTo: track.EstimatedDeliveryTo,
	})
	if outcome == OutcomeError {
		r.logger.Warn("Order reconciliation from tracking lookup failed",
			zap.String("tracking_reference", trackingReference),
		)
	}

	return result, nil
}

// apply folds a carrier status update into the matching order and saves
// it once when anything changed. Out-of-order notifications never
// regress the mapped status: an event older than the last one applied
// is skipped for status purposes, though side-channel dates still land.
func (r *Reconciler) apply(ctx context.Context, u *statusUpdate) WebhookOutcome {
	order, err := r.orders.FindOrderByTrackingOrShipmentID(ctx, u.customRef, u.shortRef, u.shipmentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return OutcomeUnknownOrder
		}
		r.logger.Error("Order lookup failed", zap.Error(err))
		return OutcomeError
	}

	if order.Shipment == nil {
		order.Shipment = &store.Shipment{}
	}
	sh := order.Shipment
	changed := false

	if setDate(&sh.CollectedDate, u.collectedDate) {
		changed = true
	}
	if setDate(&sh.DeliveredDate, u.deliveredDate) {
		changed = true
	}
	if setDate(&sh.EstimatedDeliveryTo, u.estimatedDeliveryTo) {
		changed = true
	}

	stale := u.eventTime != nil && sh.LastEventAt != nil && u.eventTime.Before(*sh.LastEventAt)
	if !stale {
		if u.carrierStatus != "" && sh.CarrierStatus != u.carrierStatus {
			sh.CarrierStatus = u.carrierStatus
			changed = true
		}
		if mapped, ok := MapStatus(u.carrierStatus); ok && order.Status != mapped {
			order.Status = mapped
			changed = true
		}
		if setDate(&sh.LastEventAt, u.eventTime) {
			changed = true
		}
	}

	if !changed {
		return OutcomeNoChange
	}

	order.UpdatedAt = r.now()
	if err := r.orders.SaveOrder(ctx, order); err != nil {
		r.logger.Error("Order save failed",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
		return OutcomeError
	}

	return OutcomeApplied
}

// setDate assigns a non-nil incoming date and reports whether the
// stored value actually changed.
func setDate(dst **time.Time, src *time.Time) bool {
	if src == nil {
		return false
	}
	if *dst != nil && (*dst).Equal(*src) {
		return false
	}
	*dst = src
	return true
}

// latestEventTime returns the most recent event timestamp, or nil when
// there are no dated events.
func latestEventTime(events []shiplogic.Event) *time.Time {
	var latest *time.Time
	for i := range events {
		t := events[i].Time
		if t.IsZero() {
			continue
		}
		if latest == nil || t.After(*latest) {
			tt := t
			latest = &tt
		}
	}
	return latest
}

// proofOfDelivery extracts delivery evidence from a tracking response.
// When the carrier reports a delivered date but no delivered event
// carries detail data, a minimal record is synthesized so callers can
// still show that delivery happened.
func proofOfDelivery(track *shiplogic.TrackResult) *ProofOfDelivery {
	if track.DeliveredDate == nil {
		return nil
	}

	for _, e := range track.Events {
		if e.Status != "delivered" || e.Data == nil {
			continue
		}
		method := e.Data.Message
		if method == "" {
			method = "Delivered"
		}
		deliveredAt := track.DeliveredDate
		if !e.Time.IsZero() {
			t := e.Time
			deliveredAt = &t
		}
		return &ProofOfDelivery{
			Method:      method,
			ImageURLs:   e.Data.Images,
			PDFURLs:     e.Data.PDFs,
			Recipient:   e.Data.Recipient,
			Lat:         e.Data.Lat,
			Lng:         e.Data.Lng,
			DeliveredAt: deliveredAt,
		}
	}

	return &ProofOfDelivery{
		Method:      "Delivered",
		DeliveredAt: track.DeliveredDate,
	}
}
