// Package store defines the order persistence contract the shipping
// core depends on. The shipping code only ever touches orders through
// the OrderStore interface; pgorders and memorders provide the adapters.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the requested order does not exist.
var ErrNotFound = errors.New("order not found")

// OrderStatus is the store's own order lifecycle state.
type OrderStatus string

const (
	StatusPending    OrderStatus = "Pending"
	StatusProcessing OrderStatus = "Processing"
	StatusShipped    OrderStatus = "Shipped"
	StatusDelivered  OrderStatus = "Delivered"
	StatusCancelled  OrderStatus = "Cancelled"
)

// Shipment holds the carrier-side state of an order's shipment.
// There is at most one per order, created while the order is still
// in a pre-shipped state.
type Shipment struct {
	CarrierShipmentID string
	ShortTrackingRef  string
	CustomTrackingRef string
	CarrierStatus     string
	Rate              float64
	ServiceLevelCode  string

	EstimatedCollection   *time.Time
	EstimatedDeliveryFrom *time.Time
	EstimatedDeliveryTo   *time.Time
	CollectedDate         *time.Time
	DeliveredDate         *time.Time

	LabelURL string

	// LastEventAt is the timestamp of the latest carrier event applied
	// to this shipment. Used to reject stale out-of-order notifications.
	LastEventAt *time.Time
}

// Order is the slice of the store's order record the shipping core
// reads and mutates. Shipping address fields are the checkout snapshot;
// blank recipient fields fall back to the customer fields.
type Order struct {
	ID string

	CustomerName  string
	CustomerPhone string
	CustomerEmail string

	RecipientName  string
	RecipientPhone string
	RecipientEmail string

	ShipCompany       string
	ShipStreetAddress string
	ShipLocalArea     string
	ShipCity          string
	ShipZone          string
	ShipPostalCode    string
	ShipCountry       string

	Subtotal float64
	Total    float64

	Status   OrderStatus
	Shipment *Shipment

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderStore is the persistence collaborator contract.
// Implementations must make SaveOrder atomic per call.
type OrderStore interface {
	// FindOrderByID returns the order with the given id,
	// or ErrNotFound.
	FindOrderByID(ctx context.Context, id string) (*Order, error)

	// FindOrderByTrackingOrShipmentID locates an order whose shipment
	// matches any of the given references. The carrier reports
	// references inconsistently across endpoints, so the match is a
	// single three-way disjunction; blank arguments never match.
	FindOrderByTrackingOrShipmentID(ctx context.Context, customRef, shortRef, shipmentID string) (*Order, error)

	// SaveOrder persists the full order record atomically.
	SaveOrder(ctx context.Context, order *Order) error
}
