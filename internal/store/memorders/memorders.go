// Package memorders is an in-memory OrderStore used in tests and when
// no database is configured.
package memorders

import (
	"context"
	"sync"

	"github.com/tournevent/dispatch/internal/store"
)

// Store keeps orders in a mutex-guarded map. Orders are copied on the
// way in and out so callers never share mutable state with the store.
type Store struct {
	mu     sync.RWMutex
	orders map[string]*store.Order
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		orders: make(map[string]*store.Order),
	}
}

// Put seeds an order, overwriting any existing record with the same id.
func (s *Store) Put(order *store.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = clone(order)
}

// FindOrderByID implements store.OrderStore.
func (s *Store) FindOrderByID(ctx context.Context, id string) (*store.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if o, ok := s.orders[id]; ok {
		return clone(o), nil
	}
	return nil, store.ErrNotFound
}

// FindOrderByTrackingOrShipmentID implements store.OrderStore.
func (s *Store) FindOrderByTrackingOrShipmentID(ctx context.Context, customRef, shortRef, shipmentID string) (*store.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.orders {
		sh := o.Shipment
		if sh == nil {
			continue
		}
		if (customRef != "" && sh.CustomTrackingRef == customRef) ||
			(shortRef != "" && sh.ShortTrackingRef == shortRef) ||
			(shipmentID != "" && sh.CarrierShipmentID == shipmentID) {
			return clone(o), nil
		}
	}
	return nil, store.ErrNotFound
}

// SaveOrder implements store.OrderStore.
func (s *Store) SaveOrder(ctx context.Context, order *store.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = clone(order)
	return nil
}

func clone(o *store.Order) *store.Order {
	cp := *o
	if o.Shipment != nil {
		sh := *o.Shipment
		cp.Shipment = &sh
	}
	return &cp
}

var _ store.OrderStore = (*Store)(nil)
