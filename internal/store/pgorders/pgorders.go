// Package pgorders is the PostgreSQL OrderStore adapter.
package pgorders

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/tournevent/dispatch/internal/store"
)

// Storage implements store.OrderStore on top of a pgx pool.
type Storage struct {
	db *pgxpool.Pool
}

// New connects to the database and verifies the connection.
func New(ctx context.Context, dsn string) (*Storage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping")
	}
	return &Storage{db: pool}, nil
}

// Close releases the underlying pool.
func (s *Storage) Close() {
	s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS orders (
  id                      TEXT PRIMARY KEY,
  customer_name           TEXT NOT NULL DEFAULT '',
  customer_phone          TEXT NOT NULL DEFAULT '',
  customer_email          TEXT NOT NULL DEFAULT '',
  recipient_name          TEXT NOT NULL DEFAULT '',
  recipient_phone         TEXT NOT NULL DEFAULT '',
  recipient_email         TEXT NOT NULL DEFAULT '',
  ship_company            TEXT NOT NULL DEFAULT '',
  ship_street_address     TEXT NOT NULL DEFAULT '',
  ship_local_area         TEXT NOT NULL DEFAULT '',
  ship_city               TEXT NOT NULL DEFAULT '',
  ship_zone               TEXT NOT NULL DEFAULT '',
  ship_postal_code        TEXT NOT NULL DEFAULT '',
  ship_country            TEXT NOT NULL DEFAULT '',
  subtotal                NUMERIC(12,2) NOT NULL DEFAULT 0,
  total                   NUMERIC(12,2) NOT NULL DEFAULT 0,
  status                  TEXT NOT NULL,
  carrier_shipment_id     TEXT,
  short_tracking_ref      TEXT,
  custom_tracking_ref     TEXT,
  carrier_status          TEXT,
  shipment_rate           NUMERIC(12,2),
  service_level_code      TEXT,
  estimated_collection    TIMESTAMPTZ,
  estimated_delivery_from TIMESTAMPTZ,
  estimated_delivery_to   TIMESTAMPTZ,
  collected_date          TIMESTAMPTZ,
  delivered_date          TIMESTAMPTZ,
  label_url               TEXT,
  last_event_at           TIMESTAMPTZ,
  created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS orders_custom_tracking_ref_idx ON orders (custom_tracking_ref);
CREATE INDEX IF NOT EXISTS orders_short_tracking_ref_idx ON orders (short_tracking_ref);
CREATE INDEX IF NOT EXISTS orders_carrier_shipment_id_idx ON orders (carrier_shipment_id);
`

// Migrate creates the orders table if it does not exist.
func (s *Storage) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return errors.Wrap(err, "apply schema")
}

const orderColumns = `
  id, customer_name, customer_phone, customer_email,
  recipient_name, recipient_phone, recipient_email,
  ship_company, ship_street_address, ship_local_area,
  ship_city, ship_zone, ship_postal_code, ship_country,
  subtotal, total, status,
  carrier_shipment_id, short_tracking_ref, custom_tracking_ref,
  carrier_status, shipment_rate, service_level_code,
  estimated_collection, estimated_delivery_from, estimated_delivery_to,
  collected_date, delivered_date, label_url, last_event_at,
  created_at, updated_at
`

// FindOrderByID implements store.OrderStore.
func (s *Storage) FindOrderByID(ctx context.Context, id string) (*store.Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// FindOrderByTrackingOrShipmentID implements store.OrderStore.
// The three-way match is a single disjunctive query so the lookup
// stays atomic and auditable; blank references never match.
func (s *Storage) FindOrderByTrackingOrShipmentID(ctx context.Context, customRef, shortRef, shipmentID string) (*store.Order, error) {
	row := s.db.QueryRow(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE ($1 <> '' AND custom_tracking_ref = $1)
   OR ($2 <> '' AND short_tracking_ref = $2)
   OR ($3 <> '' AND carrier_shipment_id = $3)
LIMIT 1
`, customRef, shortRef, shipmentID)
	return scanOrder(row)
}

// SaveOrder implements store.OrderStore. A single upsert keeps the
// whole update set atomic.
func (s *Storage) SaveOrder(ctx context.Context, o *store.Order) error {
	var (
		shipmentID, shortRef, customRef, carrierStatus, serviceLevel, labelURL *string
		rate                                                                  *float64
		estCollection, estFrom, estTo, collected, delivered, lastEventAt      *time.Time
	)
	if sh := o.Shipment; sh != nil {
		shipmentID = &sh.CarrierShipmentID
		shortRef = &sh.ShortTrackingRef
		customRef = &sh.CustomTrackingRef
		carrierStatus = &sh.CarrierStatus
		serviceLevel = &sh.ServiceLevelCode
		labelURL = &sh.LabelURL
		rate = &sh.Rate
		estCollection = sh.EstimatedCollection
		estFrom = sh.EstimatedDeliveryFrom
		estTo = sh.EstimatedDeliveryTo
		collected = sh.CollectedDate
		delivered = sh.DeliveredDate
		lastEventAt = sh.LastEventAt
	}

	now := time.Now().UTC()
	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := o.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	_, err := s.db.Exec(ctx, `
INSERT INTO orders (
  id, customer_name, customer_phone, customer_email,
  recipient_name, recipient_phone, recipient_email,
  ship_company, ship_street_address, ship_local_area,
  ship_city, ship_zone, ship_postal_code, ship_country,
  subtotal, total, status,
  carrier_shipment_id, short_tracking_ref, custom_tracking_ref,
  carrier_status, shipment_rate, service_level_code,
  estimated_collection, estimated_delivery_from, estimated_delivery_to,
  collected_date, delivered_date, label_url, last_event_at,
  created_at, updated_at
)
VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,
  $18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32
)
ON CONFLICT (id) DO UPDATE SET
  customer_name = EXCLUDED.customer_name,
  customer_phone = EXCLUDED.customer_phone,
  customer_email = EXCLUDED.customer_email,
  recipient_name = EXCLUDED.recipient_name,
  recipient_phone = EXCLUDED.recipient_phone,
  recipient_email = EXCLUDED.recipient_email,
  ship_company = EXCLUDED.ship_company,
  ship_street_address = EXCLUDED.ship_street_address,
  ship_local_area = EXCLUDED.ship_local_area,
  ship_city = EXCLUDED.ship_city,
  ship_zone = EXCLUDED.ship_zone,
  ship_postal_code = EXCLUDED.ship_postal_code,
  ship_country = EXCLUDED.ship_country,
  subtotal = EXCLUDED.subtotal,
  total = EXCLUDED.total,
  status = EXCLUDED.status,
  carrier_shipment_id = EXCLUDED.carrier_shipment_id,
  short_tracking_ref = EXCLUDED.short_tracking_ref,
  custom_tracking_ref = EXCLUDED.custom_tracking_ref,
  carrier_status = EXCLUDED.carrier_status,
  shipment_rate = EXCLUDED.shipment_rate,
  service_level_code = EXCLUDED.service_level_code,
  estimated_collection = EXCLUDED.estimated_collection,
  estimated_delivery_from = EXCLUDED.estimated_delivery_from,
  estimated_delivery_to = EXCLUDED.estimated_delivery_to,
  collected_date = EXCLUDED.collected_date,
  delivered_date = EXCLUDED.delivered_date,
  label_url = EXCLUDED.label_url,
  last_event_at = EXCLUDED.last_event_at,
  updated_at = EXCLUDED.updated_at
`,
		o.ID, o.CustomerName, o.CustomerPhone, o.CustomerEmail,
		o.RecipientName, o.RecipientPhone, o.RecipientEmail,
		o.ShipCompany, o.ShipStreetAddress, o.ShipLocalArea,
		o.ShipCity, o.ShipZone, o.ShipPostalCode, o.ShipCountry,
		o.Subtotal, o.Total, string(o.Status),
		shipmentID, shortRef, customRef,
		carrierStatus, rate, serviceLevel,
		estCollection, estFrom, estTo,
		collected, delivered, labelURL, lastEventAt,
		createdAt, updatedAt,
	)
	return errors.Wrap(err, "save order")
}

func scanOrder(row pgx.Row) (*store.Order, error) {
	var (
		o                                                                     store.Order
		status                                                                string
		shipmentID, shortRef, customRef, carrierStatus, serviceLevel, labelURL *string
		rate                                                                  *float64
		estCollection, estFrom, estTo, collected, delivered, lastEventAt      *time.Time
	)

	err := row.Scan(
		&o.ID, &o.CustomerName, &o.CustomerPhone, &o.CustomerEmail,
		&o.RecipientName, &o.RecipientPhone, &o.RecipientEmail,
		&o.ShipCompany, &o.ShipStreetAddress, &o.ShipLocalArea,
		&o.ShipCity, &o.ShipZone, &o.ShipPostalCode, &o.ShipCountry,
		&o.Subtotal, &o.Total, &status,
		&shipmentID, &shortRef, &customRef,
		&carrierStatus, &rate, &serviceLevel,
		&estCollection, &estFrom, &estTo,
		&collected, &delivered, &labelURL, &lastEventAt,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan order")
	}

	o.Status = store.OrderStatus(status)
	o.Shipment = shipmentFromColumns(
		shipmentID, shortRef, customRef, carrierStatus, serviceLevel, labelURL,
		rate,
		estCollection, estFrom, estTo, collected, delivered, lastEventAt,
	)

	return &o, nil
}

// shipmentFromColumns rebuilds the shipment from its nullable columns.
// Any populated column is enough to reconstitute the record, so dates
// applied before a booking id existed survive a reload.
func shipmentFromColumns(
	shipmentID, shortRef, customRef, carrierStatus, serviceLevel, labelURL *string,
	rate *float64,
	estCollection, estFrom, estTo, collected, delivered, lastEventAt *time.Time,
) *store.Shipment {
	sh := &store.Shipment{
		EstimatedCollection:   estCollection,
		EstimatedDeliveryFrom: estFrom,
		EstimatedDeliveryTo:   estTo,
		CollectedDate:         collected,
		DeliveredDate:         delivered,
		LastEventAt:           lastEventAt,
	}
	if shipmentID != nil {
		sh.CarrierShipmentID = *shipmentID
	}
	if shortRef != nil {
		sh.ShortTrackingRef = *shortRef
	}
	if customRef != nil {
		sh.CustomTrackingRef = *customRef
	}
	if carrierStatus != nil {
		sh.CarrierStatus = *carrierStatus
	}
	if serviceLevel != nil {
		sh.ServiceLevelCode = *serviceLevel
	}
	if labelURL != nil {
		sh.LabelURL = *labelURL
	}
	if rate != nil {
		sh.Rate = *rate
	}

	empty := sh.CarrierShipmentID == "" && sh.ShortTrackingRef == "" &&
		sh.CustomTrackingRef == "" && sh.CarrierStatus == "" &&
		sh.ServiceLevelCode == "" && sh.LabelURL == "" && rate == nil &&
		estCollection == nil && estFrom == nil && estTo == nil &&
		collected == nil && delivered == nil && lastEventAt == nil
	if empty {
		return nil
	}
	return sh
}

var _ store.OrderStore = (*Storage)(nil)
