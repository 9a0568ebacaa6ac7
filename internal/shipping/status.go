package shipping

import (
	"strings"

	"github.com/tournevent/dispatch/internal/store"
)

// statusBuckets maps carrier lifecycle status codes onto the store's
// order statuses. Codes absent from the table cause no status change.
// The tables are built once and only ever read, so they are safe for
// unsynchronized concurrent access.
var statusBuckets = map[string]store.OrderStatus{
	"submitted":             store.StatusProcessing,
	"collection-assigned":   store.StatusProcessing,
	"collection-unassigned": store.StatusProcessing,

	"collected":          store.StatusShipped,
	"at-hub":             store.StatusShipped,
	"in-transit":         store.StatusShipped,
	"at-destination-hub": store.StatusShipped,
	"delivery-assigned":  store.StatusShipped,
	"out-for-delivery":   store.StatusShipped,
	"manifested":         store.StatusShipped,
	"ready-for-dispatch": store.StatusShipped,

	"delivered": store.StatusDelivered,

	"cancelled":          store.StatusCancelled,
	"returned-to-sender": store.StatusCancelled,
	"undeliverable":      store.StatusCancelled,
}

// statusDescriptions provides display text for carrier status codes
// when an event carries no free-text message.
var statusDescriptions = map[string]string{
	"submitted":             "Shipment submitted to carrier",
	"collection-assigned":   "Driver assigned for collection",
	"collection-unassigned": "Collection driver unassigned",
	"collected":             "Parcel collected",
	"at-hub":                "Arrived at sorting hub",
	"in-transit":            "In transit",
	"at-destination-hub":    "Arrived at destination hub",
	"delivery-assigned":     "Driver assigned for delivery",
	"out-for-delivery":      "Out for delivery",
	"manifested":            "Manifested for dispatch",
	"ready-for-dispatch":    "Ready for dispatch",
	"delivered":             "Delivered",
	"cancelled":             "Shipment cancelled",
	"returned-to-sender":    "Returned to sender",
	"undeliverable":         "Could not be delivered",
	"collection-exception":  "Collection attempt failed",
	"on-hold":               "Shipment on hold",
}

// MapStatus returns the order status bucket for a carrier status code.
// The second return is false when the code has no mapping, meaning the
// order status must not change. Matching is exact on the carrier's
// lowercase-hyphenated codes.
func MapStatus(code string) (store.OrderStatus, bool) {
	status, ok := statusBuckets[code]
	return status, ok
}

// DescribeStatus returns display text for a carrier status code.
// Unknown codes render as the code with hyphens replaced by spaces.
func DescribeStatus(code string) string {
	if d, ok := statusDescriptions[code]; ok {
		return d
	}
	return strings.ReplaceAll(code, "-", " ")
}
