// Package shipping implements the store's shipping core: rate quoting
// with markup and free-shipping policy, shipment booking, and
// reconciliation of carrier lifecycle events onto the order status.
package shipping

import (
	"context"

	"github.com/tournevent/dispatch/pkg/shiplogic"
)

// Gateway is the carrier operations the shipping core consumes.
// *shiplogic.Client satisfies it.
type Gateway interface {
	// Quote returns carrier rate quotes for a shipment.
	Quote(ctx context.Context, in *shiplogic.QuoteInput) (*shiplogic.QuoteResult, error)

	// Book creates a shipment with the carrier.
	Book(ctx context.Context, in *shiplogic.BookInput) (*shiplogic.BookResult, error)

	// Track retrieves current tracking state for a tracking reference.
	Track(ctx context.Context, trackingReference string) (*shiplogic.TrackResult, error)

	// FetchLabel retrieves the label URL for a shipment.
	FetchLabel(ctx context.Context, shipmentID string) (*shiplogic.LabelResult, error)

	// Cancel cancels a shipment by tracking reference.
	Cancel(ctx context.Context, trackingReference string) (bool, error)
}
