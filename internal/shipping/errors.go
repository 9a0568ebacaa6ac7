package shipping

import (
	"errors"
	"fmt"

	"github.com/tournevent/dispatch/pkg/shiplogic"
)

// Operation identifies which carrier-facing operation failed.
type Operation string

const (
	OpRates    Operation = "rates"
	OpShipment Operation = "shipment"
	OpTracking Operation = "tracking"
	OpLabel    Operation = "label"
	OpCancel   Operation = "cancel"
)

// UpstreamError represents a non-success response from the carrier.
// It carries the provider's HTTP status and raw error body and is
// never retried automatically; retry policy belongs to the caller.
type UpstreamError struct {
	Op         Operation
	StatusCode int
	Body       string
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("carrier %s failed: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("carrier %s failed", e.Op)
}

// Unwrap returns the underlying cause.
func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for UpstreamError.
func (e *UpstreamError) Is(target error) bool {
	t, ok := target.(*UpstreamError)
	if !ok {
		return false
	}
	return e.Op == t.Op
}

// NewUpstreamError wraps a gateway error, lifting the provider status
// code and raw body out of the carrier's APIError when present.
func NewUpstreamError(op Operation, cause error) *UpstreamError {
	e := &UpstreamError{
		Op:      op,
		Message: cause.Error(),
		Cause:   cause,
	}

	var apiErr *shiplogic.APIError
	if errors.As(cause, &apiErr) {
		e.StatusCode = apiErr.StatusCode
		e.Body = apiErr.Body
		e.Message = apiErr.Message
	}

	return e
}

// Sentinel errors for shipping preconditions.
var (
	// ErrOrderNotFound indicates the referenced order does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrAlreadyShipped indicates the order already left the
	// pre-shipped states and cannot be booked again.
	ErrAlreadyShipped = errors.New("order already shipped")

	// ErrNoParcels indicates the request contained no parcels.
	ErrNoParcels = errors.New("at least one parcel is required")

	// ErrInvalidParcel indicates a parcel has a non-positive
	// dimension or weight.
	ErrInvalidParcel = errors.New("parcel dimensions and weight must be positive")
)
