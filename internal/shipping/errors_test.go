package shipping_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tournevent/dispatch/internal/shipping"
	"github.com/tournevent/dispatch/pkg/shiplogic"
)

func TestUpstreamError_Error(t *testing.T) {
	err := shipping.NewUpstreamError(shipping.OpRates, errors.New("connection refused"))
	assert.Contains(t, err.Error(), "rates")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestUpstreamError_LiftsAPIError(t *testing.T) {
	cause := &shiplogic.APIError{
		StatusCode: 422,
		Message:    "invalid postal code",
		Body:       `{"message":"invalid postal code"}`,
	}

	err := shipping.NewUpstreamError(shipping.OpShipment, cause)

	assert.Equal(t, 422, err.StatusCode)
	assert.Equal(t, "invalid postal code", err.Message)
	assert.Equal(t, `{"message":"invalid postal code"}`, err.Body)
}

func TestUpstreamError_Unwrap(t *testing.T) {
	cause := errors.New("timeout")
	err := shipping.NewUpstreamError(shipping.OpTracking, cause)
	assert.True(t, errors.Is(err, cause))
}

func TestUpstreamError_Is(t *testing.T) {
	err1 := shipping.NewUpstreamError(shipping.OpRates, errors.New("a"))
	err2 := shipping.NewUpstreamError(shipping.OpRates, errors.New("b"))
	err3 := shipping.NewUpstreamError(shipping.OpCancel, errors.New("c"))

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
}
