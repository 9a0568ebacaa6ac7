package shipping

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/tournevent/dispatch/pkg/shiplogic"
)

// QuoterConfig holds the store's rate policy.
type QuoterConfig struct {
	MarkupPercent         float64
	FreeShippingThreshold float64 // 0 disables free shipping
}

// Quoter produces customer-facing shipping options from carrier rates,
// applying the store's markup and free-shipping policy. It is
// read-only: no order state is touched.
type Quoter struct {
	gateway Gateway
	origin  shiplogic.Address
	cfg     QuoterConfig
	logger  *otelzap.Logger
	now     func() time.Time
}

// NewQuoter creates a rate quoter using the store's configured
// collection address as the fixed origin.
func NewQuoter(gateway Gateway, origin shiplogic.Address, cfg QuoterConfig, logger *otelzap.Logger) *Quoter {
	return &Quoter{
		gateway: gateway,
		origin:  origin,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// GetRates quotes shipping options for the given delivery details and
// order subtotal.
func (q *Quoter) GetRates(ctx context.Context, req *RatesRequest, orderSubtotal float64) (*RatesResult, error) {
	if err := validateParcels(req.Parcels); err != nil {
		return nil, err
	}

	quote, err := q.gateway.Quote(ctx, &shiplogic.QuoteInput{
		CollectionAddress: q.origin,
		DeliveryAddress:   req.DeliveryAddress,
		Parcels:           req.Parcels,
		DeclaredValue:     req.DeclaredValue,
	})
	if err != nil {
		q.logger.Error("Rate quote failed", zap.Error(err))
		return nil, NewUpstreamError(OpRates, err)
	}

	now := q.now()
	options := make([]ShippingOption, len(quote.Rates))
	for i, r := range quote.Rates {
		// Rounding to cents happens here, once per quoted amount, so
		// ApplyMarkup itself stays an exact function of its inputs.
		rate := round2(ApplyMarkup(r.RateExVAT, q.cfg.MarkupPercent))
		vat := round2(ApplyMarkup(r.Rate-r.RateExVAT, q.cfg.MarkupPercent))

		options[i] = ShippingOption{
			ServiceLevelID:   r.ServiceLevelID,
			ServiceLevelCode: r.ServiceLevelCode,
			ServiceLevelName: r.ServiceLevelName,
			Rate:             rate,
			VAT:              vat,
			Total:            round2(rate + vat),
			DeliveryDateFrom: r.DeliveryDateFrom,
			DeliveryDateTo:   r.DeliveryDateTo,
			DeliveryEstimate: deliveryEstimate(now, r.DeliveryDateFrom, r.DeliveryDateTo),
		}
	}

	available, remaining := freeShipping(q.cfg.FreeShippingThreshold, orderSubtotal)

	return &RatesResult{
		Rates:                 options,
		FreeShippingAvailable: available,
		AmountToFreeShipping:  remaining,
	}, nil
}

// ApplyMarkup adds the store's percentage markup to an amount. A zero
// percent markup returns the amount unchanged, including any sub-cent
// precision; callers round when presenting the value.
func ApplyMarkup(amount, percent float64) float64 {
	if percent == 0 {
		return amount
	}
	return amount * (1 + percent/100)
}

// freeShipping computes eligibility against the configured threshold.
// A threshold of zero disables free shipping entirely.
func freeShipping(threshold, subtotal float64) (available bool, remaining float64) {
	if threshold <= 0 {
		return false, 0
	}
	if subtotal >= threshold {
		return true, 0
	}
	return false, round2(threshold - subtotal)
}

// deliveryEstimate renders a human delivery-window string from the
// carrier's estimated delivery dates. Missing bounds fall back to a
// generic window.
func deliveryEstimate(now time.Time, from, to *time.Time) string {
	if from == nil || to == nil {
		return "2-5 business days"
	}

	fromDays := daysFromNow(now, *from)
	toDays := daysFromNow(now, *to)

	if fromDays == toDays {
		if fromDays == 1 {
			return "Next business day"
		}
		return fmt.Sprintf("%d business days", fromDays)
	}
	return fmt.Sprintf("%d-%d business days", fromDays, toDays)
}

// daysFromNow returns the whole-day offset from now, floored at 1.
func daysFromNow(now, t time.Time) int {
	days := int(t.Sub(now).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

func validateParcels(parcels []shiplogic.Parcel) error {
	if len(parcels) == 0 {
		return ErrNoParcels
	}
	for _, p := range parcels {
		if p.LengthCM <= 0 || p.WidthCM <= 0 || p.HeightCM <= 0 || p.WeightKG <= 0 {
			return ErrInvalidParcel
		}
	}
	return nil
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
