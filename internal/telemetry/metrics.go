package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	WebhookOutcomes *prometheus.CounterVec
	CarrierErrors   *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// NewMetrics returns the process-wide Prometheus metrics, registering
// them on first use. Registration happens once no matter how many
// servers are constructed.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = newMetrics()
	})
	return metrics
}

func newMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_requests_total",
				Help: "Total number of requests by operation and status",
			},
			[]string{"operation", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dispatch_request_duration_seconds",
				Help:    "Request duration in seconds by operation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		WebhookOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_webhook_outcomes_total",
				Help: "Carrier webhook notifications by processing outcome",
			},
			[]string{"outcome"},
		),
		CarrierErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_carrier_errors_total",
				Help: "Total carrier API errors by operation",
			},
			[]string{"operation"},
		),
	}
}

// RecordRequest records a request metric.
func (m *Metrics) RecordRequest(operation, status string, duration float64) {
	m.RequestsTotal.WithLabelValues(operation, status).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(duration)
}

// RecordWebhookOutcome records how a carrier notification was handled.
func (m *Metrics) RecordWebhookOutcome(outcome string) {
	m.WebhookOutcomes.WithLabelValues(outcome).Inc()
}

// RecordError records a carrier error metric.
func (m *Metrics) RecordError(operation string) {
	m.CarrierErrors.WithLabelValues(operation).Inc()
}
