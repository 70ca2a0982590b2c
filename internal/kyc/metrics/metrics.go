package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification lifecycle.
// All methods are safe on a nil receiver.
type Metrics struct {
	// Status changes by from, to and source
	Transitions *prometheus.CounterVec

	// Agent screening latency by outcome: "ok" or "failed"
	ScreeningLatency *prometheus.HistogramVec

	// Screening failures by category: agent taxonomy or "aggregation"
	ScreeningFailures *prometheus.CounterVec

	// Webhook deliveries by outcome
	WebhookOutcomes *prometheus.CounterVec

	// Lifecycle events dropped by a full subscriber buffer
	DroppedEvents *prometheus.CounterVec
}

// New registers the lifecycle metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kycflow_transitions_total",
			Help: "Application status transitions by origin, target and source",
		}, []string{"from", "to", "source"}),

		ScreeningLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kycflow_screening_duration_seconds",
			Help:    "Duration of agent screening calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"outcome"}),

		ScreeningFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kycflow_screening_failures_total",
			Help: "Screening failures absorbed into manual review, by category",
		}, []string{"category"}),

		WebhookOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kycflow_webhook_deliveries_total",
			Help: "Inbound webhook deliveries by outcome",
		}, []string{"outcome"}), // applied, unchanged, replayed, unauthorized, invalid, not_found, conflict, error

		DroppedEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kycflow_events_dropped_total",
			Help: "Lifecycle events dropped because a subscriber buffer was full",
		}, []string{"subscriber"}),
	}
}

func (m *Metrics) IncrementTransition(from, to, source string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to, source).Inc()
	}
}

func (m *Metrics) ObserveScreening(outcome string, d time.Duration) {
	if m != nil {
		m.ScreeningLatency.WithLabelValues(outcome).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementScreeningFailure(category string) {
	if m != nil {
		m.ScreeningFailures.WithLabelValues(category).Inc()
	}
}

func (m *Metrics) IncrementWebhook(outcome string) {
	if m != nil {
		m.WebhookOutcomes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementDropped(subscriber string) {
	if m != nil {
		m.DroppedEvents.WithLabelValues(subscriber).Inc()
	}
}
