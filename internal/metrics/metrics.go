package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/safestake/registry/internal/domain"
)

// Metrics provides observability for the compliance engine. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// Operation outcomes by operation and result code ("ok" on success)
	Operations *prometheus.CounterVec

	// Eligibility decisions by status
	Decisions *prometheus.CounterVec

	// Operation latency, including the store round trip
	Latency *prometheus.HistogramVec

	// Outbox events published or failed, by event type
	OutboxPublished *prometheus.CounterVec
}

// New creates a Metrics instance registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "safestake_operations_total",
			Help: "Total compliance operations by operation and result code",
		}, []string{"operation", "result"}),

		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "safestake_eligibility_decisions_total",
			Help: "Total eligibility decisions by status",
		}, []string{"status"}),

		Latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "safestake_operation_duration_seconds",
			Help:    "Duration of compliance operations",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),

		OutboxPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "safestake_outbox_events_total",
			Help: "Outbox events handled by the relay, by event type and result",
		}, []string{"event_type", "result"}),
	}
}

// ObserveOperation records the outcome and duration of one operation.
func (m *Metrics) ObserveOperation(operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = domain.ErrorCode(err)
		if result == "" {
			result = domain.CodeInternal
		}
	}
	m.Operations.WithLabelValues(operation, result).Inc()
	m.Latency.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrementDecision records an eligibility decision.
func (m *Metrics) IncrementDecision(status domain.EligibilityStatus) {
	if m != nil {
		m.Decisions.WithLabelValues(string(status)).Inc()
	}
}

// IncrementOutbox records one relayed outbox event.
func (m *Metrics) IncrementOutbox(eventType domain.EventType, ok bool) {
	if m == nil {
		return
	}
	result := "published"
	if !ok {
		result = "failed"
	}
	m.OutboxPublished.WithLabelValues(string(eventType), result).Inc()
}
