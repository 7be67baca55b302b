// Package metrics holds the Prometheus collectors for checkout processing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	operations        *prometheus.CounterVec
	durations         *prometheus.HistogramVec
	processorRequests *prometheus.CounterVec
	sideEffectErrors  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_operations_total",
				Help: "Total number of checkout operations by outcome.",
			},
			[]string{"operation", "outcome"},
		),
		durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "checkout_operation_duration_seconds",
				Help:    "Duration of checkout operations in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		processorRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "processor_requests_total",
				Help: "Calls made to the payment processor by outcome.",
			},
			[]string{"call", "outcome"},
		),
		sideEffectErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_post_execution_failures_total",
				Help: "Failures of bookkeeping and receipt delivery after a payment was executed.",
			},
			[]string{"step"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.durations, m.processorRequests, m.sideEffectErrors)
	}
	return m
}

func (m *Metrics) ObserveOperation(operation, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.durations.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveProcessorCall(call, outcome string) {
	if m == nil {
		return
	}
	m.processorRequests.WithLabelValues(call, outcome).Inc()
}

func (m *Metrics) PostExecutionFailure(step string) {
	if m == nil {
		return
	}
	m.sideEffectErrors.WithLabelValues(step).Inc()
}

// Operations exposes the operation counter for assertions in tests.
func (m *Metrics) Operations() *prometheus.CounterVec { return m.operations }

// ProcessorRequests exposes the processor call counter for assertions in tests.
func (m *Metrics) ProcessorRequests() *prometheus.CounterVec { return m.processorRequests }

// PostExecutionFailures exposes the post-execution failure counter for assertions in tests.
func (m *Metrics) PostExecutionFailures() *prometheus.CounterVec { return m.sideEffectErrors }
