package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation is the minimal metrics surface services depend on.
type Operation interface {
	RecordOperationAttempt(ctx context.Context, operation, component string)
	RecordOperationSuccess(ctx context.Context, operation, component string)
	RecordOperationFailure(ctx context.Context, operation, component string)
	RecordOperationDuration(ctx context.Context, operation, component string, duration time.Duration)
}

// PrometheusOperation implements Operation on top of a prometheus registry.
type PrometheusOperation struct {
	attempts  *prometheus.CounterVec
	successes *prometheus.CounterVec
	failures  *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

var _ Operation = (*PrometheusOperation)(nil)

func NewPrometheusOperation(reg prometheus.Registerer, namespace string) *PrometheusOperation {
	labels := []string{"operation", "component"}
	m := &PrometheusOperation{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_attempts_total",
			Help:      "Number of operation attempts.",
		}, labels),
		successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_successes_total",
			Help:      "Number of successful operations.",
		}, labels),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_failures_total",
			Help:      "Number of failed operations.",
		}, labels),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, labels),
	}
	reg.MustRegister(m.attempts, m.successes, m.failures, m.durations)
	return m
}

func (m *PrometheusOperation) RecordOperationAttempt(_ context.Context, operation, component string) {
	m.attempts.WithLabelValues(operation, component).Inc()
}

func (m *PrometheusOperation) RecordOperationSuccess(_ context.Context, operation, component string) {
	m.successes.WithLabelValues(operation, component).Inc()
}

func (m *PrometheusOperation) RecordOperationFailure(_ context.Context, operation, component string) {
	m.failures.WithLabelValues(operation, component).Inc()
}

func (m *PrometheusOperation) RecordOperationDuration(_ context.Context, operation, component string, duration time.Duration) {
	m.durations.WithLabelValues(operation, component).Observe(duration.Seconds())
}

// NoOp discards all measurements. Used in tests.
type NoOp struct{}

var _ Operation = NoOp{}

func (NoOp) RecordOperationAttempt(context.Context, string, string)                {}
func (NoOp) RecordOperationSuccess(context.Context, string, string)                {}
func (NoOp) RecordOperationFailure(context.Context, string, string)                {}
func (NoOp) RecordOperationDuration(context.Context, string, string, time.Duration) {}
