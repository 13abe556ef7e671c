package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements MetricsRecorder with a counter and a latency
// histogram labelled by operation and status.
type PrometheusRecorder struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the recorder's collectors on reg. A nil reg
// uses prometheus.DefaultRegisterer.
func NewPrometheusRecorder(reg prometheus.Registerer, prefix string) (*PrometheusRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if prefix == "" {
		prefix = "rentcore"
	}
	r := &PrometheusRecorder{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_operations_total",
				Help: "Total number of engine and service operations",
			},
			[]string{"operation", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_operation_duration_seconds",
				Help:    "Duration of engine and service operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "status"},
		),
	}
	for _, c := range []prometheus.Collector{r.operations, r.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe records an operation outcome.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.operations.WithLabelValues(operation, status).Inc()
	r.duration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// MultiRecorder fans an observation out to several recorders.
type MultiRecorder []MetricsRecorder

// Observe forwards to every non-nil recorder.
func (m MultiRecorder) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	for _, r := range m {
		if r != nil {
			r.Observe(ctx, operation, success, duration)
		}
	}
}
