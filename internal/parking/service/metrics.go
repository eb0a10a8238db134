package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	operations    *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	conflicts     *prometheus.CounterVec
	compensations *prometheus.CounterVec
	publishErrors prometheus.Counter
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parkway",
			Subsystem: "parking",
			Name:      "operations_total",
			Help:      "Park and Leave calls by outcome.",
		}, []string{"operation", "outcome"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "parkway",
			Subsystem: "parking",
			Name:      "operation_duration_seconds",
			Help:      "Park and Leave latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		conflicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parkway",
			Subsystem: "parking",
			Name:      "conflict_retries_total",
			Help:      "Optimistic conflicts retried per collaborator step.",
		}, []string{"step"}),
		compensations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parkway",
			Subsystem: "parking",
			Name:      "compensations_total",
			Help:      "Compensating actions by step and result.",
		}, []string{"step", "result"}),
		publishErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: "parkway",
			Subsystem: "parking",
			Name:      "payment_publish_failures_total",
			Help:      "Payments that could not be handed to the sink.",
		}),
	}
}
