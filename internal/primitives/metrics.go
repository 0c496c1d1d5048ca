package primitives

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// invocationsTotal counts primitive invocations. Labels: primitive,
	// outcome (ok, validation, not_found, conflict, cancelled, internal).
	invocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agrama",
			Subsystem: "primitives",
			Name:      "invocations_total",
			Help:      "Primitive invocations by name and outcome",
		},
		[]string{"primitive", "outcome"},
	)

	// invocationDuration observes handler latency per primitive.
	invocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agrama",
			Subsystem: "primitives",
			Name:      "invocation_duration_seconds",
			Help:      "Primitive handler duration",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"primitive"},
	)

	// queueDepth tracks invocations currently in flight or waiting, the
	// backpressure signal the transport reads.
	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "agrama",
			Subsystem: "primitives",
			Name:      "queue_depth",
			Help:      "Pending primitive invocations",
		},
	)
)
