package traversal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// dispatchTotal counts traversal runs by the algorithm the density dispatch
// selected. Labels: algorithm (bmssp, dijkstra).
var dispatchTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "agrama",
		Subsystem: "traversal",
		Name:      "dispatch_total",
		Help:      "Traversal runs by selected algorithm",
	},
	[]string{"algorithm"},
)
