package telemetry

import "github.com/prometheus/client_golang/prometheus"

func init() {
	prometheus.MustRegister(prefetchDuration)
	prometheus.MustRegister(evictDuration)
	prometheus.MustRegister(prefetchBytes)
	prometheus.MustRegister(inFlightWindow)
	prometheus.MustRegister(degradedTotal)
}

var prefetchDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "weightprefetch_prefetch_duration_seconds",
		Help:    "Duration of per-layer prefetches",
		Buckets: prometheus.DefBuckets,
	},
)

var evictDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "weightprefetch_evict_duration_seconds",
		Help:    "Duration of per-layer evictions",
		Buckets: prometheus.DefBuckets,
	},
)

var prefetchBytes = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "weightprefetch_prefetch_bytes_total",
		Help: "Cumulative bytes populated by prefetch_range",
	},
)

var inFlightWindow = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "weightprefetch_in_flight_window",
		Help: "Current number of dynamic layers resident in the scheduler's window",
	},
)

var degradedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "weightprefetch_degraded_total",
		Help: "Count of non-fatal mapping/advise failures by operation",
	},
	[]string{"op"},
)
