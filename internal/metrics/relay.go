package metrics

import "github.com/prometheus/client_golang/prometheus"

// Relay Prometheus metrics.
var (
	RelaySubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "relay_submissions_total",
			Help:      "Total relay submissions by kind and outcome",
		},
		[]string{"kind", "outcome"}, // outcome: "completed" / "failed" / "duplicate"
	)

	RelayDedupHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "relay_dedup_hits_total",
			Help:      "Submissions short-circuited by the duplicate check",
		},
	)

	RelayFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "relay_classification_fallbacks_total",
			Help:      "Queries answered with the heuristic intent fallback",
		},
	)

	NotifierDispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "notifier_dispatches_total",
			Help:      "SOS notifier dispatches by result",
		},
		[]string{"result"}, // "delivered" / "failed" / "skipped"
	)

	IntentCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "intent_cache_total",
			Help:      "Intent classification cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var relayMetricsRegistered bool

// RegisterRelayMetrics registers relay metrics. Must be called once from main.
func RegisterRelayMetrics() {
	if relayMetricsRegistered {
		return
	}
	prometheus.MustRegister(RelaySubmissionsTotal)
	prometheus.MustRegister(RelayDedupHitsTotal)
	prometheus.MustRegister(RelayFallbacksTotal)
	prometheus.MustRegister(NotifierDispatchesTotal)
	prometheus.MustRegister(IntentCacheTotal)
	relayMetricsRegistered = true
}
