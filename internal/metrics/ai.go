package metrics

import "github.com/prometheus/client_golang/prometheus"

// AI-provider Prometheus metrics.
var (
	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "ai_requests_total",
			Help:      "Total AI provider requests",
		},
		[]string{"operation", "model", "status"}, // operation: "generate" / "embed"
	)

	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pulse",
			Name:      "ai_request_duration_seconds",
			Help:      "AI provider request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation", "model"},
	)

	AITokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "ai_tokens_total",
			Help:      "Total AI provider tokens consumed",
		},
		[]string{"operation", "model", "type"}, // type: "prompt" / "total"
	)
)

var aiMetricsRegistered bool

// RegisterAIMetrics registers AI provider metrics. Must be called once from main.
func RegisterAIMetrics() {
	if aiMetricsRegistered {
		return
	}
	prometheus.MustRegister(AIRequestsTotal)
	prometheus.MustRegister(AIRequestDuration)
	prometheus.MustRegister(AITokensTotal)
	aiMetricsRegistered = true
}
