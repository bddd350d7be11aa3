package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiTokensIn,
		aiTokensOut,
		aiCallsLatencyMs,
		aiThrottled,
		aiSchemaViolations,
	)
}

var (
	aiTokensIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_in",
			Help: "Sum of prompt (input) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiTokensOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_out",
			Help: "Sum of completion (output) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_calls_latency_ms",
			Help:    "AI call latency distribution in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000, 30000, 60000},
		},
		[]string{"provider", "model", "success"},
	)

	aiThrottled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_calls_throttled_total",
			Help: "AI calls refused by the shared rate limiter.",
		},
		[]string{"model"},
	)

	aiSchemaViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_schema_violations_total",
			Help: "Structured results rejected by schema validation.",
		},
		[]string{"template"},
	)
)

func ObserveAICall(provider, model string, tokensIn, tokensOut, latencyMs int, success bool) {
	lbl := []string{norm(provider), norm(model)}
	aiTokensIn.WithLabelValues(lbl...).Add(float64(tokensIn))
	aiTokensOut.WithLabelValues(lbl...).Add(float64(tokensOut))
	aiCallsLatencyMs.WithLabelValues(norm(provider), norm(model), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func IncAIThrottled(model string) {
	aiThrottled.WithLabelValues(norm(model)).Inc()
}

func IncAISchemaViolation(template string) {
	aiSchemaViolations.WithLabelValues(norm(template)).Inc()
}
