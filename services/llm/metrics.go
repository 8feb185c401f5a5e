package llm

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "testplan",
			Subsystem: "llm",
			Name:      "generate_total",
			Help:      "Total LLM generate calls by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	generateDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "testplan",
			Subsystem: "llm",
			Name:      "generate_duration_seconds",
			Help:      "LLM generate call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"backend"},
	)
)

// MeteredClient instruments any backend with request and latency metrics.
type MeteredClient struct {
	inner   LLMClient
	backend string
}

// NewMeteredClient labels all metrics with the given backend name
// ("openai", "mock").
func NewMeteredClient(inner LLMClient, backend string) *MeteredClient {
	return &MeteredClient{inner: inner, backend: backend}
}

// Generate implements the LLMClient interface.
func (m *MeteredClient) Generate(ctx context.Context, systemPrompt, userPrompt string, params GenerationParams) (string, error) {
	start := time.Now()
	out, err := m.inner.Generate(ctx, systemPrompt, userPrompt, params)
	generateDurationSeconds.WithLabelValues(m.backend).Observe(time.Since(start).Seconds())

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	generateTotal.WithLabelValues(m.backend, outcome).Inc()
	return out, err
}
