// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the plan-agent
// service: HTTP request counters and latency, plus overlay governance
// counters. Metrics are exposed on /metrics; all operations are thread-safe
// via Prometheus's internal locking.
package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "testplan"
	httpSubsystem    = "http"
	overlaySubsystem = "overlay"
)

// Metrics holds all Prometheus metrics for the plan-agent service.
// Initialize once at startup via InitMetrics().
type Metrics struct {
	// RequestsTotal counts HTTP requests by route and status code.
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures handler latency by route.
	RequestDurationSeconds *prometheus.HistogramVec

	// EnrichmentsTotal counts overlay enrichments by outcome.
	EnrichmentsTotal *prometheus.CounterVec

	// DecisionsTotal counts governance decisions by value.
	DecisionsTotal *prometheus.CounterVec

	// RunsAppliedTotal counts run snapshots applied into overlays.
	RunsAppliedTotal prometheus.Counter
}

// DefaultMetrics is the singleton instance. Initialized by InitMetrics().
var DefaultMetrics *Metrics

// InitMetrics creates and registers all metrics. Call once at startup;
// calling twice panics on duplicate registration.
func InitMetrics() *Metrics {
	DefaultMetrics = &Metrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "requests_total",
				Help:      "Total HTTP requests by route and status code",
			},
			[]string{"route", "status"},
		),

		RequestDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "request_duration_seconds",
				Help:      "HTTP handler latency in seconds by route",
				Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 10, 30},
			},
			[]string{"route"},
		),

		EnrichmentsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: overlaySubsystem,
				Name:      "enrichments_total",
				Help:      "Total overlay enrichments by outcome",
			},
			[]string{"outcome"},
		),

		DecisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: overlaySubsystem,
				Name:      "decisions_total",
				Help:      "Total governance decisions by value",
			},
			[]string{"decision"},
		),

		RunsAppliedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: overlaySubsystem,
				Name:      "runs_applied_total",
				Help:      "Total run snapshots applied into overlays",
			},
		),
	}
	return DefaultMetrics
}

// GinMiddleware records request count and latency per route. Uses the route
// template (c.FullPath), not the raw URL, to keep label cardinality bounded.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDurationSeconds.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// RecordEnrichment counts one enrichment attempt.
func (m *Metrics) RecordEnrichment(success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.EnrichmentsTotal.WithLabelValues(outcome).Inc()
}

// RecordDecision counts one governance decision.
func (m *Metrics) RecordDecision(decision string) {
	m.DecisionsTotal.WithLabelValues(decision).Inc()
}

// RecordRunApplied counts one applied run.
func (m *Metrics) RecordRunApplied() {
	m.RunsAppliedTotal.Inc()
}
