// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the gateway.
//
// Metrics cover the three layers with real failure modes: HTTP requests,
// bridged session operations (including timeouts, the main operational
// signal of a wedged platform connection), and augmentation outcomes.
// Exposed via the /metrics endpoint; all operations are thread-safe via
// Prometheus's internal locking.
package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all gateway metrics.
const metricsNamespace = "channelpulse"

// GatewayMetrics holds all Prometheus metrics for the gateway service.
// Initialize once at startup via NewGatewayMetrics().
type GatewayMetrics struct {
	// RequestsTotal counts HTTP requests by route and status code.
	RequestsTotal *prometheus.CounterVec

	// BridgeRunsTotal counts bridged session operations by operation and
	// outcome (ok, error, timeout, rejected).
	BridgeRunsTotal *prometheus.CounterVec

	// BridgeDurationSeconds measures how long callers block on the bridge.
	BridgeDurationSeconds *prometheus.HistogramVec

	// AugmentationsTotal counts augmentation attempts by outcome
	// (ok, llm_error, parse_error, prompt_error).
	AugmentationsTotal *prometheus.CounterVec
}

// NewGatewayMetrics registers and returns the gateway metric set.
func NewGatewayMetrics() *GatewayMetrics {
	return &GatewayMetrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "status"}),

		BridgeRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "session",
			Name:      "bridge_runs_total",
			Help:      "Bridged session operations by operation and outcome.",
		}, []string{"op", "outcome"}),

		BridgeDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "session",
			Name:      "bridge_duration_seconds",
			Help:      "Caller-observed latency of bridged session operations.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"op"}),

		AugmentationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "analysis",
			Name:      "augmentations_total",
			Help:      "Message batch augmentation attempts by outcome.",
		}, []string{"outcome"}),
	}
}

// ObserveBridgeRun implements the session bridge's metrics hook.
func (m *GatewayMetrics) ObserveBridgeRun(op string, outcome string, elapsed time.Duration) {
	m.BridgeRunsTotal.WithLabelValues(op, outcome).Inc()
	m.BridgeDurationSeconds.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveAugmentation implements the analysis pipeline's metrics hook.
func (m *GatewayMetrics) ObserveAugmentation(outcome string) {
	m.AugmentationsTotal.WithLabelValues(outcome).Inc()
}

// RequestCounter is a gin middleware counting requests per route template
// and status.
func (m *GatewayMetrics) RequestCounter() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
