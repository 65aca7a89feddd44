// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

// Package api provides the HTTP surface over the safety engine: telemetry
// submission, event and alert queries, pattern management, compliance
// reporting, and the websocket upgrade endpoint.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig holds the surface-level HTTP settings.
type RouterConfig struct {
	CORSOrigins     []string
	RateLimitReqs   int
	RateLimitWindow time.Duration
}

// NewRouter assembles the chi router. Health and /metrics sit outside the
// rate-limited API group so probes are never throttled away.
func NewRouter(handler *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(requestID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsHandler(cfg.CORSOrigins))

	r.Get("/health", handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimit(cfg.RateLimitReqs, cfg.RateLimitWindow))
		r.Use(prometheusMetrics)

		r.Post("/telemetry", handler.SubmitTelemetry)

		r.Get("/events/active", handler.ActiveEvents)

		r.Get("/alerts/active", handler.ActiveAlerts)
		r.Post("/alerts/{id}/acknowledge", handler.AcknowledgeAlert)

		r.Get("/patterns", handler.ListPatterns)
		r.Post("/patterns", handler.AddPattern)
		r.Put("/patterns/{id}", handler.UpdatePattern)

		r.Get("/compliance/report", handler.ComplianceReport)

		r.Get("/monitoring/metrics", handler.MonitoringMetrics)
		r.Post("/monitoring/metrics/reset", handler.ResetMonitoringMetrics)

		r.Get("/ws", handler.WebSocket)
	})

	return r
}
