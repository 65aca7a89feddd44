// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

/*
Package metrics provides Prometheus metrics collection and export for observability.

The package instruments the full safety pipeline with counters, gauges, and
histograms registered via promauto, exposed at the /metrics endpoint in
Prometheus text format:

	curl http://localhost:8085/metrics

# Available Metrics

Pipeline:
  - telemetry_submissions_total: submissions by entity type and outcome (counter)
  - pipeline_duration_seconds: end-to-end pass latency (histogram)
  - pattern_matches_total: fired patterns by pattern ID (counter)
  - safety_events_detected_total: events by severity (counter)

Alerting:
  - alerts_generated_total: alerts by priority (counter)
  - alerts_acknowledged_total: first-time acknowledgments (counter)
  - alert_deliveries_total: per-channel attempts by outcome (counter)
  - alert_delivery_latency_seconds: per-channel latency (histogram)
  - escalations_triggered_total: fired escalations (counter)

Engine health:
  - engine_queue_depth: queued submissions (gauge)
  - engine_queue_rejections_total: overflow rejections (counter)
  - engine_degraded: degraded-mode flag (gauge)

Plus API request metrics, WebSocket connection metrics, circuit breaker
states, compliance sink write outcomes, and broker ingest counters.

# Usage

Metrics are package-level and ready on import; helper functions wrap the
common label combinations:

	metrics.RecordTelemetrySubmission("driver", "processed")
	metrics.RecordDelivery("sms", true, latency)
	metrics.SetDegraded(false)

All metrics are safe for concurrent use.
*/
package metrics
