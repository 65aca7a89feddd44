// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the safety pipeline:
// - Telemetry ingestion and validation outcomes
// - Pattern matching and event detection
// - Alert generation, delivery, and escalation
// - Engine queue depth and degradation
// - API endpoint latency and throughput
// - WebSocket broadcast connections

var (
	// Telemetry Ingestion Metrics
	TelemetrySubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_submissions_total",
			Help: "Total telemetry submissions by entity type and outcome",
		},
		[]string{"entity_type", "outcome"}, // "processed", "invalid", "rejected", "failed"
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_duration_seconds",
			Help:    "End-to-end duration of one telemetry pipeline pass",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}, // p50 target is low-hundreds of ms
		},
	)

	// Detection Metrics
	PatternMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pattern_matches_total",
			Help: "Total pattern matches by pattern ID",
		},
		[]string{"pattern_id"},
	)

	EventsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safety_events_detected_total",
			Help: "Total safety events by severity",
		},
		[]string{"severity"},
	)

	// Alert Metrics
	AlertsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_generated_total",
			Help: "Total alerts generated by priority",
		},
		[]string{"priority"},
	)

	AlertsAcknowledged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alerts_acknowledged_total",
			Help: "Total first-time alert acknowledgments",
		},
	)

	AlertDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_deliveries_total",
			Help: "Total per-channel delivery attempts by outcome",
		},
		[]string{"channel", "success"},
	)

	DeliveryLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alert_delivery_latency_seconds",
			Help:    "Per-channel delivery latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	EscalationsTriggered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "escalations_triggered_total",
			Help: "Total escalations fired for unacknowledged alerts",
		},
	)

	// Engine Metrics
	EngineQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_queue_depth",
			Help: "Current number of queued telemetry submissions",
		},
	)

	EngineQueueRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_queue_rejections_total",
			Help: "Total submissions rejected because the bounded queue was full",
		},
	)

	EngineDegraded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_degraded",
			Help: "Whether the engine is in degraded mode (0=healthy, 1=degraded)",
		},
	)

	// Compliance Metrics
	ComplianceReportsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "compliance_reports_generated_total",
			Help: "Total compliance reports produced",
		},
	)

	ComplianceSinkWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compliance_sink_writes_total",
			Help: "Total durable event writes by outcome",
		},
		[]string{"outcome"}, // "ok", "error"
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Ingest (NATS) Metrics
	IngestMessagesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_messages_consumed_total",
			Help: "Total telemetry messages consumed from the broker",
		},
	)

	IngestParseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_parse_failures_total",
			Help: "Total broker messages that failed to decode",
		},
	)
)

// RecordTelemetrySubmission records one ingestion attempt.
func RecordTelemetrySubmission(entityType, outcome string) {
	TelemetrySubmissions.WithLabelValues(entityType, outcome).Inc()
}

// RecordPipelinePass records the end-to-end duration of one pipeline pass.
func RecordPipelinePass(duration time.Duration) {
	PipelineDuration.Observe(duration.Seconds())
}

// RecordPatternMatch records one fired pattern.
func RecordPatternMatch(patternID string) {
	PatternMatches.WithLabelValues(patternID).Inc()
}

// RecordEventDetected records one detected safety event.
func RecordEventDetected(severity string) {
	EventsDetected.WithLabelValues(severity).Inc()
}

// RecordAlertGenerated records one generated alert.
func RecordAlertGenerated(priority string) {
	AlertsGenerated.WithLabelValues(priority).Inc()
}

// RecordDelivery records one per-channel delivery attempt.
func RecordDelivery(channel string, success bool, latency time.Duration) {
	AlertDeliveries.WithLabelValues(channel, strconv.FormatBool(success)).Inc()
	DeliveryLatency.WithLabelValues(channel).Observe(latency.Seconds())
}

// RecordAPIRequest records an API request with its outcome.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight API request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// SetDegraded publishes the engine health signal.
func SetDegraded(degraded bool) {
	if degraded {
		EngineDegraded.Set(1)
	} else {
		EngineDegraded.Set(0)
	}
}

// SetCircuitBreakerState publishes a breaker state by name.
// gobreaker state strings map to 0=closed, 1=half-open, 2=open.
func SetCircuitBreakerState(name, state string) {
	value := 0.0
	switch state {
	case "half-open":
		value = 1
	case "open":
		value = 2
	}
	CircuitBreakerState.WithLabelValues(name).Set(value)
}

// RecordSinkWrite records one durable compliance write outcome.
func RecordSinkWrite(err error) {
	if err != nil {
		ComplianceSinkWrites.WithLabelValues("error").Inc()
		return
	}
	ComplianceSinkWrites.WithLabelValues("ok").Inc()
}
