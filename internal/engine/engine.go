// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

// Package engine orchestrates the safety pipeline: analysis, pattern
// matching, event creation, alert generation, dispatch, and escalation
// scheduling. Submissions flow through a bounded queue into a worker pool;
// overflow is rejected, never buffered unboundedly.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/alert"
	"github.com/fleetwatch/fleetwatch/internal/event"
	"github.com/fleetwatch/fleetwatch/internal/logging"
	"github.com/fleetwatch/fleetwatch/internal/metrics"
	"github.com/fleetwatch/fleetwatch/internal/monitor"
	"github.com/fleetwatch/fleetwatch/internal/pattern"
	"github.com/fleetwatch/fleetwatch/internal/telemetry"
)

// ErrQueueFull is returned by Submit when the bounded queue is at capacity.
var ErrQueueFull = errors.New("telemetry queue full")

// ErrorKindSafetyMonitoring tags pipeline-stage failures. Such failures are
// recoverable: the caller may resubmit the same telemetry.
const ErrorKindSafetyMonitoring = "SAFETY_MONITORING_ERROR"

// Status is the outcome of one pipeline pass.
type Status string

const (
	// StatusCompleted means the pipeline ran to the end (with or without
	// detections).
	StatusCompleted Status = "COMPLETED"

	// StatusInvalid means validation rejected the record; the pipeline was
	// not entered.
	StatusInvalid Status = "INVALID"

	// StatusFailed means a pipeline stage failed after validation.
	StatusFailed Status = "FAILED"
)

// ExecutionError carries the failure classification of a pipeline pass.
type ExecutionError struct {
	Kind        string `json:"kind"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

// ExecutionResult is the outcome of processing one telemetry record.
type ExecutionResult struct {
	Status Status               `json:"status"`
	Events []*event.SafetyEvent `json:"events,omitempty"`
	Alerts []*alert.SafetyAlert `json:"alerts,omitempty"`
	Err    *ExecutionError      `json:"error,omitempty"`
}

// Dispatcher delivers alerts across their channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, a *alert.SafetyAlert) []alert.DeliveryAttempt
}

// Scheduler arms and cancels escalation timers.
type Scheduler interface {
	Schedule(a *alert.SafetyAlert)
	Cancel(alertID string) bool
}

// EventSink receives events for durable retention. Sink failures are
// isolated: they are logged and counted, never propagated into the pipeline.
type EventSink interface {
	Append(ctx context.Context, e *event.SafetyEvent) error
}

// Broadcaster pushes live updates to connected dashboards.
type Broadcaster interface {
	BroadcastEvent(e *event.SafetyEvent)
	BroadcastAlert(a *alert.SafetyAlert)
	BroadcastAcknowledgment(alertID, by string)
}

// Config tunes the engine's queue and worker pool.
type Config struct {
	QueueSize int
	Workers   int

	// DegradedQueueRatio is the fill fraction above which Health reports
	// degraded.
	DegradedQueueRatio float64
}

// Deps are the engine's collaborators. Sink and Hub may be nil.
type Deps struct {
	Analyzer   *telemetry.Analyzer
	Registry   *pattern.Registry
	Matcher    *pattern.Matcher
	Factory    *event.Factory
	Events     *event.Store
	Generator  *alert.Generator
	Alerts     *alert.Store
	Dispatcher Dispatcher
	Scheduler  Scheduler
	Tracker    *monitor.Tracker
	Sink       EventSink
	Hub        Broadcaster
}

// Engine runs the safety pipeline.
type Engine struct {
	cfg   Config
	deps  Deps
	queue chan *telemetry.Record
}

// New creates an engine. Non-positive config values fall back to defaults.
func New(cfg Config, deps Deps) *Engine {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.DegradedQueueRatio <= 0 || cfg.DegradedQueueRatio > 1 {
		cfg.DegradedQueueRatio = 0.8
	}
	return &Engine{
		cfg:   cfg,
		deps:  deps,
		queue: make(chan *telemetry.Record, cfg.QueueSize),
	}
}

// Submit enqueues a record for asynchronous processing. A full queue
// rejects the submission with ErrQueueFull; the caller decides whether to
// retry or drop.
func (e *Engine) Submit(record *telemetry.Record) error {
	select {
	case e.queue <- record:
		metrics.EngineQueueDepth.Set(float64(len(e.queue)))
		return nil
	default:
		metrics.EngineQueueRejections.Inc()
		metrics.RecordTelemetrySubmission(string(entityTypeLabel(record)), "rejected")
		return ErrQueueFull
	}
}

// RunWithContext consumes the queue with the configured worker pool until
// the context is canceled. Designed to run under supervision.
func (e *Engine) RunWithContext(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case record := <-e.queue:
					metrics.EngineQueueDepth.Set(float64(len(e.queue)))
					e.Process(ctx, record)
				}
			}
		}()
	}

	logging.Info().
		Int("workers", e.cfg.Workers).
		Int("queue_size", e.cfg.QueueSize).
		Msg("safety engine started")

	<-ctx.Done()
	wg.Wait()
	logging.Info().Str("component", "engine").Msg("safety engine stopped")
	return ctx.Err()
}

// Process runs the full pipeline for one record synchronously. Stage
// failures after validation are caught at this boundary and reported as a
// FAILED result rather than a panic.
func (e *Engine) Process(ctx context.Context, record *telemetry.Record) (result *ExecutionResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Interface("panic", r).
				Str("entity_id", entityID(record)).
				Msg("pipeline stage failed")
			metrics.RecordTelemetrySubmission(string(entityTypeLabel(record)), "failed")
			result = &ExecutionResult{
				Status: StatusFailed,
				Err: &ExecutionError{
					Kind:        ErrorKindSafetyMonitoring,
					Message:     fmt.Sprintf("pipeline failure: %v", r),
					Recoverable: true,
				},
			}
		}
		metrics.RecordPipelinePass(time.Since(start))
	}()

	if !record.Validate() {
		metrics.RecordTelemetrySubmission(string(entityTypeLabel(record)), "invalid")
		return &ExecutionResult{Status: StatusInvalid}
	}

	analysis := e.deps.Analyzer.Analyze(record)
	matches := e.deps.Matcher.Match(analysis)

	result = &ExecutionResult{Status: StatusCompleted}
	for _, match := range matches {
		ev := e.deps.Factory.FromMatch(analysis, match)
		e.deps.Events.Save(ev)
		e.deps.Tracker.EventDetected(ev.Severity)
		metrics.RecordPatternMatch(match.Pattern.ID)
		metrics.RecordEventDetected(string(ev.Severity))
		result.Events = append(result.Events, ev)

		e.persistEvent(ctx, ev)
		if e.deps.Hub != nil {
			e.deps.Hub.BroadcastEvent(ev)
		}

		if ev.AlertTriggered {
			result.Alerts = append(result.Alerts, e.raiseAlert(ctx, ev, record.Context))
		}
	}

	metrics.RecordTelemetrySubmission(string(record.EntityType), "processed")
	return result
}

// raiseAlert generates, dispatches, stores, and (if required) schedules
// escalation for one alert-worthy event.
func (e *Engine) raiseAlert(ctx context.Context, ev *event.SafetyEvent, profile *telemetry.ContextProfile) *alert.SafetyAlert {
	a := e.deps.Generator.Generate(ev, profile)
	e.deps.Alerts.Save(a)

	attempts := e.deps.Dispatcher.Dispatch(ctx, a)
	if err := e.deps.Alerts.AppendAttempts(a.ID, attempts); err != nil {
		logging.Warn().Err(err).Str("alert_id", a.ID).Msg("failed to record delivery attempts")
	}
	for _, at := range attempts {
		metrics.RecordDelivery(string(at.Channel), at.Success, time.Duration(at.LatencyMs)*time.Millisecond)
	}

	e.deps.Tracker.AlertSent()
	metrics.RecordAlertGenerated(string(a.Priority))

	if a.AcknowledgmentRequired {
		e.deps.Scheduler.Schedule(a)
	}
	if e.deps.Hub != nil {
		e.deps.Hub.BroadcastAlert(a)
	}

	logging.Info().
		Str("alert_id", a.ID).
		Str("event_id", ev.ID).
		Str("priority", string(a.Priority)).
		Str("entity_id", ev.EntityID).
		Msg("safety alert raised")
	return a
}

// persistEvent hands the event to the durable sink. Sink errors never block
// or fail ingestion.
func (e *Engine) persistEvent(ctx context.Context, ev *event.SafetyEvent) {
	if e.deps.Sink == nil {
		return
	}
	err := e.deps.Sink.Append(ctx, ev)
	metrics.RecordSinkWrite(err)
	if err != nil {
		logging.Warn().Err(err).Str("event_id", ev.ID).Msg("compliance sink write failed")
	}
}

// Acknowledge marks an alert acknowledged and cancels its escalation
// timers. The first acknowledgment returns true and increments the
// acknowledged counter; repeats return false and change nothing.
func (e *Engine) Acknowledge(alertID, by string) (bool, error) {
	first, err := e.deps.Alerts.Acknowledge(alertID, by)
	if err != nil {
		return false, err
	}
	if !first {
		return false, nil
	}

	e.deps.Scheduler.Cancel(alertID)
	e.deps.Tracker.AlertAcknowledged()
	metrics.AlertsAcknowledged.Inc()
	if e.deps.Hub != nil {
		e.deps.Hub.BroadcastAcknowledgment(alertID, by)
	}

	logging.Info().Str("alert_id", alertID).Str("acknowledged_by", by).Msg("alert acknowledged")
	return true, nil
}

// Health describes the engine's load state.
type Health struct {
	Status        string `json:"status"` // "healthy" or "degraded"
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
}

// HealthCheck reports degraded when the queue fill ratio crosses the
// configured threshold, so the system sheds load visibly instead of
// queuing unboundedly.
func (e *Engine) HealthCheck() Health {
	depth := len(e.queue)
	degraded := float64(depth) >= e.cfg.DegradedQueueRatio*float64(e.cfg.QueueSize)
	metrics.SetDegraded(degraded)

	status := "healthy"
	if degraded {
		status = "degraded"
	}
	return Health{Status: status, QueueDepth: depth, QueueCapacity: e.cfg.QueueSize}
}

func entityID(record *telemetry.Record) string {
	if record == nil {
		return ""
	}
	return record.EntityID
}

func entityTypeLabel(record *telemetry.Record) telemetry.EntityType {
	if record == nil {
		return "unknown"
	}
	if record.EntityType == "" {
		return "unknown"
	}
	return record.EntityType
}
