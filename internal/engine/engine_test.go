// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/alert"
	"github.com/fleetwatch/fleetwatch/internal/event"
	"github.com/fleetwatch/fleetwatch/internal/monitor"
	"github.com/fleetwatch/fleetwatch/internal/pattern"
	"github.com/fleetwatch/fleetwatch/internal/telemetry"
)

type fakeDispatcher struct {
	mu       sync.Mutex
	alerts   []*alert.SafetyAlert
	attempts []alert.DeliveryAttempt
}

func (d *fakeDispatcher) Dispatch(_ context.Context, a *alert.SafetyAlert) []alert.DeliveryAttempt {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, a)
	if d.attempts != nil {
		return d.attempts
	}
	return []alert.DeliveryAttempt{
		{Channel: alert.ChannelPush, Success: true, LatencyMs: 3, Timestamp: time.Now().UTC()},
	}
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.alerts)
}

type panicDispatcher struct{}

func (panicDispatcher) Dispatch(context.Context, *alert.SafetyAlert) []alert.DeliveryAttempt {
	panic("transport table corrupted")
}

type fakeScheduler struct {
	mu        sync.Mutex
	scheduled []string
	canceled  []string
}

func (s *fakeScheduler) Schedule(a *alert.SafetyAlert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, a.ID)
}

func (s *fakeScheduler) Cancel(alertID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canceled = append(s.canceled, alertID)
	return true
}

type fakeSink struct {
	mu     sync.Mutex
	events []*event.SafetyEvent
	err    error
}

func (s *fakeSink) Append(_ context.Context, e *event.SafetyEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

type fixtures struct {
	dispatcher *fakeDispatcher
	scheduler  *fakeScheduler
	sink       *fakeSink
	events     *event.Store
	alerts     *alert.Store
	tracker    *monitor.Tracker
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *fixtures) {
	t.Helper()

	registry := pattern.NewRegistry()
	collision := &pattern.AnomalyPattern{
		ID:                  "collision-impact",
		Name:                "Collision Impact",
		ConfidenceThreshold: 0.5,
		Rules: []pattern.Rule{
			pattern.NumericRule("impact_g", pattern.OpGT, 4.0, 1.0),
		},
	}
	if err := registry.Add(collision); err != nil {
		t.Fatalf("registry.Add: %v", err)
	}

	f := &fixtures{
		dispatcher: &fakeDispatcher{},
		scheduler:  &fakeScheduler{},
		sink:       &fakeSink{},
		events:     event.NewStore(24 * time.Hour),
		alerts:     alert.NewStore(24 * time.Hour),
		tracker:    monitor.NewTracker(),
	}

	eng := New(cfg, Deps{
		Analyzer:   telemetry.NewAnalyzer(telemetry.DefaultAnalyzerConfig(), nil),
		Registry:   registry,
		Matcher:    pattern.NewMatcher(registry, nil),
		Factory:    event.NewFactory(),
		Events:     f.events,
		Generator:  alert.NewGenerator(alert.GeneratorConfig{}, nil, nil),
		Alerts:     f.alerts,
		Dispatcher: f.dispatcher,
		Scheduler:  f.scheduler,
		Tracker:    f.tracker,
		Sink:       f.sink,
	})
	return eng, f
}

// impactRecord carries a critical impact reading that the collision pattern
// matches with full confidence.
func impactRecord() *telemetry.Record {
	return &telemetry.Record{
		EntityID:   "veh-1",
		EntityType: telemetry.EntityVehicle,
		Timestamp:  time.Now().UTC(),
		Sensor:     &telemetry.SensorData{Readings: map[string]float64{"impact_g": 5.0}},
	}
}

func TestProcessDetectsAndRaisesAlert(t *testing.T) {
	eng, f := newTestEngine(t, Config{})

	result := eng.Process(context.Background(), impactRecord())

	if result.Status != StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", result.Status)
	}
	if len(result.Events) != 1 {
		t.Fatalf("events = %d, want 1", len(result.Events))
	}
	if len(result.Alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(result.Alerts))
	}

	ev := result.Events[0]
	if !ev.AlertTriggered {
		t.Error("event should have triggered an alert")
	}
	if ev.Severity != event.SeverityEmergency {
		t.Errorf("severity = %s, want EMERGENCY", ev.Severity)
	}

	a := result.Alerts[0]
	if a.EventID != ev.ID {
		t.Errorf("alert.EventID = %s, want %s", a.EventID, ev.ID)
	}
	if !a.AcknowledgmentRequired {
		t.Error("emergency alert must require acknowledgment")
	}

	// Stores, sink, and scheduler all observed the detection.
	if f.events.Len() != 1 {
		t.Errorf("event store len = %d, want 1", f.events.Len())
	}
	stored, err := f.alerts.Get(a.ID)
	if err != nil {
		t.Fatalf("alert store: %v", err)
	}
	if len(stored.Attempts) != 1 {
		t.Errorf("delivery attempts = %d, want 1", len(stored.Attempts))
	}
	if len(f.sink.events) != 1 || f.sink.events[0].ID != ev.ID {
		t.Errorf("sink received %d events", len(f.sink.events))
	}
	if len(f.scheduler.scheduled) != 1 || f.scheduler.scheduled[0] != a.ID {
		t.Errorf("scheduler.scheduled = %v, want [%s]", f.scheduler.scheduled, a.ID)
	}

	snap := f.tracker.Snapshot()
	if snap.TotalEventsDetected != 1 || snap.AlertsSent != 1 {
		t.Errorf("tracker = %+v, want 1 event and 1 alert", snap)
	}
}

func TestProcessInvalidRecordSkipsPipeline(t *testing.T) {
	eng, f := newTestEngine(t, Config{})

	// No location, sensor, or behavior block.
	record := &telemetry.Record{EntityID: "veh-1", EntityType: telemetry.EntityVehicle}
	result := eng.Process(context.Background(), record)

	if result.Status != StatusInvalid {
		t.Fatalf("status = %s, want INVALID", result.Status)
	}
	if len(result.Events) != 0 || f.events.Len() != 0 {
		t.Error("invalid record must not produce events")
	}
	if snap := f.tracker.Snapshot(); snap.TotalEventsDetected != 0 {
		t.Errorf("tracker counted events for invalid record: %+v", snap)
	}
}

func TestProcessNoMatchCompletesQuietly(t *testing.T) {
	eng, f := newTestEngine(t, Config{})

	record := &telemetry.Record{
		EntityID:   "veh-1",
		EntityType: telemetry.EntityVehicle,
		Sensor:     &telemetry.SensorData{Readings: map[string]float64{"impact_g": 1.0}},
	}
	result := eng.Process(context.Background(), record)

	if result.Status != StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", result.Status)
	}
	if len(result.Events) != 0 || len(result.Alerts) != 0 {
		t.Errorf("events = %d, alerts = %d, want none", len(result.Events), len(result.Alerts))
	}
	if f.dispatcher.count() != 0 {
		t.Error("dispatcher called without a detection")
	}
}

func TestProcessStageFailureReturnsRecoverableError(t *testing.T) {
	eng, _ := newTestEngine(t, Config{})
	eng.deps.Dispatcher = panicDispatcher{}

	result := eng.Process(context.Background(), impactRecord())

	if result.Status != StatusFailed {
		t.Fatalf("status = %s, want FAILED", result.Status)
	}
	if result.Err == nil {
		t.Fatal("expected execution error")
	}
	if result.Err.Kind != ErrorKindSafetyMonitoring {
		t.Errorf("error kind = %s, want %s", result.Err.Kind, ErrorKindSafetyMonitoring)
	}
	if !result.Err.Recoverable {
		t.Error("stage failures must be recoverable")
	}
}

func TestProcessSinkFailureDoesNotFailIngestion(t *testing.T) {
	eng, f := newTestEngine(t, Config{})
	f.sink.err = errors.New("disk full")

	result := eng.Process(context.Background(), impactRecord())

	if result.Status != StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED despite sink failure", result.Status)
	}
	if len(result.Alerts) != 1 {
		t.Errorf("alerts = %d, want 1", len(result.Alerts))
	}
}

func TestAcknowledgeFirstWins(t *testing.T) {
	eng, f := newTestEngine(t, Config{})
	result := eng.Process(context.Background(), impactRecord())
	alertID := result.Alerts[0].ID

	first, err := eng.Acknowledge(alertID, "operator-1")
	if err != nil || !first {
		t.Fatalf("first ack = (%v, %v), want (true, nil)", first, err)
	}
	if len(f.scheduler.canceled) != 1 || f.scheduler.canceled[0] != alertID {
		t.Errorf("scheduler.canceled = %v, want [%s]", f.scheduler.canceled, alertID)
	}

	second, err := eng.Acknowledge(alertID, "operator-2")
	if err != nil {
		t.Fatalf("second ack error: %v", err)
	}
	if second {
		t.Error("second acknowledgment must be a no-op")
	}

	snap := f.tracker.Snapshot()
	if snap.AlertsAcknowledged != 1 {
		t.Errorf("alertsAcknowledged = %d, want 1", snap.AlertsAcknowledged)
	}
	if len(f.scheduler.canceled) != 1 {
		t.Errorf("cancel called %d times, want 1", len(f.scheduler.canceled))
	}

	if _, err := eng.Acknowledge("missing", "operator-1"); err == nil {
		t.Error("acknowledging unknown alert should error")
	}
}

func TestSubmitRejectsWhenQueueFull(t *testing.T) {
	eng, _ := newTestEngine(t, Config{QueueSize: 1, Workers: 1})

	if err := eng.Submit(impactRecord()); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := eng.Submit(impactRecord()); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("second submit = %v, want ErrQueueFull", err)
	}
}

func TestRunWithContextDrainsQueue(t *testing.T) {
	eng, f := newTestEngine(t, Config{QueueSize: 8, Workers: 2})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.RunWithContext(ctx) }()

	if err := eng.Submit(impactRecord()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && f.events.Len() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if f.events.Len() != 1 {
		t.Fatal("queued record was not processed")
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("RunWithContext = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop after cancel")
	}
}

func TestHealthCheckDegradesOnQueuePressure(t *testing.T) {
	eng, _ := newTestEngine(t, Config{QueueSize: 4, Workers: 1, DegradedQueueRatio: 0.5})

	if h := eng.HealthCheck(); h.Status != "healthy" {
		t.Fatalf("empty queue status = %s, want healthy", h.Status)
	}

	// No workers running: submissions accumulate.
	_ = eng.Submit(impactRecord())
	_ = eng.Submit(impactRecord())

	h := eng.HealthCheck()
	if h.Status != "degraded" {
		t.Errorf("status = %s, want degraded at %d/%d", h.Status, h.QueueDepth, h.QueueCapacity)
	}
}
