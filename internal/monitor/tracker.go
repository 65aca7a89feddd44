// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

// Package monitor maintains the process-wide safety counters and produces
// compliance reports over the event store's retained window.
package monitor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/event"
)

// Metrics is a point-in-time snapshot of the running counters.
type Metrics struct {
	TotalEventsDetected         int64 `json:"total_events_detected"`
	CriticalEventsToday         int64 `json:"critical_events_today"`
	AlertsSent                  int64 `json:"alerts_sent"`
	AlertsAcknowledged          int64 `json:"alerts_acknowledged"`
	EmergencyResponsesTriggered int64 `json:"emergency_responses_triggered"`
}

// Tracker holds the running counters. Counters live for the process lifetime
// and reset only via an explicit Reset call. All methods are safe for
// concurrent use.
type Tracker struct {
	totalEventsDetected         atomic.Int64
	alertsSent                  atomic.Int64
	alertsAcknowledged          atomic.Int64
	emergencyResponsesTriggered atomic.Int64

	// criticalEventsToday rolls over at UTC midnight; the mutex guards the
	// day comparison, not the hot counters above.
	mu                  sync.Mutex
	criticalEventsToday int64
	day                 string

	now func() time.Time
}

// NewTracker creates a tracker using wall-clock UTC time.
func NewTracker() *Tracker {
	return &Tracker{now: func() time.Time { return time.Now().UTC() }}
}

// EventDetected records one detected safety event. CRITICAL and EMERGENCY
// events also count toward the daily critical counter, which resets when the
// UTC day changes.
func (t *Tracker) EventDetected(severity event.Severity) {
	t.totalEventsDetected.Add(1)
	if !severity.AtLeast(event.SeverityCritical) {
		return
	}

	today := t.now().Format("2006-01-02")
	t.mu.Lock()
	if t.day != today {
		t.day = today
		t.criticalEventsToday = 0
	}
	t.criticalEventsToday++
	t.mu.Unlock()
}

// AlertSent records one dispatched alert.
func (t *Tracker) AlertSent() {
	t.alertsSent.Add(1)
}

// AlertAcknowledged records one first-time acknowledgment. Callers must only
// invoke this when the store reports a first-time acknowledge, which keeps
// the counter idempotent for repeated acknowledgments of the same alert.
func (t *Tracker) AlertAcknowledged() {
	t.alertsAcknowledged.Add(1)
}

// EmergencyResponseTriggered records one fired escalation.
func (t *Tracker) EmergencyResponseTriggered() {
	t.emergencyResponsesTriggered.Add(1)
}

// Snapshot returns the current counter values.
func (t *Tracker) Snapshot() Metrics {
	t.mu.Lock()
	today := t.now().Format("2006-01-02")
	critical := t.criticalEventsToday
	if t.day != today {
		critical = 0
	}
	t.mu.Unlock()

	return Metrics{
		TotalEventsDetected:         t.totalEventsDetected.Load(),
		CriticalEventsToday:         critical,
		AlertsSent:                  t.alertsSent.Load(),
		AlertsAcknowledged:          t.alertsAcknowledged.Load(),
		EmergencyResponsesTriggered: t.emergencyResponsesTriggered.Load(),
	}
}

// Reset zeroes every counter. Operator action only.
func (t *Tracker) Reset() {
	t.totalEventsDetected.Store(0)
	t.alertsSent.Store(0)
	t.alertsAcknowledged.Store(0)
	t.emergencyResponsesTriggered.Store(0)

	t.mu.Lock()
	t.criticalEventsToday = 0
	t.day = ""
	t.mu.Unlock()
}
