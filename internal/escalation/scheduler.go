// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

// Package escalation arms per-alert timers that re-dispatch unacknowledged
// critical and emergency alerts to their escalation recipients once the
// configured delay elapses. Acknowledgment cancels the pending timers.
package escalation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/alert"
	"github.com/fleetwatch/fleetwatch/internal/logging"
)

// fireTimeout bounds the escalation dispatch itself.
const fireTimeout = 30 * time.Second

// Dispatcher delivers an escalation step for an alert.
type Dispatcher interface {
	DispatchEscalation(ctx context.Context, a *alert.SafetyAlert, rule alert.EscalationRule) []alert.DeliveryAttempt
}

// AlertStore is the subset of the alert store the scheduler needs: a
// race-free acknowledged check at fire time and attempt recording.
type AlertStore interface {
	IsAcknowledged(id string) (bool, error)
	AppendAttempts(id string, attempts []alert.DeliveryAttempt) error
}

// pending tracks the armed timers for one alert. The timers slice is fully
// built under the scheduler lock before the entry is published. canceled
// flips exactly once, on acknowledgment or shutdown, and fire paths check it
// before dispatching.
type pending struct {
	timers    []*time.Timer
	canceled  atomic.Bool
	remaining atomic.Int32
}

// Scheduler owns the escalation timers. Safe for concurrent use.
type Scheduler struct {
	mu         sync.Mutex
	pending    map[string]*pending
	dispatcher Dispatcher
	store      AlertStore

	// onEscalated is invoked after a step fires, once per rule. Used to
	// feed monitoring counters.
	onEscalated func(a *alert.SafetyAlert, rule alert.EscalationRule)
}

// NewScheduler creates a scheduler. onEscalated may be nil.
func NewScheduler(dispatcher Dispatcher, store AlertStore, onEscalated func(*alert.SafetyAlert, alert.EscalationRule)) *Scheduler {
	if onEscalated == nil {
		onEscalated = func(*alert.SafetyAlert, alert.EscalationRule) {}
	}
	return &Scheduler{
		pending:     make(map[string]*pending),
		dispatcher:  dispatcher,
		store:       store,
		onEscalated: onEscalated,
	}
}

// Schedule arms one timer per escalation rule on the alert. Alerts without
// rules are a no-op. Scheduling the same alert ID twice replaces the earlier
// timers.
func (s *Scheduler) Schedule(a *alert.SafetyAlert) {
	if len(a.EscalationRules) == 0 {
		return
	}

	p := &pending{}
	p.remaining.Store(int32(len(a.EscalationRules)))

	// Timers are armed under the lock so a concurrent Cancel never observes
	// a published entry with a partially built timer slice.
	s.mu.Lock()
	if old, ok := s.pending[a.ID]; ok {
		old.cancel()
	}
	for _, rule := range a.EscalationRules {
		rule := rule
		delay := time.Duration(rule.TriggerDelayMs) * time.Millisecond
		p.timers = append(p.timers, time.AfterFunc(delay, func() {
			s.fire(a, rule, p)
		}))
	}
	s.pending[a.ID] = p
	s.mu.Unlock()

	logging.Debug().
		Str("alert_id", a.ID).
		Int("rules", len(a.EscalationRules)).
		Msg("escalation timers armed")
}

// Cancel stops the pending timers for an alert, typically on acknowledgment.
// Returns true if timers were still pending.
func (s *Scheduler) Cancel(alertID string) bool {
	s.mu.Lock()
	p, ok := s.pending[alertID]
	if ok {
		delete(s.pending, alertID)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	p.cancel()
	return true
}

// PendingCount returns the number of alerts with armed timers.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Shutdown cancels every pending timer.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	all := s.pending
	s.pending = make(map[string]*pending)
	s.mu.Unlock()

	for _, p := range all {
		p.cancel()
	}
}

// fire runs one escalation step. The no_acknowledgment condition is
// re-checked against the store under its lock immediately before dispatch,
// so an acknowledgment that lands first always wins.
func (s *Scheduler) fire(a *alert.SafetyAlert, rule alert.EscalationRule, p *pending) {
	defer s.finish(a.ID, p)

	if p.canceled.Load() {
		return
	}
	if rule.Condition == alert.ConditionNoAcknowledgment {
		acked, err := s.store.IsAcknowledged(a.ID)
		if err != nil {
			logging.Warn().Err(err).Str("alert_id", a.ID).Msg("escalation skipped, alert no longer stored")
			return
		}
		if acked {
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	attempts := s.dispatcher.DispatchEscalation(ctx, a, rule)
	if err := s.store.AppendAttempts(a.ID, attempts); err != nil {
		logging.Warn().Err(err).Str("alert_id", a.ID).Msg("failed to record escalation attempts")
	}

	logging.Info().
		Str("alert_id", a.ID).
		Int("level", rule.Level).
		Int("channels", len(rule.Channels)).
		Msg("alert escalated without acknowledgment")

	s.onEscalated(a, rule)
}

// finish drops the pending entry once the last rule for the alert has run.
func (s *Scheduler) finish(alertID string, p *pending) {
	if p.remaining.Add(-1) > 0 {
		return
	}
	s.mu.Lock()
	if cur, ok := s.pending[alertID]; ok && cur == p {
		delete(s.pending, alertID)
	}
	s.mu.Unlock()
}

func (p *pending) cancel() {
	p.canceled.Store(true)
	for _, t := range p.timers {
		t.Stop()
	}
}
