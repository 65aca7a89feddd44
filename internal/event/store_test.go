// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package event

import (
	"sync"
	"testing"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/pattern"
	"github.com/fleetwatch/fleetwatch/internal/telemetry"
)

func eventAt(id string, age time.Duration, now time.Time) *SafetyEvent {
	return &SafetyEvent{
		ID:        id,
		Type:      "overspeed",
		Severity:  SeverityHigh,
		Timestamp: now.Add(-age),
		EntityID:  "d-1",
	}
}

func TestStoreActiveWindowBoundary(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(0)
	s.now = func() time.Time { return now }

	s.Save(eventAt("fresh", time.Minute, now))
	s.Save(eventAt("almost", 24*time.Hour-time.Minute, now)) // 23h59m
	s.Save(eventAt("exact", 24*time.Hour, now))              // exactly 24h
	s.Save(eventAt("stale", 25*time.Hour, now))

	active := s.GetActive()
	if len(active) != 2 {
		t.Fatalf("expected 2 active events, got %d", len(active))
	}
	for _, e := range active {
		if e.ID == "exact" || e.ID == "stale" {
			t.Errorf("event %s must not be active", e.ID)
		}
	}
	// Newest first.
	if active[0].ID != "fresh" {
		t.Errorf("expected newest-first ordering, got %s first", active[0].ID)
	}
}

func TestStoreGetInPeriod(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(0)
	s.now = func() time.Time { return now }

	s.Save(eventAt("a", 3*time.Hour, now))
	s.Save(eventAt("b", 2*time.Hour, now))
	s.Save(eventAt("c", 30*time.Minute, now))

	got := s.GetInPeriod(now.Add(-150*time.Minute), now.Add(-time.Hour))
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("expected exactly event b, got %d events", len(got))
	}
}

func TestStoreGC(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(48 * time.Hour)
	s.now = func() time.Time { return now }

	s.Save(eventAt("keep", 47*time.Hour, now))
	s.Save(eventAt("drop", 49*time.Hour, now))

	if removed := s.gc(); removed != 1 {
		t.Errorf("gc removed %d, want 1", removed)
	}
	if _, err := s.Get("keep"); err != nil {
		t.Error("expected keep to survive gc")
	}
	if _, err := s.Get("drop"); err != ErrNotFound {
		t.Error("expected drop to be collected")
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore(0)
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Save(&SafetyEvent{ID: string(rune('a'+n)) + "-ev", Timestamp: time.Now()})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.GetActive()
			}
		}()
	}
	wg.Wait()
}

func TestFactoryFromMatch(t *testing.T) {
	analysis := &telemetry.Analysis{
		EntityID:   "d-1",
		EntityType: telemetry.EntityDriver,
		Timestamp:  time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
		Metrics: []telemetry.Metric{
			{Name: "speed", Value: 130, Status: telemetry.StatusCritical},
		},
		RiskScore: 0.92,
	}
	match := pattern.Match{
		Pattern:    &AnomalyPatternStub,
		Confidence: 0.95,
	}

	e := NewFactory().FromMatch(analysis, match)

	if e.ID == "" {
		t.Error("expected generated event ID")
	}
	if e.Type != AnomalyPatternStub.ID {
		t.Errorf("type = %s, want %s", e.Type, AnomalyPatternStub.ID)
	}
	if e.Severity != SeverityCritical { // 0.92 * 0.95 = 0.874
		t.Errorf("severity = %s, want CRITICAL", e.Severity)
	}
	if !e.AlertTriggered {
		t.Error("confidence 0.95 must trigger an alert")
	}
	if !e.ResponseRequired {
		t.Error("risk 0.92 must require a response")
	}
	if e.EscalationLevel != 3 {
		t.Errorf("escalation level = %d, want 3", e.EscalationLevel)
	}
	if len(e.DataPoints) != 1 {
		t.Errorf("expected analysis metrics carried as data points")
	}
}

// AnomalyPatternStub is a minimal valid pattern shared by factory tests.
var AnomalyPatternStub = pattern.AnomalyPattern{
	ID:                  "overspeed",
	Name:                "Overspeed",
	ConfidenceThreshold: 0.8,
	Rules:               []pattern.Rule{pattern.NumericRule("speed", pattern.OpGT, 100, 1)},
}
