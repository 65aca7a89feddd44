// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package monitor

import (
	"math"
	"testing"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/event"
	"github.com/fleetwatch/fleetwatch/internal/telemetry"
)

// fakeEvents serves a fixed event slice filtered by period.
type fakeEvents struct {
	events []*event.SafetyEvent
}

func (f *fakeEvents) GetInPeriod(from, to time.Time) []*event.SafetyEvent {
	var out []*event.SafetyEvent
	for _, e := range f.events {
		if !e.Timestamp.Before(from) && e.Timestamp.Before(to) {
			out = append(out, e)
		}
	}
	return out
}

func reportEvent(id string, sev event.Severity, ts time.Time) *event.SafetyEvent {
	return &event.SafetyEvent{
		ID:         id,
		Type:       "overspeed",
		Severity:   sev,
		Timestamp:  ts,
		EntityID:   "d-1",
		EntityType: telemetry.EntityDriver,
	}
}

func TestComplianceReportScoring(t *testing.T) {
	base := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeEvents{events: []*event.SafetyEvent{
		reportEvent("e-1", event.SeverityLow, base.Add(time.Hour)),
		reportEvent("e-2", event.SeverityHigh, base.Add(2*time.Hour)),
		reportEvent("e-3", event.SeverityCritical, base.Add(3*time.Hour)),
		reportEvent("e-4", event.SeverityEmergency, base.Add(4*time.Hour)),
	}}

	r := NewReporter(src)
	report := r.ComplianceReport(base, base.Add(24*time.Hour))

	if report.TotalIncidents != 4 {
		t.Errorf("total = %d, want 4", report.TotalIncidents)
	}
	if report.CriticalIncidents != 1 || report.EmergencyIncidents != 1 {
		t.Errorf("critical/emergency = %d/%d, want 1/1", report.CriticalIncidents, report.EmergencyIncidents)
	}
	if len(report.Violations) != 2 {
		t.Errorf("violations = %d, want 2 (critical and emergency only)", len(report.Violations))
	}

	// 1 - (0.5 + 1.0)/4 = 0.625.
	if math.Abs(report.ComplianceScore-0.625) > 1e-9 {
		t.Errorf("score = %v, want 0.625", report.ComplianceScore)
	}
}

func TestComplianceReportEmptyPeriod(t *testing.T) {
	r := NewReporter(&fakeEvents{})
	report := r.ComplianceReport(time.Time{}, time.Time{})

	if report.TotalIncidents != 0 || len(report.Violations) != 0 {
		t.Errorf("expected empty report, got %+v", report)
	}
	if report.ComplianceScore != 1.0 {
		t.Errorf("score = %v, want 1.0 for a clean period", report.ComplianceScore)
	}
	if got := report.PeriodEnd.Sub(report.PeriodStart); got != DefaultReportPeriod {
		t.Errorf("default period = %v, want %v", got, DefaultReportPeriod)
	}
}

func TestComplianceReportDefaultsEachBoundIndependently(t *testing.T) {
	base := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	src := &fakeEvents{events: []*event.SafetyEvent{
		reportEvent("recent", event.SeverityCritical, base.Add(-time.Hour)),
	}}
	r := NewReporter(src)
	r.now = func() time.Time { return base }

	// Only a start bound: the end defaults to now, so the recent event is in.
	report := r.ComplianceReport(base.Add(-2*time.Hour), time.Time{})
	if report.TotalIncidents != 1 {
		t.Errorf("from-only total = %d, want 1", report.TotalIncidents)
	}
	if !report.PeriodEnd.Equal(base) {
		t.Errorf("from-only period end = %v, want now", report.PeriodEnd)
	}

	// Only an end bound: the start defaults to a full period before it.
	report = r.ComplianceReport(time.Time{}, base)
	if report.TotalIncidents != 1 {
		t.Errorf("to-only total = %d, want 1", report.TotalIncidents)
	}
	if got := report.PeriodEnd.Sub(report.PeriodStart); got != DefaultReportPeriod {
		t.Errorf("to-only period = %v, want %v", got, DefaultReportPeriod)
	}
}

func TestComplianceReportAllEmergencies(t *testing.T) {
	base := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeEvents{events: []*event.SafetyEvent{
		reportEvent("e-1", event.SeverityEmergency, base.Add(time.Hour)),
		reportEvent("e-2", event.SeverityEmergency, base.Add(2*time.Hour)),
	}}

	report := NewReporter(src).ComplianceReport(base, base.Add(24*time.Hour))
	if report.ComplianceScore != 0 {
		t.Errorf("score = %v, want 0 when every incident is an emergency", report.ComplianceScore)
	}
}

func TestComplianceReportRespectsPeriodBounds(t *testing.T) {
	base := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeEvents{events: []*event.SafetyEvent{
		reportEvent("before", event.SeverityCritical, base.Add(-time.Hour)),
		reportEvent("inside", event.SeverityCritical, base.Add(time.Hour)),
		reportEvent("at-end", event.SeverityCritical, base.Add(24*time.Hour)),
	}}

	report := NewReporter(src).ComplianceReport(base, base.Add(24*time.Hour))
	if report.TotalIncidents != 1 || report.Violations[0].EventID != "inside" {
		t.Errorf("expected only the in-period event, got %+v", report.Violations)
	}
}
