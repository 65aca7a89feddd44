// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package monitor

import (
	"time"

	"github.com/fleetwatch/fleetwatch/internal/event"
	"github.com/fleetwatch/fleetwatch/internal/telemetry"
)

// DefaultReportPeriod is the report window when the caller gives none.
const DefaultReportPeriod = 24 * time.Hour

// Violation weights: an emergency incident costs twice a critical one in the
// compliance score.
const (
	criticalViolationWeight  = 0.5
	emergencyViolationWeight = 1.0
)

// Violation is one compliance-relevant incident inside the report period.
type Violation struct {
	EventID    string               `json:"event_id"`
	Type       string               `json:"type"`
	Severity   event.Severity       `json:"severity"`
	EntityID   string               `json:"entity_id"`
	EntityType telemetry.EntityType `json:"entity_type"`
	Timestamp  time.Time            `json:"timestamp"`
}

// ComplianceReport aggregates the safety events of one period.
type ComplianceReport struct {
	PeriodStart        time.Time   `json:"period_start"`
	PeriodEnd          time.Time   `json:"period_end"`
	TotalIncidents     int         `json:"total_incidents"`
	CriticalIncidents  int         `json:"critical_incidents"`
	EmergencyIncidents int         `json:"emergency_incidents"`
	ComplianceScore    float64     `json:"compliance_score"`
	Violations         []Violation `json:"violations"`
	GeneratedAt        time.Time   `json:"generated_at"`
}

// EventSource is the read-only slice of the event store the reporter needs.
// Reports read a snapshot and never mutate the store, so report generation
// cannot block or fail live ingestion.
type EventSource interface {
	GetInPeriod(from, to time.Time) []*event.SafetyEvent
}

// Reporter produces compliance reports from retained safety events.
type Reporter struct {
	events EventSource
	now    func() time.Time
}

// NewReporter creates a reporter over the given event source.
func NewReporter(events EventSource) *Reporter {
	return &Reporter{
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ComplianceReport builds the report for [from, to). Each zero bound defaults
// independently: a zero end means now, a zero start means DefaultReportPeriod
// before the end.
//
// The score is deterministic: 1 minus the weighted share of critical and
// emergency incidents among all incidents in the period, clamped to [0, 1].
// A period with no incidents scores a clean 1.0.
func (r *Reporter) ComplianceReport(from, to time.Time) *ComplianceReport {
	if to.IsZero() {
		to = r.now()
	}
	if from.IsZero() {
		from = to.Add(-DefaultReportPeriod)
	}

	events := r.events.GetInPeriod(from, to)

	report := &ComplianceReport{
		PeriodStart: from,
		PeriodEnd:   to,
		GeneratedAt: r.now(),
	}

	weighted := 0.0
	for _, e := range events {
		report.TotalIncidents++
		switch e.Severity {
		case event.SeverityCritical:
			report.CriticalIncidents++
			weighted += criticalViolationWeight
		case event.SeverityEmergency:
			report.EmergencyIncidents++
			weighted += emergencyViolationWeight
		default:
			continue
		}
		report.Violations = append(report.Violations, Violation{
			EventID:    e.ID,
			Type:       e.Type,
			Severity:   e.Severity,
			EntityID:   e.EntityID,
			EntityType: e.EntityType,
			Timestamp:  e.Timestamp,
		})
	}

	report.ComplianceScore = 1.0
	if report.TotalIncidents > 0 {
		score := 1.0 - weighted/float64(report.TotalIncidents)
		if score < 0 {
			score = 0
		}
		report.ComplianceScore = score
	}

	return report
}
