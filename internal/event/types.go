// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

// Package event defines safety events, their severity classification, and
// the in-memory event store backing the 24-hour active query window.
package event

import (
	"time"

	"github.com/fleetwatch/fleetwatch/internal/telemetry"
)

// Severity is the discrete classification of a confirmed safety event.
type Severity string

const (
	SeverityLow       Severity = "LOW"
	SeverityMedium    Severity = "MEDIUM"
	SeverityHigh      Severity = "HIGH"
	SeverityCritical  Severity = "CRITICAL"
	SeverityEmergency Severity = "EMERGENCY"
)

// rank orders severities for comparisons.
var rank = map[Severity]int{
	SeverityLow:       0,
	SeverityMedium:    1,
	SeverityHigh:      2,
	SeverityCritical:  3,
	SeverityEmergency: 4,
}

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return rank[s] >= rank[other]
}

// SafetyEvent is a confirmed anomaly produced by the event factory from a
// fired pattern. Events are retained in memory for at least 24 hours for
// querying; durable retention is the compliance sink's concern.
type SafetyEvent struct {
	ID         string                `json:"id"`
	Type       string                `json:"type"` // triggering pattern ID
	Severity   Severity              `json:"severity"`
	Timestamp  time.Time             `json:"timestamp"`
	EntityID   string                `json:"entity_id"`
	EntityType telemetry.EntityType  `json:"entity_type"`
	DataPoints []telemetry.Metric    `json:"data_points"`

	// RiskScore is the raw context-adjusted risk from the analyzer.
	RiskScore float64 `json:"risk_score"`

	// MatchConfidence is the firing pattern's match confidence.
	MatchConfidence float64 `json:"match_confidence"`

	// AlertTriggered is true iff MatchConfidence exceeded 0.8 (strict).
	AlertTriggered bool `json:"alert_triggered"`

	// ResponseRequired is true iff RiskScore exceeded 0.7.
	ResponseRequired bool `json:"response_required"`

	// EscalationLevel is the 0-3 urgency tier derived from raw risk alone.
	EscalationLevel int `json:"escalation_level"`
}
