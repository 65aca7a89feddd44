// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/fleetwatch/fleetwatch/internal/pattern"
	"github.com/fleetwatch/fleetwatch/internal/telemetry"
)

// Factory turns a fired pattern match into a typed SafetyEvent.
type Factory struct {
	// now is swapped in tests for deterministic timestamps.
	now func() time.Time
}

// NewFactory creates an event factory.
func NewFactory() *Factory {
	return &Factory{now: func() time.Time { return time.Now().UTC() }}
}

// FromMatch builds a SafetyEvent from one analysis and one fired pattern.
// Each fired pattern produces an independent event.
func (f *Factory) FromMatch(analysis *telemetry.Analysis, match pattern.Match) *SafetyEvent {
	ts := analysis.Timestamp
	if ts.IsZero() {
		ts = f.now()
	}

	return &SafetyEvent{
		ID:               uuid.New().String(),
		Type:             match.Pattern.ID,
		Severity:         ClassifySeverity(analysis.RiskScore, match.Confidence),
		Timestamp:        ts,
		EntityID:         analysis.EntityID,
		EntityType:       analysis.EntityType,
		DataPoints:       analysis.Metrics,
		RiskScore:        analysis.RiskScore,
		MatchConfidence:  match.Confidence,
		AlertTriggered:   AlertTriggered(match.Confidence),
		ResponseRequired: ResponseRequired(analysis.RiskScore),
		EscalationLevel:  ClassifyEscalationLevel(analysis.RiskScore),
	}
}
