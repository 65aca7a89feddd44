// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package event

import "testing"

func TestClassifySeverityBreakpoints(t *testing.T) {
	tests := []struct {
		name       string
		risk       float64
		confidence float64
		want       Severity
	}{
		{"zero", 0, 0, SeverityLow},
		{"just below medium", 0.29, 1.0, SeverityLow},
		{"medium boundary", 0.3, 1.0, SeverityMedium},
		{"high boundary", 0.5, 1.0, SeverityHigh},
		{"critical boundary", 0.7, 1.0, SeverityCritical},
		{"emergency boundary", 0.9, 1.0, SeverityEmergency},
		{"confidence scales severity down", 0.9, 0.5, SeverityMedium}, // 0.45
		{"max", 1.0, 1.0, SeverityEmergency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifySeverity(tt.risk, tt.confidence); got != tt.want {
				t.Errorf("ClassifySeverity(%f, %f) = %s, want %s", tt.risk, tt.confidence, got, tt.want)
			}
		})
	}
}

func TestClassifySeverityMonotone(t *testing.T) {
	prev := SeverityLow
	for adjusted := 0.0; adjusted <= 1.0; adjusted += 0.01 {
		got := ClassifySeverity(adjusted, 1.0)
		if !got.AtLeast(prev) {
			t.Fatalf("severity decreased at adjusted=%f: %s -> %s", adjusted, prev, got)
		}
		prev = got
	}
}

func TestClassifyEscalationLevelUsesRawRisk(t *testing.T) {
	tests := []struct {
		risk float64
		want int
	}{
		{0.0, 0},
		{0.49, 0},
		{0.5, 1},
		{0.69, 1},
		{0.7, 2},
		{0.89, 2},
		{0.9, 3},
		{1.0, 3},
	}

	for _, tt := range tests {
		if got := ClassifyEscalationLevel(tt.risk); got != tt.want {
			t.Errorf("ClassifyEscalationLevel(%f) = %d, want %d", tt.risk, got, tt.want)
		}
	}
}

// The severity/escalation asymmetry: severity is scaled by confidence but the
// escalation level is not. A high-risk, low-confidence event keeps its full
// escalation tier while its severity drops.
func TestSeverityEscalationAsymmetry(t *testing.T) {
	risk, confidence := 0.95, 0.4

	if got := ClassifySeverity(risk, confidence); got != SeverityMedium { // 0.38
		t.Errorf("severity = %s, want MEDIUM", got)
	}
	if got := ClassifyEscalationLevel(risk); got != 3 {
		t.Errorf("escalation level = %d, want 3 (raw risk, confidence ignored)", got)
	}
}

func TestAlertTriggeredStrictBound(t *testing.T) {
	if AlertTriggered(0.8) {
		t.Error("confidence exactly 0.8 must not trigger an alert")
	}
	if !AlertTriggered(0.8000001) {
		t.Error("confidence above 0.8 must trigger an alert")
	}
	if AlertTriggered(0.79) {
		t.Error("confidence below 0.8 must not trigger an alert")
	}
}

func TestResponseRequiredStrictBound(t *testing.T) {
	if ResponseRequired(0.7) {
		t.Error("risk exactly 0.7 must not require response")
	}
	if !ResponseRequired(0.71) {
		t.Error("risk above 0.7 must require response")
	}
}
