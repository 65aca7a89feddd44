// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package alert

import (
	"strings"
	"testing"

	"github.com/fleetwatch/fleetwatch/internal/event"
	"github.com/fleetwatch/fleetwatch/internal/telemetry"
)

func eventWithSeverity(sev event.Severity) *event.SafetyEvent {
	return &event.SafetyEvent{
		ID:              "ev-1",
		Type:            "overspeed",
		Severity:        sev,
		EntityID:        "d-1",
		EntityType:      telemetry.EntityDriver,
		AlertTriggered:  true,
		EscalationLevel: 2,
	}
}

func TestGeneratePriorityTable(t *testing.T) {
	tests := []struct {
		severity event.Severity
		want     Priority
	}{
		{event.SeverityLow, PriorityLow},
		{event.SeverityMedium, PriorityMedium},
		{event.SeverityHigh, PriorityHigh},
		{event.SeverityCritical, PriorityUrgent},
		{event.SeverityEmergency, PriorityEmergency},
	}

	g := NewGenerator(GeneratorConfig{}, nil, nil)
	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			a := g.Generate(eventWithSeverity(tt.severity), nil)
			if a.Priority != tt.want {
				t.Errorf("priority = %s, want %s", a.Priority, tt.want)
			}
		})
	}
}

func TestGenerateChannelLadder(t *testing.T) {
	tests := []struct {
		severity event.Severity
		want     []Channel
	}{
		{event.SeverityLow, []Channel{ChannelPush, ChannelInApp}},
		{event.SeverityMedium, []Channel{ChannelPush, ChannelInApp}},
		{event.SeverityHigh, []Channel{ChannelPush, ChannelInApp, ChannelSMS}},
		{event.SeverityCritical, []Channel{ChannelPush, ChannelInApp, ChannelSMS, ChannelCall}},
		{event.SeverityEmergency, []Channel{ChannelPush, ChannelInApp, ChannelSMS, ChannelCall, ChannelEmergencyServices}},
	}

	g := NewGenerator(GeneratorConfig{}, nil, nil)
	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			a := g.Generate(eventWithSeverity(tt.severity), nil)
			if len(a.Channels) != len(tt.want) {
				t.Fatalf("channels = %v, want %v", a.Channels, tt.want)
			}
			for i := range tt.want {
				if a.Channels[i] != tt.want[i] {
					t.Errorf("channels[%d] = %s, want %s", i, a.Channels[i], tt.want[i])
				}
			}
		})
	}
}

// Every URGENT/EMERGENCY alert requires acknowledgment and has at least two
// recipients, the second being a trusted contact with a restricted (SMS-only)
// channel set.
func TestGenerateUrgentInvariants(t *testing.T) {
	g := NewGenerator(GeneratorConfig{}, nil, nil)

	for _, sev := range []event.Severity{event.SeverityCritical, event.SeverityEmergency} {
		t.Run(string(sev), func(t *testing.T) {
			a := g.Generate(eventWithSeverity(sev), nil)

			if !a.AcknowledgmentRequired {
				t.Error("expected acknowledgment to be required")
			}
			if len(a.Recipients) < 2 {
				t.Fatalf("expected >= 2 recipients, got %d", len(a.Recipients))
			}

			trusted := a.Recipients[1]
			if trusted.Role != RoleTrustedContact {
				t.Errorf("second recipient role = %s, want trusted_contact", trusted.Role)
			}
			if len(trusted.Channels) != 1 || trusted.Channels[0] != ChannelSMS {
				t.Errorf("trusted contact channels = %v, want [sms] only", trusted.Channels)
			}
		})
	}
}

// noTrustedDirectory is a directory with no trusted contacts on file.
type noTrustedDirectory struct {
	StaticDirectory
}

func (d *noTrustedDirectory) Trusted(entityID string) (Recipient, bool) {
	return Recipient{}, false
}

// The two-recipient invariant must survive directories without a trusted
// contact: an admin recipient stands in.
func TestGenerateFallsBackToAdminWithoutTrustedContact(t *testing.T) {
	g := NewGenerator(GeneratorConfig{}, &noTrustedDirectory{}, nil)
	a := g.Generate(eventWithSeverity(event.SeverityEmergency), nil)

	if len(a.Recipients) < 2 {
		t.Fatalf("expected >= 2 recipients, got %d", len(a.Recipients))
	}
	fallback := a.Recipients[1]
	if fallback.Role != RoleAdmin {
		t.Errorf("fallback recipient role = %s, want admin", fallback.Role)
	}
	if len(fallback.Channels) != 1 || fallback.Channels[0] != ChannelSMS {
		t.Errorf("fallback channels = %v, want [sms] only", fallback.Channels)
	}
}

func TestGenerateLowSeverityHasSingleRecipientNoAck(t *testing.T) {
	g := NewGenerator(GeneratorConfig{}, nil, nil)
	a := g.Generate(eventWithSeverity(event.SeverityHigh), nil)

	if a.AcknowledgmentRequired {
		t.Error("HIGH severity must not require acknowledgment")
	}
	if len(a.Recipients) != 1 {
		t.Errorf("expected only the primary recipient, got %d", len(a.Recipients))
	}
	if len(a.EscalationRules) != 0 {
		t.Error("expected no escalation rules below CRITICAL")
	}
}

func TestGenerateEscalationRules(t *testing.T) {
	g := NewGenerator(GeneratorConfig{EscalationDelayMs: 30_000}, nil, nil)
	a := g.Generate(eventWithSeverity(event.SeverityEmergency), nil)

	if len(a.EscalationRules) != 1 {
		t.Fatalf("expected 1 escalation rule, got %d", len(a.EscalationRules))
	}

	rule := a.EscalationRules[0]
	if rule.TriggerDelayMs != 30_000 {
		t.Errorf("trigger delay = %d, want 30000", rule.TriggerDelayMs)
	}
	if rule.Condition != ConditionNoAcknowledgment {
		t.Errorf("condition = %s, want no_acknowledgment", rule.Condition)
	}
	if len(rule.Recipients) != 2 || rule.Recipients[0] != RoleEmergencyServices || rule.Recipients[1] != RoleAdmin {
		t.Errorf("escalated recipients = %v, want [emergency_services admin]", rule.Recipients)
	}
	if len(rule.Channels) != 2 || rule.Channels[0] != ChannelCall || rule.Channels[1] != ChannelSMS {
		t.Errorf("escalated channels = %v, want [call sms]", rule.Channels)
	}
}

func TestGenerateLocalizedContent(t *testing.T) {
	g := NewGenerator(GeneratorConfig{}, nil, func(id string) string { return "Overspeed" })

	profile := &telemetry.ContextProfile{Language: "es", SecondaryLanguage: "en"}
	a := g.Generate(eventWithSeverity(event.SeverityCritical), profile)

	if !strings.Contains(a.Message, "CRÍTICA") {
		t.Errorf("expected Spanish primary message, got %q", a.Message)
	}
	if !strings.Contains(a.MessageSecondary, "CRITICAL") {
		t.Errorf("expected English secondary message, got %q", a.MessageSecondary)
	}
	if len(a.RequiredActions) == 0 {
		t.Error("expected localized required actions for CRITICAL")
	}
	if !strings.Contains(a.Message, "Overspeed") {
		t.Errorf("expected pattern display name in message, got %q", a.Message)
	}
}

func TestGenerateUnknownLocaleFallsBack(t *testing.T) {
	g := NewGenerator(GeneratorConfig{}, nil, nil)
	profile := &telemetry.ContextProfile{Language: "fr"}
	a := g.Generate(eventWithSeverity(event.SeverityHigh), profile)

	if !strings.Contains(a.Message, "Safety alert") {
		t.Errorf("expected English fallback, got %q", a.Message)
	}
}
