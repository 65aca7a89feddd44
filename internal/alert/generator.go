// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package alert

import (
	"time"

	"github.com/google/uuid"

	"github.com/fleetwatch/fleetwatch/internal/event"
	"github.com/fleetwatch/fleetwatch/internal/telemetry"
)

// DefaultEscalationDelayMs is the delay before an unacknowledged
// critical/emergency alert escalates.
const DefaultEscalationDelayMs = 60_000

// priorityBySeverity is the fixed severity-to-priority table.
var priorityBySeverity = map[event.Severity]Priority{
	event.SeverityLow:       PriorityLow,
	event.SeverityMedium:    PriorityMedium,
	event.SeverityHigh:      PriorityHigh,
	event.SeverityCritical:  PriorityUrgent,
	event.SeverityEmergency: PriorityEmergency,
}

// GeneratorConfig configures alert generation.
type GeneratorConfig struct {
	// EscalationDelayMs is the trigger delay for the default escalation
	// rule attached to critical/emergency alerts.
	EscalationDelayMs int64 `json:"escalation_delay_ms"`
}

// Generator resolves recipients, channels, message content and escalation
// rules for a triggered safety event.
type Generator struct {
	directory Directory
	delayMs   int64
	now       func() time.Time

	// patternNames maps pattern IDs to display names for messages.
	patternNames func(patternID string) string
}

// NewGenerator creates an alert generator. A nil directory falls back to the
// built-in StaticDirectory; nameFn may be nil, in which case the pattern ID
// is used verbatim in messages.
func NewGenerator(cfg GeneratorConfig, directory Directory, nameFn func(string) string) *Generator {
	if directory == nil {
		directory = &StaticDirectory{}
	}
	if cfg.EscalationDelayMs <= 0 {
		cfg.EscalationDelayMs = DefaultEscalationDelayMs
	}
	if nameFn == nil {
		nameFn = func(id string) string { return id }
	}
	return &Generator{
		directory:    directory,
		delayMs:      cfg.EscalationDelayMs,
		now:          func() time.Time { return time.Now().UTC() },
		patternNames: nameFn,
	}
}

// Generate builds the SafetyAlert for an alert-worthy event. The caller is
// responsible for only passing events with AlertTriggered set.
func (g *Generator) Generate(e *event.SafetyEvent, profile *telemetry.ContextProfile) *SafetyAlert {
	severity := e.Severity
	escalating := severity.AtLeast(event.SeverityCritical)

	a := &SafetyAlert{
		ID:         uuid.New().String(),
		EventID:    e.ID,
		Priority:   priorityBySeverity[severity],
		Channels:   channelLadder(severity),
		EntityID:   e.EntityID,
		EntityType: e.EntityType,
		Severity:   severity,
		CreatedAt:  g.now(),

		// Urgent and emergency alerts always demand acknowledgment.
		AcknowledgmentRequired: escalating,
	}

	a.Recipients = g.resolveRecipients(e, escalating)
	g.renderContent(a, e, profile)

	if escalating {
		a.EscalationRules = []EscalationRule{{
			Level:          e.EscalationLevel,
			TriggerDelayMs: g.delayMs,
			Condition:      ConditionNoAcknowledgment,
			Recipients:     []Role{RoleEmergencyServices, RoleAdmin},
			Channels:       []Channel{ChannelCall, ChannelSMS},
		}}
	}

	return a
}

// resolveRecipients always includes the primary entity contact and, for
// critical/emergency severities, appends the trusted secondary contact with
// its restricted channel set. When the directory knows no trusted contact,
// an admin recipient stands in: escalating alerts always carry at least two
// recipients.
func (g *Generator) resolveRecipients(e *event.SafetyEvent, escalating bool) []Recipient {
	recipients := []Recipient{g.directory.Primary(e.EntityID, e.EntityType)}
	if escalating {
		trusted, ok := g.directory.Trusted(e.EntityID)
		if !ok {
			trusted = Recipient{
				ID:       string(RoleAdmin),
				Role:     RoleAdmin,
				Channels: []Channel{ChannelSMS},
			}
		}
		recipients = append(recipients, trusted)
	}
	return recipients
}

// renderContent fills the locale-aware message and action fields.
func (g *Generator) renderContent(a *SafetyAlert, e *event.SafetyEvent, profile *telemetry.ContextProfile) {
	language := defaultLanguage
	secondary := ""
	if profile != nil {
		if profile.Language != "" {
			language = profile.Language
		}
		secondary = profile.SecondaryLanguage
	}

	name := g.patternNames(e.Type)
	a.Message = Message(e.Severity, language, name, e.EntityID)
	if secondary != "" && secondary != language {
		a.MessageSecondary = Message(e.Severity, secondary, name, e.EntityID)
	}
	a.RequiredActions = RequiredActions(e.Severity, language)
}

// channelLadder returns the severity-driven channel set:
// base {push, in_app}; HIGH adds sms; CRITICAL adds sms+call;
// EMERGENCY adds sms+call+emergency_services.
func channelLadder(severity event.Severity) []Channel {
	channels := []Channel{ChannelPush, ChannelInApp}
	switch severity {
	case event.SeverityHigh:
		channels = append(channels, ChannelSMS)
	case event.SeverityCritical:
		channels = append(channels, ChannelSMS, ChannelCall)
	case event.SeverityEmergency:
		channels = append(channels, ChannelSMS, ChannelCall, ChannelEmergencyServices)
	}
	return channels
}
