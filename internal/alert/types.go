// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

// Package alert defines safety alerts, recipient and channel resolution,
// and the in-memory alert store with idempotent acknowledgment.
package alert

import (
	"time"

	"github.com/fleetwatch/fleetwatch/internal/event"
	"github.com/fleetwatch/fleetwatch/internal/telemetry"
)

// Priority is the alert urgency tier derived from event severity.
type Priority string

const (
	PriorityLow       Priority = "LOW"
	PriorityMedium    Priority = "MEDIUM"
	PriorityHigh      Priority = "HIGH"
	PriorityUrgent    Priority = "URGENT"
	PriorityEmergency Priority = "EMERGENCY"
)

// Channel names a notification delivery channel.
type Channel string

const (
	ChannelPush              Channel = "push"
	ChannelInApp             Channel = "in_app"
	ChannelSMS               Channel = "sms"
	ChannelCall              Channel = "call"
	ChannelEmergencyServices Channel = "emergency_services"
)

// Role identifies what kind of contact a recipient is.
type Role string

const (
	RoleDriver            Role = "driver"
	RolePassenger         Role = "passenger"
	RoleAdmin             Role = "admin"
	RoleEmergencyServices Role = "emergency_services"
	RoleTrustedContact    Role = "trusted_contact"
)

// Recipient is one resolved alert contact with its enabled channels.
type Recipient struct {
	ID       string    `json:"id"`
	Role     Role      `json:"role"`
	Channels []Channel `json:"channels"`
	Language string    `json:"language,omitempty"`
}

// EscalationRule describes one timed escalation step attached to an alert
// at creation time. Rules are read-only thereafter.
type EscalationRule struct {
	Level          int       `json:"level"`
	TriggerDelayMs int64     `json:"trigger_delay_ms"`
	Condition      string    `json:"condition"` // no_acknowledgment
	Recipients     []Role    `json:"recipients"`
	Channels       []Channel `json:"channels"`
}

// ConditionNoAcknowledgment is the only escalation condition currently
// produced by the generator.
const ConditionNoAcknowledgment = "no_acknowledgment"

// DeliveryAttempt records one per-channel dispatch outcome on an alert.
type DeliveryAttempt struct {
	Channel   Channel   `json:"channel"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
	Escalated bool      `json:"escalated,omitempty"`
}

// SafetyAlert is a generated alert for one triggering safety event (1:1).
// It is mutated only by acknowledgment (idempotent) and by appending
// delivery attempts.
type SafetyAlert struct {
	ID      string `json:"id"`
	EventID string `json:"event_id"`

	Priority               Priority         `json:"priority"`
	Recipients             []Recipient      `json:"recipients"`
	Channels               []Channel        `json:"channels"`
	AcknowledgmentRequired bool             `json:"acknowledgment_required"`
	EscalationRules        []EscalationRule `json:"escalation_rules,omitempty"`

	EntityID   string               `json:"entity_id"`
	EntityType telemetry.EntityType `json:"entity_type"`
	Severity   event.Severity       `json:"severity"`

	Message          string   `json:"message"`
	MessageSecondary string   `json:"message_secondary,omitempty"`
	RequiredActions  []string `json:"required_actions,omitempty"`

	CreatedAt      time.Time  `json:"created_at"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`

	Attempts []DeliveryAttempt `json:"attempts,omitempty"`
}

// Directory resolves alert recipients for an entity. Implementations are
// expected to consult whatever contact registry the deployment uses; the
// engine only relies on this contract.
type Directory interface {
	// Primary returns the entity's primary contact. Always present.
	Primary(entityID string, entityType telemetry.EntityType) Recipient

	// Trusted returns the entity's trusted secondary contact, if any.
	Trusted(entityID string) (Recipient, bool)
}

// StaticDirectory is the built-in Directory: the primary contact mirrors the
// entity itself and the trusted contact is a configured fallback. Deployments
// with a real contact registry substitute their own Directory.
type StaticDirectory struct {
	// TrustedContactID is the trusted secondary contact for every entity.
	TrustedContactID string
}

// Primary implements Directory.
func (d *StaticDirectory) Primary(entityID string, entityType telemetry.EntityType) Recipient {
	role := RoleDriver
	switch entityType {
	case telemetry.EntityPassenger:
		role = RolePassenger
	case telemetry.EntityVehicle, telemetry.EntitySystem:
		role = RoleAdmin
	}
	return Recipient{
		ID:       entityID,
		Role:     role,
		Channels: []Channel{ChannelPush, ChannelInApp, ChannelSMS, ChannelCall},
	}
}

// Trusted implements Directory. The trusted contact carries a restricted
// channel set (SMS only): reduced contactability is part of the contract.
func (d *StaticDirectory) Trusted(entityID string) (Recipient, bool) {
	id := d.TrustedContactID
	if id == "" {
		id = "trusted-" + entityID
	}
	return Recipient{
		ID:       id,
		Role:     RoleTrustedContact,
		Channels: []Channel{ChannelSMS},
	}, true
}
