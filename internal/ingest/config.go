// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

// Package ingest consumes telemetry records from a NATS JetStream subject
// and feeds them into the safety engine. It compiles to a stub unless the
// binary is built with the nats tag.
package ingest

// Config holds the broker ingest settings.
type Config struct {
	URL              string
	Subject          string
	QueueGroup       string
	DurableName      string
	SubscribersCount int
}

func (c *Config) applyDefaults() {
	if c.URL == "" {
		c.URL = "nats://127.0.0.1:4222"
	}
	if c.Subject == "" {
		c.Subject = "telemetry.submitted"
	}
	if c.QueueGroup == "" {
		c.QueueGroup = "fleetwatch"
	}
	if c.DurableName == "" {
		c.DurableName = "fleetwatch-ingest"
	}
	if c.SubscribersCount <= 0 {
		c.SubscribersCount = 1
	}
}
