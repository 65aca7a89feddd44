// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package ingest

import "testing"

func TestApplyDefaultsFillsEmptyFields(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()

	if cfg.URL == "" {
		t.Error("expected default URL")
	}
	if cfg.Subject == "" {
		t.Error("expected default subject")
	}
	if cfg.QueueGroup == "" {
		t.Error("expected default queue group")
	}
	if cfg.DurableName == "" {
		t.Error("expected default durable name")
	}
	if cfg.SubscribersCount < 1 {
		t.Errorf("expected at least one subscriber, got %d", cfg.SubscribersCount)
	}
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	in := Config{
		URL:              "nats://broker:4222",
		Subject:          "fleet.telemetry",
		QueueGroup:       "custom",
		DurableName:      "custom-durable",
		SubscribersCount: 4,
	}
	cfg := in
	cfg.applyDefaults()
	if cfg != in {
		t.Errorf("explicit config changed: got %+v, want %+v", cfg, in)
	}
}
