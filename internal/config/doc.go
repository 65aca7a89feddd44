// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

/*
Package config provides layered configuration management for Fleetwatch.

Configuration is loaded with Koanf v2 from three sources, later sources
overriding earlier ones:

 1. Built-in defaults (always present, the system runs with zero config)
 2. An optional YAML file (config.yaml, or the path in CONFIG_PATH)
 3. Environment variables (HTTP_PORT, ENGINE_WORKERS, NATS_URL, ...)

The loaded Config is validated before use; an invalid configuration fails
startup rather than producing undefined runtime behavior.

# Example

	cfg, err := config.LoadWithKoanf()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(cfg.Addr())

# Sections

  - server: HTTP bind address, timeouts, environment mode
  - engine: worker pool size, bounded queue, retention, degradation ratio
  - analyzer: risk scoring thresholds and weights
  - patterns: pattern registry seeding
  - alerts: escalation delay, TTL, trusted contact
  - dispatch: per-channel timeout and webhook gateways
  - compliance: durable sink location and retention
  - nats: optional broker ingest
  - api: CORS and rate limiting
  - logging: level, format, caller annotation
*/
package config
