// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/fleetwatch/config.yaml",
	"/etc/fleetwatch/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults, applied first and then
// overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8085,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Engine: EngineConfig{
			QueueSize:          1024,
			Workers:            8,
			EventRetention:     48 * time.Hour,
			JanitorInterval:    time.Hour,
			DegradedQueueRatio: 0.8,
		},
		Analyzer: AnalyzerConfig{
			DefaultSpeedLimit:  100,
			SpeedLimits:        map[string]float64{},
			BehaviorWarn:       0.5,
			BehaviorCritical:   0.8,
			DefaultWeight:      0.5,
			NonNativeRiskBoost: 1.15,
		},
		Patterns: PatternsConfig{
			File:         "",
			SeedDefaults: true,
		},
		Alerts: AlertsConfig{
			EscalationDelayMs: 60_000,
			TTL:               24 * time.Hour,
			TrustedContactID:  "",
		},
		Dispatch: DispatchConfig{
			ChannelTimeout: 5 * time.Second,
			Webhooks:       nil, // Channels without a gateway use the log transport
		},
		Compliance: ComplianceConfig{
			Path:          "/data/fleetwatch/compliance",
			RetentionDays: 90,
		},
		NATS: NATSConfig{
			Enabled:          false,
			URL:              "nats://127.0.0.1:4222",
			Subject:          "telemetry.submitted",
			QueueGroup:       "fleetwatch",
			DurableName:      "telemetry-processor",
			SubscribersCount: 4,
		},
		API: APIConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps flat environment variable names to nested koanf
// config paths. Unmapped variables are skipped so random environment noise
// cannot pollute the config.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - ENGINE_WORKERS -> engine.workers
//   - NATS_URL -> nats.url
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",
		"environment":  "server.environment",

		// Engine mappings
		"engine_queue_size":    "engine.queue_size",
		"engine_workers":       "engine.workers",
		"event_retention":      "engine.event_retention",
		"janitor_interval":     "engine.janitor_interval",
		"degraded_queue_ratio": "engine.degraded_queue_ratio",

		// Analyzer mappings
		"default_speed_limit":   "analyzer.default_speed_limit",
		"behavior_warn":         "analyzer.behavior_warn",
		"behavior_critical":     "analyzer.behavior_critical",
		"default_metric_weight": "analyzer.default_weight",
		"non_native_risk_boost": "analyzer.non_native_risk_boost",

		// Pattern mappings
		"patterns_file":          "patterns.file",
		"patterns_seed_defaults": "patterns.seed_defaults",

		// Alert mappings
		"escalation_delay_ms": "alerts.escalation_delay_ms",
		"alert_ttl":           "alerts.ttl",
		"trusted_contact_id":  "alerts.trusted_contact_id",

		// Dispatch mappings
		"channel_timeout": "dispatch.channel_timeout",

		// Compliance mappings
		"compliance_path":           "compliance.path",
		"compliance_retention_days": "compliance.retention_days",

		// NATS mappings
		"nats_enabled":      "nats.enabled",
		"nats_url":          "nats.url",
		"nats_subject":      "nats.subject",
		"nats_queue_group":  "nats.queue_group",
		"nats_durable_name": "nats.durable_name",
		"nats_subscribers":  "nats.subscribers_count",

		// API mappings
		"cors_origins":        "api.cors_origins",
		"rate_limit_requests": "api.rate_limit_reqs",
		"rate_limit_window":   "api.rate_limit_window",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices when
// they arrive via environment variables.
var sliceConfigPaths = []string{
	"api.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars arrive as strings; YAML values are already
// slices and are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// WatchConfigFile sets up a file watcher for hot-reload capability. The
// caller is responsible for mutex protection when swapping configuration
// during reloads.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)
	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
