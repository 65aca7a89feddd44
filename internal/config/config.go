// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

// Package config loads and validates the Fleetwatch configuration from
// layered sources: built-in defaults, an optional YAML file, and environment
// variables, with environment taking highest precedence.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Engine     EngineConfig     `koanf:"engine"`
	Analyzer   AnalyzerConfig   `koanf:"analyzer"`
	Patterns   PatternsConfig   `koanf:"patterns"`
	Alerts     AlertsConfig     `koanf:"alerts"`
	Dispatch   DispatchConfig   `koanf:"dispatch"`
	Compliance ComplianceConfig `koanf:"compliance"`
	NATS       NATSConfig       `koanf:"nats"` // Optional: broker ingest alongside the HTTP surface
	API        APIConfig        `koanf:"api"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // "development" or "production"
}

// EngineConfig tunes the pipeline worker pool and bounded queue.
type EngineConfig struct {
	// QueueSize bounds the submission queue; overflow is rejected, never
	// buffered unboundedly.
	QueueSize int `koanf:"queue_size"`

	// Workers is the number of pipeline workers.
	Workers int `koanf:"workers"`

	// EventRetention is how long detected events stay queryable.
	EventRetention time.Duration `koanf:"event_retention"`

	// JanitorInterval is how often expired events and alerts are removed.
	JanitorInterval time.Duration `koanf:"janitor_interval"`

	// DegradedQueueRatio is the queue fill fraction above which the engine
	// reports degraded health.
	DegradedQueueRatio float64 `koanf:"degraded_queue_ratio"`
}

// AnalyzerConfig holds the risk scoring knobs.
type AnalyzerConfig struct {
	DefaultSpeedLimit  float64            `koanf:"default_speed_limit"`
	SpeedLimits        map[string]float64 `koanf:"speed_limits"` // per-region overrides
	BehaviorWarn       float64            `koanf:"behavior_warn"`
	BehaviorCritical   float64            `koanf:"behavior_critical"`
	DefaultWeight      float64            `koanf:"default_weight"`
	NonNativeRiskBoost float64            `koanf:"non_native_risk_boost"` // contextual adjustment factor
}

// PatternsConfig controls pattern registry seeding.
type PatternsConfig struct {
	// File is an optional JSON file of anomaly patterns loaded at startup.
	File string `koanf:"file"`

	// SeedDefaults loads the built-in pattern set when true.
	SeedDefaults bool `koanf:"seed_defaults"`
}

// AlertsConfig tunes alert generation and retention.
type AlertsConfig struct {
	EscalationDelayMs int64         `koanf:"escalation_delay_ms"`
	TTL               time.Duration `koanf:"ttl"`
	TrustedContactID  string        `koanf:"trusted_contact_id"`
}

// DispatchConfig holds the notification fan-out settings.
type DispatchConfig struct {
	ChannelTimeout time.Duration   `koanf:"channel_timeout"`
	Webhooks       []WebhookConfig `koanf:"webhooks"`
}

// WebhookConfig configures one outbound gateway, keyed by channel.
type WebhookConfig struct {
	Channel          string            `koanf:"channel"`
	URL              string            `koanf:"url"`
	Headers          map[string]string `koanf:"headers"`
	RateLimitMs      int               `koanf:"rate_limit_ms"`
	TimeoutMs        int               `koanf:"timeout_ms"`
	FailureThreshold uint32            `koanf:"failure_threshold"`
	BreakerTimeoutMs int               `koanf:"breaker_timeout_ms"`
}

// ComplianceConfig holds the durable event sink settings.
type ComplianceConfig struct {
	// Path is the sink database directory; empty keeps the sink in memory.
	Path string `koanf:"path"`

	// RetentionDays bounds how long persisted events are kept.
	RetentionDays int `koanf:"retention_days"`
}

// NATSConfig configures the optional broker ingest path.
type NATSConfig struct {
	Enabled          bool   `koanf:"enabled"`
	URL              string `koanf:"url"`
	Subject          string `koanf:"subject"`
	QueueGroup       string `koanf:"queue_group"`
	DurableName      string `koanf:"durable_name"`
	SubscribersCount int    `koanf:"subscribers_count"`
}

// APIConfig holds the query surface settings.
type APIConfig struct {
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateAnalyzer(); err != nil {
		return err
	}
	if err := c.validateDispatch(); err != nil {
		return err
	}
	if err := c.validateNATS(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	switch c.Server.Environment {
	case "development", "production":
	default:
		return fmt.Errorf("server.environment must be development or production, got %q", c.Server.Environment)
	}
	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.QueueSize < 1 {
		return fmt.Errorf("engine.queue_size must be positive, got %d", c.Engine.QueueSize)
	}
	if c.Engine.Workers < 1 {
		return fmt.Errorf("engine.workers must be positive, got %d", c.Engine.Workers)
	}
	if c.Engine.EventRetention < time.Hour {
		return fmt.Errorf("engine.event_retention must be at least 1h, got %v", c.Engine.EventRetention)
	}
	if c.Engine.DegradedQueueRatio <= 0 || c.Engine.DegradedQueueRatio > 1 {
		return fmt.Errorf("engine.degraded_queue_ratio must be in (0, 1], got %v", c.Engine.DegradedQueueRatio)
	}
	return nil
}

func (c *Config) validateAnalyzer() error {
	if c.Analyzer.DefaultSpeedLimit <= 0 {
		return fmt.Errorf("analyzer.default_speed_limit must be positive, got %v", c.Analyzer.DefaultSpeedLimit)
	}
	if c.Analyzer.BehaviorWarn < 0 || c.Analyzer.BehaviorWarn > 1 {
		return fmt.Errorf("analyzer.behavior_warn must be in [0, 1], got %v", c.Analyzer.BehaviorWarn)
	}
	if c.Analyzer.BehaviorCritical < c.Analyzer.BehaviorWarn || c.Analyzer.BehaviorCritical > 1 {
		return fmt.Errorf("analyzer.behavior_critical must be in [behavior_warn, 1], got %v", c.Analyzer.BehaviorCritical)
	}
	if c.Analyzer.NonNativeRiskBoost < 1 {
		return fmt.Errorf("analyzer.non_native_risk_boost must be >= 1.0, got %v", c.Analyzer.NonNativeRiskBoost)
	}
	return nil
}

func (c *Config) validateDispatch() error {
	seen := make(map[string]bool)
	for _, wh := range c.Dispatch.Webhooks {
		if wh.Channel == "" || wh.URL == "" {
			return fmt.Errorf("dispatch.webhooks entries require channel and url")
		}
		if !strings.HasPrefix(wh.URL, "http://") && !strings.HasPrefix(wh.URL, "https://") {
			return fmt.Errorf("dispatch.webhooks url must be http(s), got %q", wh.URL)
		}
		if seen[wh.Channel] {
			return fmt.Errorf("dispatch.webhooks has duplicate channel %q", wh.Channel)
		}
		seen[wh.Channel] = true
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats.enabled=true")
	}
	if c.NATS.Subject == "" {
		return fmt.Errorf("nats.subject is required when nats.enabled=true")
	}
	if c.NATS.SubscribersCount < 1 {
		return fmt.Errorf("nats.subscribers_count must be positive, got %d", c.NATS.SubscribersCount)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("logging.level must be one of trace/debug/info/warn/error/fatal, got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// Addr returns the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
