// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

// Package main is the entry point for the Fleetwatch server.
//
// Fleetwatch ingests per-entity telemetry (vehicles, drivers, passengers),
// scores it against a configurable anomaly pattern set, and escalates
// unacknowledged critical alerts across notification channels.
//
// # Startup Order
//
//  1. Configuration: Koanf v2 layered load (defaults, config.yaml, env vars)
//  2. Logging: zerolog, JSON or console per config
//  3. Compliance sink: BadgerDB event retention (in-memory when no path set)
//  4. Pattern registry: built-in defaults and/or a JSON pattern file
//  5. Pipeline: analyzer, matcher, event factory, alert generator,
//     notification dispatcher, escalation scheduler
//  6. Supervisor tree: engine workers, janitors, websocket hub, broker
//     ingest (build tag nats), HTTP server
//
// # Build Tags
//
//	go build -tags nats ./cmd/server   # enable NATS JetStream telemetry ingest
//
// # Signal Handling
//
// SIGINT/SIGTERM cancel the root context; the supervisor tree drains the
// HTTP server, engine workers, and hub within the shutdown timeout.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/alert"
	"github.com/fleetwatch/fleetwatch/internal/api"
	"github.com/fleetwatch/fleetwatch/internal/compliance"
	"github.com/fleetwatch/fleetwatch/internal/config"
	"github.com/fleetwatch/fleetwatch/internal/dispatch"
	"github.com/fleetwatch/fleetwatch/internal/engine"
	"github.com/fleetwatch/fleetwatch/internal/escalation"
	"github.com/fleetwatch/fleetwatch/internal/event"
	"github.com/fleetwatch/fleetwatch/internal/ingest"
	"github.com/fleetwatch/fleetwatch/internal/logging"
	"github.com/fleetwatch/fleetwatch/internal/metrics"
	"github.com/fleetwatch/fleetwatch/internal/monitor"
	"github.com/fleetwatch/fleetwatch/internal/pattern"
	"github.com/fleetwatch/fleetwatch/internal/supervisor"
	"github.com/fleetwatch/fleetwatch/internal/telemetry"
	ws "github.com/fleetwatch/fleetwatch/internal/websocket"
)

// metricsBroadcastInterval paces counter snapshots pushed to dashboards.
const metricsBroadcastInterval = 10 * time.Second

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("addr", cfg.Addr()).
		Str("environment", cfg.Server.Environment).
		Msg("fleetwatch starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Durable compliance sink. An empty path keeps it in memory, which is
	// only sensible for development.
	sink, err := compliance.Open(compliance.Options{
		Path:      cfg.Compliance.Path,
		Retention: time.Duration(cfg.Compliance.RetentionDays) * 24 * time.Hour,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open compliance sink")
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logging.Warn().Err(err).Msg("compliance sink close failed")
		}
	}()

	registry := pattern.NewRegistry()
	if cfg.Patterns.SeedDefaults {
		if err := pattern.Seed(registry, pattern.DefaultPatterns()); err != nil {
			logging.Fatal().Err(err).Msg("failed to seed default patterns")
		}
	}
	if cfg.Patterns.File != "" {
		patterns, err := pattern.LoadFile(cfg.Patterns.File)
		if err != nil {
			logging.Fatal().Err(err).Str("file", cfg.Patterns.File).Msg("failed to load pattern file")
		}
		if err := pattern.Seed(registry, patterns); err != nil {
			logging.Fatal().Err(err).Msg("failed to register file patterns")
		}
	}
	logging.Info().Int("patterns", registry.Len()).Msg("pattern registry ready")

	adjuster := telemetry.NewStaticAdjuster(cfg.Analyzer.NonNativeRiskBoost)
	analyzer := telemetry.NewAnalyzer(analyzerConfig(cfg), adjuster)
	matcher := pattern.NewMatcher(registry, adjuster)

	events := event.NewStore(cfg.Engine.EventRetention)
	alerts := alert.NewStore(cfg.Alerts.TTL)
	tracker := monitor.NewTracker()
	reporter := monitor.NewReporter(events)
	hub := ws.NewHub()

	generator := alert.NewGenerator(
		alert.GeneratorConfig{EscalationDelayMs: cfg.Alerts.EscalationDelayMs},
		nil,
		func(id string) string {
			if p, ok := registry.Get(id); ok {
				return p.Name
			}
			return id
		},
	)

	dispatcher := dispatch.NewDispatcher(cfg.Dispatch.ChannelTimeout)
	for _, whCfg := range cfg.Dispatch.Webhooks {
		dispatcher.Register(dispatch.NewWebhookTransport(dispatch.WebhookConfig{
			Channel:          alert.Channel(whCfg.Channel),
			URL:              whCfg.URL,
			Headers:          whCfg.Headers,
			RateLimitMs:      whCfg.RateLimitMs,
			TimeoutMs:        whCfg.TimeoutMs,
			FailureThreshold: whCfg.FailureThreshold,
			BreakerTimeoutMs: whCfg.BreakerTimeoutMs,
		}))
		logging.Info().Str("channel", whCfg.Channel).Str("url", whCfg.URL).Msg("webhook transport registered")
	}

	scheduler := escalation.NewScheduler(dispatcher, alerts, func(a *alert.SafetyAlert, rule alert.EscalationRule) {
		tracker.EmergencyResponseTriggered()
		metrics.EscalationsTriggered.Inc()
		hub.BroadcastAlert(a)
	})
	defer scheduler.Shutdown()

	eng := engine.New(engine.Config{
		QueueSize:          cfg.Engine.QueueSize,
		Workers:            cfg.Engine.Workers,
		DegradedQueueRatio: cfg.Engine.DegradedQueueRatio,
	}, engine.Deps{
		Analyzer:   analyzer,
		Registry:   registry,
		Matcher:    matcher,
		Factory:    event.NewFactory(),
		Events:     events,
		Generator:  generator,
		Alerts:     alerts,
		Dispatcher: dispatcher,
		Scheduler:  scheduler,
		Tracker:    tracker,
		Sink:       sink,
		Hub:        hub,
	})

	handler := api.NewHandler(eng, events, alerts, registry, tracker, reporter, hub)
	router := api.NewRouter(handler, api.RouterConfig{
		CORSOrigins:     cfg.API.CORSOrigins,
		RateLimitReqs:   cfg.API.RateLimitReqs,
		RateLimitWindow: cfg.API.RateLimitWindow,
	})
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	tree.AddPipelineService(supervisor.NewRunnerService("safety-engine", eng.RunWithContext))
	tree.AddPipelineService(supervisor.NewRunnerService("event-janitor", func(ctx context.Context) error {
		return events.RunJanitor(ctx, cfg.Engine.JanitorInterval)
	}))
	tree.AddPipelineService(supervisor.NewRunnerService("alert-janitor", func(ctx context.Context) error {
		return alerts.RunJanitor(ctx, cfg.Engine.JanitorInterval)
	}))

	tree.AddMessagingService(supervisor.NewRunnerService("websocket-hub", hub.RunWithContext))
	tree.AddMessagingService(supervisor.NewRunnerService("metrics-broadcast", func(ctx context.Context) error {
		ticker := time.NewTicker(metricsBroadcastInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				hub.BroadcastMetrics(tracker.Snapshot())
			}
		}
	}))

	if cfg.NATS.Enabled {
		consumer, err := ingest.NewConsumer(ingest.Config{
			URL:              cfg.NATS.URL,
			Subject:          cfg.NATS.Subject,
			QueueGroup:       cfg.NATS.QueueGroup,
			DurableName:      cfg.NATS.DurableName,
			SubscribersCount: cfg.NATS.SubscribersCount,
		}, eng)
		if err != nil {
			// Without the nats build tag this is a configuration mismatch,
			// not a transient failure.
			logging.Fatal().Err(err).Msg("failed to create telemetry consumer")
		}
		defer func() {
			if err := consumer.Close(); err != nil {
				logging.Warn().Err(err).Msg("telemetry consumer close failed")
			}
		}()
		tree.AddMessagingService(supervisor.NewRunnerService("telemetry-ingest", consumer.Run))
		logging.Info().Str("subject", cfg.NATS.Subject).Msg("broker ingest enabled")
	}

	tree.AddAPIService(supervisor.NewHTTPServerService(server, 10*time.Second))

	done := tree.ServeBackground(ctx)
	logging.Info().Msg("fleetwatch started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("shutdown requested")
		cancel()
		select {
		case <-done:
		case <-time.After(30 * time.Second):
			logging.Error().Msg("supervisor tree did not stop in time")
			if report, err := tree.UnstoppedServiceReport(); err == nil {
				for _, svc := range report {
					logging.Error().Str("service", svc.Name).Msg("service failed to stop")
				}
			}
		}
	case err := <-done:
		if err != nil && err != context.Canceled {
			logging.Error().Err(err).Msg("supervisor tree terminated")
			os.Exit(1)
		}
	}

	logging.Info().Msg("fleetwatch stopped")
}

// analyzerConfig merges the configured risk knobs over the built-in tables.
func analyzerConfig(cfg *config.Config) telemetry.AnalyzerConfig {
	ac := telemetry.DefaultAnalyzerConfig()
	if cfg.Analyzer.DefaultSpeedLimit > 0 {
		ac.DefaultSpeedLimit = cfg.Analyzer.DefaultSpeedLimit
	}
	for region, limit := range cfg.Analyzer.SpeedLimits {
		ac.SpeedLimits[region] = limit
	}
	if cfg.Analyzer.BehaviorWarn > 0 {
		ac.BehaviorThresholds.Warn = cfg.Analyzer.BehaviorWarn
	}
	if cfg.Analyzer.BehaviorCritical > 0 {
		ac.BehaviorThresholds.Crit = cfg.Analyzer.BehaviorCritical
	}
	if cfg.Analyzer.DefaultWeight > 0 {
		ac.DefaultWeight = cfg.Analyzer.DefaultWeight
	}
	return ac
}
