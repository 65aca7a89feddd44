// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/fleetwatch/fleetwatch/internal/alert"
)

// WebhookConfig configures an outbound webhook gateway for one channel.
type WebhookConfig struct {
	Channel alert.Channel     `json:"channel"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"` // Custom headers (e.g., auth)

	// RateLimitMs is the minimum interval between gateway requests.
	RateLimitMs int `json:"rate_limit_ms"`

	// TimeoutMs is the HTTP client timeout.
	TimeoutMs int `json:"timeout_ms"`

	// FailureThreshold is the consecutive-failure count that opens the
	// circuit breaker.
	FailureThreshold uint32 `json:"failure_threshold"`

	// BreakerTimeoutMs is how long the breaker stays open before probing.
	BreakerTimeoutMs int `json:"breaker_timeout_ms"`
}

// webhookPayload is the JSON body posted to the gateway.
type webhookPayload struct {
	Alert      *alert.SafetyAlert `json:"alert"`
	Recipients []alert.Recipient  `json:"recipients"`
	Channel    alert.Channel      `json:"channel"`
	Timestamp  time.Time          `json:"timestamp"`
	Source     string             `json:"source"`
}

// WebhookTransport posts alerts to an external notification gateway. A
// circuit breaker isolates a failing gateway so dispatch latency stays
// bounded, and a rate limiter smooths bursts toward it.
type WebhookTransport struct {
	channel alert.Channel
	url     string
	headers map[string]string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewWebhookTransport creates a webhook transport from the config, applying
// defaults for unset tuning fields.
func NewWebhookTransport(cfg WebhookConfig) *WebhookTransport {
	if cfg.RateLimitMs <= 0 {
		cfg.RateLimitMs = 100
	}
	if cfg.TimeoutMs <= 0 {
		cfg.TimeoutMs = 10_000
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.BreakerTimeoutMs <= 0 {
		cfg.BreakerTimeoutMs = 30_000
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	settings := gobreaker.Settings{
		Name:    fmt.Sprintf("webhook-%s", cfg.Channel),
		Timeout: time.Duration(cfg.BreakerTimeoutMs) * time.Millisecond,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
	}

	return &WebhookTransport{
		channel: cfg.Channel,
		url:     cfg.URL,
		headers: headers,
		client:  &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
		limiter: rate.NewLimiter(rate.Every(time.Duration(cfg.RateLimitMs)*time.Millisecond), 1),
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

// Channel returns the served channel.
func (t *WebhookTransport) Channel() alert.Channel {
	return t.channel
}

// BreakerState reports the circuit breaker state for monitoring.
func (t *WebhookTransport) BreakerState() string {
	return t.breaker.State().String()
}

// Send posts the alert payload to the gateway. Errors from an open breaker
// are returned immediately without touching the network.
func (t *WebhookTransport) Send(ctx context.Context, a *alert.SafetyAlert, recipients []alert.Recipient) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := t.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, t.post(ctx, a, recipients)
	})
	return err
}

func (t *WebhookTransport) post(ctx context.Context, a *alert.SafetyAlert, recipients []alert.Recipient) error {
	payload := webhookPayload{
		Alert:      a,
		Recipients: recipients,
		Channel:    t.channel,
		Timestamp:  time.Now().UTC(),
		Source:     "fleetwatch",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range t.headers {
		req.Header.Set(key, value)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
