// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"

	"github.com/fleetwatch/fleetwatch/internal/alert"
)

func TestWebhookTransportPostsPayload(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s, want application/json", ct)
		}
		if auth := r.Header.Get("X-Api-Key"); auth != "secret" {
			t.Errorf("custom header = %q, want secret", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tr := NewWebhookTransport(WebhookConfig{
		Channel: alert.ChannelSMS,
		URL:     server.URL,
		Headers: map[string]string{"X-Api-Key": "secret"},
	})

	a := dispatchableAlert()
	err := tr.Send(context.Background(), a, a.Recipients[:1])
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got.Alert == nil || got.Alert.ID != "a-1" {
		t.Errorf("payload alert = %+v, want a-1", got.Alert)
	}
	if got.Channel != alert.ChannelSMS || got.Source != "fleetwatch" {
		t.Errorf("payload envelope = channel %s source %s", got.Channel, got.Source)
	}
	if len(got.Recipients) != 1 {
		t.Errorf("payload recipients = %d, want 1", len(got.Recipients))
	}
}

func TestWebhookTransportErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	tr := NewWebhookTransport(WebhookConfig{Channel: alert.ChannelCall, URL: server.URL, RateLimitMs: 1})
	if err := tr.Send(context.Background(), dispatchableAlert(), nil); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

// After the configured consecutive failures the breaker opens and later
// sends fail fast without reaching the gateway.
func TestWebhookTransportBreakerOpens(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	tr := NewWebhookTransport(WebhookConfig{
		Channel:          alert.ChannelSMS,
		URL:              server.URL,
		RateLimitMs:      1,
		FailureThreshold: 2,
	})

	a := dispatchableAlert()
	for i := 0; i < 2; i++ {
		if err := tr.Send(context.Background(), a, nil); err == nil {
			t.Fatalf("send %d: expected gateway error", i)
		}
	}
	if tr.BreakerState() != "open" {
		t.Fatalf("breaker state = %s, want open", tr.BreakerState())
	}

	before := hits.Load()
	if err := tr.Send(context.Background(), a, nil); err == nil {
		t.Fatal("expected open breaker to reject the send")
	}
	if hits.Load() != before {
		t.Error("open breaker still reached the gateway")
	}
}

func TestWebhookTransportContextCancellation(t *testing.T) {
	tr := NewWebhookTransport(WebhookConfig{Channel: alert.ChannelPush, URL: "http://127.0.0.1:0", RateLimitMs: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tr.Send(ctx, dispatchableAlert(), nil); err == nil {
		t.Fatal("expected error for canceled context")
	}
}
