// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package dispatch

import (
	"context"

	"github.com/fleetwatch/fleetwatch/internal/alert"
	"github.com/fleetwatch/fleetwatch/internal/logging"
)

// Transport delivers an alert over one notification channel. Implementations
// must be safe for concurrent use; the dispatcher fans out across channels
// in parallel.
type Transport interface {
	// Channel returns the channel this transport serves.
	Channel() alert.Channel

	// Send delivers the alert to the given recipients. The context carries
	// the per-channel deadline; implementations must respect cancellation.
	Send(ctx context.Context, a *alert.SafetyAlert, recipients []alert.Recipient) error
}

// LogTransport is the default transport for channels without a configured
// gateway. It records the delivery in the structured log and always succeeds,
// which keeps local and test deployments observable without external
// integrations.
type LogTransport struct {
	channel alert.Channel
}

// NewLogTransport creates a log-only transport for the given channel.
func NewLogTransport(channel alert.Channel) *LogTransport {
	return &LogTransport{channel: channel}
}

// Channel returns the served channel.
func (t *LogTransport) Channel() alert.Channel {
	return t.channel
}

// Send logs the delivery and returns nil.
func (t *LogTransport) Send(ctx context.Context, a *alert.SafetyAlert, recipients []alert.Recipient) error {
	ids := make([]string, 0, len(recipients))
	for _, r := range recipients {
		ids = append(ids, r.ID)
	}
	logging.Info().
		Str("alert_id", a.ID).
		Str("channel", string(t.channel)).
		Str("priority", string(a.Priority)).
		Strs("recipients", ids).
		Msg("alert delivered (log transport)")
	return nil
}
