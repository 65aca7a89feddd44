// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/alert"
	"github.com/fleetwatch/fleetwatch/internal/logging"
)

// DefaultChannelTimeout bounds one channel delivery so a slow gateway cannot
// stall the rest of the fan-out.
const DefaultChannelTimeout = 5 * time.Second

// Dispatcher fans an alert out to all of its channels in parallel and
// collects the per-channel outcomes. A failed channel never blocks or fails
// the others; the dispatcher itself performs no retries.
type Dispatcher struct {
	mu         sync.RWMutex
	transports map[alert.Channel]Transport
	timeout    time.Duration
	now        func() time.Time
}

// NewDispatcher creates a dispatcher with the given per-channel timeout,
// defaulting to DefaultChannelTimeout for non-positive values. Channels
// without a registered transport fall back to the log transport.
func NewDispatcher(channelTimeout time.Duration) *Dispatcher {
	if channelTimeout <= 0 {
		channelTimeout = DefaultChannelTimeout
	}
	return &Dispatcher{
		transports: make(map[alert.Channel]Transport),
		timeout:    channelTimeout,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Register installs the transport for its channel, replacing any previous
// transport for that channel.
func (d *Dispatcher) Register(t Transport) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transports[t.Channel()] = t
}

// Dispatch delivers the alert on every channel it names, in parallel, and
// returns one attempt per channel in channel order. Dispatch blocks until
// all channels have completed or timed out.
func (d *Dispatcher) Dispatch(ctx context.Context, a *alert.SafetyAlert) []alert.DeliveryAttempt {
	return d.fanOut(ctx, a, a.Channels, eligibleRecipients(a.Recipients), false)
}

// DispatchEscalation delivers the alert on the escalation rule's channels to
// the rule's role-level recipients, marking every attempt as escalated.
func (d *Dispatcher) DispatchEscalation(ctx context.Context, a *alert.SafetyAlert, rule alert.EscalationRule) []alert.DeliveryAttempt {
	recipients := make([]alert.Recipient, 0, len(rule.Recipients))
	for _, role := range rule.Recipients {
		recipients = append(recipients, alert.Recipient{
			ID:       string(role),
			Role:     role,
			Channels: rule.Channels,
		})
	}
	return d.fanOut(ctx, a, rule.Channels, func(alert.Channel) []alert.Recipient { return recipients }, true)
}

func (d *Dispatcher) fanOut(ctx context.Context, a *alert.SafetyAlert, channels []alert.Channel, recipientsFor func(alert.Channel) []alert.Recipient, escalated bool) []alert.DeliveryAttempt {
	attempts := make([]alert.DeliveryAttempt, len(channels))

	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Add(1)
		go func(i int, ch alert.Channel) {
			defer wg.Done()
			attempts[i] = d.deliver(ctx, a, ch, recipientsFor(ch), escalated)
		}(i, ch)
	}
	wg.Wait()

	return attempts
}

// deliver runs one channel send under the per-channel deadline.
func (d *Dispatcher) deliver(ctx context.Context, a *alert.SafetyAlert, ch alert.Channel, recipients []alert.Recipient, escalated bool) alert.DeliveryAttempt {
	start := d.now()
	attempt := alert.DeliveryAttempt{
		Channel:   ch,
		Timestamp: start,
		Escalated: escalated,
	}

	d.mu.RLock()
	transport, ok := d.transports[ch]
	d.mu.RUnlock()
	if !ok {
		transport = NewLogTransport(ch)
	}

	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := transport.Send(cctx, a, recipients)
	attempt.LatencyMs = d.now().Sub(start).Milliseconds()
	if err != nil {
		attempt.Error = err.Error()
		logging.Warn().
			Err(err).
			Str("alert_id", a.ID).
			Str("channel", string(ch)).
			Bool("escalated", escalated).
			Msg("alert delivery failed")
		return attempt
	}

	attempt.Success = true
	return attempt
}

// eligibleRecipients restricts the per-channel recipient list to recipients
// whose channel set allows it. An empty recipient channel set means the
// recipient accepts every channel.
func eligibleRecipients(recipients []alert.Recipient) func(alert.Channel) []alert.Recipient {
	return func(ch alert.Channel) []alert.Recipient {
		var eligible []alert.Recipient
		for _, r := range recipients {
			if len(r.Channels) == 0 {
				eligible = append(eligible, r)
				continue
			}
			for _, allowed := range r.Channels {
				if allowed == ch {
					eligible = append(eligible, r)
					break
				}
			}
		}
		return eligible
	}
}
