// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

//go:build nats

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/fleetwatch/fleetwatch/internal/engine"
	"github.com/fleetwatch/fleetwatch/internal/logging"
	"github.com/fleetwatch/fleetwatch/internal/metrics"
	"github.com/fleetwatch/fleetwatch/internal/telemetry"
)

// Consumer reads telemetry records from a NATS JetStream subject and feeds
// them into the engine's bounded queue. Malformed messages are acked and
// counted rather than redelivered forever; queue-full rejections are nacked
// so the broker retries once the engine catches up.
type Consumer struct {
	cfg        Config
	subscriber message.Subscriber
	engine     *engine.Engine
}

// NewConsumer connects a durable queue-group subscriber. Multiple instances
// with the same queue group share the subject load.
func NewConsumer(cfg Config, eng *engine.Engine) (*Consumer, error) {
	cfg.applyDefaults()

	logger := watermill.NewStdLogger(false, false)

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("telemetry subscriber disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("telemetry subscriber reconnected")
		}),
	}

	wmConfig := wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     10 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.MaxDeliver(5),
				natsgo.AckWait(30 * time.Second),
				natsgo.DeliverNew(),
			},
			DurablePrefix: cfg.DurableName,
		},
	}

	sub, err := wmNats.NewSubscriber(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create telemetry subscriber: %w", err)
	}

	return &Consumer{cfg: cfg, subscriber: sub, engine: eng}, nil
}

// Run consumes until the context is canceled. Designed to run under
// supervision; connection loss surfaces as an error so the supervisor
// restarts the consumer with backoff.
func (c *Consumer) Run(ctx context.Context) error {
	messages, err := c.subscriber.Subscribe(ctx, c.cfg.Subject)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.cfg.Subject, err)
	}

	logging.Info().
		Str("subject", c.cfg.Subject).
		Str("queue_group", c.cfg.QueueGroup).
		Msg("telemetry ingest started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return errors.New("telemetry subscription closed")
			}
			c.handle(msg)
		}
	}
}

// handle parses and submits one message. Parse failures ack so the broker
// does not redeliver garbage; a full engine queue nacks for redelivery.
func (c *Consumer) handle(msg *message.Message) {
	metrics.IngestMessagesConsumed.Inc()

	var record telemetry.Record
	if err := json.Unmarshal(msg.Payload, &record); err != nil {
		metrics.IngestParseFailures.Inc()
		logging.Warn().Err(err).Str("message_id", msg.UUID).Msg("unparseable telemetry message")
		msg.Ack()
		return
	}

	if err := c.engine.Submit(&record); err != nil {
		if errors.Is(err, engine.ErrQueueFull) {
			msg.Nack()
			return
		}
		logging.Error().Err(err).Str("entity_id", record.EntityID).Msg("telemetry submit failed")
	}
	msg.Ack()
}

// Close shuts down the subscriber connection.
func (c *Consumer) Close() error {
	return c.subscriber.Close()
}
