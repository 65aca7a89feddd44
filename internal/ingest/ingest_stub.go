// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

//go:build !nats

package ingest

import (
	"context"
	"errors"

	"github.com/fleetwatch/fleetwatch/internal/engine"
)

// ErrDisabled is returned when the binary was built without the nats tag.
var ErrDisabled = errors.New("nats ingest not compiled in (build with -tags nats)")

// Consumer is a stub; broker ingest requires the nats build tag.
type Consumer struct{}

// NewConsumer fails: this build has no broker support.
func NewConsumer(Config, *engine.Engine) (*Consumer, error) {
	return nil, ErrDisabled
}

// Run never runs in a stub build.
func (c *Consumer) Run(context.Context) error { return ErrDisabled }

// Close is a no-op.
func (c *Consumer) Close() error { return nil }
