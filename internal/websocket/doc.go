// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

/*
Package websocket provides real-time push of safety alerts and events to
connected operator dashboards.

This package implements WebSocket support for broadcasting detected safety
events, generated alerts, acknowledgment notifications, and monitoring
counter snapshots to connected frontend clients. It uses the
gorilla/websocket library with a hub-client architecture for efficient
message broadcasting.

Key Components:

  - Hub: Central message broker that manages client connections and broadcasts
  - Client: Represents a single WebSocket connection with read/write goroutines
  - Message: Typed message structure for different event types

Each client has two goroutines:
  - readPump: Reads from WebSocket, handles pings
  - writePump: Writes to WebSocket, sends pongs and pings the peer

Message Types:

  - safety_alert: A newly generated SafetyAlert
  - safety_event: A detected SafetyEvent
  - alert_acknowledged: An alert was acknowledged (alert_id, acknowledged_by)
  - metrics_update: Monitoring counter snapshot
  - ping / pong: Keepalive

Usage Example - Server:

	hub := websocket.NewHub()
	go hub.RunWithContext(ctx)

	// In the pipeline, after generating an alert:
	hub.BroadcastAlert(alert)

The hub drops broadcasts when its buffer is full rather than blocking the
detection pipeline; slow clients are disconnected rather than buffered
unboundedly.
*/
package websocket
