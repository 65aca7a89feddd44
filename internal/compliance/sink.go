// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

// Package compliance persists safety events beyond the in-memory 24h window.
// The engine's own event store is not the system of record; this sink is the
// durable retention contract handed to the compliance collaborator.
package compliance

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/fleetwatch/fleetwatch/internal/event"
)

// eventKeyPrefix namespaces event records inside the database. Keys embed
// the event timestamp so iteration is time-ordered.
const eventKeyPrefix = "event:"

// DefaultRetention is how long persisted events live before badger expires
// them.
const DefaultRetention = 90 * 24 * time.Hour

// Sink is a BadgerDB-backed durable event store.
type Sink struct {
	db        *badger.DB
	retention time.Duration
}

// Options configures the sink.
type Options struct {
	// Path is the on-disk database directory. Empty selects an in-memory
	// database, used by tests and ephemeral deployments.
	Path string

	// Retention bounds how long events are kept. Zero means
	// DefaultRetention.
	Retention time.Duration
}

// Open opens (or creates) the sink database.
func Open(opts Options) (*Sink, error) {
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}

	badgerOpts := badger.DefaultOptions(opts.Path).WithLogger(nil)
	if opts.Path == "" {
		badgerOpts = badgerOpts.WithInMemory(true)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open compliance sink: %w", err)
	}
	return &Sink{db: db, retention: opts.Retention}, nil
}

// Close closes the underlying database.
func (s *Sink) Close() error {
	return s.db.Close()
}

// Append persists one safety event with the configured retention TTL.
func (s *Sink) Append(ctx context.Context, e *event.SafetyEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(eventKey(e.Timestamp, e.ID), data).WithTTL(s.retention)
		return txn.SetEntry(entry)
	})
}

// EventsInPeriod returns persisted events with timestamp in [from, to),
// oldest first. Key order is timestamp order, so the scan seeks to the
// period start and stops at its end.
func (s *Sink) EventsInPeriod(ctx context.Context, from, to time.Time) ([]*event.SafetyEvent, error) {
	var events []*event.SafetyEvent

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(eventKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		start := []byte(eventKeyPrefix + from.UTC().Format(keyTimeFormat))
		end := []byte(eventKeyPrefix + to.UTC().Format(keyTimeFormat))

		for it.Seek(start); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if bytes.Compare(it.Item().Key(), end) >= 0 {
				break
			}

			var e event.SafetyEvent
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return fmt.Errorf("decode event: %w", err)
			}
			events = append(events, &e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Count returns the number of persisted events.
func (s *Sink) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(eventKeyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// keyTimeFormat is fixed-width (no trailing-zero trimming) so keys sort
// lexicographically in timestamp order.
const keyTimeFormat = "2006-01-02T15:04:05.000000000Z"

// eventKey builds the time-ordered key for an event. The event ID suffix
// keeps same-instant events unique.
func eventKey(ts time.Time, id string) []byte {
	return []byte(eventKeyPrefix + ts.UTC().Format(keyTimeFormat) + ":" + id)
}
