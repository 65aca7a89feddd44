// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package event

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/logging"
)

// ErrNotFound is returned when an event ID is unknown.
var ErrNotFound = errors.New("event not found")

// ActiveWindow is the query window for GetActive: an event is active while
// strictly younger than 24 hours. An event aged exactly 24h is excluded.
const ActiveWindow = 24 * time.Hour

// DefaultRetention is how long events stay in memory before the janitor
// removes them. Must be >= ActiveWindow; durable retention beyond this is
// the compliance sink's job.
const DefaultRetention = 48 * time.Hour

// Store is the in-memory safety event store. It is safe for concurrent use;
// reads for reporting never block ingestion writes beyond the RWMutex.
type Store struct {
	mu        sync.RWMutex
	events    map[string]*SafetyEvent
	retention time.Duration
	now       func() time.Time
}

// NewStore creates an event store with the given retention, defaulting to
// DefaultRetention for non-positive values.
func NewStore(retention time.Duration) *Store {
	if retention < ActiveWindow {
		retention = DefaultRetention
	}
	return &Store{
		events:    make(map[string]*SafetyEvent),
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Save stores the event keyed by its ID.
func (s *Store) Save(e *SafetyEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = e
}

// Get returns the event with the given ID.
func (s *Store) Get(id string) (*SafetyEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// GetActive returns all events strictly younger than ActiveWindow, newest
// first. The boundary is exclusive: an event aged exactly 24h is not active.
func (s *Store) GetActive() []*SafetyEvent {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*SafetyEvent
	for _, e := range s.events {
		if now.Sub(e.Timestamp) < ActiveWindow {
			active = append(active, e)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Timestamp.After(active[j].Timestamp) })
	return active
}

// GetInPeriod returns events with from <= timestamp < to, oldest first.
// This is the isolated read path used by compliance reporting.
func (s *Store) GetInPeriod(from, to time.Time) []*SafetyEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*SafetyEvent
	for _, e := range s.events {
		if !e.Timestamp.Before(from) && e.Timestamp.Before(to) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// Len returns the number of retained events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// gc removes events older than the retention window and returns the count.
func (s *Store) gc() int {
	cutoff := s.now().Add(-s.retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.events {
		if e.Timestamp.Before(cutoff) {
			delete(s.events, id)
			removed++
		}
	}
	return removed
}

// RunJanitor periodically garbage-collects expired events until the context
// is canceled. Designed to run under supervision.
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if removed := s.gc(); removed > 0 {
				logging.Debug().Int("removed", removed).Msg("event store janitor pass")
			}
		}
	}
}
