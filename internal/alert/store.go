// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package alert

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/logging"
)

// ErrNotFound is returned when an alert ID is unknown.
var ErrNotFound = errors.New("alert not found")

// DefaultTTL is how long alerts are retained before expiry removes them.
const DefaultTTL = 24 * time.Hour

// Store is the in-memory safety alert store. Acknowledgment is atomic and
// idempotent: the first acknowledge wins, later ones are no-ops.
type Store struct {
	mu     sync.RWMutex
	alerts map[string]*SafetyAlert
	ttl    time.Duration
	now    func() time.Time
}

// NewStore creates an alert store with the given TTL, defaulting to
// DefaultTTL for non-positive values.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		alerts: make(map[string]*SafetyAlert),
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Save stores the alert keyed by its ID.
func (s *Store) Save(a *SafetyAlert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.ID] = a
}

// Get returns the alert with the given ID.
func (s *Store) Get(id string) (*SafetyAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

// Active returns all unacknowledged alerts, newest first.
func (s *Store) Active() []*SafetyAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*SafetyAlert
	for _, a := range s.alerts {
		if !a.Acknowledged {
			active = append(active, a)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.After(active[j].CreatedAt) })
	return active
}

// Acknowledge marks the alert as acknowledged. The first call for an alert
// returns (true, nil); repeated calls return (false, nil) so that callers
// can keep the acknowledged counter idempotent. Unknown IDs return
// ErrNotFound.
func (s *Store) Acknowledge(id, by string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return false, ErrNotFound
	}
	if a.Acknowledged {
		return false, nil
	}

	now := s.now()
	a.Acknowledged = true
	a.AcknowledgedAt = &now
	a.AcknowledgedBy = by
	return true, nil
}

// IsAcknowledged reports whether the alert has been acknowledged, reading
// under the store lock so concurrent acknowledgment stays race-free.
func (s *Store) IsAcknowledged(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return false, ErrNotFound
	}
	return a.Acknowledged, nil
}

// AppendAttempts records delivery attempts on the alert.
func (s *Store) AppendAttempts(id string, attempts []DeliveryAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return ErrNotFound
	}
	a.Attempts = append(a.Attempts, attempts...)
	return nil
}

// Len returns the number of retained alerts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}

// gc removes alerts past their TTL and returns the count removed.
// Acknowledged alerts are kept until expiry so repeated acknowledgments
// stay observable as no-ops rather than unknown IDs.
func (s *Store) gc() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, a := range s.alerts {
		if a.CreatedAt.Before(cutoff) {
			delete(s.alerts, id)
			removed++
		}
	}
	return removed
}

// RunJanitor periodically removes expired alerts until the context is
// canceled. Designed to run under supervision.
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
				logging.Debug().Int("removed", removed).Msg("alert store janitor pass")
			}
		}
	}
}
