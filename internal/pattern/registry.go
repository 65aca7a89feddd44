// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package pattern

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/fleetwatch/fleetwatch/internal/logging"
)

// Registry holds the registered anomaly patterns. It is read-mostly: matcher
// invocations read a published snapshot without locking, while Add/Update
// writers build a new snapshot under a mutex and swap it in atomically.
// In-flight matches keep evaluating against the snapshot they started with.
type Registry struct {
	mu       sync.Mutex // serializes writers only
	snapshot atomic.Pointer[registrySnapshot]
}

// registrySnapshot is one immutable published generation of the registry.
type registrySnapshot struct {
	byID    map[string]*AnomalyPattern
	ordered []*AnomalyPattern // sorted by ID for deterministic iteration
}

// NewRegistry creates an empty pattern registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.snapshot.Store(&registrySnapshot{byID: map[string]*AnomalyPattern{}})
	return r
}

// Add registers a new pattern. It fails when a pattern with the same ID is
// already registered; use Update to replace one.
func (r *Registry) Add(p *AnomalyPattern) error {
	if err := p.normalize(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.snapshot.Load()
	if _, exists := current.byID[p.ID]; exists {
		return fmt.Errorf("pattern %s: already registered", p.ID)
	}

	r.publish(current, p)
	logging.Info().Str("pattern", p.ID).Str("name", p.Name).Msg("registered anomaly pattern")
	return nil
}

// Update replaces a registered pattern. It fails when the ID is unknown.
func (r *Registry) Update(p *AnomalyPattern) error {
	if err := p.normalize(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.snapshot.Load()
	if _, exists := current.byID[p.ID]; !exists {
		return fmt.Errorf("pattern %s: not registered", p.ID)
	}

	r.publish(current, p)
	logging.Info().Str("pattern", p.ID).Msg("updated anomaly pattern")
	return nil
}

// publish builds and swaps in a new snapshot containing p (must hold mu).
func (r *Registry) publish(current *registrySnapshot, p *AnomalyPattern) {
	next := &registrySnapshot{byID: make(map[string]*AnomalyPattern, len(current.byID)+1)}
	for id, existing := range current.byID {
		next.byID[id] = existing
	}
	next.byID[p.ID] = p

	next.ordered = make([]*AnomalyPattern, 0, len(next.byID))
	for _, pat := range next.byID {
		next.ordered = append(next.ordered, pat)
	}
	sort.Slice(next.ordered, func(i, j int) bool { return next.ordered[i].ID < next.ordered[j].ID })

	r.snapshot.Store(next)
}

// Get returns the pattern with the given ID.
func (r *Registry) Get(id string) (*AnomalyPattern, bool) {
	p, ok := r.snapshot.Load().byID[id]
	return p, ok
}

// Snapshot returns the current published pattern set, sorted by ID.
// The returned slice must not be mutated.
func (r *Registry) Snapshot() []*AnomalyPattern {
	return r.snapshot.Load().ordered
}

// Len returns the number of registered patterns.
func (r *Registry) Len() int {
	return len(r.snapshot.Load().byID)
}
