// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package telemetry

import "strings"

// ContextAdjuster computes the multiplicative contextual correction applied
// to numeric scores. Both the analyzer (risk score) and the pattern matcher
// (rule modifiers) consult the same adjuster so that contextual handling
// stays in one place instead of ad-hoc multipliers per call site.
type ContextAdjuster interface {
	// Factor returns the adjustment multiplier for the given profile observed
	// in the given region. Must return 1.0 for a native context and a value
	// > 1.0 for a non-native context.
	Factor(profile *ContextProfile, region string) float64

	// Applies reports whether contextual rule modifiers should be applied
	// for the given profile and region.
	Applies(profile *ContextProfile, region string) bool
}

// StaticAdjuster is the default ContextAdjuster. A context is native when no
// profile is present, the profile declares no home region, or the home region
// matches the observed region (case-insensitive). Everything else is
// non-native and scaled by NonNativeFactor.
type StaticAdjuster struct {
	// NonNativeFactor is the multiplier for non-native contexts. Must be >= 1.
	NonNativeFactor float64
}

// DefaultNonNativeFactor is the contextual risk uplift applied when an entity
// operates outside its home region.
const DefaultNonNativeFactor = 1.15

// NewStaticAdjuster returns a StaticAdjuster with the given factor,
// falling back to DefaultNonNativeFactor for values < 1.
func NewStaticAdjuster(factor float64) *StaticAdjuster {
	if factor < 1 {
		factor = DefaultNonNativeFactor
	}
	return &StaticAdjuster{NonNativeFactor: factor}
}

// Factor implements ContextAdjuster.
func (s *StaticAdjuster) Factor(profile *ContextProfile, region string) float64 {
	if s.native(profile, region) {
		return 1.0
	}
	return s.NonNativeFactor
}

// Applies implements ContextAdjuster. Rule modifiers apply exactly when the
// context is non-native.
func (s *StaticAdjuster) Applies(profile *ContextProfile, region string) bool {
	return !s.native(profile, region)
}

func (s *StaticAdjuster) native(profile *ContextProfile, region string) bool {
	if profile == nil || profile.HomeRegion == "" || region == "" {
		return true
	}
	return strings.EqualFold(profile.HomeRegion, region)
}
