// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package pattern

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// DefaultPatterns returns the built-in pattern set loaded at startup when no
// pattern file is configured. Thresholds align with the analyzer's default
// sensor cut-offs.
func DefaultPatterns() []*AnomalyPattern {
	return []*AnomalyPattern{
		{
			ID:                  "excessive-speed",
			Name:                "Excessive Speed",
			ConfidenceThreshold: 0.8,
			Rules: []Rule{
				{Field: "speed", Operator: OpGT, Number: 120, Weight: 1.0, numeric: true, ContextualModifier: 1.1},
				{Field: "road_type", Operator: OpIn, Set: []string{"city", "rural"}, Weight: 0.4},
			},
		},
		{
			ID:                  "collision-impact",
			Name:                "Collision Impact",
			ConfidenceThreshold: 0.7,
			Rules: []Rule{
				NumericRule("impact_g", OpGT, 4.0, 1.0),
				NumericRule("speed", OpGT, 60, 0.4),
			},
		},
		{
			ID:                  "driver-fatigue",
			Name:                "Driver Fatigue",
			ConfidenceThreshold: 0.75,
			Rules: []Rule{
				NumericRule("fatigue", OpGT, 0.8, 0.9),
				NumericRule("distraction", OpGT, 0.5, 0.6),
			},
		},
		{
			ID:                  "vehicle-overheat",
			Name:                "Vehicle Overheat",
			ConfidenceThreshold: 0.8,
			Rules: []Rule{
				NumericRule("engine_temp", OpGT, 120, 0.8),
				NumericRule("battery_temp", OpGT, 60, 0.5),
			},
			SeasonalAdjustments: map[string]float64{"summer": 0.95},
		},
	}
}

// LoadFile reads a JSON pattern file (an array of patterns). Patterns are
// returned un-normalized; registry Add performs validation.
func LoadFile(path string) ([]*AnomalyPattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pattern file: %w", err)
	}

	var patterns []*AnomalyPattern
	if err := json.Unmarshal(data, &patterns); err != nil {
		return nil, fmt.Errorf("parse pattern file %s: %w", path, err)
	}
	return patterns, nil
}

// Seed registers each pattern, failing on the first rejection.
func Seed(registry *Registry, patterns []*AnomalyPattern) error {
	for _, p := range patterns {
		if err := registry.Add(p); err != nil {
			return err
		}
	}
	return nil
}
