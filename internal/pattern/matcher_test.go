// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package pattern

import (
	"math"
	"testing"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/telemetry"
)

func mustRegistry(t *testing.T, patterns ...*AnomalyPattern) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, p := range patterns {
		if err := r.Add(p); err != nil {
			t.Fatalf("Add(%s): %v", p.ID, err)
		}
	}
	return r
}

func speedAnalysis(speed float64, roadType string) *telemetry.Analysis {
	metrics := []telemetry.Metric{
		{Name: "speed", Value: speed, Status: telemetry.StatusCritical, SourceID: "d-1"},
	}
	if roadType != "" {
		metrics = append(metrics, telemetry.Metric{Name: "road_type", Text: roadType, SourceID: "d-1"})
	}
	return &telemetry.Analysis{
		EntityID:   "d-1",
		EntityType: telemetry.EntityDriver,
		Timestamp:  time.Now(),
		Metrics:    metrics,
		RiskScore:  0.8,
	}
}

// Scenario from the overspeed acceptance case: speed 75 against a gt-60 rule
// (weight 0.8, modifier 1.1) plus road_type in {city} (weight 0.6), both
// present and satisfied: confidence (0.8+0.6)/(0.8+0.6) = 1.0 >= 0.89.
func TestMatchOverspeedCityScenario(t *testing.T) {
	p := &AnomalyPattern{
		ID:                  "overspeed-city",
		Name:                "City overspeed",
		ConfidenceThreshold: 0.89,
		Rules: []Rule{
			func() Rule {
				r := NumericRule("speed", OpGT, 60, 0.8)
				r.ContextualModifier = 1.1
				return r
			}(),
			SetRule("road_type", OpIn, []string{"city"}, 0.6),
		},
	}
	m := NewMatcher(mustRegistry(t, p), nil)

	matches := m.Match(speedAnalysis(75, "city"))

	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Confidence != 1.0 {
		t.Errorf("confidence = %f, want 1.0", matches[0].Confidence)
	}
	if len(matches[0].TriggeredRules) != 2 {
		t.Errorf("expected 2 triggered rules, got %d", len(matches[0].TriggeredRules))
	}
}

func TestMatchAbsentMetricSkippedFromBothSides(t *testing.T) {
	// Pattern has a satisfied speed rule (weight 0.5) and a fatigue rule
	// (weight 2.0) whose metric is absent. The fatigue rule must not drag
	// confidence down: 0.5/0.5 = 1.0.
	p := &AnomalyPattern{
		ID:                  "mixed",
		Name:                "Mixed evidence",
		ConfidenceThreshold: 0.9,
		Rules: []Rule{
			NumericRule("speed", OpGT, 60, 0.5),
			NumericRule("fatigue", OpGT, 0.5, 2.0),
		},
	}
	m := NewMatcher(mustRegistry(t, p), nil)

	matches := m.Match(speedAnalysis(75, ""))

	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Confidence != 1.0 {
		t.Errorf("confidence = %f, want 1.0 (absent rule excluded)", matches[0].Confidence)
	}
}

func TestMatchAllMetricsAbsentConfidenceZero(t *testing.T) {
	p := &AnomalyPattern{
		ID:                  "no-evidence",
		Name:                "No evidence",
		ConfidenceThreshold: 0,
		Rules: []Rule{
			NumericRule("fatigue", OpGT, 0.5, 1),
			NumericRule("impact_g", OpGT, 2, 1),
		},
	}
	m := NewMatcher(mustRegistry(t, p), nil)

	// Only a speed metric: neither rule has a present metric, so the
	// pattern cannot fire even with threshold 0.
	if matches := m.Match(speedAnalysis(75, "")); len(matches) != 0 {
		t.Errorf("expected no matches, got %d", len(matches))
	}
}

func TestMatchInclusiveThresholdBoundary(t *testing.T) {
	// Two rules of equal weight, one satisfied: confidence is exactly 0.5.
	p := &AnomalyPattern{
		ID:                  "boundary",
		Name:                "Boundary",
		ConfidenceThreshold: 0.5,
		Rules: []Rule{
			NumericRule("speed", OpGT, 60, 1),
			SetRule("road_type", OpIn, []string{"highway"}, 1),
		},
	}
	m := NewMatcher(mustRegistry(t, p), nil)

	// road_type "city" is present but not in {highway}: confidence 1/2.
	matches := m.Match(speedAnalysis(75, "city"))
	if len(matches) != 1 {
		t.Fatalf("confidence == threshold must fire (inclusive boundary), got %d matches", len(matches))
	}
	if matches[0].Confidence != 0.5 {
		t.Errorf("confidence = %f, want 0.5", matches[0].Confidence)
	}

	// Raise the threshold a hair above the achievable confidence: no fire.
	above := &AnomalyPattern{
		ID:                  "boundary-above",
		Name:                "Boundary above",
		ConfidenceThreshold: 0.5 + 1e-9,
		Rules:               p.Rules,
	}
	m2 := NewMatcher(mustRegistry(t, above), nil)
	if matches := m2.Match(speedAnalysis(75, "city")); len(matches) != 0 {
		t.Error("confidence below threshold must not fire")
	}
}

func TestMatchConfidenceBounds(t *testing.T) {
	p := &AnomalyPattern{
		ID:                  "bounds",
		Name:                "Bounds",
		ConfidenceThreshold: 0,
		Rules: []Rule{
			NumericRule("speed", OpGT, 60, 0.3),
			NumericRule("speed", OpLT, 10, 0.7),
		},
	}
	m := NewMatcher(mustRegistry(t, p), nil)

	matches := m.Match(speedAnalysis(75, ""))
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	c := matches[0].Confidence
	if c < 0 || c > 1 {
		t.Errorf("confidence %f outside [0,1]", c)
	}
	if math.Abs(c-0.3) > 1e-9 {
		t.Errorf("confidence = %f, want 0.3", c)
	}
}

func TestMatchMultiplePatternsFireIndependently(t *testing.T) {
	a := &AnomalyPattern{
		ID: "a", Name: "A", ConfidenceThreshold: 0.5,
		Rules: []Rule{NumericRule("speed", OpGT, 60, 1)},
	}
	b := &AnomalyPattern{
		ID: "b", Name: "B", ConfidenceThreshold: 0.5,
		Rules: []Rule{NumericRule("speed", OpGT, 70, 1)},
	}
	m := NewMatcher(mustRegistry(t, a, b), nil)

	matches := m.Match(speedAnalysis(75, ""))
	if len(matches) != 2 {
		t.Fatalf("expected both patterns to fire, got %d", len(matches))
	}
}

func TestNumericOperators(t *testing.T) {
	tests := []struct {
		name     string
		rule     Rule
		observed float64
		want     bool
	}{
		{"gt satisfied", NumericRule("m", OpGT, 10, 1), 11, true},
		{"gt boundary not satisfied", NumericRule("m", OpGT, 10, 1), 10, false},
		{"lt satisfied", NumericRule("m", OpLT, 10, 1), 9, true},
		{"lt not satisfied", NumericRule("m", OpLT, 10, 1), 10, false},
		{"eq satisfied", NumericRule("m", OpEQ, 10, 1), 10, true},
		{"eq epsilon", NumericRule("m", OpEQ, 10, 1), 10 + 1e-12, true},
		{"eq not satisfied", NumericRule("m", OpEQ, 10, 1), 10.1, false},
		{"ne satisfied", NumericRule("m", OpNE, 10, 1), 10.1, true},
		{"ne not satisfied", NumericRule("m", OpNE, 10, 1), 10, false},
		{"set op on numeric metric never satisfied", SetRule("m", OpIn, []string{"10"}, 1), 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metric := telemetry.Metric{Name: "m", Value: tt.observed}
			if got := ruleSatisfied(&tt.rule, metric, false, 1.0); got != tt.want {
				t.Errorf("ruleSatisfied() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTextOperators(t *testing.T) {
	regexRule := TextRule("m", OpRegex, `^cit(y|ies)$`, 1)
	p := &AnomalyPattern{ID: "re", Name: "re", ConfidenceThreshold: 1, Rules: []Rule{regexRule}}
	if err := p.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	compiled := &p.Rules[0]

	tests := []struct {
		name     string
		rule     *Rule
		observed string
		want     bool
	}{
		{"eq", &Rule{Field: "m", Operator: OpEQ, Text: "city", Weight: 1}, "city", true},
		{"ne", &Rule{Field: "m", Operator: OpNE, Text: "city", Weight: 1}, "rural", true},
		{"in", &Rule{Field: "m", Operator: OpIn, Set: []string{"city", "urban"}, Weight: 1}, "urban", true},
		{"in miss", &Rule{Field: "m", Operator: OpIn, Set: []string{"city"}, Weight: 1}, "rural", false},
		{"not_in", &Rule{Field: "m", Operator: OpNotIn, Set: []string{"city"}, Weight: 1}, "rural", true},
		{"contains", &Rule{Field: "m", Operator: OpContains, Text: "it", Weight: 1}, "city", true},
		{"regex", compiled, "cities", true},
		{"regex miss", compiled, "citadel", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metric := telemetry.Metric{Name: "m", Text: tt.observed}
			if got := ruleSatisfied(tt.rule, metric, false, 1.0); got != tt.want {
				t.Errorf("ruleSatisfied() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContextualModifierScalesObservedValue(t *testing.T) {
	r := NumericRule("speed", OpGT, 80, 1)
	r.ContextualModifier = 1.2
	metric := telemetry.Metric{Name: "speed", Value: 70}

	// 70 alone does not exceed 80; 70*1.2 = 84 does.
	if ruleSatisfied(&r, metric, false, 1.0) {
		t.Error("unmodified value should not satisfy gt 80")
	}
	if !ruleSatisfied(&r, metric, true, 1.0) {
		t.Error("modified value should satisfy gt 80")
	}
}

func TestSeasonalFactorScalesComparisonValue(t *testing.T) {
	p := &AnomalyPattern{
		ID: "seasonal", Name: "Seasonal", ConfidenceThreshold: 1,
		Rules:               []Rule{NumericRule("speed", OpGT, 100, 1)},
		SeasonalAdjustments: map[string]float64{"winter": 0.8},
	}
	m := NewMatcher(mustRegistry(t, p), nil)

	january := time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)
	july := time.Date(2026, time.July, 15, 12, 0, 0, 0, time.UTC)

	analysis := speedAnalysis(90, "")

	analysis.Timestamp = january // winter target: 100*0.8 = 80 < 90, fires
	if len(m.Match(analysis)) != 1 {
		t.Error("expected winter-adjusted pattern to fire at 90 km/h")
	}

	analysis.Timestamp = july // summer target: 100, no fire
	if len(m.Match(analysis)) != 0 {
		t.Error("expected unadjusted pattern not to fire at 90 km/h")
	}
}
