// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package pattern

import (
	"math"
	"strings"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/telemetry"
)

// numericEpsilon bounds float comparison for eq/ne rules.
// DETERMINISM: direct float equality is unreliable under IEEE 754; an
// explicit epsilon keeps rule evaluation repeatable across platforms.
const numericEpsilon = 1e-9

// RuleEvidence records one satisfied rule inside a match.
type RuleEvidence struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Observed float64  `json:"observed,omitempty"`
	Text     string   `json:"text,omitempty"`
	Weight   float64  `json:"weight"`
}

// Match is one fired pattern for a single analysis.
type Match struct {
	Pattern        *AnomalyPattern `json:"pattern"`
	Confidence     float64         `json:"confidence"`
	TriggeredRules []RuleEvidence  `json:"triggered_rules"`
}

// Matcher evaluates analyses against the registry's published pattern set.
type Matcher struct {
	registry *Registry
	adjuster telemetry.ContextAdjuster
}

// NewMatcher creates a matcher over the given registry. A nil adjuster falls
// back to the default StaticAdjuster, matching the analyzer's behavior.
func NewMatcher(registry *Registry, adjuster telemetry.ContextAdjuster) *Matcher {
	if adjuster == nil {
		adjuster = telemetry.NewStaticAdjuster(telemetry.DefaultNonNativeFactor)
	}
	return &Matcher{registry: registry, adjuster: adjuster}
}

// Match evaluates the analysis against every registered pattern and returns
// the patterns that fired. Multiple patterns may fire for one analysis; each
// produces an independent match.
func (m *Matcher) Match(analysis *telemetry.Analysis) []Match {
	var matches []Match
	for _, p := range m.registry.Snapshot() {
		confidence, evidence, present := m.evaluate(p, analysis)
		if !present {
			// No rule had a present metric: the pattern saw no evidence at
			// all and cannot fire, regardless of threshold.
			continue
		}
		// Inclusive boundary: confidence exactly equal to the threshold fires.
		if confidence >= p.ConfidenceThreshold {
			matches = append(matches, Match{
				Pattern:        p,
				Confidence:     confidence,
				TriggeredRules: evidence,
			})
		}
	}
	return matches
}

// evaluate computes match confidence for one pattern. Only rules whose field
// metric is present contribute to either side of the ratio: an absent metric
// skips the rule entirely rather than counting it as unsatisfied. With no
// present metrics the confidence is 0 (no division by zero).
func (m *Matcher) evaluate(p *AnomalyPattern, analysis *telemetry.Analysis) (float64, []RuleEvidence, bool) {
	modifiers := p.appliesToRegion(analysis.Region) &&
		m.adjuster.Applies(analysis.Profile, analysis.Region)
	seasonal := p.seasonalFactor(analysis.Timestamp)

	var matched, present float64
	var evidence []RuleEvidence

	for i := range p.Rules {
		rule := &p.Rules[i]
		metric, ok := analysis.Metric(rule.Field)
		if !ok {
			continue
		}

		present += rule.Weight
		if !ruleSatisfied(rule, metric, modifiers, seasonal) {
			continue
		}

		matched += rule.Weight
		evidence = append(evidence, RuleEvidence{
			Field:    rule.Field,
			Operator: rule.Operator,
			Observed: metric.Value,
			Text:     metric.Text,
			Weight:   rule.Weight,
		})
	}

	if present == 0 {
		return 0, nil, false
	}
	return matched / present, evidence, true
}

// seasonalFactor returns the pattern's comparison-value multiplier for the
// season of ts, defaulting to 1.0.
func (p *AnomalyPattern) seasonalFactor(ts time.Time) float64 {
	if len(p.SeasonalAdjustments) == 0 {
		return 1.0
	}
	if f, ok := p.SeasonalAdjustments[seasonOf(ts)]; ok && f > 0 {
		return f
	}
	return 1.0
}

// seasonOf maps a timestamp to its northern-hemisphere season key.
func seasonOf(ts time.Time) string {
	switch ts.Month() {
	case time.December, time.January, time.February:
		return "winter"
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	default:
		return "autumn"
	}
}

// ruleSatisfied evaluates one rule against its metric. For numeric rules the
// contextual modifier scales the observed value (when applicable) and the
// seasonal factor scales the rule's comparison value.
func ruleSatisfied(rule *Rule, metric telemetry.Metric, modifiers bool, seasonal float64) bool {
	if metric.IsNumeric() {
		return numericSatisfied(rule, metric.Value, modifiers, seasonal)
	}
	return textSatisfied(rule, metric.Text)
}

func numericSatisfied(rule *Rule, observed float64, modifiers bool, seasonal float64) bool {
	if !rule.IsNumeric() {
		return false
	}
	if modifiers && rule.ContextualModifier > 0 {
		observed *= rule.ContextualModifier
	}
	target := rule.Number * seasonal

	switch rule.Operator {
	case OpGT:
		return observed > target
	case OpLT:
		return observed < target
	case OpEQ:
		return math.Abs(observed-target) <= numericEpsilon
	case OpNE:
		return math.Abs(observed-target) > numericEpsilon
	default:
		return false
	}
}

func textSatisfied(rule *Rule, observed string) bool {
	switch rule.Operator {
	case OpEQ:
		return observed == rule.Text
	case OpNE:
		return observed != rule.Text
	case OpIn:
		return inSet(rule.Set, observed)
	case OpNotIn:
		return !inSet(rule.Set, observed)
	case OpContains:
		return strings.Contains(observed, rule.Text)
	case OpRegex:
		return rule.re != nil && rule.re.MatchString(observed)
	default:
		return false
	}
}

func inSet(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
