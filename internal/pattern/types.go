// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

// Package pattern holds the anomaly pattern registry and the weighted rule
// matcher. A pattern is a named, weighted set of rules detecting one category
// of unsafe condition; match confidence is the fraction of rule weight
// satisfied over rule weight considered, where rules whose metric is absent
// are excluded from both sides.
package pattern

import (
	"fmt"
	"regexp"

	"github.com/goccy/go-json"
)

// Operator names a rule comparison.
type Operator string

const (
	OpGT       Operator = "gt"
	OpLT       Operator = "lt"
	OpEQ       Operator = "eq"
	OpNE       Operator = "ne"
	OpIn       Operator = "in"
	OpNotIn    Operator = "not_in"
	OpContains Operator = "contains"
	OpRegex    Operator = "regex"
)

// ValidOperator reports whether op is one of the supported operators.
func ValidOperator(op Operator) bool {
	switch op {
	case OpGT, OpLT, OpEQ, OpNE, OpIn, OpNotIn, OpContains, OpRegex:
		return true
	}
	return false
}

// Rule is a single field/operator/value/weight comparison. Rules are
// immutable once part of a registered pattern.
//
// The wire format carries a single "value" field whose JSON type selects the
// comparison domain: a number feeds gt/lt/eq/ne, a string feeds
// eq/ne/contains/regex, and a string array feeds in/not_in.
type Rule struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`

	// Exactly one of Number/Text/Set is meaningful, selected by the JSON
	// type of "value" (see UnmarshalJSON).
	Number float64  `json:"-"`
	Text   string   `json:"-"`
	Set    []string `json:"-"`

	// Weight is the rule's contribution to match confidence. Must be > 0.
	Weight float64 `json:"weight"`

	// TimeWindowMs bounds the age of the evidence a rule may consider.
	// Reserved: the engine currently evaluates single-submission analyses
	// only, so no metric can be older than its own pipeline pass.
	TimeWindowMs int64 `json:"time_window_ms,omitempty"`

	// ContextualModifier multiplies the observed numeric value when the
	// telemetry context is non-native and the pattern applies to the
	// record's region. Zero means no modifier.
	ContextualModifier float64 `json:"contextual_modifier,omitempty"`

	// re is the compiled regex for OpRegex rules, set by normalize.
	re *regexp.Regexp

	// numeric records whether the wire value was a JSON number.
	numeric bool
}

// ruleWire is the JSON shape of a rule with its polymorphic value.
type ruleWire struct {
	Field              string          `json:"field"`
	Operator           Operator        `json:"operator"`
	Value              json.RawMessage `json:"value"`
	Weight             float64         `json:"weight"`
	TimeWindowMs       int64           `json:"time_window_ms,omitempty"`
	ContextualModifier float64         `json:"contextual_modifier,omitempty"`
}

// UnmarshalJSON decodes the polymorphic "value" field into the matching
// typed slot.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var w ruleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	r.Field = w.Field
	r.Operator = w.Operator
	r.Weight = w.Weight
	r.TimeWindowMs = w.TimeWindowMs
	r.ContextualModifier = w.ContextualModifier
	r.Number = 0
	r.Text = ""
	r.Set = nil
	r.numeric = false

	if len(w.Value) == 0 {
		return fmt.Errorf("rule %q: missing value", w.Field)
	}

	switch w.Value[0] {
	case '[':
		if err := json.Unmarshal(w.Value, &r.Set); err != nil {
			return fmt.Errorf("rule %q: invalid value array: %w", w.Field, err)
		}
	case '"':
		if err := json.Unmarshal(w.Value, &r.Text); err != nil {
			return fmt.Errorf("rule %q: invalid value string: %w", w.Field, err)
		}
	default:
		if err := json.Unmarshal(w.Value, &r.Number); err != nil {
			return fmt.Errorf("rule %q: invalid value number: %w", w.Field, err)
		}
		r.numeric = true
	}

	return nil
}

// MarshalJSON re-encodes the typed value slot into the wire "value" field.
func (r Rule) MarshalJSON() ([]byte, error) {
	var value interface{}
	switch {
	case r.Set != nil:
		value = r.Set
	case r.Text != "":
		value = r.Text
	default:
		value = r.Number
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	return json.Marshal(ruleWire{
		Field:              r.Field,
		Operator:           r.Operator,
		Value:              raw,
		Weight:             r.Weight,
		TimeWindowMs:       r.TimeWindowMs,
		ContextualModifier: r.ContextualModifier,
	})
}

// NumericRule builds a numeric comparison rule.
func NumericRule(field string, op Operator, value, weight float64) Rule {
	return Rule{Field: field, Operator: op, Number: value, Weight: weight, numeric: true}
}

// TextRule builds a textual comparison rule.
func TextRule(field string, op Operator, value string, weight float64) Rule {
	return Rule{Field: field, Operator: op, Text: value, Weight: weight}
}

// SetRule builds a set membership rule (in / not_in).
func SetRule(field string, op Operator, values []string, weight float64) Rule {
	return Rule{Field: field, Operator: op, Set: values, Weight: weight}
}

// IsNumeric reports whether the rule compares in the numeric domain.
func (r *Rule) IsNumeric() bool {
	return r.numeric
}

// AnomalyPattern is a named, weighted rule set detecting one category of
// unsafe condition. Patterns are owned by the Registry: created at startup
// or via AddPattern, and never auto-deleted.
type AnomalyPattern struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// ConfidenceThreshold is the inclusive firing boundary: the pattern
	// fires when match confidence >= threshold.
	ConfidenceThreshold float64 `json:"confidence_threshold"`

	// Rules are evaluated in order against the analysis metrics.
	Rules []Rule `json:"rules"`

	// ApplicableRegions restricts contextual modifiers to these regions.
	// Empty means the pattern applies everywhere.
	ApplicableRegions []string `json:"applicable_regions,omitempty"`

	// SeasonalAdjustments multiplies numeric rule comparison values per
	// season key (winter, spring, summer, autumn). Missing keys mean 1.0.
	SeasonalAdjustments map[string]float64 `json:"seasonal_adjustments,omitempty"`
}

// normalize validates the pattern and compiles regex rules. Called by the
// registry before publication; patterns that fail normalization are rejected.
func (p *AnomalyPattern) normalize() error {
	if p.ID == "" {
		return fmt.Errorf("pattern %q: missing id", p.Name)
	}
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return fmt.Errorf("pattern %s: confidence threshold %f outside [0,1]", p.ID, p.ConfidenceThreshold)
	}
	if len(p.Rules) == 0 {
		return fmt.Errorf("pattern %s: no rules", p.ID)
	}

	for i := range p.Rules {
		r := &p.Rules[i]
		if r.Field == "" {
			return fmt.Errorf("pattern %s: rule %d missing field", p.ID, i)
		}
		if !ValidOperator(r.Operator) {
			return fmt.Errorf("pattern %s: rule %d has unknown operator %q", p.ID, i, r.Operator)
		}
		if r.Weight <= 0 {
			return fmt.Errorf("pattern %s: rule %d weight must be > 0", p.ID, i)
		}
		if r.Operator == OpRegex {
			re, err := regexp.Compile(r.Text)
			if err != nil {
				return fmt.Errorf("pattern %s: rule %d invalid regex: %w", p.ID, i, err)
			}
			r.re = re
		}
		if (r.Operator == OpIn || r.Operator == OpNotIn) && len(r.Set) == 0 {
			return fmt.Errorf("pattern %s: rule %d %s requires a value set", p.ID, i, r.Operator)
		}
	}

	return nil
}

// appliesToRegion reports whether the pattern's contextual modifiers apply
// in the given region.
func (p *AnomalyPattern) appliesToRegion(region string) bool {
	if len(p.ApplicableRegions) == 0 {
		return true
	}
	for _, r := range p.ApplicableRegions {
		if r == region {
			return true
		}
	}
	return false
}
