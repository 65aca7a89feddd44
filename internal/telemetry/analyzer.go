// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package telemetry

import (
	"sort"
	"time"
)

// Thresholds holds the warning and critical cut-offs for a numeric metric.
// A reading >= Crit is critical, >= Warn is warning, otherwise normal.
type Thresholds struct {
	Warn float64 `json:"warn"`
	Crit float64 `json:"crit"`
}

// AnalyzerConfig configures the Context Analyzer threshold and weight tables.
type AnalyzerConfig struct {
	// SpeedLimits maps a region code to its speed limit in km/h.
	SpeedLimits map[string]float64 `json:"speed_limits"`

	// DefaultSpeedLimit applies when the record's region has no entry.
	DefaultSpeedLimit float64 `json:"default_speed_limit"`

	// SensorThresholds maps a sensor reading name to its cut-offs.
	// Readings without an entry produce metrics with status normal.
	SensorThresholds map[string]Thresholds `json:"sensor_thresholds"`

	// BehaviorThresholds applies to every behavioral score (scores are [0,1]).
	BehaviorThresholds Thresholds `json:"behavior_thresholds"`

	// Weights maps a metric name to its contribution weight in the risk
	// score. Unknown metric names use DefaultWeight.
	Weights map[string]float64 `json:"weights"`

	// DefaultWeight applies to metric names without a Weights entry.
	DefaultWeight float64 `json:"default_weight"`
}

// DefaultAnalyzerConfig returns the built-in threshold and weight tables.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		SpeedLimits: map[string]float64{
			"us-ca": 105,
			"us-tx": 120,
			"de":    130,
			"uk":    112,
		},
		DefaultSpeedLimit: 100,
		SensorThresholds: map[string]Thresholds{
			"engine_temp":  {Warn: 105, Crit: 120},
			"impact_g":     {Warn: 2.5, Crit: 4.0},
			"cabin_noise":  {Warn: 85, Crit: 100},
			"battery_temp": {Warn: 50, Crit: 60},
		},
		BehaviorThresholds: Thresholds{Warn: 0.5, Crit: 0.8},
		Weights: map[string]float64{
			"speed":         0.8,
			"impact_g":      1.0,
			"engine_temp":   0.6,
			"harsh_braking": 0.9,
			"fatigue":       0.9,
			"distraction":   0.8,
		},
		DefaultWeight: 0.5,
	}
}

// Analyzer is the Context Analyzer: it normalizes raw telemetry into typed,
// thresholded metrics and computes the context-adjusted weighted risk score.
// Analyze is a pure transform with no side effects.
type Analyzer struct {
	cfg      AnalyzerConfig
	adjuster ContextAdjuster
}

// NewAnalyzer creates an analyzer with the given tables and adjuster.
// A nil adjuster falls back to the default StaticAdjuster.
func NewAnalyzer(cfg AnalyzerConfig, adjuster ContextAdjuster) *Analyzer {
	if adjuster == nil {
		adjuster = NewStaticAdjuster(DefaultNonNativeFactor)
	}
	if cfg.DefaultSpeedLimit <= 0 {
		cfg.DefaultSpeedLimit = 100
	}
	if cfg.DefaultWeight <= 0 {
		cfg.DefaultWeight = 0.5
	}
	return &Analyzer{cfg: cfg, adjuster: adjuster}
}

// riskByStatus maps a metric status to its risk contribution.
var riskByStatus = map[MetricStatus]float64{
	StatusNormal:   0.1,
	StatusWarning:  0.6,
	StatusCritical: 0.9,
}

// Analyze converts the record's present sub-blocks into metrics and computes
// the weighted risk score. A record with no sub-blocks yields an empty metric
// set and a risk score of 0; upstream validation is expected to reject that
// case before the pipeline is entered.
func (a *Analyzer) Analyze(record *Record) *Analysis {
	analysis := &Analysis{
		EntityID:   record.EntityID,
		EntityType: record.EntityType,
		Timestamp:  record.Timestamp,
		Profile:    record.Context,
	}
	if analysis.Timestamp.IsZero() {
		analysis.Timestamp = time.Now().UTC()
	}
	if record.Location != nil {
		analysis.Region = record.Location.Region
	}

	analysis.Metrics = append(analysis.Metrics, a.locationMetrics(record)...)
	analysis.Metrics = append(analysis.Metrics, a.sensorMetrics(record)...)
	analysis.Metrics = append(analysis.Metrics, a.behaviorMetrics(record)...)

	analysis.RiskScore = a.riskScore(analysis)
	return analysis
}

// locationMetrics derives speed and road type metrics from the location block.
func (a *Analyzer) locationMetrics(record *Record) []Metric {
	loc := record.Location
	if loc == nil {
		return nil
	}

	limit := a.cfg.DefaultSpeedLimit
	if l, ok := a.cfg.SpeedLimits[loc.Region]; ok {
		limit = l
	}

	status := StatusNormal
	switch {
	case loc.SpeedKmH > limit:
		status = StatusCritical
	case loc.SpeedKmH > limit*0.9:
		status = StatusWarning
	}

	metrics := []Metric{{
		Name:      "speed",
		Value:     loc.SpeedKmH,
		Unit:      "km/h",
		Threshold: limit,
		Status:    status,
		SourceID:  record.EntityID,
	}}

	if loc.RoadType != "" {
		metrics = append(metrics, Metric{
			Name:     "road_type",
			Text:     loc.RoadType,
			Status:   StatusNormal,
			SourceID: record.EntityID,
		})
	}

	return metrics
}

// sensorMetrics thresholds each named sensor reading.
func (a *Analyzer) sensorMetrics(record *Record) []Metric {
	if record.Sensor == nil {
		return nil
	}

	metrics := make([]Metric, 0, len(record.Sensor.Readings))
	for _, name := range sortedKeys(record.Sensor.Readings) {
		value := record.Sensor.Readings[name]
		m := Metric{
			Name:     name,
			Value:    value,
			Status:   StatusNormal,
			SourceID: record.EntityID,
		}
		if t, ok := a.cfg.SensorThresholds[name]; ok {
			m.Threshold = t.Crit
			m.Status = statusFor(value, t)
		}
		metrics = append(metrics, m)
	}
	return metrics
}

// behaviorMetrics thresholds each behavioral score against the shared table.
func (a *Analyzer) behaviorMetrics(record *Record) []Metric {
	if record.Behavior == nil {
		return nil
	}

	metrics := make([]Metric, 0, len(record.Behavior.Scores))
	for _, name := range sortedKeys(record.Behavior.Scores) {
		score := record.Behavior.Scores[name]
		metrics = append(metrics, Metric{
			Name:      name,
			Value:     score,
			Threshold: a.cfg.BehaviorThresholds.Crit,
			Status:    statusFor(score, a.cfg.BehaviorThresholds),
			SourceID:  record.EntityID,
		})
	}
	return metrics
}

// riskScore computes the weighted mean of per-metric risk contributions,
// scaled by the contextual adjustment factor and clamped to [0,1].
// Textual metrics carry no risk of their own and are excluded.
func (a *Analyzer) riskScore(analysis *Analysis) float64 {
	var weighted, total float64
	for _, m := range analysis.Metrics {
		if !m.IsNumeric() {
			continue
		}
		w := a.cfg.DefaultWeight
		if ww, ok := a.cfg.Weights[m.Name]; ok {
			w = ww
		}
		weighted += w * riskByStatus[m.Status]
		total += w
	}
	if total == 0 {
		return 0
	}

	score := weighted / total
	score *= a.adjuster.Factor(analysis.Profile, analysis.Region)

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// sortedKeys returns the map keys in lexical order.
// DETERMINISM: metric ordering must not depend on map iteration order, so
// that analyses of identical records are byte-for-byte identical.
func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// statusFor classifies a reading against its thresholds.
func statusFor(value float64, t Thresholds) MetricStatus {
	switch {
	case value >= t.Crit:
		return StatusCritical
	case value >= t.Warn:
		return StatusWarning
	default:
		return StatusNormal
	}
}
