// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package telemetry

import (
	"time"
)

// EntityType identifies what kind of entity a telemetry record describes.
type EntityType string

const (
	EntityDriver    EntityType = "driver"
	EntityVehicle   EntityType = "vehicle"
	EntityPassenger EntityType = "passenger"
	EntitySystem    EntityType = "system"
)

// ValidEntityType reports whether t is one of the known entity types.
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityDriver, EntityVehicle, EntityPassenger, EntitySystem:
		return true
	}
	return false
}

// MetricStatus classifies a derived metric against its threshold.
type MetricStatus string

const (
	StatusNormal   MetricStatus = "normal"
	StatusWarning  MetricStatus = "warning"
	StatusCritical MetricStatus = "critical"
)

// LocationData carries the positional sub-block of a telemetry record.
type LocationData struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	SpeedKmH  float64 `json:"speed_kmh"`
	Heading   float64 `json:"heading,omitempty"`
	Region    string  `json:"region,omitempty"`
	RoadType  string  `json:"road_type,omitempty"` // city, highway, rural
}

// SensorData carries raw named sensor readings (engine_temp, tire_pressure,
// impact_g, cabin_noise, ...). Readings are normalized upstream; the analyzer
// only thresholds them.
type SensorData struct {
	Readings map[string]float64 `json:"readings"`
}

// BehaviorData carries behavioral signal scores in [0,1]
// (harsh_braking, fatigue, distraction, ...).
type BehaviorData struct {
	Scores map[string]float64 `json:"scores"`
}

// ContextProfile describes the locale/context of the monitored entity.
// It drives contextual risk adjustment and alert message localization.
type ContextProfile struct {
	Language          string            `json:"language"`
	SecondaryLanguage string            `json:"secondary_language,omitempty"`
	HomeRegion        string            `json:"home_region,omitempty"`
	Preferences       map[string]string `json:"preferences,omitempty"`
}

// Record is a single normalized telemetry submission. Records are immutable
// once constructed and are not persisted by the engine.
type Record struct {
	EntityID   string          `json:"entity_id"`
	EntityType EntityType      `json:"entity_type"`
	Timestamp  time.Time       `json:"timestamp"`
	Location   *LocationData   `json:"location_data,omitempty"`
	Sensor     *SensorData     `json:"sensor_data,omitempty"`
	Behavior   *BehaviorData   `json:"behavior_data,omitempty"`
	Context    *ContextProfile `json:"context_profile,omitempty"`
}

// Validate reports whether the record is processable: it must name an entity,
// carry a known entity type, and contain at least one data sub-block.
// Invalid records are signaled by a false return, never an error; the
// pipeline is not entered for them.
func (r *Record) Validate() bool {
	if r == nil || r.EntityID == "" || !ValidEntityType(r.EntityType) {
		return false
	}
	return r.Location != nil || r.Sensor != nil || r.Behavior != nil
}

// Metric is a typed, thresholded reading derived from a telemetry record.
// Metrics are ephemeral: they exist only for the duration of one pipeline pass.
// A metric is either numeric (Text empty) or textual (Text set).
type Metric struct {
	Name      string       `json:"name"`
	Value     float64      `json:"value"`
	Text      string       `json:"text,omitempty"`
	Unit      string       `json:"unit,omitempty"`
	Threshold float64      `json:"threshold,omitempty"`
	Status    MetricStatus `json:"status"`
	SourceID  string       `json:"source_id"`
}

// IsNumeric reports whether the metric carries a numeric reading.
func (m Metric) IsNumeric() bool {
	return m.Text == ""
}

// Analysis is the Context Analyzer's output: derived metrics plus the
// context-adjusted weighted risk score in [0,1].
type Analysis struct {
	EntityID   string          `json:"entity_id"`
	EntityType EntityType      `json:"entity_type"`
	Timestamp  time.Time       `json:"timestamp"`
	Metrics    []Metric        `json:"metrics"`
	RiskScore  float64         `json:"risk_score"`
	Region     string          `json:"region,omitempty"`
	Profile    *ContextProfile `json:"profile,omitempty"`
}

// Metric returns the first metric with the given name, or false when absent.
func (a *Analysis) Metric(name string) (Metric, bool) {
	for _, m := range a.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return Metric{}, false
}
