// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package event

// Classification thresholds shared by both classifiers.
const (
	breakpointEmergency = 0.9
	breakpointCritical  = 0.7
	breakpointHigh      = 0.5
	breakpointMedium    = 0.3
)

// alertConfidenceThreshold is the strict lower bound on match confidence for
// an event to trigger an alert.
const alertConfidenceThreshold = 0.8

// responseRiskThreshold is the strict lower bound on raw risk for an event to
// require an operational response.
const responseRiskThreshold = 0.7

// ClassifySeverity maps the confidence-scaled risk to a severity tier.
//
// NOTE: severity and escalation level are intentionally asymmetric. Severity
// scales risk by match confidence; EscalationLevel (below) uses the RAW risk
// score only. Downstream consumers depend on this discrepancy, so it must be
// preserved, not "fixed".
func ClassifySeverity(riskScore, matchConfidence float64) Severity {
	adjusted := riskScore * matchConfidence
	switch {
	case adjusted >= breakpointEmergency:
		return SeverityEmergency
	case adjusted >= breakpointCritical:
		return SeverityCritical
	case adjusted >= breakpointHigh:
		return SeverityHigh
	case adjusted >= breakpointMedium:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// ClassifyEscalationLevel maps the RAW risk score to a 0-3 escalation tier.
// See the asymmetry note on ClassifySeverity: confidence is deliberately
// not applied here.
func ClassifyEscalationLevel(riskScore float64) int {
	switch {
	case riskScore >= breakpointEmergency:
		return 3
	case riskScore >= breakpointCritical:
		return 2
	case riskScore >= breakpointHigh:
		return 1
	default:
		return 0
	}
}

// AlertTriggered reports whether the match confidence mandates an alert.
// The bound is strict: confidence exactly 0.8 does not trigger.
func AlertTriggered(matchConfidence float64) bool {
	return matchConfidence > alertConfidenceThreshold
}

// ResponseRequired reports whether the raw risk mandates a response.
func ResponseRequired(riskScore float64) bool {
	return riskScore > responseRiskThreshold
}
