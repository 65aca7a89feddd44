// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package alert

import (
	"fmt"

	"github.com/fleetwatch/fleetwatch/internal/event"
)

// defaultLanguage is the template fallback when a requested locale has no
// variant.
const defaultLanguage = "en"

// messageTemplates holds severity-and-locale message templates. Placeholders:
// pattern name, entity ID.
var messageTemplates = map[event.Severity]map[string]string{
	event.SeverityLow: {
		"en": "Safety notice: %s detected for %s.",
		"es": "Aviso de seguridad: se detectó %s para %s.",
	},
	event.SeverityMedium: {
		"en": "Safety warning: %s detected for %s. Please review.",
		"es": "Advertencia de seguridad: se detectó %s para %s. Por favor revise.",
	},
	event.SeverityHigh: {
		"en": "Safety alert: %s detected for %s. Action recommended.",
		"es": "Alerta de seguridad: se detectó %s para %s. Se recomienda actuar.",
	},
	event.SeverityCritical: {
		"en": "CRITICAL safety alert: %s detected for %s. Immediate action required.",
		"es": "Alerta de seguridad CRÍTICA: se detectó %s para %s. Se requiere acción inmediata.",
	},
	event.SeverityEmergency: {
		"en": "EMERGENCY: %s detected for %s. Emergency response initiated.",
		"es": "EMERGENCIA: se detectó %s para %s. Respuesta de emergencia iniciada.",
	},
}

// actionTemplates holds severity-and-locale required-action lists.
var actionTemplates = map[event.Severity]map[string][]string{
	event.SeverityHigh: {
		"en": {"Reduce speed", "Check in with dispatch"},
		"es": {"Reduzca la velocidad", "Comuníquese con el despacho"},
	},
	event.SeverityCritical: {
		"en": {"Pull over safely", "Acknowledge this alert", "Contact dispatch immediately"},
		"es": {"Deténgase con seguridad", "Confirme esta alerta", "Contacte al despacho de inmediato"},
	},
	event.SeverityEmergency: {
		"en": {"Stop the vehicle", "Acknowledge this alert", "Await emergency services"},
		"es": {"Detenga el vehículo", "Confirme esta alerta", "Espere a los servicios de emergencia"},
	},
}

// Message renders the alert message for one severity and locale, falling
// back to the default language for unknown locales.
func Message(severity event.Severity, language, patternName, entityID string) string {
	variants, ok := messageTemplates[severity]
	if !ok {
		variants = messageTemplates[event.SeverityLow]
	}
	tmpl, ok := variants[language]
	if !ok {
		tmpl = variants[defaultLanguage]
	}
	return fmt.Sprintf(tmpl, patternName, entityID)
}

// RequiredActions returns the locale-aware action list for one severity.
// Severities below HIGH have no required actions.
func RequiredActions(severity event.Severity, language string) []string {
	variants, ok := actionTemplates[severity]
	if !ok {
		return nil
	}
	if actions, ok := variants[language]; ok {
		return actions
	}
	return variants[defaultLanguage]
}
