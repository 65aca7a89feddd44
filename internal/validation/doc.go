// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

/*
Package validation provides struct validation using go-playground/validator v10.

This package wraps the go-playground/validator library to provide a thread-safe
singleton validator instance with custom domain validators and user-friendly
error messages. It integrates with the API error format for consistent error
responses.

# Overview

The package provides:
  - Thread-safe singleton validator (initialized once, cached struct info)
  - Custom validators for safety-domain enums
  - Error translation to human-readable messages
  - APIError conversion matching the application's error format

# Quick Start

	type AcknowledgeRequest struct {
	    AcknowledgedBy string `validate:"required,min=1,max=128"`
	}

	func handler(w http.ResponseWriter, r *http.Request) {
	    var req AcknowledgeRequest
	    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
	        // handle decode error
	    }

	    if verr := validation.ValidateStruct(&req); verr != nil {
	        apiErr := verr.ToAPIError()
	        respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
	        return
	    }

	    // proceed with valid request
	}

# Custom Domain Validators

  - rule_operator: one of gt, lt, eq, ne, in, not_in, contains, regex
  - severity: one of LOW, MEDIUM, HIGH, CRITICAL, EMERGENCY
  - channel: one of push, in_app, sms, call, emergency_services
  - entity_type: one of driver, vehicle, passenger, system

Built-in validators (required, min, max, gte, lte, oneof, latitude,
longitude, datetime, ...) remain available as usual.

# Error Types

ValidationError represents a single field validation failure;
RequestValidationError aggregates them and converts to the API error format
via ToAPIError:

	{
	    "code": "VALIDATION_ERROR",
	    "message": "Operator must be one of: gt, lt, eq, ne, in, not_in, contains, regex",
	    "details": {"field": "Operator", "tag": "rule_operator", "value": "matches"}
	}
*/
package validation
