// Fleetwatch - Real-Time Fleet Safety Anomaly Detection and Alert Escalation
// Copyright 2026 Fleetwatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fleetwatch/fleetwatch

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/fleetwatch/fleetwatch/internal/alert"
	"github.com/fleetwatch/fleetwatch/internal/engine"
	"github.com/fleetwatch/fleetwatch/internal/event"
	"github.com/fleetwatch/fleetwatch/internal/logging"
	"github.com/fleetwatch/fleetwatch/internal/monitor"
	"github.com/fleetwatch/fleetwatch/internal/pattern"
	"github.com/fleetwatch/fleetwatch/internal/telemetry"
	"github.com/fleetwatch/fleetwatch/internal/validation"
	ws "github.com/fleetwatch/fleetwatch/internal/websocket"
)

// maxBodyBytes bounds request bodies; telemetry records are small.
const maxBodyBytes = 1 << 20

// Handler carries the query and command surface over the safety engine.
type Handler struct {
	engine   *engine.Engine
	events   *event.Store
	alerts   *alert.Store
	registry *pattern.Registry
	tracker  *monitor.Tracker
	reporter *monitor.Reporter
	hub      *ws.Hub
}

// NewHandler wires the handler's collaborators. reporter and hub may be nil;
// the corresponding endpoints then return 404 / 503.
func NewHandler(
	eng *engine.Engine,
	events *event.Store,
	alerts *alert.Store,
	registry *pattern.Registry,
	tracker *monitor.Tracker,
	reporter *monitor.Reporter,
	hub *ws.Hub,
) *Handler {
	return &Handler{
		engine:   eng,
		events:   events,
		alerts:   alerts,
		registry: registry,
		tracker:  tracker,
		reporter: reporter,
		hub:      hub,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}

type errorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeValidationError(w http.ResponseWriter, ve *validation.RequestValidationError) {
	apiErr := ve.ToAPIError()
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:   apiErr.Message,
		Code:    apiErr.Code,
		Details: apiErr.Details,
	})
}

// SubmitTelemetry runs one record through the pipeline synchronously and
// returns the execution result. `?async=true` enqueues instead and returns
// 202; a saturated queue returns 503 so callers back off.
func (h *Handler) SubmitTelemetry(w http.ResponseWriter, r *http.Request) {
	var record telemetry.Record
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, "invalid telemetry payload: "+err.Error())
		return
	}

	if r.URL.Query().Get("async") == "true" {
		if err := h.engine.Submit(&record); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}

	result := h.engine.Process(r.Context(), &record)
	status := http.StatusOK
	switch result.Status {
	case engine.StatusInvalid:
		status = http.StatusUnprocessableEntity
	case engine.StatusFailed:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, result)
}

// ActiveEvents lists safety events detected within the active window.
func (h *Handler) ActiveEvents(w http.ResponseWriter, r *http.Request) {
	events := h.events.GetActive()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// ActiveAlerts lists unacknowledged alerts.
func (h *Handler) ActiveAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := h.alerts.Active()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

type acknowledgeRequest struct {
	AcknowledgedBy string `json:"acknowledged_by" validate:"required,max=128"`
}

// AcknowledgeAlert marks an alert acknowledged. Repeated acknowledgments
// return acknowledged=false without error.
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "id")

	var req acknowledgeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if ve := validation.ValidateStruct(&req); ve != nil {
		writeValidationError(w, ve)
		return
	}

	first, err := h.engine.Acknowledge(alertID, req.AcknowledgedBy)
	if err != nil {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alert_id":     alertID,
		"acknowledged": first,
	})
}

// ListPatterns returns the published pattern set.
func (h *Handler) ListPatterns(w http.ResponseWriter, r *http.Request) {
	patterns := h.registry.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"patterns": patterns,
		"count":    len(patterns),
	})
}

// AddPattern registers a new anomaly pattern. Registration is atomic: the
// new pattern set becomes visible to the matcher as one snapshot swap.
func (h *Handler) AddPattern(w http.ResponseWriter, r *http.Request) {
	var p pattern.AnomalyPattern
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid pattern payload: "+err.Error())
		return
	}

	if err := h.registry.Add(&p); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, &p)
}

// UpdatePattern replaces an existing pattern by ID.
func (h *Handler) UpdatePattern(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var p pattern.AnomalyPattern
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid pattern payload: "+err.Error())
		return
	}
	if p.ID == "" {
		p.ID = id
	}
	if p.ID != id {
		writeError(w, http.StatusBadRequest, "pattern id mismatch")
		return
	}

	if err := h.registry.Update(&p); err != nil {
		if _, ok := h.registry.Get(id); !ok {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, &p)
}

// ComplianceReport computes the score over ?from/?to (RFC 3339). A missing
// ?to defaults to now; a missing ?from defaults to 24 hours before the end.
func (h *Handler) ComplianceReport(w http.ResponseWriter, r *http.Request) {
	if h.reporter == nil {
		writeError(w, http.StatusNotFound, "compliance reporting not configured")
		return
	}

	var from, to time.Time
	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
	}

	writeJSON(w, http.StatusOK, h.reporter.ComplianceReport(from, to))
}

// MonitoringMetrics returns the running counters.
func (h *Handler) MonitoringMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.Snapshot())
}

// ResetMonitoringMetrics zeroes the counters. Explicit operator action only.
func (h *Handler) ResetMonitoringMetrics(w http.ResponseWriter, r *http.Request) {
	h.tracker.Reset()
	logging.Info().Msg("monitoring counters reset by operator")
	writeJSON(w, http.StatusOK, h.tracker.Snapshot())
}

// Health reports the engine's load state. Degraded returns 503 so load
// balancers shed traffic before the queue rejects.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	health := h.engine.HealthCheck()
	status := http.StatusOK
	if health.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}
