// Punchsync - Biometric Attendance Terminal Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/punchsync/internal/logging"
	syncpkg "github.com/tomtom215/punchsync/internal/sync"
)

// Response is the envelope of every admin API response.
type Response struct {
	Status    string      `json:"status"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
	Error     *Error      `json:"error,omitempty"`
}

// Error describes a failed request.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Health is the /healthz payload.
type Health struct {
	Status              string     `json:"status"`
	Uptime              float64    `json:"uptime_seconds"`
	SyncRunning         bool       `json:"sync_running"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
}

// TriggerResult is returned by POST /api/v1/sync/trigger.
type TriggerResult struct {
	Started bool           `json:"started"`
	Sync    syncpkg.Status `json:"sync"`
}

// Handler implements the admin endpoints.
type Handler struct {
	sync      SyncController
	startTime time.Time
}

// NewHandler creates a handler backed by ctrl.
func NewHandler(ctrl SyncController) *Handler {
	return &Handler{sync: ctrl, startTime: time.Now()}
}

// Healthz reports liveness. The daemon is "degraded" while the latest
// runs are failing; the status code stays 200 because the process itself
// is serving.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	st := h.sync.Status()

	status := "healthy"
	if st.ConsecutiveFailures > 0 {
		status = "degraded"
	}

	respondJSON(w, http.StatusOK, &Response{
		Status: "success",
		Data: Health{
			Status:              status,
			Uptime:              time.Since(h.startTime).Seconds(),
			SyncRunning:         st.Running,
			LastSuccessAt:       st.LastSuccessAt,
			ConsecutiveFailures: st.ConsecutiveFailures,
		},
		Timestamp: time.Now(),
	})
}

// SyncStatus returns the manager's status snapshot.
func (h *Handler) SyncStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, &Response{
		Status:    "success",
		Data:      h.sync.Status(),
		Timestamp: time.Now(),
	})
}

// SyncTrigger starts a run in the background. 409 means a run is already
// in progress and nothing was started.
func (h *Handler) SyncTrigger(w http.ResponseWriter, r *http.Request) {
	if !h.sync.Trigger(r.Context()) {
		logging.Ctx(r.Context()).Info().Msg("Manual sync trigger rejected, run in progress")
		respondError(w, http.StatusConflict, "SYNC_IN_PROGRESS", "A sync run is already in progress", nil)
		return
	}

	logging.Ctx(r.Context()).Info().Msg("Manual sync triggered")
	respondJSON(w, http.StatusAccepted, &Response{
		Status:    "success",
		Data:      TriggerResult{Started: true, Sync: h.sync.Status()},
		Timestamp: time.Now(),
	})
}

func respondJSON(w http.ResponseWriter, status int, response *Response) {
	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Err(err).Msg("API error")
	}
	respondJSON(w, status, &Response{
		Status:    "error",
		Timestamp: time.Now(),
		Error:     &Error{Code: code, Message: message},
	})
}
