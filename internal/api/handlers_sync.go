// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package api

import (
	"net/http"

	"github.com/tomtom215/pagesight/internal/auth"
	"github.com/tomtom215/pagesight/internal/eventprocessor"
	"github.com/tomtom215/pagesight/internal/logging"
	"github.com/tomtom215/pagesight/internal/models"
)

// Sync runs a sync for the caller and returns its result.
//
// Body (optional): {"manual": true}. A non-manual sync of fresh data is
// skipped and reported with skipped=true.
//
// @Summary Run a sync
// @Description Syncs every page the caller manages, with their posts and insights. A non-manual sync of data younger than the stale window is skipped.
// @Tags sync
// @Accept json
// @Produce json
// @Param request body models.SyncRequest false "Set manual to force a sync of fresh data"
// @Success 200 {object} models.APIResponse{data=models.SyncResult}
// @Failure 400 {object} models.APIResponse "Malformed body"
// @Failure 401 {object} models.APIResponse "Missing or invalid bearer token"
// @Failure 404 {object} models.APIResponse "No connected Facebook account"
// @Failure 502 {object} models.APIResponse "Facebook rejected or throttled the request"
// @Security BearerAuth
// @Router /sync [post]
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	var req models.SyncRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, codeValidation, "Request body must be JSON like {\"manual\": true}", err)
		return
	}

	result, err := h.deps.Sync.SyncData(r.Context(), req.Manual)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondSuccess(w, r, http.StatusOK, result)
}

// SyncBackground queues a non-manual sync and returns 202 without waiting.
// Progress and failures are only visible in logs and metrics.
//
// @Summary Queue a background sync
// @Description Queues a non-manual sync for the caller and returns immediately. Repeated requests while one is pending are deduplicated.
// @Tags sync
// @Produce json
// @Success 202 {object} models.APIResponse{data=models.BackgroundSyncAccepted}
// @Failure 401 {object} models.APIResponse "Missing or invalid bearer token"
// @Failure 503 {object} models.APIResponse "Background queue unavailable"
// @Security BearerAuth
// @Router /sync/background [post]
func (h *Handler) SyncBackground(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, codeNotAuthenticated, msgNotAuthenticated, nil)
		return
	}
	if h.deps.Queue == nil {
		respondServiceError(w, r, ErrQueueDisabled)
		return
	}

	accepted, err := h.deps.Queue.Enqueue(r.Context(), userID, eventprocessor.SourceAPI)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if accepted.Deduplicated {
		logging.Ctx(r.Context()).Debug().Str("user_id", userID).Msg("Background sync already pending")
	}
	respondSuccess(w, r, http.StatusAccepted, accepted)
}

// SyncStatus reports the caller's last persisted sync time and, when a sync
// finished since startup, its stats and duration.
//
// @Summary Get sync status
// @Description Returns the caller's last sync time and the stats of the last sync completed by this server
// @Tags sync
// @Produce json
// @Success 200 {object} models.APIResponse{data=models.SyncStatus}
// @Failure 401 {object} models.APIResponse "Missing or invalid bearer token"
// @Failure 404 {object} models.APIResponse "No connected Facebook account"
// @Security BearerAuth
// @Router /sync/status [get]
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	integration, err := h.callerIntegration(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	status := models.SyncStatus{LastSyncAt: integration.LastSyncAt}
	h.runsMu.RLock()
	if run, ok := h.runs[integration.UserID]; ok {
		status.LastRun = &run
	}
	h.runsMu.RUnlock()

	respondSuccess(w, r, http.StatusOK, status)
}

// OnSyncCompleted records a finished sync for SyncStatus.
// It is registered with the sync manager's SetOnSyncCompleted at startup and
// is safe for concurrent use.
func (h *Handler) OnSyncCompleted(userID string, stats models.SyncStats, durationMs int64) {
	h.runsMu.Lock()
	h.runs[userID] = models.SyncRun{
		CompletedAt: h.now().UTC(),
		DurationMs:  durationMs,
		Stats:       stats,
	}
	h.runsMu.Unlock()

	logging.Debug().Str("user_id", userID).Int("records", stats.Total()).Int64("duration_ms", durationMs).Msg("Sync status updated")
}
