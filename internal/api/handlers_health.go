// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/pagesight/internal/models"
)

// healthPingTimeout bounds the store ping made by health checks.
const healthPingTimeout = 2 * time.Second

// Health reports store connectivity, queue state and the last sync time.
// It always answers 200; use /health/ready for a probe that fails.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, h.healthStatus(r.Context()))
}

// HealthLive returns 200 while the process is serving HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady returns 503 until the store answers and the queue is running.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	status := h.healthStatus(r.Context())
	if status.Status != "healthy" {
		respondJSON(w, http.StatusServiceUnavailable, &models.APIResponse{
			Status:   "error",
			Data:     status,
			Metadata: metadataFor(r),
			Error:    &models.APIError{Code: "NOT_READY", Message: "Service is starting or a dependency is down"},
		})
		return
	}
	respondSuccess(w, r, http.StatusOK, status)
}

func (h *Handler) healthStatus(ctx context.Context) models.HealthStatus {
	pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()

	status := models.HealthStatus{
		Version:           h.deps.Version,
		DatabaseBackend:   h.deps.DatabaseBackend,
		DatabaseConnected: h.deps.Store != nil && h.deps.Store.Ping(pingCtx) == nil,
		QueueRunning:      h.queueRunning(),
		Uptime:            time.Since(h.startTime).Seconds(),
	}
	if h.deps.Breaker != nil {
		status.GraphCircuitBreaker = h.deps.Breaker.State()
	}
	if h.deps.Sync != nil {
		if last := h.deps.Sync.LastSyncTime(); !last.IsZero() {
			status.LastSyncTime = &last
		}
	}

	status.Status = "healthy"
	if !status.DatabaseConnected || (h.deps.Queue != nil && !status.QueueRunning) {
		status.Status = "degraded"
	}
	return status
}

func (h *Handler) queueRunning() bool {
	if h.deps.Queue == nil {
		return false
	}
	select {
	case <-h.deps.Queue.Running():
		return true
	default:
		return false
	}
}
