// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package models

import (
	"time"
)

// APIResponse is the envelope returned by every HTTP endpoint.
//
// Status field values:
//   - "success": request completed, see Data
//   - "error": request failed, see Error
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {
//	    "code": "NO_INTEGRATION",
//	    "message": "Facebook account is not connected"
//	  },
//	  "metadata": {"timestamp": "2026-01-28T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries per-response observability fields.
type Metadata struct {
	Timestamp     time.Time `json:"timestamp"`
	DurationMS    int64     `json:"duration_ms,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// APIError is a machine readable error code plus a message that tells the
// caller what to do next.
//
// Codes:
//   - NOT_AUTHENTICATED: missing or invalid bearer token
//   - NO_INTEGRATION: the caller has not connected an account
//   - UPSTREAM_ERROR: the platform API rejected the request
//   - VALIDATION_ERROR: malformed request body
//   - INTERNAL_ERROR: anything else
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SyncRequest is the body accepted by the sync endpoints.
type SyncRequest struct {
	Manual bool `json:"manual"`
}

// BackgroundSyncAccepted is returned when a sync was queued rather than run.
// Deduplicated is set when a request for the same user was already pending;
// RequestID is then empty and QueuedAt is when the pending one was queued.
type BackgroundSyncAccepted struct {
	RequestID    string    `json:"request_id"`
	QueuedAt     time.Time `json:"queued_at"`
	Deduplicated bool      `json:"deduplicated,omitempty"`
}

// HealthStatus is the body of GET /health.
//
// Status is "healthy" when the store answers a ping and the background queue
// is running, "degraded" otherwise.
type HealthStatus struct {
	Status              string     `json:"status"`
	Version             string     `json:"version"`
	DatabaseBackend     string     `json:"database_backend"`
	DatabaseConnected   bool       `json:"database_connected"`
	QueueRunning        bool       `json:"queue_running"`
	GraphCircuitBreaker string     `json:"graph_circuit_breaker,omitempty"`
	LastSyncTime        *time.Time `json:"last_sync_time,omitempty"`
	Uptime              float64    `json:"uptime_seconds"`
}
