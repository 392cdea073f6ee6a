// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package api

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/pagesight/internal/models"
)

// SyncService runs syncs for the caller identified in ctx.
type SyncService interface {
	SyncData(ctx context.Context, manual bool) (*models.SyncResult, error)
	LastSyncTime() time.Time
}

// TokenService manages the caller's platform tokens.
type TokenService interface {
	ConnectIntegration(ctx context.Context, shortLivedToken string) (*models.Integration, error)
	RefreshAllTokens(ctx context.Context) (*models.RefreshResult, error)
	GetTokenExpirationInfo(ctx context.Context) (*models.TokenExpirationInfo, error)
}

// SyncQueue accepts background sync requests.
type SyncQueue interface {
	Enqueue(ctx context.Context, userID, source string) (*models.BackgroundSyncAccepted, error)
	Running() <-chan struct{}
}

// ContentStore reads synced content and reports store health.
//
// GetPage only returns pages linked to the given integration, so it doubles
// as the ownership check for page and post reads.
type ContentStore interface {
	GetIntegrationByUser(ctx context.Context, userID, platform string) (*models.Integration, error)
	ListPages(ctx context.Context, integrationID string) ([]models.Page, error)
	GetPage(ctx context.Context, integrationID, pageID string) (*models.Page, error)
	GetPost(ctx context.Context, postID string) (*models.Post, error)
	GetInsightProcessed(ctx context.Context, subjectID, period string, from, to time.Time) ([]models.InsightProcessed, error)
	Ping(ctx context.Context) error
}

// BreakerState reports the Graph API circuit breaker state.
type BreakerState interface {
	State() string
}

// Dependencies wires the Handler. Queue and Breaker are optional.
type Dependencies struct {
	Sync    SyncService
	Tokens  TokenService
	Queue   SyncQueue
	Store   ContentStore
	Breaker BreakerState

	DatabaseBackend string
	Version         string
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers_sync.go: sync, background sync and sync status
//   - handlers_tokens.go: account connection, token refresh and expiration
//   - handlers_pages.go: synced page listing and ownership checks
//   - handlers_insights.go: stored insight reads
//   - handlers_health.go: health and probes
type Handler struct {
	deps      Dependencies
	startTime time.Time
	now       func() time.Time

	runsMu sync.RWMutex
	runs   map[string]models.SyncRun
}

// NewHandler creates an API handler.
func NewHandler(deps Dependencies) *Handler {
	if deps.Version == "" {
		deps.Version = "dev"
	}
	return &Handler{
		deps:      deps,
		startTime: time.Now(),
		now:       time.Now,
		runs:      make(map[string]models.SyncRun),
	}
}
