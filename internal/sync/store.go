// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package sync

import (
	"context"
	"time"

	"github.com/tomtom215/pagesight/internal/models"
)

// Store is the persistence surface used by the sync and token managers.
//
// Implementations live in internal/database (DuckDB) and
// internal/database/pg (Postgres). Upserts never change a row's creation
// time. GetIntegrationByUser returns (nil, nil) when the user has no
// integration for the platform. UpsertIntegration keeps an existing row's ID
// and writes it back into the argument.
type Store interface {
	UpsertIntegration(ctx context.Context, integration *models.Integration) error
	GetIntegrationByUser(ctx context.Context, userID, platform string) (*models.Integration, error)
	ListIntegrations(ctx context.Context, platform string) ([]models.Integration, error)
	UpdateIntegrationToken(ctx context.Context, integrationID, accessToken string, expiresAt time.Time) error
	UpdateIntegrationLastSync(ctx context.Context, integrationID string, lastSyncAt time.Time) error

	UpsertPage(ctx context.Context, page *models.Page) error
	// UpdatePageAccessToken reports whether a stored page matched pageID.
	UpdatePageAccessToken(ctx context.Context, pageID, accessToken string) (bool, error)
	UpsertPost(ctx context.Context, post *models.Post) error

	UpsertInsightRaw(ctx context.Context, raw *models.InsightRaw) error
	UpsertInsightProcessed(ctx context.Context, records []models.InsightProcessed) error

	GetInsightRaw(ctx context.Context, subjectID string, fetchedAt time.Time) (*models.InsightRaw, error)
	GetInsightProcessed(ctx context.Context, subjectID, period string, from, to time.Time) ([]models.InsightProcessed, error)
}
