// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/pagesight/internal/auth"
	"github.com/tomtom215/pagesight/internal/logging"
	"github.com/tomtom215/pagesight/internal/metrics"
	"github.com/tomtom215/pagesight/internal/models"
	"github.com/tomtom215/pagesight/internal/models/graph"
	"github.com/tomtom215/pagesight/internal/validation"
)

// SyncForUser runs SyncData on behalf of userID.
// Used by the background queue, which has no request identity.
func (m *Manager) SyncForUser(ctx context.Context, userID string, manual bool) (*models.SyncResult, error) {
	return m.SyncData(auth.ContextWithUserID(ctx, userID), manual)
}

// SyncData syncs every page the caller owns, with their posts and insights.
//
// Fails with ErrNotAuthenticated or ErrNoIntegration before any network call,
// and with the Graph error when the owned-pages list cannot be fetched. All
// per-page and per-post failures are logged and only lower the returned
// stats. A fresh, non-manual sync is skipped without network calls.
//
// Concurrent calls for the same user are serialized; the second caller
// re-checks staleness once it holds the lock.
func (m *Manager) SyncData(ctx context.Context, manual bool) (*models.SyncResult, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}

	integration, err := loadIntegration(ctx, m.store, userID)
	if err != nil {
		return nil, err
	}
	if !checkSyncWithin(manual, integration.LastSyncAt, m.now(), m.staleAfter()) {
		metrics.RecordSyncSkipped()
		return &models.SyncResult{Success: true, Skipped: true}, nil
	}

	unlock, err := m.locks.Lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("waiting for running sync: %w", err)
	}
	defer unlock()

	// Another sync may have finished while we waited.
	integration, err = loadIntegration(ctx, m.store, userID)
	if err != nil {
		return nil, err
	}
	if !checkSyncWithin(manual, integration.LastSyncAt, m.now(), m.staleAfter()) {
		metrics.RecordSyncSkipped()
		return &models.SyncResult{Success: true, Skipped: true}, nil
	}

	return m.runSync(ctx, userID, integration)
}

// runSync performs one sync while the user's lock is held.
func (m *Manager) runSync(ctx context.Context, userID string, integration *models.Integration) (*models.SyncResult, error) {
	startedAt := m.now().UTC()
	start := time.Now()

	ctx = logging.ContextWithSyncRunID(ctx, uuid.New().String())
	log := logging.Ctx(ctx)
	log.Info().Str("user_id", userID).Str("integration_id", integration.ID).Msg("Starting sync")

	integration = m.refreshTokensIfNeeded(ctx, userID, integration)

	pages, err := m.client.FetchOwnedPages(ctx, integration.AccessToken)
	if err != nil {
		err = fmt.Errorf("failed to fetch owned pages: %w", err)
		metrics.RecordSyncOperation(time.Since(start), 0, err)
		return nil, err
	}

	stats := m.syncPages(ctx, integration, userID, pages)

	if err := ctx.Err(); err != nil {
		metrics.RecordSyncOperation(time.Since(start), stats.Total(), err)
		return nil, fmt.Errorf("sync interrupted: %w", err)
	}

	if err := m.store.UpdateIntegrationLastSync(ctx, integration.ID, startedAt); err != nil {
		log.Warn().Err(err).Str("integration_id", integration.ID).Msg("Failed to record last sync time")
	}

	duration := time.Since(start)
	metrics.RecordSyncOperation(duration, stats.Total(), nil)

	m.mu.Lock()
	m.lastSync = startedAt
	callback := m.onSyncCompleted
	m.mu.Unlock()

	log.Info().
		Int("pages", stats.PagesSynced).
		Int("page_insights", stats.PageInsightsSynced).
		Int("posts", stats.PostsSynced).
		Int("post_insights", stats.PostInsightsSynced).
		Dur("duration", duration).
		Msg("Sync completed")

	if callback != nil {
		callback(userID, stats, duration.Milliseconds())
	}

	return &models.SyncResult{Success: true, SyncedAt: &startedAt, Stats: &stats}, nil
}

// refreshTokensIfNeeded runs the token lifecycle check and returns the
// integration to sync with. Failures keep the current token.
func (m *Manager) refreshTokensIfNeeded(ctx context.Context, userID string, integration *models.Integration) *models.Integration {
	if m.tokens == nil || !m.cfg.Sync.AutoRefreshTokens {
		return integration
	}

	result, err := m.tokens.AutoRefreshTokensIfNeeded(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Token refresh failed, syncing with current token")
		return integration
	}
	if !result.Refreshed {
		return integration
	}

	reloaded, err := loadIntegration(ctx, m.store, userID)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to reload integration after token refresh")
		return integration
	}
	return reloaded
}

// syncPages processes pages with at most pageWorkers in flight. Each page's
// stats are kept in its own slot so attribution is exact, and a failing page
// never cancels its siblings.
func (m *Manager) syncPages(ctx context.Context, integration *models.Integration, userID string, pages []graph.PageSummary) models.SyncStats {
	results := make([]models.SyncStats, len(pages))

	var g errgroup.Group
	g.SetLimit(m.pageWorkers())
	for i := range pages {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = m.syncPage(ctx, integration, userID, pages[i])
			return nil
		})
	}
	_ = g.Wait()

	var total models.SyncStats
	for _, r := range results {
		total.Add(r)
	}
	return total
}

// syncPage stores one page and then its insights and posts.
// If the page itself cannot be stored nothing else is fetched for it.
func (m *Manager) syncPage(ctx context.Context, integration *models.Integration, userID string, summary graph.PageSummary) models.SyncStats {
	var stats models.SyncStats
	log := logging.Ctx(ctx).With().Str("page_id", summary.ID).Logger()

	if verr := validation.ValidateStruct(&summary); verr != nil {
		metrics.RecordSyncItemFailure("page")
		log.Warn().Err(verr).Msg("Skipping malformed page")
		return stats
	}

	page := &models.Page{
		ID:              summary.ID,
		IntegrationID:   integration.ID,
		Name:            summary.Name,
		Category:        summary.Category,
		PageAccessToken: summary.AccessToken,
		FollowerCount:   summary.FollowersCount,
		FanCount:        summary.FanCount,
		IsActive:        true,
	}
	if err := m.store.UpsertPage(ctx, page); err != nil {
		metrics.RecordSyncItemFailure("page")
		log.Warn().Err(err).Msg("Failed to store page, skipping it")
		return stats
	}
	stats.PagesSynced = 1

	batch, err := m.client.FetchPageInsights(ctx, page.ID, page.PageAccessToken, m.cfg.Facebook.PageInsightsPeriod, nil)
	if err != nil {
		metrics.RecordSyncItemFailure("page_insights")
		log.Warn().Err(err).Msg("Failed to fetch page insights")
	} else {
		stats.PageInsightsSynced = m.persistInsights(ctx, models.SubjectPage, page.ID, userID, batch)
	}

	posts, err := m.client.FetchPagePosts(ctx, page.ID, page.PageAccessToken, m.cfg.Facebook.PostsLimit, nil)
	if err != nil {
		metrics.RecordSyncItemFailure("posts")
		log.Warn().Err(err).Msg("Failed to fetch page posts")
		return stats
	}

	for i := range posts {
		if ctx.Err() != nil {
			break
		}
		stats.Add(m.syncPost(ctx, page, userID, &posts[i]))
	}
	return stats
}

// syncPost stores one post and its insights. A metadata failure falls back
// to the summary from the posts listing.
func (m *Manager) syncPost(ctx context.Context, page *models.Page, userID string, summary *graph.Post) models.SyncStats {
	var stats models.SyncStats
	log := logging.Ctx(ctx).With().Str("page_id", page.ID).Str("post_id", summary.ID).Logger()

	meta, err := m.client.FetchPostMetadata(ctx, summary.ID, page.PageAccessToken, nil)
	if err != nil || meta == nil || meta.ID == "" {
		if err != nil {
			log.Debug().Err(err).Msg("Post metadata unavailable, using summary")
		}
		meta = summary
	}

	post := &models.Post{
		ID:             meta.ID,
		PageID:         page.ID,
		CreatedTime:    meta.CreatedTime.Time,
		Message:        meta.Message,
		PermalinkURL:   meta.PermalinkURL,
		StatusType:     meta.StatusType,
		SharesCount:    meta.SharesCount(),
		ReactionsCount: meta.ReactionsCount(),
		CommentsCount:  meta.CommentsCount(),
	}
	if err := m.store.UpsertPost(ctx, post); err != nil {
		metrics.RecordSyncItemFailure("post")
		log.Warn().Err(err).Msg("Failed to store post, skipping its insights")
		return stats
	}
	stats.PostsSynced = 1

	batch, err := m.client.FetchPostInsights(ctx, post.ID, page.PageAccessToken, m.cfg.Facebook.PostInsightsPeriod, nil)
	if err != nil {
		metrics.RecordSyncItemFailure("post_insights")
		log.Warn().Err(err).Msg("Failed to fetch post insights")
		return stats
	}
	stats.PostInsightsSynced = m.persistInsights(ctx, models.SubjectPost, post.ID, userID, batch)
	return stats
}

// persistInsights writes one raw row per response and a single grouped
// processed upsert. It returns the number of metric values written.
func (m *Manager) persistInsights(ctx context.Context, subjectType, subjectID, userID string, batch *InsightBatch) int {
	log := logging.Ctx(ctx)

	raws := RawInsights(subjectID, subjectType, userID, batch)
	for i := range raws {
		if err := m.store.UpsertInsightRaw(ctx, &raws[i]); err != nil {
			metrics.RecordSyncItemFailure("insight_raw")
			log.Warn().Err(err).Str("subject_id", subjectID).Time("fetched_at", raws[i].FetchedAt).Msg("Failed to store raw insights")
		}
	}

	records := GroupInsights(subjectID, subjectType, userID, batch)
	if len(records) == 0 {
		return 0
	}
	if err := m.store.UpsertInsightProcessed(ctx, records); err != nil {
		metrics.RecordSyncItemFailure("insight_processed")
		log.Warn().Err(err).Str("subject_id", subjectID).Int("records", len(records)).Msg("Failed to store processed insights")
		return 0
	}
	return countMetricValues(records)
}
