// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tomtom215/pagesight/internal/models"
)

// UpsertPage inserts or updates a page keyed by its platform ID and links it
// to page.IntegrationID in the same transaction. created_at is only written
// on first insert; an empty token keeps the stored one.
func (s *Store) UpsertPage(ctx context.Context, page *models.Page) (err error) {
	start := time.Now()
	defer func() { observe("upsert_page", start, err) }()

	now := s.now().UTC()
	if page.CreatedAt.IsZero() {
		page.CreatedAt = now
	}
	page.UpdatedAt = now

	token, err := s.tokens.Encrypt(page.PageAccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt page token: %w", err)
	}

	return withRetry(ctx, func(ctx context.Context) error {
		return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if _, execErr := tx.Exec(ctx, `INSERT INTO pages (id, integration_id, name, category,
					page_access_token, follower_count, fan_count, is_active, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				ON CONFLICT (id) DO UPDATE SET
					integration_id = EXCLUDED.integration_id,
					name = EXCLUDED.name,
					category = EXCLUDED.category,
					page_access_token = COALESCE(NULLIF(EXCLUDED.page_access_token, ''), pages.page_access_token),
					follower_count = EXCLUDED.follower_count,
					fan_count = EXCLUDED.fan_count,
					is_active = EXCLUDED.is_active,
					updated_at = EXCLUDED.updated_at`,
				page.ID, page.IntegrationID, page.Name, page.Category, token,
				page.FollowerCount, page.FanCount, page.IsActive, page.CreatedAt.UTC(), page.UpdatedAt,
			); execErr != nil {
				return fmt.Errorf("failed to upsert page %s: %w", page.ID, execErr)
			}
			if _, execErr := tx.Exec(ctx, `INSERT INTO page_integrations (page_id, integration_id, linked_at)
				VALUES ($1, $2, $3)
				ON CONFLICT DO NOTHING`,
				page.ID, page.IntegrationID, page.UpdatedAt,
			); execErr != nil {
				return fmt.Errorf("failed to link page %s: %w", page.ID, execErr)
			}
			return nil
		})
	})
}

// UpdatePageAccessToken replaces a stored page token and reports whether
// the page existed.
func (s *Store) UpdatePageAccessToken(ctx context.Context, pageID, accessToken string) (updated bool, err error) {
	start := time.Now()
	defer func() { observe("update_page_token", start, err) }()

	token, err := s.tokens.Encrypt(accessToken)
	if err != nil {
		return false, fmt.Errorf("failed to encrypt page token: %w", err)
	}

	err = withRetry(ctx, func(ctx context.Context) error {
		tag, execErr := s.pool.Exec(ctx,
			`UPDATE pages SET page_access_token = $1, updated_at = $2 WHERE id = $3`,
			token, s.now().UTC(), pageID)
		if execErr != nil {
			return fmt.Errorf("failed to update page token %s: %w", pageID, execErr)
		}
		updated = tag.RowsAffected() > 0
		return nil
	})
	return updated, err
}

const linkedPageSelect = `SELECT p.id, l.integration_id, p.name, p.category, p.page_access_token,
		p.follower_count, p.fan_count, p.is_active, p.created_at, p.updated_at
	FROM pages p
	JOIN page_integrations l ON l.page_id = p.id`

// GetPage returns a page linked to integrationID, or (nil, nil).
func (s *Store) GetPage(ctx context.Context, integrationID, pageID string) (_ *models.Page, err error) {
	start := time.Now()
	defer func() { observe("get_page", start, err) }()

	page, err := s.scanPage(s.pool.QueryRow(ctx,
		linkedPageSelect+` WHERE l.integration_id = $1 AND p.id = $2`, integrationID, pageID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return page, nil
}

// ListPages returns the pages linked to an integration, ordered by name.
func (s *Store) ListPages(ctx context.Context, integrationID string) (_ []models.Page, err error) {
	start := time.Now()
	defer func() { observe("list_pages", start, err) }()

	rows, err := s.pool.Query(ctx,
		linkedPageSelect+` WHERE l.integration_id = $1 ORDER BY p.name, p.id`, integrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var pages []models.Page
	for rows.Next() {
		page, scanErr := s.scanPage(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan page: %w", scanErr)
		}
		pages = append(pages, *page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pages: %w", err)
	}
	return pages, nil
}

func (s *Store) scanPage(row pgx.Row) (*models.Page, error) {
	var page models.Page
	if err := row.Scan(&page.ID, &page.IntegrationID, &page.Name, &page.Category, &page.PageAccessToken,
		&page.FollowerCount, &page.FanCount, &page.IsActive, &page.CreatedAt, &page.UpdatedAt); err != nil {
		return nil, err
	}

	token, err := s.tokens.Decrypt(page.PageAccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt token for page %s: %w", page.ID, err)
	}
	page.PageAccessToken = token
	page.CreatedAt = page.CreatedAt.UTC()
	page.UpdatedAt = page.UpdatedAt.UTC()
	return &page, nil
}

// UpsertPost inserts or updates a post. created_time is immutable.
func (s *Store) UpsertPost(ctx context.Context, post *models.Post) (err error) {
	start := time.Now()
	defer func() { observe("upsert_post", start, err) }()

	post.UpdatedAt = s.now().UTC()
	createdTime := post.CreatedTime.UTC()
	if post.CreatedTime.IsZero() {
		createdTime = post.UpdatedAt
	}

	return withRetry(ctx, func(ctx context.Context) error {
		_, execErr := s.pool.Exec(ctx, `INSERT INTO posts (id, page_id, created_time, message,
				permalink_url, status_type, shares_count, reactions_count, comments_count, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET
				page_id = EXCLUDED.page_id,
				message = EXCLUDED.message,
				permalink_url = EXCLUDED.permalink_url,
				status_type = EXCLUDED.status_type,
				shares_count = EXCLUDED.shares_count,
				reactions_count = EXCLUDED.reactions_count,
				comments_count = EXCLUDED.comments_count,
				updated_at = EXCLUDED.updated_at`,
			post.ID, post.PageID, createdTime, post.Message, post.PermalinkURL, post.StatusType,
			post.SharesCount, post.ReactionsCount, post.CommentsCount, post.UpdatedAt)
		if execErr != nil {
			return fmt.Errorf("failed to upsert post %s: %w", post.ID, execErr)
		}
		return nil
	})
}

// GetPost returns a stored post, or (nil, nil).
func (s *Store) GetPost(ctx context.Context, postID string) (_ *models.Post, err error) {
	start := time.Now()
	defer func() { observe("get_post", start, err) }()

	var post models.Post
	err = s.pool.QueryRow(ctx, `SELECT id, page_id, created_time, message, permalink_url,
			status_type, shares_count, reactions_count, comments_count, updated_at
		FROM posts WHERE id = $1`, postID,
	).Scan(&post.ID, &post.PageID, &post.CreatedTime, &post.Message, &post.PermalinkURL,
		&post.StatusType, &post.SharesCount, &post.ReactionsCount, &post.CommentsCount, &post.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	post.CreatedTime = post.CreatedTime.UTC()
	post.UpdatedAt = post.UpdatedAt.UTC()
	return &post, nil
}
