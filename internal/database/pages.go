// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/pagesight/internal/models"
)

const pageColumns = `id, integration_id, name, category, page_access_token,
	follower_count, fan_count, is_active, created_at, updated_at`

// UpsertPage inserts or updates a page keyed by its platform ID and links it
// to page.IntegrationID. created_at is only written on first insert. An
// empty access token keeps the stored one. Links from other integrations
// are left in place.
func (db *DB) UpsertPage(ctx context.Context, page *models.Page) (err error) {
	start := time.Now()
	defer func() { observe("upsert_page", start, err) }()

	now := db.now().UTC()
	if page.CreatedAt.IsZero() {
		page.CreatedAt = now
	}
	page.UpdatedAt = now

	token, err := db.tokens.Encrypt(page.PageAccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt page token: %w", err)
	}

	return withConflictRetry(ctx, func(ctx context.Context) error {
		return db.upsertPageTx(ctx, page, token)
	})
}

func (db *DB) upsertPageTx(ctx context.Context, page *models.Page, token string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `INSERT INTO pages (`+pageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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
		page.FollowerCount, page.FanCount, page.IsActive,
		page.CreatedAt.UTC(), page.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to upsert page %s: %w", page.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO page_integrations (page_id, integration_id, linked_at)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING`,
		page.ID, page.IntegrationID, page.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to link page %s: %w", page.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit page %s: %w", page.ID, err)
	}
	committed = true
	return nil
}

// UpdatePageAccessToken replaces a stored page token. It reports false when
// no page with that ID has been stored yet.
func (db *DB) UpdatePageAccessToken(ctx context.Context, pageID, accessToken string) (updated bool, err error) {
	start := time.Now()
	defer func() { observe("update_page_token", start, err) }()

	token, err := db.tokens.Encrypt(accessToken)
	if err != nil {
		return false, fmt.Errorf("failed to encrypt page token: %w", err)
	}

	err = withConflictRetry(ctx, func(ctx context.Context) error {
		result, execErr := db.conn.ExecContext(ctx,
			`UPDATE pages SET page_access_token = ?, updated_at = ? WHERE id = ?`,
			token, db.now().UTC(), pageID)
		if execErr != nil {
			return fmt.Errorf("failed to update page token %s: %w", pageID, execErr)
		}
		n, execErr := result.RowsAffected()
		if execErr != nil {
			return fmt.Errorf("failed to read affected rows: %w", execErr)
		}
		updated = n > 0
		return nil
	})
	return updated, err
}

// linkedPageColumns selects a page as seen through one of its links, so
// IntegrationID is the linked integration rather than the last writer.
const linkedPageColumns = `p.id, l.integration_id, p.name, p.category, p.page_access_token,
	p.follower_count, p.fan_count, p.is_active, p.created_at, p.updated_at`

// GetPage returns a page linked to integrationID, or (nil, nil) when the page
// is unknown or was never synced through that integration.
func (db *DB) GetPage(ctx context.Context, integrationID, pageID string) (_ *models.Page, err error) {
	start := time.Now()
	defer func() { observe("get_page", start, err) }()

	page, err := db.scanPage(db.conn.QueryRowContext(ctx, `SELECT `+linkedPageColumns+`
		FROM pages p
		JOIN page_integrations l ON l.page_id = p.id
		WHERE l.integration_id = ? AND p.id = ?`, integrationID, pageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return page, nil
}

// ListPages returns the pages linked to an integration, ordered by name.
func (db *DB) ListPages(ctx context.Context, integrationID string) (_ []models.Page, err error) {
	start := time.Now()
	defer func() { observe("list_pages", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `SELECT `+linkedPageColumns+`
		FROM pages p
		JOIN page_integrations l ON l.page_id = p.id
		WHERE l.integration_id = ?
		ORDER BY p.name, p.id`, integrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer closeWithLog(rows, "page rows")

	var pages []models.Page
	for rows.Next() {
		page, scanErr := db.scanPage(rows)
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

func (db *DB) scanPage(row rowScanner) (*models.Page, error) {
	var (
		page     models.Page
		category sql.NullString
		token    sql.NullString
	)
	if err := row.Scan(
		&page.ID, &page.IntegrationID, &page.Name, &category, &token,
		&page.FollowerCount, &page.FanCount, &page.IsActive, &page.CreatedAt, &page.UpdatedAt,
	); err != nil {
		return nil, err
	}

	decrypted, err := db.tokens.Decrypt(token.String)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt token for page %s: %w", page.ID, err)
	}
	page.Category = category.String
	page.PageAccessToken = decrypted
	page.CreatedAt = page.CreatedAt.UTC()
	page.UpdatedAt = page.UpdatedAt.UTC()
	return &page, nil
}
