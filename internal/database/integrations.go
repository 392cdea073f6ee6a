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

	"github.com/google/uuid"

	"github.com/tomtom215/pagesight/internal/models"
)

const integrationColumns = `id, user_id, platform, access_token, token_expires_at,
	last_sync_at, created_at, updated_at`

// UpsertIntegration creates or replaces the user's integration for a platform.
// An existing row keeps its ID and created_at; the token and expiry are
// overwritten. Missing IDs are generated.
func (db *DB) UpsertIntegration(ctx context.Context, integration *models.Integration) (err error) {
	start := time.Now()
	defer func() { observe("upsert_integration", start, err) }()

	if integration.ID == "" {
		integration.ID = uuid.New().String()
	}
	now := db.now().UTC()
	if integration.CreatedAt.IsZero() {
		integration.CreatedAt = now
	}
	integration.UpdatedAt = now

	token, err := db.tokens.Encrypt(integration.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	query := `INSERT INTO integrations (` + integrationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, platform) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			token_expires_at = EXCLUDED.token_expires_at,
			updated_at = EXCLUDED.updated_at`

	return withConflictRetry(ctx, func(ctx context.Context) error {
		_, execErr := db.conn.ExecContext(ctx, query,
			integration.ID, integration.UserID, integration.Platform, token,
			utcPtr(integration.TokenExpiresAt), utcPtr(integration.LastSyncAt),
			integration.CreatedAt.UTC(), integration.UpdatedAt)
		if execErr != nil {
			return fmt.Errorf("failed to upsert integration: %w", execErr)
		}
		// Pick up the surviving row's identity when the insert hit a conflict.
		if scanErr := db.conn.QueryRowContext(ctx,
			`SELECT id, created_at FROM integrations WHERE user_id = ? AND platform = ?`,
			integration.UserID, integration.Platform,
		).Scan(&integration.ID, &integration.CreatedAt); scanErr != nil {
			return fmt.Errorf("failed to read upserted integration: %w", scanErr)
		}
		integration.CreatedAt = integration.CreatedAt.UTC()
		return nil
	})
}

// GetIntegrationByUser returns the user's integration for a platform, or
// (nil, nil) when none exists.
func (db *DB) GetIntegrationByUser(ctx context.Context, userID, platform string) (_ *models.Integration, err error) {
	start := time.Now()
	defer func() { observe("get_integration", start, err) }()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE user_id = ? AND platform = ?`,
		userID, platform)

	integration, err := db.scanIntegration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	return integration, nil
}

// ListIntegrations returns every integration for a platform, oldest first.
func (db *DB) ListIntegrations(ctx context.Context, platform string) (_ []models.Integration, err error) {
	start := time.Now()
	defer func() { observe("list_integrations", start, err) }()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE platform = ? ORDER BY created_at, id`,
		platform)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	defer closeWithLog(rows, "integration rows")

	var integrations []models.Integration
	for rows.Next() {
		integration, scanErr := db.scanIntegration(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan integration: %w", scanErr)
		}
		integrations = append(integrations, *integration)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating integrations: %w", err)
	}
	return integrations, nil
}

// UpdateIntegrationToken stores a refreshed user token and its expiry.
func (db *DB) UpdateIntegrationToken(ctx context.Context, integrationID, accessToken string, expiresAt time.Time) (err error) {
	start := time.Now()
	defer func() { observe("update_integration_token", start, err) }()

	token, err := db.tokens.Encrypt(accessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	return db.updateIntegration(ctx,
		`UPDATE integrations SET access_token = ?, token_expires_at = ?, updated_at = ? WHERE id = ?`,
		integrationID, token, expiresAt.UTC(), db.now().UTC(), integrationID)
}

// UpdateIntegrationLastSync records when a sync for the integration started.
func (db *DB) UpdateIntegrationLastSync(ctx context.Context, integrationID string, lastSyncAt time.Time) (err error) {
	start := time.Now()
	defer func() { observe("update_integration_last_sync", start, err) }()

	return db.updateIntegration(ctx,
		`UPDATE integrations SET last_sync_at = ?, updated_at = ? WHERE id = ?`,
		integrationID, lastSyncAt.UTC(), db.now().UTC(), integrationID)
}

func (db *DB) updateIntegration(ctx context.Context, query, integrationID string, args ...interface{}) error {
	return withConflictRetry(ctx, func(ctx context.Context) error {
		result, err := db.conn.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to update integration %s: %w", integrationID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("integration %s not found", integrationID)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (db *DB) scanIntegration(row rowScanner) (*models.Integration, error) {
	var (
		integration models.Integration
		expiresAt   sql.NullTime
		lastSyncAt  sql.NullTime
	)
	if err := row.Scan(
		&integration.ID, &integration.UserID, &integration.Platform, &integration.AccessToken,
		&expiresAt, &lastSyncAt, &integration.CreatedAt, &integration.UpdatedAt,
	); err != nil {
		return nil, err
	}

	token, err := db.tokens.Decrypt(integration.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token for integration %s: %w", integration.ID, err)
	}
	integration.AccessToken = token
	integration.TokenExpiresAt = fromNullTime(expiresAt)
	integration.LastSyncAt = fromNullTime(lastSyncAt)
	integration.CreatedAt = integration.CreatedAt.UTC()
	integration.UpdatedAt = integration.UpdatedAt.UTC()
	return &integration, nil
}

func utcPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func fromNullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
