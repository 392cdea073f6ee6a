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

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tomtom215/pagesight/internal/models"
)

const integrationColumns = `id, user_id, platform, access_token, token_expires_at,
	last_sync_at, created_at, updated_at`

// UpsertIntegration creates or replaces the user's integration for a platform,
// keeping the existing row's ID and created_at.
func (s *Store) UpsertIntegration(ctx context.Context, integration *models.Integration) (err error) {
	start := time.Now()
	defer func() { observe("upsert_integration", start, err) }()

	if integration.ID == "" {
		integration.ID = uuid.New().String()
	}
	now := s.now().UTC()
	if integration.CreatedAt.IsZero() {
		integration.CreatedAt = now
	}
	integration.UpdatedAt = now

	token, err := s.tokens.Encrypt(integration.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	return withRetry(ctx, func(ctx context.Context) error {
		scanErr := s.pool.QueryRow(ctx, `INSERT INTO integrations (`+integrationColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (user_id, platform) DO UPDATE SET
				access_token = EXCLUDED.access_token,
				token_expires_at = EXCLUDED.token_expires_at,
				updated_at = EXCLUDED.updated_at
			RETURNING id, created_at`,
			integration.ID, integration.UserID, integration.Platform, token,
			integration.TokenExpiresAt, integration.LastSyncAt,
			integration.CreatedAt, integration.UpdatedAt,
		).Scan(&integration.ID, &integration.CreatedAt)
		if scanErr != nil {
			return fmt.Errorf("failed to upsert integration: %w", scanErr)
		}
		integration.CreatedAt = integration.CreatedAt.UTC()
		return nil
	})
}

// GetIntegrationByUser returns the user's integration, or (nil, nil).
func (s *Store) GetIntegrationByUser(ctx context.Context, userID, platform string) (_ *models.Integration, err error) {
	start := time.Now()
	defer func() { observe("get_integration", start, err) }()

	integration, err := s.scanIntegration(s.pool.QueryRow(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE user_id = $1 AND platform = $2`,
		userID, platform))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	return integration, nil
}

// ListIntegrations returns every integration for a platform, oldest first.
func (s *Store) ListIntegrations(ctx context.Context, platform string) (_ []models.Integration, err error) {
	start := time.Now()
	defer func() { observe("list_integrations", start, err) }()

	rows, err := s.pool.Query(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE platform = $1 ORDER BY created_at, id`,
		platform)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	defer rows.Close()

	var integrations []models.Integration
	for rows.Next() {
		integration, scanErr := s.scanIntegration(rows)
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
func (s *Store) UpdateIntegrationToken(ctx context.Context, integrationID, accessToken string, expiresAt time.Time) (err error) {
	start := time.Now()
	defer func() { observe("update_integration_token", start, err) }()

	token, err := s.tokens.Encrypt(accessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	return s.updateIntegration(ctx, integrationID,
		`UPDATE integrations SET access_token = $1, token_expires_at = $2, updated_at = $3 WHERE id = $4`,
		token, expiresAt.UTC(), s.now().UTC(), integrationID)
}

// UpdateIntegrationLastSync records when a sync for the integration started.
func (s *Store) UpdateIntegrationLastSync(ctx context.Context, integrationID string, lastSyncAt time.Time) (err error) {
	start := time.Now()
	defer func() { observe("update_integration_last_sync", start, err) }()

	return s.updateIntegration(ctx, integrationID,
		`UPDATE integrations SET last_sync_at = $1, updated_at = $2 WHERE id = $3`,
		lastSyncAt.UTC(), s.now().UTC(), integrationID)
}

func (s *Store) updateIntegration(ctx context.Context, integrationID, query string, args ...any) error {
	return withRetry(ctx, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to update integration %s: %w", integrationID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("integration %s not found", integrationID)
		}
		return nil
	})
}

func (s *Store) scanIntegration(row pgx.Row) (*models.Integration, error) {
	var integration models.Integration
	if err := row.Scan(
		&integration.ID, &integration.UserID, &integration.Platform, &integration.AccessToken,
		&integration.TokenExpiresAt, &integration.LastSyncAt, &integration.CreatedAt, &integration.UpdatedAt,
	); err != nil {
		return nil, err
	}

	token, err := s.tokens.Decrypt(integration.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token for integration %s: %w", integration.ID, err)
	}
	integration.AccessToken = token
	integration.TokenExpiresAt = utc(integration.TokenExpiresAt)
	integration.LastSyncAt = utc(integration.LastSyncAt)
	integration.CreatedAt = integration.CreatedAt.UTC()
	integration.UpdatedAt = integration.UpdatedAt.UTC()
	return &integration, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
