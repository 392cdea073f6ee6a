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

const postColumns = `id, page_id, created_time, message, permalink_url, status_type,
	shares_count, reactions_count, comments_count, updated_at`

// UpsertPost inserts or updates a post keyed by its platform ID.
// created_time is immutable; engagement counters are overwritten.
func (db *DB) UpsertPost(ctx context.Context, post *models.Post) (err error) {
	start := time.Now()
	defer func() { observe("upsert_post", start, err) }()

	post.UpdatedAt = db.now().UTC()
	createdTime := post.CreatedTime.UTC()
	if post.CreatedTime.IsZero() {
		createdTime = post.UpdatedAt
	}

	query := `INSERT INTO posts (` + postColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			page_id = EXCLUDED.page_id,
			message = EXCLUDED.message,
			permalink_url = EXCLUDED.permalink_url,
			status_type = EXCLUDED.status_type,
			shares_count = EXCLUDED.shares_count,
			reactions_count = EXCLUDED.reactions_count,
			comments_count = EXCLUDED.comments_count,
			updated_at = EXCLUDED.updated_at`

	return withConflictRetry(ctx, func(ctx context.Context) error {
		if _, execErr := db.conn.ExecContext(ctx, query,
			post.ID, post.PageID, createdTime, post.Message, post.PermalinkURL, post.StatusType,
			post.SharesCount, post.ReactionsCount, post.CommentsCount, post.UpdatedAt,
		); execErr != nil {
			return fmt.Errorf("failed to upsert post %s: %w", post.ID, execErr)
		}
		return nil
	})
}

// GetPost returns a stored post, or (nil, nil) when it does not exist.
func (db *DB) GetPost(ctx context.Context, postID string) (_ *models.Post, err error) {
	start := time.Now()
	defer func() { observe("get_post", start, err) }()

	var (
		post       models.Post
		message    sql.NullString
		permalink  sql.NullString
		statusType sql.NullString
	)
	err = db.conn.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, postID).Scan(
		&post.ID, &post.PageID, &post.CreatedTime, &message, &permalink, &statusType,
		&post.SharesCount, &post.ReactionsCount, &post.CommentsCount, &post.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	post.Message = message.String
	post.PermalinkURL = permalink.String
	post.StatusType = statusType.String
	post.CreatedTime = post.CreatedTime.UTC()
	post.UpdatedAt = post.UpdatedAt.UTC()
	return &post, nil
}
