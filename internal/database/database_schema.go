// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context for schema DDL.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

// getTableCreationQueries returns the table creation SQL statements.
// All timestamps are stored as UTC TIMESTAMP values. There are no secondary
// indexes: DuckDB rejects ON CONFLICT updates of indexed columns.
func getTableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS integrations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			platform TEXT NOT NULL,
			access_token TEXT NOT NULL,
			token_expires_at TIMESTAMP,
			last_sync_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE (user_id, platform)
		)`,

		`CREATE TABLE IF NOT EXISTS pages (
			id TEXT PRIMARY KEY,
			integration_id TEXT NOT NULL,
			name TEXT NOT NULL,
			category TEXT,
			page_access_token TEXT,
			follower_count BIGINT NOT NULL DEFAULT 0,
			fan_count BIGINT NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		// A page can be managed by several admins. Each integration that has
		// synced a page keeps its own link, so a later sync by another admin
		// never takes the page away from the first.
		`CREATE TABLE IF NOT EXISTS page_integrations (
			page_id TEXT NOT NULL,
			integration_id TEXT NOT NULL,
			linked_at TIMESTAMP NOT NULL,
			PRIMARY KEY (page_id, integration_id)
		)`,

		// created_time is set on first insert and never updated.
		`CREATE TABLE IF NOT EXISTS posts (
			id TEXT PRIMARY KEY,
			page_id TEXT NOT NULL,
			created_time TIMESTAMP NOT NULL,
			message TEXT,
			permalink_url TEXT,
			status_type TEXT,
			shares_count BIGINT NOT NULL DEFAULT 0,
			reactions_count BIGINT NOT NULL DEFAULT 0,
			comments_count BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL
		)`,

		// raw_payload is a BLOB so the response bytes round-trip unchanged.
		`CREATE TABLE IF NOT EXISTS insights_raw (
			subject_id TEXT NOT NULL,
			subject_type TEXT NOT NULL,
			user_id TEXT NOT NULL,
			raw_payload BLOB NOT NULL,
			fetched_at TIMESTAMP NOT NULL,
			PRIMARY KEY (subject_id, fetched_at)
		)`,

		// One row per metric value. A processed record is the set of rows
		// sharing (subject_id, date, period).
		`CREATE TABLE IF NOT EXISTS insights_processed (
			subject_id TEXT NOT NULL,
			subject_type TEXT NOT NULL,
			user_id TEXT NOT NULL,
			period TEXT NOT NULL,
			date DATE NOT NULL,
			metric_name TEXT NOT NULL,
			value DOUBLE NOT NULL,
			fetched_at TIMESTAMP NOT NULL,
			PRIMARY KEY (subject_id, date, period, metric_name)
		)`,
	}
}
