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
	"sort"
	"time"

	"github.com/tomtom215/pagesight/internal/models"
)

// UpsertInsightRaw stores one fetched payload. Rows are keyed by
// (subject_id, fetched_at) and a repeated key leaves the first row intact.
func (db *DB) UpsertInsightRaw(ctx context.Context, raw *models.InsightRaw) (err error) {
	start := time.Now()
	defer func() { observe("upsert_insight_raw", start, err) }()

	if len(raw.RawPayload) == 0 {
		return fmt.Errorf("raw insight for %s has an empty payload", raw.SubjectID)
	}

	return withConflictRetry(ctx, func(ctx context.Context) error {
		if _, execErr := db.conn.ExecContext(ctx,
			`INSERT INTO insights_raw (subject_id, subject_type, user_id, raw_payload, fetched_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (subject_id, fetched_at) DO NOTHING`,
			raw.SubjectID, raw.SubjectType, raw.UserID, []byte(raw.RawPayload), raw.FetchedAt.UTC(),
		); execErr != nil {
			return fmt.Errorf("failed to insert raw insight for %s: %w", raw.SubjectID, execErr)
		}
		return nil
	})
}

// GetInsightRaw returns the payload stored for (subjectID, fetchedAt), or
// (nil, nil) when there is none. The payload bytes are returned unchanged.
func (db *DB) GetInsightRaw(ctx context.Context, subjectID string, fetchedAt time.Time) (_ *models.InsightRaw, err error) {
	start := time.Now()
	defer func() { observe("get_insight_raw", start, err) }()

	var (
		raw     models.InsightRaw
		payload []byte
	)
	err = db.conn.QueryRowContext(ctx,
		`SELECT subject_id, subject_type, user_id, raw_payload, fetched_at
		FROM insights_raw WHERE subject_id = ? AND fetched_at = ?`,
		subjectID, fetchedAt.UTC(),
	).Scan(&raw.SubjectID, &raw.SubjectType, &raw.UserID, &payload, &raw.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get raw insight: %w", err)
	}

	raw.RawPayload = payload
	raw.FetchedAt = raw.FetchedAt.UTC()
	return &raw, nil
}

// UpsertInsightProcessed writes grouped records in one transaction. Each
// metric is a row keyed by (subject_id, date, period, metric_name), so a
// record merges into what is already stored for its key.
func (db *DB) UpsertInsightProcessed(ctx context.Context, records []models.InsightProcessed) (err error) {
	if len(records) == 0 {
		return nil
	}

	start := time.Now()
	defer func() { observe("upsert_insight_processed", start, err) }()

	return withConflictRetry(ctx, func(ctx context.Context) error {
		return db.upsertProcessedTx(ctx, records)
	})
}

func (db *DB) upsertProcessedTx(ctx context.Context, records []models.InsightProcessed) error {
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

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO insights_processed
		(subject_id, subject_type, user_id, period, date, metric_name, value, fetched_at)
		VALUES (?, ?, ?, ?, CAST(? AS DATE), ?, ?, ?)
		ON CONFLICT (subject_id, date, period, metric_name) DO UPDATE SET
			subject_type = EXCLUDED.subject_type,
			user_id = EXCLUDED.user_id,
			value = EXCLUDED.value,
			fetched_at = EXCLUDED.fetched_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare processed insight upsert: %w", err)
	}
	defer closeWithLog(stmt, "prepared statement")

	for i := range records {
		record := &records[i]
		date := record.Date.UTC().Format(time.DateOnly)
		for _, name := range sortedMetricNames(record.Metrics) {
			if _, err := stmt.ExecContext(ctx,
				record.SubjectID, record.SubjectType, record.UserID, record.Period, date,
				name, record.Metrics[name], record.FetchedAt.UTC(),
			); err != nil {
				return fmt.Errorf("failed to upsert %s for %s on %s: %w", name, record.SubjectID, date, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit processed insights: %w", err)
	}
	committed = true
	return nil
}

// GetInsightProcessed returns the records for a subject whose date falls in
// [from, to], ordered by date then period. An empty period matches all.
func (db *DB) GetInsightProcessed(ctx context.Context, subjectID, period string, from, to time.Time) (_ []models.InsightProcessed, err error) {
	start := time.Now()
	defer func() { observe("get_insight_processed", start, err) }()

	query := `SELECT subject_id, subject_type, user_id, period, date, metric_name, value, fetched_at
		FROM insights_processed
		WHERE subject_id = ? AND date >= CAST(? AS DATE) AND date <= CAST(? AS DATE)`
	args := []interface{}{subjectID, from.UTC().Format(time.DateOnly), to.UTC().Format(time.DateOnly)}
	if period != "" {
		query += ` AND period = ?`
		args = append(args, period)
	}
	query += ` ORDER BY date, period, metric_name`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query processed insights: %w", err)
	}
	defer closeWithLog(rows, "processed insight rows")

	var records []models.InsightProcessed
	for rows.Next() {
		var (
			row       models.InsightProcessed
			name      string
			value     float64
			fetchedAt time.Time
		)
		if err := rows.Scan(&row.SubjectID, &row.SubjectType, &row.UserID, &row.Period,
			&row.Date, &name, &value, &fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan processed insight: %w", err)
		}

		row.Date = row.Date.UTC()
		fetchedAt = fetchedAt.UTC()

		// Rows are ordered by key, so a new record starts whenever it changes.
		n := len(records)
		if n == 0 || !records[n-1].Date.Equal(row.Date) || records[n-1].Period != row.Period {
			row.Metrics = make(map[string]float64)
			row.FetchedAt = fetchedAt
			records = append(records, row)
			n++
		}
		current := &records[n-1]
		current.Metrics[name] = value
		if fetchedAt.After(current.FetchedAt) {
			current.FetchedAt = fetchedAt
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating processed insights: %w", err)
	}
	return records, nil
}

func sortedMetricNames(metrics map[string]float64) []string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
