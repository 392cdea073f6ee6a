// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package pg

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tomtom215/pagesight/internal/models"
)

const upsertProcessedSQL = `INSERT INTO insights_processed
		(subject_id, subject_type, user_id, period, date, metric_name, value, fetched_at)
	VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8)
	ON CONFLICT (subject_id, date, period, metric_name) DO UPDATE SET
		subject_type = EXCLUDED.subject_type,
		user_id = EXCLUDED.user_id,
		value = EXCLUDED.value,
		fetched_at = EXCLUDED.fetched_at`

// UpsertInsightRaw stores one fetched payload; an existing
// (subject_id, fetched_at) row is left untouched.
func (s *Store) UpsertInsightRaw(ctx context.Context, raw *models.InsightRaw) (err error) {
	start := time.Now()
	defer func() { observe("upsert_insight_raw", start, err) }()

	if len(raw.RawPayload) == 0 {
		return fmt.Errorf("raw insight for %s has an empty payload", raw.SubjectID)
	}

	return withRetry(ctx, func(ctx context.Context) error {
		_, execErr := s.pool.Exec(ctx, `INSERT INTO insights_raw
				(subject_id, subject_type, user_id, raw_payload, fetched_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (subject_id, fetched_at) DO NOTHING`,
			raw.SubjectID, raw.SubjectType, raw.UserID, []byte(raw.RawPayload), raw.FetchedAt.UTC())
		if execErr != nil {
			return fmt.Errorf("failed to insert raw insight for %s: %w", raw.SubjectID, execErr)
		}
		return nil
	})
}

// GetInsightRaw returns the stored payload bytes unchanged, or (nil, nil).
func (s *Store) GetInsightRaw(ctx context.Context, subjectID string, fetchedAt time.Time) (_ *models.InsightRaw, err error) {
	start := time.Now()
	defer func() { observe("get_insight_raw", start, err) }()

	var (
		raw     models.InsightRaw
		payload []byte
	)
	err = s.pool.QueryRow(ctx, `SELECT subject_id, subject_type, user_id, raw_payload, fetched_at
		FROM insights_raw WHERE subject_id = $1 AND fetched_at = $2`,
		subjectID, fetchedAt.UTC(),
	).Scan(&raw.SubjectID, &raw.SubjectType, &raw.UserID, &payload, &raw.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get raw insight: %w", err)
	}
	raw.RawPayload = payload
	raw.FetchedAt = raw.FetchedAt.UTC()
	return &raw, nil
}

// UpsertInsightProcessed sends every metric row of the grouped records in
// one pgx.Batch inside a transaction.
func (s *Store) UpsertInsightProcessed(ctx context.Context, records []models.InsightProcessed) (err error) {
	if len(records) == 0 {
		return nil
	}

	start := time.Now()
	defer func() { observe("upsert_insight_processed", start, err) }()

	batch := &pgx.Batch{}
	for i := range records {
		record := &records[i]
		date := record.Date.UTC().Format(time.DateOnly)
		names := make([]string, 0, len(record.Metrics))
		for name := range record.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			batch.Queue(upsertProcessedSQL,
				record.SubjectID, record.SubjectType, record.UserID, record.Period, date,
				name, record.Metrics[name], record.FetchedAt.UTC())
		}
	}
	if batch.Len() == 0 {
		return nil
	}

	return withRetry(ctx, func(ctx context.Context) error {
		return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if sendErr := tx.SendBatch(ctx, batch).Close(); sendErr != nil {
				return fmt.Errorf("failed to upsert processed insights: %w", sendErr)
			}
			return nil
		})
	})
}

// GetInsightProcessed returns records for a subject with date in [from, to],
// ordered by date then period. An empty period matches all.
func (s *Store) GetInsightProcessed(ctx context.Context, subjectID, period string, from, to time.Time) (_ []models.InsightProcessed, err error) {
	start := time.Now()
	defer func() { observe("get_insight_processed", start, err) }()

	rows, err := s.pool.Query(ctx, `SELECT subject_id, subject_type, user_id, period, date,
			metric_name, value, fetched_at
		FROM insights_processed
		WHERE subject_id = $1 AND date BETWEEN $2::date AND $3::date
			AND ($4 = '' OR period = $4)
		ORDER BY date, period, metric_name`,
		subjectID, from.UTC().Format(time.DateOnly), to.UTC().Format(time.DateOnly), period)
	if err != nil {
		return nil, fmt.Errorf("failed to query processed insights: %w", err)
	}
	defer rows.Close()

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
