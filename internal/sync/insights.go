// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package sync

import (
	"sort"
	"time"

	"github.com/tomtom215/pagesight/internal/models"
)

// insightKey identifies one processed record within a subject.
type insightKey struct {
	date   time.Time
	period string
}

// GroupInsights merges every metric value in batch into one record per
// (date, period), so each key is written by a single upsert.
//
// The date is the UTC day of a value's end_time, or of the response's fetch
// time when the platform omits it (lifetime metrics). Object values are
// flattened to name.key. Records come back sorted by date then period and
// records without any numeric value are dropped.
func GroupInsights(subjectID, subjectType, userID string, batch *InsightBatch) []models.InsightProcessed {
	if batch == nil {
		return nil
	}

	grouped := make(map[insightKey]*models.InsightProcessed)
	for _, resp := range batch.Responses {
		for _, insight := range resp.Insights {
			for _, value := range insight.Values {
				day := value.EndTime.Time
				if day.IsZero() {
					day = resp.FetchedAt
				}
				key := insightKey{date: truncateToDay(day), period: insight.Period}

				record, ok := grouped[key]
				if !ok {
					record = &models.InsightProcessed{
						SubjectID:   subjectID,
						SubjectType: subjectType,
						UserID:      userID,
						Period:      key.period,
						Date:        key.date,
						Metrics:     make(map[string]float64),
					}
					grouped[key] = record
				}
				if resp.FetchedAt.After(record.FetchedAt) {
					record.FetchedAt = resp.FetchedAt
				}
				for name, n := range value.Numeric(insight.Name) {
					record.Metrics[name] = n
				}
			}
		}
	}

	records := make([]models.InsightProcessed, 0, len(grouped))
	for _, record := range grouped {
		if len(record.Metrics) == 0 {
			continue
		}
		records = append(records, *record)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.Before(records[j].Date)
		}
		return records[i].Period < records[j].Period
	})
	return records
}

// RawInsights converts each response of batch into an unmodified raw snapshot.
func RawInsights(subjectID, subjectType, userID string, batch *InsightBatch) []models.InsightRaw {
	if batch == nil {
		return nil
	}
	raws := make([]models.InsightRaw, 0, len(batch.Responses))
	for _, resp := range batch.Responses {
		raws = append(raws, models.InsightRaw{
			SubjectID:   subjectID,
			SubjectType: subjectType,
			UserID:      userID,
			RawPayload:  resp.Body,
			FetchedAt:   resp.FetchedAt,
		})
	}
	return raws
}

// countMetricValues totals the metric values across records.
func countMetricValues(records []models.InsightProcessed) int {
	n := 0
	for i := range records {
		n += records[i].MetricCount()
	}
	return n
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
