// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package fields

import "fmt"

// DefaultMaxBatchSize is the platform's limit on metrics per insights request.
const DefaultMaxBatchSize = 50

// GetFieldNames returns every metric name for reportType in catalog order.
// A non-empty period keeps only metrics whose allowed periods are empty or
// contain it.
func (c *Catalog) GetFieldNames(reportType, period string) ([]string, error) {
	defs, ok := c.reports[reportType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownReportType, reportType)
	}

	names := make([]string, 0, len(defs))
	for _, d := range defs {
		if period != "" && !d.AllowsPeriod(period) {
			continue
		}
		names = append(names, d.Name)
	}
	return names, nil
}

// GetFieldsByPeriod is the filtered form of GetFieldNames, used as the default
// metric list when a caller does not pass explicit fields.
func (c *Catalog) GetFieldsByPeriod(reportType, period string) ([]string, error) {
	return c.GetFieldNames(reportType, period)
}

// IsPeriodValidForField reports whether fieldName may be requested for period.
func (c *Catalog) IsPeriodValidForField(reportType, fieldName, period string) (bool, error) {
	def, err := c.lookup(reportType, fieldName)
	if err != nil {
		return false, err
	}
	return def.AllowsPeriod(period), nil
}

// ChunkFields splits fields into consecutive batches of at most maxBatchSize,
// preserving order. A non-positive maxBatchSize uses DefaultMaxBatchSize.
// An empty input yields an empty, non-nil result.
func ChunkFields(fields []string, maxBatchSize int) [][]string {
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}

	chunks := make([][]string, 0, (len(fields)+maxBatchSize-1)/maxBatchSize)
	for start := 0; start < len(fields); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(fields) {
			end = len(fields)
		}
		chunk := make([]string, end-start)
		copy(chunk, fields[start:end])
		chunks = append(chunks, chunk)
	}
	return chunks
}
