// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

// Package fields describes which metrics the platform exposes per report type
// and which reporting periods each metric supports. It resolves a report type
// and period into a concrete metric list and splits that list into batches
// that respect the platform's per-request metric limit.
//
// The catalog is immutable. Default returns the process-wide instance decoded
// once from the embedded catalog.json; NewCatalog builds one for injection.
package fields

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-json"
)

//go:embed catalog.json
var embeddedCatalog []byte

// Report types.
const (
	ReportPageInsights = "page_insights"
	ReportPostInsights = "post_insights"
	ReportPostMetadata = "post_metadata"
	ReportPagePosts    = "page_posts"
)

// Reporting periods used by the platform.
const (
	PeriodDay      = "day"
	PeriodWeek     = "week"
	PeriodDays28   = "days_28"
	PeriodLifetime = "lifetime"
)

var (
	// ErrUnknownReportType is returned for a report type absent from the catalog.
	ErrUnknownReportType = errors.New("unknown report type")

	// ErrFieldNotFound is returned when a field is not defined for a report type.
	ErrFieldNotFound = errors.New("field not found")
)

// MetricDefinition describes one metric. An empty AllowedPeriods means the
// metric is valid for every period.
type MetricDefinition struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	AllowedPeriods []string `json:"allowed_periods"`
}

// AllowsPeriod reports whether the metric may be requested for period.
func (m MetricDefinition) AllowsPeriod(period string) bool {
	if len(m.AllowedPeriods) == 0 {
		return true
	}
	for _, p := range m.AllowedPeriods {
		if p == period {
			return true
		}
	}
	return false
}

// Catalog is a read-only set of metric definitions keyed by report type.
// It is safe for concurrent use.
type Catalog struct {
	reports map[string][]MetricDefinition
	index   map[string]map[string]int
}

// NewCatalog copies defs into a new Catalog. Definition order is preserved.
func NewCatalog(defs map[string][]MetricDefinition) *Catalog {
	c := &Catalog{
		reports: make(map[string][]MetricDefinition, len(defs)),
		index:   make(map[string]map[string]int, len(defs)),
	}
	for reportType, list := range defs {
		copied := make([]MetricDefinition, len(list))
		idx := make(map[string]int, len(list))
		for i, def := range list {
			def.AllowedPeriods = append([]string(nil), def.AllowedPeriods...)
			copied[i] = def
			idx[def.Name] = i
		}
		c.reports[reportType] = copied
		c.index[reportType] = idx
	}
	return c
}

// Parse decodes a catalog from its JSON form.
func Parse(data []byte) (*Catalog, error) {
	var defs map[string][]MetricDefinition
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("failed to decode field catalog: %w", err)
	}
	return NewCatalog(defs), nil
}

var (
	defaultCatalog *Catalog
	defaultOnce    sync.Once
)

// Default returns the catalog built from the embedded catalog.json.
// The embedded file is validated by tests, so a decode failure is a build defect.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(embeddedCatalog)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// ReportTypes returns the known report types in sorted order.
func (c *Catalog) ReportTypes() []string {
	out := make([]string, 0, len(c.reports))
	for rt := range c.reports {
		out = append(out, rt)
	}
	sort.Strings(out)
	return out
}

// Fields returns a copy of the definitions for reportType.
func (c *Catalog) Fields(reportType string) ([]MetricDefinition, error) {
	defs, ok := c.reports[reportType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownReportType, reportType)
	}
	out := make([]MetricDefinition, len(defs))
	for i, d := range defs {
		d.AllowedPeriods = append([]string(nil), d.AllowedPeriods...)
		out[i] = d
	}
	return out, nil
}

func (c *Catalog) lookup(reportType, fieldName string) (MetricDefinition, error) {
	idx, ok := c.index[reportType]
	if !ok {
		return MetricDefinition{}, fmt.Errorf("%w: %q", ErrUnknownReportType, reportType)
	}
	i, ok := idx[fieldName]
	if !ok {
		return MetricDefinition{}, fmt.Errorf("%w: %q in %s", ErrFieldNotFound, fieldName, reportType)
	}
	return c.reports[reportType][i], nil
}
