// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// PlatformFacebook identifies the Facebook platform on an Integration.
const PlatformFacebook = "facebook"

// Subject types for insight records.
const (
	SubjectPage = "page"
	SubjectPost = "post"
)

// Integration is a user's OAuth connection to the platform.
// There is at most one Integration per (UserID, Platform).
type Integration struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Platform       string     `json:"platform"`
	AccessToken    string     `json:"-"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Page is a platform page owned through an Integration.
// Upserts are keyed by the platform-assigned ID.
type Page struct {
	ID              string    `json:"id"`
	IntegrationID   string    `json:"integration_id"`
	Name            string    `json:"name"`
	Category        string    `json:"category,omitempty"`
	PageAccessToken string    `json:"-"`
	FollowerCount   int64     `json:"follower_count"`
	FanCount        int64     `json:"fan_count"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Post is a content item published on a Page.
// CreatedTime never changes after the first insert; engagement counters are
// overwritten on every re-sync.
type Post struct {
	ID             string    `json:"id"`
	PageID         string    `json:"page_id"`
	CreatedTime    time.Time `json:"created_time"`
	Message        string    `json:"message,omitempty"`
	PermalinkURL   string    `json:"permalink_url,omitempty"`
	StatusType     string    `json:"status_type,omitempty"`
	SharesCount    int64     `json:"shares_count"`
	ReactionsCount int64     `json:"reactions_count"`
	CommentsCount  int64     `json:"comments_count"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// InsightRaw is an unmodified snapshot of a single insights fetch.
// Rows are keyed by (SubjectID, FetchedAt) and are never mutated.
type InsightRaw struct {
	SubjectID   string          `json:"subject_id"`
	SubjectType string          `json:"subject_type"`
	UserID      string          `json:"user_id"`
	RawPayload  json.RawMessage `json:"raw_payload"`
	FetchedAt   time.Time       `json:"fetched_at"`
}

// InsightProcessed holds every metric value for one (SubjectID, Date, Period).
// Metrics for the same key must be merged into a single record before it is
// persisted, otherwise one write clobbers the other.
type InsightProcessed struct {
	SubjectID   string             `json:"subject_id"`
	SubjectType string             `json:"subject_type"`
	UserID      string             `json:"user_id"`
	Period      string             `json:"period"`
	Date        time.Time          `json:"date"`
	FetchedAt   time.Time          `json:"fetched_at"`
	Metrics     map[string]float64 `json:"metrics"`
}

// MetricCount returns the number of metric values carried by the record.
func (p *InsightProcessed) MetricCount() int {
	return len(p.Metrics)
}
