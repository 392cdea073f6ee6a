// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package models

import "time"

// SyncStats counts successful writes produced by one sync run.
type SyncStats struct {
	PagesSynced        int `json:"pages_synced"`
	PageInsightsSynced int `json:"page_insights_synced"`
	PostsSynced        int `json:"posts_synced"`
	PostInsightsSynced int `json:"post_insights_synced"`
}

// Add folds other into s.
func (s *SyncStats) Add(other SyncStats) {
	s.PagesSynced += other.PagesSynced
	s.PageInsightsSynced += other.PageInsightsSynced
	s.PostsSynced += other.PostsSynced
	s.PostInsightsSynced += other.PostInsightsSynced
}

// Total returns the number of records written across all categories.
func (s SyncStats) Total() int {
	return s.PagesSynced + s.PageInsightsSynced + s.PostsSynced + s.PostInsightsSynced
}

// SyncResult is returned by a sync invocation.
// Skipped results carry neither SyncedAt nor Stats.
type SyncResult struct {
	Success  bool       `json:"success"`
	Skipped  bool       `json:"skipped"`
	SyncedAt *time.Time `json:"synced_at,omitempty"`
	Stats    *SyncStats `json:"stats,omitempty"`
}

// UserTokenRefresh is the outcome of a successful user token exchange.
type UserTokenRefresh struct {
	AccessToken string    `json:"-"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// RefreshResult summarizes a cascaded token refresh.
type RefreshResult struct {
	UserTokenRefreshed bool `json:"user_token_refreshed"`
	PagesRefreshed     int  `json:"pages_refreshed"`
}

// AutoRefreshResult reports whether an automatic refresh was needed and ran.
type AutoRefreshResult struct {
	Refreshed bool   `json:"refreshed"`
	Message   string `json:"message"`
}

// TokenExpirationInfo describes the current state of a user token.
// ExpiresAt and DaysUntilExpiration are nil when the expiry is unknown.
type TokenExpirationInfo struct {
	ExpiresAt           *time.Time `json:"expires_at"`
	DaysUntilExpiration *int       `json:"days_until_expiration"`
	NeedsRefresh        bool       `json:"needs_refresh"`
}

// SyncRun describes a sync that completed in this process.
type SyncRun struct {
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	Stats       SyncStats `json:"stats"`
}

// SyncStatus reports the caller's sync state. LastSyncAt is persisted;
// LastRun is only known for syncs completed since the server started.
type SyncStatus struct {
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	LastRun    *SyncRun   `json:"last_run,omitempty"`
}
