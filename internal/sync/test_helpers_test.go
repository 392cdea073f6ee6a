// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package sync

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/tomtom215/pagesight/internal/auth"
	"github.com/tomtom215/pagesight/internal/config"
	"github.com/tomtom215/pagesight/internal/fields"
	"github.com/tomtom215/pagesight/internal/models"
	"github.com/tomtom215/pagesight/internal/models/graph"
)

const testUserID = "user-1"

// newTestConfig returns a Config with fast retries and the scheduler off.
func newTestConfig() *config.Config {
	return &config.Config{
		Facebook: config.FacebookConfig{
			AppID:                "app-id",
			AppSecret:            "app-secret",
			APIVersion:           "v19.0",
			BaseURL:              "http://localhost",
			Timeout:              5 * time.Second,
			MaxRetries:           2,
			RetryBaseDelay:       time.Millisecond,
			MaxMetricsPerRequest: 50,
			PostsLimit:           25,
			PageInsightsPeriod:   "day",
			PostInsightsPeriod:   "lifetime",
		},
		Sync: config.SyncConfig{
			StaleAfter:        DefaultStaleAfter,
			PageWorkers:       1,
			AutoRefreshTokens: false,
		},
		Tokens: config.TokensConfig{
			RefreshThreshold:  DefaultRefreshThreshold,
			LongLivedLifetime: DefaultLongLivedLifetime,
		},
	}
}

// testCatalog is a small catalog with one metric per report type shape.
func testCatalog() *fields.Catalog {
	return fields.NewCatalog(map[string][]fields.MetricDefinition{
		fields.ReportPageInsights: {
			{Name: "page_impressions", AllowedPeriods: []string{"day", "week"}},
			{Name: "page_fans", AllowedPeriods: []string{"day"}},
			{Name: "page_views_total", AllowedPeriods: []string{"week"}},
		},
		fields.ReportPostInsights: {
			{Name: "post_impressions", AllowedPeriods: []string{"lifetime"}},
			{Name: "post_clicks"},
		},
		fields.ReportPostMetadata: {
			{Name: "id"}, {Name: "created_time"}, {Name: "message"},
		},
		fields.ReportPagePosts: {
			{Name: "id"}, {Name: "created_time"},
		},
	})
}

func userContext() context.Context {
	return auth.ContextWithUserID(context.Background(), testUserID)
}

func testIntegration() *models.Integration {
	return &models.Integration{
		ID:          "integration-1",
		UserID:      testUserID,
		Platform:    models.PlatformFacebook,
		AccessToken: "user-token",
	}
}

// mockStore is a Store whose behavior is set per test through function fields.
// Calls are counted by method name.
type mockStore struct {
	mu    sync.Mutex
	calls map[string]int

	upsertIntegration         func(ctx context.Context, integration *models.Integration) error
	getIntegrationByUser      func(ctx context.Context, userID, platform string) (*models.Integration, error)
	listIntegrations          func(ctx context.Context, platform string) ([]models.Integration, error)
	updateIntegrationToken    func(ctx context.Context, id, token string, expiresAt time.Time) error
	updateIntegrationLastSync func(ctx context.Context, id string, at time.Time) error
	upsertPage                func(ctx context.Context, page *models.Page) error
	updatePageAccessToken     func(ctx context.Context, pageID, token string) (bool, error)
	upsertPost                func(ctx context.Context, post *models.Post) error
	upsertInsightRaw          func(ctx context.Context, raw *models.InsightRaw) error
	upsertInsightProcessed    func(ctx context.Context, records []models.InsightProcessed) error
}

func (m *mockStore) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

func (m *mockStore) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *mockStore) UpsertIntegration(ctx context.Context, integration *models.Integration) error {
	m.record("UpsertIntegration")
	if m.upsertIntegration != nil {
		return m.upsertIntegration(ctx, integration)
	}
	if integration.ID == "" {
		integration.ID = "integration-1"
	}
	return nil
}

func (m *mockStore) GetIntegrationByUser(ctx context.Context, userID, platform string) (*models.Integration, error) {
	m.record("GetIntegrationByUser")
	if m.getIntegrationByUser != nil {
		return m.getIntegrationByUser(ctx, userID, platform)
	}
	return testIntegration(), nil
}

func (m *mockStore) ListIntegrations(ctx context.Context, platform string) ([]models.Integration, error) {
	m.record("ListIntegrations")
	if m.listIntegrations != nil {
		return m.listIntegrations(ctx, platform)
	}
	return nil, nil
}

func (m *mockStore) UpdateIntegrationToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	m.record("UpdateIntegrationToken")
	if m.updateIntegrationToken != nil {
		return m.updateIntegrationToken(ctx, id, token, expiresAt)
	}
	return nil
}

func (m *mockStore) UpdateIntegrationLastSync(ctx context.Context, id string, at time.Time) error {
	m.record("UpdateIntegrationLastSync")
	if m.updateIntegrationLastSync != nil {
		return m.updateIntegrationLastSync(ctx, id, at)
	}
	return nil
}

func (m *mockStore) UpsertPage(ctx context.Context, page *models.Page) error {
	m.record("UpsertPage")
	if m.upsertPage != nil {
		return m.upsertPage(ctx, page)
	}
	return nil
}

func (m *mockStore) UpdatePageAccessToken(ctx context.Context, pageID, token string) (bool, error) {
	m.record("UpdatePageAccessToken")
	if m.updatePageAccessToken != nil {
		return m.updatePageAccessToken(ctx, pageID, token)
	}
	return true, nil
}

func (m *mockStore) UpsertPost(ctx context.Context, post *models.Post) error {
	m.record("UpsertPost")
	if m.upsertPost != nil {
		return m.upsertPost(ctx, post)
	}
	return nil
}

func (m *mockStore) UpsertInsightRaw(ctx context.Context, raw *models.InsightRaw) error {
	m.record("UpsertInsightRaw")
	if m.upsertInsightRaw != nil {
		return m.upsertInsightRaw(ctx, raw)
	}
	return nil
}

func (m *mockStore) UpsertInsightProcessed(ctx context.Context, records []models.InsightProcessed) error {
	m.record("UpsertInsightProcessed")
	if m.upsertInsightProcessed != nil {
		return m.upsertInsightProcessed(ctx, records)
	}
	return nil
}

func (m *mockStore) GetInsightRaw(_ context.Context, _ string, _ time.Time) (*models.InsightRaw, error) {
	m.record("GetInsightRaw")
	return nil, nil
}

func (m *mockStore) GetInsightProcessed(_ context.Context, _, _ string, _, _ time.Time) ([]models.InsightProcessed, error) {
	m.record("GetInsightProcessed")
	return nil, nil
}

// mockGraphAPI is a GraphAPI with function fields; unset methods return empty results.
type mockGraphAPI struct {
	mu    sync.Mutex
	calls map[string]int

	fetchOwnedPages   func(ctx context.Context, userToken string) ([]graph.PageSummary, error)
	fetchPageInsights func(ctx context.Context, pageID, pageToken, period string, fields []string) (*InsightBatch, error)
	fetchPagePosts    func(ctx context.Context, pageID, pageToken string, limit int, fields []string) ([]graph.Post, error)
	fetchPostMetadata func(ctx context.Context, postID, pageToken string, fields []string) (*graph.Post, error)
	fetchPostInsights func(ctx context.Context, postID, pageToken, period string, fields []string) (*InsightBatch, error)
	exchangeLongLived func(ctx context.Context, shortLivedToken string) (string, error)
}

func (m *mockGraphAPI) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

func (m *mockGraphAPI) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *mockGraphAPI) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *mockGraphAPI) FetchOwnedPages(ctx context.Context, userToken string) ([]graph.PageSummary, error) {
	m.record("FetchOwnedPages")
	if m.fetchOwnedPages != nil {
		return m.fetchOwnedPages(ctx, userToken)
	}
	return nil, nil
}

func (m *mockGraphAPI) FetchPageInsights(ctx context.Context, pageID, pageToken, period string, fields []string) (*InsightBatch, error) {
	m.record("FetchPageInsights")
	if m.fetchPageInsights != nil {
		return m.fetchPageInsights(ctx, pageID, pageToken, period, fields)
	}
	return &InsightBatch{}, nil
}

func (m *mockGraphAPI) FetchPagePosts(ctx context.Context, pageID, pageToken string, limit int, fields []string) ([]graph.Post, error) {
	m.record("FetchPagePosts")
	if m.fetchPagePosts != nil {
		return m.fetchPagePosts(ctx, pageID, pageToken, limit, fields)
	}
	return nil, nil
}

func (m *mockGraphAPI) FetchPostMetadata(ctx context.Context, postID, pageToken string, fields []string) (*graph.Post, error) {
	m.record("FetchPostMetadata")
	if m.fetchPostMetadata != nil {
		return m.fetchPostMetadata(ctx, postID, pageToken, fields)
	}
	return &graph.Post{ID: postID}, nil
}

func (m *mockGraphAPI) FetchPostInsights(ctx context.Context, postID, pageToken, period string, fields []string) (*InsightBatch, error) {
	m.record("FetchPostInsights")
	if m.fetchPostInsights != nil {
		return m.fetchPostInsights(ctx, postID, pageToken, period, fields)
	}
	return &InsightBatch{}, nil
}

func (m *mockGraphAPI) ExchangeForLongLivedToken(ctx context.Context, shortLivedToken string) (string, error) {
	m.record("ExchangeForLongLivedToken")
	if m.exchangeLongLived != nil {
		return m.exchangeLongLived(ctx, shortLivedToken)
	}
	return "long-lived-token", nil
}

// insightBatch builds a single-response batch of day values.
// Each metric gets one value per day in days.
func insightBatch(fetchedAt time.Time, period string, metricNames []string, days ...time.Time) *InsightBatch {
	insights := make([]graph.Insight, 0, len(metricNames))
	for i, name := range metricNames {
		values := make([]graph.InsightValue, 0, len(days))
		for _, d := range days {
			values = append(values, graph.InsightValue{
				Value:   []byte(strconv.Itoa(i + 1)),
				EndTime: graph.Time{Time: d},
			})
		}
		insights = append(insights, graph.Insight{Name: name, Period: period, Values: values})
	}
	return &InsightBatch{Responses: []InsightResponse{{
		Body:      []byte(`{"data":[]}`),
		FetchedAt: fetchedAt,
		Insights:  insights,
	}}}
}
