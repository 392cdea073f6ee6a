// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/pagesight/internal/auth"
	"github.com/tomtom215/pagesight/internal/config"
	"github.com/tomtom215/pagesight/internal/models"
)

type mockSyncService struct {
	SyncDataFunc func(ctx context.Context, manual bool) (*models.SyncResult, error)
	lastSync     time.Time
}

func (m *mockSyncService) SyncData(ctx context.Context, manual bool) (*models.SyncResult, error) {
	if m.SyncDataFunc != nil {
		return m.SyncDataFunc(ctx, manual)
	}
	return &models.SyncResult{Success: true}, nil
}

func (m *mockSyncService) LastSyncTime() time.Time { return m.lastSync }

type mockTokenService struct {
	ConnectIntegrationFunc     func(ctx context.Context, shortLivedToken string) (*models.Integration, error)
	RefreshAllTokensFunc       func(ctx context.Context) (*models.RefreshResult, error)
	GetTokenExpirationInfoFunc func(ctx context.Context) (*models.TokenExpirationInfo, error)
}

func (m *mockTokenService) ConnectIntegration(ctx context.Context, shortLivedToken string) (*models.Integration, error) {
	if m.ConnectIntegrationFunc != nil {
		return m.ConnectIntegrationFunc(ctx, shortLivedToken)
	}
	return &models.Integration{ID: "integration-1", Platform: models.PlatformFacebook}, nil
}

func (m *mockTokenService) RefreshAllTokens(ctx context.Context) (*models.RefreshResult, error) {
	if m.RefreshAllTokensFunc != nil {
		return m.RefreshAllTokensFunc(ctx)
	}
	return &models.RefreshResult{}, nil
}

func (m *mockTokenService) GetTokenExpirationInfo(ctx context.Context) (*models.TokenExpirationInfo, error) {
	if m.GetTokenExpirationInfoFunc != nil {
		return m.GetTokenExpirationInfoFunc(ctx)
	}
	return &models.TokenExpirationInfo{}, nil
}

type mockQueue struct {
	EnqueueFunc func(ctx context.Context, userID, source string) (*models.BackgroundSyncAccepted, error)
	running     chan struct{}
}

func newMockQueue(running bool) *mockQueue {
	q := &mockQueue{running: make(chan struct{})}
	if running {
		close(q.running)
	}
	return q
}

func (m *mockQueue) Enqueue(ctx context.Context, userID, source string) (*models.BackgroundSyncAccepted, error) {
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, userID, source)
	}
	return &models.BackgroundSyncAccepted{RequestID: "req-1", QueuedAt: time.Now().UTC()}, nil
}

func (m *mockQueue) Running() <-chan struct{} { return m.running }

// mockStore serves fixed content. By default every caller has an integration
// with ID "int-" + userID and owns no pages.
type mockStore struct {
	GetIntegrationByUserFunc func(ctx context.Context, userID, platform string) (*models.Integration, error)
	ListPagesFunc            func(ctx context.Context, integrationID string) ([]models.Page, error)
	GetInsightProcessedFunc  func(ctx context.Context, subjectID, period string, from, to time.Time) ([]models.InsightProcessed, error)

	// links maps integration ID to the page IDs linked to it.
	links   map[string][]string
	posts   map[string]models.Post
	pingErr error
}

func (m *mockStore) GetIntegrationByUser(ctx context.Context, userID, platform string) (*models.Integration, error) {
	if m.GetIntegrationByUserFunc != nil {
		return m.GetIntegrationByUserFunc(ctx, userID, platform)
	}
	return &models.Integration{ID: "int-" + userID, UserID: userID, Platform: platform}, nil
}

func (m *mockStore) ListPages(ctx context.Context, integrationID string) ([]models.Page, error) {
	if m.ListPagesFunc != nil {
		return m.ListPagesFunc(ctx, integrationID)
	}
	var pages []models.Page
	for _, id := range m.links[integrationID] {
		pages = append(pages, models.Page{ID: id, IntegrationID: integrationID, Name: "Page " + id})
	}
	return pages, nil
}

func (m *mockStore) GetPage(_ context.Context, integrationID, pageID string) (*models.Page, error) {
	for _, id := range m.links[integrationID] {
		if id == pageID {
			return &models.Page{ID: id, IntegrationID: integrationID}, nil
		}
	}
	return nil, nil
}

func (m *mockStore) GetPost(_ context.Context, postID string) (*models.Post, error) {
	if post, ok := m.posts[postID]; ok {
		return &post, nil
	}
	return nil, nil
}

func (m *mockStore) GetInsightProcessed(ctx context.Context, subjectID, period string, from, to time.Time) ([]models.InsightProcessed, error) {
	if m.GetInsightProcessedFunc != nil {
		return m.GetInsightProcessedFunc(ctx, subjectID, period, from, to)
	}
	return nil, nil
}

func (m *mockStore) Ping(context.Context) error { return m.pingErr }

// noIntegration makes every caller look unconnected.
func noIntegration(context.Context, string, string) (*models.Integration, error) {
	return nil, nil
}

type stubBreaker string

func (s stubBreaker) State() string { return string(s) }

var errBoom = errors.New("boom")

const testJWTSecret = "test-secret-with-enough-entropy-0123456789"

// testServer wires deps into the full chi tree with a real JWT verifier.
func testServer(t *testing.T, deps Dependencies) (http.Handler, *auth.JWTVerifier) {
	t.Helper()
	h, verifier, _ := testServerWithHandler(t, deps)
	return h, verifier
}

// testServerWithHandler is testServer that also returns the Handler, for
// tests that drive callbacks directly.
func testServerWithHandler(t *testing.T, deps Dependencies) (http.Handler, *auth.JWTVerifier, *Handler) {
	t.Helper()

	verifier, err := auth.NewJWTVerifier(&config.SecurityConfig{JWTSecret: testJWTSecret})
	if err != nil {
		t.Fatalf("NewJWTVerifier: %v", err)
	}
	if deps.Sync == nil {
		deps.Sync = &mockSyncService{}
	}
	if deps.Tokens == nil {
		deps.Tokens = &mockTokenService{}
	}
	if deps.Store == nil {
		deps.Store = &mockStore{}
	}

	handler := NewHandler(deps)
	chiMW := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitDisabled: true})
	router := NewRouter(handler, auth.NewMiddleware(verifier), chiMW)
	return router.SetupChi(), verifier, handler
}

func bearer(t *testing.T, verifier *auth.JWTVerifier, userID string) string {
	t.Helper()
	token, err := verifier.IssueToken(userID, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return "Bearer " + token
}

func doRequest(t *testing.T, h http.Handler, method, path, authHeader, body string) (*httptest.ResponseRecorder, *models.APIResponse) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp models.APIResponse
	if rec.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
		}
	}
	return rec, &resp
}

// decodeData re-decodes resp.Data into v.
func decodeData(t *testing.T, resp *models.APIResponse, v interface{}) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
}
