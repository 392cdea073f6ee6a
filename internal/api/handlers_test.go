// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/pagesight/internal/auth"
	"github.com/tomtom215/pagesight/internal/eventprocessor"
	"github.com/tomtom215/pagesight/internal/models"
	pagesync "github.com/tomtom215/pagesight/internal/sync"
)

func TestAPIRequiresBearerToken(t *testing.T) {
	t.Parallel()

	h, _ := testServer(t, Dependencies{})

	tests := []struct {
		method, path, auth string
	}{
		{http.MethodPost, "/api/v1/sync", ""},
		{http.MethodPost, "/api/v1/sync/background", ""},
		{http.MethodPost, "/api/v1/tokens/refresh", "Bearer not-a-jwt"},
		{http.MethodGet, "/api/v1/tokens/expiration", "Basic dXNlcjpwYXNz"},
		{http.MethodPut, "/api/v1/integrations/facebook", ""},
		{http.MethodGet, "/api/v1/pages", ""},
		{http.MethodGet, "/api/v1/sync/status", ""},
	}
	for _, tt := range tests {
		rec, resp := doRequest(t, h, tt.method, tt.path, tt.auth, "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s status = %d, want 401", tt.method, tt.path, rec.Code)
			continue
		}
		if resp.Error == nil || resp.Error.Code != codeNotAuthenticated {
			t.Errorf("%s %s error = %+v, want NOT_AUTHENTICATED", tt.method, tt.path, resp.Error)
		}
	}
}

func TestSyncPassesCallerAndManualFlag(t *testing.T) {
	t.Parallel()

	var gotUser string
	var gotManual bool
	syncer := &mockSyncService{
		SyncDataFunc: func(ctx context.Context, manual bool) (*models.SyncResult, error) {
			gotUser, _ = auth.UserIDFromContext(ctx)
			gotManual = manual
			return &models.SyncResult{Success: true, Stats: &models.SyncStats{PagesSynced: 2}}, nil
		},
	}
	h, verifier := testServer(t, Dependencies{Sync: syncer})

	rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/sync", bearer(t, verifier, "user-42"), `{"manual":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if gotUser != "user-42" || !gotManual {
		t.Errorf("SyncData called with user=%q manual=%v", gotUser, gotManual)
	}

	var result models.SyncResult
	decodeData(t, resp, &result)
	if result.Stats == nil || result.Stats.PagesSynced != 2 {
		t.Errorf("result = %+v", result)
	}
	if resp.Metadata.CorrelationID == "" {
		t.Error("correlation id missing from metadata")
	}
}

func TestSyncEmptyBodyIsNonManual(t *testing.T) {
	t.Parallel()

	manual := true
	syncer := &mockSyncService{
		SyncDataFunc: func(_ context.Context, m bool) (*models.SyncResult, error) {
			manual = m
			return &models.SyncResult{Success: true, Skipped: true}, nil
		},
	}
	h, verifier := testServer(t, Dependencies{Sync: syncer})

	rec, _ := doRequest(t, h, http.MethodPost, "/api/v1/sync", bearer(t, verifier, "u"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if manual {
		t.Error("empty body should mean manual=false")
	}
}

func TestSyncRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	h, verifier := testServer(t, Dependencies{})
	rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/sync", bearer(t, verifier, "u"), `{"manual":`)
	if rec.Code != http.StatusBadRequest || resp.Error.Code != codeValidation {
		t.Errorf("status = %d, error = %+v", rec.Code, resp.Error)
	}
}

func TestSyncErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"no integration", fmt.Errorf("load: %w", pagesync.ErrNoIntegration), http.StatusNotFound, codeNoIntegration},
		{"not authenticated", pagesync.ErrNotAuthenticated, http.StatusUnauthorized, codeNotAuthenticated},
		{"upstream", &pagesync.UpstreamError{Endpoint: "me/accounts", Status: 400, Code: 190, Message: "expired"}, http.StatusBadGateway, codeUpstream},
		{"throttled", &pagesync.UpstreamError{Endpoint: "insights", Status: 400, Code: 4}, http.StatusBadGateway, codeUpstream},
		{"breaker open", gobreaker.ErrOpenState, http.StatusBadGateway, codeUpstream},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, codeUpstream},
		{"missing credentials", pagesync.ErrMissingCredentials, http.StatusInternalServerError, codeInternal},
		{"unknown", errBoom, http.StatusInternalServerError, codeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			syncer := &mockSyncService{
				SyncDataFunc: func(context.Context, bool) (*models.SyncResult, error) { return nil, tt.err },
			}
			h, verifier := testServer(t, Dependencies{Sync: syncer})

			rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/sync", bearer(t, verifier, "u"), "")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Fatalf("error = %+v, want code %s", resp.Error, tt.wantCode)
			}
			if resp.Error.Message == "" {
				t.Error("error message must tell the caller what to do")
			}
		})
	}
}

func TestSyncBackgroundQueues(t *testing.T) {
	t.Parallel()

	queue := newMockQueue(true)
	var gotUser, gotSource string
	queue.EnqueueFunc = func(_ context.Context, userID, source string) (*models.BackgroundSyncAccepted, error) {
		gotUser, gotSource = userID, source
		return &models.BackgroundSyncAccepted{RequestID: "req-9", QueuedAt: time.Now().UTC()}, nil
	}
	h, verifier := testServer(t, Dependencies{Queue: queue})

	rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/sync/background", bearer(t, verifier, "user-7"), "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if gotUser != "user-7" || gotSource != eventprocessor.SourceAPI {
		t.Errorf("Enqueue(%q, %q)", gotUser, gotSource)
	}
	var accepted models.BackgroundSyncAccepted
	decodeData(t, resp, &accepted)
	if accepted.RequestID != "req-9" {
		t.Errorf("request id = %q", accepted.RequestID)
	}
}

func TestSyncBackgroundWithoutQueue(t *testing.T) {
	t.Parallel()

	h, verifier := testServer(t, Dependencies{})
	rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/sync/background", bearer(t, verifier, "u"), "")
	if rec.Code != http.StatusServiceUnavailable || resp.Error.Code != codeQueueUnavailable {
		t.Errorf("status = %d, error = %+v", rec.Code, resp.Error)
	}
}

func TestTokenEndpoints(t *testing.T) {
	t.Parallel()

	days := 12
	tokens := &mockTokenService{
		RefreshAllTokensFunc: func(context.Context) (*models.RefreshResult, error) {
			return &models.RefreshResult{UserTokenRefreshed: true, PagesRefreshed: 3}, nil
		},
		GetTokenExpirationInfoFunc: func(context.Context) (*models.TokenExpirationInfo, error) {
			return &models.TokenExpirationInfo{DaysUntilExpiration: &days, NeedsRefresh: false}, nil
		},
	}
	h, verifier := testServer(t, Dependencies{Tokens: tokens})
	authz := bearer(t, verifier, "u")

	rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/tokens/refresh", authz, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d", rec.Code)
	}
	var refresh models.RefreshResult
	decodeData(t, resp, &refresh)
	if !refresh.UserTokenRefreshed || refresh.PagesRefreshed != 3 {
		t.Errorf("refresh = %+v", refresh)
	}

	rec, resp = doRequest(t, h, http.MethodGet, "/api/v1/tokens/expiration", authz, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expiration status = %d", rec.Code)
	}
	var info models.TokenExpirationInfo
	decodeData(t, resp, &info)
	if info.DaysUntilExpiration == nil || *info.DaysUntilExpiration != 12 {
		t.Errorf("info = %+v", info)
	}
}

func TestTokenRefreshExchangeFailure(t *testing.T) {
	t.Parallel()

	tokens := &mockTokenService{
		RefreshAllTokensFunc: func(context.Context) (*models.RefreshResult, error) {
			return nil, &pagesync.TokenExchangeError{Message: "Error validating access token"}
		},
	}
	h, verifier := testServer(t, Dependencies{Tokens: tokens})

	rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/tokens/refresh", bearer(t, verifier, "u"), "")
	if rec.Code != http.StatusBadGateway || resp.Error.Code != codeUpstream {
		t.Errorf("status = %d, error = %+v", rec.Code, resp.Error)
	}
}

func TestInsightsSharedPageVisibleToEveryAdmin(t *testing.T) {
	t.Parallel()

	var gotFrom, gotTo time.Time
	var gotPeriod string
	store := &mockStore{
		links: map[string][]string{
			"int-admin-a": {"1234"},
			"int-admin-b": {"1234"},
		},
		// The last sync was made by admin-b; admin-a must still see it.
		GetInsightProcessedFunc: func(_ context.Context, subjectID, period string, from, to time.Time) ([]models.InsightProcessed, error) {
			gotPeriod, gotFrom, gotTo = period, from, to
			return []models.InsightProcessed{
				{SubjectID: subjectID, UserID: "admin-b", Period: "day", Metrics: map[string]float64{"page_impressions": 10}},
			}, nil
		},
	}
	h, verifier := testServer(t, Dependencies{Store: store})

	for _, user := range []string{"admin-a", "admin-b"} {
		rec, resp := doRequest(t, h, http.MethodGet, "/api/v1/insights/1234?period=day&from=2026-02-01&to=2026-02-28", bearer(t, verifier, user), "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d, body %s", user, rec.Code, rec.Body.String())
		}
		var records []models.InsightProcessed
		decodeData(t, resp, &records)
		if len(records) != 1 || records[0].Metrics["page_impressions"] != 10 {
			t.Errorf("%s records = %+v", user, records)
		}
	}
	if gotPeriod != "day" {
		t.Errorf("period = %q", gotPeriod)
	}
	if !gotFrom.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)) || !gotTo.Equal(time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("range = %v..%v", gotFrom, gotTo)
	}
}

func TestInsightsPostOnOwnedPage(t *testing.T) {
	t.Parallel()

	store := &mockStore{
		links: map[string][]string{"int-owner": {"1234"}},
		posts: map[string]models.Post{
			"1234_5": {ID: "1234_5", PageID: "1234"},
			"9999_1": {ID: "9999_1", PageID: "9999"},
		},
		GetInsightProcessedFunc: func(_ context.Context, subjectID, _ string, _, _ time.Time) ([]models.InsightProcessed, error) {
			return []models.InsightProcessed{{SubjectID: subjectID, Period: "lifetime"}}, nil
		},
	}
	h, verifier := testServer(t, Dependencies{Store: store})
	authz := bearer(t, verifier, "owner")

	rec, _ := doRequest(t, h, http.MethodGet, "/api/v1/insights/1234_5", authz, "")
	if rec.Code != http.StatusOK {
		t.Errorf("owned post status = %d, want 200", rec.Code)
	}

	for _, path := range []string{"/api/v1/insights/9999_1", "/api/v1/insights/9999", "/api/v1/insights/5555_1"} {
		rec, resp := doRequest(t, h, http.MethodGet, path, authz, "")
		if rec.Code != http.StatusNotFound || resp.Error == nil || resp.Error.Code != codeNotFound {
			t.Errorf("%s status = %d, error = %+v, want 404 NOT_FOUND", path, rec.Code, resp.Error)
		}
	}
}

func TestInsightsRequiresIntegration(t *testing.T) {
	t.Parallel()

	store := &mockStore{GetIntegrationByUserFunc: noIntegration}
	h, verifier := testServer(t, Dependencies{Store: store})

	rec, resp := doRequest(t, h, http.MethodGet, "/api/v1/insights/1234", bearer(t, verifier, "u"), "")
	if rec.Code != http.StatusNotFound || resp.Error.Code != codeNoIntegration {
		t.Errorf("status = %d, error = %+v", rec.Code, resp.Error)
	}
}

func TestInsightsValidation(t *testing.T) {
	t.Parallel()

	h, verifier := testServer(t, Dependencies{})
	authz := bearer(t, verifier, "u")

	for _, path := range []string{
		"/api/v1/insights/not-an-id",
		"/api/v1/insights/1234?period=hourly",
		"/api/v1/insights/1234?from=02-01-2026",
		"/api/v1/insights/1234?from=2026-03-01&to=2026-02-01",
	} {
		rec, resp := doRequest(t, h, http.MethodGet, path, authz, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", path, rec.Code)
			continue
		}
		if resp.Error == nil || resp.Error.Code != codeValidation {
			t.Errorf("%s error = %+v", path, resp.Error)
		}
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	lastSync := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	deps := Dependencies{
		Sync:            &mockSyncService{lastSync: lastSync},
		Queue:           newMockQueue(true),
		Breaker:         stubBreaker("closed"),
		DatabaseBackend: "duckdb",
		Version:         "1.2.3",
	}
	h, _ := testServer(t, deps)

	rec, resp := doRequest(t, h, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	var status models.HealthStatus
	decodeData(t, resp, &status)
	if status.Status != "healthy" || !status.DatabaseConnected || !status.QueueRunning {
		t.Errorf("status = %+v", status)
	}
	if status.GraphCircuitBreaker != "closed" || status.Version != "1.2.3" || status.DatabaseBackend != "duckdb" {
		t.Errorf("status = %+v", status)
	}
	if status.LastSyncTime == nil || !status.LastSyncTime.Equal(lastSync) {
		t.Errorf("last sync = %v", status.LastSyncTime)
	}

	rec, _ = doRequest(t, h, http.MethodGet, "/health/ready", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("ready status = %d", rec.Code)
	}
	rec, _ = doRequest(t, h, http.MethodGet, "/health/live", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("live status = %d", rec.Code)
	}
}

func TestHealthReadyDegraded(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		deps Dependencies
	}{
		{"store down", Dependencies{Store: &mockStore{pingErr: errBoom}}},
		{"queue not started", Dependencies{Queue: newMockQueue(false)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, _ := testServer(t, tt.deps)

			rec, _ := doRequest(t, h, http.MethodGet, "/health/ready", "", "")
			if rec.Code != http.StatusServiceUnavailable {
				t.Errorf("ready status = %d, want 503", rec.Code)
			}
			rec, resp := doRequest(t, h, http.MethodGet, "/health", "", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("health status = %d", rec.Code)
			}
			var status models.HealthStatus
			decodeData(t, resp, &status)
			if status.Status != "degraded" {
				t.Errorf("status = %q, want degraded", status.Status)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	h, _ := testServer(t, Dependencies{})
	rec, _ := doRequest(t, h, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
}
