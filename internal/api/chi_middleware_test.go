// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/pagesight/internal/auth"
	"github.com/tomtom215/pagesight/internal/config"
)

func TestNewChiMiddlewareConfig(t *testing.T) {
	t.Parallel()

	cfg := NewChiMiddlewareConfig(&config.SecurityConfig{
		CORSOrigins:       []string{"https://app.example.com"},
		RateLimitRequests: 10,
		RateLimitWindow:   30 * time.Second,
	})
	if cfg.RateLimitRequests != 10 || cfg.RateLimitWindow != 30*time.Second {
		t.Errorf("rate limit = %d/%v", cfg.RateLimitRequests, cfg.RateLimitWindow)
	}
	if len(cfg.CORSAllowedOrigins) != 1 {
		t.Errorf("origins = %v", cfg.CORSAllowedOrigins)
	}

	defaults := NewChiMiddlewareConfig(&config.SecurityConfig{})
	if defaults.RateLimitRequests != 60 || defaults.RateLimitWindow != time.Minute {
		t.Errorf("defaults = %d/%v", defaults.RateLimitRequests, defaults.RateLimitWindow)
	}
}

func TestRateLimitKeyedByUser(t *testing.T) {
	t.Parallel()

	mw := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitRequests: 2, RateLimitWindow: time.Minute})
	handler := mw.RateLimit()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(userID string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/x", nil)
		req.RemoteAddr = "203.0.113.9:1234"
		req = req.WithContext(auth.ContextWithUserID(req.Context(), userID))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("alice"); code != http.StatusNoContent {
			t.Fatalf("request %d for alice = %d", i, code)
		}
	}
	if code := send("alice"); code != http.StatusTooManyRequests {
		t.Errorf("third request for alice = %d, want 429", code)
	}
	// Same IP, different user: separate bucket.
	if code := send("bob"); code != http.StatusNoContent {
		t.Errorf("first request for bob = %d, want 204", code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	t.Parallel()

	mw := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitRequests: 1, RateLimitWindow: time.Minute, RateLimitDisabled: true})
	handler := mw.RateLimit()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("request %d = %d", i, rec.Code)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	mw := NewChiMiddleware(&ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{"https://app.example.com"},
		CORSAllowedMethods: []string{"GET", "POST"},
		CORSAllowedHeaders: []string{"Authorization"},
	})
	handler := mw.CORS()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sync", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
}
