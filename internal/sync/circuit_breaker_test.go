// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package sync

import (
	"context"
	"errors"
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/pagesight/internal/models/graph"
)

func TestCircuitBreakerClient_PassesResultsThrough(t *testing.T) {
	t.Parallel()

	mock := &mockGraphAPI{
		fetchOwnedPages: func(context.Context, string) ([]graph.PageSummary, error) {
			return []graph.PageSummary{{ID: "111"}}, nil
		},
		fetchPostMetadata: func(_ context.Context, postID, _ string, _ []string) (*graph.Post, error) {
			return &graph.Post{ID: postID, Message: "hi"}, nil
		},
	}
	cbc := NewCircuitBreakerClient(mock)
	ctx := context.Background()

	pages, err := cbc.FetchOwnedPages(ctx, "token")
	if err != nil || len(pages) != 1 || pages[0].ID != "111" {
		t.Errorf("FetchOwnedPages() = %v, %v", pages, err)
	}
	post, err := cbc.FetchPostMetadata(ctx, "111_1", "token", nil)
	if err != nil || post.Message != "hi" {
		t.Errorf("FetchPostMetadata() = %+v, %v", post, err)
	}
	token, err := cbc.ExchangeForLongLivedToken(ctx, "short")
	if err != nil || token != "long-lived-token" {
		t.Errorf("ExchangeForLongLivedToken() = %q, %v", token, err)
	}
	batch, err := cbc.FetchPageInsights(ctx, "111", "token", "day", nil)
	if err != nil || batch == nil {
		t.Errorf("FetchPageInsights() = %v, %v", batch, err)
	}
	posts, err := cbc.FetchPagePosts(ctx, "111", "token", 5, nil)
	if err != nil || posts != nil {
		t.Errorf("FetchPagePosts() = %v, %v", posts, err)
	}
}

func TestCircuitBreakerClient_OpensOnServerErrors(t *testing.T) {
	t.Parallel()

	mock := &mockGraphAPI{
		fetchOwnedPages: func(context.Context, string) ([]graph.PageSummary, error) {
			return nil, &UpstreamError{Endpoint: "accounts", Status: 503, Message: "unavailable"}
		},
	}
	cbc := NewCircuitBreakerClient(mock)

	for i := 0; i < 10; i++ {
		if _, err := cbc.FetchOwnedPages(context.Background(), "token"); err == nil {
			t.Fatal("expected error")
		}
	}
	if cbc.State() != "open" {
		t.Fatalf("State() = %q, want open", cbc.State())
	}

	_, err := cbc.FetchOwnedPages(context.Background(), "token")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("error = %v, want ErrOpenState", err)
	}
	if n := mock.count("FetchOwnedPages"); n != 10 {
		t.Errorf("underlying calls = %d, want 10", n)
	}
}

func TestCircuitBreakerClient_IgnoresCallerFaults(t *testing.T) {
	t.Parallel()

	callerErrors := []error{
		&UpstreamError{Endpoint: "insights", Status: 400, Code: 100, Message: "invalid metric"},
		ErrNoFieldsAvailable,
		context.Canceled,
	}

	for _, callerErr := range callerErrors {
		mock := &mockGraphAPI{
			fetchPageInsights: func(context.Context, string, string, string, []string) (*InsightBatch, error) {
				return nil, callerErr
			},
		}
		cbc := NewCircuitBreakerClient(mock)

		for i := 0; i < 20; i++ {
			_, err := cbc.FetchPageInsights(context.Background(), "111", "token", "day", nil)
			if !errors.Is(err, callerErr) {
				t.Fatalf("error = %v, want %v passed through", err, callerErr)
			}
		}
		if cbc.State() != "closed" {
			t.Errorf("%v: State() = %q, want closed", callerErr, cbc.State())
		}
	}
}

func TestIsCallerFault(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"expired token", &UpstreamError{Status: 400, Code: 190}, true},
		{"throttled 429", &UpstreamError{Status: 429}, false},
		{"throttled code 17 on 400", &UpstreamError{Status: 400, Code: 17}, false},
		{"server error", &UpstreamError{Status: 500}, false},
		{"token exchange rejected", &TokenExchangeError{Message: "bad", Err: &UpstreamError{Status: 400, Code: 190}}, true},
		{"missing credentials", ErrMissingCredentials, true},
		{"transport failure", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isCallerFault(tt.err); got != tt.want {
				t.Errorf("isCallerFault(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
