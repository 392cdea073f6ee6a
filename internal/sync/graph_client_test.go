// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package sync

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// newTestGraphClient points a GraphClient at handler.
func newTestGraphClient(t *testing.T, handler http.HandlerFunc) (*GraphClient, *atomic.Int32) {
	t.Helper()

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := newTestConfig().Facebook
	cfg.BaseURL = srv.URL
	return NewGraphClient(&cfg, testCatalog()), &requests
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestGraphClient_FetchOwnedPages(t *testing.T) {
	t.Parallel()

	client, requests := newTestGraphClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v19.0/me/accounts" {
			t.Errorf("path = %q, want /v19.0/me/accounts", r.URL.Path)
		}
		q := r.URL.Query()
		if got := q.Get("access_token"); got != "user-token" {
			t.Errorf("access_token = %q", got)
		}
		if got := q.Get("fields"); got != "id,name,access_token,category,followers_count,fan_count" {
			t.Errorf("fields = %q", got)
		}
		mac := hmac.New(sha256.New, []byte("app-secret"))
		mac.Write([]byte("user-token"))
		if got, want := q.Get("appsecret_proof"), hex.EncodeToString(mac.Sum(nil)); got != want {
			t.Errorf("appsecret_proof = %q, want %q", got, want)
		}
		writeJSON(w, http.StatusOK, `{"data":[
			{"id":"111","name":"Bakery","access_token":"page-token-1","category":"Food","followers_count":120,"fan_count":100},
			{"id":"222","name":"Gym","access_token":"page-token-2"}
		]}`)
	})

	pages, err := client.FetchOwnedPages(context.Background(), "user-token")
	if err != nil {
		t.Fatalf("FetchOwnedPages() error = %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("len(pages) = %d, want 2", len(pages))
	}
	if pages[0].ID != "111" || pages[0].AccessToken != "page-token-1" || pages[0].FollowersCount != 120 {
		t.Errorf("pages[0] = %+v", pages[0])
	}
	if requests.Load() != 1 {
		t.Errorf("requests = %d, want 1", requests.Load())
	}
}

func TestGraphClient_FetchPageInsights_ChunksExplicitFields(t *testing.T) {
	t.Parallel()

	var metricParams atomicStrings
	bodies := []string{
		`{"data":[{"name":"m1","period":"day","values":[{"value":1,"end_time":"2026-01-02T08:00:00+0000"}]}]}`,
		`{"data":[{"name":"m3","period":"day","values":[{"value":3,"end_time":"2026-01-02T08:00:00+0000"}]}]}`,
		`{"data":[{"name":"m5","period":"day","values":[{"value":5,"end_time":"2026-01-02T08:00:00+0000"}]}]}`,
	}
	var served atomic.Int32

	client, _ := newTestGraphClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v19.0/111/insights" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("period"); got != "day" {
			t.Errorf("period = %q, want day", got)
		}
		metricParams.add(r.URL.Query().Get("metric"))
		i := served.Add(1) - 1
		writeJSON(w, http.StatusOK, bodies[i])
	})
	client.chunkSize = 2

	batch, err := client.FetchPageInsights(context.Background(), "111", "page-token", "day", []string{"m1", "m2", "m3", "m4", "m5"})
	if err != nil {
		t.Fatalf("FetchPageInsights() error = %v", err)
	}

	wantMetrics := []string{"m1,m2", "m3,m4", "m5"}
	got := metricParams.list()
	if len(got) != len(wantMetrics) {
		t.Fatalf("metric params = %v, want %v", got, wantMetrics)
	}
	for i := range wantMetrics {
		if got[i] != wantMetrics[i] {
			t.Errorf("chunk %d metric = %q, want %q", i, got[i], wantMetrics[i])
		}
	}

	if len(batch.Responses) != 3 {
		t.Fatalf("len(Responses) = %d, want 3", len(batch.Responses))
	}
	for i, resp := range batch.Responses {
		if !bytes.Equal(resp.Body, []byte(bodies[i])) {
			t.Errorf("Responses[%d].Body differs from served bytes", i)
		}
		if i > 0 && !resp.FetchedAt.After(batch.Responses[i-1].FetchedAt) {
			t.Errorf("FetchedAt not strictly increasing at %d", i)
		}
	}
	if n := len(batch.Insights()); n != 3 {
		t.Errorf("len(Insights()) = %d, want 3", n)
	}
}

func TestGraphClient_FetchPageInsights_DefaultFieldsFromCatalog(t *testing.T) {
	t.Parallel()

	client, _ := newTestGraphClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("metric"); got != "page_impressions,page_views_total" {
			t.Errorf("metric = %q, want catalog week fields", got)
		}
		writeJSON(w, http.StatusOK, `{"data":[]}`)
	})

	if _, err := client.FetchPageInsights(context.Background(), "111", "page-token", "week", nil); err != nil {
		t.Fatalf("FetchPageInsights() error = %v", err)
	}
}

func TestGraphClient_FetchInsights_NoFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		period string
		fields []string
	}{
		{name: "explicit empty list", period: "day", fields: []string{}},
		{name: "catalog has nothing for period", period: "lifetime", fields: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, requests := newTestGraphClient(t, func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, `{"data":[]}`)
			})

			_, err := client.FetchPageInsights(context.Background(), "111", "page-token", tt.period, tt.fields)
			if !errors.Is(err, ErrNoFieldsAvailable) {
				t.Fatalf("error = %v, want ErrNoFieldsAvailable", err)
			}
			if requests.Load() != 0 {
				t.Errorf("requests = %d, want 0", requests.Load())
			}
		})
	}
}

func TestGraphClient_FetchInsights_FailedChunkAborts(t *testing.T) {
	t.Parallel()

	var served atomic.Int32
	client, requests := newTestGraphClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if served.Add(1) == 2 {
			writeJSON(w, http.StatusInternalServerError, `{"error":{"message":"An unknown error occurred","type":"OAuthException","code":1}}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"data":[]}`)
	})
	client.chunkSize = 1

	_, err := client.FetchPostInsights(context.Background(), "111_1", "page-token", "lifetime", []string{"a", "b", "c"})
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("error = %v, want *UpstreamError", err)
	}
	if upstream.Status != http.StatusInternalServerError || upstream.Message != "An unknown error occurred" {
		t.Errorf("upstream = %+v", upstream)
	}
	if requests.Load() != 2 {
		t.Errorf("requests = %d, want 2 (third chunk must not be sent)", requests.Load())
	}
}

func TestGraphClient_ErrorEnvelope(t *testing.T) {
	t.Parallel()

	client, requests := newTestGraphClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"error":{"message":"Error validating access token","type":"OAuthException","code":190}}`)
	})

	_, err := client.FetchPagePosts(context.Background(), "111", "bad-token", 10, nil)
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("error = %v, want *UpstreamError", err)
	}
	if upstream.Status != 400 || upstream.Code != 190 || upstream.Type != "OAuthException" {
		t.Errorf("upstream = %+v", upstream)
	}
	if upstream.Message != "Error validating access token" {
		t.Errorf("Message = %q", upstream.Message)
	}
	if !upstream.IsClientError() {
		t.Error("IsClientError() = false, want true")
	}
	if requests.Load() != 1 {
		t.Errorf("requests = %d, want 1 (client errors are not retried)", requests.Load())
	}
}

func TestGraphClient_ErrorWithoutEnvelope(t *testing.T) {
	t.Parallel()

	client, _ := newTestGraphClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream gateway failure"))
	})

	_, err := client.FetchOwnedPages(context.Background(), "user-token")
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("error = %v, want *UpstreamError", err)
	}
	if upstream.Message != "upstream gateway failure" {
		t.Errorf("Message = %q", upstream.Message)
	}
}

func TestGraphClient_RetriesThrottledRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		throttled func(w http.ResponseWriter)
	}{
		{
			name: "HTTP 429 with Retry-After",
			throttled: func(w http.ResponseWriter) {
				w.Header().Set("Retry-After", "0")
				writeJSON(w, http.StatusTooManyRequests, `{}`)
			},
		},
		{
			name: "Graph code 613",
			throttled: func(w http.ResponseWriter) {
				writeJSON(w, http.StatusBadRequest, `{"error":{"message":"Calls to this api have exceeded the rate limit.","code":613}}`)
			},
		},
		{
			name: "Graph code 4",
			throttled: func(w http.ResponseWriter) {
				writeJSON(w, http.StatusForbidden, `{"error":{"message":"Application request limit reached","code":4}}`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var served atomic.Int32
			client, requests := newTestGraphClient(t, func(w http.ResponseWriter, _ *http.Request) {
				if served.Add(1) <= 2 {
					tt.throttled(w)
					return
				}
				writeJSON(w, http.StatusOK, `{"data":[{"id":"111","access_token":"t"}]}`)
			})

			pages, err := client.FetchOwnedPages(context.Background(), "user-token")
			if err != nil {
				t.Fatalf("FetchOwnedPages() error = %v", err)
			}
			if len(pages) != 1 {
				t.Errorf("len(pages) = %d, want 1", len(pages))
			}
			if requests.Load() != 3 {
				t.Errorf("requests = %d, want 3", requests.Load())
			}
		})
	}
}

func TestGraphClient_RetriesExhausted(t *testing.T) {
	t.Parallel()

	client, requests := newTestGraphClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, `{"error":{"message":"slow down","code":17}}`)
	})

	_, err := client.FetchOwnedPages(context.Background(), "user-token")
	var upstream *UpstreamError
	if !errors.As(err, &upstream) || !upstream.IsThrottled() {
		t.Fatalf("error = %v, want throttled *UpstreamError", err)
	}
	// MaxRetries is 2 in the test config: one attempt plus two retries.
	if requests.Load() != 3 {
		t.Errorf("requests = %d, want 3", requests.Load())
	}
}

func TestGraphClient_BackoffHonorsContext(t *testing.T) {
	t.Parallel()

	client, _ := newTestGraphClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "30")
		writeJSON(w, http.StatusTooManyRequests, `{}`)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.FetchOwnedPages(ctx, "user-token")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("backoff ignored cancellation, took %v", elapsed)
	}
}

func TestGraphClient_FetchPagePostsAndMetadata(t *testing.T) {
	t.Parallel()

	client, _ := newTestGraphClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v19.0/111/posts":
			if got := r.URL.Query().Get("limit"); got != "10" {
				t.Errorf("limit = %q, want 10", got)
			}
			if got := r.URL.Query().Get("fields"); got != "id,created_time" {
				t.Errorf("fields = %q", got)
			}
			writeJSON(w, http.StatusOK, `{"data":[{"id":"111_1","created_time":"2026-01-05T10:00:00+0000"}]}`)
		case "/v19.0/111_1":
			if got := r.URL.Query().Get("fields"); got != "id,created_time,message" {
				t.Errorf("fields = %q", got)
			}
			writeJSON(w, http.StatusOK, `{"id":"111_1","created_time":"2026-01-05T10:00:00+0000","message":"Fresh bread",
				"shares":{"count":4},"reactions":{"summary":{"total_count":12}},"comments":{"summary":{"total_count":3}}}`)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	posts, err := client.FetchPagePosts(context.Background(), "111", "page-token", 10, nil)
	if err != nil {
		t.Fatalf("FetchPagePosts() error = %v", err)
	}
	if len(posts) != 1 || posts[0].ID != "111_1" {
		t.Fatalf("posts = %+v", posts)
	}
	wantCreated := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	if !posts[0].CreatedTime.Equal(wantCreated) {
		t.Errorf("CreatedTime = %v, want %v", posts[0].CreatedTime.Time, wantCreated)
	}

	meta, err := client.FetchPostMetadata(context.Background(), "111_1", "page-token", nil)
	if err != nil {
		t.Fatalf("FetchPostMetadata() error = %v", err)
	}
	if meta.Message != "Fresh bread" || meta.SharesCount() != 4 || meta.ReactionsCount() != 12 || meta.CommentsCount() != 3 {
		t.Errorf("meta = %+v", meta)
	}
}

func TestGraphClient_ExchangeForLongLivedToken(t *testing.T) {
	t.Parallel()

	client, _ := newTestGraphClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v19.0/oauth/access_token" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("grant_type") != "fb_exchange_token" || q.Get("client_id") != "app-id" ||
			q.Get("client_secret") != "app-secret" || q.Get("fb_exchange_token") != "short-token" {
			t.Errorf("query = %v", q)
		}
		if q.Has("appsecret_proof") {
			t.Error("appsecret_proof must not be sent on token exchange")
		}
		writeJSON(w, http.StatusOK, `{"access_token":"long-token","token_type":"bearer","expires_in":5183944}`)
	})

	token, err := client.ExchangeForLongLivedToken(context.Background(), "short-token")
	if err != nil {
		t.Fatalf("ExchangeForLongLivedToken() error = %v", err)
	}
	if token != "long-token" {
		t.Errorf("token = %q, want long-token", token)
	}
}

func TestGraphClient_ExchangeForLongLivedToken_MissingCredentials(t *testing.T) {
	t.Parallel()

	client, requests := newTestGraphClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{"access_token":"x"}`)
	})
	client.appSecret = ""

	_, err := client.ExchangeForLongLivedToken(context.Background(), "short-token")
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("error = %v, want ErrMissingCredentials", err)
	}
	if requests.Load() != 0 {
		t.Errorf("requests = %d, want 0", requests.Load())
	}
}

func TestGraphClient_ExchangeForLongLivedToken_Failure(t *testing.T) {
	t.Parallel()

	client, requests := newTestGraphClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, `{"error":{"message":"Session has expired","type":"OAuthException","code":4}}`)
	})

	_, err := client.ExchangeForLongLivedToken(context.Background(), "short-token")
	var exchangeErr *TokenExchangeError
	if !errors.As(err, &exchangeErr) {
		t.Fatalf("error = %v, want *TokenExchangeError", err)
	}
	if exchangeErr.Message != "Session has expired" {
		t.Errorf("Message = %q", exchangeErr.Message)
	}
	if requests.Load() != 1 {
		t.Errorf("requests = %d, want 1 (token exchange is never retried)", requests.Load())
	}
}

func TestGraphClient_TransportErrorRedactsToken(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig().Facebook
	cfg.BaseURL = "http://127.0.0.1:1"
	cfg.Timeout = time.Second
	client := NewGraphClient(&cfg, testCatalog())

	_, err := client.FetchOwnedPages(context.Background(), "secret-user-token")
	if err == nil {
		t.Fatal("expected transport error")
	}
	if strings.Contains(err.Error(), "secret-user-token") {
		t.Errorf("error leaks access token: %v", err)
	}
}

func TestReadBodyForError_Truncates(t *testing.T) {
	t.Parallel()

	big := strings.Repeat("x", maxErrorBodySize+100)
	got := readBodyForError(strings.NewReader(big))
	if !strings.HasSuffix(string(got), "... (truncated)") {
		t.Error("expected truncation marker")
	}
	if len(got) > maxErrorBodySize+len("\n... (truncated)") {
		t.Errorf("len = %d, exceeds cap", len(got))
	}

	small := readBodyForError(strings.NewReader("short"))
	if string(small) != "short" {
		t.Errorf("small body = %q", small)
	}
}

// atomicStrings collects strings from handler goroutines.
type atomicStrings struct {
	mu     sync.Mutex
	values []string
}

func (a *atomicStrings) add(s string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.values = append(a.values, s)
}

func (a *atomicStrings) list() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.values...)
}

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	base := 500 * time.Millisecond
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, time.Second},
		{3, 4 * time.Second},
		{9, 256 * time.Second},
		{10, maxBackoffDelay},
		{63, maxBackoffDelay},
		{1000, maxBackoffDelay},
		{-1, 500 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := backoffDelay(base, tt.attempt); got != tt.want {
			t.Errorf("backoffDelay(%v, %d) = %v, want %v", base, tt.attempt, got, tt.want)
		}
	}

	// Large attempts never go negative or zero, even with a large base.
	for attempt := 0; attempt < 128; attempt++ {
		if got := backoffDelay(time.Hour, attempt); got <= 0 || got > maxBackoffDelay {
			t.Fatalf("backoffDelay(1h, %d) = %v", attempt, got)
		}
	}
}
