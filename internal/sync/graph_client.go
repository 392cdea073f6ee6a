// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

/*
graph_client.go - Facebook Graph API client

GraphClient issues authenticated GET requests against a versioned Graph API
base path. Every call takes a context and is safe for concurrent use; the only
state is configuration, the outbound rate limiter and the field catalog.

Resilience:
  - Outbound rate limiting with golang.org/x/time/rate
  - HTTP 429 and Graph throttling codes (4, 17, 32, 613) retried with
    exponential backoff (1s, 2s, 4s...), honoring Retry-After
  - Error bodies read with a 64KB cap and decoded into *UpstreamError
  - Token exchange is never retried

Related files:
  - graph_pages.go: owned pages and page insights
  - graph_posts.go: page posts, post metadata, post insights
  - graph_tokens.go: long-lived token exchange
  - circuit_breaker.go: gobreaker wrapper implementing GraphAPI
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/pagesight/internal/config"
	"github.com/tomtom215/pagesight/internal/fields"
	"github.com/tomtom215/pagesight/internal/logging"
	"github.com/tomtom215/pagesight/internal/metrics"
	"github.com/tomtom215/pagesight/internal/models/graph"
)

// maxErrorBodySize limits how much of an error response is read.
const maxErrorBodySize = 64 * 1024

const (
	// maxBackoffShift caps the exponent so the doubling never overflows.
	maxBackoffShift = 10
	// maxBackoffDelay bounds a single computed backoff wait.
	maxBackoffDelay = 5 * time.Minute
)

// ownedPageFields are requested from /me/accounts.
var ownedPageFields = []string{"id", "name", "access_token", "category", "followers_count", "fan_count"}

// GraphAPI is the Facebook Graph API surface used by the sync and token managers.
//
// A nil fields argument resolves the default field set from the catalog; an
// explicit empty slice fails with ErrNoFieldsAvailable.
type GraphAPI interface {
	FetchOwnedPages(ctx context.Context, userToken string) ([]graph.PageSummary, error)
	FetchPageInsights(ctx context.Context, pageID, pageToken, period string, fields []string) (*InsightBatch, error)
	FetchPagePosts(ctx context.Context, pageID, pageToken string, limit int, fields []string) ([]graph.Post, error)
	FetchPostMetadata(ctx context.Context, postID, pageToken string, fields []string) (*graph.Post, error)
	FetchPostInsights(ctx context.Context, postID, pageToken, period string, fields []string) (*InsightBatch, error)
	ExchangeForLongLivedToken(ctx context.Context, shortLivedToken string) (string, error)
}

// InsightResponse is one insights HTTP response: the exact body bytes and
// what was decoded from them.
type InsightResponse struct {
	Body      json.RawMessage
	FetchedAt time.Time
	Insights  []graph.Insight
}

// InsightBatch holds every chunk response for one subject, in request order.
// FetchedAt is strictly increasing across Responses.
type InsightBatch struct {
	Responses []InsightResponse
}

// Insights returns the decoded insights of all responses, concatenated.
func (b *InsightBatch) Insights() []graph.Insight {
	if b == nil {
		return nil
	}
	var out []graph.Insight
	for _, r := range b.Responses {
		out = append(out, r.Insights...)
	}
	return out
}

// GraphClient handles communication with the Facebook Graph API.
type GraphClient struct {
	baseURL   string
	appID     string
	appSecret string
	client    *http.Client
	catalog   *fields.Catalog
	limiter   *rate.Limiter

	maxRetries     int
	retryBaseDelay time.Duration
	chunkSize      int

	now func() time.Time
}

// NewGraphClient creates a Graph API client. A nil catalog uses fields.Default().
func NewGraphClient(cfg *config.FacebookConfig, catalog *fields.Catalog) *GraphClient {
	if catalog == nil {
		catalog = fields.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &GraphClient{
		baseURL:        cfg.GraphBaseURL(),
		appID:          cfg.AppID,
		appSecret:      cfg.AppSecret,
		client:         &http.Client{Timeout: timeout},
		catalog:        catalog,
		limiter:        limiter,
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: cfg.RetryBaseDelay,
		chunkSize:      cfg.MaxMetricsPerRequest,
		now:            time.Now,
	}
}

// resolveFields applies the default-field rule shared by every fetch.
func (c *GraphClient) resolveFields(reportType, period string, requested []string) ([]string, error) {
	if requested != nil {
		if len(requested) == 0 {
			return nil, ErrNoFieldsAvailable
		}
		return requested, nil
	}

	resolved, err := c.catalog.GetFieldsByPeriod(reportType, period)
	if err != nil {
		return nil, fmt.Errorf("resolve %s fields: %w", reportType, err)
	}
	if len(resolved) == 0 {
		return nil, fmt.Errorf("%s for period %q: %w", reportType, period, ErrNoFieldsAvailable)
	}
	return resolved, nil
}

// appSecretProof signs an access token with the app secret.
func (c *GraphClient) appSecretProof(token string) string {
	mac := hmac.New(sha256.New, []byte(c.appSecret))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// get performs an authenticated GET and returns the 2xx body.
func (c *GraphClient) get(ctx context.Context, endpoint, path, token string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	if token != "" {
		params.Set("access_token", token)
		if c.appSecret != "" {
			params.Set("appsecret_proof", c.appSecretProof(token))
		}
	}
	reqURL := c.baseURL + "/" + strings.TrimPrefix(path, "/") + "?" + params.Encode()

	start := time.Now()
	body, err := c.doRequestWithRateLimit(ctx, endpoint, reqURL, true)
	metrics.RecordGraphRequest(endpoint, time.Since(start), err)
	return body, err
}

// doRequestWithRateLimit performs a GET with throttling backoff.
// When retry is false a throttled response is returned as an error at once.
func (c *GraphClient) doRequestWithRateLimit(ctx context.Context, endpoint, reqURL string, retry bool) ([]byte, error) {
	maxRetries := c.maxRetries
	if !retry || maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// url.Error repeats the full URL, which carries the access token.
			var urlErr *url.Error
			if errors.As(err, &urlErr) {
				return nil, fmt.Errorf("graph api %s request failed: %s %s: %w", endpoint, urlErr.Op, logging.RedactURL(urlErr.URL), urlErr.Err)
			}
			return nil, fmt.Errorf("graph api %s request failed: %w", endpoint, err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			body, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if readErr != nil {
				return nil, fmt.Errorf("graph api %s: failed to read response: %w", endpoint, readErr)
			}
			return body, nil
		}

		upstream := parseUpstreamError(endpoint, resp.StatusCode, readBodyForError(resp.Body))
		retryAfter := resp.Header.Get("Retry-After")
		_ = resp.Body.Close()

		if !upstream.IsThrottled() || attempt >= maxRetries {
			return nil, upstream
		}

		delay := backoffDelay(c.retryBaseDelay, attempt)
		if retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds >= 0 {
				delay = time.Duration(seconds) * time.Second
			}
		}

		metrics.RecordGraphRetry(endpoint)
		logging.Ctx(ctx).Debug().
			Str("endpoint", endpoint).
			Int("attempt", attempt+1).
			Int("code", upstream.Code).
			Dur("delay", delay).
			Msg("Graph API throttled, backing off")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// readBodyForError reads at most maxErrorBodySize bytes of an error response.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// parseUpstreamError decodes the Graph error envelope, falling back to the raw body.
func parseUpstreamError(endpoint string, status int, body []byte) *UpstreamError {
	upstream := &UpstreamError{Endpoint: endpoint, Status: status}

	var envelope graph.ErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		upstream.Code = envelope.Error.Code
		upstream.Type = envelope.Error.Type
		upstream.Message = envelope.Error.Message
	}
	if upstream.Message == "" {
		upstream.Message = strings.TrimSpace(string(body))
	}
	if upstream.Message == "" {
		upstream.Message = http.StatusText(status)
	}
	return upstream
}

// decode unmarshals a response body, naming the endpoint on failure.
func decode(endpoint string, body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode graph api %s response: %w", endpoint, err)
	}
	return nil
}

// nextFetchTime returns a timestamp after prev, truncated to microseconds
// so it survives a round trip through either store.
func (c *GraphClient) nextFetchTime(prev time.Time) time.Time {
	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(prev) {
		t = prev.Add(time.Microsecond)
	}
	return t
}

// fetchInsights resolves and chunks metric names, then requests each chunk
// in order. The first failing chunk aborts the whole fetch.
func (c *GraphClient) fetchInsights(ctx context.Context, reportType, subjectID, token, period string, requested []string) (*InsightBatch, error) {
	names, err := c.resolveFields(reportType, period, requested)
	if err != nil {
		return nil, err
	}

	chunks := fields.ChunkFields(names, c.chunkSize)
	batch := &InsightBatch{Responses: make([]InsightResponse, 0, len(chunks))}
	var last time.Time

	for i, chunk := range chunks {
		params := url.Values{}
		params.Set("metric", strings.Join(chunk, ","))
		if period != "" {
			params.Set("period", period)
		}

		body, err := c.get(ctx, "insights", subjectID+"/insights", token, params)
		if err != nil {
			return nil, fmt.Errorf("insights chunk %d/%d for %s: %w", i+1, len(chunks), subjectID, err)
		}

		var parsed graph.InsightsResponse
		if err := decode("insights", body, &parsed); err != nil {
			return nil, err
		}

		last = c.nextFetchTime(last)
		batch.Responses = append(batch.Responses, InsightResponse{
			Body:      json.RawMessage(body),
			FetchedAt: last,
			Insights:  parsed.Data,
		})
	}
	return batch, nil
}

// backoffDelay doubles base per attempt, capped at maxBackoffDelay.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt > maxBackoffShift {
		attempt = maxBackoffShift
	}
	if attempt < 0 {
		attempt = 0
	}
	delay := base * time.Duration(1<<uint(attempt))
	if delay <= 0 || delay > maxBackoffDelay {
		return maxBackoffDelay
	}
	return delay
}
