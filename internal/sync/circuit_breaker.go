// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/pagesight/internal/logging"
	"github.com/tomtom215/pagesight/internal/metrics"
	"github.com/tomtom215/pagesight/internal/models/graph"
)

// circuitBreakerName labels the Graph API breaker in metrics and logs.
const circuitBreakerName = "graph-api"

// CircuitBreakerClient wraps a GraphAPI with the circuit breaker pattern so a
// failing Graph API is not hammered by every page and post of every sync.
//
// Errors caused by the request itself (bad fields, 4xx other than throttling,
// missing credentials, caller cancellation) are passed through without
// counting as failures. Timing uses the real clock via sony/gobreaker; tests
// should exercise the wrapped client directly.
type CircuitBreakerClient struct {
	client GraphAPI
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

var _ GraphAPI = (*CircuitBreakerClient)(nil)

// NewCircuitBreakerClient wraps client.
// Configuration:
// - Max 3 requests in half-open state
// - 1 minute measurement window
// - 2 minute timeout before attempting recovery
// - Opens after 60% failure rate with minimum 10 requests
func NewCircuitBreakerClient(client GraphAPI) *CircuitBreakerClient {
	cbName := circuitBreakerName

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6

			if shouldTrip {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
			}

			return shouldTrip
		},

		IsSuccessful: isCallerFault,

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()

			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &CircuitBreakerClient{
		client: client,
		cb:     cb,
		name:   cbName,
	}
}

// State returns the current breaker state as a string.
func (cbc *CircuitBreakerClient) State() string {
	return stateToString(cbc.cb.State())
}

// execute runs fn under circuit breaker protection.
func (cbc *CircuitBreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cbc.cb.Execute(fn)

	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "success").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbc.name).Set(0)
		return result, nil
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "rejected").Inc()
		logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
	case isCallerFault(err):
		metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "ignored").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "failure").Inc()
		counts := cbc.cb.Counts()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbc.name).Set(float64(counts.ConsecutiveFailures))
	}
	return nil, err
}

// castResult type-asserts a breaker result, passing err through.
func castResult[T any](result interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// FetchOwnedPages lists owned pages with circuit breaker protection
func (cbc *CircuitBreakerClient) FetchOwnedPages(ctx context.Context, userToken string) ([]graph.PageSummary, error) {
	return castResult[[]graph.PageSummary](cbc.execute(func() (interface{}, error) {
		return cbc.client.FetchOwnedPages(ctx, userToken)
	}))
}

// FetchPageInsights fetches page insights with circuit breaker protection
func (cbc *CircuitBreakerClient) FetchPageInsights(ctx context.Context, pageID, pageToken, period string, fields []string) (*InsightBatch, error) {
	return castResult[*InsightBatch](cbc.execute(func() (interface{}, error) {
		return cbc.client.FetchPageInsights(ctx, pageID, pageToken, period, fields)
	}))
}

// FetchPagePosts fetches page posts with circuit breaker protection
func (cbc *CircuitBreakerClient) FetchPagePosts(ctx context.Context, pageID, pageToken string, limit int, fields []string) ([]graph.Post, error) {
	return castResult[[]graph.Post](cbc.execute(func() (interface{}, error) {
		return cbc.client.FetchPagePosts(ctx, pageID, pageToken, limit, fields)
	}))
}

// FetchPostMetadata fetches post metadata with circuit breaker protection
func (cbc *CircuitBreakerClient) FetchPostMetadata(ctx context.Context, postID, pageToken string, fields []string) (*graph.Post, error) {
	return castResult[*graph.Post](cbc.execute(func() (interface{}, error) {
		return cbc.client.FetchPostMetadata(ctx, postID, pageToken, fields)
	}))
}

// FetchPostInsights fetches post insights with circuit breaker protection
func (cbc *CircuitBreakerClient) FetchPostInsights(ctx context.Context, postID, pageToken, period string, fields []string) (*InsightBatch, error) {
	return castResult[*InsightBatch](cbc.execute(func() (interface{}, error) {
		return cbc.client.FetchPostInsights(ctx, postID, pageToken, period, fields)
	}))
}

// ExchangeForLongLivedToken exchanges a token with circuit breaker protection
func (cbc *CircuitBreakerClient) ExchangeForLongLivedToken(ctx context.Context, shortLivedToken string) (string, error) {
	return castResult[string](cbc.execute(func() (interface{}, error) {
		return cbc.client.ExchangeForLongLivedToken(ctx, shortLivedToken)
	}))
}
