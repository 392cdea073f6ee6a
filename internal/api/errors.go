// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package api

import (
	"context"
	"errors"
	"net/http"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/pagesight/internal/eventprocessor"
	pagesync "github.com/tomtom215/pagesight/internal/sync"
)

// Error codes returned in APIError.Code.
const (
	codeNotAuthenticated = "NOT_AUTHENTICATED"
	codeNoIntegration    = "NO_INTEGRATION"
	codeUpstream         = "UPSTREAM_ERROR"
	codeValidation       = "VALIDATION_ERROR"
	codeInternal         = "INTERNAL_ERROR"
	codeQueueUnavailable = "QUEUE_UNAVAILABLE"
	codeNotFound         = "NOT_FOUND"
)

const (
	msgNotAuthenticated = "Sign in again: the request carried no valid session"
	msgNoIntegration    = "Connect your Facebook account before syncing"
)

// ErrQueueDisabled is returned when background sync is requested but no
// queue is wired.
var ErrQueueDisabled = errors.New("background sync queue is not configured")

// ErrSubjectNotFound is returned when a page or post was never synced
// through the caller's integration.
var ErrSubjectNotFound = errors.New("page or post not found for this account")

// serviceError maps a sync or token error to a status, code and a message
// that tells the caller what to do next.
func serviceError(err error) (int, string, string) {
	var upstream *pagesync.UpstreamError
	var exchange *pagesync.TokenExchangeError

	switch {
	case errors.Is(err, pagesync.ErrNotAuthenticated):
		return http.StatusUnauthorized, codeNotAuthenticated, msgNotAuthenticated
	case errors.Is(err, pagesync.ErrNoIntegration):
		return http.StatusNotFound, codeNoIntegration, msgNoIntegration
	case errors.Is(err, pagesync.ErrMissingCredentials):
		return http.StatusInternalServerError, codeInternal, "The server is missing Facebook app credentials; contact the operator"
	case errors.As(err, &exchange):
		return http.StatusBadGateway, codeUpstream, "Facebook refused the token exchange; reconnect your account"
	case errors.As(err, &upstream):
		if upstream.IsThrottled() {
			return http.StatusBadGateway, codeUpstream, "Facebook is rate limiting requests; try again later"
		}
		return http.StatusBadGateway, codeUpstream, "Facebook rejected the request; try again or reconnect your account"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return http.StatusBadGateway, codeUpstream, "Facebook is temporarily unavailable; try again in a minute"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, codeUpstream, "The request timed out; try again"
	case errors.Is(err, ErrSubjectNotFound):
		return http.StatusNotFound, codeNotFound, "No synced page or post with that ID belongs to your account; run a sync first"
	case errors.Is(err, ErrQueueDisabled), errors.Is(err, eventprocessor.ErrQueueNotRunning):
		return http.StatusServiceUnavailable, codeQueueUnavailable, "Background sync is unavailable; run a sync directly"
	default:
		return http.StatusInternalServerError, codeInternal, "Something went wrong; try again"
	}
}
