// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tomtom215/pagesight/internal/fields"
)

var (
	// ErrNotAuthenticated is returned when the context carries no caller identity.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNoIntegration is returned when the caller has not connected a Facebook account.
	ErrNoIntegration = errors.New("no facebook integration found")

	// ErrNoFieldsAvailable is returned when field resolution yields nothing to request.
	ErrNoFieldsAvailable = errors.New("no fields available for request")

	// ErrMissingCredentials is returned by token exchange when the app id or secret is unset.
	ErrMissingCredentials = errors.New("facebook app credentials are not configured")
)

// Graph API error codes that signal throttling rather than a bad request.
var throttleCodes = map[int]bool{
	4:   true, // application request limit
	17:  true, // user request limit
	32:  true, // page request limit
	613: true, // custom rate limit
}

// UpstreamError is a non-2xx response from the Graph API.
type UpstreamError struct {
	Endpoint string
	Status   int
	Code     int
	Type     string
	Message  string
}

func (e *UpstreamError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("graph api %s returned %d (code %d): %s", e.Endpoint, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("graph api %s returned %d: %s", e.Endpoint, e.Status, e.Message)
}

// IsThrottled reports whether the request may succeed if retried later.
func (e *UpstreamError) IsThrottled() bool {
	return e.Status == http.StatusTooManyRequests || throttleCodes[e.Code]
}

// IsClientError reports a 4xx that retrying will not fix (expired token,
// missing permission, unknown metric).
func (e *UpstreamError) IsClientError() bool {
	return e.Status >= 400 && e.Status < 500 && !e.IsThrottled()
}

// TokenExchangeError is returned when the long-lived token exchange fails.
type TokenExchangeError struct {
	Message string
	Err     error
}

func (e *TokenExchangeError) Error() string {
	return "token exchange failed: " + e.Message
}

func (e *TokenExchangeError) Unwrap() error {
	return e.Err
}

// isCallerFault reports errors caused by the request itself rather than by
// Graph API health. These must not count against the circuit breaker.
func isCallerFault(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, ErrNoFieldsAvailable) ||
		errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, fields.ErrUnknownReportType) ||
		errors.Is(err, fields.ErrFieldNotFound) {
		return true
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.IsClientError()
	}
	return false
}
