// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package logging

import (
	"net/url"
	"strings"
)

// sensitiveParams are query parameters stripped from URLs before logging.
var sensitiveParams = []string{"access_token", "client_secret", "fb_exchange_token", "appsecret_proof"}

// RedactToken keeps the last four characters of a token so operators can
// correlate log lines without exposing the secret.
func RedactToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "[REDACTED]"
	}
	return "..." + token[len(token)-4:]
}

// RedactURL replaces token-bearing query parameters with [REDACTED].
// Unparseable input is replaced wholesale.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[REDACTED]"
	}
	q := u.Query()
	changed := false
	for _, p := range sensitiveParams {
		if q.Has(p) {
			q.Set(p, "[REDACTED]")
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return strings.ReplaceAll(u.String(), "%5BREDACTED%5D", "[REDACTED]")
}
