// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package sync

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/tomtom215/pagesight/internal/metrics"
	"github.com/tomtom215/pagesight/internal/models/graph"
)

// ExchangeForLongLivedToken trades a short-lived user token for a long-lived one.
//
// App credentials are checked at call time, not construction time, so a
// process without them can still sync with tokens it already holds.
// The exchange is attempted once; throttling is reported, not retried.
func (c *GraphClient) ExchangeForLongLivedToken(ctx context.Context, shortLivedToken string) (string, error) {
	if c.appID == "" || c.appSecret == "" {
		return "", ErrMissingCredentials
	}

	params := url.Values{}
	params.Set("grant_type", "fb_exchange_token")
	params.Set("client_id", c.appID)
	params.Set("client_secret", c.appSecret)
	params.Set("fb_exchange_token", shortLivedToken)
	reqURL := c.baseURL + "/oauth/access_token?" + params.Encode()

	start := time.Now()
	body, err := c.doRequestWithRateLimit(ctx, "oauth", reqURL, false)
	metrics.RecordGraphRequest("oauth", time.Since(start), err)
	if err != nil {
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			return "", &TokenExchangeError{Message: upstream.Message, Err: upstream}
		}
		return "", &TokenExchangeError{Message: err.Error(), Err: err}
	}

	var resp graph.TokenResponse
	if err := decode("oauth", body, &resp); err != nil {
		return "", &TokenExchangeError{Message: "malformed token response", Err: err}
	}
	if resp.AccessToken == "" {
		return "", &TokenExchangeError{Message: "response did not include an access token"}
	}
	return resp.AccessToken, nil
}
