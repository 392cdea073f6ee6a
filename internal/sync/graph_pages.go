// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package sync

import (
	"context"
	"net/url"
	"strings"

	"github.com/tomtom215/pagesight/internal/fields"
	"github.com/tomtom215/pagesight/internal/models/graph"
)

// FetchOwnedPages lists the pages the user token can manage, each with its own page token.
func (c *GraphClient) FetchOwnedPages(ctx context.Context, userToken string) ([]graph.PageSummary, error) {
	params := url.Values{}
	params.Set("fields", strings.Join(ownedPageFields, ","))

	body, err := c.get(ctx, "accounts", "me/accounts", userToken, params)
	if err != nil {
		return nil, err
	}

	var resp graph.PagesResponse
	if err := decode("accounts", body, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// FetchPageInsights fetches page metrics for period, one request per chunk.
func (c *GraphClient) FetchPageInsights(ctx context.Context, pageID, pageToken, period string, requested []string) (*InsightBatch, error) {
	return c.fetchInsights(ctx, fields.ReportPageInsights, pageID, pageToken, period, requested)
}
