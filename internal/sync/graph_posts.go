// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package sync

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/tomtom215/pagesight/internal/fields"
	"github.com/tomtom215/pagesight/internal/models/graph"
)

// FetchPagePosts returns up to limit recent posts of a page in a single request.
func (c *GraphClient) FetchPagePosts(ctx context.Context, pageID, pageToken string, limit int, requested []string) ([]graph.Post, error) {
	names, err := c.resolveFields(fields.ReportPagePosts, "", requested)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("fields", strings.Join(names, ","))
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.get(ctx, "posts", pageID+"/posts", pageToken, params)
	if err != nil {
		return nil, err
	}

	var resp graph.PostsResponse
	if err := decode("posts", body, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// FetchPostMetadata returns the full field set of a single post.
func (c *GraphClient) FetchPostMetadata(ctx context.Context, postID, pageToken string, requested []string) (*graph.Post, error) {
	names, err := c.resolveFields(fields.ReportPostMetadata, "", requested)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("fields", strings.Join(names, ","))

	body, err := c.get(ctx, "post", postID, pageToken, params)
	if err != nil {
		return nil, err
	}

	var post graph.Post
	if err := decode("post", body, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// FetchPostInsights fetches post metrics for period, one request per chunk.
func (c *GraphClient) FetchPostInsights(ctx context.Context, postID, pageToken, period string, requested []string) (*InsightBatch, error) {
	return c.fetchInsights(ctx, fields.ReportPostInsights, postID, pageToken, period, requested)
}
