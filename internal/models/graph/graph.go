// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

// Package graph holds the wire types returned by the Facebook Graph API.
package graph

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// TimeLayout is the timestamp layout used by the Graph API ("+0000" offsets).
const TimeLayout = "2006-01-02T15:04:05-0700"

// Time decodes Graph API timestamps, which are not RFC 3339.
type Time struct {
	time.Time
}

// UnmarshalJSON accepts both the Graph layout and RFC 3339.
func (t *Time) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("graph time: %w", err)
	}
	if s == "" {
		return nil
	}
	parsed, err := time.Parse(TimeLayout, s)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("graph time %q: %w", s, err)
		}
	}
	t.Time = parsed.UTC()
	return nil
}

// MarshalJSON writes the Graph layout so payloads round-trip.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(t.UTC().Format(TimeLayout))), nil
}

// PageSummary is one entry of /me/accounts.
type PageSummary struct {
	ID             string `json:"id" validate:"required,graphid"`
	Name           string `json:"name"`
	AccessToken    string `json:"access_token" validate:"required"`
	Category       string `json:"category"`
	FollowersCount int64  `json:"followers_count"`
	FanCount       int64  `json:"fan_count"`
}

// PagesResponse wraps /me/accounts.
type PagesResponse struct {
	Data   []PageSummary `json:"data"`
	Paging *Paging       `json:"paging,omitempty"`
}

// Paging is the cursor envelope the Graph API attaches to list responses.
// Only the first page is consumed.
type Paging struct {
	Cursors struct {
		Before string `json:"before"`
		After  string `json:"after"`
	} `json:"cursors"`
	Next     string `json:"next,omitempty"`
	Previous string `json:"previous,omitempty"`
}

// Summary is the total_count wrapper used by reactions and comments edges.
type Summary struct {
	TotalCount int64 `json:"total_count"`
}

// SummaryEdge is an edge requested with .summary(true).
type SummaryEdge struct {
	Summary Summary `json:"summary"`
}

// Shares is the shares field on a post.
type Shares struct {
	Count int64 `json:"count"`
}

// Post is a post as returned by /{page}/posts or /{post}.
type Post struct {
	ID           string       `json:"id"`
	CreatedTime  Time         `json:"created_time"`
	Message      string       `json:"message,omitempty"`
	PermalinkURL string       `json:"permalink_url,omitempty"`
	StatusType   string       `json:"status_type,omitempty"`
	Shares       *Shares      `json:"shares,omitempty"`
	Reactions    *SummaryEdge `json:"reactions,omitempty"`
	Comments     *SummaryEdge `json:"comments,omitempty"`
}

// SharesCount returns zero when the shares field is absent.
func (p *Post) SharesCount() int64 {
	if p.Shares == nil {
		return 0
	}
	return p.Shares.Count
}

// ReactionsCount returns zero when the reactions edge is absent.
func (p *Post) ReactionsCount() int64 {
	if p.Reactions == nil {
		return 0
	}
	return p.Reactions.Summary.TotalCount
}

// CommentsCount returns zero when the comments edge is absent.
func (p *Post) CommentsCount() int64 {
	if p.Comments == nil {
		return 0
	}
	return p.Comments.Summary.TotalCount
}

// PostsResponse wraps /{page}/posts.
type PostsResponse struct {
	Data   []Post  `json:"data"`
	Paging *Paging `json:"paging,omitempty"`
}

// InsightValue is one data point of an insight series. Value is either a
// number or an object of breakdown keys to numbers, so it stays raw until
// flattened.
type InsightValue struct {
	Value   json.RawMessage `json:"value"`
	EndTime Time            `json:"end_time"`
}

// Insight is one metric series.
type Insight struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Period      string         `json:"period"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Values      []InsightValue `json:"values"`
}

// InsightsResponse wraps /{id}/insights.
type InsightsResponse struct {
	Data   []Insight `json:"data"`
	Paging *Paging   `json:"paging,omitempty"`
}

// TokenResponse is the body of /oauth/access_token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
}

// ErrorBody is the nested error object of a failed Graph call.
type ErrorBody struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode,omitempty"`
	FBTraceID    string `json:"fbtrace_id,omitempty"`
}

// ErrorResponse is the envelope of a failed Graph call.
type ErrorResponse struct {
	Error *ErrorBody `json:"error"`
}

// Numeric flattens a value into named numbers. A plain number is returned
// under name; an object like {"US":3,"CA":1} becomes name.US and name.CA.
// Values that are neither are dropped.
func (v InsightValue) Numeric(name string) map[string]float64 {
	out := make(map[string]float64)
	raw := bytes.TrimSpace(v.Value)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return out
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		out[name] = n
		return out
	}

	var breakdown map[string]json.RawMessage
	if err := json.Unmarshal(raw, &breakdown); err != nil {
		return out
	}
	for key, sub := range breakdown {
		var f float64
		if err := json.Unmarshal(sub, &f); err == nil {
			out[name+"."+key] = f
		}
	}
	return out
}
