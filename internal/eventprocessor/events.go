// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package eventprocessor

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Event sources.
const (
	SourceAPI       = "api"
	SourceScheduler = "scheduler"
)

// Message metadata keys.
const (
	metadataUserID = "user_id"
	metadataSource = "source"
)

// ErrInvalidEvent is returned when a sync request fails validation.
var ErrInvalidEvent = errors.New("invalid sync request event")

// SyncRequestedEvent asks the worker to run a non-manual sync for one user.
type SyncRequestedEvent struct {
	RequestID   string    `json:"request_id"`
	UserID      string    `json:"user_id"`
	Source      string    `json:"source"`
	RequestedAt time.Time `json:"requested_at"`
}

// Validate checks that the event carries an ID and a user.
func (e *SyncRequestedEvent) Validate() error {
	if e.RequestID == "" {
		return fmt.Errorf("%w: request_id is required", ErrInvalidEvent)
	}
	if e.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidEvent)
	}
	return nil
}

// MarshalEvent validates and encodes an event.
func MarshalEvent(event *SyncRequestedEvent) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal sync request: %w", err)
	}
	return data, nil
}

// UnmarshalEvent decodes and validates an event payload.
func UnmarshalEvent(data []byte) (*SyncRequestedEvent, error) {
	var event SyncRequestedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return &event, nil
}
