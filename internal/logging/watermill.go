// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package logging

import (
	"github.com/ThreeDotsLabs/watermill"
)

// NewWatermillLogger adapts the global logger for watermill publishers,
// subscribers and routers.
func NewWatermillLogger() watermill.LoggerAdapter {
	return watermill.NewSlogLogger(
		NewSlogLoggerWithLevel("info").With("component", "queue"),
	)
}
