// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

// Package logging provides the zerolog-based structured logger used across
// Pagesight.
//
// # Overview
//
// A single global logger is configured once at startup with Init and accessed
// through the level helpers:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("user_id", uid).Int("pages", n).Msg("Sync completed")
//	logging.Warn().Err(err).Str("post_id", id).Msg("Post insert failed, skipping insights")
//
// Request and sync-run scoped fields travel in the context:
//
//	ctx = logging.ContextWithSyncRunID(ctx, runID)
//	logging.Ctx(ctx).Info().Msg("Fetching owned pages")
//
// # Adapters
//
// NewSlogLogger bridges zerolog to log/slog for sutureslog. NewWatermillLogger
// wraps that bridge as a watermill.LoggerAdapter for the auto-sync queue.
//
// # Secrets
//
// Platform access tokens must never reach the log sink. Use RedactToken for
// token values and RedactURL for request URLs that carry access_token.
package logging
