// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

/*
Package sync pulls page and post insights from the Facebook Graph API into the store.

Key Components:

  - GraphClient: HTTP client for the Graph API with chunked insight requests,
    outbound rate limiting and throttling backoff
  - CircuitBreakerClient: gobreaker wrapper around any GraphAPI
  - TokenManager: user and page token lifecycle (threshold check, exchange, cascade)
  - Manager: per-user sync orchestration plus a periodic sweep that enqueues
    stale integrations on the background queue
  - GroupInsights: merges metric values into one record per (date, period)

Sync Flow:

 1. Staleness check (manual triggers always run)
 2. Optional token auto refresh
 3. Fetch owned pages; failure here aborts the sync
 4. Per page: store page, fetch and persist page insights, fetch posts
 5. Per post: metadata (falls back to the listing), store post, post insights
 6. Record the sync start time as lastSyncAt

Every insights fetch is stored twice: one raw row per HTTP response with the
exact bytes returned, and one grouped upsert of processed records. Failures
below step 3 are logged and only reduce the returned stats.

Usage Example:

	client := sync.NewCircuitBreakerClient(sync.NewGraphClient(&cfg.Facebook, fields.Default()))
	tokens := sync.NewTokenManager(store, client, &cfg.Tokens)
	manager := sync.NewManager(store, client, tokens, cfg)

	ctx = auth.ContextWithUserID(ctx, userID)
	result, err := manager.SyncData(ctx, true)

Thread Safety:

All exported types are safe for concurrent use. SyncData serializes calls per
user; different users sync in parallel.
*/
package sync
