// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

/*
Package models defines the data structures shared across Pagesight.

It is the single source of truth for the persisted entities, the results
returned by sync and token operations, and the HTTP response envelope.

Persisted entities:

  - Integration: a user's platform connection holding the long-lived user token
  - Page: a page owned through an Integration, with its own page token
  - Post: a content item on a Page
  - InsightRaw: the exact bytes returned by one insights fetch
  - InsightProcessed: all metric values for one (subject, date, period)

Operation results:

  - SyncStats, SyncResult: outcome of one sync run
  - RefreshResult, AutoRefreshResult, UserTokenRefresh: token lifecycle outcomes
  - TokenExpirationInfo: current token state for display

HTTP:

  - APIResponse, APIError, Metadata: standard response envelope
  - SyncRequest, BackgroundSyncAccepted: sync endpoint payloads

Platform wire types live in the graph subpackage so that storage models and
Graph API decoding can evolve independently.

Thread Safety:

Models are plain data. They carry no mutexes and are safe for concurrent reads.
Callers that share a value across goroutines must not mutate it.

Token Handling:

AccessToken and PageAccessToken are tagged json:"-" so tokens never leak into
API responses or logs that marshal models.

See Also:

  - internal/sync: produces these models from Graph API responses
  - internal/database: DuckDB persistence
  - internal/database/pg: Postgres persistence
*/
package models
