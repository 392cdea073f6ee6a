// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

/*
Package database implements the sync store on top of DuckDB.

The schema is created when the database is opened. Every write is a keyed
upsert, so re-running a sync converges on the same rows:

  - integrations: one row per (user_id, platform)
  - pages, posts: keyed by platform ID; creation time is never overwritten
  - insights_raw: response bytes keyed by (subject_id, fetched_at), insert-once
  - insights_processed: one row per metric keyed by
    (subject_id, date, period, metric_name)

Access tokens are encrypted with auth.TokenEncryptor when a key is configured.

Usage:

	db, err := database.New(&cfg.Database, encryptor)
	if err != nil {
	    return err
	}
	defer db.Close()

	manager := sync.NewManager(db, client, tokens, cfg)

Thread Safety:

DB is safe for concurrent use. DuckDB write-write conflicts are retried a
bounded number of times.
*/
package database
