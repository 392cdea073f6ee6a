// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

/*
Package config loads and validates Pagesight configuration.

Configuration is layered with koanf v2. Defaults come from defaultConfig, an
optional YAML file overrides them, and environment variables override both.
The file is found via CONFIG_PATH or DefaultConfigPaths.

# Sections

  - Facebook: Graph API host, version, retries, throttling, chunk size
  - Sync: staleness window, worker count, scheduler
  - Tokens: refresh threshold, long-lived lifetime, encryption key
  - Database: duckdb or postgres backend
  - Queue: background sync transport (in-process channel or NATS)
  - Server, Security: HTTP listener, JWT verification, CORS, rate limits
  - Logging, Supervisor

# Environment Variables

Only mapped names are read (see envMappings). Common ones:

  - FACEBOOK_APP_ID, FACEBOOK_APP_SECRET
  - DATABASE_URL (alias SUPABASE_DB_URL), DATABASE_DRIVER, DUCKDB_PATH
  - JWT_SECRET (alias SUPABASE_JWT_SECRET)
  - SYNC_STALE_AFTER, SYNC_PAGE_WORKERS
  - QUEUE_TRANSPORT, NATS_URL, NATS_EMBEDDED
  - HTTP_PORT, LOG_LEVEL, LOG_FORMAT

Missing Facebook app credentials are not a startup error. They surface as a
token exchange failure when a refresh is attempted.
*/
package config
