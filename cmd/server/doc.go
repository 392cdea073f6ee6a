// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

// Package main is the entry point for the Pagesight server.
//
// Pagesight pulls Facebook Page, post and insight data from the Graph API
// for every connected user, keeps their tokens long-lived, and serves the
// normalized insights over a small authenticated REST API.
//
// # Startup Order
//
//  1. Configuration: defaults, optional config.yaml, environment (Koanf v2)
//  2. Logging: zerolog, configured from the logging section
//  3. Store: DuckDB file or Postgres pool, selected by DATABASE_DRIVER
//  4. Graph client, optionally behind a circuit breaker
//  5. Token and sync managers
//  6. Sync queue: in-process channel or NATS JetStream
//  7. HTTP server: chi router with JWT caller identity
//  8. Supervisor tree: all long-lived services under suture
//
// # Configuration
//
// The commonly set environment variables are:
//   - FACEBOOK_APP_ID, FACEBOOK_APP_SECRET: token exchange credentials
//   - JWT_SECRET: verifies caller bearer tokens
//   - DATABASE_DRIVER: duckdb (default) or postgres
//   - DUCKDB_PATH or DATABASE_URL: store location
//   - TOKEN_ENCRYPTION_KEY: base64 key for tokens at rest
//   - QUEUE_TRANSPORT: channel (default) or nats
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the root context. The supervisor shuts down the
// HTTP server and lets the queue drain in-flight syncs up to its close
// timeout. The store is closed last.
package main
