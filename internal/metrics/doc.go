// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

/*
Package metrics defines the Prometheus instrumentation for Pagesight.

All collectors are registered on the default registry through promauto and
exposed by the API server at /metrics.

# Metric Families

  - store_*: persistence latency and errors per backend and operation
  - api_*: HTTP request counts, latency, in-flight gauge, rate-limit hits
  - sync_*: orchestrator duration, persisted records, skips, item failures
  - graph_api_*: Graph API latency, failures and throttle retries per endpoint
  - token_refreshes_total: user and page token refresh outcomes
  - circuit_breaker_*: breaker state and transitions
  - sync_queue_*: background queue throughput, dedup and poison counts

Recording helpers (RecordSyncOperation, RecordGraphRequest and friends) keep
label values consistent across call sites.
*/
package metrics
