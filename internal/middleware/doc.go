// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

/*
Package middleware provides chi-compatible HTTP middleware shared by the API.

Components:

  - RequestID: accepts or generates X-Request-ID and seeds the logging context
  - PrometheusMetrics: request count, latency and in-flight gauge per route pattern
  - AccessLog: one structured zerolog line per request

Typical stack, outer to inner:

	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)

RequestID must come first so later middleware log with the request's ids.
*/
package middleware
