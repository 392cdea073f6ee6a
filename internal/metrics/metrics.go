// Pagesight - Social Page Insight Sync Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pagesight

package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Store Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_query_duration_seconds",
			Help:    "Duration of persistence operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_query_errors_total",
			Help: "Total number of failed persistence operations",
		},
		[]string{"backend", "operation"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "api_request_duration_seconds",
			Help: "API request duration in seconds",
			// A synchronous sync can run for minutes.
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Sync Operation Metrics
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_duration_seconds",
			Help:    "Duration of sync operations in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	SyncRecordsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_records_processed_total",
			Help: "Total number of pages, posts and insight values persisted",
		},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_errors_total",
			Help: "Total number of failed sync operations",
		},
		[]string{"error_type"}, // "graph_api", "database", "token", "other"
	)

	SyncSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_skipped_total",
			Help: "Total number of sync requests answered from a fresh snapshot",
		},
	)

	SyncItemFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_item_failures_total",
			Help: "Pages and posts skipped after a local failure",
		},
		[]string{"kind"}, // "page", "post", "page_insights", "post_insights"
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp",
			Help: "Unix timestamp of last successful sync",
		},
	)

	// Graph API Metrics
	GraphAPIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graph_api_request_duration_seconds",
			Help:    "Duration of Graph API calls including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"}, // "accounts", "insights", "posts", "post", "oauth"
	)

	GraphAPIErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph_api_errors_total",
			Help: "Total number of failed Graph API calls",
		},
		[]string{"endpoint"},
	)

	GraphAPIRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph_api_retries_total",
			Help: "Total number of throttled Graph API calls that were retried",
		},
		[]string{"endpoint"},
	)

	// Token Lifecycle Metrics
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_refreshes_total",
			Help: "Token refresh attempts by kind and result",
		},
		[]string{"kind", "result"}, // kind: "user", "page", "connect"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Background Queue Metrics
	QueueMessagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_queue_messages_published_total",
			Help: "Background sync requests published",
		},
	)

	QueueMessagesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_queue_messages_consumed_total",
			Help: "Background sync requests handled",
		},
	)

	QueueMessagesDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_queue_messages_deduplicated_total",
			Help: "Background sync requests dropped as duplicates",
		},
	)

	QueueMessagesPoisoned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_queue_messages_poisoned_total",
			Help: "Background sync requests moved to the poison topic",
		},
	)

	QueueProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_queue_processing_duration_seconds",
			Help:    "Time spent handling one background sync request",
			Buckets: []float64{0.01, 0.1, 1, 5, 30, 60, 300, 600},
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordDBQuery records a persistence operation
func RecordDBQuery(backend, operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(backend, operation).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordSyncOperation records a sync operation metric
func RecordSyncOperation(duration time.Duration, recordsProcessed int, err error) {
	SyncDuration.Observe(duration.Seconds())
	SyncRecordsProcessed.Add(float64(recordsProcessed))
	if err != nil {
		SyncErrors.WithLabelValues(syncErrorType(err)).Inc()
		return
	}
	SyncLastSuccess.Set(float64(time.Now().Unix()))
}

func syncErrorType(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "graph"):
		return "graph_api"
	case strings.Contains(msg, "token"):
		return "token"
	case strings.Contains(msg, "database"), strings.Contains(msg, "store"):
		return "database"
	default:
		return "other"
	}
}

// RecordSyncSkipped counts a sync answered as skipped.
func RecordSyncSkipped() {
	SyncSkipped.Inc()
}

// RecordSyncItemFailure counts a page or post that was skipped.
func RecordSyncItemFailure(kind string) {
	SyncItemFailures.WithLabelValues(kind).Inc()
}

// RecordGraphRequest records a Graph API call.
func RecordGraphRequest(endpoint string, duration time.Duration, err error) {
	GraphAPIRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	if err != nil {
		GraphAPIErrors.WithLabelValues(endpoint).Inc()
	}
}

// RecordGraphRetry counts a throttled call that will be retried.
func RecordGraphRetry(endpoint string) {
	GraphAPIRetries.WithLabelValues(endpoint).Inc()
}

// RecordTokenRefresh records a token refresh outcome.
func RecordTokenRefresh(kind string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	TokenRefreshes.WithLabelValues(kind, result).Inc()
}

// RecordQueuePublish records a background request being enqueued
func RecordQueuePublish() {
	QueueMessagesPublished.Inc()
}

// RecordQueueConsume records a background request being handled
func RecordQueueConsume(duration time.Duration) {
	QueueMessagesConsumed.Inc()
	QueueProcessingDuration.Observe(duration.Seconds())
}

// RecordQueueDeduplicated records a dropped duplicate request
func RecordQueueDeduplicated() {
	QueueMessagesDeduplicated.Inc()
}

// RecordQueuePoisoned records a request moved to the poison topic
func RecordQueuePoisoned() {
	QueueMessagesPoisoned.Inc()
}
