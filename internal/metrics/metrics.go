// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

// Package metrics defines the Prometheus collectors of the sync engine.
//
// Collectors are registered on the default registry through promauto and
// exposed by the HTTP layer at /metrics. Record* helpers keep label values
// consistent across callers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Job Queue Metrics
	JobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gip_jobs_enqueued_total",
			Help: "Total number of enqueue calls by outcome",
		},
		[]string{"type", "outcome"}, // outcome: "created", "deduplicated"
	)

	JobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gip_jobs_completed_total",
			Help: "Total number of job executions by resulting status",
		},
		[]string{"type", "status"}, // status: "done", "queued" (retry), "failed"
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gip_job_duration_seconds",
			Help:    "Duration of job executions in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"type"},
	)

	JobsRecovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gip_jobs_recovered_total",
			Help: "Total number of running jobs reset to queued at startup",
		},
	)

	JobQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gip_job_queue_depth",
			Help: "Current number of jobs by status",
		},
		[]string{"status"},
	)

	WorkerPollInterval = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gip_worker_poll_interval_seconds",
			Help: "Current delay before the next worker poll",
		},
	)

	// Indexing Metrics
	IndexFiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gip_index_files_total",
			Help: "Total number of files processed by the indexer",
		},
		[]string{"result"}, // result: "indexed", "skipped"
	)

	IndexRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gip_index_runs_total",
			Help: "Total number of branch indexing runs",
		},
		[]string{"status"}, // status: "indexed", "failed"
	)

	IndexRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gip_index_run_duration_seconds",
			Help:    "Duration of branch indexing runs in seconds",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	// Invitation Reconciler Metrics
	ReconcileRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gip_reconcile_runs_total",
			Help: "Total number of reconciliation passes over all identities",
		},
	)

	ReconcileIdentities = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gip_reconcile_identities_total",
			Help: "Total number of per-identity reconciliations by outcome",
		},
		[]string{"outcome"}, // outcome: "updated", "not_modified", "failed"
	)

	InvitationsSeen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gip_invitations_seen_total",
			Help: "Total number of pending invitations returned by the provider",
		},
	)

	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gip_reconcile_duration_seconds",
			Help:    "Duration of a reconciliation pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Token Lifecycle Metrics
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gip_token_refreshes_total",
			Help: "Total number of upstream token refresh calls by outcome",
		},
		[]string{"outcome"}, // outcome: "success", "failure", "reauth_required"
	)

	TokenRefreshesCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gip_token_refreshes_coalesced_total",
			Help: "Total number of callers that joined an in-flight refresh",
		},
	)

	// Webhook Metrics
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gip_webhook_events_total",
			Help: "Total number of webhook deliveries by event and outcome",
		},
		[]string{"event", "outcome"}, // outcome: "handled", "ignored", "duplicate", "rejected", "error"
	)

	WebhookJobsEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gip_webhook_jobs_enqueued_total",
			Help: "Total number of re-index jobs enqueued by push events",
		},
	)

	// Periodic Cleanup Metrics
	CleanupDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gip_cleanup_deleted_total",
			Help: "Total number of rows removed by periodic cleanup",
		},
		[]string{"table"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gip_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gip_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gip_api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	// Upstream Client Metrics
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gip_upstream_requests_total",
			Help: "Total number of calls to GitHub and the search engine",
		},
		[]string{"service", "operation", "status_class"}, // status_class: "2xx", "3xx", "4xx", "5xx", "error"
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gip_upstream_request_duration_seconds",
			Help:    "Duration of upstream calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "operation"},
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
)

// RecordEnqueue records the outcome of an enqueue call.
func RecordEnqueue(jobType string, created bool) {
	outcome := "deduplicated"
	if created {
		outcome = "created"
	}
	JobsEnqueued.WithLabelValues(jobType, outcome).Inc()
}

// RecordJobResult records one job execution.
func RecordJobResult(jobType, status string, duration time.Duration) {
	JobsCompleted.WithLabelValues(jobType, status).Inc()
	JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// UpdateQueueDepth publishes per-status job counts.
func UpdateQueueDepth(counts map[string]int64) {
	for status, n := range counts {
		JobQueueDepth.WithLabelValues(status).Set(float64(n))
	}
}

// RecordIndexRun records a finished branch indexing run.
func RecordIndexRun(duration time.Duration, indexed, skipped int, err error) {
	IndexRunDuration.Observe(duration.Seconds())
	IndexFiles.WithLabelValues("indexed").Add(float64(indexed))
	IndexFiles.WithLabelValues("skipped").Add(float64(skipped))
	if err != nil {
		IndexRuns.WithLabelValues("failed").Inc()
		return
	}
	IndexRuns.WithLabelValues("indexed").Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements active request counter
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordUpstreamRequest records one upstream HTTP call. A zero status means
// the call failed before a response arrived.
func RecordUpstreamRequest(service, operation string, status int, duration time.Duration) {
	UpstreamRequests.WithLabelValues(service, operation, statusClass(status)).Inc()
	UpstreamRequestDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "error"
	}
}
