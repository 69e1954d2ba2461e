// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
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
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
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

	// Feature Pipeline Metrics
	PipelineRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_run_duration_seconds",
			Help:    "Duration of feature pipeline runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		},
		[]string{"status"}, // "success", "failure"
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Duration of individual feature pipeline stages in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"stage"},
	)

	PipelineRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_rows",
			Help: "Row count of each feature table after the last successful run",
		},
		[]string{"table"},
	)

	PipelineLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_last_success_timestamp",
			Help: "Unix timestamp of the last successful feature pipeline run",
		},
	)

	PipelineViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_integrity_violations_total",
			Help: "Total number of integrity rule violations found after builds",
		},
		[]string{"rule"},
	)

	// Lookup Store Metrics
	LookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "featurestore_lookup_duration_seconds",
			Help:    "Duration of feature store lookups in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
		[]string{"operation"}, // "query_user", "user_features", "product_features", "metadata"
	)

	// Model Endpoint Metrics
	ModelInvocationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "model_invocation_duration_seconds",
			Help:    "Duration of model endpoint invocations in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	ModelInvocationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_invocation_errors_total",
			Help: "Total number of failed model endpoint invocations",
		},
		[]string{"reason"}, // "rejected", "http", "mismatch", "error"
	)

	ModelRowsScored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "model_rows_scored_total",
			Help: "Total number of candidate rows sent to the model endpoint",
		},
	)

	// Recommendation Metrics
	RecommendationsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_served_total",
			Help: "Total number of recommendation requests served",
		},
		[]string{"outcome"}, // "ok", "empty", "error", "cached"
	)

	RecommendationCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_candidates",
			Help:    "Number of candidate rows scored per recommendation request",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_invalidations_total",
			Help: "Total number of full cache invalidations",
		},
		[]string{"cache_type"},
	)

	// Event Ingestion Metrics
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_ingested_total",
			Help: "Total number of events accepted by the ingest endpoint",
		},
		[]string{"event_type"},
	)

	EventPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_publish_failures_total",
			Help: "Total number of failed stream publish attempts",
		},
	)

	NATSMessagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_published_total",
			Help: "Total number of messages published to NATS",
		},
	)

	NATSMessagesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_consumed_total",
			Help: "Total number of messages consumed from NATS",
		},
	)

	NATSProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nats_processing_duration_seconds",
			Help:    "Time spent processing a consumed message",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Outbox Metrics
	OutboxPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Number of outbox entries waiting to be published",
		},
	)

	OutboxRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_retries_total",
			Help: "Total number of outbox republish attempts",
		},
		[]string{"result"}, // "success", "failure", "dropped"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
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

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	// Application Info
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordPipelineRun records the outcome of a feature pipeline run
func RecordPipelineRun(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	PipelineRunDuration.WithLabelValues(status).Observe(duration.Seconds())
	if err == nil {
		PipelineLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordPipelineStage records how long one pipeline stage took
func RecordPipelineStage(stage string, duration time.Duration) {
	PipelineStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// SetPipelineRows records the row count of a feature table
func SetPipelineRows(table string, rows int64) {
	PipelineRows.WithLabelValues(table).Set(float64(rows))
}

// RecordLookup records a feature store lookup
func RecordLookup(operation string, duration time.Duration) {
	LookupDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordModelInvocation records a model endpoint call. reason is empty on success.
func RecordModelInvocation(rows int, duration time.Duration, reason string) {
	ModelInvocationDuration.Observe(duration.Seconds())
	ModelRowsScored.Add(float64(rows))
	if reason != "" {
		ModelInvocationErrors.WithLabelValues(reason).Inc()
	}
}

// RecordRecommendation records a served recommendation request
func RecordRecommendation(outcome string, candidates int) {
	RecommendationsServed.WithLabelValues(outcome).Inc()
	if candidates > 0 {
		RecommendationCandidates.Observe(float64(candidates))
	}
}

// RecordCacheHit records a cache hit for cacheType
func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss for cacheType
func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordEventIngested records an accepted event
func RecordEventIngested(eventType string) {
	EventsIngested.WithLabelValues(eventType).Inc()
}

// RecordNATSPublish records a NATS publish attempt
func RecordNATSPublish(err error) {
	if err != nil {
		EventPublishFailures.Inc()
		return
	}
	NATSMessagesPublished.Inc()
}

// RecordNATSConsume records a consumed message and its processing time
func RecordNATSConsume(duration time.Duration) {
	NATSMessagesConsumed.Inc()
	NATSProcessingDuration.Observe(duration.Seconds())
}

// RecordOutboxRetry records the result of an outbox republish attempt
func RecordOutboxRetry(result string) {
	OutboxRetries.WithLabelValues(result).Inc()
}

// SetOutboxPending sets the outbox backlog gauge
func SetOutboxPending(n int64) {
	OutboxPending.Set(float64(n))
}

// RecordCircuitBreakerTransition records a breaker state change. States
// are the gobreaker state names: "closed", "half-open", "open".
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}
