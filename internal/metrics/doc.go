// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

/*
Package metrics provides Prometheus metrics for Basketcast.

# Overview

The package provides metrics for:
  - HTTP request latency and throughput
  - Feature pipeline runs and published row counts
  - Lookup store latency
  - Model endpoint latency, errors and circuit breaker state
  - Recommendations served and result cache efficiency
  - Event ingestion, stream publishing and the outbox backlog
  - WebSocket connection counts

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8080/metrics

# Usage

Collectors are registered on the default registry at package init through
promauto. Call the Record* helpers instead of touching collectors directly
so label values stay consistent:

	start := time.Now()
	probs, err := client.Predict(ctx, rows)
	metrics.RecordModelInvocation(len(rows), time.Since(start), err)
*/
package metrics
