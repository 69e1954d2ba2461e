// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

/*
Package middleware provides HTTP middleware shared by the API router.

All middleware has the chi signature func(http.Handler) http.Handler.

  - RequestID: X-Request-ID propagation into the response and the logging context
  - AccessLog: one structured log line per request
  - PrometheusMetrics: request counters and latency histograms keyed by route pattern
  - PerformanceMonitor: in-memory per-route latency percentiles for the admin API

Route labels use the chi route pattern (/api/v1/features/users/{id}) rather
than the raw path so metric cardinality stays bounded.
*/
package middleware
