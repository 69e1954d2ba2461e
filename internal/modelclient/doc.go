// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

/*
Package modelclient calls the hosted reorder-probability model.

Rows are posted as text/csv to <url>/endpoints/<name>/invocations, one line
per candidate with the ten feature columns in models.FeatureColumns order.
The endpoint answers with one probability per line.

Resilience:
  - Circuit breaker (sony/gobreaker) opens after consecutive failures
  - Token bucket limiter (x/time/rate) caps outbound request rate
  - Per-request timeout from ModelConfig.Timeout

Predictions are only returned when the endpoint scored every row; a short or
long answer yields ErrPredictionMismatch.
*/
package modelclient
