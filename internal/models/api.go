// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package models

import "time"

// APIResponse is the envelope for every JSON API response except the
// events endpoint, which keeps its flat body for existing clients.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data,omitempty"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata describes the response
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is a machine-readable error with a human message
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthStatus is returned by the liveness endpoint
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// ReadinessStatus reports each dependency checked by the readiness endpoint
type ReadinessStatus struct {
	Ready     bool              `json:"ready"`
	Checks    map[string]string `json:"checks"`
	Uptime    float64           `json:"uptime_seconds"`
	Breaker   string            `json:"stream_breaker,omitempty"`
	CheckedAt time.Time         `json:"checked_at"`
}
