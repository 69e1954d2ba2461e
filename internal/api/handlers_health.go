// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/basketcast/internal/models"
)

// readinessTimeout bounds all readiness checks together
const readinessTimeout = 2 * time.Second

// Health is the liveness probe. Its flat body matches what load balancers
// in front of the original gateway check for.
//
// @Summary Liveness probe
// @Tags Health
// @Produce json
// @Success 200 {object} models.HealthStatus
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Message:   "Service is running",
	})
}

// HealthReady checks DuckDB, the lookup store and the stream publisher.
// Components that are not configured are reported as disabled and do not
// fail readiness.
//
// @Summary Readiness probe
// @Tags Health
// @Produce json
// @Success 200 {object} models.APIResponse{data=models.ReadinessStatus}
// @Failure 503 {object} models.APIResponse{data=models.ReadinessStatus}
// @Router /health/ready [get]
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := models.ReadinessStatus{
		Ready:     true,
		Checks:    make(map[string]string, 3),
		Uptime:    time.Since(h.startTime).Seconds(),
		CheckedAt: time.Now().UTC(),
	}

	check := func(name string, p Pinger) {
		if p == nil {
			status.Checks[name] = "disabled"
			return
		}
		if err := p.Ping(ctx); err != nil {
			status.Checks[name] = "unavailable: " + err.Error()
			status.Ready = false
			return
		}
		status.Checks[name] = "ok"
	}
	check("duckdb", h.deps.Archive)
	check("featurestore", h.deps.Store)

	switch {
	case h.deps.Stream == nil:
		status.Checks["stream"] = "disabled"
	case h.deps.Stream.IsClosed():
		status.Checks["stream"] = "unavailable: publisher closed"
		status.Ready = false
	default:
		status.Checks["stream"] = "ok"
		status.Breaker = h.deps.Stream.BreakerState()
	}

	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
	}
	respondData(w, r, code, status, time.Time{})
}
