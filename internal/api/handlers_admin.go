// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/basketcast/internal/audit"
	"github.com/tomtom215/basketcast/internal/auth"
	"github.com/tomtom215/basketcast/internal/featurestore"
	"github.com/tomtom215/basketcast/internal/features"
	"github.com/tomtom215/basketcast/internal/logging"
	"github.com/tomtom215/basketcast/internal/middleware"
	"github.com/tomtom215/basketcast/internal/models"
	"github.com/tomtom215/basketcast/internal/validation"
	"github.com/tomtom215/basketcast/internal/wal"
)

// Defaults for the recent events tail
const (
	defaultRecentEvents = 50
	recentMetricsShown  = 20
)

// PipelineRunResponse acknowledges a triggered refresh
type PipelineRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// PipelineStatusResponse reports the refresh state
type PipelineStatusResponse struct {
	Running bool                `json:"running"`
	LastRun *features.RunResult `json:"last_run,omitempty"`
}

// StoreStatsResponse combines lookup store and outbox counters
type StoreStatsResponse struct {
	FeatureStore *featurestore.Stats `json:"featurestore"`
	Outbox       *wal.Stats          `json:"outbox,omitempty"`
}

// RecentEventsRequest bounds the archived event tail
type RecentEventsRequest struct {
	Limit int `json:"limit" validate:"min=1,max=500"`
}

// PerformanceResponse holds per-route latency statistics
type PerformanceResponse struct {
	Endpoints []middleware.EndpointStats  `json:"endpoints"`
	Recent    []middleware.RequestMetrics `json:"recent"`
}

func requester(r *http.Request) string {
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		return claims.Username
	}
	return ""
}

// PipelineRun starts a feature refresh in the background
//
// @Summary Trigger a feature refresh
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 202 {object} models.APIResponse{data=PipelineRunResponse}
// @Failure 409 {object} models.APIResponse
// @Router /api/v1/admin/pipeline/run [post]
func (h *Handler) PipelineRun(w http.ResponseWriter, r *http.Request) {
	if h.deps.Pipeline == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Feature pipeline is not configured", nil)
		return
	}

	runID, err := h.deps.Pipeline.Start(h.deps.BaseContext)
	if errors.Is(err, features.ErrPipelineRunning) {
		respondError(w, r, http.StatusConflict, ErrCodeConflict, "A feature refresh is already running", nil)
		return
	}
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Failed to start feature refresh", err)
		return
	}

	if h.deps.Audit != nil {
		h.deps.Audit.LogPipelineTriggered(r.Context(), requester(r), runID, audit.SourceFromRequest(r))
	}
	logging.Ctx(r.Context()).Info().Str("run_id", runID).Str("username", requester(r)).Msg("Feature refresh triggered")
	respondData(w, r, http.StatusAccepted, PipelineRunResponse{RunID: runID, Status: "started"}, time.Time{})
}

// PipelineStatus reports whether a refresh is running and the last result
//
// @Summary Feature refresh status
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.APIResponse{data=PipelineStatusResponse}
// @Router /api/v1/admin/pipeline/status [get]
func (h *Handler) PipelineStatus(w http.ResponseWriter, r *http.Request) {
	if h.deps.Pipeline == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Feature pipeline is not configured", nil)
		return
	}
	running, last := h.deps.Pipeline.Status()
	respondData(w, r, http.StatusOK, PipelineStatusResponse{Running: running, LastRun: last}, time.Time{})
}

// StoreStats returns lookup store row counts and outbox counters
//
// @Summary Store statistics
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.APIResponse{data=StoreStatsResponse}
// @Router /api/v1/admin/store/stats [get]
func (h *Handler) StoreStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.deps.Store == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Feature store is unavailable", nil)
		return
	}

	stats, err := h.deps.Store.Stats(r.Context())
	if err != nil {
		h.respondLookupError(w, r, "store stats", err)
		return
	}
	resp := StoreStatsResponse{FeatureStore: stats}
	if h.deps.Outbox != nil {
		outbox := h.deps.Outbox.Stats()
		resp.Outbox = &outbox
	}
	respondData(w, r, http.StatusOK, resp, start)
}

// RecentEvents returns the newest archived events
//
// @Summary Recent events
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of events (1-500)" default(50)
// @Success 200 {object} models.APIResponse{data=[]models.ArchivedEvent}
// @Router /api/v1/admin/events/recent [get]
func (h *Handler) RecentEvents(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req := RecentEventsRequest{Limit: defaultRecentEvents}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "limit must be an integer", nil)
			return
		}
		req.Limit = limit
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidation(w, r, verr)
		return
	}
	if h.deps.Archive == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Event archive is unavailable", nil)
		return
	}

	events, err := h.deps.Archive.RecentEvents(r.Context(), req.Limit)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Failed to read events", err)
		return
	}
	if events == nil {
		events = []models.ArchivedEvent{}
	}
	respondData(w, r, http.StatusOK, events, start)
}

// Performance returns per-route latency percentiles and the latest requests
//
// @Summary Request performance
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.APIResponse{data=PerformanceResponse}
// @Router /api/v1/admin/performance [get]
func (h *Handler) Performance(w http.ResponseWriter, r *http.Request) {
	if h.deps.Performance == nil {
		respondData(w, r, http.StatusOK, PerformanceResponse{}, time.Time{})
		return
	}
	respondData(w, r, http.StatusOK, PerformanceResponse{
		Endpoints: h.deps.Performance.GetStats(),
		Recent:    h.deps.Performance.GetRecentMetrics(recentMetricsShown),
	}, time.Time{})
}
