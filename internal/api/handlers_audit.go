// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/basketcast/internal/audit"
	"github.com/tomtom215/basketcast/internal/validation"
)

// AuditTrail records and reads admin audit events
type AuditTrail interface {
	LogAuthSuccess(ctx context.Context, username, role string, source audit.Source)
	LogAuthFailure(ctx context.Context, username string, source audit.Source, reason string)
	LogAuthLockout(ctx context.Context, username string, source audit.Source)
	LogPipelineTriggered(ctx context.Context, username, runID string, source audit.Source)
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
}

// AuditQueryRequest holds the audit log query parameters
type AuditQueryRequest struct {
	Limit   int      `json:"limit" validate:"min=1,max=1000"`
	Types   []string `json:"types" validate:"dive,oneof=auth.success auth.failure auth.lockout pipeline.triggered"`
	Actor   string   `json:"actor" validate:"max=64"`
	Outcome string   `json:"outcome" validate:"omitempty,oneof=success failure"`
}

// AuditEvents returns admin audit events, newest first
//
// @Summary Audit log
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of events (1-1000)" default(100)
// @Param type query string false "Comma-separated event types"
// @Param actor query string false "Username"
// @Param outcome query string false "success or failure"
// @Param since query string false "RFC3339 lower bound"
// @Success 200 {object} models.APIResponse{data=[]audit.Event}
// @Router /api/v1/admin/audit [get]
func (h *Handler) AuditEvents(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()

	req := AuditQueryRequest{
		Limit:   audit.DefaultQueryFilter().Limit,
		Actor:   q.Get("actor"),
		Outcome: q.Get("outcome"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "limit must be an integer", nil)
			return
		}
		req.Limit = limit
	}
	for _, t := range strings.Split(q.Get("type"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			req.Types = append(req.Types, t)
		}
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidation(w, r, verr)
		return
	}

	filter := audit.QueryFilter{
		ActorID: req.Actor,
		Outcome: audit.Outcome(req.Outcome),
		Limit:   req.Limit,
	}
	for _, t := range req.Types {
		filter.Types = append(filter.Types, audit.EventType(t))
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "since must be an RFC3339 timestamp", nil)
			return
		}
		filter.Since = &since
	}

	if h.deps.Audit == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Audit log is disabled", nil)
		return
	}
	events, err := h.deps.Audit.Query(r.Context(), filter)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Failed to read audit log", err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	respondData(w, r, http.StatusOK, events, start)
}
