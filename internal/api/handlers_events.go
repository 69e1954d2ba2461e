// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/basketcast/internal/logging"
	"github.com/tomtom215/basketcast/internal/models"
	"github.com/tomtom215/basketcast/internal/recommend"
	"github.com/tomtom215/basketcast/internal/validation"
)

// Messages of the flat events body
const (
	eventAcceptedMessage = "Data sent to stream successfully"
	eventFailedMessage   = "Failed to process request"
)

// EventResponse is the body of an accepted event
type EventResponse struct {
	Message         string                  `json:"message"`
	RecordID        string                  `json:"record_id"`
	ShardID         string                  `json:"shard_id"`
	Recommendations []models.Recommendation `json:"recommendations"`
}

// EventErrorResponse is the body of a rejected event
type EventErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func respondEventError(w http.ResponseWriter, r *http.Request, status int, err error) {
	event := logging.Ctx(r.Context()).Warn()
	if status >= http.StatusInternalServerError {
		event = logging.Ctx(r.Context()).Error()
	}
	event.Int("status", status).Str("error", sanitizeLogValue(err.Error())).Msg("Event rejected")

	writeJSON(w, status, EventErrorResponse{Error: err.Error(), Message: eventFailedMessage})
}

// Events ingests a cart event and returns recommendations for the user.
// The whole body is forwarded to the stream, enriched with timestamp and
// source.
//
// @Summary Ingest a cart event
// @Tags Events
// @Accept json
// @Produce json
// @Param event body map[string]interface{} true "Cart event with user_id, product_ids and event"
// @Success 200 {object} EventResponse
// @Failure 400 {object} EventErrorResponse
// @Failure 500 {object} EventErrorResponse
// @Failure 503 {object} EventErrorResponse
// @Router /api/v1/events [post]
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	var payload map[string]interface{}
	if err := decodeJSON(w, r, &payload); err != nil {
		respondEventError(w, r, http.StatusBadRequest, errors.New("invalid JSON body: "+err.Error()))
		return
	}
	if payload == nil {
		respondEventError(w, r, http.StatusBadRequest, errors.New("request body must be a JSON object"))
		return
	}

	req, err := recommendationRequest(payload)
	if err != nil {
		respondEventError(w, r, http.StatusBadRequest, err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondEventError(w, r, http.StatusBadRequest, verr)
		return
	}

	if h.deps.Ingestor == nil {
		respondEventError(w, r, http.StatusServiceUnavailable, errors.New("event stream is disabled"))
		return
	}

	receipt, err := h.deps.Ingestor.Ingest(r.Context(), payload)
	if err != nil {
		respondEventError(w, r, http.StatusInternalServerError, err)
		return
	}
	if receipt.Pending {
		logging.Ctx(r.Context()).Debug().Str("record_id", receipt.RecordID).Msg("Event accepted, delivery pending")
	}

	writeJSON(w, http.StatusOK, EventResponse{
		Message:         eventAcceptedMessage,
		RecordID:        receipt.RecordID,
		ShardID:         receipt.ShardID,
		Recommendations: h.recommend(r.Context(), req),
	})
}

// recommend never fails; the engine logs its own errors and returns an
// empty list
func (h *Handler) recommend(ctx context.Context, req recommend.Request) []models.Recommendation {
	if h.deps.Recommender == nil {
		return []models.Recommendation{}
	}
	ctx, cancel := context.WithTimeout(ctx, recommendTimeout)
	defer cancel()

	recs := h.deps.Recommender.Recommend(ctx, req)
	if recs == nil {
		recs = []models.Recommendation{}
	}
	return recs
}
