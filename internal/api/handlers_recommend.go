// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package api

import (
	"net/http"

	"github.com/tomtom215/basketcast/internal/validation"
)

// Recommendations scores the user's purchase history plus any requested
// products and returns the top results by probability. The body is a bare
// JSON list; failures use the error envelope.
//
// @Summary Get recommendations
// @Tags Recommendations
// @Accept json
// @Produce json
// @Param request body recommend.Request true "User and optional candidate products"
// @Success 200 {array} models.Recommendation
// @Failure 400 {object} models.APIResponse
// @Router /api/v1/recommendations [post]
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	var payload map[string]interface{}
	if err := decodeJSON(w, r, &payload); err != nil || payload == nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Request body must be a JSON object", err)
		return
	}

	req, err := recommendationRequest(payload)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, err.Error(), nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidation(w, r, verr)
		return
	}

	writeJSON(w, http.StatusOK, h.recommend(r.Context(), req))
}
