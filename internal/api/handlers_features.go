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

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/basketcast/internal/featurestore"
	"github.com/tomtom215/basketcast/internal/models"
)

// ProductFeaturesResponse joins a product's features with its catalog entry
type ProductFeaturesResponse struct {
	Features *models.ProductFeatures `json:"features"`
	Metadata *models.ProductMetadata `json:"metadata,omitempty"`
}

// pathID parses a positive integer URL parameter
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

func (h *Handler) respondLookupError(w http.ResponseWriter, r *http.Request, what string, err error) {
	if errors.Is(err, featurestore.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, what+" not found", nil)
		return
	}
	if errors.Is(err, featurestore.ErrClosed) {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Feature store is unavailable", err)
		return
	}
	respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Failed to read "+what, err)
}

// UserFeatures returns one user's features from the lookup store
//
// @Summary Get user features
// @Tags Features
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.APIResponse{data=models.UserFeatures}
// @Failure 404 {object} models.APIResponse
// @Router /api/v1/features/users/{id} [get]
func (h *Handler) UserFeatures(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "id must be a positive integer", nil)
		return
	}
	if h.deps.Store == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Feature store is unavailable", nil)
		return
	}

	uf, err := h.deps.Store.GetUserFeatures(r.Context(), id)
	if err != nil {
		h.respondLookupError(w, r, "user features", err)
		return
	}
	respondData(w, r, http.StatusOK, uf, start)
}

// ProductFeatures returns one product's features and catalog metadata.
// Metadata is omitted when the product is missing from the catalog.
//
// @Summary Get product features
// @Tags Features
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} models.APIResponse{data=ProductFeaturesResponse}
// @Failure 404 {object} models.APIResponse
// @Router /api/v1/features/products/{id} [get]
func (h *Handler) ProductFeatures(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "id must be a positive integer", nil)
		return
	}
	if h.deps.Store == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Feature store is unavailable", nil)
		return
	}

	pf, err := h.deps.Store.GetProductFeatures(r.Context(), id)
	if err != nil {
		h.respondLookupError(w, r, "product features", err)
		return
	}
	resp := ProductFeaturesResponse{Features: pf}
	meta, err := h.deps.Store.GetProductMetadata(r.Context(), id)
	switch {
	case err == nil:
		resp.Metadata = meta
	case !errors.Is(err, featurestore.ErrNotFound):
		h.respondLookupError(w, r, "product metadata", err)
		return
	}
	respondData(w, r, http.StatusOK, resp, start)
}
