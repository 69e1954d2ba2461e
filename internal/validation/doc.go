// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

/*
Package validation validates API request structs with go-playground/validator v10.

A single validator instance is shared by all handlers. Field names in error
messages come from the json tag, so a client sees "user_id is required"
rather than the Go field name.

Custom tags:

  - eventtype: empty, or 1-64 characters of [A-Za-z0-9_-], the characters
    allowed in a stream subject token

Example:

	type RecommendationRequest struct {
	    UserID     int64   `json:"user_id" validate:"required,min=1"`
	    ProductIDs []int64 `json:"product_ids" validate:"max=500,dive,min=1"`
	}

	if verr := validation.ValidateStruct(&req); verr != nil {
	    apiErr := verr.ToAPIError()
	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, verr)
	    return
	}
*/
package validation
