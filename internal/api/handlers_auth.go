// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package api

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/basketcast/internal/audit"
	"github.com/tomtom215/basketcast/internal/logging"
	"github.com/tomtom215/basketcast/internal/validation"
)

// LoginRequest holds admin credentials
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

// LoginResponse carries the issued token
type LoginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
}

// Login exchanges admin credentials for a JWT. Repeated failures lock the
// username out with a growing delay.
//
// @Summary Admin login
// @Tags Auth
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Admin credentials"
// @Success 200 {object} models.APIResponse{data=LoginResponse}
// @Failure 401 {object} models.APIResponse
// @Failure 429 {object} models.APIResponse
// @Router /api/v1/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.deps.Admin == nil || h.deps.JWT == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Admin login is disabled", nil)
		return
	}

	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidation(w, r, verr)
		return
	}

	subject := strings.ToLower(req.Username)
	source := audit.SourceFromRequest(r)
	if locked, remaining := h.deps.Lockout.Locked(subject); locked {
		if h.deps.Audit != nil {
			h.deps.Audit.LogAuthFailure(r.Context(), req.Username, source, "locked out")
		}
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(remaining.Seconds()))))
		respondError(w, r, http.StatusTooManyRequests, ErrCodeTooManyRequests, "Too many failed logins, try again later", nil)
		return
	}

	role, err := h.deps.Admin.Authenticate(req.Username, req.Password)
	if err != nil {
		lockedNow := h.deps.Lockout.RecordFailure(subject)
		if h.deps.Audit != nil {
			h.deps.Audit.LogAuthFailure(r.Context(), req.Username, source, "invalid credentials")
			if lockedNow {
				h.deps.Audit.LogAuthLockout(r.Context(), req.Username, source)
			}
		}
		logging.Ctx(r.Context()).Warn().
			Str("username", sanitizeLogValue(req.Username)).
			Str("remote_addr", r.RemoteAddr).
			Msg("Failed admin login")
		respondError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "Invalid username or password", nil)
		return
	}
	h.deps.Lockout.RecordSuccess(subject)

	token, expiresAt, err := h.deps.JWT.GenerateToken(req.Username, role)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Failed to issue token", err)
		return
	}

	if h.deps.Audit != nil {
		h.deps.Audit.LogAuthSuccess(r.Context(), req.Username, role, source)
	}
	logging.Ctx(r.Context()).Info().Str("username", sanitizeLogValue(req.Username)).Str("role", role).Msg("Admin login")
	respondData(w, r, http.StatusOK, LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
		Username:  req.Username,
		Role:      role,
	}, time.Time{})
}
