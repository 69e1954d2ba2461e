// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

/*
Package auth authenticates the single admin account that operates the
pipeline.

Key Components:

  - JWTManager: HS256 token generation and validation with username and role claims
  - AdminAuthenticator: bcrypt check of the configured admin credentials
  - Lockout: in-memory lockout after repeated failed logins
  - Middleware: Bearer token extraction into the request context

Shopper-facing routes (events, recommendations, feature reads) are not
authenticated. Only /api/v1/admin routes pass through Middleware.Authenticate,
and authorization of the resulting claims is done by package authz.

Usage:

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
	    return err
	}
	admin := auth.NewAdminAuthenticator(cfg.Security.AdminUsername, cfg.Security.AdminPasswordHash)
	mw := auth.NewMiddleware(jwtManager)

	r.Route("/api/v1/admin", func(r chi.Router) {
	    r.Use(mw.Authenticate)
	    ...
	})
*/
package auth
