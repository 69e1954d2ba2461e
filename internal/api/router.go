// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tomtom215/basketcast/internal/auth"
	"github.com/tomtom215/basketcast/internal/authz"
	"github.com/tomtom215/basketcast/internal/logging"
	"github.com/tomtom215/basketcast/internal/middleware"
	"github.com/tomtom215/basketcast/internal/websocket"
)

// adminPrefix is prepended to admin paths to form casbin objects
const adminPrefix = "/api/v1/admin"

// RouterOptions holds the optional parts of the router. Admin routes are
// mounted only when both Auth and Authz are set; /ws only with a Hub.
type RouterOptions struct {
	Middleware *ChiMiddleware
	Auth       *auth.Middleware
	Authz      *authz.Middleware
	Hub        *websocket.Hub
	WSOrigins  []string
}

// Router builds the HTTP handler tree
type Router struct {
	handler *Handler
	opts    RouterOptions
}

// NewRouter creates a router
func NewRouter(handler *Handler, opts RouterOptions) *Router {
	if opts.Middleware == nil {
		opts.Middleware = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, opts: opts}
}

// Setup configures all routes
func (router *Router) Setup() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	// Applied to every request, matched or not. CORS must be global so
	// OPTIONS reaches it even though no route registers that method.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.opts.Middleware.CORS())
	r.Use(Preflight)

	if router.opts.Hub != nil {
		r.Get("/ws", websocket.Handler(router.opts.Hub, router.opts.WSOrigins))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.AccessLog)
		r.Use(middleware.PrometheusMetrics)
		if h.deps.Performance != nil {
			r.Use(h.deps.Performance.Middleware)
		}
		r.Use(chimiddleware.Compress(5, "application/json"))

		r.Get("/health", h.Health)
		r.Get("/health/ready", h.HealthReady)
		r.Handle("/metrics", promhttp.Handler())
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(router.opts.Middleware.RateLimit("/api/v1"))

			r.Post("/events", h.Events)
			r.Post("/recommendations", h.Recommendations)
			r.Get("/features/users/{id}", h.UserFeatures)
			r.Get("/features/products/{id}", h.ProductFeatures)
			r.Post("/auth/login", h.Login)

			router.mountAdmin(r)
		})
	})

	return r
}

func (router *Router) mountAdmin(r chi.Router) {
	if router.opts.Auth == nil || router.opts.Authz == nil {
		logging.Info().Msg("Admin routes disabled: no JWT secret or policy configured")
		return
	}
	h := router.handler
	guard := func(path, action string) func(http.Handler) http.Handler {
		return router.opts.Authz.Authorize(adminPrefix+path, action)
	}

	r.Route("/admin", func(r chi.Router) {
		r.Use(router.opts.Auth.Authenticate)

		r.With(guard("/pipeline/run", authz.ActionWrite)).Post("/pipeline/run", h.PipelineRun)
		r.With(guard("/pipeline/status", authz.ActionRead)).Get("/pipeline/status", h.PipelineStatus)
		r.With(guard("/store/stats", authz.ActionRead)).Get("/store/stats", h.StoreStats)
		r.With(guard("/events/recent", authz.ActionRead)).Get("/events/recent", h.RecentEvents)
		r.With(guard("/performance", authz.ActionRead)).Get("/performance", h.Performance)
		r.With(guard("/audit", authz.ActionRead)).Get("/audit", h.AuditEvents)
	})
}
