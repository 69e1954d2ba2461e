// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

// @title           Basketcast API
// @version         1.0
// @description     Next-basket product recommendations, event ingestion and feature lookup.
// @license.name    AGPL-3.0-or-later
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/tomtom215/basketcast/docs" // swagger docs
	"github.com/tomtom215/basketcast/internal/api"
	"github.com/tomtom215/basketcast/internal/audit"
	"github.com/tomtom215/basketcast/internal/auth"
	"github.com/tomtom215/basketcast/internal/authz"
	"github.com/tomtom215/basketcast/internal/cache"
	"github.com/tomtom215/basketcast/internal/config"
	"github.com/tomtom215/basketcast/internal/database"
	"github.com/tomtom215/basketcast/internal/features"
	"github.com/tomtom215/basketcast/internal/featurestore"
	"github.com/tomtom215/basketcast/internal/ingest"
	"github.com/tomtom215/basketcast/internal/logging"
	"github.com/tomtom215/basketcast/internal/middleware"
	"github.com/tomtom215/basketcast/internal/modelclient"
	"github.com/tomtom215/basketcast/internal/recommend"
	"github.com/tomtom215/basketcast/internal/supervisor"
	"github.com/tomtom215/basketcast/internal/supervisor/services"
	ws "github.com/tomtom215/basketcast/internal/websocket"
)

const performanceSamples = 1000

//nolint:gocyclo // sequential startup
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("db_path", cfg.Database.Path).
		Str("store_path", cfg.Store.Path).
		Bool("stream_enabled", cfg.Stream.Enabled).
		Msg("Starting Basketcast")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	store, err := featurestore.Open(&cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open feature store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing feature store")
		}
	}()

	stream, err := InitStream(ctx, &cfg.Stream)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize event stream")
	}
	defer stream.Close(ctx)

	resultCache, err := cache.New(ctx, &cfg.Cache)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize result cache")
	}
	if resultCache != nil {
		defer func() {
			if err := resultCache.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing result cache")
			}
		}()
		logging.Info().Str("type", resultCache.Type()).Dur("ttl", cfg.Cache.TTL).Msg("Result cache enabled")
	}

	model, err := modelclient.New(&cfg.Model)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize model client")
	}
	logging.Info().Str("invoke_url", model.InvokeURL()).Msg("Model endpoint configured")

	engineOpts := []recommend.Option{recommend.WithTopK(cfg.Model.TopK)}
	if resultCache != nil {
		engineOpts = append(engineOpts, recommend.WithCache(resultCache))
	}
	engine := recommend.NewEngine(store, model, engineOpts...)

	wsHub := ws.NewHub()

	pipeline := features.NewPipeline(db, store, features.Config{
		DataDir:   cfg.Features.DataDir,
		ExportDir: cfg.Features.ExportDir,
		MaxUserID: cfg.Features.MaxUserID,
	})
	pipeline.OnStage(func(runID string, stage features.Stage) {
		wsHub.BroadcastPipelineProgress(runID, string(stage))
	})
	pipeline.OnComplete(engine.Invalidate)
	pipeline.OnComplete(func(_ context.Context, result *features.RunResult) error {
		data := ws.PipelineCompletedData{
			RunID:      result.RunID,
			DurationMs: result.Duration.Milliseconds(),
			LookupRows: result.Published.LookupRows,
			Products:   result.Published.Products,
		}
		if result.Build != nil {
			data.Users = result.Build.Users
		}
		wsHub.BroadcastPipelineCompleted(data)
		return nil
	})

	deps := api.Dependencies{
		BaseContext: ctx,
		Archive:     db,
		Store:       store,
		Recommender: engine,
		Pipeline:    pipeline,
		Performance: middleware.NewPerformanceMonitor(performanceSamples),
	}
	// Interface fields stay nil when the stream is off so handlers see it
	// as disabled.
	if stream != nil {
		deps.Stream = stream.publisher
		deps.Outbox = stream.outbox
		deps.Ingestor = ingest.New(stream.outbox, stream.publisher, &cfg.Stream)
	}

	var trail *audit.Logger
	if cfg.Audit.Enabled {
		trail = audit.NewLogger(newAuditStore(ctx, db), audit.ConfigFromSettings(&cfg.Audit))
		defer func() {
			if err := trail.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing audit logger")
			}
		}()
		deps.Audit = trail
	}

	routerOpts := api.RouterOptions{
		Middleware: api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(&cfg.Security)),
		Hub:        wsHub,
		WSOrigins:  cfg.Security.CORSOrigins,
	}

	if cfg.AdminEnabled() {
		jwtManager, err := auth.NewJWTManager(&cfg.Security)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
		}
		enforcerCfg := authz.DefaultEnforcerConfig()
		enforcerCfg.PolicyPath = cfg.Security.PolicyPath
		enforcer, err := authz.NewEnforcer(enforcerCfg)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize authorization")
		}
		defer enforcer.Close()

		deps.JWT = jwtManager
		deps.Admin = auth.NewAdminAuthenticator(cfg.Security.AdminUsername, cfg.Security.AdminPasswordHash)
		routerOpts.Auth = auth.NewMiddleware(jwtManager)
		routerOpts.Authz = authz.NewMiddleware(enforcer)
		logging.Info().Str("admin", cfg.Security.AdminUsername).Msg("Admin API enabled")
	} else {
		logging.Warn().Msg("Admin API disabled (set JWT_SECRET and ADMIN_PASSWORD_HASH to enable)")
	}

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	handler := api.NewHandler(cfg, deps)
	router := api.NewRouter(handler, routerOpts)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	if cfg.Features.RefreshEnabled {
		tree.AddDataService(services.NewFeatureRefreshService(pipeline, services.FeatureRefreshConfig{
			RefreshOnStartup: cfg.Features.RefreshOnStartup,
			RefreshInterval:  cfg.Features.RefreshInterval,
			RunTimeout:       cfg.Features.RunTimeout,
		}, logging.WithComponent("feature-refresh")))
	}

	if trail != nil {
		tree.AddDataService(trail)
	}

	tree.AddMessagingService(services.NewWebSocketHubService(wsHub))
	stream.AddToSupervisor(tree, db, wsHub)

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	// The channel yields exactly one result and is never closed
	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
		serveErr = <-errCh
	case serveErr = <-errCh:
		cancel()
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logging.Error().Err(serveErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Basketcast stopped")
}

// newAuditStore keeps audit events in DuckDB, or in memory when the table
// cannot be created.
func newAuditStore(ctx context.Context, db *database.DB) audit.Store {
	store := audit.NewDuckDBStore(db.Conn())
	if err := store.CreateTable(ctx); err != nil {
		logging.Warn().Err(err).Msg("Audit table unavailable, keeping audit events in memory")
		return audit.NewMemoryStore(0)
	}
	return store
}
