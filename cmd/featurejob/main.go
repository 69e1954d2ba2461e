// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

// Package main runs the feature pipeline once and exits.
//
// It reads the same configuration as the server (config.yaml and the
// environment), loads the order history from FEATURES_DATA_DIR, builds and
// validates the feature tables, exports them to FEATURES_EXPORT_DIR and
// publishes the lookup tables to the BadgerDB store at STORE_PATH. The run
// report is written to stdout as JSON. The exit code is 1 when the run
// fails and 2 when the configuration cannot be loaded.
//
// The store is opened exclusively, so the server must not hold STORE_PATH
// while the job runs.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/tomtom215/basketcast/internal/config"
	"github.com/tomtom215/basketcast/internal/database"
	"github.com/tomtom215/basketcast/internal/features"
	"github.com/tomtom215/basketcast/internal/featurestore"
	"github.com/tomtom215/basketcast/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		logging.Error().Err(err).Msg("Failed to load configuration")
		return 2
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cfg.Features.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Features.RunTimeout)
		defer cancel()
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to initialize database")
		return 1
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	store, err := featurestore.Open(&cfg.Store)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to open feature store")
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing feature store")
		}
	}()

	pipeline := features.NewPipeline(db, store, features.Config{
		DataDir:   cfg.Features.DataDir,
		ExportDir: cfg.Features.ExportDir,
		MaxUserID: cfg.Features.MaxUserID,
	})
	pipeline.OnStage(func(runID string, stage features.Stage) {
		logging.Info().Str("run_id", runID).Str("stage", string(stage)).Msg("Pipeline stage")
	})

	result, runErr := pipeline.Run(ctx)
	if result != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			logging.Error().Err(err).Msg("Failed to write run report")
		}
	}
	if runErr != nil {
		logging.Error().Err(runErr).Msg("Feature pipeline failed")
		return 1
	}
	return 0
}
