// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/basketcast/internal/features"
)

// FeatureRunner is satisfied by *features.Pipeline.
type FeatureRunner interface {
	Run(ctx context.Context) (*features.RunResult, error)
}

// FeatureRefreshConfig controls scheduled feature rebuilds.
type FeatureRefreshConfig struct {
	// RefreshOnStartup runs the pipeline once before the first tick.
	RefreshOnStartup bool

	// RefreshInterval is the time between runs. Default: 24h
	RefreshInterval time.Duration

	// RunTimeout bounds a single run. Zero means no limit.
	RunTimeout time.Duration
}

// FeatureRefreshService rebuilds and republishes the lookup tables on a
// schedule.
type FeatureRefreshService struct {
	runner FeatureRunner
	config FeatureRefreshConfig
	logger zerolog.Logger
	name   string
}

// NewFeatureRefreshService creates the service.
//
//nolint:gocritic // zerolog.Logger is passed by value
func NewFeatureRefreshService(runner FeatureRunner, cfg FeatureRefreshConfig, logger zerolog.Logger) *FeatureRefreshService {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 24 * time.Hour
	}
	return &FeatureRefreshService{
		runner: runner,
		config: cfg,
		logger: logger.With().Str("service", "feature-refresh").Logger(),
		name:   "feature-refresh",
	}
}

// Serve implements suture.Service. Run failures are logged and retried on
// the next tick rather than restarting the service.
func (s *FeatureRefreshService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("refresh_on_startup", s.config.RefreshOnStartup).
		Dur("refresh_interval", s.config.RefreshInterval).
		Msg("Feature refresh service starting")

	if s.config.RefreshOnStartup {
		s.refresh(ctx)
	}

	ticker := time.NewTicker(s.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Feature refresh service stopping")
			return ctx.Err()
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *FeatureRefreshService) refresh(ctx context.Context) {
	runCtx := ctx
	if s.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.config.RunTimeout)
		defer cancel()
	}

	result, err := s.runner.Run(runCtx)
	switch {
	case errors.Is(err, features.ErrPipelineRunning):
		s.logger.Info().Msg("Feature refresh skipped, a run is already in progress")
	case err != nil:
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn().Err(err).Msg("Feature refresh failed, will retry on schedule")
	case result != nil:
		s.logger.Info().
			Str("run_id", result.RunID).
			Dur("duration", result.Duration).
			Int64("lookup_rows", result.Published.LookupRows).
			Msg("Feature refresh completed")
	}
}

func (s *FeatureRefreshService) String() string {
	return s.name
}
