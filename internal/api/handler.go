// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package api

import (
	"context"
	"time"

	"github.com/tomtom215/basketcast/internal/auth"
	"github.com/tomtom215/basketcast/internal/config"
	"github.com/tomtom215/basketcast/internal/featurestore"
	"github.com/tomtom215/basketcast/internal/features"
	"github.com/tomtom215/basketcast/internal/ingest"
	"github.com/tomtom215/basketcast/internal/middleware"
	"github.com/tomtom215/basketcast/internal/models"
	"github.com/tomtom215/basketcast/internal/recommend"
	"github.com/tomtom215/basketcast/internal/wal"
)

// recommendTimeout bounds recommendation work per request
const recommendTimeout = 10 * time.Second

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// FeatureReader is the read side of the lookup store used by the API
type FeatureReader interface {
	Pinger
	GetUserFeatures(ctx context.Context, userID int64) (*models.UserFeatures, error)
	GetProductFeatures(ctx context.Context, productID int64) (*models.ProductFeatures, error)
	GetProductMetadata(ctx context.Context, productID int64) (*models.ProductMetadata, error)
	Stats(ctx context.Context) (*featurestore.Stats, error)
}

// StreamStatus reports the state of the event stream publisher
type StreamStatus interface {
	IsClosed() bool
	BreakerState() string
}

// EventIngestor accepts raw cart events
type EventIngestor interface {
	Ingest(ctx context.Context, payload map[string]interface{}) (*ingest.Receipt, error)
}

// Recommender scores candidate products for a user
type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) []models.Recommendation
}

// PipelineRunner triggers and reports feature refreshes
type PipelineRunner interface {
	Start(ctx context.Context) (string, error)
	Status() (running bool, last *features.RunResult)
}

// OutboxStats exposes outbox counters
type OutboxStats interface {
	Stats() wal.Stats
}

// EventArchive reads archived events
type EventArchive interface {
	Pinger
	RecentEvents(ctx context.Context, limit int) ([]models.ArchivedEvent, error)
}

// Dependencies wires the handler to the rest of the service. Nil fields
// disable the routes that need them.
type Dependencies struct {
	// BaseContext outlives requests. Background work started by a
	// handler, such as a pipeline run, is bound to it.
	BaseContext context.Context

	Archive     EventArchive
	Store       FeatureReader
	Stream      StreamStatus
	Ingestor    EventIngestor
	Recommender Recommender
	Pipeline    PipelineRunner
	Outbox      OutboxStats
	Audit       AuditTrail

	JWT         *auth.JWTManager
	Admin       *auth.AdminAuthenticator
	Lockout     *auth.Lockout
	Performance *middleware.PerformanceMonitor
}

// Handler holds the dependencies of every route
type Handler struct {
	cfg       *config.Config
	deps      Dependencies
	startTime time.Time
}

// NewHandler creates a handler
func NewHandler(cfg *config.Config, deps Dependencies) *Handler {
	if deps.BaseContext == nil {
		deps.BaseContext = context.Background()
	}
	if deps.Lockout == nil {
		deps.Lockout = auth.NewLockout(auth.DefaultLockoutConfig())
	}
	return &Handler{
		cfg:       cfg,
		deps:      deps,
		startTime: time.Now(),
	}
}
