// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package features

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/basketcast/internal/database"
	"github.com/tomtom215/basketcast/internal/featurestore"
	"github.com/tomtom215/basketcast/internal/logging"
	"github.com/tomtom215/basketcast/internal/metrics"
	"github.com/tomtom215/basketcast/internal/models"
)

var (
	// ErrPipelineRunning is returned when Run is called while a run is in progress
	ErrPipelineRunning = errors.New("feature pipeline is already running")

	// ErrIntegrity is returned when built features fail an integrity rule.
	// Nothing is published to the lookup store.
	ErrIntegrity = errors.New("feature integrity check failed")
)

// Stage names a pipeline step
type Stage string

// Pipeline stages in execution order
const (
	StageLoad      Stage = "load"
	StageBuild     Stage = "build"
	StageValidate  Stage = "validate"
	StageExport    Stage = "export"
	StageFitScaler Stage = "fit_scaler"
	StagePublish   Stage = "publish"
	StageNotify    Stage = "notify"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

// publishChunk is how many lookup rows are buffered per store write batch
const publishChunk = 10000

// Config controls a pipeline
type Config struct {
	// DataDir holds the order-history CSV files
	DataDir string

	// ExportDir receives parquet exports. Empty skips export and the
	// training and test sets.
	ExportDir string

	// MaxUserID limits which users are published (user_id < MaxUserID).
	// 0 publishes every user.
	MaxUserID int64
}

// PublishReport holds the row counts written to the lookup store
type PublishReport struct {
	Products        int64 `json:"products"`
	UserFeatures    int64 `json:"user_features"`
	ProductFeatures int64 `json:"product_features"`
	LookupRows      int64 `json:"lookup_rows"`
}

// RunResult summarizes one pipeline run
type RunResult struct {
	RunID      string                `json:"run_id"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	Duration   time.Duration         `json:"duration"`
	Load       *database.LoadReport  `json:"load,omitempty"`
	Build      *database.BuildReport `json:"build,omitempty"`
	Violations []database.Violation  `json:"violations,omitempty"`
	Exported   []string              `json:"exported,omitempty"`
	Scaler     *models.ScalerParams  `json:"scaler,omitempty"`
	Published  PublishReport         `json:"published"`
	Error      string                `json:"error,omitempty"`
}

// StageFunc observes stage transitions, e.g. to stream progress to dashboards
type StageFunc func(runID string, stage Stage)

// CompleteFunc runs after a successful publish, e.g. to invalidate caches or
// announce the refresh on the event stream. Errors are logged, not returned.
type CompleteFunc func(ctx context.Context, result *RunResult) error

// Pipeline loads order history into DuckDB, builds and validates features,
// exports them and publishes the lookup tables. Only one run executes at a time.
type Pipeline struct {
	db    *database.DB
	store *featurestore.Store
	cfg   Config

	onStage    []StageFunc
	onComplete []CompleteFunc

	mu      sync.Mutex
	running bool
	last    *RunResult
}

// NewPipeline creates a pipeline over an open database and lookup store
func NewPipeline(db *database.DB, store *featurestore.Store, cfg Config) *Pipeline {
	return &Pipeline{db: db, store: store, cfg: cfg}
}

// OnStage registers a stage observer. Register hooks before the first Run.
func (p *Pipeline) OnStage(fn StageFunc) {
	p.onStage = append(p.onStage, fn)
}

// OnComplete registers a completion hook. Register hooks before the first Run.
func (p *Pipeline) OnComplete(fn CompleteFunc) {
	p.onComplete = append(p.onComplete, fn)
}

// Status reports whether a run is in progress and the last finished run
func (p *Pipeline) Status() (running bool, last *RunResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running, p.last
}

// Running reports whether a run is in progress
func (p *Pipeline) Running() bool {
	running, _ := p.Status()
	return running
}

// Run executes the pipeline. It returns ErrPipelineRunning if another run is
// in progress and ErrIntegrity (wrapped) if validation fails.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	result, err := p.acquire()
	if err != nil {
		return nil, err
	}
	return result, p.execute(ctx, result)
}

// Start begins a run in the background and returns its run id. The
// running check is synchronous, so a concurrent trigger gets
// ErrPipelineRunning immediately. The run is bound to ctx, not to the
// caller's request.
func (p *Pipeline) Start(ctx context.Context) (string, error) {
	result, err := p.acquire()
	if err != nil {
		return "", err
	}
	go func() {
		_ = p.execute(ctx, result)
	}()
	return result.RunID, nil
}

func (p *Pipeline) acquire() (*RunResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil, ErrPipelineRunning
	}
	p.running = true
	return &RunResult{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}, nil
}

func (p *Pipeline) execute(ctx context.Context, result *RunResult) error {
	ctx = logging.ContextWithCorrelationID(ctx, result.RunID)
	err := p.run(ctx, result)

	result.FinishedAt = time.Now().UTC()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)
	metrics.RecordPipelineRun(result.Duration, err)

	logger := logging.CtxWith(ctx).Dur("duration", result.Duration).Logger()
	if err != nil {
		result.Error = err.Error()
		p.emit(result.RunID, StageFailed)
		logger.Error().Err(err).Msg("Feature pipeline failed")
	} else {
		p.emit(result.RunID, StageDone)
		logger.Info().
			Int64("lookup_rows", result.Published.LookupRows).
			Int64("users", result.Published.UserFeatures).
			Msg("Feature pipeline completed")
	}

	p.mu.Lock()
	p.running = false
	p.last = result
	p.mu.Unlock()

	return err
}

func (p *Pipeline) run(ctx context.Context, result *RunResult) error {
	var err error

	if err := p.stage(ctx, result.RunID, StageLoad, func(ctx context.Context) error {
		result.Load, err = p.db.LoadSources(ctx, database.DefaultSourceFiles(p.cfg.DataDir))
		return err
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, result.RunID, StageBuild, func(ctx context.Context) error {
		result.Build, err = p.db.BuildFeatures(ctx, database.BuildOptions{Datasets: p.cfg.ExportDir != ""})
		if err == nil {
			recordBuildRows(result.Build)
		}
		return err
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, result.RunID, StageValidate, func(ctx context.Context) error {
		return p.validate(ctx, result)
	}); err != nil {
		return err
	}

	if p.cfg.ExportDir != "" {
		if err := p.stage(ctx, result.RunID, StageExport, func(ctx context.Context) error {
			return p.export(ctx, result)
		}); err != nil {
			return err
		}
	}

	var scaler *models.ScalerParams
	if err := p.stage(ctx, result.RunID, StageFitScaler, func(ctx context.Context) error {
		scaler, err = p.fitScaler(ctx)
		result.Scaler = scaler
		return err
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, result.RunID, StagePublish, func(ctx context.Context) error {
		return p.publish(ctx, scaler, &result.Published)
	}); err != nil {
		return err
	}

	if len(p.onComplete) > 0 {
		_ = p.stage(ctx, result.RunID, StageNotify, func(ctx context.Context) error {
			for _, fn := range p.onComplete {
				if err := fn(ctx, result); err != nil {
					logging.Ctx(ctx).Warn().Err(err).Msg("Pipeline completion hook failed")
				}
			}
			return nil
		})
	}
	return nil
}

// stage runs fn as a named, timed pipeline step
func (p *Pipeline) stage(ctx context.Context, runID string, stage Stage, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.emit(runID, stage)
	start := time.Now()
	err := fn(ctx)
	metrics.RecordPipelineStage(string(stage), time.Since(start))
	logging.Ctx(ctx).Debug().Str("stage", string(stage)).Dur("duration", time.Since(start)).Err(err).Msg("Pipeline stage finished")
	if err != nil {
		return fmt.Errorf("%s: %w", stage, err)
	}
	return nil
}

func (p *Pipeline) emit(runID string, stage Stage) {
	for _, fn := range p.onStage {
		fn(runID, stage)
	}
}

func (p *Pipeline) validate(ctx context.Context, result *RunResult) error {
	violations, err := p.db.ValidateFeatures(ctx)
	if err != nil {
		return err
	}
	if len(violations) == 0 {
		return nil
	}
	result.Violations = violations
	rules := make([]string, len(violations))
	for i, v := range violations {
		metrics.PipelineViolations.WithLabelValues(v.Rule).Add(float64(v.Count))
		rules[i] = v.String()
	}
	return fmt.Errorf("%w: %s", ErrIntegrity, strings.Join(rules, "; "))
}

func (p *Pipeline) export(ctx context.Context, result *RunResult) error {
	for _, table := range database.ExportTables {
		path, err := p.db.ExportParquet(ctx, table, p.cfg.ExportDir)
		if err != nil {
			return err
		}
		result.Exported = append(result.Exported, path)
	}
	return nil
}

// fitScaler fits the scaler over every lookup row, streamed from DuckDB
func (p *Pipeline) fitScaler(ctx context.Context) (*models.ScalerParams, error) {
	var fitter ScalerFitter
	err := p.db.EachUserProductFeatures(ctx, 0, func(row models.UserProductFeatures) error {
		fitter.Add(&row.Features)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fitter.Params(), nil
}

// publish replaces the lookup store contents with the new build
func (p *Pipeline) publish(ctx context.Context, scaler *models.ScalerParams, report *PublishReport) error {
	if err := p.store.DropAll(); err != nil {
		return err
	}

	meta, err := p.db.ProductMetadata(ctx)
	if err != nil {
		return err
	}
	if err := p.store.PutProductMetadata(ctx, meta); err != nil {
		return fmt.Errorf("publish products: %w", err)
	}
	report.Products = int64(len(meta))

	users, err := p.db.UserFeatures(ctx, p.cfg.MaxUserID)
	if err != nil {
		return err
	}
	if err := p.store.PutUserFeatures(ctx, users); err != nil {
		return fmt.Errorf("publish user features: %w", err)
	}
	report.UserFeatures = int64(len(users))

	products, err := p.db.ProductFeatures(ctx)
	if err != nil {
		return err
	}
	if err := p.store.PutProductFeatures(ctx, products); err != nil {
		return fmt.Errorf("publish product features: %w", err)
	}
	report.ProductFeatures = int64(len(products))

	chunk := make([]models.UserProductFeatures, 0, publishChunk)
	flush := func() error {
		if err := p.store.PutUserProductFeatures(ctx, chunk); err != nil {
			return fmt.Errorf("publish lookup rows: %w", err)
		}
		report.LookupRows += int64(len(chunk))
		chunk = chunk[:0]
		return nil
	}
	err = p.db.EachUserProductFeatures(ctx, p.cfg.MaxUserID, func(row models.UserProductFeatures) error {
		chunk = append(chunk, row)
		if len(chunk) == publishChunk {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := flush(); err != nil {
		return err
	}

	if scaler != nil {
		if err := p.store.PutScaler(ctx, scaler); err != nil {
			return fmt.Errorf("publish scaler: %w", err)
		}
	}

	p.store.RunGC()
	return nil
}

func recordBuildRows(b *database.BuildReport) {
	metrics.SetPipelineRows("user_features", b.Users)
	metrics.SetPipelineRows("product_features", b.Products)
	metrics.SetPipelineRows("up_features", b.UPPairs)
	metrics.SetPipelineRows("user_product_features", b.LookupRows)
	metrics.SetPipelineRows("product_metadata", b.ProductMetadata)
}
