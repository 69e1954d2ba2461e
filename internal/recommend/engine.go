// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package recommend

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/basketcast/internal/cache"
	"github.com/tomtom215/basketcast/internal/features"
	"github.com/tomtom215/basketcast/internal/featurestore"
	"github.com/tomtom215/basketcast/internal/logging"
	"github.com/tomtom215/basketcast/internal/metrics"
	"github.com/tomtom215/basketcast/internal/modelclient"
	"github.com/tomtom215/basketcast/internal/models"
)

// Engine produces recommendations. It is safe for concurrent use.
type Engine struct {
	source FeatureSource
	model  modelclient.Predictor
	cache  cache.ResultCache
	topK   int
	logger zerolog.Logger

	// generation is bumped by Invalidate. Scalers and results computed
	// under an older generation are not kept. Lock order: genMu, scalerMu.
	genMu      sync.RWMutex
	generation uint64

	// scaler is loaded lazily and dropped by Invalidate
	scalerMu     sync.RWMutex
	scaler       *features.Scaler
	scalerLoaded bool
}

// Option configures an Engine
type Option func(*Engine)

// WithTopK sets how many recommendations are returned
func WithTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithCache enables result caching. A nil cache disables it.
func WithCache(c cache.ResultCache) Option {
	return func(e *Engine) { e.cache = c }
}

// NewEngine creates an engine reading features from source and scoring with model
func NewEngine(source FeatureSource, model modelclient.Predictor, opts ...Option) *Engine {
	e := &Engine{
		source: source,
		model:  model,
		topK:   DefaultTopK,
		logger: logging.With().Str("component", "recommend").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recommend returns up to top K recommendations for req, best first.
// Errors are logged and yield an empty, non-nil list.
func (e *Engine) Recommend(ctx context.Context, req Request) []models.Recommendation {
	gen := e.currentGeneration()
	key := cacheKey(req)
	if recs, ok := e.cached(ctx, key); ok {
		metrics.RecordRecommendation(outcomeCacheHit, 0)
		return recs
	}

	recs, candidates, err := e.recommend(ctx, req)
	if err != nil {
		metrics.RecordRecommendation(outcomeError, candidates)
		logging.Ctx(ctx).Error().Err(err).
			Int64("user_id", req.UserID).
			Int("requested", len(req.ProductIDs)).
			Msg("Recommendation failed")
		return []models.Recommendation{}
	}

	if len(recs) == 0 {
		metrics.RecordRecommendation(outcomeEmpty, candidates)
	} else {
		metrics.RecordRecommendation(outcomeServed, candidates)
	}
	e.store(ctx, key, recs, gen)
	return recs
}

// Invalidate drops cached results and the loaded scaler. It matches
// features.CompleteFunc so it can be registered on the pipeline.
func (e *Engine) Invalidate(ctx context.Context, _ *features.RunResult) error {
	e.genMu.Lock()
	defer e.genMu.Unlock()
	e.generation++

	e.scalerMu.Lock()
	e.scaler = nil
	e.scalerLoaded = false
	e.scalerMu.Unlock()

	if e.cache == nil {
		return nil
	}
	if err := e.cache.Invalidate(ctx); err != nil {
		return fmt.Errorf("invalidate result cache: %w", err)
	}
	metrics.CacheInvalidations.WithLabelValues(e.cache.Type()).Inc()
	return nil
}

// recommend runs the uncached flow. It also returns the candidate count.
func (e *Engine) recommend(ctx context.Context, req Request) ([]models.Recommendation, int, error) {
	candidates, err := e.candidates(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	if len(candidates) == 0 {
		return []models.Recommendation{}, 0, nil
	}

	scaler, err := e.loadScaler(ctx)
	if err != nil {
		return nil, len(candidates), err
	}
	rows := make([]models.FeatureVector, len(candidates))
	for i := range candidates {
		rows[i] = scaler.Transform(candidates[i].vector)
	}

	probs, err := e.model.Predict(ctx, rows)
	if err != nil {
		return nil, len(candidates), fmt.Errorf("predict: %w", err)
	}
	if len(probs) != len(candidates) {
		return nil, len(candidates), fmt.Errorf("%w: %d candidates, %d probabilities",
			modelclient.ErrPredictionMismatch, len(candidates), len(probs))
	}

	top := topK(candidates, probs, e.topK)
	recs, err := e.withMetadata(ctx, top)
	if err != nil {
		return nil, len(candidates), err
	}

	e.logger.Debug().
		Int64("user_id", req.UserID).
		Int("candidates", len(candidates)).
		Int("returned", len(recs)).
		Msg("Scored candidates")
	return recs, len(candidates), nil
}

// candidates returns the user's lookup rows followed by one row per
// requested product id. Duplicates are kept.
func (e *Engine) candidates(ctx context.Context, req Request) ([]candidate, error) {
	start := time.Now()
	rows, err := e.source.QueryUserProducts(ctx, req.UserID)
	metrics.RecordLookup("query_user_products", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("query lookup rows: %w", err)
	}

	out := make([]candidate, 0, len(rows)+len(req.ProductIDs))
	for i := range rows {
		out = append(out, candidate{productID: rows[i].ProductID, vector: rows[i].Features})
	}
	if len(req.ProductIDs) == 0 {
		return out, nil
	}

	start = time.Now()
	users, err := e.source.BatchGetUserFeatures(ctx, []int64{req.UserID})
	metrics.RecordLookup("batch_get_user_features", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("get user features: %w", err)
	}
	var user *models.UserFeatures
	if len(users) > 0 {
		user = &users[0]
	}

	start = time.Now()
	products, err := e.source.BatchGetProductFeatures(ctx, req.ProductIDs)
	metrics.RecordLookup("batch_get_product_features", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("get product features: %w", err)
	}
	byID := make(map[int64]*models.ProductFeatures, len(products))
	for i := range products {
		byID[products[i].ProductID] = &products[i]
	}

	for _, pid := range req.ProductIDs {
		out = append(out, candidate{productID: pid, vector: features.Vector(user, byID[pid])})
	}
	return out, nil
}

// loadScaler returns the stored scaler, loading it once. A missing scaler
// disables scaling.
func (e *Engine) loadScaler(ctx context.Context) (*features.Scaler, error) {
	e.scalerMu.RLock()
	if e.scalerLoaded {
		s := e.scaler
		e.scalerMu.RUnlock()
		return s, nil
	}
	e.scalerMu.RUnlock()

	gen := e.currentGeneration()
	params, err := e.source.GetScaler(ctx)
	switch {
	case errors.Is(err, featurestore.ErrNotFound):
		params = nil
	case err != nil:
		return nil, fmt.Errorf("load scaler: %w", err)
	}

	s := features.NewScaler(params)
	e.genMu.RLock()
	if e.generation == gen {
		e.scalerMu.Lock()
		e.scaler = s
		e.scalerLoaded = true
		e.scalerMu.Unlock()
	}
	e.genMu.RUnlock()
	return s, nil
}

func (e *Engine) currentGeneration() uint64 {
	e.genMu.RLock()
	defer e.genMu.RUnlock()
	return e.generation
}

// topK sorts by probability descending, ties by product id, and keeps k
func topK(candidates []candidate, probs []float64, k int) []scored {
	all := make([]scored, len(candidates))
	for i := range candidates {
		all[i] = scored{productID: candidates[i].productID, probability: probs[i]}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].probability != all[j].probability {
			return all[i].probability > all[j].probability
		}
		return all[i].productID < all[j].productID
	})
	if len(all) > k {
		all = all[:k]
	}
	return all
}

// withMetadata left-joins product metadata onto the top results
func (e *Engine) withMetadata(ctx context.Context, top []scored) ([]models.Recommendation, error) {
	ids := make([]int64, len(top))
	for i := range top {
		ids[i] = top[i].productID
	}

	start := time.Now()
	meta, err := e.source.BatchGetProductMetadata(ctx, ids)
	metrics.RecordLookup("batch_get_product_metadata", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("get product metadata: %w", err)
	}
	byID := make(map[int64]*models.ProductMetadata, len(meta))
	for i := range meta {
		byID[meta[i].ProductID] = &meta[i]
	}

	recs := make([]models.Recommendation, len(top))
	for i, s := range top {
		recs[i] = models.Recommendation{ProductID: s.productID, Probability: s.probability}
		if m := byID[s.productID]; m != nil {
			recs[i].ProductName = m.ProductName
			recs[i].Department = m.Department
			recs[i].Aisle = m.Aisle
		}
	}
	return recs, nil
}

func (e *Engine) cached(ctx context.Context, key string) ([]models.Recommendation, bool) {
	if e.cache == nil {
		return nil, false
	}
	b, ok := e.cache.Get(ctx, key)
	if !ok {
		metrics.RecordCacheMiss(e.cache.Type())
		return nil, false
	}
	var recs []models.Recommendation
	if err := json.Unmarshal(b, &recs); err != nil {
		e.logger.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cached result")
		metrics.RecordCacheMiss(e.cache.Type())
		return nil, false
	}
	metrics.RecordCacheHit(e.cache.Type())
	return recs, true
}

// store caches recs unless Invalidate ran since gen was read
func (e *Engine) store(ctx context.Context, key string, recs []models.Recommendation, gen uint64) {
	if e.cache == nil {
		return
	}
	b, err := json.Marshal(recs)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to encode result for cache")
		return
	}

	e.genMu.RLock()
	defer e.genMu.RUnlock()
	if e.generation != gen {
		e.logger.Debug().Str("key", key).Msg("Dropping result computed before invalidation")
		return
	}
	e.cache.Set(ctx, key, b)
}

// cacheKey identifies a request: the user id plus a hash of the requested products
func cacheKey(req Request) string {
	if len(req.ProductIDs) == 0 {
		return "user:" + strconv.FormatInt(req.UserID, 10)
	}
	h := fnv.New64a()
	var buf [20]byte
	for _, pid := range req.ProductIDs {
		_, _ = h.Write(strconv.AppendInt(buf[:0], pid, 10))
		_, _ = h.Write([]byte{','})
	}
	return fmt.Sprintf("user:%d:%016x", req.UserID, h.Sum64())
}
