// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package recommend

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tomtom215/basketcast/internal/cache"
	"github.com/tomtom215/basketcast/internal/featurestore"
	"github.com/tomtom215/basketcast/internal/models"
)

// fakeSource is an in-memory FeatureSource
type fakeSource struct {
	lookup   map[int64][]models.UserProductFeatures
	users    map[int64]models.UserFeatures
	products map[int64]models.ProductFeatures
	meta     map[int64]models.ProductMetadata
	scaler   *models.ScalerParams

	queryErr    error
	scalerCalls int
	onScaler    func()
}

func (f *fakeSource) QueryUserProducts(_ context.Context, userID int64) ([]models.UserProductFeatures, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.lookup[userID], nil
}

func (f *fakeSource) BatchGetUserFeatures(_ context.Context, ids []int64) ([]models.UserFeatures, error) {
	var out []models.UserFeatures
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeSource) BatchGetProductFeatures(_ context.Context, ids []int64) ([]models.ProductFeatures, error) {
	var out []models.ProductFeatures
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeSource) BatchGetProductMetadata(_ context.Context, ids []int64) ([]models.ProductMetadata, error) {
	var out []models.ProductMetadata
	for _, id := range ids {
		if m, ok := f.meta[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeSource) GetScaler(context.Context) (*models.ScalerParams, error) {
	f.scalerCalls++
	if f.onScaler != nil {
		f.onScaler()
	}
	if f.scaler == nil {
		return nil, featurestore.ErrNotFound
	}
	return f.scaler, nil
}

// fakeModel scores each row with score(row) and records what it was sent
type fakeModel struct {
	mu        sync.Mutex
	score     func(models.FeatureVector) float64
	err       error
	calls     int
	rows      []models.FeatureVector
	onPredict func()
}

func (m *fakeModel) Predict(_ context.Context, rows []models.FeatureVector) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.rows = append([]models.FeatureVector(nil), rows...)
	if m.onPredict != nil {
		m.onPredict()
	}
	if m.err != nil {
		return nil, m.err
	}
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = m.score(r)
	}
	return out, nil
}

// firstColumn scores a row by its first feature
func firstColumn(v models.FeatureVector) float64 { return v[0] }

func lookupRow(userID, productID int64, first float64) models.UserProductFeatures {
	return models.UserProductFeatures{UserID: userID, ProductID: productID, Features: models.FeatureVector{first}}
}

func newSource() *fakeSource {
	return &fakeSource{
		lookup: map[int64][]models.UserProductFeatures{
			1: {lookupRow(1, 10, 0.2), lookupRow(1, 20, 0.9), lookupRow(1, 30, 0.5)},
		},
		users:    map[int64]models.UserFeatures{1: {UserID: 1, UserOrders: 0.7}},
		products: map[int64]models.ProductFeatures{40: {ProductID: 40, ProdOrders: 3}},
		meta: map[int64]models.ProductMetadata{
			10: {ProductID: 10, ProductName: "Banana", Aisle: "fresh fruits", Department: "produce"},
			20: {ProductID: 20, ProductName: "Whole Milk", Aisle: "milk", Department: "dairy eggs"},
		},
	}
}

func TestRecommend_SortsAndJoinsMetadata(t *testing.T) {
	model := &fakeModel{score: firstColumn}
	e := NewEngine(newSource(), model)

	got := e.Recommend(context.Background(), Request{UserID: 1})
	want := []models.Recommendation{
		{ProductID: 20, Probability: 0.9, ProductName: "Whole Milk", Department: "dairy eggs", Aisle: "milk"},
		{ProductID: 30, Probability: 0.5},
		{ProductID: 10, Probability: 0.2, ProductName: "Banana", Department: "produce", Aisle: "fresh fruits"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Recommend() mismatch (-want +got):\n%s", diff)
	}
}

func TestRecommend_RequestedProductsAppended(t *testing.T) {
	model := &fakeModel{score: firstColumn}
	e := NewEngine(newSource(), model)

	got := e.Recommend(context.Background(), Request{UserID: 1, ProductIDs: []int64{40, 99}})

	if len(model.rows) != 5 {
		t.Fatalf("model received %d rows, want 5", len(model.rows))
	}
	// Product 40 joins user and product features, 99 only the user's
	want40 := models.FeatureVector{0.7, 0, 0, 0, 0, 0, 3, 0, 0, 0}
	want99 := models.FeatureVector{0.7}
	if model.rows[3] != want40 {
		t.Errorf("row for product 40 = %v, want %v", model.rows[3], want40)
	}
	if model.rows[4] != want99 {
		t.Errorf("row for product 99 = %v, want %v", model.rows[4], want99)
	}
	if got[0].ProductID != 20 || got[1].ProductID != 40 || got[2].ProductID != 99 {
		t.Errorf("order = %v, want 20, 40, 99 first (tie broken by id)", got)
	}
}

func TestRecommend_TopKAndTieBreak(t *testing.T) {
	src := &fakeSource{lookup: map[int64][]models.UserProductFeatures{}}
	for pid := int64(30); pid > 0; pid-- {
		src.lookup[7] = append(src.lookup[7], lookupRow(7, pid, 0.5))
	}
	e := NewEngine(src, &fakeModel{score: firstColumn})

	got := e.Recommend(context.Background(), Request{UserID: 7})
	if len(got) != DefaultTopK {
		t.Fatalf("len = %d, want %d", len(got), DefaultTopK)
	}
	for i, r := range got {
		if r.ProductID != int64(i+1) {
			t.Errorf("got[%d].ProductID = %d, want %d", i, r.ProductID, i+1)
		}
	}

	e = NewEngine(src, &fakeModel{score: firstColumn}, WithTopK(3))
	if got := e.Recommend(context.Background(), Request{UserID: 7}); len(got) != 3 {
		t.Errorf("WithTopK(3) returned %d", len(got))
	}
}

func TestRecommend_AppliesScaler(t *testing.T) {
	src := newSource()
	src.scaler = &models.ScalerParams{
		Mean:     models.FeatureVector{0.5},
		Std:      models.FeatureVector{0.1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
		RowsUsed: 3,
	}
	model := &fakeModel{score: firstColumn}
	e := NewEngine(src, model)
	ctx := context.Background()

	e.Recommend(ctx, Request{UserID: 1})
	// (0.9 - 0.5) / 0.1
	if got := model.rows[1][0]; got < 3.999 || got > 4.001 {
		t.Errorf("scaled value = %v, want 4", got)
	}

	e.Recommend(ctx, Request{UserID: 1, ProductIDs: []int64{40}})
	if src.scalerCalls != 1 {
		t.Errorf("scaler loaded %d times, want 1", src.scalerCalls)
	}
	if err := e.Invalidate(ctx, nil); err != nil {
		t.Fatal(err)
	}
	e.Recommend(ctx, Request{UserID: 1})
	if src.scalerCalls != 2 {
		t.Errorf("scaler loaded %d times after Invalidate, want 2", src.scalerCalls)
	}
}

func TestRecommend_EmptyResults(t *testing.T) {
	tests := []struct {
		name   string
		src    func() *fakeSource
		model  *fakeModel
		req    Request
		called bool
	}{
		{
			name:  "no candidates",
			src:   newSource,
			model: &fakeModel{score: firstColumn},
			req:   Request{UserID: 404},
		},
		{
			name: "lookup failure",
			src: func() *fakeSource {
				s := newSource()
				s.queryErr = errors.New("store closed")
				return s
			},
			model: &fakeModel{score: firstColumn},
			req:   Request{UserID: 1},
		},
		{
			name:   "model failure",
			src:    newSource,
			model:  &fakeModel{err: errors.New("endpoint down")},
			req:    Request{UserID: 1},
			called: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(tt.src(), tt.model)
			got := e.Recommend(context.Background(), tt.req)
			if got == nil || len(got) != 0 {
				t.Errorf("Recommend() = %#v, want empty non-nil list", got)
			}
			if (tt.model.calls > 0) != tt.called {
				t.Errorf("model calls = %d, want called=%v", tt.model.calls, tt.called)
			}
		})
	}
}

func TestRecommend_Cache(t *testing.T) {
	model := &fakeModel{score: firstColumn}
	c := cache.NewMemory(100, time.Minute)
	e := NewEngine(newSource(), model, WithCache(c))
	ctx := context.Background()

	first := e.Recommend(ctx, Request{UserID: 1})
	second := e.Recommend(ctx, Request{UserID: 1})
	if model.calls != 1 {
		t.Errorf("model calls = %d, want 1 (second request cached)", model.calls)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("cached result differs (-first +second):\n%s", diff)
	}

	// A different product list is a different key
	e.Recommend(ctx, Request{UserID: 1, ProductIDs: []int64{40}})
	if model.calls != 2 {
		t.Errorf("model calls = %d, want 2", model.calls)
	}

	if err := e.Invalidate(ctx, nil); err != nil {
		t.Fatal(err)
	}
	e.Recommend(ctx, Request{UserID: 1})
	if model.calls != 3 {
		t.Errorf("model calls = %d after Invalidate, want 3", model.calls)
	}
}

func TestRecommend_InvalidateDuringRequest(t *testing.T) {
	t.Run("scaler loaded before invalidation is dropped", func(t *testing.T) {
		src := newSource()
		e := NewEngine(src, &fakeModel{score: firstColumn})
		ctx := context.Background()

		src.onScaler = func() {
			src.onScaler = nil
			if err := e.Invalidate(ctx, nil); err != nil {
				t.Error(err)
			}
		}
		e.Recommend(ctx, Request{UserID: 1})
		e.Recommend(ctx, Request{UserID: 1})
		if src.scalerCalls != 2 {
			t.Errorf("scaler loaded %d times, want 2", src.scalerCalls)
		}
	})

	t.Run("result computed before invalidation is not cached", func(t *testing.T) {
		model := &fakeModel{score: firstColumn}
		e := NewEngine(newSource(), model, WithCache(cache.NewMemory(10, time.Minute)))
		ctx := context.Background()

		model.onPredict = func() {
			model.onPredict = nil
			if err := e.Invalidate(ctx, nil); err != nil {
				t.Error(err)
			}
		}
		if got := e.Recommend(ctx, Request{UserID: 1}); len(got) != 3 {
			t.Fatalf("Recommend() returned %d results, want 3", len(got))
		}
		e.Recommend(ctx, Request{UserID: 1})
		if model.calls != 2 {
			t.Errorf("model calls = %d, want 2", model.calls)
		}
	})
}

func TestRecommend_ErrorsAreNotCached(t *testing.T) {
	model := &fakeModel{err: errors.New("endpoint down")}
	e := NewEngine(newSource(), model, WithCache(cache.NewMemory(10, time.Minute)))
	ctx := context.Background()

	e.Recommend(ctx, Request{UserID: 1})
	model.err = nil
	model.score = firstColumn
	if got := e.Recommend(ctx, Request{UserID: 1}); len(got) != 3 {
		t.Errorf("Recommend() after recovery returned %d results, want 3", len(got))
	}
}

func TestCacheKey(t *testing.T) {
	a := cacheKey(Request{UserID: 1})
	b := cacheKey(Request{UserID: 1, ProductIDs: []int64{1, 23}})
	c := cacheKey(Request{UserID: 1, ProductIDs: []int64{12, 3}})
	d := cacheKey(Request{UserID: 2, ProductIDs: []int64{1, 23}})

	if a != "user:1" {
		t.Errorf("cacheKey without products = %q", a)
	}
	if b == c || b == d {
		t.Errorf("keys collide: %q %q %q", b, c, d)
	}
	if b != cacheKey(Request{UserID: 1, ProductIDs: []int64{1, 23}}) {
		t.Error("cacheKey is not deterministic")
	}
}
