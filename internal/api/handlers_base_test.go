// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/basketcast/internal/audit"
	"github.com/tomtom215/basketcast/internal/config"
	"github.com/tomtom215/basketcast/internal/featurestore"
	"github.com/tomtom215/basketcast/internal/features"
	"github.com/tomtom215/basketcast/internal/ingest"
	"github.com/tomtom215/basketcast/internal/models"
	"github.com/tomtom215/basketcast/internal/recommend"
	"github.com/tomtom215/basketcast/internal/wal"
)

type fakeStore struct {
	pingErr  error
	users    map[int64]models.UserFeatures
	products map[int64]models.ProductFeatures
	metadata map[int64]models.ProductMetadata
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) GetUserFeatures(_ context.Context, id int64) (*models.UserFeatures, error) {
	uf, ok := f.users[id]
	if !ok {
		return nil, featurestore.ErrNotFound
	}
	return &uf, nil
}

func (f *fakeStore) GetProductFeatures(_ context.Context, id int64) (*models.ProductFeatures, error) {
	pf, ok := f.products[id]
	if !ok {
		return nil, featurestore.ErrNotFound
	}
	return &pf, nil
}

func (f *fakeStore) GetProductMetadata(_ context.Context, id int64) (*models.ProductMetadata, error) {
	md, ok := f.metadata[id]
	if !ok {
		return nil, featurestore.ErrNotFound
	}
	return &md, nil
}

func (f *fakeStore) Stats(context.Context) (*featurestore.Stats, error) {
	return &featurestore.Stats{
		Counts:    map[string]int64{featurestore.TableUserFeatures: int64(len(f.users))},
		HasScaler: true,
		CheckedAt: time.Now(),
	}, nil
}

type fakeArchive struct {
	pingErr error
	events  []models.ArchivedEvent
	limit   int
}

func (f *fakeArchive) Ping(context.Context) error { return f.pingErr }

func (f *fakeArchive) RecentEvents(_ context.Context, limit int) ([]models.ArchivedEvent, error) {
	f.limit = limit
	if limit < len(f.events) {
		return f.events[:limit], nil
	}
	return f.events, nil
}

type fakeStream struct{ closed bool }

func (f *fakeStream) IsClosed() bool       { return f.closed }
func (f *fakeStream) BreakerState() string { return "closed" }

type fakeIngestor struct {
	mu       sync.Mutex
	err      error
	payloads []map[string]interface{}
}

func (f *fakeIngestor) Ingest(_ context.Context, payload map[string]interface{}) (*ingest.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.payloads = append(f.payloads, payload)
	return &ingest.Receipt{RecordID: "rec-1", ShardID: ingest.ShardID(42)}, nil
}

type fakeRecommender struct {
	mu          sync.Mutex
	requests    []recommend.Request
	hadDeadline bool
}

func (f *fakeRecommender) Recommend(ctx context.Context, req recommend.Request) []models.Recommendation {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	_, f.hadDeadline = ctx.Deadline()
	return []models.Recommendation{
		{ProductID: 196, Probability: 0.9, ProductName: "Soda", Department: "beverages", Aisle: "soft drinks"},
		{ProductID: 12427, Probability: 0.4},
	}
}

type fakePipeline struct {
	mu      sync.Mutex
	running bool
	last    *features.RunResult
	started int
}

func (f *fakePipeline) Start(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return "", features.ErrPipelineRunning
	}
	f.running = true
	f.started++
	return "run-1", nil
}

func (f *fakePipeline) Status() (bool, *features.RunResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running, f.last
}

type fakeOutbox struct{ stats wal.Stats }

func (f *fakeOutbox) Stats() wal.Stats { return f.stats }

type fakeAudit struct {
	mu       sync.Mutex
	events   []audit.Event
	queryErr error
	filter   audit.QueryFilter
}

func (f *fakeAudit) record(t audit.EventType, outcome audit.Outcome, actor, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, audit.Event{Type: t, Outcome: outcome, Actor: audit.Actor{ID: actor}, Description: detail})
}

func (f *fakeAudit) LogAuthSuccess(_ context.Context, username, role string, _ audit.Source) {
	f.record(audit.EventTypeAuthSuccess, audit.OutcomeSuccess, username, role)
}

func (f *fakeAudit) LogAuthFailure(_ context.Context, username string, _ audit.Source, reason string) {
	f.record(audit.EventTypeAuthFailure, audit.OutcomeFailure, username, reason)
}

func (f *fakeAudit) LogAuthLockout(_ context.Context, username string, _ audit.Source) {
	f.record(audit.EventTypeAuthLockout, audit.OutcomeFailure, username, "")
}

func (f *fakeAudit) LogPipelineTriggered(_ context.Context, username, runID string, _ audit.Source) {
	f.record(audit.EventTypePipelineTriggered, audit.OutcomeSuccess, username, runID)
}

func (f *fakeAudit) Query(_ context.Context, filter audit.QueryFilter) ([]audit.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = filter
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return append([]audit.Event(nil), f.events...), nil
}

func (f *fakeAudit) types() []audit.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]audit.EventType, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type testDeps struct {
	store    *fakeStore
	archive  *fakeArchive
	stream   *fakeStream
	ingestor *fakeIngestor
	recs     *fakeRecommender
	pipeline *fakePipeline
	outbox   *fakeOutbox
	audit    *fakeAudit
}

func newTestDeps() *testDeps {
	return &testDeps{
		store: &fakeStore{
			users:    map[int64]models.UserFeatures{1: {UserID: 1, UserOrders: 10, UserReorderRatio: 0.75}},
			products: map[int64]models.ProductFeatures{196: {ProductID: 196, ProdOrders: 35791, ProdReorders: 27791}, 7: {ProductID: 7, ProdOrders: 1}},
			metadata: map[int64]models.ProductMetadata{196: {ProductID: 196, ProductName: "Soda", Aisle: "soft drinks", Department: "beverages"}},
		},
		archive:  &fakeArchive{events: []models.ArchivedEvent{{EventID: "e1"}, {EventID: "e2"}, {EventID: "e3"}}},
		stream:   &fakeStream{},
		ingestor: &fakeIngestor{},
		recs:     &fakeRecommender{},
		pipeline: &fakePipeline{},
		outbox:   &fakeOutbox{stats: wal.Stats{PendingCount: 2, TotalWrites: 9}},
		audit:    &fakeAudit{},
	}
}

func (d *testDeps) dependencies() Dependencies {
	return Dependencies{
		Archive:     d.archive,
		Store:       d.store,
		Stream:      d.stream,
		Ingestor:    d.ingestor,
		Recommender: d.recs,
		Pipeline:    d.pipeline,
		Outbox:      d.outbox,
		Audit:       d.audit,
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Security: config.SecurityConfig{
			RateLimitReqs:   1000,
			RateLimitWindow: time.Minute,
		},
	}
}

func newTestHandler(d *testDeps) *Handler {
	return NewHandler(testConfig(), d.dependencies())
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, data interface{}) models.APIResponse {
	t.Helper()
	var raw struct {
		Status   string           `json:"status"`
		Data     json.RawMessage  `json:"data"`
		Metadata models.Metadata  `json:"metadata"`
		Error    *models.APIError `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	if data != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return models.APIResponse{Status: raw.Status, Metadata: raw.Metadata, Error: raw.Error}
}

var errBoom = errors.New("boom")
