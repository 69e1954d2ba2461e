// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func TestPerformanceMonitor_SlidingWindow(t *testing.T) {
	pm := NewPerformanceMonitor(3)
	for i := 1; i <= 5; i++ {
		pm.RecordRequest(RequestMetrics{Route: "/r", Method: "GET", DurationMS: int64(i)})
	}

	recent := pm.GetRecentMetrics(10)
	if len(recent) != 3 {
		t.Fatalf("len = %d, want 3", len(recent))
	}
	if recent[0].DurationMS != 3 || recent[2].DurationMS != 5 {
		t.Errorf("window = %+v, want the last three", recent)
	}
}

func TestPerformanceMonitor_GetStats(t *testing.T) {
	pm := NewPerformanceMonitor(100)
	for _, d := range []int64{10, 20, 30, 40} {
		pm.RecordRequest(RequestMetrics{Route: "/a", Method: "GET", DurationMS: d, StatusCode: 200})
	}
	pm.RecordRequest(RequestMetrics{Route: "/b", Method: "POST", DurationMS: 5, StatusCode: 500})

	stats := pm.GetStats()
	if len(stats) != 2 {
		t.Fatalf("len = %d, want 2", len(stats))
	}
	a := stats[0]
	if a.Endpoint != "GET /a" || a.RequestCount != 4 || a.AvgDuration != 25 || a.MaxDuration != 40 || a.P50Duration != 20 {
		t.Errorf("stats[0] = %+v", a)
	}
	if stats[1].ErrorCount != 1 {
		t.Errorf("stats[1].ErrorCount = %d, want 1", stats[1].ErrorCount)
	}
}

func TestPerformanceMonitor_Middleware(t *testing.T) {
	pm := NewPerformanceMonitor(10)
	pm.slowThreshold = time.Nanosecond

	r := chi.NewRouter()
	r.Use(pm.Middleware)
	r.Post("/api/v1/events", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/events", nil))

	recent := pm.GetRecentMetrics(1)
	if len(recent) != 1 {
		t.Fatal("request not recorded")
	}
	if recent[0].Route != "/api/v1/events" || recent[0].StatusCode != http.StatusAccepted {
		t.Errorf("recorded = %+v", recent[0])
	}
}

func TestPercentile(t *testing.T) {
	if got := percentile(nil, 0.5); got != 0 {
		t.Errorf("percentile(nil) = %d", got)
	}
	sorted := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(sorted, 0.95); got != 9 {
		t.Errorf("p95 = %d, want 9", got)
	}
}
