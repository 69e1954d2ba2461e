// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tomtom215/basketcast/internal/audit"
)

func TestAuditEvents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		target      string
		wantStatus  int
		wantFilter  audit.QueryFilter
		checkFilter bool
	}{
		{
			name:        "defaults",
			target:      "/api/v1/admin/audit",
			wantStatus:  http.StatusOK,
			wantFilter:  audit.QueryFilter{Limit: 100},
			checkFilter: true,
		},
		{
			name:       "filters",
			target:     "/api/v1/admin/audit?limit=5&type=auth.failure,%20auth.lockout&actor=admin&outcome=failure",
			wantStatus: http.StatusOK,
			wantFilter: audit.QueryFilter{
				Types:   []audit.EventType{audit.EventTypeAuthFailure, audit.EventTypeAuthLockout},
				ActorID: "admin",
				Outcome: audit.OutcomeFailure,
				Limit:   5,
			},
			checkFilter: true,
		},
		{name: "limit not a number", target: "/api/v1/admin/audit?limit=many", wantStatus: http.StatusBadRequest},
		{name: "limit too large", target: "/api/v1/admin/audit?limit=5000", wantStatus: http.StatusBadRequest},
		{name: "unknown type", target: "/api/v1/admin/audit?type=auth.everything", wantStatus: http.StatusBadRequest},
		{name: "bad outcome", target: "/api/v1/admin/audit?outcome=maybe", wantStatus: http.StatusBadRequest},
		{name: "bad since", target: "/api/v1/admin/audit?since=yesterday", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps()
			d.audit.LogAuthSuccess(context.Background(), "admin", "admin", audit.Source{})
			h := newTestHandler(d)

			w := httptest.NewRecorder()
			h.AuditEvents(w, httptest.NewRequest(http.MethodGet, tt.target, nil))
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if !tt.checkFilter {
				return
			}
			if diff := cmp.Diff(tt.wantFilter, d.audit.filter); diff != "" {
				t.Errorf("filter mismatch (-want +got):\n%s", diff)
			}
			var events []audit.Event
			decodeEnvelope(t, w, &events)
			if len(events) != 1 || events[0].Type != audit.EventTypeAuthSuccess {
				t.Errorf("events = %+v", events)
			}
		})
	}
}

func TestAuditEvents_Since(t *testing.T) {
	t.Parallel()

	d := newTestDeps()
	h := newTestHandler(d)
	w := httptest.NewRecorder()
	h.AuditEvents(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit?since=2026-01-02T03:04:05Z", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if d.audit.filter.Since == nil || d.audit.filter.Since.Format("2006-01-02T15:04:05Z07:00") != "2026-01-02T03:04:05Z" {
		t.Errorf("since = %v", d.audit.filter.Since)
	}

	var events []audit.Event
	decodeEnvelope(t, w, &events)
	if events == nil || len(events) != 0 {
		t.Errorf("empty trail should encode as [], got %v", events)
	}
}

func TestAuditEvents_Unavailable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		mutate     func(d *testDeps, deps *Dependencies)
		wantStatus int
	}{
		{"disabled", func(_ *testDeps, deps *Dependencies) { deps.Audit = nil }, http.StatusServiceUnavailable},
		{"query error", func(d *testDeps, _ *Dependencies) { d.audit.queryErr = errBoom }, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps()
			deps := d.dependencies()
			tt.mutate(d, &deps)
			h := NewHandler(testConfig(), deps)

			w := httptest.NewRecorder()
			h.AuditEvents(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit", nil))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
