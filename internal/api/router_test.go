// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tomtom215/basketcast/internal/audit"
	"github.com/tomtom215/basketcast/internal/auth"
	"github.com/tomtom215/basketcast/internal/authz"
	"github.com/tomtom215/basketcast/internal/middleware"
)

type routerFixture struct {
	deps    *testDeps
	handler http.Handler
	jwt     *auth.JWTManager
}

func newRouterFixture(t *testing.T, mwCfg *ChiMiddlewareConfig) *routerFixture {
	t.Helper()

	enforcer, err := authz.NewEnforcer(authz.DefaultEnforcerConfig())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(enforcer.Close)

	d := newTestDeps()
	deps := d.dependencies()
	deps.JWT = testJWT(t)
	deps.Admin = testAdmin(t)
	deps.Performance = middleware.NewPerformanceMonitor(100)
	h := NewHandler(testConfig(), deps)

	router := NewRouter(h, RouterOptions{
		Middleware: NewChiMiddleware(mwCfg),
		Auth:       auth.NewMiddleware(deps.JWT),
		Authz:      authz.NewMiddleware(enforcer),
	})
	return &routerFixture{deps: d, handler: router.Setup(), jwt: deps.JWT}
}

func (f *routerFixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func (f *routerFixture) token(t *testing.T, role string) string {
	t.Helper()
	token, _, err := f.jwt.GenerateToken("tester", role)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func TestRouter_PublicRoutes(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t, nil)

	tests := []struct {
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/health/ready", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodPost, "/api/v1/events", `{"user_id":1}`, http.StatusOK},
		{http.MethodPost, "/api/v1/recommendations", `{"user_id":1}`, http.StatusOK},
		{http.MethodGet, "/api/v1/features/users/1", "", http.StatusOK},
		{http.MethodGet, "/api/v1/features/products/999", "", http.StatusNotFound},
		{http.MethodGet, "/api/v1/events", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := f.do(t, jsonRequest(t, tt.method, tt.path, tt.body))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if w.Header().Get("X-Request-ID") == "" {
				t.Error("X-Request-ID header missing")
			}
		})
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/events", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := f.do(t, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPost) {
		t.Errorf("Allow-Methods = %q", got)
	}
	if !strings.Contains(w.Body.String(), "CORS preflight") {
		t.Errorf("body = %s", w.Body.String())
	}

	// A bare OPTIONS without preflight headers also answers 200
	w = f.do(t, httptest.NewRequest(http.MethodOptions, "/api/v1/recommendations", nil))
	if w.Code != http.StatusOK {
		t.Errorf("bare OPTIONS status = %d", w.Code)
	}
}

func TestRouter_CORSOnSimpleRequest(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t, nil)
	req := jsonRequest(t, http.MethodPost, "/api/v1/events", `{"user_id":1}`)
	req.Header.Set("Origin", "https://shop.example")
	w := f.do(t, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}

func TestRouter_AdminAuthorization(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		role       string
		wantStatus int
	}{
		{"no token", http.MethodGet, "/api/v1/admin/store/stats", "", http.StatusUnauthorized},
		{"admin reads stats", http.MethodGet, "/api/v1/admin/store/stats", auth.RoleAdmin, http.StatusOK},
		{"operator reads stats", http.MethodGet, "/api/v1/admin/store/stats", "operator", http.StatusOK},
		{"operator cannot run", http.MethodPost, "/api/v1/admin/pipeline/run", "operator", http.StatusForbidden},
		{"viewer cannot read", http.MethodGet, "/api/v1/admin/events/recent", "viewer", http.StatusForbidden},
		{"admin reads performance", http.MethodGet, "/api/v1/admin/performance", auth.RoleAdmin, http.StatusOK},
		{"operator reads audit log", http.MethodGet, "/api/v1/admin/audit", "operator", http.StatusOK},
		{"viewer cannot read audit log", http.MethodGet, "/api/v1/admin/audit", "viewer", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.role != "" {
				req.Header.Set("Authorization", "Bearer "+f.token(t, tt.role))
			}
			w := f.do(t, req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestRouter_LoginThenTriggerRefresh(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t, nil)

	w := f.do(t, jsonRequest(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{Username: testAdminUser, Password: testAdminPassword}))
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d", w.Code)
	}
	var login LoginResponse
	decodeEnvelope(t, w, &login)

	run := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/pipeline/run", nil)
		req.Header.Set("Authorization", "Bearer "+login.Token)
		return f.do(t, req).Code
	}
	if got := run(); got != http.StatusAccepted {
		t.Fatalf("first run = %d, want 202", got)
	}
	if got := run(); got != http.StatusConflict {
		t.Fatalf("second run = %d, want 409", got)
	}

	want := []audit.EventType{audit.EventTypeAuthSuccess, audit.EventTypePipelineTriggered}
	if diff := cmp.Diff(want, f.deps.audit.types()); diff != "" {
		t.Errorf("audit trail mismatch (-want +got):\n%s", diff)
	}
}

func TestRouter_AdminDisabledWithoutAuth(t *testing.T) {
	t.Parallel()

	h := newTestHandler(newTestDeps())
	handler := NewRouter(h, RouterOptions{}).Setup()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/store/stats", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRouter_RateLimit(t *testing.T) {
	t.Parallel()

	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitRequests = 2
	cfg.RateLimitWindow = time.Minute
	f := newRouterFixture(t, cfg)

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = f.do(t, jsonRequest(t, http.MethodPost, "/api/v1/recommendations", `{"user_id":1}`))
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", last.Code)
	}
	if resp := decodeEnvelope(t, last, nil); resp.Error == nil || resp.Error.Code != ErrCodeTooManyRequests {
		t.Errorf("error = %+v", resp.Error)
	}

	// Health is outside the limited group
	if w := f.do(t, httptest.NewRequest(http.MethodGet, "/health", nil)); w.Code != http.StatusOK {
		t.Errorf("health status = %d", w.Code)
	}
}

func TestRouter_RateLimitDisabled(t *testing.T) {
	t.Parallel()

	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitRequests = 1
	cfg.RateLimitDisabled = true
	f := newRouterFixture(t, cfg)

	for i := 0; i < 5; i++ {
		if w := f.do(t, jsonRequest(t, http.MethodPost, "/api/v1/recommendations", `{"user_id":1}`)); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, w.Code)
		}
	}
}

func TestChiMiddlewareConfigFromSecurity(t *testing.T) {
	t.Parallel()

	cfg := ChiMiddlewareConfigFromSecurity(&testConfig().Security)
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Errorf("origins = %v, want wildcard default", cfg.CORSAllowedOrigins)
	}

	sec := testConfig().Security
	sec.CORSOrigins = []string{"https://shop.example"}
	sec.RateLimitDisabled = true
	cfg = ChiMiddlewareConfigFromSecurity(&sec)
	if cfg.CORSAllowedOrigins[0] != "https://shop.example" || !cfg.RateLimitDisabled {
		t.Errorf("cfg = %+v", cfg)
	}
}
