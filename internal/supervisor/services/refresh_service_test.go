// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/basketcast/internal/features"
)

type fakeRunner struct {
	mu       sync.Mutex
	calls    int
	err      error
	deadline bool
	ran      chan struct{}
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{ran: make(chan struct{}, 16)}
}

func (f *fakeRunner) Run(ctx context.Context) (*features.RunResult, error) {
	f.mu.Lock()
	f.calls++
	_, f.deadline = ctx.Deadline()
	err := f.err
	f.mu.Unlock()
	select {
	case f.ran <- struct{}{}:
	default:
	}
	if err != nil {
		return nil, err
	}
	return &features.RunResult{RunID: "run-1", Duration: time.Millisecond}, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func runRefresh(t *testing.T, svc *FeatureRefreshService, wait time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() = %v, want context.DeadlineExceeded", err)
	}
}

func TestFeatureRefreshService_Defaults(t *testing.T) {
	svc := NewFeatureRefreshService(newFakeRunner(), FeatureRefreshConfig{}, zerolog.Nop())
	if svc.config.RefreshInterval != 24*time.Hour {
		t.Errorf("RefreshInterval = %v, want 24h", svc.config.RefreshInterval)
	}
	if svc.String() != "feature-refresh" {
		t.Errorf("String() = %q, want feature-refresh", svc.String())
	}
}

func TestFeatureRefreshService_Startup(t *testing.T) {
	tests := []struct {
		name      string
		onStartup bool
		wantCalls int
	}{
		{"refresh on startup", true, 1},
		{"wait for first tick", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newFakeRunner()
			svc := NewFeatureRefreshService(runner, FeatureRefreshConfig{
				RefreshOnStartup: tt.onStartup,
				RefreshInterval:  time.Hour,
			}, zerolog.Nop())

			runRefresh(t, svc, 50*time.Millisecond)
			if got := runner.callCount(); got != tt.wantCalls {
				t.Errorf("Run called %d times, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestFeatureRefreshService_Scheduled(t *testing.T) {
	runner := newFakeRunner()
	svc := NewFeatureRefreshService(runner, FeatureRefreshConfig{
		RefreshInterval: 20 * time.Millisecond,
		RunTimeout:      time.Second,
	}, zerolog.Nop())

	runRefresh(t, svc, 150*time.Millisecond)
	if got := runner.callCount(); got < 2 {
		t.Errorf("Run called %d times, want at least 2", got)
	}
	runner.mu.Lock()
	defer runner.mu.Unlock()
	if !runner.deadline {
		t.Error("run context should carry the RunTimeout deadline")
	}
}

func TestFeatureRefreshService_ErrorsDoNotStopService(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"already running", features.ErrPipelineRunning},
		{"run failure", errors.New("load orders: file not found")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newFakeRunner()
			runner.err = tt.err
			svc := NewFeatureRefreshService(runner, FeatureRefreshConfig{
				RefreshOnStartup: true,
				RefreshInterval:  20 * time.Millisecond,
			}, zerolog.Nop())

			runRefresh(t, svc, 100*time.Millisecond)
			if got := runner.callCount(); got < 2 {
				t.Errorf("Run called %d times, want at least 2", got)
			}
		})
	}
}
