// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package services

import (
	"context"
	"fmt"
)

// StartStopper is the lifecycle shared by wal.RetryLoop and wal.Compactor.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
}

// backgroundService adapts a StartStopper to suture's Serve pattern.
type backgroundService struct {
	component StartStopper
	name      string
}

func (s *backgroundService) Serve(ctx context.Context) error {
	if err := s.component.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}
	<-ctx.Done()
	s.component.Stop()
	return ctx.Err()
}

func (s *backgroundService) String() string {
	return s.name
}

// IsRunning reports whether the wrapped component is running.
func (s *backgroundService) IsRunning() bool {
	return s.component.IsRunning()
}

// OutboxRetryLoopService republishes pending outbox entries.
type OutboxRetryLoopService struct {
	backgroundService
}

// NewOutboxRetryLoopService wraps a wal.RetryLoop.
func NewOutboxRetryLoopService(retryLoop StartStopper) *OutboxRetryLoopService {
	return &OutboxRetryLoopService{backgroundService{component: retryLoop, name: "outbox-retry-loop"}}
}

// OutboxCompactorService removes confirmed and expired outbox entries.
type OutboxCompactorService struct {
	backgroundService
}

// NewOutboxCompactorService wraps a wal.Compactor.
func NewOutboxCompactorService(compactor StartStopper) *OutboxCompactorService {
	return &OutboxCompactorService{backgroundService{component: compactor, name: "outbox-compactor"}}
}
