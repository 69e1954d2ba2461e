// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package services

import (
	"context"
	"fmt"
)

// ContextHub is satisfied by *websocket.Hub.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// RunService adapts a blocking run function to suture.Service.
type RunService struct {
	name string
	run  func(ctx context.Context) error
}

// NewRunService names run for the supervisor's logs.
func NewRunService(name string, run func(ctx context.Context) error) *RunService {
	return &RunService{name: name, run: run}
}

// NewWebSocketHubService runs the dashboard broadcast hub.
func NewWebSocketHubService(hub ContextHub) *RunService {
	return NewRunService("websocket-hub", hub.RunWithContext)
}

// Serve implements suture.Service. Errors returned before ctx ends carry
// the service name.
func (s *RunService) Serve(ctx context.Context) error {
	err := s.run(ctx)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	return err
}

func (s *RunService) String() string {
	return s.name
}
