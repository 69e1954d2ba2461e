// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/basketcast/internal/config"
)

// Cache types, also used as the cache_type metric label
const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
)

// ResultCache stores encoded recommendation results.
// Get and Set never fail the caller: backend errors are treated as misses.
type ResultCache interface {
	// Get returns the cached value and true on a hit
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value with the cache's default TTL
	Set(ctx context.Context, key string, value []byte)

	// Invalidate removes every cached entry
	Invalidate(ctx context.Context) error

	// Type returns TypeMemory or TypeRedis
	Type() string

	// Close releases backend connections
	Close() error
}

// New builds the result cache described by cfg: Redis when RedisAddr is
// set, otherwise an in-process LRU. It returns nil when caching is disabled.
func New(ctx context.Context, cfg *config.CacheConfig) (ResultCache, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.RedisAddr != "" {
		c, err := NewRedis(ctx, cfg.RedisAddr, cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("connect redis cache: %w", err)
		}
		return c, nil
	}
	return NewMemory(cfg.Capacity, cfg.TTL), nil
}

// Memory is a ResultCache backed by an LRU
type Memory struct {
	lru *LRUCache[[]byte]
}

// NewMemory creates an in-process result cache
func NewMemory(capacity int, ttl time.Duration) *Memory {
	return &Memory{lru: NewLRUCache[[]byte](capacity, ttl)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	return m.lru.Get(key)
}

func (m *Memory) Set(_ context.Context, key string, value []byte) {
	m.lru.Add(key, value)
}

func (m *Memory) Invalidate(context.Context) error {
	m.lru.Clear()
	return nil
}

func (m *Memory) Type() string { return TypeMemory }

func (m *Memory) Close() error { return nil }

// Stats returns LRU hit/miss statistics
func (m *Memory) Stats() (hits, misses int64, size int) {
	return m.lru.Stats()
}
