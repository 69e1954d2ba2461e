// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package wal

import (
	"fmt"
	"time"

	"github.com/tomtom215/basketcast/internal/config"
)

// Config holds outbox settings
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the outbox in memory (tests only; nothing survives a restart)
	InMemory bool

	// SyncWrites fsyncs every write
	SyncWrites bool

	// RetryInterval is the time between retry loop passes
	RetryInterval time.Duration

	// RetryBackoff is the base of the exponential per-entry backoff
	RetryBackoff time.Duration

	// MaxRetries is how many publish attempts an entry gets before it is dropped
	MaxRetries int

	// CompactInterval is the time between compaction runs
	CompactInterval time.Duration

	// EntryTTL bounds how long an unconfirmed entry is kept
	EntryTTL time.Duration

	// GCRatio is the value log GC discard ratio
	GCRatio float64

	// CloseTimeout bounds Close
	CloseTimeout time.Duration
}

// DefaultConfig returns production defaults for path
func DefaultConfig(path string) Config {
	return Config{
		Path:            path,
		SyncWrites:      true,
		RetryInterval:   30 * time.Second,
		RetryBackoff:    5 * time.Second,
		MaxRetries:      10,
		CompactInterval: time.Hour,
		EntryTTL:        7 * 24 * time.Hour,
		GCRatio:         0.5,
		CloseTimeout:    30 * time.Second,
	}
}

// ConfigFromStream derives the outbox configuration from the stream settings
func ConfigFromStream(s *config.StreamConfig) Config {
	cfg := DefaultConfig(s.OutboxPath)
	if s.OutboxRetry > 0 {
		cfg.RetryInterval = s.OutboxRetry
		if s.OutboxRetry < cfg.RetryBackoff {
			cfg.RetryBackoff = s.OutboxRetry
		}
	}
	if s.OutboxMaxTries > 0 {
		cfg.MaxRetries = s.OutboxMaxTries
	}
	return cfg
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Path == "" && !c.InMemory {
		return fmt.Errorf("outbox path is required")
	}
	if c.RetryInterval <= 0 {
		return fmt.Errorf("retry interval must be positive, got %v", c.RetryInterval)
	}
	if c.RetryBackoff <= 0 {
		return fmt.Errorf("retry backoff must be positive, got %v", c.RetryBackoff)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be >= 1, got %d", c.MaxRetries)
	}
	if c.CompactInterval <= 0 {
		return fmt.Errorf("compact interval must be positive, got %v", c.CompactInterval)
	}
	if c.EntryTTL <= 0 {
		return fmt.Errorf("entry TTL must be positive, got %v", c.EntryTTL)
	}
	if c.GCRatio <= 0 || c.GCRatio >= 1 {
		return fmt.Errorf("GC ratio must be in (0, 1), got %v", c.GCRatio)
	}
	return nil
}
