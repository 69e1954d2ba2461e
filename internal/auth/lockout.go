// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package auth

import (
	"sync"
	"time"

	"github.com/tomtom215/basketcast/internal/logging"
)

// LockoutConfig holds configuration for login lockout.
type LockoutConfig struct {
	// MaxAttempts is the number of failed attempts before lockout.
	MaxAttempts int

	// LockoutDuration is the base lockout period. It doubles on each
	// subsequent lockout up to MaxLockoutDuration.
	LockoutDuration    time.Duration
	MaxLockoutDuration time.Duration
}

// DefaultLockoutConfig returns sensible defaults.
func DefaultLockoutConfig() LockoutConfig {
	return LockoutConfig{
		MaxAttempts:        5,
		LockoutDuration:    15 * time.Minute,
		MaxLockoutDuration: 24 * time.Hour,
	}
}

type lockoutEntry struct {
	failedAttempts int
	lockoutCount   int
	lockedUntil    time.Time
}

// Lockout tracks failed logins per subject (username or client IP).
type Lockout struct {
	config  LockoutConfig
	mu      sync.Mutex
	entries map[string]*lockoutEntry
	now     func() time.Time
}

// NewLockout creates an in-memory lockout tracker.
func NewLockout(cfg LockoutConfig) *Lockout {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultLockoutConfig().MaxAttempts
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = DefaultLockoutConfig().LockoutDuration
	}
	if cfg.MaxLockoutDuration < cfg.LockoutDuration {
		cfg.MaxLockoutDuration = cfg.LockoutDuration
	}
	return &Lockout{config: cfg, entries: make(map[string]*lockoutEntry), now: time.Now}
}

// Locked reports whether subject is locked and for how much longer.
func (l *Lockout) Locked(subject string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[subject]
	if !ok {
		return false, 0
	}
	now := l.now()
	if now.Before(entry.lockedUntil) {
		return true, entry.lockedUntil.Sub(now)
	}
	return false, 0
}

// RecordFailure counts a failed login and reports whether subject is now locked.
func (l *Lockout) RecordFailure(subject string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[subject]
	if !ok {
		entry = &lockoutEntry{}
		l.entries[subject] = entry
	}
	now := l.now()
	if now.Before(entry.lockedUntil) {
		return true
	}

	entry.failedAttempts++
	if entry.failedAttempts < l.config.MaxAttempts {
		return false
	}

	duration := l.config.LockoutDuration << entry.lockoutCount
	if duration > l.config.MaxLockoutDuration || duration <= 0 {
		duration = l.config.MaxLockoutDuration
	}
	entry.lockedUntil = now.Add(duration)
	entry.lockoutCount++
	entry.failedAttempts = 0

	logging.Warn().
		Str("subject", subject).
		Dur("duration", duration).
		Int("lockout_count", entry.lockoutCount).
		Msg("Login locked")
	return true
}

// RecordSuccess clears the lockout state for subject.
func (l *Lockout) RecordSuccess(subject string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, subject)
}
