// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package audit

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/basketcast/internal/config"
	"github.com/tomtom215/basketcast/internal/logging"
)

// Config holds audit logger settings
type Config struct {
	// RetentionDays is how long events are kept
	RetentionDays int

	// CleanupInterval is how often expired events are deleted
	CleanupInterval time.Duration

	// BufferSize is the async write queue length
	BufferSize int

	// WriteTimeout bounds a single store write
	WriteTimeout time.Duration
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		RetentionDays:   90,
		CleanupInterval: 24 * time.Hour,
		BufferSize:      1000,
		WriteTimeout:    5 * time.Second,
	}
}

// ConfigFromSettings applies the application's audit section to the defaults
func ConfigFromSettings(s *config.AuditConfig) Config {
	cfg := DefaultConfig()
	if s.RetentionDays > 0 {
		cfg.RetentionDays = s.RetentionDays
	}
	if s.BufferSize > 0 {
		cfg.BufferSize = s.BufferSize
	}
	return cfg
}

// Logger queues events and writes them to a Store in the background
type Logger struct {
	store  Store
	config Config
	events chan *Event

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
}

// NewLogger starts the background writer
func NewLogger(store Store, cfg Config) *Logger {
	defaults := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaults.BufferSize
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaults.CleanupInterval
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = defaults.RetentionDays
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}

	l := &Logger{
		store:  store,
		config: cfg,
		events: make(chan *Event, cfg.BufferSize),
		done:   make(chan struct{}),
	}
	go l.writer()
	return l
}

func (l *Logger) writer() {
	defer close(l.done)
	for event := range l.events {
		ctx, cancel := context.WithTimeout(context.Background(), l.config.WriteTimeout)
		if err := l.store.Save(ctx, event); err != nil {
			logging.Error().Err(err).Str("event_id", event.ID).Msg("Failed to save audit event")
		}
		cancel()
	}
}

// Log queues event. ID and Timestamp are filled in when empty. Events
// logged after Close or while the queue is full are dropped.
func (l *Logger) Log(event *Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.events <- event:
	default:
		logging.Warn().Str("event_id", event.ID).Str("type", string(event.Type)).Msg("Audit buffer full, dropping event")
	}
}

// Close stops accepting events and waits for queued ones to be written
func (l *Logger) Close() error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.events)
		l.mu.Unlock()
	})
	<-l.done
	return nil
}

// Query reads events from the store
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	return l.store.Query(ctx, filter)
}

// Cleanup deletes events older than the retention window
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -l.config.RetentionDays)
	return l.store.Delete(ctx, cutoff)
}

// Serve runs retention cleanup until ctx is canceled. It implements
// suture.Service.
func (l *Logger) Serve(ctx context.Context) error {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			count, err := l.Cleanup(ctx)
			if err != nil {
				logging.Error().Err(err).Msg("Audit cleanup failed")
			} else if count > 0 {
				logging.Info().Int64("count", count).Msg("Deleted expired audit events")
			}
		}
	}
}

func (l *Logger) String() string {
	return "audit-retention"
}

// LogAuthSuccess records a successful admin login
func (l *Logger) LogAuthSuccess(ctx context.Context, username, role string, source Source) {
	l.Log(&Event{
		Type:        EventTypeAuthSuccess,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Actor:       Actor{ID: username, Role: role},
		Source:      source,
		Action:      "login",
		Description: "Admin login succeeded",
		RequestID:   logging.RequestIDFromContext(ctx),
	})
}

// LogAuthFailure records a rejected login
func (l *Logger) LogAuthFailure(ctx context.Context, username string, source Source, reason string) {
	l.Log(&Event{
		Type:        EventTypeAuthFailure,
		Severity:    SeverityWarning,
		Outcome:     OutcomeFailure,
		Actor:       Actor{ID: username},
		Source:      source,
		Action:      "login",
		Description: "Admin login failed: " + reason,
		Metadata:    mustJSON(map[string]string{"reason": reason}),
		RequestID:   logging.RequestIDFromContext(ctx),
	})
}

// LogAuthLockout records a username being locked out
func (l *Logger) LogAuthLockout(ctx context.Context, username string, source Source) {
	l.Log(&Event{
		Type:        EventTypeAuthLockout,
		Severity:    SeverityCritical,
		Outcome:     OutcomeFailure,
		Actor:       Actor{ID: username},
		Source:      source,
		Action:      "lockout",
		Description: "Too many failed logins, username locked",
		RequestID:   logging.RequestIDFromContext(ctx),
	})
}

// LogPipelineTriggered records a manual feature refresh
func (l *Logger) LogPipelineTriggered(ctx context.Context, username, runID string, source Source) {
	l.Log(&Event{
		Type:        EventTypePipelineTriggered,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Actor:       Actor{ID: username},
		Source:      source,
		Action:      "pipeline.run",
		Description: "Feature refresh triggered",
		Metadata:    mustJSON(map[string]string{"run_id": runID}),
		RequestID:   logging.RequestIDFromContext(ctx),
	})
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
