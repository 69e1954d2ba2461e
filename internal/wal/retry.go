// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package wal

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/tomtom215/basketcast/internal/logging"
	"github.com/tomtom215/basketcast/internal/metrics"
)

// maxBackoff caps the per-entry exponential backoff
const maxBackoff = 5 * time.Minute

// publishTimeout bounds a single republish
const publishTimeout = 10 * time.Second

// Publisher republishes an outbox entry to the stream
type Publisher interface {
	PublishEntry(ctx context.Context, entry *Entry) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, entry *Entry) error

// PublishEntry implements Publisher.
func (f PublisherFunc) PublishEntry(ctx context.Context, entry *Entry) error {
	return f(ctx, entry)
}

// RetryLoop republishes pending outbox entries in the background. The first
// pass runs as soon as the loop starts so entries left over from a previous
// run are recovered without waiting a full interval.
type RetryLoop struct {
	wal       *BadgerWAL
	publisher Publisher
	config    Config

	// now is replaced in tests
	now func() time.Time

	mu       sync.Mutex
	cancel   context.CancelFunc
	running  bool
	stopping bool
	stopDone chan struct{}
}

// NewRetryLoop creates a retry loop over w
func NewRetryLoop(w *BadgerWAL, publisher Publisher) *RetryLoop {
	return &RetryLoop{
		wal:       w,
		publisher: publisher,
		config:    w.GetConfig(),
		now:       time.Now,
	}
}

// Start begins the background loop. It returns immediately; the loop runs
// until Stop is called or ctx is canceled.
func (r *RetryLoop) Start(ctx context.Context) error {
	r.mu.Lock()

	// Wait for any in-progress Stop() to complete
	for r.stopping {
		stopDone := r.stopDone
		r.mu.Unlock()
		<-stopDone
		r.mu.Lock()
	}

	if r.running {
		r.mu.Unlock()
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.stopDone = make(chan struct{})
	done := r.stopDone
	r.mu.Unlock()

	go r.run(loopCtx, done)

	logging.Info().
		Dur("interval", r.config.RetryInterval).
		Int("max_retries", r.config.MaxRetries).
		Msg("Outbox retry loop started")
	return nil
}

// Stop stops the loop and waits for the current pass to finish
func (r *RetryLoop) Stop() {
	r.mu.Lock()
	if !r.running || r.stopping {
		r.mu.Unlock()
		return
	}

	r.cancel()
	r.running = false
	r.stopping = true
	stopDone := r.stopDone
	r.mu.Unlock()

	<-stopDone

	r.mu.Lock()
	r.stopping = false
	r.mu.Unlock()

	logging.Info().Msg("Outbox retry loop stopped")
}

// IsRunning reports whether the loop is active
func (r *RetryLoop) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *RetryLoop) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	r.RetryPending(ctx)

	ticker := time.NewTicker(r.config.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RetryPending(ctx)
		}
	}
}

// RetryResult tallies one pass of the loop
type RetryResult struct {
	Pending   int
	Succeeded int
	Failed    int
	Dropped   int
	Skipped   int
}

// RetryPending runs one pass over the pending entries
func (r *RetryLoop) RetryPending(ctx context.Context) RetryResult {
	var result RetryResult

	entries, err := r.wal.GetPending(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Outbox retry: failed to list pending entries")
		return result
	}
	result.Pending = len(entries)
	metrics.SetOutboxPending(int64(len(entries)))

	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}

		switch r.processEntry(ctx, entry) {
		case outcomeSucceeded:
			result.Succeeded++
		case outcomeFailed:
			result.Failed++
		case outcomeDropped:
			result.Dropped++
		default:
			result.Skipped++
		}
	}

	if result.Succeeded > 0 || result.Failed > 0 || result.Dropped > 0 {
		logging.Info().
			Int("succeeded", result.Succeeded).
			Int("failed", result.Failed).
			Int("dropped", result.Dropped).
			Int("skipped", result.Skipped).
			Msg("Outbox retry pass complete")
	}
	return result
}

type entryOutcome int

const (
	outcomeSkipped entryOutcome = iota
	outcomeSucceeded
	outcomeFailed
	outcomeDropped
)

func (r *RetryLoop) processEntry(ctx context.Context, entry *Entry) entryOutcome {
	if !r.wal.TryClaimEntry(entry.ID) {
		return outcomeSkipped
	}
	defer r.wal.ReleaseEntry(entry.ID)

	if entry.Attempts >= r.config.MaxRetries {
		return r.drop(ctx, entry)
	}
	if !r.isReadyForRetry(entry) {
		return outcomeSkipped
	}
	return r.attemptPublish(ctx, entry)
}

// drop removes an entry that used up its attempts. The event is lost, so
// this logs at error level with everything needed to replay it by hand.
func (r *RetryLoop) drop(ctx context.Context, entry *Entry) entryOutcome {
	logging.Error().
		Str("entry_id", entry.ID).
		Str("subject", entry.Subject).
		Int("attempts", entry.Attempts).
		Str("last_error", entry.LastError).
		RawJSON("payload", entry.Payload).
		Msg("Outbox entry exceeded max retries, dropping")
	if err := r.wal.Delete(ctx, entry.ID); err != nil {
		logging.Error().Err(err).Str("entry_id", entry.ID).Msg("Outbox retry: failed to delete dropped entry")
	}
	metrics.RecordOutboxRetry("dropped")
	return outcomeDropped
}

// isReadyForRetry reports whether the entry's backoff has elapsed. A fresh
// entry waits one base backoff so the ingest path gets to publish it first.
func (r *RetryLoop) isReadyForRetry(entry *Entry) bool {
	last := entry.LastAttemptAt
	if last.IsZero() {
		last = entry.CreatedAt
	}
	return r.now().Sub(last) >= r.calculateBackoff(entry.Attempts)
}

func (r *RetryLoop) attemptPublish(ctx context.Context, entry *Entry) entryOutcome {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	err := r.publisher.PublishEntry(pubCtx, entry)
	cancel()

	if err != nil {
		logging.Warn().
			Err(err).
			Str("entry_id", entry.ID).
			Int("attempt", entry.Attempts+1).
			Msg("Outbox retry: publish failed")
		if updateErr := r.wal.UpdateAttempt(ctx, entry.ID, err.Error()); updateErr != nil {
			logging.Error().Err(updateErr).Str("entry_id", entry.ID).Msg("Outbox retry: failed to record attempt")
		}
		metrics.RecordOutboxRetry("failure")
		return outcomeFailed
	}

	if err := r.wal.Confirm(ctx, entry.ID); err != nil {
		logging.Error().Err(err).Str("entry_id", entry.ID).Msg("Outbox retry: failed to confirm entry")
		return outcomeFailed
	}
	metrics.RecordOutboxRetry("success")
	return outcomeSucceeded
}

// calculateBackoff returns base * 2^attempts, capped at maxBackoff
func (r *RetryLoop) calculateBackoff(attempts int) time.Duration {
	if attempts > 50 {
		return maxBackoff
	}
	backoff := time.Duration(float64(r.config.RetryBackoff) * math.Pow(2, float64(attempts)))
	if backoff < 0 || backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}
