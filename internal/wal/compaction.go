// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package wal

import (
	"context"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/basketcast/internal/logging"
)

// Compactor periodically deletes confirmed entries and runs value log GC
type Compactor struct {
	wal    *BadgerWAL
	config Config

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu               sync.Mutex
	running          bool
	lastRun          time.Time
	lastEntriesCount int64
}

// NewCompactor creates a compactor for w
func NewCompactor(w *BadgerWAL) *Compactor {
	return &Compactor{
		wal:    w,
		config: w.GetConfig(),
	}
}

// Start begins the background compaction loop
func (c *Compactor) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(loopCtx)

	logging.Info().Dur("interval", c.config.CompactInterval).Msg("Outbox compactor started")
	return nil
}

// Stop stops the loop and waits for it to exit
func (c *Compactor) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.cancel()
	c.running = false
	c.mu.Unlock()

	c.wg.Wait()
	logging.Info().Msg("Outbox compactor stopped")
}

// IsRunning reports whether the compactor is active
func (c *Compactor) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Compactor) run(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CompactInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.RunNow(); err != nil {
				logging.Error().Err(err).Msg("Outbox compaction failed")
			}
		}
	}
}

// RunNow deletes every confirmed entry, runs GC and returns how many
// entries were removed
func (c *Compactor) RunNow() (int64, error) {
	start := time.Now()

	deleted, err := c.deleteConfirmedEntries()
	if err != nil {
		return 0, err
	}
	if err := c.wal.RunGC(); err != nil {
		logging.Warn().Err(err).Msg("Outbox GC error")
	}

	now := time.Now()
	c.mu.Lock()
	c.lastRun = now
	c.lastEntriesCount = deleted
	c.mu.Unlock()

	c.wal.mu.Lock()
	c.wal.lastCompaction = now
	c.wal.mu.Unlock()

	if deleted > 0 {
		logging.Info().
			Int64("confirmed_deleted", deleted).
			Dur("duration", time.Since(start)).
			Msg("Outbox compaction removed entries")
	}
	return deleted, nil
}

// deleteConfirmedEntries removes all entries under the confirmed prefix
func (c *Compactor) deleteConfirmedEntries() (int64, error) {
	if err := c.wal.checkOpen(); err != nil {
		return 0, err
	}

	var keys [][]byte
	err := c.wal.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixConfirmed)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	// WriteBatch splits large deletes across transactions
	wb := c.wal.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return int64(len(keys)), nil
}

// CompactorStats reports the last compaction run
type CompactorStats struct {
	LastRun          time.Time
	LastEntriesCount int64
}

// GetStats returns the last run's statistics
func (c *Compactor) GetStats() CompactorStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CompactorStats{LastRun: c.lastRun, LastEntriesCount: c.lastEntriesCount}
}
