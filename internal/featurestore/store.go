// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

// Package featurestore is the low-latency lookup store read at inference time.
//
// Features computed by the batch pipeline are published into BadgerDB under
// one key prefix per table. Numeric ids are zero-padded so that keys sort in
// id order and a user's lookup rows form one contiguous prefix range.
//
//	products:<product_id>                            product metadata
//	user_features:<user_id>                          user features
//	product_features:<product_id>                    product features
//	user_product_features:<user_id>:<product_id>     lookup rows
//	scaler:current                                   fitted scaler
//
// Values are JSON documents of the corresponding models type.
package featurestore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/basketcast/internal/config"
	"github.com/tomtom215/basketcast/internal/logging"
)

// Table names. Each is also the key prefix of its rows.
const (
	TableProducts            = "products"
	TableUserFeatures        = "user_features"
	TableProductFeatures     = "product_features"
	TableUserProductFeatures = "user_product_features"
	TableScaler              = "scaler"
)

// Tables lists every table in the store
var Tables = []string{
	TableProducts,
	TableUserFeatures,
	TableProductFeatures,
	TableUserProductFeatures,
	TableScaler,
}

const defaultBatchSize = 100

var (
	// ErrNotFound is returned when a key does not exist
	ErrNotFound = errors.New("featurestore: not found")

	// ErrClosed is returned after Close
	ErrClosed = errors.New("featurestore: closed")
)

// Store is a BadgerDB-backed feature lookup store. It is safe for concurrent use.
type Store struct {
	db        *badger.DB
	batchSize int

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the store described by cfg.
func Open(cfg *config.StoreConfig) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
		opts.SyncWrites = cfg.SyncWrites
	}
	opts.Logger = newBadgerLogger()

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Int("batch_size", batchSize).
		Msg("Feature store opened")

	return &Store{db: db, batchSize: batchSize}, nil
}

// Close closes the underlying database. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping reports whether the store is open
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.checkOpen()
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.db.IsClosed() {
		return ErrClosed
	}
	return nil
}

// DropAll removes every table, used before a full republish.
func (s *Store) DropAll() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("drop all: %w", err)
	}
	return nil
}

// DropTable removes every row of one table
func (s *Store) DropTable(table string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.db.DropPrefix(tablePrefix(table)); err != nil {
		return fmt.Errorf("drop %s: %w", table, err)
	}
	return nil
}

// RunGC reclaims value log space after a large republish. Badger returns
// ErrNoRewrite once there is nothing left to collect.
func (s *Store) RunGC() {
	if s.checkOpen() != nil {
		return
	}
	for i := 0; i < 10; i++ {
		if err := s.db.RunValueLogGC(0.5); err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) {
				logging.Warn().Err(err).Msg("Feature store value log GC failed")
			}
			return
		}
	}
}

// Stats holds row counts per table and the on-disk size
type Stats struct {
	Counts    map[string]int64 `json:"counts"`
	LSMBytes  int64            `json:"lsm_bytes"`
	VLogBytes int64            `json:"vlog_bytes"`
	HasScaler bool             `json:"has_scaler"`
	CheckedAt time.Time        `json:"checked_at"`
}

// Stats counts the keys of every table with a key-only scan.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	stats := &Stats{Counts: make(map[string]int64, len(Tables)), CheckedAt: time.Now().UTC()}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		for _, table := range Tables {
			opts.Prefix = tablePrefix(table)
			it := txn.NewIterator(opts)
			var n int64
			for it.Rewind(); it.Valid(); it.Next() {
				if n%1024 == 0 {
					if err := ctx.Err(); err != nil {
						it.Close()
						return err
					}
				}
				n++
			}
			it.Close()
			stats.Counts[table] = n
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("count keys: %w", err)
	}

	stats.HasScaler = stats.Counts[TableScaler] > 0
	stats.LSMBytes, stats.VLogBytes = s.db.Size()
	return stats, nil
}

// get reads one key into v
func (s *Store) get(key []byte, v interface{}) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
}

// put writes one key
func (s *Store) put(key []byte, v interface{}) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// putAll bulk-writes rows through a WriteBatch. The batch is flushed once
// at the end; Badger splits it into transactions internally.
func putAll[T any](ctx context.Context, s *Store, rows []T, key func(*T) []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for i := range rows {
		if i%s.batchSize == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		data, err := json.Marshal(&rows[i])
		if err != nil {
			return fmt.Errorf("marshal row %d: %w", i, err)
		}
		if err := wb.Set(key(&rows[i]), data); err != nil {
			return fmt.Errorf("write batch set: %w", err)
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("write batch flush: %w", err)
	}
	return nil
}

// batchGet reads ids in chunks of batchSize, one read transaction per chunk.
// Duplicate ids are read once and missing keys are skipped, so the result
// may be shorter than ids.
func batchGet[T any](ctx context.Context, s *Store, ids []int64, key func(int64) []byte) ([]T, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	unique := dedupe(ids)
	out := make([]T, 0, len(unique))

	for start := 0; start < len(unique); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + s.batchSize
		if end > len(unique) {
			end = len(unique)
		}

		err := s.db.View(func(txn *badger.Txn) error {
			for _, id := range unique[start:end] {
				item, err := txn.Get(key(id))
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				var v T
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &v)
				}); err != nil {
					return err
				}
				out = append(out, v)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("batch get: %w", err)
		}
	}
	return out, nil
}

// dedupe returns ids without repeats, keeping first-seen order
func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
