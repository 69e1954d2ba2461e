// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tomtom215/basketcast/internal/logging"
)

// redisKeyPrefix namespaces result keys so Invalidate only touches ours
const redisKeyPrefix = "basketcast:rec:"

// redisScanCount is the SCAN batch hint used by Invalidate
const redisScanCount = 500

// Redis is a ResultCache shared by every server instance
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis connects to addr and verifies the connection with PING
func NewRedis(ctx context.Context, addr string, ttl time.Duration) (*Redis, error) {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping %s: %w", addr, err)
	}

	return &Redis{rdb: rdb, ttl: ttl}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.Warn().Err(err).Str("key", key).Msg("Redis cache get failed")
		}
		return nil, false
	}
	return b, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) {
	if err := r.rdb.Set(ctx, redisKeyPrefix+key, value, r.ttl).Err(); err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("Redis cache set failed")
	}
}

// Invalidate unlinks every result key. Keys are found with SCAN so the
// server is never blocked by KEYS.
func (r *Redis) Invalidate(ctx context.Context) error {
	var cursor uint64
	removed := 0
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, redisKeyPrefix+"*", redisScanCount).Result()
		if err != nil {
			return fmt.Errorf("scan result keys: %w", err)
		}
		if len(keys) > 0 {
			if err := r.rdb.Unlink(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("unlink result keys: %w", err)
			}
			removed += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	logging.Debug().Int("keys", removed).Msg("Redis result cache invalidated")
	return nil
}

func (r *Redis) Type() string { return TypeRedis }

func (r *Redis) Close() error {
	return r.rdb.Close()
}
