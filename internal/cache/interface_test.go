// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/basketcast/internal/config"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(10, time.Minute)

	if _, ok := c.Get(ctx, "user:1"); ok {
		t.Fatal("empty cache returned a hit")
	}

	c.Set(ctx, "user:1", []byte(`[{"product_id":10}]`))
	got, ok := c.Get(ctx, "user:1")
	if !ok || string(got) != `[{"product_id":10}]` {
		t.Errorf("Get() = (%q, %v)", got, ok)
	}

	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if _, ok := c.Get(ctx, "user:1"); ok {
		t.Error("hit after Invalidate")
	}

	hits, misses, _ := c.Stats()
	if hits != 1 || misses != 2 {
		t.Errorf("Stats() hits=%d misses=%d, want 1 and 2", hits, misses)
	}
	if c.Type() != TypeMemory {
		t.Errorf("Type() = %q", c.Type())
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, &config.CacheConfig{Enabled: false})
	if err != nil || c != nil {
		t.Errorf("disabled cache = (%v, %v), want (nil, nil)", c, err)
	}

	c, err = New(ctx, &config.CacheConfig{Enabled: true, TTL: time.Minute, Capacity: 5})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.Type() != TypeMemory {
		t.Errorf("Type() = %q, want memory", c.Type())
	}

	// Nothing listens on port 1
	if _, err := New(ctx, &config.CacheConfig{Enabled: true, TTL: time.Minute, RedisAddr: "127.0.0.1:1"}); err == nil {
		t.Error("New() with unreachable redis should fail")
	}
}
