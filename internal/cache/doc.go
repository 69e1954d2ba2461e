// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

/*
Package cache holds the recommendation result caches.

Two ResultCache implementations are provided:

  - Memory: an in-process LRU with TTL. Used when no Redis address is set.
  - Redis: a shared cache (go-redis) for multi-instance deployments.

Values are opaque byte slices; callers encode and decode them. Invalidate
drops every cached result and is called after each feature refresh, since
recommendations computed from the previous lookup tables are stale.

# Usage Example

	c := cache.NewMemory(10000, 5*time.Minute)
	c.Set(ctx, "user:42", payload)
	if b, ok := c.Get(ctx, "user:42"); ok {
	    // decode b
	}
*/
package cache
