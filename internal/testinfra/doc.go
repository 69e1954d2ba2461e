// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

// Package testinfra provides container-backed infrastructure for integration tests.
//
// Tests in this package family carry the integration build tag and are skipped
// when no container runtime is reachable:
//
//	go test -tags integration ./internal/cache/...
//
// # Redis Container
//
//	redis := testinfra.StartRedis(t)
//	c, err := cache.NewRedis(ctx, redis.Addr, time.Minute)
//
// First run may need to download container images. Subsequent runs use cached images.
package testinfra
