// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	minJWTSecretLength = 32
	maxStoreBatchSize  = 1000
	maxTopK            = 100
	maxPartitions      = 1 << 20
	minRateLimitWindow = time.Second
)

// Validate checks that the configuration is usable. The first problem found
// is returned, named by its environment variable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateFeatures(); err != nil {
		return err
	}
	if err := c.validateModel(); err != nil {
		return err
	}
	if err := c.validateStream(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateAudit(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("SERVER_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must be >= 0, got %d", c.Database.Threads)
	}
	return nil
}

func (c *Config) validateStore() error {
	if c.Store.Path == "" && !c.Store.InMemory {
		return fmt.Errorf("STORE_PATH is required")
	}
	if c.Store.BatchSize < 1 || c.Store.BatchSize > maxStoreBatchSize {
		return fmt.Errorf("STORE_BATCH_SIZE must be between 1 and %d, got %d", maxStoreBatchSize, c.Store.BatchSize)
	}
	return nil
}

func (c *Config) validateFeatures() error {
	if c.Features.MaxUserID < 0 {
		return fmt.Errorf("FEATURES_MAX_USER_ID must be >= 0, got %d", c.Features.MaxUserID)
	}
	if c.Features.RefreshEnabled {
		if c.Features.DataDir == "" {
			return fmt.Errorf("FEATURES_DATA_DIR is required when FEATURES_REFRESH_ENABLED=true")
		}
		if c.Features.RefreshInterval < time.Minute {
			return fmt.Errorf("FEATURES_REFRESH_INTERVAL must be at least 1m, got %v", c.Features.RefreshInterval)
		}
	}
	return nil
}

func (c *Config) validateModel() error {
	if c.Model.EndpointName == "" {
		return fmt.Errorf("ENDPOINT_NAME is required")
	}
	if !strings.HasPrefix(c.Model.URL, "http://") && !strings.HasPrefix(c.Model.URL, "https://") {
		return fmt.Errorf("MODEL_URL must start with http:// or https://, got %q", c.Model.URL)
	}
	if c.Model.TopK < 1 || c.Model.TopK > maxTopK {
		return fmt.Errorf("MODEL_TOP_K must be between 1 and %d, got %d", maxTopK, c.Model.TopK)
	}
	if c.Model.Timeout <= 0 {
		return fmt.Errorf("MODEL_TIMEOUT must be positive")
	}
	if c.Model.RequestsPerSec < 0 {
		return fmt.Errorf("MODEL_REQUESTS_PER_SEC must be >= 0")
	}
	return nil
}

func (c *Config) validateStream() error {
	if !c.Stream.Enabled {
		return nil
	}
	if c.Stream.Name == "" {
		return fmt.Errorf("KINESIS_STREAM (or EVENT_STREAM) is required when the stream is enabled")
	}
	if strings.ContainsAny(c.Stream.Name, ".*> ") {
		return fmt.Errorf("KINESIS_STREAM must not contain '.', '*', '>' or spaces, got %q", c.Stream.Name)
	}
	if c.Stream.SubjectPrefix == "" {
		return fmt.Errorf("STREAM_SUBJECT_PREFIX is required")
	}
	if c.Stream.Partitions == 0 || c.Stream.Partitions > maxPartitions {
		return fmt.Errorf("STREAM_PARTITIONS must be between 1 and %d, got %d", maxPartitions, c.Stream.Partitions)
	}
	if !c.Stream.EmbeddedServer && c.Stream.URL == "" {
		return fmt.Errorf("NATS_URL is required when NATS_EMBEDDED=false")
	}
	if c.Stream.OutboxPath == "" {
		return fmt.Errorf("OUTBOX_PATH is required when the stream is enabled")
	}
	if c.Stream.OutboxMaxTries < 1 {
		return fmt.Errorf("OUTBOX_MAX_TRIES must be >= 1, got %d", c.Stream.OutboxMaxTries)
	}
	return nil
}

func (c *Config) validateCache() error {
	if !c.Cache.Enabled {
		return nil
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.Cache.RedisAddr == "" && c.Cache.Capacity < 1 {
		return fmt.Errorf("CACHE_CAPACITY must be >= 1 when REDIS_ADDR is empty")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if err := c.validateRateLimits(); err != nil {
		return err
	}
	if c.Security.JWTSecret != "" && len(c.Security.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	if c.Security.AdminPasswordHash != "" {
		if c.Security.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when ADMIN_PASSWORD_HASH is set")
		}
		if c.Security.AdminUsername == "" {
			return fmt.Errorf("ADMIN_USERNAME is required when ADMIN_PASSWORD_HASH is set")
		}
		if !strings.HasPrefix(c.Security.AdminPasswordHash, "$2") {
			return fmt.Errorf("ADMIN_PASSWORD_HASH must be a bcrypt hash")
		}
	}
	if c.IsProduction() && c.hasWildcardCORS() && c.AdminEnabled() {
		return fmt.Errorf("CORS_ORIGINS must not contain '*' in production when admin login is enabled")
	}
	return nil
}

func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be >= 1, got %d", c.Security.RateLimitReqs)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be at least %v, got %v", minRateLimitWindow, c.Security.RateLimitWindow)
	}
	return nil
}

func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

func (c *Config) validateAudit() error {
	if !c.Audit.Enabled {
		return nil
	}
	if c.Audit.RetentionDays < 1 {
		return fmt.Errorf("AUDIT_RETENTION_DAYS must be >= 1, got %d", c.Audit.RetentionDays)
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "warning": true,
	"error": true, "fatal": true, "panic": true, "disabled": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, panic, disabled; got %q", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
