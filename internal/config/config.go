// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

// Package config loads Basketcast configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence.
package config

import (
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Store    StoreConfig    `koanf:"store"`
	Features FeaturesConfig `koanf:"features"`
	Model    ModelConfig    `koanf:"model"`
	Stream   StreamConfig   `koanf:"stream"`
	Cache    CacheConfig    `koanf:"cache"`
	Security SecurityConfig `koanf:"security"`
	Audit    AuditConfig    `koanf:"audit"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// DatabaseConfig holds DuckDB settings for the batch feature engine.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = runtime.NumCPU()
}

// StoreConfig holds the Badger lookup store settings.
type StoreConfig struct {
	Path       string `koanf:"path"`
	BatchSize  int    `koanf:"batch_size"`
	SyncWrites bool   `koanf:"sync_writes"`
	InMemory   bool   `koanf:"in_memory"`
}

// FeaturesConfig controls the batch feature pipeline.
type FeaturesConfig struct {
	// DataDir holds orders.csv, products.csv, aisles.csv, departments.csv and
	// order_products__prior.csv / order_products__train.csv.
	DataDir string `koanf:"data_dir"`

	// ExportDir receives the parquet feature tables. Empty disables export.
	ExportDir string `koanf:"export_dir"`

	// MaxUserID bounds which users are published to the lookup store.
	// Users with id >= MaxUserID are skipped. 0 publishes everyone.
	MaxUserID int64 `koanf:"max_user_id"`

	RefreshEnabled   bool          `koanf:"refresh_enabled"`
	RefreshInterval  time.Duration `koanf:"refresh_interval"`
	RefreshOnStartup bool          `koanf:"refresh_on_startup"`
	RunTimeout       time.Duration `koanf:"run_timeout"`
}

// ModelConfig points at the model-serving endpoint.
type ModelConfig struct {
	URL              string        `koanf:"url"`
	EndpointName     string        `koanf:"endpoint_name"`
	Timeout          time.Duration `koanf:"timeout"`
	TopK             int           `koanf:"top_k"`
	RequestsPerSec   float64       `koanf:"requests_per_sec"`
	Burst            int           `koanf:"burst"`
	BreakerThreshold uint32        `koanf:"breaker_threshold"`
	BreakerTimeout   time.Duration `koanf:"breaker_timeout"`
}

// StreamConfig holds event ingestion settings.
type StreamConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Name           string        `koanf:"name"`
	SubjectPrefix  string        `koanf:"subject_prefix"`
	Source         string        `koanf:"source"`
	Partitions     uint32        `koanf:"partitions"`
	URL            string        `koanf:"url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	StoreDir       string        `koanf:"store_dir"`
	MaxAge         time.Duration `koanf:"max_age"`
	DurableName    string        `koanf:"durable_name"`
	QueueGroup     string        `koanf:"queue_group"`
	ArchiveEvents  bool          `koanf:"archive_events"`
	OutboxPath     string        `koanf:"outbox_path"`
	OutboxRetry    time.Duration `koanf:"outbox_retry"`
	OutboxMaxTries int           `koanf:"outbox_max_tries"`
}

// CacheConfig configures the recommendation result cache.
// When RedisAddr is set a shared Redis cache is used, otherwise an in-process LRU.
type CacheConfig struct {
	Enabled   bool          `koanf:"enabled"`
	RedisAddr string        `koanf:"redis_addr"`
	TTL       time.Duration `koanf:"ttl"`
	Capacity  int           `koanf:"capacity"`
}

// SecurityConfig holds HTTP security and admin authentication settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	JWTSecret         string        `koanf:"jwt_secret"`
	SessionTimeout    time.Duration `koanf:"session_timeout"`
	AdminUsername     string        `koanf:"admin_username"`
	// AdminPasswordHash is a bcrypt hash. An empty hash disables admin login.
	AdminPasswordHash string `koanf:"admin_password_hash"`
	PolicyPath        string `koanf:"policy_path"`
}

// AuditConfig controls the admin audit trail stored in DuckDB.
type AuditConfig struct {
	Enabled       bool `koanf:"enabled"`
	RetentionDays int  `koanf:"retention_days"`
	BufferSize    int  `koanf:"buffer_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration using the layered koanf loader.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// AdminEnabled reports whether admin login is configured.
func (c *Config) AdminEnabled() bool {
	return c.Security.JWTSecret != "" && c.Security.AdminPasswordHash != ""
}

// IsProduction reports whether the server runs with ENVIRONMENT=production.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
