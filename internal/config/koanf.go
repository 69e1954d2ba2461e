// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is not set.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/basketcast/config.yaml",
	"/etc/basketcast/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			Environment:     "development",
		},
		Database: DatabaseConfig{
			Path:      "/data/basketcast.duckdb",
			MaxMemory: "2GB",
			Threads:   0,
		},
		Store: StoreConfig{
			Path:      "/data/featurestore",
			BatchSize: 100,
		},
		Features: FeaturesConfig{
			DataDir:          "/data/raw",
			ExportDir:        "/data/features",
			MaxUserID:        10000,
			RefreshEnabled:   false,
			RefreshInterval:  24 * time.Hour,
			RefreshOnStartup: false,
			RunTimeout:       30 * time.Minute,
		},
		Model: ModelConfig{
			URL:              "http://127.0.0.1:8501",
			EndpointName:     "xgboost-endpoint",
			Timeout:          5 * time.Second,
			TopK:             10,
			RequestsPerSec:   50,
			Burst:            10,
			BreakerThreshold: 5,
			BreakerTimeout:   30 * time.Second,
		},
		Stream: StreamConfig{
			Enabled:        true,
			Name:           "basket-events",
			SubjectPrefix:  "basket.events",
			Source:         "api-gateway",
			Partitions:     1000,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "/data/nats/jetstream",
			MaxAge:         7 * 24 * time.Hour,
			DurableName:    "event-archiver",
			QueueGroup:     "archivers",
			ArchiveEvents:  true,
			OutboxPath:     "/data/outbox",
			OutboxRetry:    15 * time.Second,
			OutboxMaxTries: 20,
		},
		Cache: CacheConfig{
			Enabled:  true,
			TTL:      5 * time.Minute,
			Capacity: 10000,
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			SessionTimeout:  24 * time.Hour,
			AdminUsername:   "admin",
		},
		Audit: AuditConfig{
			Enabled:       true,
			RetentionDays: 90,
			BufferSize:    1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration in three layers:
//
//  1. built-in defaults
//  2. an optional YAML file (CONFIG_PATH or DefaultConfigPaths)
//  3. environment variables
//
// The result is validated before it is returned.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields splits comma-separated env values for slice fields.
// YAML lists arrive as slices already and are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// KINESIS_STREAM and ENDPOINT_NAME are kept so existing deployment manifests
// keep working unchanged.
var envMappings = map[string]string{
	// Server
	"http_port":        "server.port",
	"http_host":        "server.host",
	"server_timeout":   "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"environment":      "server.environment",

	// DuckDB
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	// Badger lookup store
	"store_path":        "store.path",
	"store_batch_size":  "store.batch_size",
	"store_sync_writes": "store.sync_writes",

	// Feature pipeline
	"features_data_dir":           "features.data_dir",
	"features_export_dir":         "features.export_dir",
	"features_max_user_id":        "features.max_user_id",
	"features_refresh_enabled":    "features.refresh_enabled",
	"features_refresh_interval":   "features.refresh_interval",
	"features_refresh_on_startup": "features.refresh_on_startup",
	"features_run_timeout":        "features.run_timeout",

	// Model endpoint
	"endpoint_name":           "model.endpoint_name",
	"model_url":               "model.url",
	"model_timeout":           "model.timeout",
	"model_top_k":             "model.top_k",
	"model_requests_per_sec":  "model.requests_per_sec",
	"model_burst":             "model.burst",
	"model_breaker_threshold": "model.breaker_threshold",

	// Event stream
	"kinesis_stream":        "stream.name",
	"event_stream":          "stream.name",
	"stream_enabled":        "stream.enabled",
	"stream_subject_prefix": "stream.subject_prefix",
	"stream_source":         "stream.source",
	"stream_partitions":     "stream.partitions",
	"nats_url":              "stream.url",
	"nats_embedded":         "stream.embedded_server",
	"nats_store_dir":        "stream.store_dir",
	"stream_max_age":        "stream.max_age",
	"stream_archive_events": "stream.archive_events",
	"outbox_path":           "stream.outbox_path",
	"outbox_retry_interval": "stream.outbox_retry",
	"outbox_max_tries":      "stream.outbox_max_tries",

	// Cache
	"cache_enabled":  "cache.enabled",
	"redis_addr":     "cache.redis_addr",
	"cache_ttl":      "cache.ttl",
	"cache_capacity": "cache.capacity",

	// Security
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"jwt_secret":          "security.jwt_secret",
	"session_timeout":     "security.session_timeout",
	"admin_username":      "security.admin_username",
	"admin_password_hash": "security.admin_password_hash",
	"authz_policy_path":   "security.policy_path",

	// Audit
	"audit_enabled":        "audit.enabled",
	"audit_retention_days": "audit.retention_days",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to a koanf path.
// Unknown variables map to "" and are skipped.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
