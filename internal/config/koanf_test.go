// Basketcast - Next-Basket Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketcast

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolateEnv points CONFIG_PATH at a missing file so no stray config.yaml is picked up.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Store.BatchSize != 100 {
		t.Errorf("Store.BatchSize = %d, want 100", cfg.Store.BatchSize)
	}
	if cfg.Features.MaxUserID != 10000 {
		t.Errorf("Features.MaxUserID = %d, want 10000", cfg.Features.MaxUserID)
	}
	if cfg.Model.TopK != 10 {
		t.Errorf("Model.TopK = %d, want 10", cfg.Model.TopK)
	}
	if cfg.Model.EndpointName != "xgboost-endpoint" {
		t.Errorf("Model.EndpointName = %q, want xgboost-endpoint", cfg.Model.EndpointName)
	}
	if cfg.Stream.Partitions != 1000 {
		t.Errorf("Stream.Partitions = %d, want 1000", cfg.Stream.Partitions)
	}
	if cfg.Stream.Source != "api-gateway" {
		t.Errorf("Stream.Source = %q, want api-gateway", cfg.Stream.Source)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"KINESIS_STREAM", "stream.name"},
		{"EVENT_STREAM", "stream.name"},
		{"ENDPOINT_NAME", "model.endpoint_name"},
		{"HTTP_PORT", "server.port"},
		{"DUCKDB_PATH", "database.path"},
		{"REDIS_ADDR", "cache.redis_addr"},
		{"log_level", "logging.level"},
		{"HOME", ""},
		{"PATH", ""},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoadWithKoanfEnvVars(t *testing.T) {
	isolateEnv(t)
	t.Setenv("KINESIS_STREAM", "orders-stream")
	t.Setenv("ENDPOINT_NAME", "basket-model")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STREAM_PARTITIONS", "64")
	t.Setenv("MODEL_TIMEOUT", "2s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Stream.Name != "orders-stream" {
		t.Errorf("Stream.Name = %q, want orders-stream", cfg.Stream.Name)
	}
	if cfg.Model.EndpointName != "basket-model" {
		t.Errorf("Model.EndpointName = %q, want basket-model", cfg.Model.EndpointName)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Stream.Partitions != 64 {
		t.Errorf("Stream.Partitions = %d, want 64", cfg.Stream.Partitions)
	}
	if cfg.Model.Timeout != 2*time.Second {
		t.Errorf("Model.Timeout = %v, want 2s", cfg.Model.Timeout)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://b.example" {
		t.Errorf("Security.CORSOrigins = %v, want two trimmed origins", cfg.Security.CORSOrigins)
	}

	// Unset values keep their defaults.
	if cfg.Database.MaxMemory != "2GB" {
		t.Errorf("Database.MaxMemory = %q, want 2GB (default)", cfg.Database.MaxMemory)
	}
}

func TestLoadWithKoanfConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 7070
features:
  data_dir: /srv/instacart
  max_user_id: 0
model:
  url: https://models.internal
  endpoint_name: from-file
stream:
  name: file-stream
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Features.DataDir != "/srv/instacart" {
		t.Errorf("Features.DataDir = %q", cfg.Features.DataDir)
	}
	if cfg.Features.MaxUserID != 0 {
		t.Errorf("Features.MaxUserID = %d, want 0", cfg.Features.MaxUserID)
	}
	if cfg.Model.URL != "https://models.internal" {
		t.Errorf("Model.URL = %q", cfg.Model.URL)
	}
	if cfg.Stream.Name != "file-stream" {
		t.Errorf("Stream.Name = %q", cfg.Stream.Name)
	}
}

func TestLoadWithKoanfEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("model:\n  endpoint_name: from-file\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("ENDPOINT_NAME", "from-env")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Model.EndpointName != "from-env" {
		t.Errorf("Model.EndpointName = %q, want from-env", cfg.Model.EndpointName)
	}
}

func TestLoadWithKoanfValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"bad port", map[string]string{"HTTP_PORT": "70000"}, "HTTP_PORT"},
		{"bad model url", map[string]string{"MODEL_URL": "ftp://nope"}, "MODEL_URL"},
		{"stream name with dot", map[string]string{"KINESIS_STREAM": "a.b"}, "KINESIS_STREAM"},
		{"short jwt secret", map[string]string{"JWT_SECRET": "short"}, "JWT_SECRET"},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
		{"bad batch size", map[string]string{"STORE_BATCH_SIZE": "0"}, "STORE_BATCH_SIZE"},
		{"hash without secret", map[string]string{"ADMIN_PASSWORD_HASH": "$2a$10$abcdefghijklmnopqrstuv"}, "JWT_SECRET"},
		{"bad audit retention", map[string]string{"AUDIT_RETENTION_DAYS": "0"}, "AUDIT_RETENTION_DAYS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadWithKoanf()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %s", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_StreamDisabledSkipsStreamChecks(t *testing.T) {
	cfg := defaultConfig()
	cfg.Stream.Enabled = false
	cfg.Stream.Name = ""
	cfg.Stream.OutboxPath = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidate_ProductionWildcardCORSWithAdmin(t *testing.T) {
	cfg := defaultConfig()
	cfg.Server.Environment = "production"
	cfg.Security.JWTSecret = strings.Repeat("s", 32)
	cfg.Security.AdminPasswordHash = "$2a$10$abcdefghijklmnopqrstuv"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "CORS_ORIGINS") {
		t.Fatalf("Validate() = %v, want CORS_ORIGINS error", err)
	}

	cfg.Security.CORSOrigins = []string{"https://shop.example"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	if !cfg.AdminEnabled() {
		t.Error("AdminEnabled() = false, want true")
	}
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	if got := findConfigFile(); got != path {
		t.Errorf("findConfigFile() = %q, want %q", got, path)
	}
}
