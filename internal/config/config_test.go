// Tapedeck - Recordings Ingest Mock API
// Copyright 2026 Tapedeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tapedeck/tapedeck

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("expected default port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Security.APIKey != "test_12345" {
		t.Errorf("expected default API key test_12345, got %q", cfg.Security.APIKey)
	}
	if cfg.Security.TenantID != "tn_demo" {
		t.Errorf("expected default tenant tn_demo, got %q", cfg.Security.TenantID)
	}
	if cfg.Uploads.PresignTTL != 600*time.Second {
		t.Errorf("expected default presign TTL 600s, got %s", cfg.Uploads.PresignTTL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"zero timeout", func(c *Config) { c.Server.Timeout = 0 }},
		{"empty api key", func(c *Config) { c.Security.APIKey = "" }},
		{"empty tenant", func(c *Config) { c.Security.TenantID = "" }},
		{"zero rate limit", func(c *Config) { c.Security.RateLimitReqs = 0 }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"empty storage dir", func(c *Config) { c.Storage.Dir = "" }},
		{"zero presign ttl", func(c *Config) { c.Uploads.PresignTTL = 0 }},
		{"zero max body", func(c *Config) { c.Uploads.MaxBodyBytes = 0 }},
		{"zero sweep interval", func(c *Config) { c.Uploads.SweepInterval = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestValidateAllowsDisabledRateLimit(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Security.RateLimitDisabled = true
	cfg.Security.RateLimitReqs = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("rate_limit_reqs should not be checked when disabled, got %v", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env  string
		want string
	}{
		{"HTTP_PORT", "server.port"},
		{"HTTP_HOST", "server.host"},
		{"API_KEY", "security.api_key"},
		{"TENANT_ID", "security.tenant_id"},
		{"SQLITE_PATH", "database.path"},
		{"STORAGE_DIR", "storage.dir"},
		{"PRESIGN_TTL", "uploads.presign_ttl"},
		{"LOG_LEVEL", "logging.level"},
		{"PATH", ""},       // unmapped vars are skipped
		{"HOME", ""},       // unmapped vars are skipped
		{"GOPROXY", ""},    // unmapped vars are skipped
		{"RANDOM_VAR", ""}, // unmapped vars are skipped
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Parallel()
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoadWithKoanfEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("API_KEY", "secret_key")
	t.Setenv("STORAGE_DIR", "/tmp/tapedeck-blobs")
	t.Setenv("PRESIGN_TTL", "120s")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, http://example.test")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("expected port 9100, got %d", cfg.Server.Port)
	}
	if cfg.Security.APIKey != "secret_key" {
		t.Errorf("expected API key from env, got %q", cfg.Security.APIKey)
	}
	if cfg.Storage.Dir != "/tmp/tapedeck-blobs" {
		t.Errorf("expected storage dir from env, got %q", cfg.Storage.Dir)
	}
	if cfg.Uploads.PresignTTL != 2*time.Minute {
		t.Errorf("expected presign TTL 2m, got %s", cfg.Uploads.PresignTTL)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "http://example.test" {
		t.Errorf("expected two trimmed CORS origins, got %v", cfg.Security.CORSOrigins)
	}
}

func TestLoadWithKoanfConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "server:\n  port: 8123\nlogging:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf: %v", err)
	}

	if cfg.Server.Port != 8123 {
		t.Errorf("expected port from config file, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level from config file, got %q", cfg.Logging.Level)
	}
	// Untouched sections keep defaults
	if cfg.Security.TenantID != "tn_demo" {
		t.Errorf("expected default tenant, got %q", cfg.Security.TenantID)
	}
}

func TestListenAddr(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8000
	if got := cfg.ListenAddr(); got != "127.0.0.1:8000" {
		t.Errorf("ListenAddr() = %q", got)
	}
}
