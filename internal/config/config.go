// Tapedeck - Recordings Ingest Mock API
// Copyright 2026 Tapedeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tapedeck/tapedeck

// Package config provides layered configuration for Tapedeck using Koanf v2.
//
// Configuration is resolved from three sources in order of precedence:
//
//	Environment Variables > YAML config file > built-in defaults
//
// See LoadWithKoanf for the supported environment variable names.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Tapedeck server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Database DatabaseConfig `koanf:"database"`
	Storage  StorageConfig  `koanf:"storage"`
	Uploads  UploadsConfig  `koanf:"uploads"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// SecurityConfig holds authentication and transport protection settings.
// The API uses a single static key mapped to a single tenant; there is no
// user database.
type SecurityConfig struct {
	APIKey            string        `koanf:"api_key"`
	TenantID          string        `koanf:"tenant_id"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// DatabaseConfig holds SQLite ledger settings.
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// StorageConfig holds blob storage settings.
type StorageConfig struct {
	Dir string `koanf:"dir"`
}

// UploadsConfig holds upload session settings.
type UploadsConfig struct {
	// PresignTTL is how long a presigned upload slot stays valid.
	PresignTTL time.Duration `koanf:"presign_ttl"`

	// MaxBodyBytes bounds a single upload PUT body.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`

	// SweepInterval is how often expired sessions are purged.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8000,
			Timeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			APIKey:            "test_12345",
			TenantID:          "tn_demo",
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Database: DatabaseConfig{
			Path: "tapedeck.db",
		},
		Storage: StorageConfig{
			Dir: "storage",
		},
		Uploads: UploadsConfig{
			PresignTTL:    600 * time.Second,
			MaxBodyBytes:  512 << 20, // 512MB
			SweepInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration for values that would prevent the server
// from operating correctly. It is called by LoadWithKoanf before the config
// is handed to the rest of the application.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	if c.Security.APIKey == "" {
		return fmt.Errorf("security.api_key must not be empty")
	}
	if c.Security.TenantID == "" {
		return fmt.Errorf("security.tenant_id must not be empty")
	}
	if !c.Security.RateLimitDisabled && c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("security.rate_limit_reqs must be at least 1, got %d", c.Security.RateLimitReqs)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir must not be empty")
	}
	if c.Uploads.PresignTTL <= 0 {
		return fmt.Errorf("uploads.presign_ttl must be positive, got %s", c.Uploads.PresignTTL)
	}
	if c.Uploads.MaxBodyBytes < 1 {
		return fmt.Errorf("uploads.max_body_bytes must be at least 1, got %d", c.Uploads.MaxBodyBytes)
	}
	if c.Uploads.SweepInterval <= 0 {
		return fmt.Errorf("uploads.sweep_interval must be positive, got %s", c.Uploads.SweepInterval)
	}
	return nil
}

// ListenAddr returns the host:port pair the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
