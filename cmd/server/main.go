// Tapedeck - Recordings Ingest Mock API
// Copyright 2026 Tapedeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tapedeck/tapedeck

// Package main is the entry point for the Tapedeck server.
//
// Tapedeck is a self-contained mock of a two-phase media ingest API. Clients
// presign upload slots, PUT their bytes against the issued URLs, then commit
// recording metadata with an idempotency key and poll the batch until done.
// Everything an object store and ingest pipeline would normally do is played
// by a local SQLite ledger and a directory of payload files, which makes the
// server useful for integration tests and client development without cloud
// credentials.
//
// # Startup Order
//
//  1. Configuration: environment variables over config.yaml over defaults
//     (Koanf v2, see internal/config)
//  2. Logging: zerolog, JSON or console format
//  3. Ledger: SQLite database with WAL journaling
//  4. Blob store: local payload directory
//  5. Upload registry: in-memory presigned session table
//  6. HTTP server: Chi router with auth, rate limiting, and Prometheus
//     metrics at /metrics
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: it stops accepting
// connections, waits up to 10 seconds for in-flight requests, then closes
// the ledger.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tapedeck/tapedeck/internal/api"
	"github.com/tapedeck/tapedeck/internal/blobstore"
	"github.com/tapedeck/tapedeck/internal/config"
	"github.com/tapedeck/tapedeck/internal/ledger"
	"github.com/tapedeck/tapedeck/internal/logging"
	"github.com/tapedeck/tapedeck/internal/uploads"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	store, err := ledger.Open(cfg.Database.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open ledger database")
	}
	defer store.Close()

	blobs, err := blobstore.New(cfg.Storage.Dir)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize blob storage")
	}

	sessions := uploads.NewRegistry(cfg.Uploads.PresignTTL, cfg.Uploads.SweepInterval)
	defer sessions.Stop()

	handler := api.NewHandler(cfg, store, blobs, sessions)
	router := api.NewRouter(cfg, handler)
	defer router.Stop()

	server := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().
			Str("addr", server.Addr).
			Str("storage_dir", cfg.Storage.Dir).
			Str("db_path", cfg.Database.Path).
			Msg("Tapedeck listening")
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("HTTP server failed")
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("Graceful shutdown failed")
	}

	logging.Info().Msg("Tapedeck stopped")
}
