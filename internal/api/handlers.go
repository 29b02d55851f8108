// Tapedeck - Recordings Ingest Mock API
// Copyright 2026 Tapedeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tapedeck/tapedeck

// Package api implements the HTTP surface of the ingest mock: presigning,
// the upload sink, recording commits, batch polling and deletion, and the
// reporting endpoints.
package api

import (
	"time"

	"github.com/tapedeck/tapedeck/internal/blobstore"
	"github.com/tapedeck/tapedeck/internal/config"
	"github.com/tapedeck/tapedeck/internal/ledger"
	"github.com/tapedeck/tapedeck/internal/uploads"
)

// API error codes returned in the error envelope.
const (
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeUploadError     = "UPLOAD_ERROR"
	CodeDatabaseError   = "DATABASE_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
)

// Handler holds the dependencies shared by all endpoint handlers.
type Handler struct {
	cfg       *config.Config
	ledger    *ledger.Store
	blobs     *blobstore.Store
	sessions  *uploads.Registry
	startTime time.Time
}

// NewHandler creates a handler backed by the given stores.
func NewHandler(cfg *config.Config, store *ledger.Store, blobs *blobstore.Store, sessions *uploads.Registry) *Handler {
	return &Handler{
		cfg:       cfg,
		ledger:    store,
		blobs:     blobs,
		sessions:  sessions,
		startTime: time.Now(),
	}
}
