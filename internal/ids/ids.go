// Tapedeck - Recordings Ingest Mock API
// Copyright 2026 Tapedeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tapedeck/tapedeck

// Package ids generates the prefixed identifiers used across the API:
// rb_ (batch), rec_ (recording), upl_ (upload session), tok_ (upload token),
// tmp_ (presign slot).
package ids

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// Prefixes for the identifier families.
const (
	PrefixBatch     = "rb"
	PrefixRecording = "rec"
	PrefixUpload    = "upl"
	PrefixToken     = "tok"
	PrefixTemp      = "tmp"
)

// New returns a fresh identifier of the form "<prefix>_<32 hex chars>".
func New(prefix string) string {
	u := uuid.New()
	return prefix + "_" + hex.EncodeToString(u[:])
}

// NewBatch returns a new batch ID.
func NewBatch() string { return New(PrefixBatch) }

// NewRecording returns a new recording ID.
func NewRecording() string { return New(PrefixRecording) }

// NewUpload returns a new upload session ID.
func NewUpload() string { return New(PrefixUpload) }

// NewToken returns a new upload token.
func NewToken() string { return New(PrefixToken) }

// NewTemp returns a short slot ID for presign responses.
// Matches the truncated form clients see in examples (tmp_ + 8 chars).
func NewTemp() string {
	return New(PrefixTemp)[:12]
}
