// Tapedeck - Recordings Ingest Mock API
// Copyright 2026 Tapedeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tapedeck/tapedeck

package models

import (
	"time"
)

// APIResponse is the standardized wrapper for error responses.
// Successful ingest responses return their documented payloads directly
// (clients depend on top-level batch_id fields); errors share this envelope
// so every failure carries a machine-readable code.
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {
//	    "code": "CONFLICT",
//	    "message": "Blob not found for client_item_id=c1",
//	    "details": {"client_item_id": "c1"}
//	  },
//	  "metadata": {"timestamp": "2026-08-28T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data,omitempty"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// APIError represents an error response with structured error details.
//
// Error codes used by the API:
//   - UNAUTHORIZED: missing or invalid X-API-Key
//   - VALIDATION_ERROR: invalid request payload or parameters
//   - NOT_FOUND: batch, recording, or blob does not exist
//   - CONFLICT: batch not writable, blob missing, or blob bound elsewhere
//   - UPLOAD_ERROR: invalid, expired, or mismatched upload attempt
//   - DATABASE_ERROR: ledger operation failure
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
