// Tapedeck - Recordings Ingest Mock API
// Copyright 2026 Tapedeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tapedeck/tapedeck

// Package models defines the request and response payloads of the ingest API.
//
// The two-phase flow these types describe:
//
//  1. POST /uploads/presign with filenames returns one upload slot per item,
//     each carrying an upload_url and the final blob_ref the bytes will live
//     under.
//  2. PUT to each upload_url pushes the bytes.
//  3. POST /recordings registers metadata referencing the blob_refs; the
//     server verifies each blob exists and is bound to the target batch.
//  4. GET /batches/{id} polls batch status.
package models

import (
	"time"
)

// PresignItem describes one file the client wants to upload.
type PresignItem struct {
	Filename    string `json:"filename" validate:"required,min=1,max=255"`
	ContentType string `json:"contentType" validate:"required,min=1"`
}

// PresignRequest asks for upload slots, optionally appending to an
// existing batch. The batch ID is not shape-checked here: any unknown or
// malformed ID answers NotFound from the ledger lookup.
type PresignRequest struct {
	BatchID string        `json:"batch_id,omitempty"`
	Items   []PresignItem `json:"items" validate:"required,min=1,max=10,dive"`
}

// PresignedItem is one issued upload slot.
type PresignedItem struct {
	TempID          string            `json:"temp_id"`
	Method          string            `json:"method"`
	UploadURL       string            `json:"upload_url"`
	RequiredHeaders map[string]string `json:"required_headers"`
	BlobRef         string            `json:"blob_ref"`
}

// PresignResponse carries the issued slots and the batch they are bound to.
type PresignResponse struct {
	BatchID          string          `json:"batch_id"`
	ExpiresInSeconds int             `json:"expires_in_seconds"`
	Items            []PresignedItem `json:"items"`
}

// RecordingItem registers metadata for one uploaded blob.
type RecordingItem struct {
	ClientItemID string                 `json:"client_item_id" validate:"required,min=1"`
	BlobRef      string                 `json:"blob_ref" validate:"required,min=1"`
	Data         map[string]interface{} `json:"data" validate:"required"`
}

// RecordingsRequest commits recording metadata to a batch. The idempotency
// key lets clients retry the call safely; a replayed request returns the
// originally committed items.
type RecordingsRequest struct {
	BatchID        string          `json:"batch_id,omitempty"`
	IdempotencyKey string          `json:"idempotency_key" validate:"required,min=8"`
	Items          []RecordingItem `json:"items" validate:"required,min=1,max=10,dive"`
}

// RecordingStatus is the per-item view returned by commit and poll calls.
type RecordingStatus struct {
	ClientItemID string `json:"client_item_id"`
	RecordingID  string `json:"recording_id"`
	Status       string `json:"status"`
}

// PollInfo points the client at the batch polling endpoint.
type PollInfo struct {
	Href string `json:"href"`
}

// RecordingsResponse is the result of a commit (or its idempotent replay).
type RecordingsResponse struct {
	BatchID string            `json:"batch_id"`
	Status  string            `json:"status"`
	Items   []RecordingStatus `json:"items"`
	Poll    PollInfo          `json:"poll"`
}

// BatchStatusResponse is the poll view of a batch.
type BatchStatusResponse struct {
	BatchID string            `json:"batch_id"`
	Status  string            `json:"status"`
	Items   []RecordingStatus `json:"items"`
}

// RecordingView is the reporting projection of a recording joined with its
// blob, as returned by GET /batches.
type RecordingView struct {
	RecordingID  string                 `json:"recording_id"`
	ClientItemID string                 `json:"client_item_id"`
	Status       string                 `json:"status"`
	Metadata     map[string]interface{} `json:"metadata"`
	SizeBytes    int64                  `json:"size_bytes"`
	ContentType  string                 `json:"content_type"`
	MediaURL     string                 `json:"media_url"`
}

// BatchView groups a batch with its recordings for reporting.
type BatchView struct {
	BatchID    string          `json:"batch_id"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	Recordings []RecordingView `json:"recordings"`
}

// HealthResponse is the liveness view returned by GET /healthz.
type HealthResponse struct {
	OK            bool    `json:"ok"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Database      string  `json:"database"`
}
