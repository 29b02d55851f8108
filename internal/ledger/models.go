// Tapedeck - Recordings Ingest Mock API
// Copyright 2026 Tapedeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tapedeck/tapedeck

package ledger

import "time"

// Batch lifecycle statuses. A batch opens at presign time and flips to
// pending once recordings are committed against it.
const (
	BatchStatusOpen    = "open"
	BatchStatusPending = "pending"
)

// RecordingStatusQueued is the status every committed recording starts in.
// A real pipeline would advance it; the mock leaves it queued.
const RecordingStatusQueued = "queued"

// Batch is one ingest batch row.
type Batch struct {
	ID        string
	Status    string
	IdemKey   string
	CreatedAt time.Time
}

// Blob is the bookkeeping row for one uploaded payload.
type Blob struct {
	BlobRef     string
	Path        string
	SizeBytes   int64
	ContentType string
	UploadedAt  time.Time
}

// Recording is one committed recording row. DataJSON holds the raw client
// metadata document.
type Recording struct {
	ID           string
	BatchID      string
	TenantID     string
	ClientItemID string
	BlobRef      string
	Status       string
	DataJSON     string
	CreatedAt    time.Time
}
