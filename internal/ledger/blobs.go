// Tapedeck - Recordings Ingest Mock API
// Copyright 2026 Tapedeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tapedeck/tapedeck

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tapedeck/tapedeck/internal/metrics"
)

// BindBlobToBatch records, at presign time, which batch a blob ref belongs
// to. Re-presigning the same ref rebinds it; the last binding wins.
func (s *Store) BindBlobToBatch(ctx context.Context, blobRef, batchID string) error {
	defer metrics.RecordLedgerOperation("bind_blob", time.Now())

	_, err := s.execWithRetry(ctx,
		`INSERT OR REPLACE INTO batch_uploads (blob_ref, batch_id, created_at) VALUES (?, ?, ?)`,
		blobRef, batchID, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("bind blob to batch: %w", err)
	}
	return nil
}

// BindBlobsToBatch binds a presign request's refs in one transaction, so a
// partially bound batch is never visible when one insert fails.
func (s *Store) BindBlobsToBatch(ctx context.Context, blobRefs []string, batchID string) error {
	defer metrics.RecordLedgerOperation("bind_blobs", time.Now())

	ctx = ensureContext(ctx)
	now := formatTime(time.Now())

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin bind tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		for _, ref := range blobRefs {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO batch_uploads (blob_ref, batch_id, created_at) VALUES (?, ?, ?)`,
				ref, batchID, now,
			); err != nil {
				return fmt.Errorf("bind blob to batch: %w", err)
			}
		}
		return tx.Commit()
	})
}

// RecordBlob registers an uploaded payload. A repeated upload for the same
// ref replaces the previous row, matching the file overwrite in storage.
func (s *Store) RecordBlob(ctx context.Context, blob Blob) error {
	defer metrics.RecordLedgerOperation("record_blob", time.Now())

	uploadedAt := blob.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now()
	}
	_, err := s.execWithRetry(ctx,
		`INSERT OR REPLACE INTO blobs (blob_ref, path, size_bytes, content_type, uploaded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		blob.BlobRef, blob.Path, blob.SizeBytes, blob.ContentType, formatTime(uploadedAt),
	)
	if err != nil {
		return fmt.Errorf("record blob: %w", err)
	}
	return nil
}

// GetBlob fetches the bookkeeping row for a blob ref.
func (s *Store) GetBlob(ctx context.Context, blobRef string) (*Blob, error) {
	defer metrics.RecordLedgerOperation("get_blob", time.Now())

	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT blob_ref, path, size_bytes, content_type, uploaded_at FROM blobs WHERE blob_ref = ?`,
		blobRef,
	)

	var b Blob
	var uploadedAt string
	if err := row.Scan(&b.BlobRef, &b.Path, &b.SizeBytes, &b.ContentType, &uploadedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBlobMissing
		}
		return nil, fmt.Errorf("get blob: %w", err)
	}
	b.UploadedAt = parseTime(uploadedAt)
	return &b, nil
}

// GetRecordingBlob resolves a recording ID to its stored payload, for the
// media endpoint.
func (s *Store) GetRecordingBlob(ctx context.Context, recordingID string) (*Blob, error) {
	defer metrics.RecordLedgerOperation("get_recording_blob", time.Now())

	ctx = ensureContext(ctx)

	var blobRef string
	err := s.db.QueryRowContext(ctx,
		`SELECT blob_ref FROM recordings WHERE id = ?`, recordingID,
	).Scan(&blobRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordingNotFound
		}
		return nil, fmt.Errorf("get recording: %w", err)
	}

	return s.GetBlob(ctx, blobRef)
}
