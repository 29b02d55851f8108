// Tapedeck - Recordings Ingest Mock API
// Copyright 2026 Tapedeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tapedeck/tapedeck

package ledger

import (
	"errors"
	"fmt"
)

// Sentinel errors for the HTTP layer to map onto status codes.
var (
	// ErrBatchNotFound means the referenced batch ID does not exist.
	ErrBatchNotFound = errors.New("batch not found")

	// ErrBatchNotOpen means the batch exists but no longer accepts
	// presigns or commits.
	ErrBatchNotOpen = errors.New("batch is not open")

	// ErrBlobMissing means a commit referenced a blob ref with no
	// uploaded bytes behind it.
	ErrBlobMissing = errors.New("blob not found")

	// ErrBlobNotBound means the blob exists but was presigned against a
	// different batch.
	ErrBlobNotBound = errors.New("blob not linked to batch")

	// ErrRecordingNotFound means the referenced recording ID does not
	// exist.
	ErrRecordingNotFound = errors.New("recording not found")
)

// ItemConflictError ties a commit verification failure to the offending
// item, so the client can see which client_item_id to fix.
type ItemConflictError struct {
	ClientItemID string
	Err          error
}

func (e *ItemConflictError) Error() string {
	return fmt.Sprintf("%s for client_item_id=%s", e.Err.Error(), e.ClientItemID)
}

func (e *ItemConflictError) Unwrap() error {
	return e.Err
}
