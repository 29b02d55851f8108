// Tapedeck - Recordings Ingest Mock API
// Copyright 2026 Tapedeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tapedeck/tapedeck

package ledger

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tapedeck/tapedeck/internal/ids"
	"github.com/tapedeck/tapedeck/internal/logging"
	"github.com/tapedeck/tapedeck/internal/metrics"
	"github.com/tapedeck/tapedeck/internal/models"
)

// CommitResult is the outcome of CommitRecordings. Replayed marks responses
// served from a previously committed request.
type CommitResult struct {
	BatchID  string
	Status   string
	Items    []models.RecordingStatus
	Replayed bool
}

// fingerprintVersion tags the request fingerprint layout so a future change
// to the hashed fields cannot collide with keys minted under the old layout.
const fingerprintVersion = "v1"

// requestFingerprint hashes the identity of a commit request: the target
// batch plus each item's client_item_id and blob_ref. Fields are length
// prefixed, so no two distinct requests can serialize to the same bytes.
func requestFingerprint(batchID string, items []models.RecordingItem) string {
	h := sha256.New()
	h.Write([]byte(fingerprintVersion))
	writeField := func(f string) {
		var lenBuf [8]byte
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(f)))
		h.Write(lenBuf[:])
		h.Write([]byte(f))
	}
	for _, it := range items {
		writeField(it.ClientItemID)
		writeField(it.BlobRef)
	}
	writeField(batchID)
	return hex.EncodeToString(h.Sum(nil))
}

// IdemKey builds the scoped idempotency key a commit is stored under.
func IdemKey(tenantID, idempotencyKey, batchID string, items []models.RecordingItem) string {
	return strings.Join([]string{tenantID, idempotencyKey, requestFingerprint(batchID, items)}, ":")
}

// CommitRecordings registers metadata for uploaded blobs against a batch.
//
// The call is idempotent: if a batch already carries this request's idem
// key, the originally committed items are returned verbatim and nothing is
// validated or written again. Otherwise every item's blob must exist and be
// bound to the target batch, the batch flips to pending, and one queued
// recording row is inserted per item, all in a single transaction.
//
// Concurrent identical commits are serialized by the write transaction: the
// batch's idem_key is re-checked inside it, so the loser of a same-batch
// race sees the winner's key on retry and returns the replay instead of
// inserting a second time. The unique index on idem_key additionally covers
// the fresh-batch race, where two different batch rows compete for one key.
func (s *Store) CommitRecordings(ctx context.Context, tenantID string, req *models.RecordingsRequest) (*CommitResult, error) {
	defer metrics.RecordLedgerOperation("commit_recordings", time.Now())

	ctx = ensureContext(ctx)

	batchID, err := s.EnsureOpenBatch(ctx, req.BatchID)
	if err != nil {
		return nil, err
	}

	idemKey := IdemKey(tenantID, req.IdempotencyKey, batchID, req.Items)

	// Replay lookup is global across batches: retrying against a fresh
	// batch ID still finds the original commit.
	if res, err := s.lookupReplay(ctx, idemKey); err != nil {
		return nil, err
	} else if res != nil {
		return res, nil
	}

	for _, it := range req.Items {
		if err := s.verifyBlobBinding(ctx, it.ClientItemID, it.BlobRef, batchID); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	statuses := make([]models.RecordingStatus, 0, len(req.Items))
	var replayed bool

	commitErr := retryOnBusy(ctx, func() error {
		replayed = false

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin commit tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		// Re-check inside the transaction: a concurrent identical commit
		// against the same batch row never trips the unique index (both
		// would set the same key on the same row), so the loser of that
		// race surfaces here on retry, after its stale snapshot forces
		// the busy path.
		var existingKey sql.NullString
		if err := tx.QueryRowContext(ctx,
			`SELECT idem_key FROM batches WHERE id = ?`, batchID,
		).Scan(&existingKey); err != nil {
			return fmt.Errorf("recheck idempotency key: %w", err)
		}
		if existingKey.Valid && existingKey.String == idemKey {
			replayed = true
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE batches SET status = ?, idem_key = ? WHERE id = ?`,
			BatchStatusPending, idemKey, batchID,
		); err != nil {
			return fmt.Errorf("mark batch pending: %w", err)
		}

		statuses = statuses[:0]
		for _, it := range req.Items {
			dataJSON, err := json.Marshal(it.Data)
			if err != nil {
				return fmt.Errorf("encode recording data: %w", err)
			}
			recID := ids.NewRecording()
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO recordings (id, batch_id, tenant_id, client_item_id, blob_ref, status, data_json, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				recID, batchID, tenantID, it.ClientItemID, it.BlobRef,
				RecordingStatusQueued, string(dataJSON), formatTime(now),
			); err != nil {
				return fmt.Errorf("insert recording: %w", err)
			}
			statuses = append(statuses, models.RecordingStatus{
				ClientItemID: it.ClientItemID,
				RecordingID:  recID,
				Status:       RecordingStatusQueued,
			})
		}
		return tx.Commit()
	})
	if commitErr != nil {
		// The unique index on idem_key backstops the fresh-batch race,
		// where two different batch rows compete for one key. The loser
		// re-reads the winner's result.
		if isUniqueViolation(commitErr) {
			if res, err := s.lookupReplay(ctx, idemKey); err == nil && res != nil {
				return res, nil
			}
		}
		return nil, commitErr
	}
	if replayed {
		res, err := s.lookupReplay(ctx, idemKey)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, fmt.Errorf("idempotency key vanished during commit")
		}
		return res, nil
	}

	metrics.RecordingsCommitted.Add(float64(len(statuses)))
	logging.Ctx(ctx).Info().
		Str("batch_id", batchID).
		Int("items", len(statuses)).
		Msg("Committed recordings")

	return &CommitResult{
		BatchID: batchID,
		Status:  BatchStatusPending,
		Items:   statuses,
	}, nil
}

// lookupReplay finds a batch already committed under idemKey and rebuilds
// the original response from its rows. Returns nil when no commit exists.
func (s *Store) lookupReplay(ctx context.Context, idemKey string) (*CommitResult, error) {
	var batchID, status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, status FROM batches WHERE idem_key = ?`, idemKey,
	).Scan(&batchID, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}

	items, err := s.batchItems(ctx, batchID)
	if err != nil {
		return nil, err
	}

	metrics.IdempotentReplays.Inc()
	logging.Ctx(ctx).Debug().Str("batch_id", batchID).Msg("Replayed committed request")

	return &CommitResult{
		BatchID:  batchID,
		Status:   status,
		Items:    items,
		Replayed: true,
	}, nil
}

// verifyBlobBinding checks that an item's blob was uploaded and presigned
// against the batch being committed to.
func (s *Store) verifyBlobBinding(ctx context.Context, clientItemID, blobRef, batchID string) error {
	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM blobs WHERE blob_ref = ?`, blobRef,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check blob: %w", err)
	}
	if exists == 0 {
		return &ItemConflictError{ClientItemID: clientItemID, Err: ErrBlobMissing}
	}

	var boundBatch string
	err := s.db.QueryRowContext(ctx,
		`SELECT batch_id FROM batch_uploads WHERE blob_ref = ?`, blobRef,
	).Scan(&boundBatch)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check blob binding: %w", err)
	}
	if boundBatch != batchID {
		return &ItemConflictError{ClientItemID: clientItemID, Err: ErrBlobNotBound}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed")
}
