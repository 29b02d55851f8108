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

	json "github.com/goccy/go-json"

	"github.com/tapedeck/tapedeck/internal/ids"
	"github.com/tapedeck/tapedeck/internal/logging"
	"github.com/tapedeck/tapedeck/internal/metrics"
	"github.com/tapedeck/tapedeck/internal/models"
)

// FileRemover deletes a stored payload file. Implemented by the blob store;
// the ledger never touches the filesystem directly.
type FileRemover interface {
	Remove(path string)
}

// EnsureOpenBatch resolves the batch a presign or commit targets. Given an
// explicit ID, the batch must exist and still accept writes. Given none, a
// fresh open batch is created.
func (s *Store) EnsureOpenBatch(ctx context.Context, batchID string) (string, error) {
	defer metrics.RecordLedgerOperation("ensure_open_batch", time.Now())

	ctx = ensureContext(ctx)

	if batchID != "" {
		var status string
		err := s.db.QueryRowContext(ctx,
			`SELECT status FROM batches WHERE id = ?`, batchID,
		).Scan(&status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", ErrBatchNotFound
			}
			return "", fmt.Errorf("lookup batch: %w", err)
		}
		if status != BatchStatusOpen && status != BatchStatusPending {
			return "", ErrBatchNotOpen
		}
		return batchID, nil
	}

	id := ids.NewBatch()
	_, err := s.execWithRetry(ctx,
		`INSERT INTO batches (id, status, idem_key, created_at) VALUES (?, ?, NULL, ?)`,
		id, BatchStatusOpen, formatTime(time.Now()),
	)
	if err != nil {
		return "", fmt.Errorf("create batch: %w", err)
	}

	metrics.BatchesCreated.Inc()
	logging.Ctx(ctx).Debug().Str("batch_id", id).Msg("Created batch")
	return id, nil
}

// GetBatch returns the poll view of a batch with its recordings.
func (s *Store) GetBatch(ctx context.Context, batchID string) (*models.BatchStatusResponse, error) {
	defer metrics.RecordLedgerOperation("get_batch", time.Now())

	ctx = ensureContext(ctx)

	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM batches WHERE id = ?`, batchID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("lookup batch: %w", err)
	}

	items, err := s.batchItems(ctx, batchID)
	if err != nil {
		return nil, err
	}

	return &models.BatchStatusResponse{
		BatchID: batchID,
		Status:  status,
		Items:   items,
	}, nil
}

// batchItems returns the per-recording statuses of a batch in commit order.
func (s *Store) batchItems(ctx context.Context, batchID string) ([]models.RecordingStatus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT client_item_id, id, status FROM recordings
		 WHERE batch_id = ? ORDER BY created_at ASC, id ASC`,
		batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("list batch recordings: %w", err)
	}
	defer rows.Close()

	items := make([]models.RecordingStatus, 0)
	for rows.Next() {
		var it models.RecordingStatus
		if err := rows.Scan(&it.ClientItemID, &it.RecordingID, &it.Status); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recordings: %w", err)
	}
	return items, nil
}

// ListBatches returns the reporting projection: every batch, newest first,
// with its recordings joined against their blobs.
func (s *Store) ListBatches(ctx context.Context) ([]models.BatchView, error) {
	defer metrics.RecordLedgerOperation("list_batches", time.Now())

	ctx = ensureContext(ctx)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, created_at FROM batches ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	views := make([]models.BatchView, 0)
	for rows.Next() {
		var v models.BatchView
		var createdAt string
		if err := rows.Scan(&v.BatchID, &v.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		v.CreatedAt = parseTime(createdAt)
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}

	for i := range views {
		recs, err := s.batchRecordingViews(ctx, views[i].BatchID)
		if err != nil {
			return nil, err
		}
		views[i].Recordings = recs
	}
	return views, nil
}

func (s *Store) batchRecordingViews(ctx context.Context, batchID string) ([]models.RecordingView, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.client_item_id, r.status, r.data_json,
		        COALESCE(b.size_bytes, 0), COALESCE(b.content_type, '')
		 FROM recordings r
		 LEFT JOIN blobs b ON b.blob_ref = r.blob_ref
		 WHERE r.batch_id = ?
		 ORDER BY r.created_at ASC, r.id ASC`,
		batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("list recording views: %w", err)
	}
	defer rows.Close()

	recs := make([]models.RecordingView, 0)
	for rows.Next() {
		var rv models.RecordingView
		var dataJSON string
		if err := rows.Scan(&rv.RecordingID, &rv.ClientItemID, &rv.Status, &dataJSON,
			&rv.SizeBytes, &rv.ContentType); err != nil {
			return nil, fmt.Errorf("scan recording view: %w", err)
		}
		if err := json.Unmarshal([]byte(dataJSON), &rv.Metadata); err != nil {
			rv.Metadata = map[string]interface{}{}
		}
		rv.MediaURL = "/media/" + rv.RecordingID
		recs = append(recs, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recording views: %w", err)
	}
	return recs, nil
}

// DeleteBatch removes a batch and everything hanging off it: recordings,
// blob rows, presign bindings, and the payload files themselves. Files are
// removed after the rows commit and only best effort, so a missing file
// never blocks the cascade.
func (s *Store) DeleteBatch(ctx context.Context, batchID string, remover FileRemover) error {
	defer metrics.RecordLedgerOperation("delete_batch", time.Now())

	ctx = ensureContext(ctx)

	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM batches WHERE id = ?`, batchID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("lookup batch: %w", err)
	}
	if exists == 0 {
		return ErrBatchNotFound
	}

	// Committed recordings and uncommitted presign bindings both contribute
	// blob refs to clean up.
	rows, err := s.db.QueryContext(ctx,
		`SELECT b.blob_ref, b.path FROM blobs b
		 WHERE b.blob_ref IN (
		     SELECT blob_ref FROM recordings WHERE batch_id = ?
		     UNION
		     SELECT blob_ref FROM batch_uploads WHERE batch_id = ?
		 )`,
		batchID, batchID,
	)
	if err != nil {
		return fmt.Errorf("collect batch blobs: %w", err)
	}
	var refs []string
	var paths []string
	for rows.Next() {
		var ref, path string
		if err := rows.Scan(&ref, &path); err != nil {
			rows.Close()
			return fmt.Errorf("scan batch blob: %w", err)
		}
		refs = append(refs, ref)
		paths = append(paths, path)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate batch blobs: %w", err)
	}
	rows.Close()

	err = retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin delete tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		for _, ref := range refs {
			if _, err := tx.ExecContext(ctx, `DELETE FROM blobs WHERE blob_ref = ?`, ref); err != nil {
				return fmt.Errorf("delete blob row: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM batch_uploads WHERE batch_id = ?`, batchID); err != nil {
			return fmt.Errorf("delete batch bindings: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM recordings WHERE batch_id = ?`, batchID); err != nil {
			return fmt.Errorf("delete recordings: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM batches WHERE id = ?`, batchID); err != nil {
			return fmt.Errorf("delete batch: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		return err
	}

	if remover != nil {
		for _, p := range paths {
			remover.Remove(p)
		}
	}

	metrics.BatchesDeleted.Inc()
	logging.Ctx(ctx).Info().
		Str("batch_id", batchID).
		Int("blobs_removed", len(paths)).
		Msg("Deleted batch")
	return nil
}
