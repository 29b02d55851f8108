// Tapedeck - Recordings Ingest Mock API
// Copyright 2026 Tapedeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tapedeck/tapedeck

package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tapedeck/tapedeck/internal/ledger"
	"github.com/tapedeck/tapedeck/internal/logging"
)

// GetBatch handles GET /batches/{batchID}: the poll endpoint of the
// two-phase flow.
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	view, err := h.ledger.GetBatch(r.Context(), batchID)
	if err != nil {
		if errors.Is(err, ledger.ErrBatchNotFound) {
			respondError(w, http.StatusNotFound, CodeNotFound, "Batch not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to load batch", err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// DeleteBatch handles DELETE /batches/{batchID}: cascade removal of the
// batch, its recordings, blob rows, and payload files.
func (h *Handler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	err := h.ledger.DeleteBatch(r.Context(), batchID, h.blobs)
	if err != nil {
		if errors.Is(err, ledger.ErrBatchNotFound) {
			respondError(w, http.StatusNotFound, CodeNotFound, "Batch not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to delete batch", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListBatches handles GET /batches: the reporting projection of every batch
// with its recordings and blob details, newest batch first.
func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	views, err := h.ledger.ListBatches(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to list batches", err)
		return
	}

	respondJSON(w, http.StatusOK, views)
}

// Media handles GET /media/{recordingID}, streaming a committed recording's
// payload with its stored content type.
func (h *Handler) Media(w http.ResponseWriter, r *http.Request) {
	recordingID := chi.URLParam(r, "recordingID")

	blob, err := h.ledger.GetRecordingBlob(r.Context(), recordingID)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrRecordingNotFound):
			respondError(w, http.StatusNotFound, CodeNotFound, "Recording not found", nil)
		case errors.Is(err, ledger.ErrBlobMissing):
			respondError(w, http.StatusNotFound, CodeNotFound, "Media not found", nil)
		default:
			respondError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to resolve media", err)
		}
		return
	}

	f, err := h.blobs.Open(blob.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			respondError(w, http.StatusNotFound, CodeNotFound, "Media file not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, CodeInternalError, "Failed to open media", err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(blob.SizeBytes, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).
			Str("recording_id", recordingID).
			Msg("Failed to stream media")
	}
}
