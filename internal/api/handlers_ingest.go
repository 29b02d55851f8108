// Tapedeck - Recordings Ingest Mock API
// Copyright 2026 Tapedeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tapedeck/tapedeck

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tapedeck/tapedeck/internal/auth"
	"github.com/tapedeck/tapedeck/internal/ids"
	"github.com/tapedeck/tapedeck/internal/ledger"
	"github.com/tapedeck/tapedeck/internal/logging"
	"github.com/tapedeck/tapedeck/internal/models"
)

// presignBodyLimit caps presign and commit request bodies. Metadata
// documents are small; anything near this size is a client bug.
const presignBodyLimit = 1 << 20

// safeFilename keeps letters, digits, dots, underscores and dashes, and
// replaces everything else, so client filenames cannot smuggle path
// components into a blob ref.
func safeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// buildBlobRef mints the stable object-store style address a payload will
// live under. The embedded recording ID keeps refs unique even when two
// uploads share a filename.
func buildBlobRef(tenantID, filename string, now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf("blob://s3/rec-bucket/tenants/%s/recordings/%04d/%02d/%02d/%s/%s",
		tenantID, now.Year(), int(now.Month()), now.Day(), ids.NewRecording(), safeFilename(filename))
}

// PresignUploads handles POST /uploads/presign. It resolves or creates the
// target batch, binds one blob ref per item to it, and issues a single-use
// upload session per item.
func (h *Handler) PresignUploads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.PresignRequest
	if err := decodeJSON(w, r, &req, presignBodyLimit); err != nil {
		respondError(w, http.StatusBadRequest, CodeValidationError, "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	tenantID := auth.TenantFromContext(ctx)

	batchID, err := h.ledger.EnsureOpenBatch(ctx, req.BatchID)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrBatchNotFound):
			respondError(w, http.StatusNotFound, CodeNotFound, "Batch not found", nil)
		case errors.Is(err, ledger.ErrBatchNotOpen):
			respondError(w, http.StatusConflict, CodeConflict, "Batch is not open", nil)
		default:
			respondError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to resolve batch", err)
		}
		return
	}

	now := time.Now()
	blobRefs := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		blobRefs = append(blobRefs, buildBlobRef(tenantID, item.Filename, now))
	}

	// Bindings land all-or-nothing. Sessions are created afterward; they
	// are in-memory only, and losing them just forces a re-presign.
	if err := h.ledger.BindBlobsToBatch(ctx, blobRefs, batchID); err != nil {
		respondError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to bind uploads", err)
		return
	}

	items := make([]models.PresignedItem, 0, len(req.Items))
	for i, item := range req.Items {
		blobRef := blobRefs[i]
		session := h.sessions.Create(blobRef, item.ContentType, tenantID, batchID)
		items = append(items, models.PresignedItem{
			TempID:    ids.NewTemp(),
			Method:    http.MethodPut,
			UploadURL: "/mock-upload/" + session.ID + "?token=" + session.Token,
			RequiredHeaders: map[string]string{
				"Content-Type": item.ContentType,
			},
			BlobRef: blobRef,
		})
	}

	logging.Ctx(ctx).Info().
		Str("batch_id", batchID).
		Int("items", len(items)).
		Msg("Issued upload slots")

	respondJSON(w, http.StatusOK, &models.PresignResponse{
		BatchID:          batchID,
		ExpiresInSeconds: int(h.sessions.TTL().Seconds()),
		Items:            items,
	})
}

// MockUpload handles PUT /mock-upload/{uploadID}?token=. It plays the role
// of the object store: validate the session, enforce the declared content
// type, stream the bytes to disk, and register the blob in the ledger. The
// session is consumed only after a fully successful upload, so a rejected
// or failed PUT can be retried against the same URL.
func (h *Handler) MockUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	uploadID := chi.URLParam(r, "uploadID")
	token := r.URL.Query().Get("token")

	session, err := h.sessions.Validate(uploadID, token)
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeUploadError, "Invalid or expired upload URL", nil)
		return
	}

	if mediaType(r.Header.Get("Content-Type")) != mediaType(session.ContentType) {
		respondError(w, http.StatusBadRequest, CodeUploadError,
			fmt.Sprintf("Content-Type must be %s", session.ContentType), nil)
		return
	}

	body := http.MaxBytesReader(w, r.Body, h.cfg.Uploads.MaxBodyBytes)
	path, size, err := h.blobs.Write(session.BlobRef, body)
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeUploadError, "Failed to store upload", err)
		return
	}

	if err := h.ledger.RecordBlob(ctx, ledger.Blob{
		BlobRef:     session.BlobRef,
		Path:        path,
		SizeBytes:   size,
		ContentType: session.ContentType,
	}); err != nil {
		respondError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to register upload", err)
		return
	}

	h.sessions.Consume(session.ID)

	logging.Ctx(ctx).Info().
		Str("upload_id", uploadID).
		Str("batch_id", session.BatchID).
		Int64("size_bytes", size).
		Msg("Stored upload")

	w.WriteHeader(http.StatusCreated)
}

// CreateRecordings handles POST /recordings: the commit step of the
// two-phase flow. Uploaded blobs become queued recordings on the batch, and
// retries carrying the same idempotency key get the original response back.
func (h *Handler) CreateRecordings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.RecordingsRequest
	if err := decodeJSON(w, r, &req, presignBodyLimit); err != nil {
		respondError(w, http.StatusBadRequest, CodeValidationError, "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	tenantID := auth.TenantFromContext(ctx)

	res, err := h.ledger.CommitRecordings(ctx, tenantID, &req)
	if err != nil {
		var conflict *ledger.ItemConflictError
		switch {
		case errors.Is(err, ledger.ErrBatchNotFound):
			respondError(w, http.StatusNotFound, CodeNotFound, "Batch not found", nil)
		case errors.Is(err, ledger.ErrBatchNotOpen):
			respondError(w, http.StatusConflict, CodeConflict, "Batch is not open", nil)
		case errors.As(err, &conflict):
			respondError(w, http.StatusConflict, CodeConflict, conflict.Error(), nil)
		default:
			respondError(w, http.StatusInternalServerError, CodeDatabaseError, "Failed to commit recordings", err)
		}
		return
	}

	respondJSON(w, http.StatusAccepted, &models.RecordingsResponse{
		BatchID: res.BatchID,
		Status:  res.Status,
		Items:   res.Items,
		Poll:    models.PollInfo{Href: "/batches/" + res.BatchID},
	})
}
