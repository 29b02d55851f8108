// Tapedeck - Recordings Ingest Mock API
// Copyright 2026 Tapedeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tapedeck/tapedeck

// Package blobstore persists uploaded payload bytes on the local filesystem.
//
// File names are derived from the blob ref, so the store never trusts
// client-supplied paths. Row-level bookkeeping (size, content type) lives in
// the ledger; this package only moves bytes.
package blobstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tapedeck/tapedeck/internal/logging"
	"github.com/tapedeck/tapedeck/internal/metrics"
)

// Store writes and serves blob payload files under a single directory.
type Store struct {
	dir string
}

// New creates the storage directory if needed and returns a store rooted
// there.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the storage root.
func (s *Store) Dir() string {
	return s.dir
}

// FileName derives the on-disk file name for a blob ref: the first 32 hex
// chars of its SHA-256 plus a .bin extension.
func FileName(blobRef string) string {
	sum := sha256.Sum256([]byte(blobRef))
	return hex.EncodeToString(sum[:])[:32] + ".bin"
}

// PathFor returns the absolute path a blob ref maps to.
func (s *Store) PathFor(blobRef string) string {
	return filepath.Join(s.dir, FileName(blobRef))
}

// Write streams r to the file for blobRef and returns the stored path and
// byte count. The write goes to a temp file first and is renamed into place,
// so a re-upload either fully replaces the previous payload or leaves it
// untouched.
func (s *Store) Write(blobRef string, r io.Reader) (string, int64, error) {
	dst := s.PathFor(blobRef)

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", 0, fmt.Errorf("failed to write blob payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", 0, fmt.Errorf("failed to close blob payload: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return "", 0, fmt.Errorf("failed to finalize blob payload: %w", err)
	}

	metrics.BlobsStored.Inc()
	metrics.UploadBytesTotal.Add(float64(n))

	return dst, n, nil
}

// Open opens a previously stored payload file for reading.
func (s *Store) Open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob payload: %w", err)
	}
	return f, nil
}

// Remove deletes a payload file. Missing files are not an error: deletes are
// best effort and a batch delete must proceed even when a file is already
// gone.
func (s *Store) Remove(path string) {
	if path == "" {
		return
	}
	err := os.Remove(path)
	switch {
	case err == nil:
		metrics.BlobFilesRemoved.Inc()
	case os.IsNotExist(err):
		// Already gone, nothing to do.
	default:
		metrics.BlobFileRemovalFailures.Inc()
		logging.Warn().Err(err).Str("path", path).Msg("Failed to remove blob file")
	}
}
