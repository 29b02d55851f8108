// Tapedeck - Recordings Ingest Mock API
// Copyright 2026 Tapedeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tapedeck/tapedeck

package blobstore

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewCreatesDirectory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "storage")
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.Dir() != dir {
		t.Errorf("expected dir %s, got %s", dir, s.Dir())
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("expected directory to exist: %v", err)
	}
}

func TestNewRejectsEmptyDir(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Error("expected error for empty directory")
	}
}

func TestFileNameDeterministic(t *testing.T) {
	t.Parallel()

	ref := "blob://s3/rec-bucket/tenants/tn_demo/recordings/2026/08/28/rec_abc/take1.wav"
	a := FileName(ref)
	b := FileName(ref)
	if a != b {
		t.Errorf("file name not deterministic: %s vs %s", a, b)
	}
	if !strings.HasSuffix(a, ".bin") {
		t.Errorf("expected .bin suffix, got %s", a)
	}
	if len(a) != 32+len(".bin") {
		t.Errorf("expected 32 hex chars before extension, got %s", a)
	}
	if FileName("blob://other") == a {
		t.Error("different refs should map to different files")
	}
}

func TestWriteAndOpen(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ref := "blob://s3/rec-bucket/x/take1.wav"
	payload := "RIFF....WAVEfmt "

	path, n, err := s.Write(ref, strings.NewReader(payload))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != int64(len(payload)) {
		t.Errorf("expected %d bytes written, got %d", len(payload), n)
	}
	if path != s.PathFor(ref) {
		t.Errorf("expected path %s, got %s", s.PathFor(ref), path)
	}

	f, err := s.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(got) != payload {
		t.Errorf("payload round trip mismatch: %q", got)
	}
}

func TestWriteReplacesExisting(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ref := "blob://s3/rec-bucket/x/take1.wav"
	if _, _, err := s.Write(ref, strings.NewReader("first")); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	path, _, err := s.Write(ref, strings.NewReader("second upload"))
	if err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(got) != "second upload" {
		t.Errorf("expected last write to win, got %q", got)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, _, err := s.Write("blob://a", strings.NewReader("data")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".upload-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestRemoveMissingFile(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// Must not panic or error on a path that never existed.
	s.Remove(filepath.Join(s.Dir(), "no-such-file.bin"))
	s.Remove("")
}

func TestRemoveDeletesFile(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	path, _, err := s.Write("blob://doomed", strings.NewReader("bytes"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	s.Remove(path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected file to be removed, stat err: %v", err)
	}
}
