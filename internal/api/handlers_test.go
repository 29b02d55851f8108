// Tapedeck - Recordings Ingest Mock API
// Copyright 2026 Tapedeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tapedeck/tapedeck

package api

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tapedeck/tapedeck/internal/auth"
	"github.com/tapedeck/tapedeck/internal/blobstore"
	"github.com/tapedeck/tapedeck/internal/config"
	"github.com/tapedeck/tapedeck/internal/ledger"
	"github.com/tapedeck/tapedeck/internal/models"
	"github.com/tapedeck/tapedeck/internal/uploads"
)

const (
	testAPIKey = "test_12345"
	testTenant = "tn_demo"
)

type testEnv struct {
	server  *httptest.Server
	storage string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	storageDir := filepath.Join(dir, "storage")

	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:    "127.0.0.1",
			Port:    0,
			Timeout: 30 * time.Second,
		},
		Security: config.SecurityConfig{
			APIKey:            testAPIKey,
			TenantID:          testTenant,
			RateLimitDisabled: true,
		},
		Database: config.DatabaseConfig{
			Path: filepath.Join(dir, "ledger.db"),
		},
		Storage: config.StorageConfig{
			Dir: storageDir,
		},
		Uploads: config.UploadsConfig{
			PresignTTL:    10 * time.Minute,
			MaxBodyBytes:  1 << 20,
			SweepInterval: time.Hour,
		},
	}

	store, err := ledger.Open(cfg.Database.Path)
	if err != nil {
		t.Fatalf("ledger open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	blobs, err := blobstore.New(cfg.Storage.Dir)
	if err != nil {
		t.Fatalf("blobstore init failed: %v", err)
	}

	sessions := uploads.NewRegistry(cfg.Uploads.PresignTTL, cfg.Uploads.SweepInterval)
	t.Cleanup(sessions.Stop)

	router := NewRouter(cfg, NewHandler(cfg, store, blobs, sessions))
	t.Cleanup(router.Stop)

	server := httptest.NewServer(router.SetupChi())
	t.Cleanup(server.Close)

	return &testEnv{server: server, storage: storageDir}
}

func (e *testEnv) request(t *testing.T, method, path string, body interface{}, headers map[string]string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request failed: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request failed: %v", err)
	}
	req.Header.Set(auth.HeaderAPIKey, testAPIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
}

func (e *testEnv) presign(t *testing.T, req *models.PresignRequest) *models.PresignResponse {
	t.Helper()
	resp := e.request(t, http.MethodPost, "/uploads/presign", req, nil)
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("presign failed with %d: %s", resp.StatusCode, body)
	}
	var out models.PresignResponse
	decodeBody(t, resp, &out)
	return &out
}

func (e *testEnv) upload(t *testing.T, item models.PresignedItem, payload, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, e.server.URL+item.UploadURL, strings.NewReader(payload))
	if err != nil {
		t.Fatalf("build upload failed: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestPresignUploads(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	out := env.presign(t, &models.PresignRequest{
		Items: []models.PresignItem{
			{Filename: "take one!.wav", ContentType: "audio/wav"},
			{Filename: "take2.flac", ContentType: "audio/flac"},
		},
	})

	if !strings.HasPrefix(out.BatchID, "rb_") {
		t.Errorf("expected rb_ batch, got %q", out.BatchID)
	}
	if out.ExpiresInSeconds != 600 {
		t.Errorf("expected 600s expiry, got %d", out.ExpiresInSeconds)
	}
	if len(out.Items) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(out.Items))
	}

	first := out.Items[0]
	if !strings.HasPrefix(first.TempID, "tmp_") {
		t.Errorf("expected tmp_ slot ID, got %q", first.TempID)
	}
	if first.Method != http.MethodPut {
		t.Errorf("expected PUT, got %q", first.Method)
	}
	if !strings.Contains(first.UploadURL, "/mock-upload/upl_") || !strings.Contains(first.UploadURL, "token=tok_") {
		t.Errorf("unexpected upload URL: %q", first.UploadURL)
	}
	if first.RequiredHeaders["Content-Type"] != "audio/wav" {
		t.Errorf("unexpected required headers: %v", first.RequiredHeaders)
	}
	if !strings.HasPrefix(first.BlobRef, "blob://s3/rec-bucket/tenants/tn_demo/recordings/") {
		t.Errorf("unexpected blob ref: %q", first.BlobRef)
	}
	// Client-supplied punctuation must not survive into the ref.
	if !strings.HasSuffix(first.BlobRef, "/take_one_.wav") {
		t.Errorf("filename not sanitized: %q", first.BlobRef)
	}
}

func TestPresignValidation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	tooMany := make([]models.PresignItem, 11)
	for i := range tooMany {
		tooMany[i] = models.PresignItem{Filename: "f.wav", ContentType: "audio/wav"}
	}

	tests := []struct {
		name string
		req  *models.PresignRequest
	}{
		{"no items", &models.PresignRequest{}},
		{"too many items", &models.PresignRequest{Items: tooMany}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.request(t, http.MethodPost, "/uploads/presign", tt.req, nil)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
			var envelope models.APIResponse
			decodeBody(t, resp, &envelope)
			if envelope.Error == nil || envelope.Error.Code != CodeValidationError {
				t.Errorf("expected VALIDATION_ERROR envelope, got %+v", envelope.Error)
			}
		})
	}
}

func TestPresignUnknownBatch(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	// Malformed IDs are just unknown IDs; both answer NotFound.
	for _, batchID := range []string{"rb_00000000000000000000000000000000", "batch-1"} {
		resp := env.request(t, http.MethodPost, "/uploads/presign", &models.PresignRequest{
			BatchID: batchID,
			Items:   []models.PresignItem{{Filename: "f.wav", ContentType: "audio/wav"}},
		}, nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("batch %q: expected 404, got %d", batchID, resp.StatusCode)
		}
	}
}

func TestPresignAppendsToExistingBatch(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	first := env.presign(t, &models.PresignRequest{
		Items: []models.PresignItem{{Filename: "a.wav", ContentType: "audio/wav"}},
	})
	second := env.presign(t, &models.PresignRequest{
		BatchID: first.BatchID,
		Items:   []models.PresignItem{{Filename: "b.wav", ContentType: "audio/wav"}},
	})
	if second.BatchID != first.BatchID {
		t.Errorf("expected same batch, got %s and %s", first.BatchID, second.BatchID)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	req, _ := http.NewRequest(http.MethodPost, env.server.URL+"/uploads/presign", strings.NewReader(`{}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", resp.StatusCode)
	}
}

func TestMockUpload(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	out := env.presign(t, &models.PresignRequest{
		Items: []models.PresignItem{{Filename: "take.wav", ContentType: "audio/wav"}},
	})
	item := out.Items[0]

	resp := env.upload(t, item, "RIFFdata", "audio/wav")
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}

	// The URL is single use.
	resp = env.upload(t, item, "RIFFdata", "audio/wav")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 on reused URL, got %d", resp.StatusCode)
	}
}

func TestMockUploadRejectsBadToken(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	out := env.presign(t, &models.PresignRequest{
		Items: []models.PresignItem{{Filename: "take.wav", ContentType: "audio/wav"}},
	})
	item := out.Items[0]
	item.UploadURL = item.UploadURL[:strings.Index(item.UploadURL, "token=")] + "token=tok_forged"

	resp := env.upload(t, item, "RIFFdata", "audio/wav")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for forged token, got %d", resp.StatusCode)
	}
	var envelope models.APIResponse
	decodeBody(t, resp, &envelope)
	if envelope.Error == nil || envelope.Error.Message != "Invalid or expired upload URL" {
		t.Errorf("unexpected error envelope: %+v", envelope.Error)
	}
}

func TestMockUploadContentTypeMismatchKeepsSession(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	out := env.presign(t, &models.PresignRequest{
		Items: []models.PresignItem{{Filename: "take.wav", ContentType: "audio/wav"}},
	})
	item := out.Items[0]

	resp := env.upload(t, item, "RIFFdata", "audio/flac")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for mismatched content type, got %d", resp.StatusCode)
	}

	// A rejected PUT must not burn the session.
	resp = env.upload(t, item, "RIFFdata", "audio/wav; charset=binary")
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected retry to succeed, got %d", resp.StatusCode)
	}
}

// commitBatch runs the full presign-upload-commit flow for one item.
func (e *testEnv) commitBatch(t *testing.T, idemKey string) *models.RecordingsResponse {
	t.Helper()

	out := e.presign(t, &models.PresignRequest{
		Items: []models.PresignItem{{Filename: "take.wav", ContentType: "audio/wav"}},
	})
	item := out.Items[0]
	if resp := e.upload(t, item, "RIFFdata", "audio/wav"); resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload failed: %d", resp.StatusCode)
	}

	resp := e.request(t, http.MethodPost, "/recordings", &models.RecordingsRequest{
		BatchID:        out.BatchID,
		IdempotencyKey: idemKey,
		Items: []models.RecordingItem{
			{ClientItemID: "item-1", BlobRef: item.BlobRef, Data: map[string]interface{}{"title": "Take 1"}},
		},
	}, nil)
	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("commit failed with %d: %s", resp.StatusCode, body)
	}
	var commit models.RecordingsResponse
	decodeBody(t, resp, &commit)
	return &commit
}

func TestCreateRecordingsFlow(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	commit := env.commitBatch(t, "idem-key-001")

	if commit.Status != "pending" {
		t.Errorf("expected pending batch, got %q", commit.Status)
	}
	if len(commit.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(commit.Items))
	}
	if !strings.HasPrefix(commit.Items[0].RecordingID, "rec_") {
		t.Errorf("expected rec_ ID, got %q", commit.Items[0].RecordingID)
	}
	if commit.Items[0].Status != "queued" {
		t.Errorf("expected queued item, got %q", commit.Items[0].Status)
	}
	if commit.Poll.Href != "/batches/"+commit.BatchID {
		t.Errorf("unexpected poll href: %q", commit.Poll.Href)
	}

	// Poll matches the commit.
	resp := env.request(t, http.MethodGet, commit.Poll.Href, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("poll failed: %d", resp.StatusCode)
	}
	var poll models.BatchStatusResponse
	decodeBody(t, resp, &poll)
	if poll.BatchID != commit.BatchID || poll.Status != "pending" {
		t.Errorf("unexpected poll view: %+v", poll)
	}
	if len(poll.Items) != 1 || poll.Items[0].RecordingID != commit.Items[0].RecordingID {
		t.Errorf("poll items mismatch: %+v", poll.Items)
	}
}

func TestCreateRecordingsIdempotentReplay(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	out := env.presign(t, &models.PresignRequest{
		Items: []models.PresignItem{{Filename: "take.wav", ContentType: "audio/wav"}},
	})
	item := out.Items[0]
	if resp := env.upload(t, item, "RIFFdata", "audio/wav"); resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload failed: %d", resp.StatusCode)
	}

	req := &models.RecordingsRequest{
		BatchID:        out.BatchID,
		IdempotencyKey: "idem-key-replay",
		Items: []models.RecordingItem{
			{ClientItemID: "item-1", BlobRef: item.BlobRef, Data: map[string]interface{}{}},
		},
	}

	var first, second models.RecordingsResponse
	resp := env.request(t, http.MethodPost, "/recordings", req, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("first commit failed: %d", resp.StatusCode)
	}
	decodeBody(t, resp, &first)

	resp = env.request(t, http.MethodPost, "/recordings", req, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("replay failed: %d", resp.StatusCode)
	}
	decodeBody(t, resp, &second)

	if second.BatchID != first.BatchID {
		t.Errorf("replay changed batch: %s vs %s", second.BatchID, first.BatchID)
	}
	if second.Items[0].RecordingID != first.Items[0].RecordingID {
		t.Errorf("replay changed recording ID: %s vs %s",
			second.Items[0].RecordingID, first.Items[0].RecordingID)
	}
}

func TestCreateRecordingsConflicts(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	out := env.presign(t, &models.PresignRequest{
		Items: []models.PresignItem{{Filename: "take.wav", ContentType: "audio/wav"}},
	})

	// Commit without uploading.
	resp := env.request(t, http.MethodPost, "/recordings", &models.RecordingsRequest{
		BatchID:        out.BatchID,
		IdempotencyKey: "idem-key-001",
		Items: []models.RecordingItem{
			{ClientItemID: "item-1", BlobRef: out.Items[0].BlobRef, Data: map[string]interface{}{}},
		},
	}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	var envelope models.APIResponse
	decodeBody(t, resp, &envelope)
	if envelope.Error == nil || !strings.Contains(envelope.Error.Message, "client_item_id=item-1") {
		t.Errorf("conflict should name the item: %+v", envelope.Error)
	}
}

func TestDeleteBatchCascade(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	commit := env.commitBatch(t, "idem-key-001")

	resp := env.request(t, http.MethodDelete, "/batches/"+commit.BatchID, nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	// Poll now 404s.
	resp = env.request(t, http.MethodGet, "/batches/"+commit.BatchID, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}

	// Media is gone too.
	resp = env.request(t, http.MethodGet, "/media/"+commit.Items[0].RecordingID, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 media after delete, got %d", resp.StatusCode)
	}

	// Payload files are removed from storage.
	entries, err := os.ReadDir(env.storage)
	if err != nil {
		t.Fatalf("read storage dir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty storage dir, found %d entries", len(entries))
	}

	// Deleting again is a 404, not an error.
	resp = env.request(t, http.MethodDelete, "/batches/"+commit.BatchID, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 on double delete, got %d", resp.StatusCode)
	}
}

func TestListBatchesAndMedia(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	commit := env.commitBatch(t, "idem-key-001")

	resp := env.request(t, http.MethodGet, "/batches", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list failed: %d", resp.StatusCode)
	}
	var views []models.BatchView
	decodeBody(t, resp, &views)
	if len(views) != 1 {
		t.Fatalf("expected 1 batch view, got %d", len(views))
	}
	view := views[0]
	if view.BatchID != commit.BatchID || view.Status != "pending" {
		t.Errorf("unexpected batch view: %+v", view)
	}
	if len(view.Recordings) != 1 {
		t.Fatalf("expected 1 recording view, got %d", len(view.Recordings))
	}
	rv := view.Recordings[0]
	if rv.SizeBytes != int64(len("RIFFdata")) || rv.ContentType != "audio/wav" {
		t.Errorf("unexpected recording view: %+v", rv)
	}
	if rv.Metadata["title"] != "Take 1" {
		t.Errorf("metadata not surfaced: %+v", rv.Metadata)
	}

	// Media streams the payload with its stored content type. Query-param
	// auth covers pasted links.
	mediaReq, _ := http.NewRequest(http.MethodGet, env.server.URL+rv.MediaURL+"?key="+testAPIKey, nil)
	mediaResp, err := http.DefaultClient.Do(mediaReq)
	if err != nil {
		t.Fatalf("media request failed: %v", err)
	}
	defer mediaResp.Body.Close()
	if mediaResp.StatusCode != http.StatusOK {
		t.Fatalf("media failed: %d", mediaResp.StatusCode)
	}
	if ct := mediaResp.Header.Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("expected audio/wav, got %q", ct)
	}
	payload, _ := io.ReadAll(mediaResp.Body)
	if string(payload) != "RIFFdata" {
		t.Errorf("unexpected media payload: %q", payload)
	}

	resp = env.request(t, http.MethodGet, "/media/rec_missing", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown recording, got %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var health models.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !health.OK || health.Database != "ok" {
		t.Errorf("unexpected health: %+v", health)
	}
}
