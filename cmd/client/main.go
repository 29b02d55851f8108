// Tapedeck - Recordings Ingest Mock API
// Copyright 2026 Tapedeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tapedeck/tapedeck

// Package main is a command line client that drives the full ingest flow
// against a running Tapedeck server: presign one slot per input file, PUT
// the bytes, commit the recordings, then poll the batch once.
//
// Example:
//
//	tapedeck-client -server http://localhost:8000 -key test_12345 take1.wav take2.wav
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tapedeck/tapedeck/internal/logging"
	"github.com/tapedeck/tapedeck/internal/models"
)

const headerAPIKey = "X-API-Key"

type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func (c *client) postJSON(path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerAPIKey, c.apiKey)

	return c.do(req, out)
}

func (c *client) getJSON(path string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set(headerAPIKey, c.apiKey)
	return c.do(req, out)
}

func (c *client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: %s: %s", req.Method, req.URL.Path, resp.Status, body)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) upload(item models.PresignedItem, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	req, err := http.NewRequest(item.Method, c.baseURL+item.UploadURL, f)
	if err != nil {
		return err
	}
	for k, v := range item.RequiredHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload %s: %s: %s", path, resp.Status, body)
	}
	return nil
}

func contentTypeFor(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func main() {
	serverURL := flag.String("server", "http://localhost:8000", "Tapedeck server base URL")
	apiKey := flag.String("key", "test_12345", "API key")
	batchID := flag.String("batch", "", "existing batch to append to (optional)")
	flag.Parse()

	logging.Init(logging.Config{Level: "info", Format: "console"})

	files := flag.Args()
	if len(files) == 0 {
		logging.Fatal().Msg("No input files given")
	}

	c := &client{
		baseURL: *serverURL,
		apiKey:  *apiKey,
		http:    &http.Client{Timeout: 5 * time.Minute},
	}

	presignReq := &models.PresignRequest{BatchID: *batchID}
	for _, f := range files {
		presignReq.Items = append(presignReq.Items, models.PresignItem{
			Filename:    filepath.Base(f),
			ContentType: contentTypeFor(f),
		})
	}

	var presign models.PresignResponse
	if err := c.postJSON("/uploads/presign", presignReq, &presign); err != nil {
		logging.Fatal().Err(err).Msg("Presign failed")
	}
	logging.Info().
		Str("batch_id", presign.BatchID).
		Int("slots", len(presign.Items)).
		Msg("Presigned upload slots")

	commitReq := &models.RecordingsRequest{
		BatchID:        presign.BatchID,
		IdempotencyKey: uuid.NewString(),
	}
	for i, item := range presign.Items {
		if err := c.upload(item, files[i]); err != nil {
			logging.Fatal().Err(err).Msg("Upload failed")
		}
		logging.Info().Str("file", files[i]).Msg("Uploaded")

		commitReq.Items = append(commitReq.Items, models.RecordingItem{
			ClientItemID: fmt.Sprintf("item-%d", i+1),
			BlobRef:      item.BlobRef,
			Data: map[string]interface{}{
				"filename": filepath.Base(files[i]),
			},
		})
	}

	var commit models.RecordingsResponse
	if err := c.postJSON("/recordings", commitReq, &commit); err != nil {
		logging.Fatal().Err(err).Msg("Commit failed")
	}
	logging.Info().
		Str("batch_id", commit.BatchID).
		Str("status", commit.Status).
		Msg("Committed recordings")

	var poll models.BatchStatusResponse
	if err := c.getJSON(commit.Poll.Href, &poll); err != nil {
		logging.Fatal().Err(err).Msg("Poll failed")
	}
	for _, item := range poll.Items {
		logging.Info().
			Str("client_item_id", item.ClientItemID).
			Str("recording_id", item.RecordingID).
			Str("status", item.Status).
			Msg("Recording")
	}
}
