// Tapedeck - Recordings Ingest Mock API
// Copyright 2026 Tapedeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tapedeck/tapedeck

// Package metrics provides Prometheus instrumentation for:
//   - API endpoint latency and throughput
//   - Upload session lifecycle (issued, consumed, expired)
//   - Blob storage throughput
//   - Ledger commits, idempotent replays, and cascade deletes
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Upload Session Metrics
	UploadSessionsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upload_sessions_issued_total",
			Help: "Total number of presigned upload sessions issued",
		},
	)

	UploadSessionsConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upload_sessions_consumed_total",
			Help: "Total number of upload sessions consumed by a successful PUT",
		},
	)

	UploadSessionsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upload_sessions_expired_total",
			Help: "Total number of upload sessions that expired unused",
		},
	)

	UploadSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "upload_sessions_active",
			Help: "Current number of live upload sessions",
		},
	)

	// Blob Storage Metrics
	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upload_bytes_total",
			Help: "Total bytes received through the mock upload sink",
		},
	)

	BlobsStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blobs_stored_total",
			Help: "Total number of blobs written to storage",
		},
	)

	BlobFilesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blob_files_removed_total",
			Help: "Total number of blob files removed during batch deletes",
		},
	)

	BlobFileRemovalFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blob_file_removal_failures_total",
			Help: "Total number of blob file removals that failed (DB cleanup proceeds)",
		},
	)

	// Ledger Metrics
	RecordingsCommitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recordings_committed_total",
			Help: "Total number of recordings committed to the ledger",
		},
	)

	IdempotentReplays = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recordings_idempotent_replays_total",
			Help: "Total number of commit requests answered from a previous commit",
		},
	)

	BatchesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "batches_created_total",
			Help: "Total number of batches created",
		},
	)

	BatchesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "batches_deleted_total",
			Help: "Total number of batches deleted (cascade)",
		},
	)

	LedgerQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_query_duration_seconds",
			Help:    "Duration of ledger operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// RecordAPIRequest records metrics for a completed API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the active request gauge.
// Call with true when a request starts, false when it completes.
func TrackActiveRequest(active bool) {
	if active {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordLedgerOperation records the duration of a ledger operation.
func RecordLedgerOperation(operation string, start time.Time) {
	LedgerQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// StatusLabel converts an HTTP status code to its metric label.
func StatusLabel(code int) string {
	return strconv.Itoa(code)
}
