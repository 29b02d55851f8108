// Tapedeck - Recordings Ingest Mock API
// Copyright 2026 Tapedeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tapedeck/tapedeck

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/recordings", "202"))

	RecordAPIRequest("POST", "/recordings", "202", 25*time.Millisecond)

	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/recordings", "202"))
	if after != before+1 {
		t.Errorf("expected counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)

	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("expected gauge %v, got %v", before+1, got)
	}

	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("expected gauge %v, got %v", before, got)
	}
}

func TestStatusLabel(t *testing.T) {
	t.Parallel()

	if got := StatusLabel(404); got != "404" {
		t.Errorf("StatusLabel(404) = %q", got)
	}
}
