// Tapedeck - Recordings Ingest Mock API
// Copyright 2026 Tapedeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tapedeck/tapedeck

package api

import (
	"net/http"
	"time"

	"github.com/tapedeck/tapedeck/internal/models"
)

// Healthz handles GET /healthz. It reports process uptime and pings the
// database so orchestration can tell a wedged store from a healthy one.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{
		OK:            true,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Database:      "ok",
	}

	if err := h.ledger.Ping(r.Context()); err != nil {
		resp.OK = false
		resp.Database = "unreachable"
		respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}
