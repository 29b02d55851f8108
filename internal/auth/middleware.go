// Tapedeck - Recordings Ingest Mock API
// Copyright 2026 Tapedeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tapedeck/tapedeck

// Package auth implements the API's shared-secret authentication.
//
// The mock uses a single static API key mapped to a single tenant. Requests
// authenticate with the X-API-Key header; the browser-facing reporting and
// media endpoints may pass the same key as a ?key= query parameter instead.
package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tapedeck/tapedeck/internal/logging"
	"github.com/tapedeck/tapedeck/internal/models"
)

// HeaderAPIKey is the authentication header checked on every API request.
const HeaderAPIKey = "X-API-Key"

type contextKey string

// tenantIDKey is the context key carrying the authenticated tenant.
const tenantIDKey contextKey = "tenant_id"

// Middleware authenticates requests against the configured static key.
type Middleware struct {
	apiKey   string
	tenantID string
}

// NewMiddleware creates an authentication middleware for the given key and
// tenant.
func NewMiddleware(apiKey, tenantID string) *Middleware {
	return &Middleware{apiKey: apiKey, tenantID: tenantID}
}

// Authenticate requires a valid X-API-Key header. On success the tenant ID is
// stored in the request context; on failure a 401 envelope is returned.
func (m *Middleware) Authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.keyMatches(r.Header.Get(HeaderAPIKey)) {
			logging.Ctx(r.Context()).Warn().
				Str("path", r.URL.Path).
				Str("method", r.Method).
				Msg("Rejected request with missing or invalid API key")
			respondUnauthorized(w, "Missing or invalid X-API-Key")
			return
		}

		next(w, r.WithContext(ContextWithTenant(r.Context(), m.tenantID)))
	}
}

// AuthenticateQuery requires the API key either in the X-API-Key header or in
// the ?key= query parameter. Used by the reporting and media endpoints, which
// are opened from a browser.
func (m *Middleware) AuthenticateQuery(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(HeaderAPIKey)
		if key == "" {
			key = r.URL.Query().Get("key")
		}
		if !m.keyMatches(key) {
			respondUnauthorized(w, "Missing or invalid key")
			return
		}

		next(w, r.WithContext(ContextWithTenant(r.Context(), m.tenantID)))
	}
}

// keyMatches compares the presented key in constant time.
func (m *Middleware) keyMatches(presented string) bool {
	if presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(m.apiKey)) == 1
}

// ContextWithTenant returns a context carrying the authenticated tenant ID.
func ContextWithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// TenantFromContext returns the authenticated tenant ID, or empty string if
// the request did not pass authentication.
func TenantFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(tenantIDKey).(string); ok {
		return id
	}
	return ""
}

// respondUnauthorized writes a 401 error envelope.
func respondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	body, err := json.Marshal(&models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error: &models.APIError{
			Code:    "UNAUTHORIZED",
			Message: message,
		},
	})
	if err != nil {
		return
	}
	//nolint:errcheck // HTTP response write errors are not recoverable
	w.Write(body)
}
