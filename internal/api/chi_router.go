// Tapedeck - Recordings Ingest Mock API
// Copyright 2026 Tapedeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tapedeck/tapedeck

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tapedeck/tapedeck/internal/auth"
	"github.com/tapedeck/tapedeck/internal/config"
	"github.com/tapedeck/tapedeck/internal/middleware"
)

// chiMiddleware adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler, so the auth and metrics middleware work
// with r.Use().
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Router wires handlers and middleware into the Chi route tree.
type Router struct {
	handler       *Handler
	chiMW         *ChiMiddleware
	auth          *auth.Middleware
	uploadLimiter *auth.UploadLimiter
}

// NewRouter builds the router from configuration.
func NewRouter(cfg *config.Config, handler *Handler) *Router {
	mwConfig := DefaultChiMiddlewareConfig()
	mwConfig.CORSAllowedOrigins = cfg.Security.CORSOrigins
	mwConfig.RateLimitRequests = cfg.Security.RateLimitReqs
	mwConfig.RateLimitWindow = cfg.Security.RateLimitWindow
	mwConfig.RateLimitDisabled = cfg.Security.RateLimitDisabled

	return &Router{
		handler: handler,
		chiMW:   NewChiMiddleware(mwConfig),
		auth:    auth.NewMiddleware(cfg.Security.APIKey, cfg.Security.TenantID),
		// The upload sink takes large bodies, so it gets its own small
		// per-IP budget instead of the shared request limiter.
		uploadLimiter: auth.NewUploadLimiter(10, 20),
	}
}

// Stop releases router-owned background resources.
func (router *Router) Stop() {
	router.uploadLimiter.Stop()
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(router.chiMW.CORS())

	// Operational endpoints, no API key required.
	r.Get("/healthz", router.handler.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	// Ingest control plane: presign, commit, poll, delete.
	r.Group(func(r chi.Router) {
		r.Use(router.chiMW.RateLimit())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(chiMiddleware(router.auth.Authenticate))

		r.Post("/uploads/presign", router.handler.PresignUploads)
		r.Post("/recordings", router.handler.CreateRecordings)
		r.Get("/batches/{batchID}", router.handler.GetBatch)
		r.Delete("/batches/{batchID}", router.handler.DeleteBatch)
	})

	// Upload sink. Authorization is the presigned token itself, not the
	// API key, mirroring how real object stores accept presigned PUTs.
	r.Group(func(r chi.Router) {
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(chiMiddleware(router.uploadLimiter.Middleware))
		r.Put("/mock-upload/{uploadID}", router.handler.MockUpload)
	})

	// Reporting endpoints accept the API key via query parameter too, so
	// browser-pasted links work.
	r.Group(func(r chi.Router) {
		r.Use(router.chiMW.RateLimit())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(chiMiddleware(router.auth.AuthenticateQuery))

		r.Get("/batches", router.handler.ListBatches)
		r.Get("/media/{recordingID}", router.handler.Media)
	})

	return r
}
