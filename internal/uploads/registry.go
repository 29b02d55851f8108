// Tapedeck - Recordings Ingest Mock API
// Copyright 2026 Tapedeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tapedeck/tapedeck

// Package uploads implements the in-memory registry of presigned upload
// sessions.
//
// Sessions are deliberately not durable: a server restart invalidates all
// outstanding upload URLs, and clients are expected to presign again. Only
// committed state (blobs, batches, recordings) lives in the ledger.
package uploads

import (
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/tapedeck/tapedeck/internal/ids"
	"github.com/tapedeck/tapedeck/internal/metrics"
)

// ErrInvalidSession is returned for unknown sessions, token mismatches, and
// expired sessions alike, so callers cannot distinguish a guessed session ID
// from an expired one.
var ErrInvalidSession = errors.New("invalid or expired upload session")

// Session is one presigned upload slot.
type Session struct {
	ID          string
	Token       string
	BlobRef     string
	ContentType string
	TenantID    string
	BatchID     string
	ExpiresAt   time.Time
}

// Stats tracks registry activity.
type Stats struct {
	Issued   int64
	Consumed int64
	Expired  int64
	Active   int
}

// Registry is a thread-safe in-memory session store with TTL expiry.
// A background sweep purges expired entries.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration

	statsMu  sync.Mutex
	issued   int64
	consumed int64
	expired  int64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRegistry creates a registry issuing sessions valid for ttl and sweeping
// expired entries every sweepInterval.
func NewRegistry(ttl, sweepInterval time.Duration) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
	go r.sweepLoop(sweepInterval)
	return r
}

// TTL returns the session lifetime.
func (r *Registry) TTL() time.Duration {
	return r.ttl
}

// Create issues a new single-use session binding an upload URL to a blob ref.
func (r *Registry) Create(blobRef, contentType, tenantID, batchID string) *Session {
	s := &Session{
		ID:          ids.NewUpload(),
		Token:       ids.NewToken(),
		BlobRef:     blobRef,
		ContentType: contentType,
		TenantID:    tenantID,
		BatchID:     batchID,
		ExpiresAt:   time.Now().Add(r.ttl),
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	active := len(r.sessions)
	r.mu.Unlock()

	r.statsMu.Lock()
	r.issued++
	r.statsMu.Unlock()

	metrics.UploadSessionsIssued.Inc()
	metrics.UploadSessionsActive.Set(float64(active))

	return s
}

// Validate checks the session ID, token, and expiry without consuming the
// session. The token comparison is constant time. Content-type enforcement
// happens in the handler before Consume, so a rejected PUT leaves the
// session usable.
func (r *Registry) Validate(id, token string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrInvalidSession
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.Token)) != 1 {
		return nil, ErrInvalidSession
	}
	if time.Now().After(s.ExpiresAt) {
		return nil, ErrInvalidSession
	}
	return s, nil
}

// Consume removes the session after a successful upload, making the URL
// single use. Returns false if the session was already gone.
func (r *Registry) Consume(id string) bool {
	r.mu.Lock()
	_, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	active := len(r.sessions)
	r.mu.Unlock()

	if ok {
		r.statsMu.Lock()
		r.consumed++
		r.statsMu.Unlock()

		metrics.UploadSessionsConsumed.Inc()
		metrics.UploadSessionsActive.Set(float64(active))
	}
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// GetStats returns a snapshot of registry activity.
func (r *Registry) GetStats() Stats {
	r.statsMu.Lock()
	issued, consumed, expired := r.issued, r.consumed, r.expired
	r.statsMu.Unlock()

	return Stats{
		Issued:   issued,
		Consumed: consumed,
		Expired:  expired,
		Active:   r.Len(),
	}
}

// Stop terminates the background sweep goroutine.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// sweepLoop periodically removes expired sessions.
func (r *Registry) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stop:
			return
		}
	}
}

// sweep removes all expired sessions.
func (r *Registry) sweep() {
	now := time.Now()

	r.mu.Lock()
	var swept int64
	for id, s := range r.sessions {
		if now.After(s.ExpiresAt) {
			delete(r.sessions, id)
			swept++
		}
	}
	active := len(r.sessions)
	r.mu.Unlock()

	if swept > 0 {
		r.statsMu.Lock()
		r.expired += swept
		r.statsMu.Unlock()

		metrics.UploadSessionsExpired.Add(float64(swept))
	}
	metrics.UploadSessionsActive.Set(float64(active))
}
