// Tapedeck - Recordings Ingest Mock API
// Copyright 2026 Tapedeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tapedeck/tapedeck

package auth

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// UploadLimiter throttles the upload sink per client IP using token buckets.
// The router-level httprate limiter covers the JSON endpoints; the upload PUT
// gets its own limiter because a single client legitimately fires a burst of
// PUTs right after presign.
type UploadLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	rps      rate.Limit
	burst    int
	maxIdle  time.Duration
	stopOnce sync.Once
	stop     chan struct{}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewUploadLimiter creates a per-IP limiter allowing rps requests per second
// with the given burst. Idle client entries are purged in the background.
func NewUploadLimiter(rps float64, burst int) *UploadLimiter {
	l := &UploadLimiter{
		clients: make(map[string]*clientLimiter),
		rps:     rate.Limit(rps),
		burst:   burst,
		maxIdle: 10 * time.Minute,
		stop:    make(chan struct{}),
	}
	go l.purgeLoop()
	return l
}

// Allow reports whether the client identified by remoteAddr may proceed.
func (l *UploadLimiter) Allow(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cl, ok := l.clients[host]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[host] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter.Allow()
}

// Middleware returns an http.HandlerFunc wrapper enforcing the limit.
func (l *UploadLimiter) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(r.RemoteAddr) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// Stop terminates the background purge goroutine.
func (l *UploadLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// purgeLoop drops limiter entries that have been idle past maxIdle.
func (l *UploadLimiter) purgeLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-l.maxIdle)
			l.mu.Lock()
			for host, cl := range l.clients {
				if cl.lastSeen.Before(cutoff) {
					delete(l.clients, host)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}
