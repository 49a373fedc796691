// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware and web-session tracking
// for the gateway service.
//
// # Web Sessions vs Platform Sessions
//
// The gateway has two distinct notions of "session". The platform session
// (managed by the session package) is the long-lived authenticated
// connection to the messaging platform. The web session, managed here, is
// the browser's cookie-scoped association with that identity: created on
// successful code verification, consulted by the auth-check endpoint, and
// deleted on logout. Web sessions expire after a TTL and are held in
// memory only; the platform session survives a gateway restart via the
// credential store, the web session does not.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CookieName is the cookie carrying the web session token.
const CookieName = "channelpulse_session"

// DefaultSessionTTL is how long a web session stays valid without
// re-verification.
const DefaultSessionTTL = 24 * time.Hour

// Identity is the authenticated platform identity bound to a web session.
type Identity struct {
	UserID    int64
	FirstName string
	Username  string
	Phone     string
}

type webSession struct {
	identity  Identity
	expiresAt time.Time
}

// SessionStore tracks web sessions by opaque token.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Unlike the platform session
// state, web sessions are touched directly by HTTP handler goroutines,
// so access is guarded by a mutex.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]webSession
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates a store with the given TTL. A non-positive TTL
// falls back to DefaultSessionTTL.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		sessions: make(map[string]webSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create registers a new web session for the identity and returns its token.
func (s *SessionStore) Create(id Identity) string {
	token := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	s.sessions[token] = webSession{
		identity:  id,
		expiresAt: s.now().Add(s.ttl),
	}
	return token
}

// Get returns the identity for a token. The second return is false when
// the token is unknown or the session has expired; expired sessions are
// removed on lookup.
func (s *SessionStore) Get(token string) (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return Identity{}, false
	}
	if s.now().After(sess.expiresAt) {
		delete(s.sessions, token)
		return Identity{}, false
	}
	return sess.identity, true
}

// Delete removes a web session. Deleting an unknown token is a no-op.
func (s *SessionStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// Len returns the number of live (unexpired) sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	return len(s.sessions)
}

// pruneLocked drops expired sessions. Caller must hold s.mu.
func (s *SessionStore) pruneLocked() {
	now := s.now()
	for token, sess := range s.sessions {
		if now.After(sess.expiresAt) {
			delete(s.sessions, token)
		}
	}
}

// SetCookie attaches the session token to the response.
func SetCookie(c *gin.Context, token string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, int(ttl.Seconds()), "/", "", false, true)
}

// ClearCookie expires the session cookie on the client.
func ClearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", false, true)
}

// TokenFromRequest extracts the session token from the request cookie.
// Returns empty string when absent.
func TokenFromRequest(c *gin.Context) string {
	token, err := c.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return token
}
