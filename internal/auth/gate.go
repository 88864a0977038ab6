package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// sessionTokenBytes is the opaque token size (256-bit).
const sessionTokenBytes = 32

// slot holds one user's session state under its own lock.
type slot struct {
	mu      sync.Mutex
	user    *User
	session *Session
}

// Gate authorises users against the whitelist and manages their sessions.
//
// Thread Safety: the whitelist and slot map are immutable after New; all
// session mutation happens under the owning slot's lock. Counters are
// atomic. Safe for concurrent use.
type Gate struct {
	slots map[string]*slot
	ttl   time.Duration

	rejectedNotWhitelisted atomic.Int64
	rejectedExpired        atomic.Int64
	sessionsIssued         atomic.Int64

	now func() time.Time
}

// NewGate builds a gate from the whitelist. One slot is pre-allocated per
// user so the map is never written after construction.
func NewGate(whitelist []User, sessionTTL time.Duration) *Gate {
	g := &Gate{
		slots: make(map[string]*slot, len(whitelist)),
		ttl:   sessionTTL,
		now:   time.Now,
	}
	for i := range whitelist {
		u := whitelist[i]
		g.slots[u.ID] = &slot{user: &u}
	}
	return g
}

// Authorize checks the user against the whitelist and returns a live
// session.
//
// With an empty token, an existing live session is extended (sliding TTL)
// or a fresh one is issued. With a token, it must match the user's current
// session in constant time and be unexpired; a match extends the session.
//
// Returns ErrNotWhitelisted for unknown users and ErrSessionExpired for
// stale or mismatched tokens. The returned session is a copy.
func (g *Gate) Authorize(userID, token string) (*Session, error) {
	s, ok := g.slots[userID]
	if !ok {
		g.rejectedNotWhitelisted.Add(1)
		return nil, fmt.Errorf("%w: %s", ErrNotWhitelisted, userID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := g.now()
	live := s.session != nil && !s.session.Expired(now)

	if token != "" {
		if !live || subtle.ConstantTimeCompare([]byte(token), []byte(s.session.Token)) != 1 {
			g.rejectedExpired.Add(1)
			return nil, ErrSessionExpired
		}
		s.session.ExpiresAt = now.Add(g.ttl)
		cpy := *s.session
		return &cpy, nil
	}

	if live {
		s.session.ExpiresAt = now.Add(g.ttl)
		cpy := *s.session
		return &cpy, nil
	}

	tok, err := generateSessionToken()
	if err != nil {
		return nil, err
	}
	s.session = &Session{
		UserID:    userID,
		Token:     tok,
		IssuedAt:  now,
		ExpiresAt: now.Add(g.ttl),
	}
	g.sessionsIssued.Add(1)
	cpy := *s.session
	return &cpy, nil
}

// User returns the whitelist entry for an ID.
func (g *Gate) User(userID string) (*User, bool) {
	s, ok := g.slots[userID]
	if !ok {
		return nil, false
	}
	return s.user, true
}

// Revoke destroys the user's session if one exists.
func (g *Gate) Revoke(userID string) bool {
	s, ok := g.slots[userID]
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	had := s.session != nil
	s.session = nil
	return had
}

// RevokeAll destroys every session.
func (g *Gate) RevokeAll() int {
	n := 0
	for _, s := range g.slots {
		s.mu.Lock()
		if s.session != nil {
			s.session = nil
			n++
		}
		s.mu.Unlock()
	}
	return n
}

// SweepExpired drops expired sessions and returns how many were removed.
// Called periodically; expiry is also enforced on every Authorize, so the
// sweep only reclaims memory for idle users.
func (g *Gate) SweepExpired() int {
	now := g.now()
	n := 0
	for _, s := range g.slots {
		s.mu.Lock()
		if s.session != nil && s.session.Expired(now) {
			s.session = nil
			n++
		}
		s.mu.Unlock()
	}
	return n
}

// Stats are aggregate authorisation counters for the security endpoint.
type Stats struct {
	WhitelistSize          int   `json:"whitelist_size"`
	ActiveSessions         int   `json:"active_sessions"`
	SessionsIssued         int64 `json:"sessions_issued"`
	RejectedNotWhitelisted int64 `json:"rejected_not_whitelisted"`
	RejectedExpired        int64 `json:"rejected_expired"`
}

// GetStats returns current authorisation statistics.
func (g *Gate) GetStats() Stats {
	now := g.now()
	active := 0
	for _, s := range g.slots {
		s.mu.Lock()
		if s.session != nil && !s.session.Expired(now) {
			active++
		}
		s.mu.Unlock()
	}
	return Stats{
		WhitelistSize:          len(g.slots),
		ActiveSessions:         active,
		SessionsIssued:         g.sessionsIssued.Load(),
		RejectedNotWhitelisted: g.rejectedNotWhitelisted.Load(),
		RejectedExpired:        g.rejectedExpired.Load(),
	}
}

// generateSessionToken creates a cryptographically random opaque token.
func generateSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
