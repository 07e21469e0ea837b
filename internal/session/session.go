// Package session owns authentication against Bluesky and caching of the
// resulting short-lived token pair.
//
// A single session is cached at a time (one configured identity). The
// cache honors both the session's own ExpiresAt and the store's TTL, so a
// stale entry is treated as absent either way.
package session

import (
	"errors"
	"time"
)

// ErrNoSession is returned by a Store when no usable session is cached.
var ErrNoSession = errors.New("no cached session")

// Session is an authenticated Bluesky session.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Valid reports whether the session can still be used at the given time.
func (s Session) Valid(now time.Time) bool {
	return s.AccessToken != "" && now.Before(s.ExpiresAt)
}

// Store persists the single cached session with TTL semantics.
type Store interface {
	// Get returns the cached session, or ErrNoSession when absent or
	// past its TTL.
	Get() (Session, error)

	// Set replaces the cached session. The entry is evicted once ttl
	// elapses.
	Set(s Session, ttl time.Duration) error

	// Clear removes the cached session.
	Clear() error
}
