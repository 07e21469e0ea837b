package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stephanj/skyfeed/internal/bluesky"
)

var (
	// ErrMissingCredentials means the identifier or password is unset.
	// Checked before any network call is made.
	ErrMissingCredentials = errors.New("bluesky credentials are not configured")

	// ErrAuthFailed means upstream rejected the credentials or the
	// authentication call itself failed.
	ErrAuthFailed = errors.New("bluesky authentication failed")
)

// DefaultTTL is how long a freshly issued session is assumed to stay
// valid. The endpoints used do not report an authoritative expiry, so the
// conventional one-hour lifetime is applied.
const DefaultTTL = time.Hour

// Credentials identify the configured Bluesky account. Read-only input;
// never cached beyond process memory.
type Credentials struct {
	Identifier string
	Password   string
}

// Authenticator creates an upstream session from credentials.
type Authenticator interface {
	CreateSession(ctx context.Context, identifier, password string) (*bluesky.Tokens, error)
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithTTL overrides the assumed session lifetime.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.ttl = ttl
	}
}

// WithClock overrides the time source (useful for testing expiry).
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager decides when a cached session is still usable and performs
// authentication when it is not. Refresh is a critical section: at most
// one in-flight authentication mutates the store at a time.
type Manager struct {
	auth  Authenticator
	creds Credentials
	store Store
	ttl   time.Duration
	now   func() time.Time

	mu sync.Mutex
}

// NewManager creates a session manager backed by the given store.
func NewManager(auth Authenticator, creds Credentials, store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		auth:  auth,
		creds: creds,
		store: store,
		ttl:   DefaultTTL,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Ensure returns a valid session. With force false a cached unexpired
// session is returned without any network call; otherwise the manager
// authenticates and caches the new session, replacing any prior value.
func (m *Manager) Ensure(ctx context.Context, force bool) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !force {
		if s, err := m.store.Get(); err == nil && s.Valid(m.now()) {
			return s, nil
		}
	}

	if m.creds.Identifier == "" || m.creds.Password == "" {
		return Session{}, ErrMissingCredentials
	}

	tokens, err := m.auth.CreateSession(ctx, m.creds.Identifier, m.creds.Password)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	s := Session{
		AccessToken:  tokens.AccessJwt,
		RefreshToken: tokens.RefreshJwt,
		ExpiresAt:    m.now().Add(m.ttl),
	}
	if err := m.store.Set(s, m.ttl); err != nil {
		return Session{}, fmt.Errorf("cache session: %w", err)
	}

	return s, nil
}

// Clear invalidates the cached session, forcing re-authentication on the
// next Ensure.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.store.Clear()
}
