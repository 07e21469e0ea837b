package session

import (
	"sync"
	"time"
)

// MemoryStore keeps the cached session in process memory. Safe for
// concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	session Session
	evictAt time.Time
	set     bool
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Get returns the cached session, or ErrNoSession when absent or evicted.
func (m *MemoryStore) Get() (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.set || !m.now().Before(m.evictAt) {
		m.set = false
		return Session{}, ErrNoSession
	}
	return m.session, nil
}

// Set replaces the cached session.
func (m *MemoryStore) Set(s Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session = s
	m.evictAt = m.now().Add(ttl)
	m.set = true
	return nil
}

// Clear removes the cached session.
func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session = Session{}
	m.set = false
	return nil
}
