package session

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists the cached session in a SQLite database so it
// survives process restarts within its TTL.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteStore opens (creating if needed) the session cache at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS session (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			evict_at TEXT NOT NULL
		)
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create session table: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the cached session. Entries past their TTL are deleted and
// reported as absent.
func (s *SQLiteStore) Get() (Session, error) {
	row := s.db.QueryRow(`SELECT access_token, refresh_token, expires_at, evict_at FROM session WHERE id = 1`)

	var sess Session
	var expiresAt, evictAt string
	err := row.Scan(&sess.AccessToken, &sess.RefreshToken, &expiresAt, &evictAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}

	evict, err := time.Parse(time.RFC3339Nano, evictAt)
	if err != nil {
		return Session{}, fmt.Errorf("parse evict_at: %w", err)
	}
	if !s.now().Before(evict) {
		_ = s.Clear()
		return Session{}, ErrNoSession
	}

	sess.ExpiresAt, err = time.Parse(time.RFC3339Nano, expiresAt)
	if err != nil {
		return Session{}, fmt.Errorf("parse expires_at: %w", err)
	}

	return sess, nil
}

// Set replaces the cached session.
func (s *SQLiteStore) Set(sess Session, ttl time.Duration) error {
	_, err := s.db.Exec(`
		INSERT INTO session (id, access_token, refresh_token, expires_at, evict_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			evict_at = excluded.evict_at
	`,
		sess.AccessToken,
		sess.RefreshToken,
		sess.ExpiresAt.UTC().Format(time.RFC3339Nano),
		s.now().Add(ttl).UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("cache session: %w", err)
	}
	return nil
}

// Clear removes the cached session.
func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM session WHERE id = 1`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
