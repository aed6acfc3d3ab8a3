// Package store persists lesson progress snapshots and session records
// in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// schema creates the tables on open. Snapshots are keyed by
// (lesson_id, locale); the last_lesson memento is a single row.
const schema = `
CREATE TABLE IF NOT EXISTS progress (
	lesson_id   TEXT NOT NULL,
	locale      TEXT NOT NULL,
	idx         INTEGER NOT NULL,
	activity_id TEXT,
	scores      TEXT NOT NULL DEFAULT '[]',
	updated_at  INTEGER NOT NULL,
	PRIMARY KEY (lesson_id, locale)
);

CREATE TABLE IF NOT EXISTS last_lesson (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	lesson_id   TEXT NOT NULL,
	locale      TEXT NOT NULL,
	idx         INTEGER NOT NULL,
	activity_id TEXT,
	scores      TEXT NOT NULL DEFAULT '[]',
	updated_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id              TEXT PRIMARY KEY,
	minutes_allowed INTEGER NOT NULL,
	status          TEXT NOT NULL DEFAULT 'active',
	started_at      INTEGER NOT NULL,
	end_at          INTEGER NOT NULL
);
`

// Store holds the database handle and provides access to repositories.
type Store struct {
	db *sql.DB
}

// Open creates a new Store on the SQLite database at dsn. It applies
// recommended pragmas and creates missing tables.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ProgressRepo returns the snapshot repository backed by this store.
func (s *Store) ProgressRepo() *ProgressRepo {
	return &ProgressRepo{db: s.db}
}

// SessionRepo returns the session-record repository backed by this store.
func (s *Store) SessionRepo() *SessionRepo {
	return &SessionRepo{db: s.db}
}

// applyPragmas configures SQLite for single-user durability.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. SPEAKQUEST_DB environment variable
// 2. $XDG_DATA_HOME/speakquest/speakquest.db
// 3. ~/.local/share/speakquest/speakquest.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("SPEAKQUEST_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "speakquest", "speakquest.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
