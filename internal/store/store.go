// Package store provides the SQLite persistence layer for the locator cache.
//
// The cache is append-only: healing a logical key adds an entry and marks the
// previous current entry as superseded by it. Entries are never deleted by
// the heal path, so a key's full history stays available for diagnosis.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store is the locator cache database handle.
type Store struct {
	DB *sql.DB

	// Now stamps new entries. Defaults to time.Now.
	Now func() time.Time
}

// pragmas applied on every connection open.
var pragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
}

// Open opens (or creates) the cache database at path, applies pragmas and
// the schema. The caller must blank-import modernc.org/sqlite.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := Init(db); err != nil {
		db.Close()
		return nil, err
	}
	return New(db), nil
}

// New wraps an initialised database.
func New(db *sql.DB) *Store {
	return &Store{DB: db, Now: time.Now}
}

// Init applies pragmas and the schema to db.
func Init(db *sql.DB) error {
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("store: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("store: apply schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) now() int64 {
	if s.Now == nil {
		return time.Now().UnixMilli()
	}
	return s.Now().UnixMilli()
}
