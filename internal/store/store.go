// Package store provides SQLite storage for the campuswatch console journal.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// DefaultListLimit caps list queries that do not name a limit.
const DefaultListLimit = 100

// Store represents a SQLite database holding notifications and command history.
type Store struct {
	db   *sql.DB
	path string
}

// New creates a new Store with the given database path.
// It opens the database connection and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Writers queue behind each other instead of failing with SQLITE_BUSY
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

// Compaction reports what Compact removed.
type Compaction struct {
	Notifications int64
	Commands      int64
}

// Compact removes journal entries older than cutoff.
func (s *Store) Compact(cutoff time.Time) (Compaction, error) {
	var c Compaction
	var err error

	if c.Notifications, err = s.Notifications().Prune(cutoff); err != nil {
		return c, fmt.Errorf("failed to prune notifications: %w", err)
	}
	if c.Commands, err = s.Commands().Prune(cutoff); err != nil {
		return c, fmt.Errorf("failed to prune commands: %w", err)
	}
	return c, nil
}
