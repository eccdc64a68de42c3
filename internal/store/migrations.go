package store

import (
	"errors"
	"fmt"
)

// ErrSchemaTooNew is returned when the database was written by a newer build.
var ErrSchemaTooNew = errors.New("database schema is newer than this build")

// migrations are applied in order. PRAGMA user_version records how many have
// run, so released entries must never change.
var migrations = [][]string{
	// 1: every success or error shown to the operator
	{
		`CREATE TABLE IF NOT EXISTS notifications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			level TEXT NOT NULL CHECK(level IN ('success', 'error')),
			message TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_created_at ON notifications(created_at)`,
	},
	// 2: outcome of every operator command
	{
		`CREATE TABLE IF NOT EXISTS command_log (
			id TEXT PRIMARY KEY,
			command TEXT NOT NULL,
			target TEXT NOT NULL DEFAULT '',
			success INTEGER NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_command_log_started_at ON command_log(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_command_log_command ON command_log(command)`,
	},
	// 3: failure counts
	{
		`CREATE INDEX IF NOT EXISTS idx_command_log_success ON command_log(success, started_at)`,
	},
}

// SchemaVersion returns the number of migrations applied to the database.
func (s *Store) SchemaVersion() (int, error) {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// runMigrations applies the migrations the database has not seen yet, each
// in its own transaction.
func (s *Store) runMigrations() error {
	version, err := s.SchemaVersion()
	if err != nil {
		return err
	}
	if version > len(migrations) {
		return fmt.Errorf("%w: version %d, supported %d", ErrSchemaTooNew, version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		if err := s.applyMigration(i+1, migrations[i]); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) applyMigration(version int, statements []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", version, err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", version, err)
		}
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", version, err)
	}

	return tx.Commit()
}
