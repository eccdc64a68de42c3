package store

import (
	"database/sql"
	"errors"
	"time"
)

// CommandEntry is the journaled outcome of one operator command.
type CommandEntry struct {
	ID         string    `json:"id"`
	Command    string    `json:"command"`
	Target     string    `json:"target,omitempty"`
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// CommandRepository stores and lists command outcomes.
type CommandRepository struct {
	db *sql.DB
}

// Commands returns the command log repository for this store.
func (s *Store) Commands() *CommandRepository {
	return &CommandRepository{db: s.db}
}

// Create inserts a command outcome.
func (r *CommandRepository) Create(e *CommandEntry) error {
	success := 0
	if e.Success {
		success = 1
	}

	_, err := r.db.Exec(
		`INSERT INTO command_log (id, command, target, success, message, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Command, e.Target, success, e.Message, e.StartedAt.UTC(), e.FinishedAt.UTC(),
	)
	return err
}

// GetByID retrieves a command outcome by its ID.
func (r *CommandRepository) GetByID(id string) (*CommandEntry, error) {
	row := r.db.QueryRow(
		`SELECT id, command, target, success, message, started_at, finished_at
		 FROM command_log WHERE id = ?`,
		id,
	)

	e, err := scanCommand(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// List returns the most recent command outcomes, newest first.
func (r *CommandRepository) List(limit int) ([]*CommandEntry, error) {
	rows, err := r.db.Query(
		`SELECT id, command, target, success, message, started_at, finished_at
		 FROM command_log ORDER BY started_at DESC LIMIT ?`,
		listLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*CommandEntry{}
	for rows.Next() {
		e, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// CountFailures returns how many commands failed since the given time.
func (r *CommandRepository) CountFailures(since time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM command_log WHERE success = 0 AND started_at >= ?`,
		since.UTC(),
	).Scan(&n)
	return n, err
}

// Prune deletes command outcomes started before cutoff.
func (r *CommandRepository) Prune(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM command_log WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommand(row rowScanner) (*CommandEntry, error) {
	e := &CommandEntry{}
	var success int
	if err := row.Scan(&e.ID, &e.Command, &e.Target, &success, &e.Message, &e.StartedAt, &e.FinishedAt); err != nil {
		return nil, err
	}
	e.Success = success != 0
	return e, nil
}
