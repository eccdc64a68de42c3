package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Notification levels.
const (
	LevelSuccess = "success"
	LevelError   = "error"
)

// Notification is one message shown to the operator.
type Notification struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationRepository stores and lists notifications.
type NotificationRepository struct {
	db *sql.DB
}

// Notifications returns the notification repository for this store.
func (s *Store) Notifications() *NotificationRepository {
	return &NotificationRepository{db: s.db}
}

// Create inserts a notification and sets its ID. A zero CreatedAt is
// stamped with the current time.
func (r *NotificationRepository) Create(n *Notification) error {
	if n.Level != LevelSuccess && n.Level != LevelError {
		return fmt.Errorf("invalid notification level %q", n.Level)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	result, err := r.db.Exec(
		`INSERT INTO notifications (level, message, created_at) VALUES (?, ?, ?)`,
		n.Level, n.Message, n.CreatedAt.UTC(),
	)
	if err != nil {
		return err
	}

	n.ID, err = result.LastInsertId()
	return err
}

// List returns the most recent notifications, newest first.
func (r *NotificationRepository) List(limit int) ([]*Notification, error) {
	rows, err := r.db.Query(
		`SELECT id, level, message, created_at FROM notifications
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		listLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := []*Notification{}
	for rows.Next() {
		n := &Notification{}
		if err := rows.Scan(&n.ID, &n.Level, &n.Message, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return notifications, nil
}

// Prune deletes notifications created before cutoff and returns how many
// were removed.
func (r *NotificationRepository) Prune(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM notifications WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
