package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "campuswatch-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	s, err := New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "campuswatch-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "test.db")

	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Fatal("database file should not exist before creating store")
	}

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file should exist after creating store")
	}
	if s.Path() != dbPath {
		t.Errorf("expected path %q, got %q", dbPath, s.Path())
	}
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"notifications", "command_log"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q should exist after migrations: %v", table, err)
		}
	}
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "campuswatch-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := s.Notifications().Create(&Notification{Level: LevelSuccess, Message: "hello"}); err != nil {
		t.Fatalf("failed to create notification: %v", err)
	}
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s.Close()

	list, err := s.Notifications().List(0)
	if err != nil {
		t.Fatalf("failed to list notifications: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 notification after reopen, got %d", len(list))
	}
}

func TestStore_Close(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "campuswatch-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	s, err := New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("close should not return error: %v", err)
	}

	// After closing, DB operations should fail
	if _, err := s.DB().Exec("SELECT 1"); err == nil {
		t.Error("DB operations should fail after close")
	}
}

func TestStore_IndexesCreated(t *testing.T) {
	s := newTestStore(t)

	indexes := []string{
		"idx_notifications_created_at",
		"idx_command_log_started_at",
		"idx_command_log_command",
		"idx_command_log_success",
	}
	for _, idx := range indexes {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='index' AND name=?",
			idx,
		).Scan(&name)
		if err != nil {
			t.Errorf("index %q should exist after migrations: %v", idx, err)
		}
	}
}

func TestStore_Compact(t *testing.T) {
	s := newTestStore(t)

	cutoff := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	for _, at := range []time.Time{cutoff.Add(-48 * time.Hour), cutoff.Add(-time.Hour), cutoff.Add(time.Hour)} {
		if err := s.Notifications().Create(&Notification{Level: LevelSuccess, Message: "Camera stopped", CreatedAt: at}); err != nil {
			t.Fatalf("failed to create notification: %v", err)
		}
		e := &CommandEntry{ID: uuid.NewString(), Command: "stop-camera", Success: true, StartedAt: at, FinishedAt: at}
		if err := s.Commands().Create(e); err != nil {
			t.Fatalf("failed to create command entry: %v", err)
		}
	}

	c, err := s.Compact(cutoff)
	if err != nil {
		t.Fatalf("Compact() error = %v", err)
	}
	if c.Notifications != 2 || c.Commands != 2 {
		t.Errorf("expected 2 notifications and 2 commands removed, got %+v", c)
	}

	left, err := s.Commands().List(0)
	if err != nil {
		t.Fatalf("failed to list commands: %v", err)
	}
	if len(left) != 1 || !left[0].StartedAt.Equal(cutoff.Add(time.Hour)) {
		t.Errorf("expected only the entry after cutoff to remain, got %d entries", len(left))
	}
}

func TestStore_SchemaVersion(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	version, err := s.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != len(migrations) {
		t.Errorf("expected version %d, got %d", len(migrations), version)
	}

	// Pretend a newer build touched the file.
	if _, err := s.DB().Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("failed to bump version: %v", err)
	}
	s.Close()

	if _, err := New(dbPath); !errors.Is(err, ErrSchemaTooNew) {
		t.Errorf("expected ErrSchemaTooNew, got %v", err)
	}
}
