package store

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCommandRepository_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	repo := s.Commands()

	started := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	e := &CommandEntry{
		ID:         uuid.NewString(),
		Command:    "acknowledge-alert",
		Target:     "12",
		Success:    true,
		Message:    "Alert acknowledged",
		StartedAt:  started,
		FinishedAt: started.Add(150 * time.Millisecond),
	}
	if err := repo.Create(e); err != nil {
		t.Fatalf("failed to create command entry: %v", err)
	}

	got, err := repo.GetByID(e.ID)
	if err != nil {
		t.Fatalf("failed to get command entry: %v", err)
	}
	if got.Command != e.Command || got.Target != e.Target || !got.Success || got.Message != e.Message {
		t.Errorf("unexpected entry %+v", got)
	}
	if got.FinishedAt.Sub(got.StartedAt) != 150*time.Millisecond {
		t.Errorf("expected 150ms duration, got %v", got.FinishedAt.Sub(got.StartedAt))
	}
}

func TestCommandRepository_GetByID_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Commands().GetByID(uuid.NewString())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCommandRepository_ListAndCountFailures(t *testing.T) {
	s := newTestStore(t)
	repo := s.Commands()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	outcomes := []bool{true, false, false, true}
	for i, ok := range outcomes {
		at := base.Add(time.Duration(i) * time.Minute)
		e := &CommandEntry{
			ID:         uuid.NewString(),
			Command:    "start-camera",
			Success:    ok,
			StartedAt:  at,
			FinishedAt: at.Add(time.Second),
		}
		if err := repo.Create(e); err != nil {
			t.Fatalf("failed to create command entry: %v", err)
		}
	}

	list, err := repo.List(10)
	if err != nil {
		t.Fatalf("failed to list command entries: %v", err)
	}
	if len(list) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(list))
	}
	if !list[0].StartedAt.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("expected newest first, got %v", list[0].StartedAt)
	}

	n, err := repo.CountFailures(base.Add(2 * time.Minute))
	if err != nil {
		t.Fatalf("failed to count failures: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 failure since 09:02, got %d", n)
	}
}

func TestCommandRepository_DuplicateID(t *testing.T) {
	s := newTestStore(t)
	repo := s.Commands()

	now := time.Now()
	e := &CommandEntry{ID: uuid.NewString(), Command: "snapshot", StartedAt: now, FinishedAt: now}
	if err := repo.Create(e); err != nil {
		t.Fatalf("failed to create command entry: %v", err)
	}
	if err := repo.Create(e); err == nil {
		t.Error("expected error for duplicate id")
	}
}
