package liveview

import (
	"context"
	"time"
)

// Predicate decides from the latest snapshot whether a task may run.
type Predicate func(Snapshot) bool

// Merge applies one successful result to the store.
type Merge func(*Store)

// FetchFunc performs a task's remote operation and returns how to merge it.
type FetchFunc func(ctx context.Context) (Merge, error)

// Always is the predicate of tasks that run on every tick.
func Always(Snapshot) bool { return true }

// CameraRunning enables a task only while the camera reports running.
func CameraRunning(s Snapshot) bool { return s.Camera.Running }

// Task is one recurring remote fetch. Its runtime state is owned by the
// scheduler that runs it.
type Task struct {
	ID       string
	Label    string
	Interval time.Duration
	Enabled  Predicate
	Fetch    FetchFunc
	// Quiet reports failures that are recorded in lastError but not sent to
	// the notifier, unlike every other failure. The frame task uses it for
	// gateway.ErrNoFrame, the backend having no frame to serve yet.
	Quiet func(error) bool

	inFlight     bool
	nudgePending bool
	lastError    error
	issued       uint64
	skipped      uint64
	succeeded    uint64
	failed       uint64
	discarded    uint64
	lastRun      time.Time
}

// TaskStatus is a point-in-time copy of a task's runtime state.
type TaskStatus struct {
	ID        string        `json:"id"`
	Interval  time.Duration `json:"interval"`
	InFlight  bool          `json:"in_flight"`
	Nudged    bool          `json:"nudged"`
	LastError string        `json:"last_error,omitempty"`
	Issued    uint64        `json:"issued"`
	Skipped   uint64        `json:"skipped"`
	Succeeded uint64        `json:"succeeded"`
	Failed    uint64        `json:"failed"`
	Discarded uint64        `json:"discarded"`
	LastRun   time.Time     `json:"last_run"`
}

func (t *Task) label() string {
	if t.Label != "" {
		return t.Label
	}
	return t.ID
}

func (t *Task) enabled(s Snapshot) bool {
	if t.Enabled == nil {
		return true
	}
	return t.Enabled(s)
}

func (t *Task) status() TaskStatus {
	st := TaskStatus{
		ID:        t.ID,
		Interval:  t.Interval,
		InFlight:  t.inFlight,
		Nudged:    t.nudgePending,
		Issued:    t.issued,
		Skipped:   t.skipped,
		Succeeded: t.succeeded,
		Failed:    t.failed,
		Discarded: t.discarded,
		LastRun:   t.lastRun,
	}
	if t.lastError != nil {
		st.LastError = t.lastError.Error()
	}
	return st
}
