package liveview

import "errors"

var (
	// ErrCommandBusy is returned when the same command is already outstanding.
	ErrCommandBusy = errors.New("command already in progress")
	// ErrCommandRejected is returned when the backend answers success=false.
	ErrCommandRejected = errors.New("command rejected by backend")
	// ErrAlertNotFound is returned when an alert id is not in the store.
	ErrAlertNotFound = errors.New("alert not found")
	// ErrAlreadyAcknowledged is returned when acknowledging an acknowledged alert.
	ErrAlreadyAcknowledged = errors.New("alert already acknowledged")
	// ErrSchedulerStopped is returned when starting a scheduler that was stopped.
	ErrSchedulerStopped = errors.New("scheduler stopped")
	// ErrSchedulerRunning is returned when starting a running scheduler.
	ErrSchedulerRunning = errors.New("scheduler already running")
	// ErrViewClosed is returned for writes after the view was closed.
	ErrViewClosed = errors.New("live view closed")
	// ErrUnknownTask is returned when a task id is not registered.
	ErrUnknownTask = errors.New("unknown task")
	// ErrInvalidTask is returned when a task definition cannot be scheduled.
	ErrInvalidTask = errors.New("invalid task")
)
