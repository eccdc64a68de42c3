package liveview

import (
	"context"
	"time"

	"github.com/ayusman/campuswatch/internal/gateway"
)

// Gateway is the set of backend operations the live view consumes.
// *gateway.Client implements it.
type Gateway interface {
	CameraStatus(ctx context.Context) (gateway.CameraStatus, error)
	Frame(ctx context.Context) (gateway.Frame, error)
	Statistics(ctx context.Context) (gateway.Statistics, error)
	RecentDetections(ctx context.Context, date time.Time) ([]gateway.Detection, error)
	Alerts(ctx context.Context) ([]gateway.Alert, error)

	AcknowledgeAlert(ctx context.Context, id int64) (gateway.CommandResult, error)
	StartCamera(ctx context.Context) (gateway.CommandResult, error)
	StopCamera(ctx context.Context) (gateway.CommandResult, error)
	StartRecording(ctx context.Context) (gateway.CommandResult, error)
	StopRecording(ctx context.Context) (gateway.CommandResult, error)
	TakeSnapshot(ctx context.Context) (gateway.CommandResult, error)
	AddPerson(ctx context.Context, p gateway.NewPerson) (gateway.CommandResult, error)
	DeletePerson(ctx context.Context, id int64) (gateway.CommandResult, error)
}

// Notifier surfaces human-readable outcomes to the operator.
// Implementations must not block the caller.
type Notifier interface {
	NotifySuccess(text string)
	NotifyError(text string)
}

// Nudger triggers an immediate run of a polling task.
type Nudger interface {
	Nudge(taskID string) bool
}

// Auditor receives the outcome of every command.
type Auditor interface {
	RecordCommand(rec CommandRecord)
}

type nopNotifier struct{}

func (nopNotifier) NotifySuccess(string) {}
func (nopNotifier) NotifyError(string)   {}
