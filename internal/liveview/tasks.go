package liveview

import (
	"context"
	"errors"
	"time"

	"github.com/ayusman/campuswatch/internal/gateway"
)

// Task ids of the standard live view.
const (
	TaskCameraStatus     = "camera-status"
	TaskFrame            = "frame"
	TaskStatistics       = "statistics"
	TaskRecentDetections = "recent-detections"
	TaskAlerts           = "alerts"
)

// Intervals holds the polling period of each standard task.
type Intervals struct {
	CameraStatus     time.Duration
	Frame            time.Duration
	Statistics       time.Duration
	RecentDetections time.Duration
	Alerts           time.Duration
}

// DefaultIntervals returns the cadences the console has always used.
func DefaultIntervals() Intervals {
	return Intervals{
		CameraStatus:     2 * time.Second,
		Frame:            500 * time.Millisecond,
		Statistics:       5 * time.Second,
		RecentDetections: 5 * time.Second,
		Alerts:           10 * time.Second,
	}
}

// FrameCheck validates a fetched frame before it is merged. A non-nil error
// fails the poll.
type FrameCheck func(gateway.Frame) error

// StandardTasks builds the five live view tasks against gw. The frame task
// is enabled only while the camera reports running.
func StandardTasks(gw Gateway, clock Clock, iv Intervals, check FrameCheck) []*Task {
	if clock == nil {
		clock = RealClock{}
	}

	return []*Task{
		{
			ID:       TaskCameraStatus,
			Label:    "camera status",
			Interval: iv.CameraStatus,
			Enabled:  Always,
			Fetch: func(ctx context.Context) (Merge, error) {
				st, err := gw.CameraStatus(ctx)
				if err != nil {
					return nil, err
				}
				return func(s *Store) { s.MergeCameraStatus(st) }, nil
			},
		},
		{
			ID:       TaskFrame,
			Label:    "frame",
			Interval: iv.Frame,
			Enabled:  CameraRunning,
			Fetch: func(ctx context.Context) (Merge, error) {
				f, err := gw.Frame(ctx)
				if err != nil {
					return nil, err
				}
				if check != nil {
					if err := check(f); err != nil {
						return nil, err
					}
				}
				return func(s *Store) { s.MergeFrame(f) }, nil
			},
			Quiet: func(err error) bool { return errors.Is(err, gateway.ErrNoFrame) },
		},
		{
			ID:       TaskStatistics,
			Label:    "statistics",
			Interval: iv.Statistics,
			Enabled:  Always,
			Fetch: func(ctx context.Context) (Merge, error) {
				st, err := gw.Statistics(ctx)
				if err != nil {
					return nil, err
				}
				return func(s *Store) { s.MergeStatistics(st) }, nil
			},
		},
		{
			ID:       TaskRecentDetections,
			Label:    "recent detections",
			Interval: iv.RecentDetections,
			Enabled:  Always,
			Fetch: func(ctx context.Context) (Merge, error) {
				d, err := gw.RecentDetections(ctx, clock.Now())
				if err != nil {
					return nil, err
				}
				return func(s *Store) { s.MergeRecentDetections(d) }, nil
			},
		},
		{
			ID:       TaskAlerts,
			Label:    "alerts",
			Interval: iv.Alerts,
			Enabled:  Always,
			Fetch: func(ctx context.Context) (Merge, error) {
				a, err := gw.Alerts(ctx)
				if err != nil {
					return nil, err
				}
				return func(s *Store) { s.MergeAlerts(a) }, nil
			},
		},
	}
}
