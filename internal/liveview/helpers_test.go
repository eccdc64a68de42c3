package liveview

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ayusman/campuswatch/internal/gateway"
)

var testEpoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testEpoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Ticker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{d: d, ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Fire delivers one tick to every live ticker of period d and returns how
// many received it.
func (c *fakeClock) Fire(d time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, t := range c.tickers {
		if t.d != d || t.stopped.Load() {
			continue
		}
		select {
		case t.ch <- c.now:
			n++
		default:
		}
	}
	return n
}

type fakeTicker struct {
	d       time.Duration
	ch      chan time.Time
	stopped atomic.Bool
}

func (t *fakeTicker) Chan() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()                  { t.stopped.Store(true) }

// fakeGateway answers from fields set by the test. An operation can be
// blocked with block and released by closing the returned channel.
type fakeGateway struct {
	mu    sync.Mutex
	calls map[string]int
	gates map[string]chan struct{}
	errs  map[string]error

	camera     gateway.CameraStatus
	frame      gateway.Frame
	stats      gateway.Statistics
	detections []gateway.Detection
	alerts     []gateway.Alert
	result     gateway.CommandResult
	lastDate   time.Time
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		calls:  make(map[string]int),
		gates:  make(map[string]chan struct{}),
		errs:   make(map[string]error),
		result: gateway.CommandResult{Success: true},
	}
}

func (f *fakeGateway) block(op string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gates[op] = gate
	return gate
}

func (f *fakeGateway) set(fn func(f *fakeGateway)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeGateway) fail(op string, err error) {
	f.set(func(f *fakeGateway) { f.errs[op] = err })
}

func (f *fakeGateway) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeGateway) enter(ctx context.Context, op string) error {
	f.mu.Lock()
	f.calls[op]++
	gate := f.gates[op]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[op]
}

// CameraStatus and Frame answer with the state at the time the request
// arrived, so a blocked call returns a stale value once released.
func (f *fakeGateway) CameraStatus(ctx context.Context) (gateway.CameraStatus, error) {
	f.mu.Lock()
	status := f.camera
	f.mu.Unlock()
	if err := f.enter(ctx, "camera-status"); err != nil {
		return gateway.CameraStatus{}, err
	}
	return status, nil
}

func (f *fakeGateway) Frame(ctx context.Context) (gateway.Frame, error) {
	f.mu.Lock()
	frame := f.frame
	f.mu.Unlock()
	if err := f.enter(ctx, "frame"); err != nil {
		return gateway.Frame{}, err
	}
	return frame, nil
}

func (f *fakeGateway) Statistics(ctx context.Context) (gateway.Statistics, error) {
	if err := f.enter(ctx, "statistics"); err != nil {
		return gateway.Statistics{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats, nil
}

func (f *fakeGateway) RecentDetections(ctx context.Context, date time.Time) ([]gateway.Detection, error) {
	f.set(func(f *fakeGateway) { f.lastDate = date })
	if err := f.enter(ctx, "recent-detections"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detections, nil
}

func (f *fakeGateway) Alerts(ctx context.Context) ([]gateway.Alert, error) {
	if err := f.enter(ctx, "alerts"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alerts, nil
}

func (f *fakeGateway) command(ctx context.Context, op string) (gateway.CommandResult, error) {
	if err := f.enter(ctx, op); err != nil {
		return gateway.CommandResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, nil
}

func (f *fakeGateway) AcknowledgeAlert(ctx context.Context, id int64) (gateway.CommandResult, error) {
	return f.command(ctx, "acknowledge-alert")
}

func (f *fakeGateway) StartCamera(ctx context.Context) (gateway.CommandResult, error) {
	return f.command(ctx, "start-camera")
}

func (f *fakeGateway) StopCamera(ctx context.Context) (gateway.CommandResult, error) {
	return f.command(ctx, "stop-camera")
}

func (f *fakeGateway) StartRecording(ctx context.Context) (gateway.CommandResult, error) {
	return f.command(ctx, "start-recording")
}

func (f *fakeGateway) StopRecording(ctx context.Context) (gateway.CommandResult, error) {
	return f.command(ctx, "stop-recording")
}

func (f *fakeGateway) TakeSnapshot(ctx context.Context) (gateway.CommandResult, error) {
	return f.command(ctx, "snapshot")
}

func (f *fakeGateway) AddPerson(ctx context.Context, p gateway.NewPerson) (gateway.CommandResult, error) {
	return f.command(ctx, "add-person")
}

func (f *fakeGateway) DeletePerson(ctx context.Context, id int64) (gateway.CommandResult, error) {
	return f.command(ctx, "delete-person")
}

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *recordingNotifier) NotifySuccess(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, text)
}

func (n *recordingNotifier) NotifyError(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, text)
}

func (n *recordingNotifier) Errors() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.errors...)
}

func (n *recordingNotifier) Successes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.successes...)
}

func pickTasks(all []*Task, ids ...string) []*Task {
	var out []*Task
	for _, id := range ids {
		for _, t := range all {
			if t.ID == id {
				out = append(out, t)
			}
		}
	}
	return out
}

func taskStatus(t *testing.T, s *Scheduler, id string) TaskStatus {
	t.Helper()
	for _, st := range s.Tasks() {
		if st.ID == id {
			return st
		}
	}
	require.FailNow(t, "task not registered", id)
	return TaskStatus{}
}

const (
	waitFor   = 2 * time.Second
	pollEvery = 5 * time.Millisecond
)
