package liveview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/campuswatch/internal/gateway"
)

func newTestScheduler(gw *fakeGateway, ids ...string) (*Scheduler, *Store, *fakeClock, *recordingNotifier, []*Task) {
	clock := newFakeClock()
	notifier := &recordingNotifier{}
	store := NewStore(DefaultDetectionsWindow, clock)
	sched := NewScheduler(store, SchedulerOptions{Clock: clock, Notifier: notifier})
	tasks := pickTasks(StandardTasks(gw, clock, DefaultIntervals(), nil), ids...)
	return sched, store, clock, notifier, tasks
}

func TestScheduler_SkipsTickWhileInFlight(t *testing.T) {
	gw := newFakeGateway()
	gate := gw.block("statistics")
	sched, _, clock, _, tasks := newTestScheduler(gw, TaskStatistics)
	iv := DefaultIntervals().Statistics

	require.NoError(t, sched.Start(context.Background(), tasks...))
	defer sched.Stop()

	require.Eventually(t, func() bool { return gw.count("statistics") == 1 }, waitFor, pollEvery)
	assert.True(t, taskStatus(t, sched, TaskStatistics).InFlight)

	for i := 1; i <= 3; i++ {
		require.Equal(t, 1, clock.Fire(iv))
		want := uint64(i)
		require.Eventually(t, func() bool {
			return taskStatus(t, sched, TaskStatistics).Skipped == want
		}, waitFor, pollEvery)
	}
	assert.Equal(t, 1, gw.count("statistics"), "no request may overlap the outstanding one")

	close(gate)
	require.Eventually(t, func() bool {
		return taskStatus(t, sched, TaskStatistics).Succeeded == 1
	}, waitFor, pollEvery)
	assert.False(t, taskStatus(t, sched, TaskStatistics).InFlight)

	clock.Fire(iv)
	require.Eventually(t, func() bool { return gw.count("statistics") == 2 }, waitFor, pollEvery)
}

func TestScheduler_NoFrameRequestWhileCameraStopped(t *testing.T) {
	gw := newFakeGateway()
	sched, store, clock, _, tasks := newTestScheduler(gw, TaskCameraStatus, TaskFrame)
	iv := DefaultIntervals()

	require.NoError(t, sched.Start(context.Background(), tasks...))
	defer sched.Stop()

	require.Eventually(t, func() bool {
		return taskStatus(t, sched, TaskCameraStatus).Succeeded == 1
	}, waitFor, pollEvery)

	for i := 0; i < 5; i++ {
		clock.Fire(iv.Frame)
	}
	// Give the frame loop a chance to process the ticks.
	require.Never(t, func() bool { return gw.count("frame") > 0 }, 100*time.Millisecond, pollEvery)
	assert.Equal(t, uint64(0), taskStatus(t, sched, TaskFrame).Issued)

	gw.set(func(f *fakeGateway) {
		f.camera = gateway.CameraStatus{Running: true}
		f.frame = gateway.Frame{Data: "data:image/jpeg;base64,AAAA"}
	})
	clock.Fire(iv.CameraStatus)
	require.Eventually(t, func() bool { return store.Snapshot().Camera.Running }, waitFor, pollEvery)

	clock.Fire(iv.Frame)
	require.Eventually(t, func() bool { return store.Snapshot().Frame != nil }, waitFor, pollEvery)
	assert.Equal(t, 1, gw.count("frame"))
}

func TestScheduler_FrameClearedWhenCameraStops(t *testing.T) {
	gw := newFakeGateway()
	gw.set(func(f *fakeGateway) {
		f.camera = gateway.CameraStatus{Running: true}
		f.frame = gateway.Frame{Data: "data:image/jpeg;base64,AAAA"}
	})
	sched, store, clock, _, tasks := newTestScheduler(gw, TaskCameraStatus, TaskFrame)
	iv := DefaultIntervals()

	require.NoError(t, sched.Start(context.Background(), tasks...))
	defer sched.Stop()

	require.Eventually(t, func() bool { return store.Snapshot().Camera.Running }, waitFor, pollEvery)
	clock.Fire(iv.Frame)
	require.Eventually(t, func() bool { return store.Snapshot().Frame != nil }, waitFor, pollEvery)

	updates, cancel := store.Subscribe()
	defer cancel()
	<-updates

	gw.set(func(f *fakeGateway) { f.camera = gateway.CameraStatus{} })
	clock.Fire(iv.CameraStatus)

	select {
	case snap := <-updates:
		assert.False(t, snap.Camera.Running)
		assert.Nil(t, snap.Frame, "frame must be cleared in the same update")
	case <-time.After(waitFor):
		t.Fatal("no snapshot after camera stopped")
	}
}

func TestScheduler_FailureKeepsLastGoodValue(t *testing.T) {
	gw := newFakeGateway()
	gw.set(func(f *fakeGateway) { f.stats = gateway.Statistics{TotalDetections: 1} })
	sched, store, clock, notifier, tasks := newTestScheduler(gw, TaskStatistics)
	iv := DefaultIntervals().Statistics

	require.NoError(t, sched.Start(context.Background(), tasks...))
	defer sched.Stop()
	sched.Wait()
	require.Equal(t, 1, store.Snapshot().Statistics.TotalDetections)

	for poll := 2; poll <= 10; poll++ {
		n := poll
		if poll == 3 {
			gw.fail("statistics", errors.New("connection refused"))
		} else {
			gw.set(func(f *fakeGateway) {
				f.errs["statistics"] = nil
				f.stats = gateway.Statistics{TotalDetections: n, KnownPersons: 4}
			})
		}
		require.Equal(t, 1, clock.Fire(iv))
		require.Eventually(t, func() bool {
			st := taskStatus(t, sched, TaskStatistics)
			return st.Succeeded+st.Failed == uint64(n)
		}, waitFor, pollEvery, "poll %d", poll)

		st := taskStatus(t, sched, TaskStatistics)
		snap := store.Snapshot()
		if poll == 3 {
			assert.Equal(t, gateway.Statistics{TotalDetections: 2, KnownPersons: 4}, snap.Statistics, "poll 3")
			assert.Contains(t, st.LastError, "connection refused")
			continue
		}
		assert.Equal(t, gateway.Statistics{TotalDetections: n, KnownPersons: 4}, snap.Statistics, "poll %d", poll)
		assert.Empty(t, st.LastError, "poll %d", poll)
	}

	st := taskStatus(t, sched, TaskStatistics)
	assert.Equal(t, uint64(9), st.Succeeded)
	assert.Equal(t, uint64(1), st.Failed)
	require.Len(t, notifier.Errors(), 1)
	assert.Equal(t, "Failed to fetch statistics: connection refused", notifier.Errors()[0])
}

func TestScheduler_MissingFrameIsNotNotified(t *testing.T) {
	gw := newFakeGateway()
	gw.fail("frame", gateway.ErrNoFrame)
	sched, store, _, notifier, tasks := newTestScheduler(gw, TaskFrame)
	store.MergeCameraStatus(gateway.CameraStatus{Running: true})

	require.NoError(t, sched.Start(context.Background(), tasks...))
	defer sched.Stop()

	require.Eventually(t, func() bool {
		return taskStatus(t, sched, TaskFrame).Failed == 1
	}, waitFor, pollEvery)
	assert.Empty(t, notifier.Errors())
}

func TestScheduler_LateFrameAfterCameraStopIsDropped(t *testing.T) {
	gw := newFakeGateway()
	gw.set(func(f *fakeGateway) {
		f.camera = gateway.CameraStatus{Running: true}
		f.frame = gateway.Frame{Data: "data:image/jpeg;base64,AAAA"}
	})
	gate := gw.block("frame")
	sched, store, clock, _, tasks := newTestScheduler(gw, TaskCameraStatus, TaskFrame)
	iv := DefaultIntervals()

	require.NoError(t, sched.Start(context.Background(), tasks...))
	defer sched.Stop()
	require.Eventually(t, func() bool { return store.Snapshot().Camera.Running }, waitFor, pollEvery)

	require.Equal(t, 1, clock.Fire(iv.Frame))
	require.Eventually(t, func() bool { return gw.count("frame") == 1 }, waitFor, pollEvery)

	gw.set(func(f *fakeGateway) { f.camera = gateway.CameraStatus{} })
	require.Equal(t, 1, clock.Fire(iv.CameraStatus))
	require.Eventually(t, func() bool { return !store.Snapshot().Camera.Running }, waitFor, pollEvery)

	close(gate)
	require.Eventually(t, func() bool {
		return taskStatus(t, sched, TaskFrame).Succeeded == 1
	}, waitFor, pollEvery)

	snap := store.Snapshot()
	assert.False(t, snap.Camera.Running)
	assert.Nil(t, snap.Frame, "a frame fetched before the stop must not be shown")
}

func TestScheduler_NudgeWhileInFlightRefetches(t *testing.T) {
	gw := newFakeGateway()
	gw.set(func(f *fakeGateway) { f.camera = gateway.CameraStatus{Running: true} })
	sched, store, _, notifier, tasks := newTestScheduler(gw, TaskCameraStatus)
	cmds := NewCommands(gw, CommandsOptions{Store: store, Nudger: sched, Notifier: notifier})

	gate := gw.block("camera-status")
	require.NoError(t, sched.Start(context.Background(), tasks...))
	defer sched.Stop()
	require.Eventually(t, func() bool { return gw.count("camera-status") == 1 }, waitFor, pollEvery)

	// The backend stops the camera while the status request above is
	// still answering with running.
	gw.set(func(f *fakeGateway) { f.camera = gateway.CameraStatus{} })
	_, err := cmds.StopCamera(context.Background())
	require.NoError(t, err)

	st := taskStatus(t, sched, TaskCameraStatus)
	assert.True(t, st.Nudged)
	assert.Equal(t, 1, gw.count("camera-status"), "no request may overlap the outstanding one")

	close(gate)
	require.Eventually(t, func() bool {
		return taskStatus(t, sched, TaskCameraStatus).Succeeded == 2
	}, waitFor, pollEvery)
	sched.Wait()

	assert.Equal(t, 2, gw.count("camera-status"))
	assert.False(t, store.Snapshot().Camera.Running)
	st = taskStatus(t, sched, TaskCameraStatus)
	assert.False(t, st.Nudged)
	assert.Zero(t, st.Skipped)
}

func TestScheduler_NudgeDroppedWhenDiscarded(t *testing.T) {
	gw := newFakeGateway()
	gate := gw.block("alerts")
	sched, _, _, _, tasks := newTestScheduler(gw, TaskAlerts)

	require.NoError(t, sched.Start(context.Background(), tasks...))
	require.Eventually(t, func() bool { return gw.count("alerts") == 1 }, waitFor, pollEvery)
	assert.True(t, sched.Nudge(TaskAlerts))

	sched.Stop()
	close(gate)
	sched.Wait()

	assert.Equal(t, 1, gw.count("alerts"))
	assert.Equal(t, uint64(1), taskStatus(t, sched, TaskAlerts).Discarded)
}

func TestScheduler_NothingIssuedAfterStop(t *testing.T) {
	gw := newFakeGateway()
	all := []string{TaskCameraStatus, TaskFrame, TaskStatistics, TaskRecentDetections, TaskAlerts}
	sched, _, clock, _, tasks := newTestScheduler(gw, all...)

	require.NoError(t, sched.Start(context.Background(), tasks...))
	sched.Wait()
	sched.Stop()
	assert.False(t, sched.Running())

	before := map[string]int{}
	for _, id := range all {
		before[id] = gw.count(id)
	}

	iv := DefaultIntervals()
	for _, d := range []time.Duration{iv.CameraStatus, iv.Frame, iv.Statistics, iv.Alerts} {
		assert.Zero(t, clock.Fire(d), "tickers must be stopped")
	}
	for _, id := range all {
		assert.False(t, sched.Nudge(id))
	}
	sched.Wait()

	for _, id := range all {
		assert.Equal(t, before[id], gw.count(id), id)
	}
	assert.ErrorIs(t, sched.Start(context.Background(), tasks...), ErrSchedulerStopped)
}

func TestScheduler_DiscardsLateResultAfterStop(t *testing.T) {
	gw := newFakeGateway()
	gw.set(func(f *fakeGateway) { f.frame = gateway.Frame{Data: "late"} })
	gate := gw.block("frame")
	sched, store, _, notifier, tasks := newTestScheduler(gw, TaskFrame)
	store.MergeCameraStatus(gateway.CameraStatus{Running: true})
	gen := sched.Generation()

	require.NoError(t, sched.Start(context.Background(), tasks...))
	require.Eventually(t, func() bool { return gw.count("frame") == 1 }, waitFor, pollEvery)

	sched.Stop()
	assert.Greater(t, sched.Generation(), gen)
	version := store.Snapshot().Version

	close(gate)
	sched.Wait()

	assert.Equal(t, uint64(1), taskStatus(t, sched, TaskFrame).Discarded)
	assert.Nil(t, store.Snapshot().Frame)
	assert.Equal(t, version, store.Snapshot().Version)
	assert.Empty(t, notifier.Errors())
}

func TestScheduler_NudgeRunsTaskImmediately(t *testing.T) {
	gw := newFakeGateway()
	sched, _, _, _, tasks := newTestScheduler(gw, TaskAlerts)

	require.NoError(t, sched.Start(context.Background(), tasks...))
	defer sched.Stop()
	sched.Wait()
	require.Equal(t, 1, gw.count("alerts"))

	assert.True(t, sched.Nudge(TaskAlerts))
	sched.Wait()
	assert.Equal(t, 2, gw.count("alerts"))

	assert.False(t, sched.Nudge("nope"))
}

func TestScheduler_RecoversFromPanickingTask(t *testing.T) {
	clock := newFakeClock()
	notifier := &recordingNotifier{}
	sched := NewScheduler(NewStore(0, clock), SchedulerOptions{Clock: clock, Notifier: notifier})

	boom := &Task{
		ID:       "boom",
		Interval: time.Second,
		Fetch:    func(context.Context) (Merge, error) { panic("kaboom") },
	}
	require.NoError(t, sched.Start(context.Background(), boom))
	defer sched.Stop()
	sched.Wait()

	st := taskStatus(t, sched, "boom")
	assert.Equal(t, uint64(1), st.Failed)
	assert.Contains(t, st.LastError, "kaboom")
	assert.False(t, st.InFlight)
	assert.Len(t, notifier.Errors(), 1)
}

func TestScheduler_CallTimeout(t *testing.T) {
	gw := newFakeGateway()
	gw.block("statistics")
	clock := newFakeClock()
	store := NewStore(0, clock)
	sched := NewScheduler(store, SchedulerOptions{Clock: clock, CallTimeout: 20 * time.Millisecond})
	tasks := pickTasks(StandardTasks(gw, clock, DefaultIntervals(), nil), TaskStatistics)

	require.NoError(t, sched.Start(context.Background(), tasks...))
	defer sched.Stop()
	sched.Wait()

	st := taskStatus(t, sched, TaskStatistics)
	assert.Equal(t, uint64(1), st.Failed)
	assert.False(t, st.InFlight)
	assert.Contains(t, st.LastError, context.DeadlineExceeded.Error())
}

func TestScheduler_StartValidation(t *testing.T) {
	fetch := func(context.Context) (Merge, error) { return nil, nil }

	tests := []struct {
		name  string
		tasks []*Task
	}{
		{"nil task", []*Task{nil}},
		{"empty id", []*Task{{Interval: time.Second, Fetch: fetch}}},
		{"zero interval", []*Task{{ID: "a", Fetch: fetch}}},
		{"no fetch", []*Task{{ID: "a", Interval: time.Second}}},
		{"duplicate", []*Task{
			{ID: "a", Interval: time.Second, Fetch: fetch},
			{ID: "a", Interval: time.Second, Fetch: fetch},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched := NewScheduler(NewStore(0, nil), SchedulerOptions{Clock: newFakeClock()})
			err := sched.Start(context.Background(), tt.tasks...)
			assert.ErrorIs(t, err, ErrInvalidTask)
			assert.False(t, sched.Running())
		})
	}
}

func TestScheduler_StartTwice(t *testing.T) {
	gw := newFakeGateway()
	sched, _, _, _, tasks := newTestScheduler(gw, TaskAlerts)

	require.NoError(t, sched.Start(context.Background(), tasks...))
	defer sched.Stop()
	assert.ErrorIs(t, sched.Start(context.Background(), tasks...), ErrSchedulerRunning)
}

func TestStandardTasks_RecentDetectionsUsesClockDate(t *testing.T) {
	gw := newFakeGateway()
	sched, _, _, _, tasks := newTestScheduler(gw, TaskRecentDetections)

	require.NoError(t, sched.Start(context.Background(), tasks...))
	defer sched.Stop()
	sched.Wait()

	gw.mu.Lock()
	defer gw.mu.Unlock()
	assert.Equal(t, testEpoch, gw.lastDate)
}
