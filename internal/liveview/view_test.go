package liveview

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/campuswatch/internal/gateway"
)

func TestView_InitialFetchAndClose(t *testing.T) {
	gw := newFakeGateway()
	gw.set(func(f *fakeGateway) {
		f.camera = gateway.CameraStatus{Running: true, FacesDetected: 2}
		f.stats = gateway.Statistics{KnownPersons: 7}
		f.alerts = testAlerts()
	})

	v := NewView(gw, ViewOptions{Clock: newFakeClock()})
	require.NoError(t, v.Open(context.Background()))
	v.Scheduler().Wait()

	snap := v.Snapshot()
	assert.True(t, snap.Camera.Running)
	assert.Equal(t, 7, snap.Statistics.KnownPersons)
	assert.Len(t, snap.Alerts, 5)
	assert.Len(t, v.Scheduler().Tasks(), 5)

	v.Close()
	v.Close()
	assert.True(t, v.Store().Closed())
	assert.False(t, v.Scheduler().Running())

	_, err := v.Commands().AcknowledgeAlert(context.Background(), 1)
	assert.ErrorIs(t, err, ErrViewClosed)
}

func TestView_FrameCheckRejectsFrame(t *testing.T) {
	gw := newFakeGateway()
	gw.set(func(f *fakeGateway) {
		f.camera = gateway.CameraStatus{Running: true}
		f.frame = gateway.Frame{Data: "garbage"}
	})

	notifier := &recordingNotifier{}
	v := NewView(gw, ViewOptions{
		Clock:      newFakeClock(),
		Notifier:   notifier,
		FrameCheck: func(gateway.Frame) error { return errors.New("not a jpeg") },
	})
	v.Store().MergeCameraStatus(gateway.CameraStatus{Running: true})

	require.NoError(t, v.Open(context.Background()))
	defer v.Close()
	v.Scheduler().Wait()

	assert.Nil(t, v.Snapshot().Frame)
	assert.Contains(t, notifier.Errors(), "Failed to fetch frame: not a jpeg")
}
