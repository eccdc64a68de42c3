// Package tray provides a system tray interface for the campuswatch console.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/campuswatch/internal/liveview"
)

// Tray shows camera and alert state in the system tray.
type Tray struct {
	onCamera    func(start bool)
	onRecording func(start bool)
	onConsole   func()
	onQuit      func()
	state       State
	mu          sync.RWMutex

	// Menu items stored for later updates
	menuStatus    *systray.MenuItem
	menuAlerts    *systray.MenuItem
	menuCamera    *systray.MenuItem
	menuRecording *systray.MenuItem
}

// State is the part of a snapshot the tray displays.
type State struct {
	Running       bool
	Recording     bool
	FacesDetected int
	PendingAlerts int
}

// StateOf extracts the tray state from a live view snapshot.
func StateOf(snap liveview.Snapshot) State {
	return State{
		Running:       snap.Camera.Running,
		Recording:     snap.Camera.Recording,
		FacesDetected: snap.Camera.FacesDetected,
		PendingAlerts: liveview.CountAlerts(snap.Alerts).Unacknowledged,
	}
}

// Title is the text shown next to the tray icon.
func (s State) Title() string {
	switch {
	case s.PendingAlerts > 0:
		return fmt.Sprintf("CW ⚠ %d", s.PendingAlerts)
	case s.Recording:
		return "CW ● REC"
	case s.Running:
		return "CW ●"
	default:
		return "CW ○"
	}
}

// StatusLine describes the camera.
func (s State) StatusLine() string {
	switch {
	case !s.Running:
		return "Camera: stopped"
	case s.Recording:
		return fmt.Sprintf("Camera: recording (%d faces)", s.FacesDetected)
	default:
		return fmt.Sprintf("Camera: running (%d faces)", s.FacesDetected)
	}
}

// AlertsLine describes the pending alerts.
func (s State) AlertsLine() string {
	if s.PendingAlerts == 1 {
		return "1 pending alert"
	}
	return fmt.Sprintf("%d pending alerts", s.PendingAlerts)
}

// CameraAction is the label of the camera toggle.
func (s State) CameraAction() string {
	if s.Running {
		return "Stop Camera"
	}
	return "Start Camera"
}

// RecordingAction is the label of the recording toggle.
func (s State) RecordingAction() string {
	if s.Recording {
		return "Stop Recording"
	}
	return "Start Recording"
}

// New creates a new Tray instance.
func New() *Tray {
	return &Tray{}
}

// OnCamera sets the callback invoked with true to start and false to stop the camera.
func (t *Tray) OnCamera(fn func(start bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCamera = fn
}

// OnRecording sets the callback invoked with true to start and false to stop recording.
func (t *Tray) OnRecording(fn func(start bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRecording = fn
}

// OnConsole sets the callback function to be called when the console menu item is clicked.
func (t *Tray) OnConsole(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onConsole = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle(State{}.Title())
	systray.SetTooltip("campuswatch")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem("Camera: unknown", "Camera state")
	t.menuStatus.Disable()
	t.menuAlerts = systray.AddMenuItem("0 pending alerts", "Unacknowledged alerts")
	t.menuAlerts.Disable()
	systray.AddSeparator()

	t.menuCamera = systray.AddMenuItem("Start Camera", "Start or stop the camera")
	t.menuRecording = systray.AddMenuItem("Start Recording", "Start or stop recording")
	systray.AddSeparator()
	t.mu.Unlock()

	menuConsole := systray.AddMenuItem("Open Console...", "Open the console in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit campuswatch")

	t.apply()

	go func() {
		for {
			select {
			case <-t.menuCamera.ClickedCh:
				t.handleCamera()
			case <-t.menuRecording.ClickedCh:
				t.handleRecording()
			case <-menuConsole.ClickedCh:
				t.handleConsole()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// Update shows a new state. It may be called before the tray is ready.
func (t *Tray) Update(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
	t.apply()
}

// State returns the last state passed to Update.
func (t *Tray) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *Tray) apply() {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuStatus == nil {
		return
	}
	s := t.state
	systray.SetTitle(s.Title())
	t.menuStatus.SetTitle(s.StatusLine())
	t.menuAlerts.SetTitle(s.AlertsLine())
	t.menuCamera.SetTitle(s.CameraAction())
	t.menuRecording.SetTitle(s.RecordingAction())
	if s.Running {
		t.menuRecording.Enable()
	} else {
		t.menuRecording.Disable()
	}
}

func (t *Tray) handleCamera() {
	t.mu.RLock()
	callback := t.onCamera
	start := !t.state.Running
	t.mu.RUnlock()

	if callback != nil {
		callback(start)
	}
}

func (t *Tray) handleRecording() {
	t.mu.RLock()
	callback := t.onRecording
	start := !t.state.Recording
	t.mu.RUnlock()

	if callback != nil {
		callback(start)
	}
}

func (t *Tray) handleConsole() {
	t.mu.RLock()
	callback := t.onConsole
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}
