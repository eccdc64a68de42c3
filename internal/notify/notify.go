// Package notify delivers operator notifications and command outcomes to
// their sinks: the log, connected browsers and the local journal. Every
// sink returns immediately; slow consumers lose messages rather than stall
// the live view.
package notify

import (
	"time"

	"github.com/ayusman/campuswatch/internal/liveview"
)

// Event types pushed to subscribers.
const (
	EventNotification = "notification"
	EventCommand      = "command"
)

// Levels of a notification event.
const (
	LevelSuccess = "success"
	LevelError   = "error"
)

// Event is one message for live subscribers.
type Event struct {
	Type    string                  `json:"type"`
	Level   string                  `json:"level,omitempty"`
	Message string                  `json:"message,omitempty"`
	Command *liveview.CommandRecord `json:"command,omitempty"`
	Time    time.Time               `json:"time"`
}

// Multi fans notifications and command records out to several sinks.
type Multi struct {
	notifiers []liveview.Notifier
	auditors  []liveview.Auditor
}

// NewMulti builds a fan-out over sinks. Each sink is used as a Notifier,
// an Auditor, or both, depending on what it implements.
func NewMulti(sinks ...any) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if n, ok := s.(liveview.Notifier); ok {
			m.notifiers = append(m.notifiers, n)
		}
		if a, ok := s.(liveview.Auditor); ok {
			m.auditors = append(m.auditors, a)
		}
	}
	return m
}

func (m *Multi) NotifySuccess(text string) {
	for _, n := range m.notifiers {
		n.NotifySuccess(text)
	}
}

func (m *Multi) NotifyError(text string) {
	for _, n := range m.notifiers {
		n.NotifyError(text)
	}
}

func (m *Multi) RecordCommand(rec liveview.CommandRecord) {
	for _, a := range m.auditors {
		a.RecordCommand(rec)
	}
}
