package liveview

import (
	"sync"
	"time"

	"github.com/ayusman/campuswatch/internal/gateway"
)

// DefaultDetectionsWindow is the number of recent detections kept for display.
const DefaultDetectionsWindow = 50

// Snapshot is an immutable, consistent view of the remote state.
// Slices are shared between snapshots and must not be modified.
type Snapshot struct {
	Version          uint64               `json:"version"`
	Camera           gateway.CameraStatus `json:"camera"`
	Frame            *gateway.Frame       `json:"frame,omitempty"`
	Statistics       gateway.Statistics   `json:"statistics"`
	RecentDetections []gateway.Detection  `json:"recent_detections"`
	Alerts           []Alert              `json:"alerts"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// Store is the single owner of live-view state. Every write replaces the
// published snapshot atomically, so readers never see a partial merge.
type Store struct {
	mu      sync.RWMutex
	current Snapshot
	alerts  map[int64]Alert
	window  int
	clock   Clock
	closed  bool

	subs    map[int]chan Snapshot
	nextSub int
}

// NewStore creates an empty store keeping at most window recent detections.
func NewStore(window int, clock Clock) *Store {
	if window <= 0 {
		window = DefaultDetectionsWindow
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Store{
		current: Snapshot{
			RecentDetections: []gateway.Detection{},
			Alerts:           []Alert{},
		},
		alerts: make(map[int64]Alert),
		window: window,
		clock:  clock,
		subs:   make(map[int]chan Snapshot),
	}
}

// Snapshot returns the latest published state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Subscribe returns a channel that receives the latest snapshot after every
// change. Slow readers only ever see the most recent one. The channel is
// closed by cancel or when the store closes.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.current

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
		})
	}
}

// Close stops all further writes and closes subscriber channels.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// Closed reports whether the store accepts writes.
func (s *Store) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// publish installs next as the current snapshot. Caller holds s.mu.
func (s *Store) publish(next Snapshot) {
	next.Version = s.current.Version + 1
	next.UpdatedAt = s.clock.Now()
	s.current = next

	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- next
	}
}

// MergeCameraStatus replaces the camera status. The current frame is dropped
// in the same write whenever the camera is not running.
func (s *Store) MergeCameraStatus(status gateway.CameraStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	next := s.current
	next.Camera = status
	if !status.Running {
		next.Frame = nil
	}
	s.publish(next)
	return true
}

// MergeFrame replaces the current frame if the camera is still running.
// It reports whether the frame was kept.
func (s *Store) MergeFrame(frame gateway.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.current.Camera.Running {
		return false
	}

	next := s.current
	f := frame
	next.Frame = &f
	s.publish(next)
	return true
}

// MergeStatistics replaces the dashboard counters.
func (s *Store) MergeStatistics(stats gateway.Statistics) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	next := s.current
	next.Statistics = stats
	s.publish(next)
	return true
}

// MergeRecentDetections replaces the detection history, ordered most recent
// first and trimmed to the display window.
func (s *Store) MergeRecentDetections(detections []gateway.Detection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	list := make([]gateway.Detection, len(detections))
	copy(list, detections)
	gateway.SortDetections(list)
	if len(list) > s.window {
		list = list[:s.window]
	}

	next := s.current
	next.RecentDetections = list
	s.publish(next)
	return true
}

// MergeAlerts replaces the alert set. Acknowledgment never goes backwards:
// an alert acknowledged or pending locally stays acknowledged even if the
// backend has not caught up. Pending alerts missing from the reply are kept
// until their acknowledgment settles.
func (s *Store) MergeAlerts(remote []gateway.Alert) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	merged := make(map[int64]Alert, len(remote))
	for _, ra := range remote {
		a := Alert{Alert: ra}
		if prev, ok := s.alerts[ra.ID]; ok {
			a.AckState = prev.AckState
			if prev.Acknowledged {
				a.Acknowledged = true
			}
		}
		if ra.Acknowledged && a.AckState == AckRolledBack {
			a.AckState = AckNone
		}
		merged[ra.ID] = a
	}
	for id, prev := range s.alerts {
		if _, ok := merged[id]; !ok && prev.AckState == AckPending {
			merged[id] = prev
		}
	}

	s.alerts = merged
	s.publishAlerts()
	return true
}

// publishAlerts rebuilds the sorted alert list from the map. Caller holds s.mu.
func (s *Store) publishAlerts() {
	list := make([]Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		list = append(list, a)
	}
	sortAlerts(list)

	next := s.current
	next.Alerts = list
	s.publish(next)
}

// Alert returns one alert by id.
func (s *Store) Alert(id int64) (Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	return a, ok
}

// BeginAcknowledge applies the optimistic half of an acknowledgment: the
// alert reads as acknowledged immediately, pending remote confirmation.
func (s *Store) BeginAcknowledge(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrViewClosed
	}

	a, ok := s.alerts[id]
	switch {
	case !ok:
		return ErrAlertNotFound
	case a.AckState == AckPending:
		return ErrCommandBusy
	case a.Acknowledged:
		return ErrAlreadyAcknowledged
	}

	a.Acknowledged = true
	a.AckState = AckPending
	s.alerts[id] = a
	s.publishAlerts()
	return nil
}

// ConfirmAcknowledge settles a pending acknowledgment as durable.
func (s *Store) ConfirmAcknowledge(id int64) bool {
	return s.settleAcknowledge(id, true)
}

// RollbackAcknowledge reverts a pending acknowledgment.
func (s *Store) RollbackAcknowledge(id int64) bool {
	return s.settleAcknowledge(id, false)
}

func (s *Store) settleAcknowledge(id int64, confirmed bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	a, ok := s.alerts[id]
	if !ok || a.AckState != AckPending {
		return false
	}

	if confirmed {
		a.AckState = AckConfirmed
	} else {
		a.Acknowledged = false
		a.AckState = AckRolledBack
	}
	s.alerts[id] = a
	s.publishAlerts()
	return true
}
