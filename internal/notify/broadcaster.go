package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/campuswatch/internal/liveview"
)

// DefaultSubscriberBuffer is the per-subscriber queue length.
const DefaultSubscriberBuffer = 16

// Broadcaster fans events out to live subscribers such as websocket
// connections. A subscriber whose queue is full misses the event.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	nextID  int
	buffer  int
	dropped uint64
	now     func() time.Time
	logger  zerolog.Logger
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster(buffer int, l zerolog.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Broadcaster{
		subs:   make(map[int]chan Event),
		buffer: buffer,
		now:    time.Now,
		logger: l,
	}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.buffer)
	b.subs[id] = ch
	b.logger.Debug().Int("subscribers", len(b.subs)).Msg("Subscriber added")

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Publish delivers e to every subscriber that has room for it.
func (b *Broadcaster) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = b.now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped++
		}
	}
}

// Subscribers returns the number of live subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber
// was full.
func (b *Broadcaster) Dropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

func (b *Broadcaster) NotifySuccess(text string) {
	b.Publish(Event{Type: EventNotification, Level: LevelSuccess, Message: text})
}

func (b *Broadcaster) NotifyError(text string) {
	b.Publish(Event{Type: EventNotification, Level: LevelError, Message: text})
}

func (b *Broadcaster) RecordCommand(rec liveview.CommandRecord) {
	r := rec
	b.Publish(Event{Type: EventCommand, Message: rec.Message, Command: &r, Time: rec.FinishedAt})
}
