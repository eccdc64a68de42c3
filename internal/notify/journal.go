package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/campuswatch/internal/liveview"
	"github.com/ayusman/campuswatch/internal/store"
)

// DefaultJournalQueue is the number of journal writes that may be pending.
const DefaultJournalQueue = 256

type journalEntry struct {
	notification *store.Notification
	command      *store.CommandEntry
}

// Journal persists notifications and command outcomes to the local store.
// Writes are queued and performed by a single goroutine; when the queue is
// full the entry is dropped and logged.
type Journal struct {
	db     *store.Store
	queue  chan journalEntry
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	closed  bool
	dropped uint64
	done    chan struct{}
}

// NewJournal starts a journal writer on db.
func NewJournal(db *store.Store, queue int, l zerolog.Logger) *Journal {
	if queue <= 0 {
		queue = DefaultJournalQueue
	}
	j := &Journal{
		db:     db,
		queue:  make(chan journalEntry, queue),
		logger: l,
		now:    time.Now,
		done:   make(chan struct{}),
	}
	go j.run()
	return j
}

func (j *Journal) run() {
	defer close(j.done)

	for e := range j.queue {
		switch {
		case e.notification != nil:
			if err := j.db.Notifications().Create(e.notification); err != nil {
				j.logger.Error().Err(err).Msg("Failed to journal notification")
			}
		case e.command != nil:
			if err := j.db.Commands().Create(e.command); err != nil {
				j.logger.Error().Err(err).Str("command", e.command.Command).Msg("Failed to journal command")
			}
		}
	}
}

func (j *Journal) enqueue(e journalEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return
	}
	select {
	case j.queue <- e:
	default:
		j.dropped++
		j.logger.Warn().Uint64("dropped", j.dropped).Msg("Journal queue full, entry dropped")
	}
}

func (j *Journal) NotifySuccess(text string) {
	j.enqueue(journalEntry{notification: &store.Notification{
		Level: store.LevelSuccess, Message: text, CreatedAt: j.now(),
	}})
}

func (j *Journal) NotifyError(text string) {
	j.enqueue(journalEntry{notification: &store.Notification{
		Level: store.LevelError, Message: text, CreatedAt: j.now(),
	}})
}

func (j *Journal) RecordCommand(rec liveview.CommandRecord) {
	j.enqueue(journalEntry{command: &store.CommandEntry{
		ID:         rec.ID.String(),
		Command:    string(rec.Command),
		Target:     rec.Target,
		Success:    rec.Success,
		Message:    rec.Message,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
	}})
}

// Dropped returns how many entries were lost to a full queue.
func (j *Journal) Dropped() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.dropped
}

// Close stops accepting entries and waits until queued ones are written.
func (j *Journal) Close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		<-j.done
		return
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()

	<-j.done
}
