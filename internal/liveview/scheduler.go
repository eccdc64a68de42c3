package liveview

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type schedulerState int

const (
	stateIdle schedulerState = iota
	stateRunning
	stateStopped
)

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	Clock    Clock
	Logger   zerolog.Logger
	Notifier Notifier
	// CallTimeout bounds each fetch. Zero means a fetch may run forever,
	// leaving its task skipped until it returns.
	CallTimeout time.Duration
}

// Scheduler runs polling tasks against a Store, one timer per task.
type Scheduler struct {
	store       *Store
	clock       Clock
	logger      zerolog.Logger
	notifier    Notifier
	callTimeout time.Duration

	mu         sync.Mutex
	state      schedulerState
	generation uint64
	tasks      []*Task
	byID       map[string]*Task
	ctx        context.Context
	done       chan struct{}

	loops sync.WaitGroup
	calls sync.WaitGroup
}

// NewScheduler creates a scheduler that merges results into store.
func NewScheduler(store *Store, opts SchedulerOptions) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	return &Scheduler{
		store:       store,
		clock:       opts.Clock,
		logger:      opts.Logger,
		notifier:    opts.Notifier,
		callTimeout: opts.CallTimeout,
		byID:        make(map[string]*Task),
	}
}

// Start registers tasks, runs each once immediately to build the initial
// snapshot, then drives each on its own interval. Fetches run with ctx,
// which Stop does not cancel.
func (s *Scheduler) Start(ctx context.Context, tasks ...*Task) error {
	s.mu.Lock()

	switch s.state {
	case stateRunning:
		s.mu.Unlock()
		return ErrSchedulerRunning
	case stateStopped:
		s.mu.Unlock()
		return ErrSchedulerStopped
	}

	byID := make(map[string]*Task, len(tasks))
	for _, t := range tasks {
		if err := validateTask(t); err != nil {
			s.mu.Unlock()
			return err
		}
		if _, dup := byID[t.ID]; dup {
			s.mu.Unlock()
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidTask, t.ID)
		}
		byID[t.ID] = t
	}

	s.tasks = tasks
	s.byID = byID
	s.ctx = ctx
	s.done = make(chan struct{})
	s.state = stateRunning

	tickers := make([]Ticker, len(tasks))
	for i, t := range tasks {
		tickers[i] = s.clock.Ticker(t.Interval)
	}
	s.mu.Unlock()

	s.logger.Info().Int("tasks", len(tasks)).Msg("Starting live view scheduler")

	for _, t := range tasks {
		s.tick(t, false)
	}

	s.loops.Add(len(tasks))
	for i, t := range tasks {
		go s.loop(t, tickers[i])
	}

	return nil
}

func validateTask(t *Task) error {
	switch {
	case t == nil:
		return fmt.Errorf("%w: nil task", ErrInvalidTask)
	case t.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidTask)
	case t.Interval <= 0:
		return fmt.Errorf("%w: %s: interval must be positive", ErrInvalidTask, t.ID)
	case t.Fetch == nil:
		return fmt.Errorf("%w: %s: no fetch function", ErrInvalidTask, t.ID)
	}
	return nil
}

// Stop cancels every timer. Fetches already in flight finish, but their
// results are discarded. Stop is idempotent and the scheduler cannot be
// restarted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state != stateRunning {
		s.state = stateStopped
		s.mu.Unlock()
		return
	}
	s.state = stateStopped
	s.generation++
	close(s.done)
	s.mu.Unlock()

	s.loops.Wait()
	s.logger.Info().Msg("Live view scheduler stopped")
}

// Wait blocks until every fetch issued so far has returned.
func (s *Scheduler) Wait() {
	s.calls.Wait()
}

// Running reports whether the scheduler is driving tasks.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateRunning
}

// Generation returns the current scheduler generation.
func (s *Scheduler) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Tasks returns the status of every registered task in registration order.
func (s *Scheduler) Tasks() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskStatus, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.status())
	}
	return out
}

// Nudge runs a task now instead of waiting for its next tick. A nudge that
// finds the task in flight is remembered and runs once that fetch returns,
// so a result started before a command cannot be the last word. Disabled
// tasks and a stopped scheduler drop the nudge.
func (s *Scheduler) Nudge(taskID string) bool {
	s.mu.Lock()
	t, ok := s.byID[taskID]
	s.mu.Unlock()

	if !ok {
		s.logger.Debug().Str("task", taskID).Msg("Nudge for unknown task ignored")
		return false
	}
	return s.tick(t, true)
}

func (s *Scheduler) loop(t *Task, ticker Ticker) {
	defer s.loops.Done()
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.Chan():
			s.tick(t, false)
		}
	}
}

// tick issues t's fetch unless the scheduler is stopped, the task is
// disabled, or its previous fetch is still outstanding. It never queues;
// a nudge on an in-flight task only sets nudgePending.
func (s *Scheduler) tick(t *Task, nudge bool) bool {
	s.mu.Lock()

	if s.state != stateRunning {
		s.mu.Unlock()
		return false
	}
	if t.inFlight {
		if nudge {
			t.nudgePending = true
			s.mu.Unlock()
			s.logger.Debug().Str("task", t.ID).Msg("Nudge deferred until fetch returns")
			return true
		}
		t.skipped++
		s.mu.Unlock()
		s.logger.Debug().Str("task", t.ID).Msg("Previous fetch still in flight, skipping tick")
		return false
	}
	if !t.enabled(s.store.Snapshot()) {
		s.mu.Unlock()
		return false
	}

	t.inFlight = true
	t.issued++
	t.lastRun = s.clock.Now()
	gen := s.generation
	ctx := s.ctx
	s.calls.Add(1)
	s.mu.Unlock()

	go s.execute(ctx, t, gen)
	return true
}

func (s *Scheduler) execute(ctx context.Context, t *Task, gen uint64) {
	defer s.calls.Done()

	merge, err := s.fetch(ctx, t)

	s.mu.Lock()
	t.inFlight = false
	rerun := t.nudgePending
	t.nudgePending = false

	if gen != s.generation || s.state != stateRunning {
		t.discarded++
		s.mu.Unlock()
		s.logger.Debug().Str("task", t.ID).Msg("Discarding result of stopped scheduler")
		return
	}

	if err != nil {
		t.lastError = err
		t.failed++
		quiet := t.Quiet != nil && t.Quiet(err)
		s.mu.Unlock()

		s.logger.Warn().Err(err).Str("task", t.ID).Msg("Live view fetch failed")
		if !quiet {
			s.notifier.NotifyError(fmt.Sprintf("Failed to fetch %s: %v", t.label(), err))
		}
	} else {
		t.lastError = nil
		t.succeeded++
		if merge != nil {
			merge(s.store)
		}
		s.mu.Unlock()
	}

	if rerun {
		s.tick(t, false)
	}
}

func (s *Scheduler) fetch(ctx context.Context, t *Task) (merge Merge, err error) {
	defer func() {
		if r := recover(); r != nil {
			merge = nil
			err = fmt.Errorf("%s: panic: %v", t.ID, r)
		}
	}()

	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}

	return t.Fetch(ctx)
}
