package liveview

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ViewOptions configures a View.
type ViewOptions struct {
	Clock       Clock
	Logger      zerolog.Logger
	Notifier    Notifier
	Auditor     Auditor
	Intervals   Intervals
	Window      int
	CallTimeout time.Duration
	FrameCheck  FrameCheck
	Busy        *BusySet
}

// View is one open live view: a store, the scheduler polling into it and
// the commands acting on it. It lives from Open until Close.
type View struct {
	store     *Store
	scheduler *Scheduler
	commands  *Commands
	tasks     []*Task
	logger    zerolog.Logger

	closeOnce sync.Once
}

// NewView wires a live view against gw. Nothing is polled until Open.
func NewView(gw Gateway, opts ViewOptions) *View {
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Intervals == (Intervals{}) {
		opts.Intervals = DefaultIntervals()
	}

	store := NewStore(opts.Window, opts.Clock)
	sched := NewScheduler(store, SchedulerOptions{
		Clock:       opts.Clock,
		Logger:      opts.Logger.With().Str("component", "scheduler").Logger(),
		Notifier:    opts.Notifier,
		CallTimeout: opts.CallTimeout,
	})
	cmds := NewCommands(gw, CommandsOptions{
		Store:    store,
		Nudger:   sched,
		Notifier: opts.Notifier,
		Auditor:  opts.Auditor,
		Logger:   opts.Logger.With().Str("component", "commands").Logger(),
		Clock:    opts.Clock,
		Busy:     opts.Busy,
	})

	return &View{
		store:     store,
		scheduler: sched,
		commands:  cmds,
		tasks:     StandardTasks(gw, opts.Clock, opts.Intervals, opts.FrameCheck),
		logger:    opts.Logger,
	}
}

// Open performs the initial fetch of every task and starts polling.
func (v *View) Open(ctx context.Context) error {
	v.logger.Info().Msg("Opening live view")
	return v.scheduler.Start(ctx, v.tasks...)
}

// Close stops polling and freezes the store. Results still in flight are
// dropped. Close is idempotent.
func (v *View) Close() {
	v.closeOnce.Do(func() {
		v.scheduler.Stop()
		v.store.Close()
		v.logger.Info().Msg("Live view closed")
	})
}

func (v *View) Store() *Store {
	return v.store
}

func (v *View) Scheduler() *Scheduler {
	return v.scheduler
}

func (v *View) Commands() *Commands {
	return v.commands
}

// Snapshot returns the current state of the view.
func (v *View) Snapshot() Snapshot {
	return v.store.Snapshot()
}
