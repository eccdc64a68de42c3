// Package app wires the campuswatch console together: the backend gateway,
// the local journal, the notification sinks and the shared live view.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ayusman/campuswatch/internal/config"
	"github.com/ayusman/campuswatch/internal/frame"
	"github.com/ayusman/campuswatch/internal/gateway"
	"github.com/ayusman/campuswatch/internal/liveview"
	"github.com/ayusman/campuswatch/internal/logger"
	"github.com/ayusman/campuswatch/internal/notify"
	"github.com/ayusman/campuswatch/internal/store"
)

// ErrClosed is returned when acquiring a view from a closed App.
var ErrClosed = errors.New("app closed")

// Config holds the dependencies of an App.
type Config struct {
	Settings *config.Config
	Logger   zerolog.Logger
	// Clock drives the live view; nil uses the wall clock.
	Clock liveview.Clock
}

// App owns everything that outlives a single live view. The live view
// itself is shared by all viewers and exists only while at least one is
// attached.
type App struct {
	settings    *config.Config
	logger      zerolog.Logger
	clock       liveview.Clock
	client      *gateway.Client
	db          *store.Store
	journal     *notify.Journal
	broadcaster *notify.Broadcaster
	sinks       *notify.Multi
	busy        *liveview.BusySet
	detached    *liveview.Commands

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	view    *liveview.View
	viewers int
	closed  bool
}

// New opens the journal database and builds the backend client.
func New(cfg Config) (*App, error) {
	if cfg.Settings == nil {
		cfg.Settings = config.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = liveview.RealClock{}
	}
	settings := cfg.Settings

	if err := os.MkdirAll(settings.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := store.New(settings.DatabasePath())
	if err != nil {
		return nil, err
	}

	if settings.JournalRetention > 0 {
		c, err := db.Compact(cfg.Clock.Now().Add(-settings.JournalRetention))
		if err != nil {
			db.Close()
			return nil, err
		}
		if c.Notifications > 0 || c.Commands > 0 {
			cfg.Logger.Info().Int64("notifications", c.Notifications).Int64("commands", c.Commands).
				Msg("Pruned journal")
		}
	}

	client := gateway.New(settings.Backend.URL, settings.Backend.Timeout,
		gateway.WithLogger(logger.WithComponent(cfg.Logger, "gateway")))

	journal := notify.NewJournal(db, 0, logger.WithComponent(cfg.Logger, "journal"))
	broadcaster := notify.NewBroadcaster(0, logger.WithComponent(cfg.Logger, "broadcaster"))
	sinks := notify.NewMulti(
		notify.NewLogSink(logger.WithComponent(cfg.Logger, "notify")),
		broadcaster,
		journal,
	)

	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		settings:    settings,
		logger:      cfg.Logger,
		clock:       cfg.Clock,
		client:      client,
		db:          db,
		journal:     journal,
		broadcaster: broadcaster,
		sinks:       sinks,
		busy:        liveview.NewBusySet(),
		ctx:         ctx,
		cancel:      cancel,
	}
	a.detached = liveview.NewCommands(client, liveview.CommandsOptions{
		Notifier: sinks,
		Auditor:  sinks,
		Logger:   logger.WithComponent(cfg.Logger, "commands"),
		Clock:    cfg.Clock,
		Busy:     a.busy,
	})

	a.logger.Info().Str("backend", client.BaseURL()).Str("db", db.Path()).Msg("Console initialised")
	return a, nil
}

// Intervals converts the configured polling periods.
func Intervals(c config.IntervalConfig) liveview.Intervals {
	return liveview.Intervals{
		CameraStatus:     c.CameraStatus,
		Frame:            c.Frame,
		Statistics:       c.Statistics,
		RecentDetections: c.RecentDetections,
		Alerts:           c.Alerts,
	}
}

// AcquireView attaches a viewer to the live view, opening it for the first
// viewer. The returned release func detaches; the last release closes the
// view.
func (a *App) AcquireView() (*liveview.View, func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, nil, ErrClosed
	}

	if a.view == nil {
		v := liveview.NewView(a.client, liveview.ViewOptions{
			Clock:       a.clock,
			Logger:      logger.WithComponent(a.logger, "liveview"),
			Notifier:    a.sinks,
			Auditor:     a.sinks,
			Intervals:   Intervals(a.settings.Intervals),
			Window:      a.settings.DetectionsWindow,
			CallTimeout: a.settings.CallTimeout,
			FrameCheck:  frame.Check,
			Busy:        a.busy,
		})
		if err := v.Open(a.ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to open live view: %w", err)
		}
		a.view = v
	}

	a.viewers++
	v := a.view
	var once sync.Once
	return v, func() { once.Do(func() { a.release(v) }) }, nil
}

func (a *App) release(v *liveview.View) {
	a.mu.Lock()
	if a.view != v {
		a.mu.Unlock()
		return
	}
	a.viewers--
	if a.viewers > 0 {
		a.mu.Unlock()
		return
	}
	a.view = nil
	a.mu.Unlock()

	v.Close()
}

// CurrentView returns the open live view, if any.
func (a *App) CurrentView() (*liveview.View, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.view, a.view != nil
}

// Viewers returns the number of attached viewers.
func (a *App) Viewers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.viewers
}

// Commands returns the open view's commands, or a detached set that talks
// to the backend directly when nothing is being displayed. Both share one
// busy set, so a command outstanding in either is rejected by the other.
func (a *App) Commands() *liveview.Commands {
	if v, ok := a.CurrentView(); ok {
		return v.Commands()
	}
	return a.detached
}

// Gateway returns the backend client for reads outside the live view.
func (a *App) Gateway() *gateway.Client {
	return a.client
}

// Store returns the journal database.
func (a *App) Store() *store.Store {
	return a.db
}

// Broadcaster returns the live event fan-out.
func (a *App) Broadcaster() *notify.Broadcaster {
	return a.broadcaster
}

// Settings returns the loaded configuration.
func (a *App) Settings() *config.Config {
	return a.settings
}

// Close shuts the live view, flushes the journal and closes the database.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	v := a.view
	a.view = nil
	a.viewers = 0
	a.mu.Unlock()

	if v != nil {
		v.Close()
	}
	a.cancel()
	a.journal.Close()

	a.logger.Info().Msg("Console stopped")
	return a.db.Close()
}
