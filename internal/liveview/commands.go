package liveview

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayusman/campuswatch/internal/gateway"
)

// CommandName identifies an operator command.
type CommandName string

const (
	CommandStartCamera      CommandName = "start-camera"
	CommandStopCamera       CommandName = "stop-camera"
	CommandStartRecording   CommandName = "start-recording"
	CommandStopRecording    CommandName = "stop-recording"
	CommandSnapshot         CommandName = "snapshot"
	CommandAddPerson        CommandName = "add-person"
	CommandDeletePerson     CommandName = "delete-person"
	CommandAcknowledgeAlert CommandName = "acknowledge-alert"
)

// ParseCommandName accepts the simple camera commands exposed over HTTP.
func ParseCommandName(s string) (CommandName, error) {
	switch n := CommandName(s); n {
	case CommandStartCamera, CommandStopCamera, CommandStartRecording,
		CommandStopRecording, CommandSnapshot:
		return n, nil
	}
	return "", fmt.Errorf("unknown command %q", s)
}

// CommandRecord is the audited outcome of one command.
type CommandRecord struct {
	ID         uuid.UUID   `json:"id"`
	Command    CommandName `json:"command"`
	Target     string      `json:"target,omitempty"`
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
}

// Duration returns how long the command took.
func (r CommandRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

type commandDef struct {
	name    CommandName
	success string
	failure string
	nudges  []string
}

var commandDefs = map[CommandName]commandDef{
	CommandStartCamera:      {CommandStartCamera, "Camera started successfully", "Failed to start camera", []string{TaskCameraStatus}},
	CommandStopCamera:       {CommandStopCamera, "Camera stopped", "Failed to stop camera", []string{TaskCameraStatus}},
	CommandStartRecording:   {CommandStartRecording, "Recording started", "Failed to toggle recording", []string{TaskCameraStatus}},
	CommandStopRecording:    {CommandStopRecording, "Recording stopped", "Failed to toggle recording", []string{TaskCameraStatus}},
	CommandSnapshot:         {CommandSnapshot, "Snapshot saved", "Failed to take snapshot", nil},
	CommandAddPerson:        {CommandAddPerson, "Person added successfully", "Failed to add person", []string{TaskStatistics}},
	CommandDeletePerson:     {CommandDeletePerson, "Person deleted successfully", "Failed to delete person", []string{TaskStatistics}},
	CommandAcknowledgeAlert: {CommandAcknowledgeAlert, "Alert acknowledged", "Failed to acknowledge alert", []string{TaskAlerts, TaskStatistics}},
}

// CommandsOptions configures Commands. Every field is optional.
type CommandsOptions struct {
	Store    *Store
	Nudger   Nudger
	Notifier Notifier
	Auditor  Auditor
	Logger   zerolog.Logger
	Clock    Clock
	// Busy is shared with other command sets acting on the same backend.
	// A fresh set is used when nil.
	Busy *BusySet
}

// BusySet tracks outstanding commands by name and target. Command sets
// sharing one reject a command outstanding in any of them.
type BusySet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewBusySet returns an empty set.
func NewBusySet() *BusySet {
	return &BusySet{keys: make(map[string]struct{})}
}

func (b *BusySet) acquire(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.keys[key]; ok {
		return false
	}
	b.keys[key] = struct{}{}
	return true
}

func (b *BusySet) release(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.keys, key)
}

func (b *BusySet) list() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.keys))
	for k := range b.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (b *BusySet) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.keys[key]
	return ok
}

// Commands issues operator commands against the backend. A command cannot be
// submitted again while a previous submission is outstanding.
type Commands struct {
	gw       Gateway
	store    *Store
	nudger   Nudger
	notifier Notifier
	auditor  Auditor
	logger   zerolog.Logger
	clock    Clock
	busy     *BusySet
}

// NewCommands creates a command set. Without a store, alert acknowledgment
// goes straight to the backend. Without a nudger, no task is refreshed.
func NewCommands(gw Gateway, opts CommandsOptions) *Commands {
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Busy == nil {
		opts.Busy = NewBusySet()
	}
	return &Commands{
		gw:       gw,
		store:    opts.Store,
		nudger:   opts.Nudger,
		notifier: opts.Notifier,
		auditor:  opts.Auditor,
		logger:   opts.Logger,
		clock:    opts.Clock,
		busy:     opts.Busy,
	}
}

func busyKey(name CommandName, target string) string {
	if target == "" {
		return string(name)
	}
	return string(name) + ":" + target
}

// Busy lists outstanding commands, sorted.
func (c *Commands) Busy() []string {
	return c.busy.list()
}

// IsBusy reports whether the named command is outstanding.
func (c *Commands) IsBusy(name CommandName) bool {
	return c.busy.has(string(name))
}

// Run dispatches one of the simple camera commands by name.
func (c *Commands) Run(ctx context.Context, name CommandName) (gateway.CommandResult, error) {
	switch name {
	case CommandStartCamera:
		return c.StartCamera(ctx)
	case CommandStopCamera:
		return c.StopCamera(ctx)
	case CommandStartRecording:
		return c.StartRecording(ctx)
	case CommandStopRecording:
		return c.StopRecording(ctx)
	case CommandSnapshot:
		return c.TakeSnapshot(ctx)
	}
	return gateway.CommandResult{}, fmt.Errorf("unknown command %q", name)
}

func (c *Commands) StartCamera(ctx context.Context) (gateway.CommandResult, error) {
	return c.run(ctx, CommandStartCamera, "", c.gw.StartCamera)
}

func (c *Commands) StopCamera(ctx context.Context) (gateway.CommandResult, error) {
	return c.run(ctx, CommandStopCamera, "", c.gw.StopCamera)
}

func (c *Commands) StartRecording(ctx context.Context) (gateway.CommandResult, error) {
	return c.run(ctx, CommandStartRecording, "", c.gw.StartRecording)
}

func (c *Commands) StopRecording(ctx context.Context) (gateway.CommandResult, error) {
	return c.run(ctx, CommandStopRecording, "", c.gw.StopRecording)
}

func (c *Commands) TakeSnapshot(ctx context.Context) (gateway.CommandResult, error) {
	return c.run(ctx, CommandSnapshot, "", c.gw.TakeSnapshot)
}

// AddPerson registers a known person.
func (c *Commands) AddPerson(ctx context.Context, p gateway.NewPerson) (gateway.CommandResult, error) {
	return c.run(ctx, CommandAddPerson, p.Name, func(ctx context.Context) (gateway.CommandResult, error) {
		return c.gw.AddPerson(ctx, p)
	})
}

// DeletePerson removes a known person.
func (c *Commands) DeletePerson(ctx context.Context, id int64) (gateway.CommandResult, error) {
	return c.run(ctx, CommandDeletePerson, strconv.FormatInt(id, 10), func(ctx context.Context) (gateway.CommandResult, error) {
		return c.gw.DeletePerson(ctx, id)
	})
}

// AcknowledgeAlert marks an alert acknowledged locally at once, then asks
// the backend. If the backend fails or refuses, the local flag is rolled
// back before the failure is reported. Acknowledging an already
// acknowledged alert does nothing.
func (c *Commands) AcknowledgeAlert(ctx context.Context, id int64) (gateway.CommandResult, error) {
	target := strconv.FormatInt(id, 10)
	key := busyKey(CommandAcknowledgeAlert, target)
	if !c.busy.acquire(key) {
		return gateway.CommandResult{}, ErrCommandBusy
	}
	defer c.busy.release(key)

	optimistic := false
	if c.store != nil {
		switch err := c.store.BeginAcknowledge(id); {
		case err == nil:
			optimistic = true
		case errors.Is(err, ErrAlreadyAcknowledged):
			return gateway.CommandResult{Success: true, Message: "Alert already acknowledged"}, nil
		case errors.Is(err, ErrAlertNotFound):
			// Not displayed yet; the backend still knows it.
		default:
			return gateway.CommandResult{}, err
		}
	}

	return c.execute(ctx, commandDefs[CommandAcknowledgeAlert], target,
		func(ctx context.Context) (gateway.CommandResult, error) {
			return c.gw.AcknowledgeAlert(ctx, id)
		},
		func(ok bool) {
			if !optimistic {
				return
			}
			if ok {
				c.store.ConfirmAcknowledge(id)
			} else {
				c.store.RollbackAcknowledge(id)
			}
		})
}

func (c *Commands) run(ctx context.Context, name CommandName, target string, call func(context.Context) (gateway.CommandResult, error)) (gateway.CommandResult, error) {
	key := busyKey(name, target)
	if !c.busy.acquire(key) {
		c.logger.Debug().Str("command", string(name)).Msg("Command already in progress")
		return gateway.CommandResult{}, ErrCommandBusy
	}
	defer c.busy.release(key)

	return c.execute(ctx, commandDefs[name], target, call, nil)
}

// execute performs one command call. settle runs before any notification so
// observers never see a failure reported against optimistic state.
func (c *Commands) execute(ctx context.Context, def commandDef, target string, call func(context.Context) (gateway.CommandResult, error), settle func(ok bool)) (gateway.CommandResult, error) {
	rec := CommandRecord{
		ID:        uuid.New(),
		Command:   def.name,
		Target:    target,
		StartedAt: c.clock.Now(),
	}

	res, err := call(ctx)
	rec.FinishedAt = c.clock.Now()

	var msg string
	switch {
	case err != nil:
		msg = def.failure
		err = fmt.Errorf("%s: %w", def.name, err)
	case !res.Success:
		msg = res.Message
		if msg == "" {
			msg = def.failure
		}
		err = fmt.Errorf("%s: %w: %s", def.name, ErrCommandRejected, msg)
	default:
		rec.Success = true
		msg = successMessage(def, res)
	}
	rec.Message = msg

	if settle != nil {
		settle(rec.Success)
	}

	if rec.Success {
		c.logger.Info().Str("command", string(def.name)).Str("target", target).
			Dur("took", rec.Duration()).Msg(msg)
		c.notifier.NotifySuccess(msg)
	} else {
		c.logger.Error().Err(err).Str("command", string(def.name)).Str("target", target).
			Msg("Command failed")
		c.notifier.NotifyError(msg)
	}

	if c.auditor != nil {
		c.auditor.RecordCommand(rec)
	}
	if c.nudger != nil {
		for _, id := range def.nudges {
			c.nudger.Nudge(id)
		}
	}

	return res, err
}

func successMessage(def commandDef, res gateway.CommandResult) string {
	switch {
	case def.name == CommandSnapshot && res.Filename != "":
		return "Snapshot saved: " + res.Filename
	case def.name == CommandStartCamera, def.name == CommandStopCamera, def.name == CommandAcknowledgeAlert:
		return def.success
	case res.Message != "":
		return res.Message
	}
	return def.success
}
