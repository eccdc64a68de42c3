// Package liveview keeps an operator's live view consistent with the
// detection backend.
//
// A View owns one Store and one Scheduler. The Scheduler drives a set of
// polling Tasks, each on its own fixed period. A task never has more than one
// request outstanding: a tick that finds the previous request still in flight
// is dropped, not queued. Successful results are merged into the Store as a
// whole; failures are recorded on the task and reported through the Notifier
// while the last good snapshot stays visible. Stopping the scheduler cancels
// every timer at once and bumps its generation, so results that arrive later
// are discarded instead of merged.
//
// Commands are user-triggered one-shot operations (start camera, acknowledge
// alert, ...). A command cannot be submitted twice while outstanding, and on
// completion it nudges the task whose data it changed. A nudge that finds that
// task in flight runs it again once the outstanding request returns.
package liveview
