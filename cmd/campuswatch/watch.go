package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ayusman/campuswatch/internal/app"
	"github.com/ayusman/campuswatch/internal/liveview"
	"github.com/ayusman/campuswatch/internal/notify"
)

func (c *cli) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the live view until interrupted",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			view, release, err := a.AcquireView()
			if err != nil {
				return err
			}
			defer release()

			snapshots, unsubscribe := view.Store().Subscribe()
			defer unsubscribe()
			events, cancel := a.Broadcaster().Subscribe()
			defer cancel()

			return watch(cmd, snapshots, events)
		}),
	}
}

// watch prints a line per visible change and per notification.
func watch(cmd *cobra.Command, snapshots <-chan liveview.Snapshot, events <-chan notify.Event) error {
	out := cmd.OutOrStdout()
	var last string
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			line := summarize(snap)
			if line == last {
				continue
			}
			last = line
			fmt.Fprintf(out, "%s  %s\n", snap.UpdatedAt.Local().Format("15:04:05"), line)
		case e, ok := <-events:
			if !ok {
				return nil
			}
			printEvent(out, e)
		}
	}
}

// summarize describes a snapshot without the frame, which changes on every
// poll.
func summarize(snap liveview.Snapshot) string {
	camera := "stopped"
	if snap.Camera.Running {
		camera = "running"
		if snap.Camera.Recording {
			camera = "recording"
		}
	}

	latest := "-"
	if len(snap.RecentDetections) > 0 {
		d := snap.RecentDetections[0]
		latest = d.PersonName
		if d.Intruder || latest == "" {
			latest = "intruder"
		}
		latest += " @ " + d.Timestamp.Local().Format("15:04:05")
	}

	counts := liveview.CountAlerts(snap.Alerts)
	return fmt.Sprintf("camera=%s faces=%d known=%d today=%d alerts=%d/%d latest=%s",
		camera, snap.Camera.FacesDetected,
		snap.Statistics.KnownPersons, snap.Statistics.DetectionsToday,
		counts.Unacknowledged, counts.Total, latest)
}

func printEvent(w io.Writer, e notify.Event) {
	if e.Type != notify.EventNotification {
		return
	}
	mark := "✓"
	if e.Level == notify.LevelError {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s  %s %s\n", e.Time.Local().Format("15:04:05"), mark, e.Message)
}
