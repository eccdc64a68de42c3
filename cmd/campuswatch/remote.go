package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/campuswatch/internal/app"
	"github.com/ayusman/campuswatch/internal/frame"
	"github.com/ayusman/campuswatch/internal/gateway"
	"github.com/ayusman/campuswatch/internal/liveview"
)

const timeLayout = "2006-01-02 15:04:05"

// withApp runs fn against a freshly opened App.
func (c *cli) withApp(fn func(cmd *cobra.Command, a *app.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := c.open()
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a, args)
	}
}

// commandCmd builds a leaf that runs one camera command.
func (c *cli) commandCmd(use, short string, name liveview.CommandName) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			res, err := a.Commands().Run(cmd.Context(), name)
			return report(cmd, res, err)
		}),
	}
}

// report prints a command outcome. A rejected command still prints the
// backend's message before failing.
func report(cmd *cobra.Command, res gateway.CommandResult, err error) error {
	if err != nil {
		if res.Message != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), res.Message)
		}
		return err
	}
	msg := res.Message
	if msg == "" {
		msg = "OK"
	}
	printf(cmd, "%s\n", msg)
	return nil
}

func (c *cli) cameraCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "camera",
		Short: "Control the camera",
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show camera status",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			s, err := a.Gateway().CameraStatus(cmd.Context())
			if err != nil {
				return err
			}
			printf(cmd, "running:   %t\nrecording: %t\nfaces:     %d\n", s.Running, s.Recording, s.FacesDetected)
			return nil
		}),
	}

	cmd.AddCommand(
		c.commandCmd("start", "Start the camera", liveview.CommandStartCamera),
		c.commandCmd("stop", "Stop the camera", liveview.CommandStopCamera),
		status,
	)
	return cmd
}

func (c *cli) recordingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recording",
		Short: "Control recording",
	}
	cmd.AddCommand(
		c.commandCmd("start", "Start recording", liveview.CommandStartRecording),
		c.commandCmd("stop", "Stop recording", liveview.CommandStopRecording),
	)
	return cmd
}

func (c *cli) snapshotCmd() *cobra.Command {
	var save string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Take a snapshot on the backend",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			res, err := a.Commands().TakeSnapshot(cmd.Context())
			if err := report(cmd, res, err); err != nil {
				return err
			}
			if save == "" {
				return nil
			}

			f, err := a.Gateway().Frame(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to fetch frame: %w", err)
			}
			if err := frame.Save(f, save); err != nil {
				return err
			}
			printf(cmd, "Frame written to %s\n", save)
			return nil
		}),
	}

	cmd.Flags().StringVar(&save, "save", "", "Also write the current frame to this local file")
	return cmd
}

func (c *cli) personsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "persons",
		Aliases: []string{"students"},
		Short:   "Manage known persons",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List known persons",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			persons, err := a.Gateway().Persons(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tADDED\tNOTES")
			for _, p := range persons {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.ID, p.Name, formatTime(p.DateAdded), p.Notes)
			}
			return tw.Flush()
		}),
	}

	var image, notes string
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Register a person from a face image",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			dataURL, err := frame.LoadImage(image)
			if err != nil {
				return err
			}
			res, err := a.Commands().AddPerson(cmd.Context(), gateway.NewPerson{
				Name:  args[0],
				Notes: notes,
				Image: dataURL,
			})
			return report(cmd, res, err)
		}),
	}
	add.Flags().StringVar(&image, "image", "", "Face image file")
	add.Flags().StringVar(&notes, "notes", "", "Free-form notes")
	add.MarkFlagRequired("image")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Remove a person",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid person id %q", args[0])
			}
			res, err := a.Commands().DeletePerson(cmd.Context(), id)
			return report(cmd, res, err)
		}),
	}

	cmd.AddCommand(list, add, del)
	return cmd
}

func (c *cli) alertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List and acknowledge alerts",
	}

	var unacknowledged bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List alerts, newest first",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			remote, err := a.Gateway().Alerts(cmd.Context())
			if err != nil {
				return err
			}
			alerts := make([]liveview.Alert, 0, len(remote))
			for _, al := range remote {
				alerts = append(alerts, liveview.Alert{Alert: al})
			}

			filter := liveview.AlertFilterAll
			if unacknowledged {
				filter = liveview.AlertFilterUnacknowledged
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTIME\tTYPE\tACK\tDESCRIPTION")
			for _, al := range liveview.FilterAlerts(alerts, filter) {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\n", al.ID, formatTime(al.Timestamp), al.Type, al.Acknowledged, al.Description)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			counts := liveview.CountAlerts(alerts)
			printf(cmd, "%d alerts, %d unacknowledged\n", counts.Total, counts.Unacknowledged)
			return nil
		}),
	}
	list.Flags().BoolVarP(&unacknowledged, "unacknowledged", "u", false, "Only show unacknowledged alerts")

	ack := &cobra.Command{
		Use:   "ack ID",
		Short: "Acknowledge an alert",
		Args:  cobra.ExactArgs(1),
		RunE: c.withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid alert id %q", args[0])
			}
			res, err := a.Commands().AcknowledgeAlert(cmd.Context(), id)
			return report(cmd, res, err)
		}),
	}

	cmd.AddCommand(list, ack)
	return cmd
}

func (c *cli) reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Read backend reports",
	}

	var date string
	daily := &cobra.Command{
		Use:   "daily",
		Short: "Show the daily activity report",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			day := time.Now()
			if date != "" {
				var err error
				day, err = time.ParseInLocation("2006-01-02", date, time.Local)
				if err != nil {
					return fmt.Errorf("invalid date %q: %w", date, err)
				}
			}

			r, err := a.Gateway().DailyReport(cmd.Context(), day)
			if err != nil {
				return err
			}

			printf(cmd, "Date: %s\nTotal detections: %d\n\n", r.Date, r.TotalDetections)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PERSON\tCOUNT\tFIRST SEEN\tLAST SEEN")
			for name, act := range r.Persons {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", name, act.Count, formatTime(act.FirstSeen), formatTime(act.LastSeen))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			printf(cmd, "\nIntruders: %d\n", len(r.Intruders))
			return nil
		}),
	}
	daily.Flags().StringVar(&date, "date", "", "Report date (YYYY-MM-DD), default today")

	intruders := &cobra.Command{
		Use:   "intruders",
		Short: "List intruder sightings",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			list, err := a.Gateway().Intruders(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTIME\tFACE")
			for _, in := range list {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", in.ID, formatTime(in.Timestamp), in.FaceImagePath)
			}
			return tw.Flush()
		}),
	}

	cmd.AddCommand(daily, intruders)
	return cmd
}

func (c *cli) journalCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recent notifications and commands",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			notifications, err := a.Store().Notifications().List(limit)
			if err != nil {
				return err
			}
			commands, err := a.Store().Commands().List(limit)
			if err != nil {
				return err
			}

			printf(cmd, "Notifications:\n")
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, n := range notifications {
				fmt.Fprintf(tw, "  %s\t%s\t%s\n", formatTime(n.CreatedAt), n.Level, n.Message)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			printf(cmd, "Commands:\n")
			for _, e := range commands {
				outcome := "ok"
				if !e.Success {
					outcome = "failed"
				}
				fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", formatTime(e.StartedAt), e.Command, e.Target, outcome,
					e.FinishedAt.Sub(e.StartedAt).Round(time.Millisecond))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			failures, err := a.Store().Commands().CountFailures(time.Now().Add(-24 * time.Hour))
			if err != nil {
				return err
			}
			printf(cmd, "%d failed commands in the last 24h\n", failures)
			return nil
		}),
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Entries per section")
	return cmd
}

func (c *cli) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: c.withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			h, err := a.Gateway().Health(ctx)
			if err != nil {
				return err
			}
			printf(cmd, "backend: %s\nstatus:  %s\ncamera:  %t\n", a.Gateway().BaseURL(), h.Status, h.CameraRunning)

			if s, err := a.Gateway().Settings(ctx); err == nil {
				printf(cmd, "capture: %dx%d, confidence %.2f, threshold %.2f\n",
					s.CameraWidth, s.CameraHeight, s.DetectionConfidence, s.RecognitionThreshold)
			}
			return nil
		}),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

