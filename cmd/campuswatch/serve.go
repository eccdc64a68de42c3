package main

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ayusman/campuswatch/internal/app"
	"github.com/ayusman/campuswatch/internal/logger"
	"github.com/ayusman/campuswatch/internal/server"
	"github.com/ayusman/campuswatch/internal/tray"
)

func (c *cli) newServer(a *app.App) *server.Server {
	dir := staticDir(c.settings)
	if dir != "" {
		c.logger.Info().Str("dir", dir).Msg("Serving static files")
	}
	return server.New(server.Config{
		StaticDir: dir,
		App:       a,
		Logger:    logger.WithComponent(c.logger, "server"),
	})
}

func (c *cli) serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the console HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				c.settings.Server.Addr = addr
			}

			a, err := c.open()
			if err != nil {
				return err
			}
			defer a.Close()

			return c.newServer(a).ListenAndServe(cmd.Context(), c.settings.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func (c *cli) trayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tray",
		Short: "Run the console server with a system tray icon",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			view, release, err := a.AcquireView()
			if err != nil {
				return err
			}
			defer release()

			t := tray.New()
			t.OnCamera(func(start bool) {
				if start {
					a.Commands().StartCamera(ctx)
				} else {
					a.Commands().StopCamera(ctx)
				}
			})
			t.OnRecording(func(start bool) {
				if start {
					a.Commands().StartRecording(ctx)
				} else {
					a.Commands().StopRecording(ctx)
				}
			})
			t.OnConsole(func() {
				if err := openBrowser(consoleURL(c.settings.Server.Addr)); err != nil {
					c.logger.Warn().Err(err).Msg("Failed to open browser")
				}
			})
			t.OnQuit(cancel)

			snapshots, unsubscribe := view.Store().Subscribe()
			defer unsubscribe()
			go func() {
				for snap := range snapshots {
					t.Update(tray.StateOf(snap))
				}
			}()

			errCh := make(chan error, 1)
			go func() {
				errCh <- c.newServer(a).ListenAndServe(ctx, c.settings.Server.Addr)
				t.Quit()
			}()

			// systray owns the main goroutine until Quit.
			t.Run()
			cancel()
			return <-errCh
		},
	}
}

func consoleURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	return nil
}
