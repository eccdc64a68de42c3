// Command campuswatch is the operator console for the face-detection backend.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ayusman/campuswatch/internal/app"
	"github.com/ayusman/campuswatch/internal/config"
	"github.com/ayusman/campuswatch/internal/logger"
)

const Version = "0.3.0"

// cli holds the persistent flags shared by every subcommand.
type cli struct {
	configPath string
	logLevel   string

	settings *config.Config
	logger   zerolog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:          "campuswatch",
		Short:        "Live console for the campus face-detection backend",
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Set log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(
		c.serveCmd(),
		c.trayCmd(),
		c.watchCmd(),
		c.cameraCmd(),
		c.recordingCmd(),
		c.snapshotCmd(),
		c.personsCmd(),
		c.alertsCmd(),
		c.reportCmd(),
		c.journalCmd(),
		c.healthCmd(),
	)

	return rootCmd
}

// load reads the configuration and builds the logger. Logs go to stderr so
// command output stays clean.
func (c *cli) load(stderr io.Writer) error {
	settings, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		settings.Log.Level = c.logLevel
	}

	var w io.Writer
	if settings.Log.Output == "" || settings.Log.Output == "stdout" {
		w = stderr
	}
	l, err := logger.NewWithWriter(settings.Log, w)
	if err != nil {
		return err
	}

	c.settings = settings
	c.logger = l
	return nil
}

// open builds the application. Callers must Close it.
func (c *cli) open() (*app.App, error) {
	return app.New(app.Config{Settings: c.settings, Logger: c.logger})
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <data dir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	dataWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}

func staticDir(settings *config.Config) string {
	if settings.Server.StaticDir != "" {
		return settings.Server.StaticDir
	}
	return findWebDir(settings.DataDir)
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
