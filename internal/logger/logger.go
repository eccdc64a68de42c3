// Package logger builds the zerolog loggers used across campuswatch.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config controls level, destination and timestamp format of the logger.
type Config struct {
	Level      string `yaml:"level"`
	Debug      bool   `yaml:"debug"`
	Output     string `yaml:"output"`
	TimeFormat string `yaml:"time_format"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Output: "stdout",
	}
}

// New creates a logger from the given configuration.
// Output may be "stdout", "stderr" or "console" (human readable on stderr).
func New(cfg Config) (zerolog.Logger, error) {
	return NewWithWriter(cfg, nil)
}

// NewWithWriter is like New but writes to w when w is non-nil.
func NewWithWriter(cfg Config, w io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel

	if cfg.Debug {
		level = zerolog.DebugLevel
	} else if cfg.Level != "" {
		var err error

		level, err = zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	timeFormat := time.RFC3339
	if cfg.TimeFormat != "" {
		timeFormat = cfg.TimeFormat
	}

	output := w
	if output == nil {
		switch cfg.Output {
		case "", "stdout":
			output = os.Stdout
		case "stderr":
			output = os.Stderr
		case "console":
			output = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: timeFormat}
		default:
			return zerolog.Nop(), fmt.Errorf("invalid log output %q", cfg.Output)
		}
	}

	zerolog.TimeFieldFormat = timeFormat

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}

// WithComponent returns a child logger tagged with the component name.
func WithComponent(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}
