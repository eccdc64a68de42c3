// Package config loads campuswatch settings from YAML, .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/campuswatch/internal/logger"
)

// ErrInvalid is returned when a loaded configuration fails validation.
var ErrInvalid = errors.New("invalid config")

// Environment variable names that override file values.
const (
	EnvBackendURL = "CAMPUSWATCH_BACKEND_URL"
	EnvListenAddr = "CAMPUSWATCH_LISTEN_ADDR"
	EnvDataDir    = "CAMPUSWATCH_DATA_DIR"
	EnvLogLevel   = "CAMPUSWATCH_LOG_LEVEL"
	EnvStaticDir  = "CAMPUSWATCH_STATIC_DIR"
)

// Config is the complete application configuration.
type Config struct {
	Backend          BackendConfig  `yaml:"backend"`
	Server           ServerConfig   `yaml:"server"`
	DataDir          string         `yaml:"data_dir"`
	Log              logger.Config  `yaml:"log"`
	Intervals        IntervalConfig `yaml:"intervals"`
	DetectionsWindow int            `yaml:"detections_window"`
	// JournalRetention is how long journal entries are kept. Zero keeps them forever.
	JournalRetention time.Duration `yaml:"journal_retention"`
	// CallTimeout bounds each polled call. Zero leaves calls unbounded.
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// BackendConfig describes how to reach the detection backend.
type BackendConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ServerConfig configures the console HTTP server.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// IntervalConfig holds the polling period of each live-view task.
type IntervalConfig struct {
	CameraStatus     time.Duration `yaml:"camera_status"`
	Frame            time.Duration `yaml:"frame"`
	Statistics       time.Duration `yaml:"statistics"`
	RecentDetections time.Duration `yaml:"recent_detections"`
	Alerts           time.Duration `yaml:"alerts"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:     "http://localhost:5000/api",
			Timeout: 10 * time.Second,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		DataDir: defaultDataDir(),
		Log:     logger.DefaultConfig(),
		Intervals: IntervalConfig{
			CameraStatus:     2 * time.Second,
			Frame:            500 * time.Millisecond,
			Statistics:       5 * time.Second,
			RecentDetections: 5 * time.Second,
			Alerts:           10 * time.Second,
		},
		DetectionsWindow: 50,
		JournalRetention: 30 * 24 * time.Hour,
	}
}

func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".campuswatch"
	}
	return filepath.Join(homeDir, ".campuswatch")
}

// Load reads the YAML file at path on top of the defaults, applies .env and
// environment overrides, and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		c.Backend.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvListenAddr)); v != "" {
		c.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDataDir)); v != "" {
		c.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStaticDir)); v != "" {
		c.Server.StaticDir = v
	}
}

// Validate checks the configuration for values the application cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.URL) == "" {
		return fmt.Errorf("%w: backend.url is required", ErrInvalid)
	}

	intervals := map[string]time.Duration{
		"camera_status":     c.Intervals.CameraStatus,
		"frame":             c.Intervals.Frame,
		"statistics":        c.Intervals.Statistics,
		"recent_detections": c.Intervals.RecentDetections,
		"alerts":            c.Intervals.Alerts,
	}
	for name, d := range intervals {
		if d <= 0 {
			return fmt.Errorf("%w: intervals.%s must be positive, got %s", ErrInvalid, name, d)
		}
	}

	if c.DetectionsWindow <= 0 {
		return fmt.Errorf("%w: detections_window must be positive, got %d", ErrInvalid, c.DetectionsWindow)
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("%w: call_timeout must not be negative", ErrInvalid)
	}
	if c.JournalRetention < 0 {
		return fmt.Errorf("%w: journal_retention must not be negative", ErrInvalid)
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("%w: backend.timeout must not be negative", ErrInvalid)
	}

	return nil
}

// DatabasePath returns the journal database location inside DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "campuswatch.db")
}
