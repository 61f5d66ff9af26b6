package app

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codeddarkness/controller-new/internal/hardware"
	"github.com/codeddarkness/controller-new/internal/web"
)

// Config represents the main application configuration
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Hardware  hardware.Config `yaml:"hardware"`
	Input     InputConfig     `yaml:"input"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Web       web.Config      `yaml:"web"`
	Storage   StorageConfig   `yaml:"storage"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// InputConfig represents game controller settings
type InputConfig struct {
	// Device is the evdev node to open. Empty means scan for the first
	// device that looks like a game controller.
	Device string `yaml:"device"`
}

// TelemetryConfig represents sensor polling settings
type TelemetryConfig struct {
	// PollInterval is the MPU6050 refresh period in seconds.
	PollInterval float64 `yaml:"pollInterval"`
}

// StorageConfig represents session logging settings
type StorageConfig struct {
	// Path is the SQLite database file. Empty disables logging.
	Path string `yaml:"path"`

	// SnapshotInterval is the recording period in seconds.
	SnapshotInterval float64 `yaml:"snapshotInterval"`

	// MaxBatchSize is the number of snapshots written per transaction.
	MaxBatchSize int `yaml:"maxBatchSize"`
}

// Level parses the configured log level, defaulting to info.
func (s Settings) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Interval returns the telemetry refresh period as a duration.
func (c TelemetryConfig) Interval() time.Duration {
	if c.PollInterval <= 0 {
		return 0
	}
	return time.Duration(c.PollInterval * float64(time.Second))
}

// Interval returns the snapshot recording period as a duration.
func (c StorageConfig) Interval() time.Duration {
	if c.SnapshotInterval <= 0 {
		return 0
	}
	return time.Duration(c.SnapshotInterval * float64(time.Second))
}

// DefaultConfig returns a configuration that runs on a stock Raspberry Pi
// without a config file.
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: "info"},
		Hardware: hardware.DefaultConfig(),
		Telemetry: TelemetryConfig{
			PollInterval: 0.1,
		},
		Web: web.DefaultConfig(),
		Storage: StorageConfig{
			Path:             "servo_data.db",
			SnapshotInterval: 5,
			MaxBatchSize:     10,
		},
	}
}

// LoadConfig reads a YAML configuration file. An empty path yields the
// defaults. Fields absent from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	return config, nil
}
