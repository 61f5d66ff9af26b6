package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig(\"\") error: %s", err)
	}

	if got := config.Settings.Level(); got != slog.LevelInfo {
		t.Errorf("default log level = %s, want INFO", got)
	}
	if got := config.Telemetry.Interval(); got != 100*time.Millisecond {
		t.Errorf("default poll interval = %s, want 100ms", got)
	}
	if config.Storage.Path != "servo_data.db" {
		t.Errorf("default storage path = %q, want servo_data.db", config.Storage.Path)
	}
	if config.Web.Port != 5000 {
		t.Errorf("default web port = %d, want 5000", config.Web.Port)
	}
	if len(config.Hardware.Buses) == 0 {
		t.Error("default hardware config lists no I2C buses")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
settings:
  logLevel: debug
input:
  device: /dev/input/event2
telemetry:
  pollInterval: 0.5
web:
  port: 8080
storage:
  path: /tmp/run.db
  snapshotInterval: 2
  maxBatchSize: 25
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %s", err)
	}

	if got := config.Settings.Level(); got != slog.LevelDebug {
		t.Errorf("log level = %s, want DEBUG", got)
	}
	if config.Input.Device != "/dev/input/event2" {
		t.Errorf("input device = %q", config.Input.Device)
	}
	if got := config.Telemetry.Interval(); got != 500*time.Millisecond {
		t.Errorf("poll interval = %s, want 500ms", got)
	}
	if config.Web.Port != 8080 {
		t.Errorf("web port = %d, want 8080", config.Web.Port)
	}
	if got := config.Storage.Interval(); got != 2*time.Second {
		t.Errorf("snapshot interval = %s, want 2s", got)
	}
	if config.Storage.MaxBatchSize != 25 {
		t.Errorf("max batch size = %d, want 25", config.Storage.MaxBatchSize)
	}

	// fields absent from the file keep their defaults
	if config.Hardware.MinPulse != 150 || config.Hardware.MaxPulse != 600 {
		t.Errorf("hardware pulse range = (%d, %d), want defaults (150, 600)",
			config.Hardware.MinPulse, config.Hardware.MaxPulse)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("LoadConfig() with a missing file: expected an error")
	}
}

func TestSettingsLevelUnknownValue(t *testing.T) {
	s := Settings{LogLevel: "chatty"}
	if got := s.Level(); got != slog.LevelInfo {
		t.Errorf("Level() = %s, want INFO fallback", got)
	}
}
