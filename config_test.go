package nexec

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/water-rs/native-executor/core"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nexec.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "nexec" {
		t.Errorf("expected name 'nexec', got %s", cfg.Name)
	}
	if cfg.Workers <= 0 {
		t.Errorf("expected positive default workers, got %d", cfg.Workers)
	}
	if cfg.HistorySize != 128 {
		t.Errorf("expected history size 128, got %d", cfg.HistorySize)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "console" {
		t.Errorf("expected log format 'console', got %s", cfg.LogFormat)
	}
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfigFile(t, `
name: pipeline
workers: 3
history_size: 16
log_level: debug
log_format: json
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Name != "pipeline" {
		t.Errorf("expected name 'pipeline', got %s", cfg.Name)
	}
	if cfg.Workers != 3 {
		t.Errorf("expected 3 workers, got %d", cfg.Workers)
	}
	if cfg.HistorySize != 16 {
		t.Errorf("expected history size 16, got %d", cfg.HistorySize)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("expected log format 'json', got %s", cfg.LogFormat)
	}
}

func TestLoadConfig_PartialFile(t *testing.T) {
	path := writeConfigFile(t, "workers: 2\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Workers != 2 {
		t.Errorf("expected 2 workers, got %d", cfg.Workers)
	}
	// Unset fields keep their defaults.
	if cfg.Name != "nexec" {
		t.Errorf("expected default name, got %s", cfg.Name)
	}
	if cfg.HistorySize != 128 {
		t.Errorf("expected default history size, got %d", cfg.HistorySize)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if !strings.Contains(err.Error(), "read config") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := writeConfigFile(t, "workers: [not a number\n")

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadConfig_ClampsInvalidValues(t *testing.T) {
	path := writeConfigFile(t, `
name: ""
workers: -3
history_size: 0
log_format: xml
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	def := DefaultConfig()
	if cfg.Name != def.Name {
		t.Errorf("expected empty name clamped to %s, got %s", def.Name, cfg.Name)
	}
	if cfg.Workers != def.Workers {
		t.Errorf("expected workers clamped to %d, got %d", def.Workers, cfg.Workers)
	}
	if cfg.HistorySize != def.HistorySize {
		t.Errorf("expected history size clamped to %d, got %d", def.HistorySize, cfg.HistorySize)
	}
	if cfg.LogFormat != "console" {
		t.Errorf("expected unknown log format clamped to console, got %s", cfg.LogFormat)
	}
}

func TestConfig_Level(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"  debug ", zerolog.DebugLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, c := range cases {
		cfg := Config{LogLevel: c.in}
		if got := cfg.Level(); got != c.want {
			t.Errorf("Level(%q): expected %v, got %v", c.in, c.want, got)
		}
	}
}

func TestNewPoolFromConfig(t *testing.T) {
	cfg := Config{
		Name:        "configured",
		Workers:     2,
		HistorySize: 4,
		LogLevel:    "error",
	}
	pool := NewPoolFromConfig(cfg)

	if pool.Name() != "configured" {
		t.Errorf("expected name 'configured', got %s", pool.Name())
	}
	if pool.Stats().Workers != 2 {
		t.Errorf("expected 2 workers, got %d", pool.Stats().Workers)
	}
	if got := pool.logger().GetLevel(); got != zerolog.ErrorLevel {
		t.Errorf("expected error log level, got %v", got)
	}

	// The history ring takes its capacity from the config.
	for i := 0; i < 6; i++ {
		pool.history.Add(core.HistoryRecord{Priority: PriorityDefault, Duration: time.Millisecond})
	}
	if got := pool.history.Len(); got != 4 {
		t.Errorf("expected history capped at 4 records, got %d", got)
	}
}

func TestPool_ApplyConfig(t *testing.T) {
	pool := NewPool("apply-pool", 1)
	pool.ApplyConfig(Config{LogLevel: "debug"})

	if got := pool.logger().GetLevel(); got != zerolog.DebugLevel {
		t.Errorf("expected debug log level, got %v", got)
	}
}
