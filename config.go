package nexec

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	yaml "github.com/goccy/go-yaml"
	"github.com/rs/zerolog"

	"github.com/water-rs/native-executor/core"
)

const logTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Config mirrors the optional YAML file tuning the built-in pool.
type Config struct {
	Name        string `yaml:"name"`
	Workers     int    `yaml:"workers"`
	HistorySize int    `yaml:"history_size"`
	LogLevel    string `yaml:"log_level"`  // trace, debug, info, warn, error
	LogFormat   string `yaml:"log_format"` // console or json
}

// DefaultConfig returns the values used when no file is given.
func DefaultConfig() Config {
	return Config{
		Name:        "nexec",
		Workers:     runtime.NumCPU(),
		HistorySize: 128,
		LogLevel:    "info",
		LogFormat:   "console",
	}
}

// LoadConfig reads YAML and overrides defaults; an empty path yields
// defaults only.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("nexec: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("nexec: parse config: %w", err)
	}
	return cfg.sanitize(), nil
}

// sanitize clamps insane values back to their defaults.
func (c Config) sanitize() Config {
	def := DefaultConfig()
	if c.Name == "" {
		c.Name = def.Name
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.HistorySize <= 0 {
		c.HistorySize = def.HistorySize
	}
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "json":
		c.LogFormat = "json"
	default:
		c.LogFormat = def.LogFormat
	}
	return c
}

// Level parses the configured log level, falling back to info.
func (c Config) Level() zerolog.Level {
	return parseLevel(c.LogLevel, zerolog.InfoLevel)
}

func parseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return def
	}
}

// BuildLogger constructs the logger the config describes, writing to
// stderr.
func (c Config) BuildLogger() zerolog.Logger {
	var w io.Writer = os.Stderr
	if c.LogFormat != "json" {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: logTimeFormat}
	}
	return zerolog.New(w).Level(c.Level()).With().Timestamp().Logger()
}

// NewPoolFromConfig builds a stopped pool per cfg.
func NewPoolFromConfig(cfg Config) *Pool {
	cfg = cfg.sanitize()
	p := NewPool(cfg.Name, cfg.Workers)
	p.history = core.NewHistory(cfg.HistorySize)
	p.SetLogger(cfg.BuildLogger())
	return p
}

// ApplyConfig applies the runtime-tunable part of cfg to a running
// pool, which today is the log level. Structural fields take effect
// only through NewPoolFromConfig.
func (p *Pool) ApplyConfig(cfg Config) {
	p.SetLogLevel(cfg.Level())
}
