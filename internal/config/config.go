// Package config loads engine settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/supercollider/internal/classify"
	"github.com/roach88/supercollider/internal/engine"
)

// Config is the on-disk engine configuration.
//
// Example:
//
//	workers: 4
//	safety_timeout: 5s
//	sort_grain: 32
//	log_level: debug
//	recheck_ms:
//	  ship-weapon: 50
//	  ship-ship: 200
type Config struct {
	// Workers is the worker pool size. 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`

	// SafetyTimeout is a Go duration string. Empty means 5s.
	SafetyTimeout string `yaml:"safety_timeout"`

	// SortGrain is the per-worker broad-phase sort grain. 0 means 32.
	SortGrain int `yaml:"sort_grain"`

	// RecheckMs maps pair-kind names to recheck intervals in simulated ms.
	RecheckMs map[string]int64 `yaml:"recheck_ms"`

	// LogLevel is one of debug, info, warn, error. Empty means info.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Workers:       runtime.GOMAXPROCS(0),
		SafetyTimeout: engine.DefaultSafetyTimeout.String(),
		SortGrain:     engine.DefaultSortGrain,
		LogLevel:      "info",
	}
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML config data. Unknown fields are rejected.
// Fields left out keep their Default values.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks field values. It clamps a non-positive worker count to
// GOMAXPROCS and a non-positive sort grain to the default.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.SortGrain <= 0 {
		c.SortGrain = engine.DefaultSortGrain
	}
	if c.SafetyTimeout == "" {
		c.SafetyTimeout = engine.DefaultSafetyTimeout.String()
	}
	d, err := time.ParseDuration(c.SafetyTimeout)
	if err != nil {
		return fmt.Errorf("safety_timeout: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("safety_timeout must be positive, got %s", c.SafetyTimeout)
	}
	if _, err := c.Recheck(); err != nil {
		return err
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Timeout returns the parsed safety timeout.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.SafetyTimeout)
	if err != nil || d <= 0 {
		return engine.DefaultSafetyTimeout
	}
	return d
}

// Recheck converts RecheckMs to pair kinds. Unknown names and negative
// intervals are errors; names are reported in sorted order.
func (c *Config) Recheck() (map[classify.PairKind]int64, error) {
	names := make([]string, 0, len(c.RecheckMs))
	for name := range c.RecheckMs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[classify.PairKind]int64, len(names))
	for _, name := range names {
		p, err := classify.ParsePairKind(name)
		if err != nil {
			return nil, fmt.Errorf("recheck_ms: %w", err)
		}
		ms := c.RecheckMs[name]
		if ms < 0 {
			return nil, fmt.Errorf("recheck_ms: %s must not be negative, got %d", name, ms)
		}
		out[p] = ms
	}
	return out, nil
}

// Level returns the slog level for LogLevel.
func (c *Config) Level() slog.Level {
	l, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

// ParseLevel converts a level name to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("log_level: unknown level %q", s)
}

// Options converts the config into engine options.
func (c *Config) Options() ([]engine.Option, error) {
	recheck, err := c.Recheck()
	if err != nil {
		return nil, err
	}
	return []engine.Option{
		engine.WithWorkers(c.Workers),
		engine.WithSafetyTimeout(c.Timeout()),
		engine.WithSortGrain(c.SortGrain),
		engine.WithRecheckIntervals(recheck),
	}, nil
}
