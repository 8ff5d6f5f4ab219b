// Package config loads tracegate settings from YAML or CUE files and the
// environment.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tracegate/internal/gate"
	"github.com/roach88/tracegate/internal/logging"
)

// ErrInvalid marks configuration that loaded but failed validation.
var ErrInvalid = errors.New("invalid configuration")

//go:embed schema.cue
var schemaCUE string

// Config holds all tracegate configuration.
type Config struct {
	Log      LogConfig      `yaml:"log" json:"log"`
	Gate     GateConfig     `yaml:"gate" json:"gate"`
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline"`
	Store    StoreConfig    `yaml:"store" json:"store"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `yaml:"level" json:"level"` // "debug", "info", "warn" (or "warning"), "error"
	File  string `yaml:"file" json:"file"`   // optional JSON log file
}

// GateConfig holds gate thresholds and the readiness history location.
type GateConfig struct {
	MinEventReductionPct      float64 `yaml:"min_event_reduction_pct" json:"min_event_reduction_pct"`
	MinRepeatReductionPct     float64 `yaml:"min_repeat_reduction_pct" json:"min_repeat_reduction_pct"`
	RequiredConsecutivePasses int     `yaml:"required_consecutive_passes" json:"required_consecutive_passes"`
	HistoryPath               string  `yaml:"history_path" json:"history_path"`
}

// Thresholds returns the gate thresholds.
func (g GateConfig) Thresholds() gate.Thresholds {
	return gate.Thresholds{
		MinEventReductionPct:      g.MinEventReductionPct,
		MinRepeatReductionPct:     g.MinRepeatReductionPct,
		RequiredConsecutivePasses: g.RequiredConsecutivePasses,
	}
}

// PipelineConfig holds orchestrator settings.
type PipelineConfig struct {
	Shards int `yaml:"shards" json:"shards"`
}

// StoreConfig holds the analysis archive location. Empty disables archiving.
type StoreConfig struct {
	Path string `yaml:"path" json:"path"`
}

// MetricsConfig holds the Prometheus textfile location. Empty disables it.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile" json:"textfile"`
}

// Default returns the built-in configuration.
func Default() Config {
	th := gate.DefaultThresholds()
	return Config{
		Log: LogConfig{Level: "info"},
		Gate: GateConfig{
			MinEventReductionPct:      th.MinEventReductionPct,
			MinRepeatReductionPct:     th.MinRepeatReductionPct,
			RequiredConsecutivePasses: th.RequiredConsecutivePasses,
			HistoryPath:               filepath.Join(".tracegate", "readiness.json"),
		},
		Pipeline: PipelineConfig{Shards: 1},
	}
}

// Load reads path (YAML or CUE by extension) over the defaults, applies
// environment overrides and validates the result. An empty path skips the
// file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			cfg, err = loadYAML(path, cfg)
		case ".cue":
			cfg, err = loadCUE(path)
		default:
			err = fmt.Errorf("unsupported config format %q (want .yaml, .yml or .cue)", ext)
		}
		if err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadYAML(path string, cfg Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse YAML: %w", err)
	}
	return cfg, nil
}

// loadCUE unifies the file with the embedded #Config schema, which supplies
// defaults and range constraints, and decodes the concrete result.
func loadCUE(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile schema: %w", err)
	}
	user := ctx.CompileBytes(data, cue.Filename(path))
	if err := user.Err(); err != nil {
		return Config{}, fmt.Errorf("compile CUE: %w", err)
	}

	value := schema.LookupPath(cue.ParsePath("#Config")).Unify(user)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("validate CUE: %w", err)
	}

	var cfg Config
	if err := value.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode CUE: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides file values from TRACEGATE_* variables. Malformed
// numbers leave the current value in place.
func applyEnv(cfg *Config) {
	cfg.Log.Level = getenv("TRACEGATE_LOG_LEVEL", cfg.Log.Level)
	cfg.Gate.HistoryPath = getenv("TRACEGATE_HISTORY_PATH", cfg.Gate.HistoryPath)
	cfg.Store.Path = getenv("TRACEGATE_DB", cfg.Store.Path)
	cfg.Metrics.TextfilePath = getenv("TRACEGATE_METRICS_TEXTFILE", cfg.Metrics.TextfilePath)
	cfg.Pipeline.Shards = getenvInt("TRACEGATE_SHARDS", cfg.Pipeline.Shards)
	cfg.Gate.MinEventReductionPct = getenvFloat("TRACEGATE_MIN_EVENT_REDUCTION_PCT", cfg.Gate.MinEventReductionPct)
	cfg.Gate.MinRepeatReductionPct = getenvFloat("TRACEGATE_MIN_REPEAT_REDUCTION_PCT", cfg.Gate.MinRepeatReductionPct)
	cfg.Gate.RequiredConsecutivePasses = getenvInt("TRACEGATE_REQUIRED_PASSES", cfg.Gate.RequiredConsecutivePasses)
}

// Validate reports every out-of-range setting, wrapped in ErrInvalid.
func (c Config) Validate() error {
	var problems []string
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, fmt.Sprintf("log.level must be one of debug, info, warn, error: %v", err))
	}
	checkPct := func(name string, v float64) {
		if v < 0 || v > 100 {
			problems = append(problems, fmt.Sprintf("%s must be within 0..100, got %v", name, v))
		}
	}
	checkPct("gate.min_event_reduction_pct", c.Gate.MinEventReductionPct)
	checkPct("gate.min_repeat_reduction_pct", c.Gate.MinRepeatReductionPct)
	if c.Gate.RequiredConsecutivePasses < 1 {
		problems = append(problems, fmt.Sprintf("gate.required_consecutive_passes must be at least 1, got %d", c.Gate.RequiredConsecutivePasses))
	}
	if c.Pipeline.Shards < 1 {
		problems = append(problems, fmt.Sprintf("pipeline.shards must be at least 1, got %d", c.Pipeline.Shards))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fallback
	}
	return f
}
