// Package config handles meshtool configuration loading and management.
package config

import (
	"fmt"
	"math"

	"go.uber.org/multierr"
)

// Simplification modes.
const (
	ModeCollapse = "collapse"
	ModeSloppy   = "sloppy"
)

// Config holds all meshtool settings.
type Config struct {
	Simplify SimplifyConfig `yaml:"simplify"`
	Weld     WeldConfig     `yaml:"weld"`
	Cache    CacheConfig    `yaml:"cache"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SimplifyConfig holds triangle reduction settings.
type SimplifyConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Mode        string  `yaml:"mode"`         // collapse or sloppy
	Ratio       float64 `yaml:"ratio"`        // fraction of triangles to keep
	TargetError float64 `yaml:"target_error"` // relative to mesh extent
	UVWeight    float64 `yaml:"uv_weight"`
	LockBorder  bool    `yaml:"lock_border"`
	Optimal     bool    `yaml:"optimal_placement"`
}

// WeldConfig holds duplicate vertex merging settings.
type WeldConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"` // in model units
}

// CacheConfig holds vertex cache optimization settings.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	Size    int  `yaml:"size"`
}

// PipelineConfig holds batch processing settings.
type PipelineConfig struct {
	Workers int `yaml:"workers"` // 0 means GOMAXPROCS
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Simplify: SimplifyConfig{
			Enabled:     true,
			Mode:        ModeCollapse,
			Ratio:       0.5,
			TargetError: 0.01,
			UVWeight:    1.0,
		},
		Weld: WeldConfig{
			Enabled:   true,
			Threshold: 0.0001,
		},
		Cache: CacheConfig{
			Enabled: true,
			Size:    16,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error
	if c.Simplify.Mode != ModeCollapse && c.Simplify.Mode != ModeSloppy {
		err = multierr.Append(err, fmt.Errorf("simplify.mode: unknown mode %q", c.Simplify.Mode))
	}
	if math.IsNaN(c.Simplify.Ratio) || c.Simplify.Ratio < 0 || c.Simplify.Ratio > 1 {
		err = multierr.Append(err, fmt.Errorf("simplify.ratio: %v not in [0, 1]", c.Simplify.Ratio))
	}
	if math.IsNaN(c.Simplify.TargetError) || c.Simplify.TargetError < 0 {
		err = multierr.Append(err, fmt.Errorf("simplify.target_error: %v must be >= 0", c.Simplify.TargetError))
	}
	if math.IsNaN(c.Simplify.UVWeight) || c.Simplify.UVWeight < 0 {
		err = multierr.Append(err, fmt.Errorf("simplify.uv_weight: %v must be >= 0", c.Simplify.UVWeight))
	}
	if math.IsNaN(c.Weld.Threshold) || math.IsInf(c.Weld.Threshold, 0) || c.Weld.Threshold < 0 {
		err = multierr.Append(err, fmt.Errorf("weld.threshold: %v must be finite and >= 0", c.Weld.Threshold))
	}
	if c.Cache.Size < 3 || c.Cache.Size > 256 {
		err = multierr.Append(err, fmt.Errorf("cache.size: %d not in [3, 256]", c.Cache.Size))
	}
	if c.Pipeline.Workers < 0 {
		err = multierr.Append(err, fmt.Errorf("pipeline.workers: %d must be >= 0", c.Pipeline.Workers))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		err = multierr.Append(err, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	return err
}
