// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

// Package config loads the rtalign configuration from defaults, an
// optional config file, RTALIGN_* environment variables and command line
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/524D/rtalign/internal/align"
	"github.com/524D/rtalign/internal/framing"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables, e.g.
// RTALIGN_ALIGN_MIN_FRACTION overrides align.min_fraction
const EnvPrefix = "RTALIGN"

// ErrInvalidConfig is wrapped by all validation errors
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete configuration
type Config struct {
	Align        AlignConfig   `mapstructure:"align"`
	Framing      FramingConfig `mapstructure:"framing"`
	HTTP         HTTPConfig    `mapstructure:"http"`
	Verbose      bool          `mapstructure:"verbose"`
	Quiet        bool          `mapstructure:"quiet"`
	DebugSamples bool          `mapstructure:"debug_samples"`
}

// AlignConfig holds the alignment parameters
type AlignConfig struct {
	MinFraction    float64 `mapstructure:"min_fraction"`
	ExtraPeaks     int     `mapstructure:"extra_peaks"`
	Span           float64 `mapstructure:"span"`
	Iterations     int     `mapstructure:"iterations"`
	CutoffQuantile float64 `mapstructure:"cutoff_quantile"`
	CutoffFactor   float64 `mapstructure:"cutoff_factor"`
	Workers        int     `mapstructure:"workers"`
}

// FramingConfig holds the markers of the pipe protocol
type FramingConfig struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
	Stop  string `mapstructure:"stop"`
}

// HTTPConfig holds the settings of the HTTP transport
type HTTPConfig struct {
	Addr        string        `mapstructure:"addr"`
	MaxBody     int64         `mapstructure:"max_body"`
	Timeout     time.Duration `mapstructure:"timeout"`
	CORSOrigins []string      `mapstructure:"cors_origins"`
}

// SetDefaults registers every key with its default value. Keys that are
// unknown to viper can't be overridden from the environment.
func SetDefaults(v *viper.Viper) {
	p := align.DefaultParams()
	v.SetDefault("align.min_fraction", p.MinFraction)
	v.SetDefault("align.extra_peaks", p.ExtraPeaks)
	v.SetDefault("align.span", p.Span)
	v.SetDefault("align.iterations", p.Iterations)
	v.SetDefault("align.cutoff_quantile", p.CutoffQuantile)
	v.SetDefault("align.cutoff_factor", p.CutoffFactor)
	v.SetDefault("align.workers", p.Workers)

	s := framing.DefaultSentinels
	v.SetDefault("framing.start", s.Start)
	v.SetDefault("framing.end", s.End)
	v.SetDefault("framing.stop", s.Stop)

	v.SetDefault("http.addr", "127.0.0.1:8080")
	v.SetDefault("http.max_body", int64(64<<20))
	v.SetDefault("http.timeout", 60*time.Second)
	v.SetDefault("http.cors_origins", []string{})

	v.SetDefault("verbose", false)
	v.SetDefault("quiet", false)
	v.SetDefault("debug_samples", false)
}

// Load reads the configuration into v and decodes it. file may be empty,
// in which case no config file is read.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values that can't work
func (c *Config) Validate() error {
	if err := c.Align.Params().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	f := c.Framing
	if f.Start == "" || f.End == "" || f.Stop == "" {
		return fmt.Errorf("%w: framing markers must not be empty", ErrInvalidConfig)
	}
	if f.Start == f.End {
		return fmt.Errorf("%w: start and end marker are both %q", ErrInvalidConfig, f.Start)
	}
	if c.HTTP.MaxBody <= 0 {
		return fmt.Errorf("%w: http.max_body %d must be positive", ErrInvalidConfig, c.HTTP.MaxBody)
	}
	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("%w: http.timeout %v is negative", ErrInvalidConfig, c.HTTP.Timeout)
	}
	if c.Verbose && c.Quiet {
		return fmt.Errorf("%w: verbose and quiet are mutually exclusive", ErrInvalidConfig)
	}
	return nil
}

// Params converts to the aligner parameters
func (a AlignConfig) Params() align.Params {
	return align.Params{
		MinFraction:    a.MinFraction,
		ExtraPeaks:     a.ExtraPeaks,
		Span:           a.Span,
		Iterations:     a.Iterations,
		CutoffQuantile: a.CutoffQuantile,
		CutoffFactor:   a.CutoffFactor,
		Workers:        a.Workers,
	}
}

// Sentinels converts to the framing markers
func (f FramingConfig) Sentinels() framing.Sentinels {
	return framing.Sentinels{Start: f.Start, End: f.End, Stop: f.Stop}
}
