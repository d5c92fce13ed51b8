// Package config defines the engine and service configuration.
//
// Values are layered: defaults from New, then an optional YAML file, then
// PITSTRAT_-prefixed environment variables.
package config

import (
	"fmt"

	"race-strategy-engine/internal/degradation"
	"race-strategy-engine/internal/engine"
	"race-strategy-engine/internal/laps"
	"race-strategy-engine/internal/models"
	"race-strategy-engine/internal/strategy"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database holding analysis runs.
	DBPath string `koanf:"db_path"`

	// TargetRaceLaps is the number of laps a full strategy should cover.
	TargetRaceLaps int `koanf:"target_race_laps"`

	// PitLossS is the fixed time added per pit stop.
	PitLossS float64 `koanf:"pit_loss_s"`

	// WarmupLaps are excluded from the degradation regression.
	WarmupLaps int `koanf:"warmup_laps"`

	// MinSamplesPerLap drops incomplete laps.
	MinSamplesPerLap int `koanf:"min_samples_per_lap"`

	// HighSlipThreshold is the absolute slip above which a sample counts as high-slip.
	HighSlipThreshold float64 `koanf:"high_slip_threshold"`

	StressWeights laps.StressWeights `koanf:"stress_weights"`

	NegativeSlopeFloor float64 `koanf:"negative_slope_floor"`
	StressScaleFloor   float64 `koanf:"stress_scale_floor"`
	NeutralStress      float64 `koanf:"neutral_stress"`
	StressScaling      bool    `koanf:"stress_scaling"`

	// CompoundProfiles maps compound name to its profile.
	CompoundProfiles map[string]models.CompoundProfile `koanf:"compound_profiles"`

	// Strategies replaces the built-in candidates when non-empty.
	Strategies []models.Strategy `koanf:"strategies"`

	// Parallelism bounds concurrent strategy scoring; 0 means one per CPU.
	Parallelism int `koanf:"parallelism"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":8080",
		DBPath:             "pit_strategy.db",
		TargetRaceLaps:     strategy.DefaultTargetRaceLaps,
		PitLossS:           strategy.DefaultPitLossS,
		WarmupLaps:         degradation.DefaultWarmupLaps,
		MinSamplesPerLap:   laps.DefaultMinSamplesPerLap,
		HighSlipThreshold:  laps.DefaultHighSlipThreshold,
		StressWeights:      laps.DefaultStressWeights(),
		NegativeSlopeFloor: degradation.DefaultNegativeSlopeFloor,
		StressScaleFloor:   degradation.DefaultStressScaleFloor,
		NeutralStress:      degradation.DefaultNeutralStress,
		StressScaling:      true,
		CompoundProfiles:   strategy.DefaultCompounds(),
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.TargetRaceLaps <= 0:
		return fmt.Errorf("%w: target_race_laps must be > 0", ErrInvalidConfig)
	case c.PitLossS < 0:
		return fmt.Errorf("%w: pit_loss_s must be >= 0", ErrInvalidConfig)
	case c.WarmupLaps < 0:
		return fmt.Errorf("%w: warmup_laps must be >= 0", ErrInvalidConfig)
	case c.MinSamplesPerLap < 2:
		return fmt.Errorf("%w: min_samples_per_lap must be >= 2", ErrInvalidConfig)
	case c.HighSlipThreshold < 0:
		return fmt.Errorf("%w: high_slip_threshold must be >= 0", ErrInvalidConfig)
	case c.StressScaleFloor < 0:
		return fmt.Errorf("%w: stress_scale_floor must be >= 0", ErrInvalidConfig)
	case c.NeutralStress < 0:
		return fmt.Errorf("%w: neutral_stress must be >= 0", ErrInvalidConfig)
	case c.NegativeSlopeFloor < 0:
		return fmt.Errorf("%w: negative_slope_floor must be >= 0", ErrInvalidConfig)
	case len(c.CompoundProfiles) == 0:
		return fmt.Errorf("%w: compound_profiles must not be empty", ErrInvalidConfig)
	case c.Parallelism < 0:
		return fmt.Errorf("%w: parallelism must be >= 0", ErrInvalidConfig)
	}
	for name, p := range c.CompoundProfiles {
		if p.DegradationMultiplier <= 0 {
			return fmt.Errorf("%w: compound %q: degradation_multiplier must be > 0", ErrInvalidConfig, name)
		}
	}
	return nil
}

// Simple switches to the simple model: no warm-up exclusion, neutral stress.
func (c *Config) Simple() {
	c.WarmupLaps = 0
	c.StressScaling = false
}

// EngineOptions translates the configuration into engine options.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		TargetRaceLaps: c.TargetRaceLaps,
		PitLossS:       c.PitLossS,
		Parallelism:    c.Parallelism,
		Laps: laps.Options{
			MinSamplesPerLap:  c.MinSamplesPerLap,
			HighSlipThreshold: c.HighSlipThreshold,
			Weights:           c.StressWeights,
		},
		Fit: degradation.Options{
			WarmupLaps:         c.WarmupLaps,
			NegativeSlopeFloor: c.NegativeSlopeFloor,
			StressScaleFloor:   c.StressScaleFloor,
			NeutralStress:      c.NeutralStress,
			StressScaling:      c.StressScaling,
		},
		Compounds:  c.CompoundProfiles,
		Strategies: c.Strategies,
	}
}
