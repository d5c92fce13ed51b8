// Package engine runs the full analysis pipeline:
// samples -> lap metrics -> degradation model -> ranked strategies.
//
// Every stage is a pure function of its input. The engine holds only
// read-only configuration, so one Engine may serve concurrent calls.
package engine

import (
	"errors"
	"fmt"

	"race-strategy-engine/internal/degradation"
	"race-strategy-engine/internal/laps"
	"race-strategy-engine/internal/models"
	"race-strategy-engine/internal/strategy"
)

// ErrNoLaps is returned when no lap survives extraction.
var ErrNoLaps = errors.New("no qualifying laps in telemetry")

// Options is the engine configuration.
type Options struct {
	TargetRaceLaps int
	PitLossS       float64
	Parallelism    int
	Laps           laps.Options
	Fit            degradation.Options
	Compounds      map[string]models.CompoundProfile
	// Strategies overrides the built-in candidates when non-empty.
	Strategies []models.Strategy
}

// DefaultOptions returns the advanced-model defaults.
func DefaultOptions() Options {
	return Options{
		TargetRaceLaps: strategy.DefaultTargetRaceLaps,
		PitLossS:       strategy.DefaultPitLossS,
		Laps:           laps.DefaultOptions(),
		Fit:            degradation.DefaultOptions(),
		Compounds:      strategy.DefaultCompounds(),
	}
}

// Engine is the analysis pipeline.
type Engine struct {
	opts Options
}

// New validates opts and returns an Engine.
func New(opts Options) (*Engine, error) {
	switch {
	case opts.TargetRaceLaps <= 0:
		return nil, models.NewConfigurationError("target_race_laps", "must be > 0, got %d", opts.TargetRaceLaps)
	case opts.PitLossS < 0:
		return nil, models.NewConfigurationError("pit_loss_s", "must be >= 0, got %g", opts.PitLossS)
	case len(opts.Compounds) == 0:
		return nil, models.NewConfigurationError("compound_profiles", "at least one compound is required")
	}
	for name, c := range opts.Compounds {
		if c.DegradationMultiplier <= 0 {
			return nil, models.NewConfigurationError("compound_profiles", "%s: degradation_multiplier must be > 0", name)
		}
	}
	return &Engine{opts: opts}, nil
}

// Options returns the engine configuration.
func (e *Engine) Options() Options {
	return e.opts
}

// Candidates returns the strategies an Analyze call will rank.
func (e *Engine) Candidates() []models.Strategy {
	if len(e.opts.Strategies) > 0 {
		return e.opts.Strategies
	}
	return strategy.DefaultCandidates(e.opts.TargetRaceLaps, e.opts.Compounds)
}

// Analyze runs the pipeline over samples using the configured candidates.
func (e *Engine) Analyze(samples []models.TelemetrySample) (*models.Report, error) {
	return e.AnalyzeStrategies(samples, e.Candidates())
}

// AnalyzeStrategies runs the pipeline over samples and ranks candidates.
func (e *Engine) AnalyzeStrategies(samples []models.TelemetrySample, candidates []models.Strategy) (*models.Report, error) {
	metrics := laps.Extract(samples, e.opts.Laps)
	if len(metrics) == 0 {
		return nil, ErrNoLaps
	}

	model, warnings, err := degradation.Fit(metrics, e.opts.Fit)
	if err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}

	results, evalWarnings, err := e.Evaluate(model, candidates)
	if err != nil {
		return nil, err
	}

	return &models.Report{
		Metrics:        metrics,
		Model:          model,
		Results:        results,
		Warnings:       append(warnings, evalWarnings...),
		TargetRaceLaps: e.opts.TargetRaceLaps,
		PitLossS:       e.opts.PitLossS,
	}, nil
}

// Evaluate ranks candidates against an already fitted model.
func (e *Engine) Evaluate(model models.DegradationModel, candidates []models.Strategy) ([]models.StrategyResult, []models.Warning, error) {
	ev := strategy.NewEvaluator(model, e.opts.Compounds,
		strategy.WithPitLoss(e.opts.PitLossS),
		strategy.WithTargetRaceLaps(e.opts.TargetRaceLaps),
		strategy.WithParallelism(e.opts.Parallelism),
	)
	results, warnings, err := ev.Evaluate(candidates)
	if err != nil {
		return nil, nil, fmt.Errorf("evaluate: %w", err)
	}
	return results, warnings, nil
}
