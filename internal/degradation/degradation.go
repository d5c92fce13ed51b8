// Package degradation fits a first-order lap-time degradation trend.
//
// The model is one global linear rate: a least-squares slope over the
// post-warm-up laps, floored when the observed trend is improving, and scaled
// by how stressed the driving was. Compound scaling happens later, in the
// strategy package.
package degradation

import (
	"fmt"

	"race-strategy-engine/internal/models"
)

// Default fitting parameters.
const (
	DefaultWarmupLaps         = 1
	DefaultNegativeSlopeFloor = 0.05
	DefaultStressScaleFloor   = 0.5
	DefaultNeutralStress      = 0.5

	minLapsForFit    = 3
	minFitLapsForFit = 2
)

// Options controls fitting.
type Options struct {
	// WarmupLaps excludes laps within this many laps of the first lap from the regression.
	WarmupLaps int
	// NegativeSlopeFloor replaces a negative raw slope.
	NegativeSlopeFloor float64
	// StressScaleFloor is the multiplier at zero normalised stress; the band is [floor, floor+1].
	StressScaleFloor float64
	// NeutralStress is used when every lap has zero stress, or when StressScaling is off.
	NeutralStress float64
	// StressScaling enables stress-based rate scaling.
	StressScaling bool
}

// DefaultOptions returns the advanced model options.
func DefaultOptions() Options {
	return Options{
		WarmupLaps:         DefaultWarmupLaps,
		NegativeSlopeFloor: DefaultNegativeSlopeFloor,
		StressScaleFloor:   DefaultStressScaleFloor,
		NeutralStress:      DefaultNeutralStress,
		StressScaling:      true,
	}
}

// SimpleOptions returns the simple model: no warm-up exclusion, neutral stress.
func SimpleOptions() Options {
	o := DefaultOptions()
	o.WarmupLaps = 0
	o.StressScaling = false
	return o
}

// Fit builds a DegradationModel from lap metrics sorted by lap number.
// Insufficient data never fails the fit; it produces warnings and falls back
// to a zero raw rate. metrics must be non-empty.
func Fit(metrics []models.LapMetric, opts Options) (models.DegradationModel, []models.Warning, error) {
	if len(metrics) == 0 {
		return models.DegradationModel{}, nil, fmt.Errorf("fit degradation: %w", ErrNoMetrics)
	}
	if opts.WarmupLaps < 0 {
		return models.DegradationModel{}, nil, models.NewConfigurationError("warmup_laps", "must be >= 0, got %d", opts.WarmupLaps)
	}

	var warnings []models.Warning
	model := models.DegradationModel{WarmupLaps: opts.WarmupLaps}
	n := len(metrics)

	rawRate := 0.0
	fallback := false
	switch {
	case n < minLapsForFit:
		fallback = true
		warnings = append(warnings, models.Warning{
			Kind:    models.WarnFewLaps,
			Message: fmt.Sprintf("only %d lap(s) available, need %d to fit; using zero degradation", n, minLapsForFit),
		})
	default:
		xs, ys := fitWindow(metrics, opts.WarmupLaps)
		if len(xs) < minFitLapsForFit {
			fallback = true
			warnings = append(warnings, models.Warning{
				Kind:    models.WarnFewFitLaps,
				Message: fmt.Sprintf("only %d post-warm-up lap(s), need %d to fit; using zero degradation", len(xs), minFitLapsForFit),
			})
			break
		}
		slope, _, err := Slope(xs, ys)
		if err != nil {
			// Repeated lap numbers leave no spread to regress over.
			fallback = true
			warnings = append(warnings, models.Warning{
				Kind:    models.WarnFewFitLaps,
				Message: fmt.Sprintf("post-warm-up laps share one lap number (%v); using zero degradation", err),
			})
			break
		}
		rawRate = slope
		model.FitLaps = len(xs)
	}
	model.RawRateSPerLap = rawRate

	baseDeg := rawRate
	if rawRate < 0 {
		baseDeg = opts.NegativeSlopeFloor
		model.NegativeSlopeFloorApplied = true
		warnings = append(warnings, models.Warning{
			Kind:    models.WarnNegativeSlope,
			Message: fmt.Sprintf("raw slope %.4f s/lap means laps got faster; using floor %.4f s/lap", rawRate, opts.NegativeSlopeFloor),
		})
	}
	model.BaseDegSPerLap = baseDeg

	// Stress covers every lap, warm-up included: it describes driving inputs.
	model.MeanStress, model.MaxStress = stressStats(metrics)
	switch {
	case !opts.StressScaling:
		model.StressNorm = opts.NeutralStress
	case model.MaxStress > 0:
		model.StressNorm = model.MeanStress / model.MaxStress
	default:
		model.StressNorm = opts.NeutralStress
		warnings = append(warnings, models.Warning{
			Kind:    models.WarnZeroStress,
			Message: fmt.Sprintf("all laps have zero tire stress; using neutral stress %.2f", opts.NeutralStress),
		})
	}

	model.EffectiveDegRateSPerLap = baseDeg * (opts.StressScaleFloor + model.StressNorm)

	if fallback {
		model.BaseLapTimeS = metrics[0].LapTimeS
	} else {
		model.BaseLapTimeS = metrics[min(opts.WarmupLaps, n-1)].LapTimeS
	}

	return model, warnings, nil
}

// fitWindow returns the lap numbers and lap times outside the warm-up window.
// Warm-up is measured in lap numbers from the first lap present, so gaps left
// by dropped laps shrink the window.
func fitWindow(metrics []models.LapMetric, warmup int) ([]float64, []float64) {
	first := metrics[0].Lap
	for _, m := range metrics {
		if m.Lap < first {
			first = m.Lap
		}
	}

	xs := make([]float64, 0, len(metrics))
	ys := make([]float64, 0, len(metrics))
	for _, m := range metrics {
		if m.Lap < first+warmup {
			continue
		}
		xs = append(xs, float64(m.Lap))
		ys = append(ys, m.LapTimeS)
	}
	return xs, ys
}

func stressStats(metrics []models.LapMetric) (mean, peak float64) {
	var sum float64
	for i, m := range metrics {
		sum += m.TireStress
		if i == 0 || m.TireStress > peak {
			peak = m.TireStress
		}
	}
	return sum / float64(len(metrics)), peak
}
