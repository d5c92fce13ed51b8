// Package laps reduces processed telemetry samples to per-lap metrics.
package laps

import (
	"math"
	"sort"

	"race-strategy-engine/internal/models"
)

// Default extraction parameters.
const (
	DefaultMinSamplesPerLap  = 5
	DefaultHighSlipThreshold = 0.15
)

// StressWeights weights the three densities that make up tire stress.
type StressWeights struct {
	Brake    float64 `koanf:"brake" json:"brake"`
	Slip     float64 `koanf:"slip" json:"slip"`
	Traction float64 `koanf:"traction" json:"traction"`
}

// DefaultStressWeights favours braking and slip over binary traction-loss flags.
func DefaultStressWeights() StressWeights {
	return StressWeights{Brake: 0.4, Slip: 0.4, Traction: 0.2}
}

// Options controls lap extraction.
type Options struct {
	MinSamplesPerLap  int
	HighSlipThreshold float64
	Weights           StressWeights
}

// DefaultOptions returns the standard extraction options.
func DefaultOptions() Options {
	return Options{
		MinSamplesPerLap:  DefaultMinSamplesPerLap,
		HighSlipThreshold: DefaultHighSlipThreshold,
		Weights:           DefaultStressWeights(),
	}
}

// Extract groups samples by lap and summarises each qualifying lap.
// Laps with fewer than MinSamplesPerLap samples, or a non-positive lap time,
// are dropped. The result is sorted by lap number and may be empty.
func Extract(samples []models.TelemetrySample, opts Options) []models.LapMetric {
	if opts.MinSamplesPerLap <= 0 {
		opts.MinSamplesPerLap = DefaultMinSamplesPerLap
	}

	// Partition preserves input order within each lap.
	byLap := make(map[int][]models.TelemetrySample)
	for _, s := range samples {
		byLap[s.Lap] = append(byLap[s.Lap], s)
	}

	lapIDs := make([]int, 0, len(byLap))
	for lap := range byLap {
		lapIDs = append(lapIDs, lap)
	}
	sort.Ints(lapIDs)

	out := make([]models.LapMetric, 0, len(lapIDs))
	for _, lap := range lapIDs {
		group := byLap[lap]
		if len(group) < opts.MinSamplesPerLap {
			continue
		}
		m := summarise(lap, group, opts)
		if m.LapTimeS <= 0 {
			continue
		}
		out = append(out, m)
	}
	return out
}

func summarise(lap int, group []models.TelemetrySample, opts Options) models.LapMetric {
	n := float64(len(group))

	var speed, temp, brakes, highSlip, traction float64
	for _, s := range group {
		speed += s.Speed
		temp += s.TireTempAvg
		if s.BrakeEvent != 0 {
			brakes++
		}
		// Both over- and under-rotation count as stress.
		if math.Abs(s.TireSlipAvg) > opts.HighSlipThreshold {
			highSlip++
		}
		if s.TractionLoss != 0 {
			traction++
		}
	}

	m := models.LapMetric{
		Lap:                 lap,
		LapTimeS:            group[len(group)-1].TimeS - group[0].TimeS,
		AvgSpeed:            speed / n,
		AvgTireTemp:         temp / n,
		BrakeDensity:        brakes / n,
		HighSlipDensity:     highSlip / n,
		TractionLossDensity: traction / n,
		Samples:             len(group),
	}
	m.TireStress = TireStress(m, opts.Weights)
	return m
}

// TireStress combines a lap's densities with the given weights.
func TireStress(m models.LapMetric, w StressWeights) float64 {
	return w.Brake*m.BrakeDensity + w.Slip*m.HighSlipDensity + w.Traction*m.TractionLossDensity
}
