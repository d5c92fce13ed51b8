// Package generator produces synthetic processed telemetry for demos and tests.
package generator

import (
	"math"
	"math/rand"

	"race-strategy-engine/internal/models"
)

// Config describes the synthetic run.
type Config struct {
	Laps           int
	SamplesPerLap  int
	BaseLapTimeS   float64
	DegPerLapS     float64
	WarmupPenaltyS float64 // extra time on the first lap
	NoiseS         float64 // uniform lap-time noise amplitude
	BrakeRatio     float64 // fraction of samples braking
	SlipRatio      float64 // fraction of samples above the high-slip band
	TractionRatio  float64
	Seed           int64
}

// DefaultConfig is a short 5-lap run resembling a sim export.
func DefaultConfig() Config {
	return Config{
		Laps:           5,
		SamplesPerLap:  600,
		BaseLapTimeS:   90.0,
		DegPerLapS:     0.4,
		WarmupPenaltyS: 2.0,
		NoiseS:         0.2,
		BrakeRatio:     0.18,
		SlipRatio:      0.08,
		TractionRatio:  0.05,
		Seed:           42,
	}
}

// Generate returns samples for cfg.Laps laps numbered from 0. Lap boundaries
// share no sample, so each lap's time is its first-to-last sample span.
func Generate(cfg Config) []models.TelemetrySample {
	if cfg.Laps <= 0 || cfg.SamplesPerLap < 2 {
		return nil
	}
	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // deterministic synthetic data

	out := make([]models.TelemetrySample, 0, cfg.Laps*cfg.SamplesPerLap)
	clock := 0.0
	for lap := 0; lap < cfg.Laps; lap++ {
		lapTime := cfg.BaseLapTimeS + cfg.DegPerLapS*float64(lap) + (rng.Float64()*2-1)*cfg.NoiseS
		if lap == 0 {
			lapTime += cfg.WarmupPenaltyS
		}
		step := lapTime / float64(cfg.SamplesPerLap-1)

		for i := 0; i < cfg.SamplesPerLap; i++ {
			phase := float64(i) / float64(cfg.SamplesPerLap)
			s := models.TelemetrySample{
				TimeS:       clock + step*float64(i),
				Lap:         lap,
				Speed:       180 + 90*math.Sin(phase*2*math.Pi*6) + rng.Float64()*5,
				TireSlipAvg: (rng.Float64()*2 - 1) * 0.1,
				TireTempAvg: 85 + 2*float64(lap) + rng.Float64()*6,
			}
			if rng.Float64() < cfg.BrakeRatio {
				s.BrakeEvent = 1
			}
			if rng.Float64() < cfg.SlipRatio {
				sign := 1.0
				if rng.Intn(2) == 0 {
					sign = -1
				}
				s.TireSlipAvg = sign * (0.16 + rng.Float64()*0.2)
			}
			if rng.Float64() < cfg.TractionRatio {
				s.TractionLoss = 1
			}
			out = append(out, s)
		}
		clock += lapTime + step
	}
	return out
}
