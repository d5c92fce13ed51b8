// Package strategy projects stint times from a degradation model and ranks
// multi-stint pit strategies by total race time.
package strategy

import "race-strategy-engine/internal/models"

// LapTime projects the lap time at index i (0-based) of a stint on fresh tires.
func LapTime(model models.DegradationModel, compound models.CompoundProfile, i int) float64 {
	perLapDeg := model.EffectiveDegRateSPerLap * compound.DegradationMultiplier
	return model.BaseLapTimeS + compound.PaceOffsetS + perLapDeg*float64(i)
}

// StintLapTimes projects every lap of a stint.
func StintLapTimes(model models.DegradationModel, compound models.CompoundProfile, laps int) []float64 {
	if laps <= 0 {
		return nil
	}
	out := make([]float64, laps)
	for i := range out {
		out[i] = LapTime(model, compound, i)
	}
	return out
}

// SimulateStint returns the total projected time of a stint. Wear starts from
// zero: nothing carries across a pit stop. It uses the arithmetic-series closed
// form of summing StintLapTimes.
func SimulateStint(model models.DegradationModel, compound models.CompoundProfile, laps int) float64 {
	if laps <= 0 {
		return 0
	}
	n := float64(laps)
	perLapDeg := model.EffectiveDegRateSPerLap * compound.DegradationMultiplier
	fresh := model.BaseLapTimeS + compound.PaceOffsetS
	return n*fresh + perLapDeg*n*(n-1)/2
}
