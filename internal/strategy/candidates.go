package strategy

import (
	"fmt"

	"race-strategy-engine/internal/models"
)

// Compound names shipped in the default profile set.
const (
	CompoundSoft   = "Soft"
	CompoundMedium = "Medium"
	CompoundHard   = "Hard"
)

// twoStopOpeningStint is the length of each of the first two stints of the
// built-in two-stop plan.
const twoStopOpeningStint = 7

// DefaultCompounds returns the fast/medium/durable profile set.
func DefaultCompounds() map[string]models.CompoundProfile {
	return map[string]models.CompoundProfile{
		CompoundSoft:   {DegradationMultiplier: 1.3, PaceOffsetS: -1.0},
		CompoundMedium: {DegradationMultiplier: 1.0, PaceOffsetS: 0.0},
		CompoundHard:   {DegradationMultiplier: 0.7, PaceOffsetS: 1.0},
	}
}

// DefaultCandidates builds the zero-, one- and two-stop plans for a race of
// targetLaps. Plans referencing compounds missing from compounds are skipped.
func DefaultCandidates(targetLaps int, compounds map[string]models.CompoundProfile) []models.Strategy {
	if targetLaps <= 0 {
		return nil
	}

	var out []models.Strategy
	add := func(s models.Strategy) {
		for _, st := range s.Stints {
			if st.LapCount <= 0 {
				return
			}
			if _, ok := compounds[st.Compound]; !ok {
				return
			}
		}
		out = append(out, s)
	}

	add(models.Strategy{
		Name:   "0-stop: Full Medium",
		Stints: []models.Stint{{LapCount: targetLaps, Compound: CompoundMedium}},
	})

	half := targetLaps / 2
	add(models.Strategy{
		Name: "1-stop: Soft → Hard",
		Stints: []models.Stint{
			{LapCount: half, Compound: CompoundSoft},
			{LapCount: targetLaps - half, Compound: CompoundHard},
		},
	})

	first, second := twoStopOpeningStint, twoStopOpeningStint
	if targetLaps <= 2*twoStopOpeningStint {
		first = targetLaps / 3
		second = targetLaps / 3
	}
	add(models.Strategy{
		Name: "2-stop: Soft → Medium → Hard",
		Stints: []models.Stint{
			{LapCount: first, Compound: CompoundSoft},
			{LapCount: second, Compound: CompoundMedium},
			{LapCount: targetLaps - first - second, Compound: CompoundHard},
		},
	})

	return out
}

// OneStopSweep builds one plan per pit lap in [1, targetLaps-1], running
// opening for the first stint and closing for the second.
func OneStopSweep(targetLaps int, opening, closing string) []models.Strategy {
	if targetLaps < 2 {
		return nil
	}
	out := make([]models.Strategy, 0, targetLaps-1)
	for pitLap := 1; pitLap < targetLaps; pitLap++ {
		out = append(out, models.Strategy{
			Name: fmt.Sprintf("1-stop: pit lap %d", pitLap),
			Stints: []models.Stint{
				{LapCount: pitLap, Compound: opening},
				{LapCount: targetLaps - pitLap, Compound: closing},
			},
		})
	}
	return out
}
