package models

import (
	"fmt"
	"strings"
	"time"
)

// CompoundProfile describes how a tire compound shifts pace and wear
type CompoundProfile struct {
	DegradationMultiplier float64 `json:"degradation_multiplier" yaml:"degradation_multiplier" koanf:"degradation_multiplier"`
	PaceOffsetS           float64 `json:"pace_offset_s" yaml:"pace_offset_s" koanf:"pace_offset_s"`
}

// Stint is a contiguous block of laps on one compound
type Stint struct {
	LapCount int    `json:"lap_count" yaml:"lap_count" koanf:"lap_count"`
	Compound string `json:"compound" yaml:"compound" koanf:"compound"`
}

// String renders the stint as "<laps>L on <compound>"
func (s Stint) String() string {
	return fmt.Sprintf("%dL on %s", s.LapCount, s.Compound)
}

// Strategy is a named, ordered sequence of stints
type Strategy struct {
	Name   string  `json:"name" yaml:"name" koanf:"name"`
	Stints []Stint `json:"stints" yaml:"stints" koanf:"stints"`
}

// Laps returns the total laps covered by all stints
func (s Strategy) Laps() int {
	total := 0
	for _, st := range s.Stints {
		total += st.LapCount
	}
	return total
}

// Description joins the stints with " | "
func (s Strategy) Description() string {
	parts := make([]string, len(s.Stints))
	for i, st := range s.Stints {
		parts[i] = st.String()
	}
	return strings.Join(parts, " | ")
}

// StrategyResult is the scored outcome of one strategy
type StrategyResult struct {
	Strategy         string  `json:"strategy" yaml:"strategy"`
	Stints           string  `json:"stints" yaml:"stints"`
	TotalTimeS       float64 `json:"total_time_s" yaml:"total_time_s"`
	Stops            int     `json:"stops" yaml:"stops"`
	LapsCovered      int     `json:"laps_covered" yaml:"laps_covered"`
	CoverageMismatch bool    `json:"coverage_mismatch" yaml:"coverage_mismatch"`
}

// Report bundles everything produced by one analysis
type Report struct {
	Metrics  []LapMetric      `json:"lap_metrics" yaml:"lap_metrics"`
	Model    DegradationModel `json:"model" yaml:"model"`
	Results  []StrategyResult `json:"strategies" yaml:"strategies"`
	Warnings []Warning        `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	TargetRaceLaps int     `json:"target_race_laps" yaml:"target_race_laps"`
	PitLossS       float64 `json:"pit_loss_s" yaml:"pit_loss_s"`
}

// Best returns the top-ranked result, if any
func (r *Report) Best() (StrategyResult, bool) {
	if r == nil || len(r.Results) == 0 {
		return StrategyResult{}, false
	}
	return r.Results[0], true
}

// RunSummary is a persisted analysis run
type RunSummary struct {
	ID                      string    `json:"id"`
	Name                    string    `json:"name"`
	CreatedAt               time.Time `json:"created_at"`
	Samples                 int       `json:"samples"`
	Laps                    int       `json:"laps"`
	TargetRaceLaps          int       `json:"target_race_laps"`
	PitLossS                float64   `json:"pit_loss_s"`
	BaseLapTimeS            float64   `json:"base_lap_time_s"`
	EffectiveDegRateSPerLap float64   `json:"effective_deg_rate_s_per_lap"`
	BestStrategy            string    `json:"best_strategy"`
	BestTotalTimeS          float64   `json:"best_total_time_s"`
	Warnings                int       `json:"warnings"`
}

// Run is a persisted run with its full report
type Run struct {
	RunSummary
	Report *Report `json:"report"`
}
