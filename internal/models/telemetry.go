package models

// TelemetrySample represents a single processed telemetry reading from a run
type TelemetrySample struct {
	TimeS        float64 `json:"time_s"`
	Lap          int     `json:"lap"`
	Speed        float64 `json:"speed"`
	BrakeEvent   int     `json:"brake_event"`   // 0/1
	TireSlipAvg  float64 `json:"tire_slip_avg"` // signed ratio
	TractionLoss int     `json:"traction_loss"` // 0/1
	TireTempAvg  float64 `json:"tire_temp_avg"` // Celsius
}

// LapMetric holds the per-lap summary derived from a lap's samples
type LapMetric struct {
	Lap                 int     `json:"lap" yaml:"lap"`
	LapTimeS            float64 `json:"lap_time_s" yaml:"lap_time_s"`
	AvgSpeed            float64 `json:"avg_speed" yaml:"avg_speed"`
	AvgTireTemp         float64 `json:"avg_tire_temp" yaml:"avg_tire_temp"`
	BrakeDensity        float64 `json:"brake_density" yaml:"brake_density"`
	HighSlipDensity     float64 `json:"high_slip_density" yaml:"high_slip_density"`
	TractionLossDensity float64 `json:"traction_loss_density" yaml:"traction_loss_density"`
	TireStress          float64 `json:"tire_stress" yaml:"tire_stress"`
	Samples             int     `json:"samples" yaml:"samples"`
}

// DegradationModel is the fitted lap-time trend consumed by stint simulation
type DegradationModel struct {
	BaseLapTimeS              float64 `json:"base_lap_time_s" yaml:"base_lap_time_s"`
	EffectiveDegRateSPerLap   float64 `json:"effective_deg_rate_s_per_lap" yaml:"effective_deg_rate_s_per_lap"`
	RawRateSPerLap            float64 `json:"raw_rate_s_per_lap" yaml:"raw_rate_s_per_lap"`
	BaseDegSPerLap            float64 `json:"base_deg_s_per_lap" yaml:"base_deg_s_per_lap"`
	MeanStress                float64 `json:"mean_stress" yaml:"mean_stress"`
	MaxStress                 float64 `json:"max_stress" yaml:"max_stress"`
	StressNorm                float64 `json:"stress_norm" yaml:"stress_norm"`
	WarmupLaps                int     `json:"warmup_laps" yaml:"warmup_laps"`
	FitLaps                   int     `json:"fit_laps" yaml:"fit_laps"`
	NegativeSlopeFloorApplied bool    `json:"negative_slope_floor_applied" yaml:"negative_slope_floor_applied"`
}
