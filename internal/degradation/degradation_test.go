package degradation_test

import (
	"errors"
	"testing"

	"race-strategy-engine/internal/degradation"
	"race-strategy-engine/internal/models"

	. "github.com/smartystreets/goconvey/convey"
)

func lapsWithTimes(times []float64, stress float64) []models.LapMetric {
	out := make([]models.LapMetric, len(times))
	for i, t := range times {
		out[i] = models.LapMetric{Lap: i, LapTimeS: t, TireStress: stress, Samples: 10}
	}
	return out
}

func kinds(ws []models.Warning) []models.WarningKind {
	out := make([]models.WarningKind, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Kind)
	}
	return out
}

func TestFit(t *testing.T) {
	Convey("Given five laps with a slow out-lap", t, func() {
		metrics := lapsWithTimes([]float64{92.0, 89.5, 90.1, 90.4, 90.9}, 0.3)

		Convey("When fitting with one warm-up lap", func() {
			model, warnings, err := degradation.Fit(metrics, degradation.DefaultOptions())
			So(err, ShouldBeNil)

			Convey("Then the out-lap is excluded from the regression", func() {
				So(model.FitLaps, ShouldEqual, 4)
				So(model.RawRateSPerLap, ShouldAlmostEqual, 0.45, 1e-9)
				So(model.BaseDegSPerLap, ShouldAlmostEqual, 0.45, 1e-9)
				So(model.NegativeSlopeFloorApplied, ShouldBeFalse)
			})

			Convey("And the base lap time is the first post-warm-up lap", func() {
				So(model.BaseLapTimeS, ShouldEqual, 89.5)
			})

			Convey("And uniform stress normalises to one", func() {
				So(model.StressNorm, ShouldAlmostEqual, 1.0)
				So(model.EffectiveDegRateSPerLap, ShouldAlmostEqual, 0.45*1.5, 1e-9)
			})

			Convey("And no warnings are produced", func() {
				So(warnings, ShouldBeEmpty)
			})
		})

		Convey("When fitting with the simple options", func() {
			model, _, err := degradation.Fit(metrics, degradation.SimpleOptions())
			So(err, ShouldBeNil)

			Convey("Then every lap is fitted and stress is neutral", func() {
				So(model.FitLaps, ShouldEqual, 5)
				So(model.WarmupLaps, ShouldEqual, 0)
				So(model.StressNorm, ShouldEqual, 0.5)
				So(model.BaseLapTimeS, ShouldEqual, 92.0)
				So(model.EffectiveDegRateSPerLap, ShouldAlmostEqual, model.BaseDegSPerLap*1.0, 1e-9)
			})
		})
	})

	Convey("Given lap numbers with a gap left by a dropped lap", t, func() {
		metrics := []models.LapMetric{
			{Lap: 0, LapTimeS: 92.0, TireStress: 0.2, Samples: 10},
			{Lap: 2, LapTimeS: 90.0, TireStress: 0.2, Samples: 10},
			{Lap: 3, LapTimeS: 90.5, TireStress: 0.2, Samples: 10},
			{Lap: 4, LapTimeS: 91.0, TireStress: 0.2, Samples: 10},
		}
		opts := degradation.DefaultOptions()
		opts.WarmupLaps = 2

		Convey("When fitting with two warm-up laps", func() {
			model, warnings, err := degradation.Fit(metrics, opts)
			So(err, ShouldBeNil)
			So(warnings, ShouldBeEmpty)

			Convey("Then the warm-up window counts lap numbers from the lowest lap", func() {
				// Laps 0 and 1 are warm-up; only lap 0 is present.
				So(model.FitLaps, ShouldEqual, 3)
				So(model.RawRateSPerLap, ShouldAlmostEqual, 0.5, 1e-9)
				So(model.EffectiveDegRateSPerLap, ShouldAlmostEqual, 0.75, 1e-9)
			})

			Convey("And the base lap is taken by position in the sorted sequence", func() {
				So(model.BaseLapTimeS, ShouldEqual, 90.5)
			})
		})
	})

	Convey("Given post-warm-up laps that share a lap number", t, func() {
		metrics := []models.LapMetric{
			{Lap: 0, LapTimeS: 92.0, TireStress: 0.2, Samples: 10},
			{Lap: 1, LapTimeS: 90.0, TireStress: 0.2, Samples: 10},
			{Lap: 1, LapTimeS: 90.4, TireStress: 0.2, Samples: 10},
			{Lap: 1, LapTimeS: 90.8, TireStress: 0.2, Samples: 10},
		}

		Convey("When fitting", func() {
			model, warnings, err := degradation.Fit(metrics, degradation.DefaultOptions())

			Convey("Then the fit falls back to zero degradation with a warning", func() {
				So(err, ShouldBeNil)
				So(model.RawRateSPerLap, ShouldEqual, 0)
				So(model.FitLaps, ShouldEqual, 0)
				So(model.BaseLapTimeS, ShouldEqual, 92.0)
				So(kinds(warnings), ShouldContain, models.WarnFewFitLaps)
			})
		})
	})

	Convey("Given varying stress across laps", t, func() {
		metrics := lapsWithTimes([]float64{90, 90.5, 91, 91.5}, 0)
		metrics[0].TireStress = 0.2
		metrics[1].TireStress = 0.4
		metrics[2].TireStress = 0.1
		metrics[3].TireStress = 0.1

		Convey("Then stress_norm is mean over max, warm-up lap included", func() {
			model, _, err := degradation.Fit(metrics, degradation.DefaultOptions())
			So(err, ShouldBeNil)
			So(model.MeanStress, ShouldAlmostEqual, 0.2)
			So(model.MaxStress, ShouldAlmostEqual, 0.4)
			So(model.StressNorm, ShouldAlmostEqual, 0.5)
			So(model.EffectiveDegRateSPerLap, ShouldAlmostEqual, 0.5*1.0, 1e-9)
		})
	})

	Convey("Given fewer than three laps", t, func() {
		metrics := lapsWithTimes([]float64{91.0, 90.0}, 0.2)

		Convey("Then the fit falls back to zero degradation with a warning", func() {
			model, warnings, err := degradation.Fit(metrics, degradation.DefaultOptions())
			So(err, ShouldBeNil)
			So(model.RawRateSPerLap, ShouldEqual, 0)
			So(model.EffectiveDegRateSPerLap, ShouldEqual, 0)
			So(model.BaseLapTimeS, ShouldEqual, 91.0)
			So(model.FitLaps, ShouldEqual, 0)
			So(kinds(warnings), ShouldContain, models.WarnFewLaps)
		})
	})

	Convey("Given a warm-up window that swallows all but one lap", t, func() {
		metrics := lapsWithTimes([]float64{93, 92, 91, 90}, 0.2)
		opts := degradation.DefaultOptions()
		opts.WarmupLaps = 3

		Convey("Then the fit falls back with a few_fit_laps warning", func() {
			model, warnings, err := degradation.Fit(metrics, opts)
			So(err, ShouldBeNil)
			So(model.RawRateSPerLap, ShouldEqual, 0)
			So(model.BaseLapTimeS, ShouldEqual, 93.0)
			So(kinds(warnings), ShouldContain, models.WarnFewFitLaps)
			So(kinds(warnings), ShouldNotContain, models.WarnNegativeSlope)
		})
	})

	Convey("Given laps that get faster", t, func() {
		metrics := lapsWithTimes([]float64{95, 94, 93, 92, 91}, 0.2)

		Convey("Then the negative slope is replaced by the floor", func() {
			model, warnings, err := degradation.Fit(metrics, degradation.DefaultOptions())
			So(err, ShouldBeNil)
			So(model.RawRateSPerLap, ShouldAlmostEqual, -1.0, 1e-9)
			So(model.BaseDegSPerLap, ShouldEqual, degradation.DefaultNegativeSlopeFloor)
			So(model.NegativeSlopeFloorApplied, ShouldBeTrue)
			So(model.EffectiveDegRateSPerLap, ShouldBeGreaterThan, 0)
			So(kinds(warnings), ShouldContain, models.WarnNegativeSlope)
		})
	})

	Convey("Given laps with zero stress", t, func() {
		metrics := lapsWithTimes([]float64{90, 90.2, 90.4, 90.6}, 0)

		Convey("Then neutral stress is used and flagged", func() {
			model, warnings, err := degradation.Fit(metrics, degradation.DefaultOptions())
			So(err, ShouldBeNil)
			So(model.StressNorm, ShouldEqual, degradation.DefaultNeutralStress)
			So(model.EffectiveDegRateSPerLap, ShouldAlmostEqual, 0.2*1.0, 1e-9)
			So(kinds(warnings), ShouldContain, models.WarnZeroStress)
		})
	})

	Convey("Given a negative warm-up count", t, func() {
		opts := degradation.DefaultOptions()
		opts.WarmupLaps = -1

		Convey("Then Fit returns a configuration error", func() {
			_, _, err := degradation.Fit(lapsWithTimes([]float64{90, 91, 92}, 0.1), opts)
			So(errors.Is(err, models.ErrConfiguration), ShouldBeTrue)
		})
	})

	Convey("Given no metrics", t, func() {
		Convey("Then Fit returns ErrNoMetrics", func() {
			_, _, err := degradation.Fit(nil, degradation.DefaultOptions())
			So(errors.Is(err, degradation.ErrNoMetrics), ShouldBeTrue)
		})
	})
}

func TestSlope(t *testing.T) {
	Convey("Given points on a line", t, func() {
		slope, intercept, err := degradation.Slope([]float64{0, 1, 2, 3}, []float64{1, 3, 5, 7})

		Convey("Then the slope and intercept are recovered", func() {
			So(err, ShouldBeNil)
			So(slope, ShouldAlmostEqual, 2.0)
			So(intercept, ShouldAlmostEqual, 1.0)
		})
	})

	Convey("Given xs with no variance", t, func() {
		_, _, err := degradation.Slope([]float64{2, 2}, []float64{1, 5})

		Convey("Then the fit is degenerate", func() {
			So(err, ShouldEqual, degradation.ErrDegenerateFit)
		})
	})

	Convey("Given mismatched lengths", t, func() {
		_, _, err := degradation.Slope([]float64{1, 2}, []float64{1})

		Convey("Then the fit is degenerate", func() {
			So(err, ShouldEqual, degradation.ErrDegenerateFit)
		})
	})
}
