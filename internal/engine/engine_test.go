package engine_test

import (
	"errors"
	"testing"

	"race-strategy-engine/internal/engine"
	"race-strategy-engine/internal/generator"
	"race-strategy-engine/internal/models"
	"race-strategy-engine/internal/strategy"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNew(t *testing.T) {
	Convey("Given the default options", t, func() {
		eng, err := engine.New(engine.DefaultOptions())

		Convey("Then an engine is created with the built-in candidates", func() {
			So(err, ShouldBeNil)
			So(eng.Candidates(), ShouldHaveLength, 3)
		})
	})

	Convey("Given invalid options", t, func() {
		Convey("When the target race length is zero", func() {
			opts := engine.DefaultOptions()
			opts.TargetRaceLaps = 0
			_, err := engine.New(opts)
			So(errors.Is(err, models.ErrConfiguration), ShouldBeTrue)
		})

		Convey("When pit loss is negative", func() {
			opts := engine.DefaultOptions()
			opts.PitLossS = -1
			_, err := engine.New(opts)
			So(errors.Is(err, models.ErrConfiguration), ShouldBeTrue)
		})

		Convey("When a compound has a non-positive multiplier", func() {
			opts := engine.DefaultOptions()
			opts.Compounds = map[string]models.CompoundProfile{"Soft": {DegradationMultiplier: 0}}
			_, err := engine.New(opts)
			So(errors.Is(err, models.ErrConfiguration), ShouldBeTrue)
		})
	})

	Convey("Given configured strategies", t, func() {
		opts := engine.DefaultOptions()
		opts.Strategies = []models.Strategy{{Name: "custom", Stints: []models.Stint{{LapCount: 20, Compound: strategy.CompoundHard}}}}
		eng, err := engine.New(opts)
		So(err, ShouldBeNil)

		Convey("Then they replace the built-in candidates", func() {
			So(eng.Candidates(), ShouldHaveLength, 1)
			So(eng.Candidates()[0].Name, ShouldEqual, "custom")
		})
	})
}

func TestAnalyze(t *testing.T) {
	Convey("Given synthetic telemetry with a known degradation trend", t, func() {
		cfg := generator.DefaultConfig()
		cfg.Laps = 8
		cfg.SamplesPerLap = 100
		cfg.NoiseS = 0
		samples := generator.Generate(cfg)

		eng, err := engine.New(engine.DefaultOptions())
		So(err, ShouldBeNil)

		Convey("When analysing", func() {
			report, err := eng.Analyze(samples)
			So(err, ShouldBeNil)

			Convey("Then every lap is extracted", func() {
				So(report.Metrics, ShouldHaveLength, 8)
			})

			Convey("And the raw slope recovers the generated trend", func() {
				So(report.Model.RawRateSPerLap, ShouldAlmostEqual, cfg.DegPerLapS, 1e-6)
				So(report.Model.EffectiveDegRateSPerLap, ShouldBeGreaterThan, 0)
			})

			Convey("And the base lap skips the slow out-lap", func() {
				So(report.Model.BaseLapTimeS, ShouldAlmostEqual, cfg.BaseLapTimeS+cfg.DegPerLapS, 1e-6)
			})

			Convey("And strategies are ranked fastest first", func() {
				So(report.Results, ShouldHaveLength, 3)
				best, ok := report.Best()
				So(ok, ShouldBeTrue)
				for _, r := range report.Results {
					So(r.TotalTimeS, ShouldBeGreaterThanOrEqualTo, best.TotalTimeS)
				}
			})

			Convey("And the report carries the race parameters", func() {
				So(report.TargetRaceLaps, ShouldEqual, strategy.DefaultTargetRaceLaps)
				So(report.PitLossS, ShouldEqual, strategy.DefaultPitLossS)
			})
		})

		Convey("When analysing twice", func() {
			first, err := eng.Analyze(samples)
			So(err, ShouldBeNil)
			second, err := eng.Analyze(samples)
			So(err, ShouldBeNil)

			Convey("Then the reports are identical", func() {
				So(second, ShouldResemble, first)
			})
		})
	})

	Convey("Given telemetry with no complete lap", t, func() {
		samples := []models.TelemetrySample{{Lap: 1, TimeS: 0}, {Lap: 1, TimeS: 1}}
		eng, _ := engine.New(engine.DefaultOptions())

		Convey("Then Analyze returns ErrNoLaps", func() {
			_, err := eng.Analyze(samples)
			So(errors.Is(err, engine.ErrNoLaps), ShouldBeTrue)
		})
	})

	Convey("Given a candidate with an unknown compound", t, func() {
		samples := generator.Generate(generator.DefaultConfig())
		eng, _ := engine.New(engine.DefaultOptions())
		bad := []models.Strategy{{Name: "wet", Stints: []models.Stint{{LapCount: 20, Compound: "Wet"}}}}

		Convey("Then the run fails with a configuration error", func() {
			_, err := eng.AnalyzeStrategies(samples, bad)
			So(errors.Is(err, models.ErrConfiguration), ShouldBeTrue)
		})
	})

	Convey("Given only two laps of telemetry", t, func() {
		cfg := generator.DefaultConfig()
		cfg.Laps = 2
		eng, _ := engine.New(engine.DefaultOptions())

		Convey("Then the run succeeds with a few_laps warning", func() {
			report, err := eng.Analyze(generator.Generate(cfg))
			So(err, ShouldBeNil)
			So(report.Model.EffectiveDegRateSPerLap, ShouldEqual, 0)
			So(report.Warnings, ShouldNotBeEmpty)
			So(report.Warnings[0].Kind, ShouldEqual, models.WarnFewLaps)
		})
	})
}
