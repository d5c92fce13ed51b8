package generator_test

import (
	"testing"

	"race-strategy-engine/internal/generator"
	"race-strategy-engine/internal/laps"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGenerate(t *testing.T) {
	Convey("Given the default config", t, func() {
		cfg := generator.DefaultConfig()
		samples := generator.Generate(cfg)

		Convey("Then it produces every sample of every lap", func() {
			So(samples, ShouldHaveLength, cfg.Laps*cfg.SamplesPerLap)
			So(samples[0].Lap, ShouldEqual, 0)
			So(samples[len(samples)-1].Lap, ShouldEqual, cfg.Laps-1)
		})

		Convey("And time never goes backwards", func() {
			for i := 1; i < len(samples); i++ {
				So(samples[i].TimeS, ShouldBeGreaterThan, samples[i-1].TimeS)
			}
		})

		Convey("And the same seed yields the same data", func() {
			So(generator.Generate(cfg), ShouldResemble, samples)
		})

		Convey("And the extracted laps show stress", func() {
			metrics := laps.Extract(samples, laps.DefaultOptions())
			So(metrics, ShouldHaveLength, cfg.Laps)
			for _, m := range metrics {
				So(m.TireStress, ShouldBeGreaterThan, 0)
			}
		})
	})

	Convey("Given a degenerate config", t, func() {
		cfg := generator.DefaultConfig()
		cfg.SamplesPerLap = 1

		Convey("Then nothing is generated", func() {
			So(generator.Generate(cfg), ShouldBeNil)
		})
	})
}
