package laps_test

import (
	"testing"

	"race-strategy-engine/internal/laps"
	"race-strategy-engine/internal/models"

	. "github.com/smartystreets/goconvey/convey"
)

// lapSamples builds n samples for lap, one second apart starting at start.
func lapSamples(lap, n int, start float64) []models.TelemetrySample {
	out := make([]models.TelemetrySample, n)
	for i := range out {
		out[i] = models.TelemetrySample{
			TimeS:       start + float64(i),
			Lap:         lap,
			Speed:       100,
			TireTempAvg: 80,
		}
	}
	return out
}

func TestExtract(t *testing.T) {
	Convey("Given one complete lap with known event counts", t, func() {
		samples := lapSamples(1, 5, 10)
		samples[0].BrakeEvent = 1
		samples[3].BrakeEvent = 1
		samples[0].TireSlipAvg = -0.2
		samples[1].TireSlipAvg = 0.1
		samples[2].TireSlipAvg = 0.16
		samples[3].TireSlipAvg = 0.15
		samples[4].TractionLoss = 1
		samples[4].Speed = 150

		Convey("When extracting with the default options", func() {
			metrics := laps.Extract(samples, laps.DefaultOptions())

			Convey("Then it should summarise the lap", func() {
				So(metrics, ShouldHaveLength, 1)
				m := metrics[0]
				So(m.Lap, ShouldEqual, 1)
				So(m.Samples, ShouldEqual, 5)
				So(m.LapTimeS, ShouldAlmostEqual, 4.0)
				So(m.AvgSpeed, ShouldAlmostEqual, 110.0)
				So(m.AvgTireTemp, ShouldAlmostEqual, 80.0)
				So(m.BrakeDensity, ShouldAlmostEqual, 0.4)
				So(m.TractionLossDensity, ShouldAlmostEqual, 0.2)
			})

			Convey("And high slip should use the absolute value, strictly above the threshold", func() {
				So(metrics[0].HighSlipDensity, ShouldAlmostEqual, 0.4)
			})

			Convey("And tire stress should be the weighted density sum", func() {
				So(metrics[0].TireStress, ShouldAlmostEqual, 0.4*0.4+0.4*0.4+0.2*0.2)
			})
		})
	})

	Convey("Given laps out of order with an incomplete lap", t, func() {
		var samples []models.TelemetrySample
		samples = append(samples, lapSamples(3, 6, 200)...)
		samples = append(samples, lapSamples(1, 6, 0)...)
		samples = append(samples, lapSamples(2, 4, 100)...)

		Convey("When extracting", func() {
			metrics := laps.Extract(samples, laps.DefaultOptions())

			Convey("Then short laps are dropped and the rest sorted by lap", func() {
				So(metrics, ShouldHaveLength, 2)
				So(metrics[0].Lap, ShouldEqual, 1)
				So(metrics[1].Lap, ShouldEqual, 3)
			})
		})

		Convey("When the minimum sample count is lowered", func() {
			opts := laps.DefaultOptions()
			opts.MinSamplesPerLap = 4
			metrics := laps.Extract(samples, opts)

			Convey("Then the short lap qualifies", func() {
				So(metrics, ShouldHaveLength, 3)
				So(metrics[1].Lap, ShouldEqual, 2)
				So(metrics[1].LapTimeS, ShouldAlmostEqual, 3.0)
			})
		})
	})

	Convey("Given a lap whose samples all share one timestamp", t, func() {
		samples := lapSamples(0, 5, 0)
		for i := range samples {
			samples[i].TimeS = 42
		}

		Convey("Then the zero-length lap is dropped", func() {
			So(laps.Extract(samples, laps.DefaultOptions()), ShouldBeEmpty)
		})
	})

	Convey("Given no samples", t, func() {
		Convey("Then extraction returns an empty result, not an error", func() {
			So(laps.Extract(nil, laps.DefaultOptions()), ShouldBeEmpty)
		})
	})

	Convey("Given laps with no stress events", t, func() {
		samples := append(lapSamples(1, 5, 0), lapSamples(2, 5, 10)...)

		Convey("Then every lap has zero stress", func() {
			for _, m := range laps.Extract(samples, laps.DefaultOptions()) {
				So(m.TireStress, ShouldEqual, 0)
			}
		})
	})

	Convey("Given the same samples extracted twice", t, func() {
		samples := append(lapSamples(1, 7, 0), lapSamples(2, 7, 10)...)
		samples[2].BrakeEvent = 1
		samples[9].TireSlipAvg = 0.3

		Convey("Then the results are identical", func() {
			first := laps.Extract(samples, laps.DefaultOptions())
			second := laps.Extract(samples, laps.DefaultOptions())
			So(second, ShouldResemble, first)
		})
	})
}

func TestTireStress(t *testing.T) {
	Convey("Given custom stress weights", t, func() {
		w := laps.StressWeights{Brake: 1, Slip: 0, Traction: 0}
		m := models.LapMetric{BrakeDensity: 0.25, HighSlipDensity: 0.9, TractionLossDensity: 0.9}

		Convey("Then only the weighted densities contribute", func() {
			So(laps.TireStress(m, w), ShouldAlmostEqual, 0.25)
		})
	})
}
