package report_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"race-strategy-engine/internal/models"
	"race-strategy-engine/internal/report"

	. "github.com/smartystreets/goconvey/convey"
)

func sampleReport() *models.Report {
	return &models.Report{
		Metrics: []models.LapMetric{
			{Lap: 1, LapTimeS: 89.5, AvgSpeed: 181.2, AvgTireTemp: 86, BrakeDensity: 0.2, HighSlipDensity: 0.1, TireStress: 0.12, Samples: 600},
		},
		Model: models.DegradationModel{
			BaseLapTimeS:            89.5,
			EffectiveDegRateSPerLap: 0.675,
			RawRateSPerLap:          -0.2,
			BaseDegSPerLap:          0.05,
			StressNorm:              1,
			WarmupLaps:              1,
			FitLaps:                 4,

			NegativeSlopeFloorApplied: true,
		},
		Results: []models.StrategyResult{
			{Strategy: "0-stop: Full Medium", Stints: "20L on Medium", TotalTimeS: 1918.25, LapsCovered: 20},
			{Strategy: "short", Stints: "12L on Hard", TotalTimeS: 1100, LapsCovered: 12, CoverageMismatch: true},
		},
		Warnings: []models.Warning{
			{Kind: models.WarnNegativeSlope, Message: "laps got faster"},
		},
		TargetRaceLaps: 20,
		PitLossS:       20,
	}
}

func TestWriteTable(t *testing.T) {
	Convey("Given a report", t, func() {
		var buf bytes.Buffer
		So(report.Write(&buf, report.FormatTable, sampleReport()), ShouldBeNil)
		out := buf.String()

		Convey("Then every section is printed", func() {
			So(out, ShouldContainSubstring, "PER-LAP METRICS")
			So(out, ShouldContainSubstring, "DEGRADATION MODEL")
			So(out, ShouldContainSubstring, "STRATEGY COMPARISON")
			So(out, ShouldContainSubstring, "RECOMMENDED STRATEGY")
		})

		Convey("And the recommendation is the top result", func() {
			So(out, ShouldContainSubstring, "Best strategy:      0-stop: Full Medium")
			So(out, ShouldContainSubstring, "1918.25")
		})

		Convey("And floored slopes, mismatches and warnings are visible", func() {
			So(out, ShouldContainSubstring, "Negative slope floored")
			So(out, ShouldContainSubstring, "12*")
			So(out, ShouldContainSubstring, "negative_slope: laps got faster")
		})
	})

	Convey("Given a report with no results", t, func() {
		r := sampleReport()
		r.Results = nil
		r.Warnings = nil
		var buf bytes.Buffer
		So(report.WriteTable(&buf, r), ShouldBeNil)

		Convey("Then no recommendation or warnings are printed", func() {
			So(buf.String(), ShouldNotContainSubstring, "RECOMMENDED STRATEGY")
			So(buf.String(), ShouldNotContainSubstring, "Warnings:")
		})
	})
}

func TestWriteStructured(t *testing.T) {
	Convey("Given a report", t, func() {
		r := sampleReport()

		Convey("When written as JSON", func() {
			var buf bytes.Buffer
			So(report.Write(&buf, report.FormatJSON, r), ShouldBeNil)

			Convey("Then it decodes back to the same report", func() {
				var got models.Report
				So(json.Unmarshal(buf.Bytes(), &got), ShouldBeNil)
				So(got, ShouldResemble, *r)
			})
		})

		Convey("When written as YAML", func() {
			var buf bytes.Buffer
			So(report.Write(&buf, "YAML", r), ShouldBeNil)

			Convey("Then the top-level keys are snake_case", func() {
				var doc map[string]interface{}
				So(yaml.Unmarshal(buf.Bytes(), &doc), ShouldBeNil)
				So(doc, ShouldContainKey, "lap_metrics")
				So(doc, ShouldContainKey, "strategies")
				So(doc, ShouldContainKey, "model")
			})
		})

		Convey("When written as CSV", func() {
			var buf bytes.Buffer
			So(report.Write(&buf, report.FormatCSV, r), ShouldBeNil)

			Convey("Then each result is a ranked row", func() {
				rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 3)
				So(rows[1][0], ShouldEqual, "1")
				So(rows[2][5], ShouldEqual, "true")
			})
		})

		Convey("When the format is unknown", func() {
			So(report.Write(&bytes.Buffer{}, "xml", r), ShouldNotBeNil)
		})
	})
}
