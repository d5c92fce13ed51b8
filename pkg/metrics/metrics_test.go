package metrics_test

import (
	"net/http/httptest"
	"testing"

	"race-strategy-engine/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func scrape(m *metrics.Manager) string {
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	return rec.Body.String()
}

func TestManager(t *testing.T) {
	Convey("Given a new metrics manager", t, func() {
		m := metrics.NewManager()

		Convey("When a run is recorded", func() {
			m.RecordRun(5, 3, 12.5, 0.6, 1850.25)

			Convey("Then the counters and gauges reflect it", func() {
				out := scrape(m)
				So(out, ShouldContainSubstring, "pitstrat_engine_runs_analyzed_total 1")
				So(out, ShouldContainSubstring, "pitstrat_engine_laps_extracted_total 5")
				So(out, ShouldContainSubstring, "pitstrat_engine_strategies_evaluated_total 3")
				So(out, ShouldContainSubstring, "pitstrat_engine_last_effective_deg_rate_seconds 0.6")
				So(out, ShouldContainSubstring, "pitstrat_engine_last_best_total_time_seconds 1850.25")
			})
		})

		Convey("When warnings and errors are recorded", func() {
			m.RecordWarning("few_laps")
			m.RecordWarning("few_laps")
			m.RecordRunError("no_laps")

			Convey("Then they are labelled by kind", func() {
				out := scrape(m)
				So(out, ShouldContainSubstring, `pitstrat_engine_insufficient_data_warnings_total{kind="few_laps"} 2`)
				So(out, ShouldContainSubstring, `pitstrat_engine_run_errors_total{kind="no_laps"} 1`)
			})
		})

		Convey("When an HTTP request is recorded", func() {
			m.RecordHTTPRequest("/api/v1/runs/{id}", "GET", "404", 1.2)

			Convey("Then it is labelled by route template", func() {
				So(scrape(m), ShouldContainSubstring, `pitstrat_http_requests_total{method="GET",route="/api/v1/runs/{id}",status_code="404"} 1`)
			})
		})
	})

	Convey("Given custom options", t, func() {
		reg := prometheus.NewRegistry()
		m := metrics.NewManager(
			metrics.WithRegistry(reg),
			metrics.WithNamespace("race"),
			metrics.WithSubsystem("sim"),
			metrics.WithHistogramBuckets([]float64{1, 10}))

		Convey("Then metrics register on the supplied registry under the new names", func() {
			So(m.Registry(), ShouldEqual, reg)
			m.RecordRun(1, 1, 5, 0.1, 100)
			So(scrape(m), ShouldContainSubstring, "race_sim_runs_analyzed_total 1")
			So(scrape(m), ShouldContainSubstring, `race_sim_analyze_duration_milliseconds_bucket{le="10"} 1`)
		})
	})

	Convey("Given the default manager", t, func() {
		So(metrics.Default(), ShouldNotBeNil)
		So(metrics.Default(), ShouldEqual, metrics.Default())
	})
}
