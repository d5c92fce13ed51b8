package logger_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"race-strategy-engine/pkg/logger"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	ctx := context.Background()

	Convey("Given a standalone logger at info level", t, func() {
		var buf bytes.Buffer
		log := logger.New(&buf, slog.LevelInfo)

		Convey("When logging with fields", func() {
			log.Named("fit").Warn(ctx, "insufficient data",
				logger.String("kind", "few_laps"),
				logger.Int("laps", 2),
				logger.Float64("rate", 0.5),
				logger.Error(errors.New("boom")))

			Convey("Then the record carries the component and fields", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, "component=fit")
				So(out, ShouldContainSubstring, "kind=few_laps")
				So(out, ShouldContainSubstring, "laps=2")
				So(out, ShouldContainSubstring, "error=boom")
			})
		})

		Convey("When logging below the level", func() {
			log.Debug(ctx, "hidden")
			So(buf.String(), ShouldBeEmpty)
		})
	})

	Convey("Given the global logger", t, func() {
		var buf bytes.Buffer
		So(logger.Init(&buf, "warn"), ShouldBeNil)

		Convey("Then the configured level filters records", func() {
			logger.Get().Info(ctx, "quiet")
			logger.Named("cli").Error(ctx, "loud")
			So(buf.String(), ShouldNotContainSubstring, "quiet")
			So(buf.String(), ShouldContainSubstring, "loud")
		})

		Convey("And the level can change at runtime", func() {
			So(logger.SetLevelString("DEBUG"), ShouldBeNil)
			logger.Get().Debug(ctx, "now visible")
			So(buf.String(), ShouldContainSubstring, "now visible")
		})

		Convey("And unknown levels are rejected", func() {
			So(logger.SetLevelString("verbose"), ShouldNotBeNil)
			So(logger.Init(&buf, "verbose"), ShouldNotBeNil)
		})
	})

	Convey("Given the nop logger", t, func() {
		Convey("Then logging does not panic", func() {
			So(func() { logger.Nop().Error(ctx, "dropped") }, ShouldNotPanic)
		})
	})
}
