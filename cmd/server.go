package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"race-strategy-engine/internal/api"
	"race-strategy-engine/internal/app"
	"race-strategy-engine/internal/config"
	"race-strategy-engine/internal/db"
	"race-strategy-engine/internal/engine"
	"race-strategy-engine/pkg/logger"
	"race-strategy-engine/pkg/metrics"

	"github.com/spf13/cobra"
)

// serverCmd starts the REST API server
func serverCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}

			eng, err := engine.New(cfg.EngineOptions())
			if err != nil {
				return err
			}

			database, err := db.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			defer database.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := logger.Named("server")
			svc := app.NewService(eng,
				app.WithStore(database),
				app.WithLogger(logger.Named("analyze")),
				app.WithMetrics(metrics.Default()))

			if path := configFile(); path != "" {
				go func() {
					err := config.Watch(ctx, path, func(c *config.Config) {
						next, err := engine.New(c.EngineOptions())
						if err != nil {
							log.Error(ctx, "reloaded config rejected", logger.Error(err))
							return
						}
						svc.SetEngine(next)
						if err := logger.SetLevelString(c.LogLevel); err != nil {
							log.Warn(ctx, "invalid log level", logger.String("level", c.LogLevel))
						}
					})
					if err != nil {
						log.Error(ctx, "config watch stopped", logger.Error(err))
					}
				}()
			}

			server := api.NewServer(svc, logger.Named("http"), metrics.Default())
			httpServer := &http.Server{
				Addr:              cfg.Addr,
				Handler:           server.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			log.Info(ctx, "listening",
				logger.String("addr", cfg.Addr),
				logger.String("db", cfg.DBPath),
				logger.Int("target_race_laps", cfg.TargetRaceLaps),
				logger.Float64("pit_loss_s", cfg.PitLossS))

			errCh := make(chan error, 1)
			go func() {
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			log.Info(context.Background(), "shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides addr)")
	return cmd
}
