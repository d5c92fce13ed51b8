// Package app wires the analysis engine to persistence, logging and metrics.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"race-strategy-engine/internal/engine"
	"race-strategy-engine/internal/models"
	"race-strategy-engine/pkg/logger"
	"race-strategy-engine/pkg/metrics"
)

// Store persists analysis runs. *db.Database implements it.
type Store interface {
	InsertRun(run *models.Run) error
	GetRun(id string) (*models.Run, error)
	ListRuns(limit, offset int) ([]models.RunSummary, error)
	GetStats() (map[string]interface{}, error)
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore persists every successful analysis.
func WithStore(store Store) Option {
	return func(s *Service) { s.store = store }
}

// WithLogger sets the service logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics sets the metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service runs analyses. The engine can be swapped at runtime, e.g. on a
// config reload; in-flight analyses keep the engine they started with.
type Service struct {
	mu      sync.RWMutex
	engine  *engine.Engine
	store   Store
	log     logger.Logger
	metrics *metrics.Manager
	now     func() time.Time
}

// NewService creates a Service around eng.
func NewService(eng *engine.Engine, opts ...Option) *Service {
	s := &Service{
		engine:  eng,
		log:     logger.Nop(),
		metrics: metrics.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the current engine.
func (s *Service) Engine() *engine.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// SetEngine replaces the engine used by later analyses.
func (s *Service) SetEngine(eng *engine.Engine) {
	s.mu.Lock()
	s.engine = eng
	s.mu.Unlock()
}

// AnalyzeRequest describes one analysis.
type AnalyzeRequest struct {
	Name    string
	Samples []models.TelemetrySample
	// Strategies overrides the engine's candidates when non-empty.
	Strategies []models.Strategy
	// Persist stores the run when a store is configured.
	Persist bool
}

// Analyze runs the pipeline, logs every warning and optionally stores the run.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (*models.Run, error) {
	eng := s.Engine()
	start := s.now()

	candidates := req.Strategies
	if len(candidates) == 0 {
		candidates = eng.Candidates()
	}

	report, err := eng.AnalyzeStrategies(req.Samples, candidates)
	if err != nil {
		s.metrics.RecordRunError(errorKind(err))
		s.log.Error(ctx, "analysis failed", logger.String("run", req.Name), logger.Int("samples", len(req.Samples)), logger.Error(err))
		return nil, err
	}

	for _, w := range report.Warnings {
		s.metrics.RecordWarning(string(w.Kind))
		s.log.Warn(ctx, "insufficient data", logger.String("kind", string(w.Kind)),
			logger.String("strategy", w.Strategy), logger.String("detail", w.Message))
	}

	run := &models.Run{
		RunSummary: models.RunSummary{
			ID:                      uuid.New().String(),
			Name:                    req.Name,
			CreatedAt:               start.UTC(),
			Samples:                 len(req.Samples),
			Laps:                    len(report.Metrics),
			TargetRaceLaps:          report.TargetRaceLaps,
			PitLossS:                report.PitLossS,
			BaseLapTimeS:            report.Model.BaseLapTimeS,
			EffectiveDegRateSPerLap: report.Model.EffectiveDegRateSPerLap,
			Warnings:                len(report.Warnings),
		},
		Report: report,
	}
	if best, ok := report.Best(); ok {
		run.BestStrategy = best.Strategy
		run.BestTotalTimeS = best.TotalTimeS
	}

	elapsedMs := float64(s.now().Sub(start).Microseconds()) / 1000
	s.metrics.RecordRun(len(report.Metrics), len(report.Results), elapsedMs,
		report.Model.EffectiveDegRateSPerLap, run.BestTotalTimeS)

	s.log.Info(ctx, "analysis complete",
		logger.String("run_id", run.ID),
		logger.String("run", run.Name),
		logger.Int("laps", run.Laps),
		logger.Float64("effective_deg_rate", run.EffectiveDegRateSPerLap),
		logger.String("best", run.BestStrategy),
		logger.Float64("best_total_s", run.BestTotalTimeS))

	if req.Persist && s.store != nil {
		if err := s.store.InsertRun(run); err != nil {
			s.metrics.RecordRunError("store")
			return nil, fmt.Errorf("store run: %w", err)
		}
	}
	return run, nil
}

// Evaluate ranks strategies against a supplied model.
func (s *Service) Evaluate(ctx context.Context, model models.DegradationModel, strategies []models.Strategy) ([]models.StrategyResult, []models.Warning, error) {
	results, warnings, err := s.Engine().Evaluate(model, strategies)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range warnings {
		s.metrics.RecordWarning(string(w.Kind))
		s.log.Warn(ctx, "insufficient data", logger.String("kind", string(w.Kind)),
			logger.String("strategy", w.Strategy), logger.String("detail", w.Message))
	}
	return results, warnings, nil
}

// Run returns a stored run.
func (s *Service) Run(id string) (*models.Run, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.GetRun(id)
}

// Runs lists stored runs.
func (s *Service) Runs(limit, offset int) ([]models.RunSummary, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.ListRuns(limit, offset)
}

// Stats returns store statistics.
func (s *Service) Stats() (map[string]interface{}, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.GetStats()
}

// ErrNoStore is returned by read operations when no store is configured.
var ErrNoStore = errors.New("no run store configured")

func errorKind(err error) string {
	switch {
	case errors.Is(err, models.ErrConfiguration):
		return "configuration"
	case errors.Is(err, engine.ErrNoLaps):
		return "no_laps"
	default:
		return "internal"
	}
}
