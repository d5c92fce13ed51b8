package strategy

import (
	"fmt"
	"runtime"
	"sort"
	"sync"

	"race-strategy-engine/internal/models"
)

// Default evaluation parameters.
const (
	DefaultPitLossS       = 20.0
	DefaultTargetRaceLaps = 20
)

// Option applies a configuration option to the Evaluator.
type Option func(*Evaluator)

// WithPitLoss sets the seconds added per pit stop.
func WithPitLoss(seconds float64) Option {
	return func(e *Evaluator) {
		if seconds >= 0 {
			e.pitLossS = seconds
		}
	}
}

// WithTargetRaceLaps sets the race length strategies are checked against.
func WithTargetRaceLaps(laps int) Option {
	return func(e *Evaluator) {
		if laps > 0 {
			e.targetLaps = laps
		}
	}
}

// WithParallelism bounds the number of strategies scored concurrently.
func WithParallelism(workers int) Option {
	return func(e *Evaluator) {
		if workers > 0 {
			e.parallelism = workers
		}
	}
}

// Evaluator scores strategies against one fitted model.
type Evaluator struct {
	model       models.DegradationModel
	compounds   map[string]models.CompoundProfile
	pitLossS    float64
	targetLaps  int
	parallelism int
}

// NewEvaluator creates an evaluator. The compound map is copied.
func NewEvaluator(model models.DegradationModel, compounds map[string]models.CompoundProfile, opts ...Option) *Evaluator {
	e := &Evaluator{
		model:       model,
		compounds:   make(map[string]models.CompoundProfile, len(compounds)),
		pitLossS:    DefaultPitLossS,
		targetLaps:  DefaultTargetRaceLaps,
		parallelism: runtime.NumCPU(),
	}
	for name, c := range compounds {
		e.compounds[name] = c
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate checks every strategy references known compounds and positive stints.
func (e *Evaluator) Validate(strategies []models.Strategy) error {
	for _, s := range strategies {
		if len(s.Stints) == 0 {
			return models.NewConfigurationError("strategies", "strategy %q has no stints", s.Name)
		}
		for i, st := range s.Stints {
			if st.LapCount <= 0 {
				return models.NewConfigurationError("strategies", "strategy %q stint %d: lap_count must be > 0, got %d", s.Name, i+1, st.LapCount)
			}
			if _, ok := e.compounds[st.Compound]; !ok {
				return models.NewConfigurationError("compound_profiles", "strategy %q stint %d: no profile for compound %q", s.Name, i+1, st.Compound)
			}
		}
	}
	return nil
}

// Score returns the total race time of one strategy: each stint's simulated
// time plus pit loss between consecutive stints.
func (e *Evaluator) Score(s models.Strategy) (models.StrategyResult, error) {
	total := 0.0
	for i, st := range s.Stints {
		compound, ok := e.compounds[st.Compound]
		if !ok {
			return models.StrategyResult{}, models.NewConfigurationError("compound_profiles", "no profile for compound %q", st.Compound)
		}
		total += SimulateStint(e.model, compound, st.LapCount)
		if i < len(s.Stints)-1 {
			total += e.pitLossS
		}
	}

	covered := s.Laps()
	return models.StrategyResult{
		Strategy:         s.Name,
		Stints:           s.Description(),
		TotalTimeS:       total,
		Stops:            max(len(s.Stints)-1, 0),
		LapsCovered:      covered,
		CoverageMismatch: covered != e.targetLaps,
	}, nil
}

// Evaluate scores all strategies and returns them sorted by total time.
// Ties keep input order. Coverage mismatches are reported as warnings and the
// strategy is still ranked on the laps it covers.
func (e *Evaluator) Evaluate(strategies []models.Strategy) ([]models.StrategyResult, []models.Warning, error) {
	if err := e.Validate(strategies); err != nil {
		return nil, nil, err
	}

	results := make([]models.StrategyResult, len(strategies))
	errs := make([]error, len(strategies))

	sem := make(chan struct{}, e.parallelism)
	var wg sync.WaitGroup
	for i := range strategies {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i], errs[i] = e.Score(strategies[i])
		}(i)
	}
	wg.Wait()

	var warnings []models.Warning
	for i, err := range errs {
		if err != nil {
			return nil, nil, fmt.Errorf("score strategy %q: %w", strategies[i].Name, err)
		}
		if results[i].CoverageMismatch {
			warnings = append(warnings, models.Warning{
				Kind:     models.WarnCoverageMismatch,
				Strategy: results[i].Strategy,
				Message:  fmt.Sprintf("strategy covers %d laps (target %d)", results[i].LapsCovered, e.targetLaps),
			})
		}
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].TotalTimeS < results[b].TotalTimeS
	})
	return results, warnings, nil
}
