// Package strategy evaluates trading strategies against indicators and
// sentiment. New strategies register a variant; the engine's control flow
// never changes.
package strategy

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Ziarant/StarPupil/internal/contracts"
	"github.com/Ziarant/StarPupil/pkg/logger"
)

// Input is everything a strategy may consult for one instrument and date.
type Input struct {
	Instrument contracts.Instrument
	Date       time.Time
	Indicators contracts.IndicatorSet
	Sentiment  contracts.SentimentAggregate
	Config     contracts.StrategyConfig
}

// Strategy is the single evaluation capability all variants implement.
// Evaluate returns zero or more candidate signals. ErrInsufficientData
// and ErrNoSentimentData mean the strategy had nothing to say; any other
// error is a strategy failure.
type Strategy interface {
	Name() string
	Evaluate(in Input) ([]contracts.Signal, error)
}

// Registry maps strategy names to variants.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry returns a registry with all built-in variants registered.
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[string]Strategy)}
	r.Register(&RSIStrategy{})
	r.Register(&MACDStrategy{})
	r.Register(&SentimentAlertStrategy{})
	return r
}

// Register adds a variant. Later registrations with the same name win,
// which lets tests swap in fakes.
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get returns the named strategy.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// Names returns registered strategy names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Failure records one strategy's error during evaluation.
type Failure struct {
	Strategy string
	Err      error
}

// Result is the outcome of evaluating all configured strategies for one
// instrument and date.
type Result struct {
	Candidates []contracts.Signal
	Failures   []Failure
	Evaluated  int // strategies that ran
	Skipped    int // strategies without enough data
}

// AllFailed reports whether every strategy that ran failed. Data
// insufficiency is a skip, not a failure.
func (r Result) AllFailed() bool {
	return r.Evaluated > 0 && len(r.Failures) == r.Evaluated
}

// Engine iterates configured, enabled strategies and concatenates their
// candidates. One strategy's failure never aborts its siblings;
// conflicting kinds for the same instrument/date are all kept, keyed by
// strategy name.
type Engine struct {
	registry *Registry
	logger   *logger.Logger
}

// NewEngine creates a strategy engine.
func NewEngine(registry *Registry, log *logger.Logger) *Engine {
	return &Engine{
		registry: registry,
		logger:   log.WithField("component", "strategy_engine"),
	}
}

// Evaluate runs every enabled config against the input.
func (e *Engine) Evaluate(in Input, configs []contracts.StrategyConfig) Result {
	var result Result

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		variant, ok := e.registry.Get(cfg.Name)
		if !ok {
			result.Evaluated++
			result.Failures = append(result.Failures, Failure{
				Strategy: cfg.Name,
				Err:      fmt.Errorf("unknown strategy %q", cfg.Name),
			})
			continue
		}

		in.Config = cfg
		candidates, err := variant.Evaluate(in)

		if errors.Is(err, contracts.ErrInsufficientData) || errors.Is(err, contracts.ErrNoSentimentData) {
			result.Skipped++
			e.logger.WithFields(map[string]interface{}{
				"strategy":   cfg.Name,
				"instrument": in.Instrument.Key(),
			}).Debug("Strategy skipped: not enough data")
			continue
		}

		result.Evaluated++
		if err != nil {
			result.Failures = append(result.Failures, Failure{Strategy: cfg.Name, Err: err})
			e.logger.WithError(err).WithFields(map[string]interface{}{
				"strategy":   cfg.Name,
				"instrument": in.Instrument.Key(),
			}).Warn("Strategy evaluation failed")
			continue
		}

		result.Candidates = append(result.Candidates, candidates...)
	}

	return result
}

// clamp01 bounds a strength score to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
