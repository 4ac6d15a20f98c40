package episode

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/san-kum/cartpole/internal/controllers"
	"github.com/san-kum/cartpole/internal/metrics"
)

// ErrNonFiniteState is returned when the environment hands back a state
// with a NaN or infinite component.
var ErrNonFiniteState = errors.New("non-finite state")

// Runner drives a controller against an environment episode by episode.
// It always resets before an episode and stops stepping at Done, which
// is the guard the simulator leaves to its callers.
type Runner struct {
	env        Env
	controller controllers.Controller
	metrics    []metrics.Metric
	observers  []Observer
	logger     *log.Logger
}

func New(env Env, controller controllers.Controller, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{
		env:        env,
		controller: controller,
		metrics:    make([]metrics.Metric, 0),
		observers:  make([]Observer, 0),
		logger:     logger,
	}
}

func (r *Runner) AddMetric(m metrics.Metric) {
	r.metrics = append(r.metrics, m)
}

func (r *Runner) AddObserver(o Observer) {
	r.observers = append(r.observers, o)
}

func (r *Runner) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	result := &Result{
		Episodes: make([]Summary, 0, cfg.Episodes),
		Steps:    make([]StepRecord, 0),
		Metrics:  make(map[string]float64),
		SolvedAt: -1,
	}

	for _, m := range r.metrics {
		m.Reset()
	}
	window := metrics.NewMovingAverage(cfg.SolvedWindow)

	defer func() {
		for _, m := range r.metrics {
			result.Metrics[m.Name()] = m.Value()
		}
		result.WindowFull = window.Full()
	}()

	for ep := 0; ep < cfg.Episodes; ep++ {
		summary, err := r.runEpisode(ctx, ep, cfg, result)
		if err != nil {
			return result, err
		}
		result.Episodes = append(result.Episodes, summary)

		for _, m := range r.metrics {
			m.EndEpisode(summary.Steps)
		}
		window.EndEpisode(summary.Steps)

		r.logger.Debug("episode finished", "episode", ep, "steps", summary.Steps, "terminated", summary.Terminated)

		if result.SolvedAt < 0 && window.Value() >= cfg.SolvedThreshold {
			result.SolvedAt = ep
			r.logger.Info("solved", "episode", ep, "moving_average", window.Value(), "window_full", window.Full())
			if cfg.StopWhenSolved {
				break
			}
		}
	}

	return result, nil
}

func (r *Runner) runEpisode(ctx context.Context, ep int, cfg Config, result *Result) (Summary, error) {
	summary := Summary{Index: ep}

	state, err := r.env.Reset(ctx)
	if err != nil {
		return summary, fmt.Errorf("episode %d: reset: %w", ep, err)
	}
	if !state.Observation().IsValid() {
		return summary, fmt.Errorf("episode %d: reset: %w: %s", ep, ErrNonFiniteState, state)
	}
	r.controller.Reset()
	learner, _ := r.controller.(controllers.Learner)
	if learner != nil {
		defer learner.EndEpisode()
	}

	for step := 0; step < cfg.MaxSteps; step++ {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		action := r.controller.Act(state)

		for _, m := range r.metrics {
			m.Observe(state, action)
		}
		for _, obs := range r.observers {
			obs.OnStep(ep, step, state, action)
		}

		next, err := r.env.Step(ctx, action)
		if err != nil {
			return summary, fmt.Errorf("episode %d step %d: %w", ep, step, err)
		}
		if !next.Observation().IsValid() {
			return summary, fmt.Errorf("episode %d step %d: %w: %s", ep, step, ErrNonFiniteState, next)
		}

		if learner != nil {
			learner.Observe(controllers.Transition{State: state, Action: action, Next: next})
		}

		state = next
		summary.Steps++
		summary.Return += float64(state.Reward)
		result.TotalSteps++

		if cfg.Record {
			result.Steps = append(result.Steps, StepRecord{
				Episode: ep,
				Step:    step,
				Action:  action,
				State:   state,
			})
		}

		if state.Done {
			summary.Terminated = true
			break
		}
	}

	return summary, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Episodes <= 0 {
		return fmt.Errorf("episodes must be positive, got %d", cfg.Episodes)
	}
	if cfg.MaxSteps < 0 {
		return fmt.Errorf("max steps must not be negative, got %d", cfg.MaxSteps)
	}
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.SolvedWindow <= 0 {
		cfg.SolvedWindow = DefaultSolvedWindow
	}
	if cfg.SolvedThreshold <= 0 {
		cfg.SolvedThreshold = DefaultSolvedThreshold
	}
	return nil
}
