package episode

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/san-kum/cartpole/internal/controllers"
	"github.com/san-kum/cartpole/internal/metrics"
)

// Factory builds a fresh environment and controller for one run. Runs
// never share an environment.
type Factory func(seed int64) (Env, controllers.Controller, error)

// Ensemble repeats the same configuration over consecutive seeds in
// parallel.
type Ensemble struct {
	factory   Factory
	numRuns   int
	seedStart int64
	logger    *log.Logger
}

func NewEnsemble(factory Factory, numRuns int, seedStart int64, logger *log.Logger) *Ensemble {
	return &Ensemble{factory: factory, numRuns: numRuns, seedStart: seedStart, logger: logger}
}

func (e *Ensemble) Run(ctx context.Context, cfg Config) ([]*Result, error) {
	results := make([]*Result, e.numRuns)
	errs := make([]error, e.numRuns)

	var wg sync.WaitGroup
	for i := 0; i < e.numRuns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			env, ctrl, err := e.factory(e.seedStart + int64(idx))
			if err != nil {
				errs[idx] = err
				return
			}

			r := New(env, ctrl, e.logger)
			for _, m := range metrics.Defaults() {
				r.AddMetric(m)
			}

			results[idx], errs[idx] = r.Run(ctx, cfg)
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}
