package optim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/cartpole/internal/episode"
)

// Builder returns a runner for one candidate parameter set. The runner
// must report the metric being searched.
type Builder func(params map[string]float64) (*episode.Runner, error)

// GridSearch tries every combination of the parameter ranges and keeps
// the one that maximizes a metric.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	cfg        episode.Config
}

func NewGridSearch(params []string, ranges [][]float64, cfg episode.Config) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges, cfg: cfg}
}

// Candidates is the size of the grid.
func (g *GridSearch) Candidates() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Search returns the best parameters and their metric value. Candidates
// that fail to build or run are skipped; cancellation aborts the search.
func (g *GridSearch) Search(ctx context.Context, build Builder, metricName string) (map[string]float64, float64, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, 0, fmt.Errorf("%d parameter names for %d ranges", len(g.paramNames), len(g.ranges))
	}

	best := math.Inf(-1)
	var bestParams map[string]float64
	var lastErr error

	err := g.searchRecursive(ctx, 0, make(map[string]float64), func(params map[string]float64) error {
		runner, err := build(params)
		if err != nil {
			lastErr = err
			return nil
		}

		result, err := runner.Run(ctx, g.cfg)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			return nil
		}

		val, ok := result.Metrics[metricName]
		if !ok {
			return fmt.Errorf("metric %q not reported", metricName)
		}
		if val > best {
			best = val
			bestParams = make(map[string]float64, len(params))
			for k, v := range params {
				bestParams[k] = v
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	if bestParams == nil {
		if lastErr == nil {
			lastErr = errors.New("empty grid")
		}
		return nil, 0, fmt.Errorf("no candidate evaluated: %w", lastErr)
	}
	return bestParams, best, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	eval func(map[string]float64) error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		return eval(current)
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, eval); err != nil {
			return err
		}
	}
	return nil
}
