package optim

import (
	"context"
	"errors"
	"testing"

	"github.com/san-kum/cartpole/internal/cartpole"
	"github.com/san-kum/cartpole/internal/episode"
	"github.com/san-kum/cartpole/internal/metrics"
)

func linearBuilder(reg *episode.Registry) Builder {
	return func(params map[string]float64) (*episode.Runner, error) {
		ctrl, err := reg.GetController("linear", params)
		if err != nil {
			return nil, err
		}
		sim := cartpole.New(cartpole.WithInitialState(0, 0, 0, 0))
		r := episode.New(episode.Local(sim), ctrl, nil)
		r.AddMetric(metrics.NewEpisodeLength())
		return r, nil
	}
}

func TestGridSearchFindsBalancingGains(t *testing.T) {
	g := NewGridSearch(
		[]string{"k2", "k3"},
		[][]float64{{-10, 10}, {0, 2}},
		episode.Config{Episodes: 1},
	)
	if g.Candidates() != 4 {
		t.Errorf("expected 4 candidates, got %d", g.Candidates())
	}

	params, best, err := g.Search(context.Background(), linearBuilder(episode.NewRegistry()), "episode_length")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	if params["k2"] != 10 || params["k3"] != 2 {
		t.Errorf("expected k2=10 k3=2, got %v", params)
	}
	if best != episode.DefaultMaxSteps {
		t.Errorf("expected %d steps, got %f", episode.DefaultMaxSteps, best)
	}
}

func TestGridSearchSkipsFailedCandidates(t *testing.T) {
	g := NewGridSearch([]string{"action"}, [][]float64{{5, 1}}, episode.Config{Episodes: 1})
	reg := episode.NewRegistry()

	build := func(params map[string]float64) (*episode.Runner, error) {
		ctrl, err := reg.GetController("constant", params)
		if err != nil {
			return nil, err
		}
		r := episode.New(episode.Local(cartpole.New()), ctrl, nil)
		r.AddMetric(metrics.NewEpisodeLength())
		return r, nil
	}

	params, best, err := g.Search(context.Background(), build, "episode_length")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if params["action"] != 1 || best != 1 {
		t.Errorf("expected action 1 with length 1, got %v %f", params, best)
	}
}

func TestGridSearchErrors(t *testing.T) {
	reg := episode.NewRegistry()

	t.Run("missing metric", func(t *testing.T) {
		g := NewGridSearch([]string{"k2"}, [][]float64{{10}}, episode.Config{Episodes: 1})
		if _, _, err := g.Search(context.Background(), linearBuilder(reg), "nope"); err == nil {
			t.Error("expected error for unreported metric")
		}
	})

	t.Run("all candidates fail", func(t *testing.T) {
		g := NewGridSearch([]string{"k2"}, [][]float64{{10}}, episode.Config{Episodes: 1})
		boom := errors.New("boom")
		_, _, err := g.Search(context.Background(), func(map[string]float64) (*episode.Runner, error) {
			return nil, boom
		}, "episode_length")
		if !errors.Is(err, boom) {
			t.Errorf("expected wrapped build error, got %v", err)
		}
	})

	t.Run("mismatched ranges", func(t *testing.T) {
		g := NewGridSearch([]string{"k2", "k3"}, [][]float64{{10}}, episode.Config{Episodes: 1})
		if _, _, err := g.Search(context.Background(), linearBuilder(reg), "episode_length"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		g := NewGridSearch([]string{"k2"}, [][]float64{{10}}, episode.Config{Episodes: 1})
		if _, _, err := g.Search(ctx, linearBuilder(reg), "episode_length"); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
