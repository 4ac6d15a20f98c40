package episode

import (
	"context"

	"github.com/san-kum/cartpole/internal/cartpole"
)

// Env is anything that exposes the four cart-pole operations: a local
// simulator or a remote session behind the bridge.
type Env interface {
	ActionSpace(ctx context.Context) (int, error)
	ObservationSpace(ctx context.Context) (int, error)
	Reset(ctx context.Context) (cartpole.EpisodeState, error)
	Step(ctx context.Context, action cartpole.Action) (cartpole.EpisodeState, error)
}

type localEnv struct {
	sim *cartpole.Simulator
}

// Local adapts an in-process simulator to Env.
func Local(sim *cartpole.Simulator) Env {
	return &localEnv{sim: sim}
}

func (l *localEnv) ActionSpace(ctx context.Context) (int, error) {
	return l.sim.ActionSpace(), nil
}

func (l *localEnv) ObservationSpace(ctx context.Context) (int, error) {
	return l.sim.ObservationSpace(), nil
}

func (l *localEnv) Reset(ctx context.Context) (cartpole.EpisodeState, error) {
	return l.sim.Reset(), nil
}

func (l *localEnv) Step(ctx context.Context, action cartpole.Action) (cartpole.EpisodeState, error) {
	return l.sim.Step(action)
}
