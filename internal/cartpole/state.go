package cartpole

import (
	"fmt"

	"github.com/san-kum/cartpole/internal/sim"
)

// CanonicalValue seeds every physical variable and the reward on reset.
const CanonicalValue = 1.0

// NumObservations is the size of the observation vector.
const NumObservations = 4

// EpisodeState is one snapshot of the simulated world. A snapshot is
// never modified after the simulator hands it out.
type EpisodeState struct {
	X        float64 `json:"x"`
	XDot     float64 `json:"x_dot"`
	Theta    float64 `json:"theta"`
	ThetaDot float64 `json:"theta_dot"`
	Reward   int     `json:"reward"`
	Done     bool    `json:"done"`
}

// Reset overwrites the snapshot with the canonical initial condition.
func (s *EpisodeState) Reset() {
	*s = EpisodeState{
		X:        CanonicalValue,
		XDot:     CanonicalValue,
		Theta:    CanonicalValue,
		ThetaDot: CanonicalValue,
		Reward:   int(CanonicalValue),
		Done:     false,
	}
}

// Observation returns (x, x_dot, theta, theta_dot).
func (s EpisodeState) Observation() sim.State {
	return sim.State{s.X, s.XDot, s.Theta, s.ThetaDot}
}

func (s EpisodeState) String() string {
	return fmt.Sprintf("x=%.4f x_dot=%.4f theta=%.4f theta_dot=%.4f reward=%d done=%t",
		s.X, s.XDot, s.Theta, s.ThetaDot, s.Reward, s.Done)
}

func placeholderState() EpisodeState {
	return EpisodeState{X: 1, XDot: 1, Theta: 1, ThetaDot: 1, Reward: 0, Done: true}
}
