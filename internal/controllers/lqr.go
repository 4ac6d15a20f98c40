package controllers

import "github.com/san-kum/cartpole/internal/cartpole"

// Linear is a bang-bang rendition of linear state feedback: it pushes
// right whenever K·(x - target) is positive.
type Linear struct {
	K      [cartpole.NumObservations]float64
	Target [cartpole.NumObservations]float64
}

func NewLinear(k [cartpole.NumObservations]float64) *Linear {
	return &Linear{K: k}
}

// NewCartPoleLQR returns gains that keep the pole upright from small
// initial deflections.
func NewCartPoleLQR() *Linear {
	return NewLinear([cartpole.NumObservations]float64{0, 0, 10, 2})
}

func (l *Linear) Act(s cartpole.EpisodeState) cartpole.Action {
	obs := s.Observation()
	u := 0.0
	for j := range obs {
		u += l.K[j] * (obs[j] - l.Target[j])
	}
	return actionFor(u)
}

func (l *Linear) Reset() {}
