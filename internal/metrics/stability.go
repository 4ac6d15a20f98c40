package metrics

import (
	"math"

	"github.com/san-kum/cartpole/internal/cartpole"
)

// Stability is the fraction of observed snapshots whose pole angle stays
// within the threshold.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(st cartpole.EpisodeState, a cartpole.Action) {
	s.samples++
	if math.Abs(st.Theta) > s.threshold {
		s.violations++
	}
}

func (s *Stability) EndEpisode(steps int) {}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
