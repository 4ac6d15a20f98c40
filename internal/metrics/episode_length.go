package metrics

import (
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/cartpole/internal/cartpole"
)

// EpisodeLength is the mean number of steps per finished episode.
type EpisodeLength struct {
	name    string
	lengths []float64
}

func NewEpisodeLength() *EpisodeLength {
	return &EpisodeLength{name: "episode_length"}
}

func (e *EpisodeLength) Name() string { return e.name }

func (e *EpisodeLength) Observe(s cartpole.EpisodeState, a cartpole.Action) {}

func (e *EpisodeLength) EndEpisode(steps int) {
	e.lengths = append(e.lengths, float64(steps))
}

func (e *EpisodeLength) Value() float64 {
	if len(e.lengths) == 0 {
		return 0
	}
	return stat.Mean(e.lengths, nil)
}

func (e *EpisodeLength) Reset() {
	e.lengths = e.lengths[:0]
}

// MovingAverage is the mean length of the last window episodes.
type MovingAverage struct {
	name    string
	window  int
	lengths []float64
}

func NewMovingAverage(window int) *MovingAverage {
	if window <= 0 {
		window = 1
	}
	return &MovingAverage{name: "moving_average", window: window}
}

func (m *MovingAverage) Name() string { return m.name }

func (m *MovingAverage) Observe(s cartpole.EpisodeState, a cartpole.Action) {}

func (m *MovingAverage) EndEpisode(steps int) {
	m.lengths = append(m.lengths, float64(steps))
	if len(m.lengths) > m.window {
		m.lengths = m.lengths[len(m.lengths)-m.window:]
	}
}

// Full reports whether a whole window of episodes has been seen.
func (m *MovingAverage) Full() bool {
	return len(m.lengths) == m.window
}

func (m *MovingAverage) Value() float64 {
	if len(m.lengths) == 0 {
		return 0
	}
	return stat.Mean(m.lengths, nil)
}

func (m *MovingAverage) Reset() {
	m.lengths = m.lengths[:0]
}
