package metrics

import "github.com/san-kum/cartpole/internal/cartpole"

// Metric accumulates a statistic over the steps and episodes of a run.
type Metric interface {
	Name() string
	Observe(s cartpole.EpisodeState, a cartpole.Action)
	EndEpisode(steps int)
	Value() float64
	Reset()
}

// Defaults returns the metrics every run reports.
func Defaults() []Metric {
	return []Metric{
		NewEpisodeLength(),
		NewMovingAverage(100),
		NewStability(cartpole.AngleThreshold / 2),
		NewActionBalance(),
		NewEnergy(0.1, 0.5, 9.8),
	}
}
