package episode

import "github.com/san-kum/cartpole/internal/cartpole"

const (
	DefaultMaxSteps        = 500
	DefaultSolvedWindow    = 100
	DefaultSolvedThreshold = 195.0
)

type Config struct {
	Episodes int
	// MaxSteps truncates an episode that is still alive; 0 means
	// DefaultMaxSteps.
	MaxSteps int
	// Record keeps every step in Result.Steps.
	Record bool

	SolvedWindow    int
	SolvedThreshold float64
	StopWhenSolved  bool
}

type Observer interface {
	OnStep(episode, step int, s cartpole.EpisodeState, a cartpole.Action)
}

type Summary struct {
	Index  int     `json:"index"`
	Steps  int     `json:"steps"`
	Return float64 `json:"return"`
	// Terminated is false when the episode was cut at MaxSteps.
	Terminated bool `json:"terminated"`
}

type StepRecord struct {
	Episode int                   `json:"episode"`
	Step    int                   `json:"step"`
	Action  cartpole.Action       `json:"action"`
	State   cartpole.EpisodeState `json:"state"`
}

type Result struct {
	Episodes   []Summary
	Steps      []StepRecord
	Metrics    map[string]float64
	TotalSteps int
	// SolvedAt is the index of the first episode at which the moving
	// average reached the threshold, or -1.
	SolvedAt int
	// WindowFull reports whether the solved window saw SolvedWindow
	// episodes; before that its average covers fewer.
	WindowFull bool
}
