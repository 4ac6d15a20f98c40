package controllers

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r1"

	"github.com/san-kum/cartpole/internal/cartpole"
)

// Learner is implemented by controllers that train while they act. The
// episode runner reports every step through Observe and calls
// EndEpisode once the episode is over.
type Learner interface {
	Observe(t Transition)
	EndEpisode()
}

// QLearningConfig holds the hyperparameters of QLearning.
type QLearningConfig struct {
	Gamma        float64
	Alpha        float64
	Epsilon      float64
	EpsilonMin   float64
	EpsilonDecay float64
	MemorySize   int
	BatchSize    int
	Seed         int64
}

func DefaultQLearningConfig() QLearningConfig {
	return QLearningConfig{
		Gamma:        0.95,
		Alpha:        0.1,
		Epsilon:      1.0,
		EpsilonMin:   0.01,
		EpsilonDecay: 0.995,
		MemorySize:   2000,
		BatchSize:    32,
	}
}

// Bins per observation component. Cart position and velocity are
// ignored; balancing from rest depends on the pole alone.
var qBins = [cartpole.NumObservations]int{1, 1, 6, 12}

var qRanges = [cartpole.NumObservations]r1.Interval{
	{Min: -cartpole.PositionThreshold, Max: cartpole.PositionThreshold},
	{Min: -3, Max: 3},
	{Min: -cartpole.AngleThreshold, Max: cartpole.AngleThreshold},
	{Min: -50 * math.Pi / 180, Max: 50 * math.Pi / 180},
}

// QLearning is an epsilon-greedy tabular Q-learner over a discretized
// observation. Each step is learned online and remembered; at the end
// of every episode a random batch is replayed from memory and epsilon
// decays towards its floor.
type QLearning struct {
	cfg     QLearningConfig
	rng     *rand.Rand
	q       [][cartpole.NumActions]float64
	memory  *Replay
	epsilon float64
}

func NewQLearning(cfg QLearningConfig) *QLearning {
	states := 1
	for _, n := range qBins {
		states *= n
	}
	return &QLearning{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		q:       make([][cartpole.NumActions]float64, states),
		memory:  NewReplay(cfg.MemorySize),
		epsilon: cfg.Epsilon,
	}
}

func (l *QLearning) Act(s cartpole.EpisodeState) cartpole.Action {
	if l.rng.Float64() < l.epsilon {
		return cartpole.Action(l.rng.Intn(cartpole.NumActions))
	}
	return l.Greedy(s)
}

// Greedy returns the best known action, preferring left on ties.
func (l *QLearning) Greedy(s cartpole.EpisodeState) cartpole.Action {
	q := l.q[stateIndex(s)]
	if q[cartpole.PushRight] > q[cartpole.PushLeft] {
		return cartpole.PushRight
	}
	return cartpole.PushLeft
}

// Reset keeps the learned table; only epsilon changes between episodes.
func (l *QLearning) Reset() {}

func (l *QLearning) Observe(t Transition) {
	l.memory.Add(t)
	l.update(t)
}

func (l *QLearning) EndEpisode() {
	for _, t := range l.memory.Sample(l.rng, l.cfg.BatchSize) {
		l.update(t)
	}
	if l.epsilon > l.cfg.EpsilonMin {
		l.epsilon *= l.cfg.EpsilonDecay
	}
}

func (l *QLearning) Epsilon() float64 { return l.epsilon }

func (l *QLearning) update(t Transition) {
	if t.Action.Validate() != nil {
		return
	}
	target := float64(t.Next.Reward)
	if !t.Next.Done {
		next := l.q[stateIndex(t.Next)]
		target += l.cfg.Gamma * math.Max(next[cartpole.PushLeft], next[cartpole.PushRight])
	}
	q := &l.q[stateIndex(t.State)][t.Action]
	*q += l.cfg.Alpha * (target - *q)
}

func stateIndex(s cartpole.EpisodeState) int {
	obs := s.Observation()
	idx := 0
	for i, n := range qBins {
		idx = idx*n + bucket(obs[i], qRanges[i], n)
	}
	return idx
}

func bucket(v float64, r r1.Interval, n int) int {
	switch {
	case n <= 1 || v <= r.Min || math.IsNaN(v):
		return 0
	case v >= r.Max:
		return n - 1
	}
	b := int((v - r.Min) / (r.Max - r.Min) * float64(n))
	if b >= n {
		b = n - 1
	}
	return b
}
