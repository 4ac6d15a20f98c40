package controllers

import (
	"math/rand"

	"github.com/san-kum/cartpole/internal/cartpole"
)

// Transition is one (state, action, next) step as seen by a learner.
// Reward and termination are read from Next.
type Transition struct {
	State  cartpole.EpisodeState
	Action cartpole.Action
	Next   cartpole.EpisodeState
}

// Replay is a fixed-capacity memory of transitions; once full, each new
// transition evicts the oldest one.
type Replay struct {
	items []Transition
	head  int
	size  int
}

func NewReplay(capacity int) *Replay {
	if capacity <= 0 {
		capacity = 1
	}
	return &Replay{items: make([]Transition, capacity)}
}

func (r *Replay) Add(t Transition) {
	r.items[r.head] = t
	r.head = (r.head + 1) % len(r.items)
	if r.size < len(r.items) {
		r.size++
	}
}

func (r *Replay) Len() int      { return r.size }
func (r *Replay) Capacity() int { return len(r.items) }

// Sample draws n distinct transitions. It returns nil while the memory
// holds fewer than n.
func (r *Replay) Sample(rng *rand.Rand, n int) []Transition {
	if n <= 0 || r.size < n {
		return nil
	}
	out := make([]Transition, n)
	for i, j := range rng.Perm(r.size)[:n] {
		out[i] = r.items[j]
	}
	return out
}
