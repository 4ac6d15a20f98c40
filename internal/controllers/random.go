package controllers

import (
	"math/rand"

	"github.com/san-kum/cartpole/internal/cartpole"
)

// Random draws actions uniformly from the action space.
type Random struct {
	seed int64
	rng  *rand.Rand
}

func NewRandom(seed int64) *Random {
	return &Random{seed: seed, rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) Act(s cartpole.EpisodeState) cartpole.Action {
	return cartpole.Action(r.rng.Intn(cartpole.NumActions))
}

// Reset keeps the stream going so episodes see different draws.
func (r *Random) Reset() {}
