package controllers

import "github.com/san-kum/cartpole/internal/cartpole"

// Controller picks the next discrete action from the latest snapshot.
type Controller interface {
	Act(s cartpole.EpisodeState) cartpole.Action
	// Reset clears per-episode memory.
	Reset()
}

func actionFor(signal float64) cartpole.Action {
	if signal > 0 {
		return cartpole.PushRight
	}
	return cartpole.PushLeft
}
