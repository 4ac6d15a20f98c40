package controllers

import "github.com/san-kum/cartpole/internal/cartpole"

type Constant struct {
	action cartpole.Action
}

func NewConstant(action cartpole.Action) *Constant {
	return &Constant{action: action}
}

func (c *Constant) Act(s cartpole.EpisodeState) cartpole.Action {
	return c.action
}

func (c *Constant) Reset() {}
