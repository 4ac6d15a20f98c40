package metrics

import "github.com/san-kum/cartpole/internal/cartpole"

// ActionBalance averages -1 for every left push and +1 for every right
// push.
type ActionBalance struct {
	name    string
	sum     float64
	samples int
}

func NewActionBalance() *ActionBalance {
	return &ActionBalance{
		name: "action_balance",
	}
}

func (c *ActionBalance) Name() string {
	return c.name
}

func (c *ActionBalance) Observe(s cartpole.EpisodeState, a cartpole.Action) {
	c.sum += a.Force(1)
	c.samples++
}

func (c *ActionBalance) EndEpisode(steps int) {}

func (c *ActionBalance) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ActionBalance) Reset() {
	c.sum = 0
	c.samples = 0
}
