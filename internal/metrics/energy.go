package metrics

import (
	"math"

	"github.com/san-kum/cartpole/internal/cartpole"
)

// Energy is the mean mechanical energy of the pole about its hinge,
// measured from the upright position (zero when balanced at rest,
// negative as the pole falls).
type Energy struct {
	name        string
	mass        float64
	length      float64
	gravity     float64
	samples     int
	totalEnergy float64
}

func NewEnergy(mass, length, gravity float64) *Energy {
	return &Energy{
		name:    "pole_energy",
		mass:    mass,
		length:  length,
		gravity: gravity,
	}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(s cartpole.EpisodeState, a cartpole.Action) {
	e.totalEnergy += e.At(s)
	e.samples++
}

// At returns the pole energy of a single snapshot.
func (e *Energy) At(s cartpole.EpisodeState) float64 {
	ke := 0.5 * e.mass * e.length * e.length * s.ThetaDot * s.ThetaDot
	pe := e.mass * e.gravity * e.length * (math.Cos(s.Theta) - 1)
	return ke + pe
}

func (e *Energy) EndEpisode(steps int) {}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.totalEnergy / float64(e.samples)
}

func (e *Energy) Reset() {
	e.totalEnergy = 0
	e.samples = 0
}
