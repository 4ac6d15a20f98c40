package cartpole

import (
	"math"

	"github.com/san-kum/cartpole/internal/sim"
)

// Dynamics holds the physical constants of the cart and pole and
// implements sim.Dynamics over the state (x, x_dot, theta, theta_dot)
// with a single control input, the signed force on the cart.
type Dynamics struct {
	Gravity    float64
	CartMass   float64
	PoleMass   float64
	HalfLength float64
}

func NewDynamics() *Dynamics {
	return &Dynamics{
		Gravity:    9.8,
		CartMass:   1.0,
		PoleMass:   0.1,
		HalfLength: 0.5,
	}
}

func (d *Dynamics) TotalMass() float64 {
	return d.CartMass + d.PoleMass
}

func (d *Dynamics) PoleMassLength() float64 {
	return d.PoleMass * d.HalfLength
}

func (d *Dynamics) StateDim() int {
	return NumObservations
}

func (d *Dynamics) ControlDim() int {
	return 1
}

func (d *Dynamics) Derivative(x sim.State, u sim.Control, t float64) sim.State {
	xDot := x[1]
	theta := x[2]
	thetaDot := x[3]

	force := 0.0
	if len(u) > 0 {
		force = u[0]
	}

	totalMass := d.TotalMass()
	poleMassLength := d.PoleMassLength()

	cosTheta := math.Cos(theta)
	sinTheta := math.Sin(theta)

	temp := (force + poleMassLength*thetaDot*thetaDot*sinTheta) / totalMass
	thetaAcc := (d.Gravity*sinTheta - cosTheta*temp) /
		(d.HalfLength * (4.0/3.0 - d.PoleMass*cosTheta*cosTheta/totalMass))
	xAcc := temp - poleMassLength*thetaAcc*cosTheta/totalMass

	return sim.State{xDot, xAcc, thetaDot, thetaAcc}
}
