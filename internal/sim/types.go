package sim

import "math"

// State is a flat vector of continuous state variables.
type State []float64

// IsValid reports whether every component is finite.
func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Control is the input vector applied over one integration step.
type Control []float64

// Dynamics is a continuous-time system dX/dt = f(X, u, t).
type Dynamics interface {
	Derivative(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

// Integrator advances a Dynamics by one fixed step dt.
type Integrator interface {
	Step(dyn Dynamics, x State, u Control, t float64, dt float64) State
}
