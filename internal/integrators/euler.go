package integrators

import "github.com/san-kum/cartpole/internal/sim"

// Euler is the explicit (forward) Euler scheme: each component moves by
// h times the derivative taken at the start of the sub-step, so the cart
// and pole positions advance with their pre-step velocities.
//
// With the default single sub-step one call is exactly one classic
// cart-pole update. More sub-steps shrink the error of a fixed dt
// without changing the caller's timestep.
type Euler struct {
	substeps int
}

type EulerOption func(*Euler)

// WithSubsteps splits every step into n equal sub-steps. Values below 1
// are ignored.
func WithSubsteps(n int) EulerOption {
	return func(e *Euler) {
		if n >= 1 {
			e.substeps = n
		}
	}
}

func NewEuler(opts ...EulerOption) *Euler {
	e := &Euler{substeps: 1}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Euler) Substeps() int { return e.substeps }

// Step returns the state after dt; x is left untouched.
func (e *Euler) Step(dyn sim.Dynamics, x sim.State, u sim.Control, t float64, dt float64) sim.State {
	next := make(sim.State, len(x))
	copy(next, x)

	h := dt / float64(e.substeps)
	for k := 0; k < e.substeps; k++ {
		advance(next, dyn.Derivative(next, u, t+float64(k)*h), h)
	}
	return next
}

// advance applies x += h*dx in place. Components the derivative does
// not cover are held.
func advance(x, dx sim.State, h float64) {
	n := min(len(x), len(dx))
	for i := 0; i < n; i++ {
		x[i] += h * dx[i]
	}
}
