package integrators

import (
	"testing"

	"github.com/san-kum/cartpole/internal/sim"
)

type benchDynamics struct{}

func (b *benchDynamics) StateDim() int   { return 4 }
func (b *benchDynamics) ControlDim() int { return 1 }
func (b *benchDynamics) Derivative(x sim.State, u sim.Control, t float64) sim.State {
	return sim.State{x[1], -x[0] + u[0], x[3], -x[2]}
}

func BenchmarkEuler(b *testing.B) {
	integrator := NewEuler()
	dyn := &benchDynamics{}
	x := sim.State{1.0, 0.0, 0.5, 0.0}
	u := sim.Control{0.1}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x = integrator.Step(dyn, x, u, 0, 0.02)
	}
}

func BenchmarkEulerSubsteps(b *testing.B) {
	integrator := NewEuler(WithSubsteps(8))
	dyn := &benchDynamics{}
	x := sim.State{1.0, 0.0, 0.5, 0.0}
	u := sim.Control{0.1}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x = integrator.Step(dyn, x, u, 0, 0.02)
	}
}
