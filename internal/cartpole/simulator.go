package cartpole

import (
	"math"

	"gonum.org/v1/gonum/spatial/r1"

	"github.com/san-kum/cartpole/internal/integrators"
	"github.com/san-kum/cartpole/internal/sim"
)

const (
	// ForceMag is the magnitude of the push applied on every step.
	ForceMag = 10.0
	// Tau is the integration timestep in seconds.
	Tau = 0.02

	// AngleThreshold is 12 degrees expressed in radians.
	AngleThreshold = 12 * 2 * math.Pi / 360
	// PositionThreshold bounds the cart position.
	PositionThreshold = 2.4
)

// Phase is the episode state machine position of a Simulator.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseAlive
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseAlive:
		return "alive"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Simulator owns the cart-pole constants and exactly one EpisodeState.
type Simulator struct {
	dyn        *Dynamics
	integrator sim.Integrator

	forceMag       float64
	tau            float64
	angleBounds    r1.Interval
	positionBounds r1.Interval

	initial EpisodeState
	state   EpisodeState
	phase   Phase
	t       float64
}

// Option configures a Simulator at construction time.
type Option func(*Simulator)

// WithInitialState makes Reset restore (x, xDot, theta, thetaDot)
// instead of the canonical snapshot.
func WithInitialState(x, xDot, theta, thetaDot float64) Option {
	return func(s *Simulator) {
		s.initial = EpisodeState{
			X:        x,
			XDot:     xDot,
			Theta:    theta,
			ThetaDot: thetaDot,
			Reward:   1,
		}
	}
}

// WithSubsteps integrates every Tau step in n explicit Euler sub-steps.
// n <= 1 keeps the classic single update.
func WithSubsteps(n int) Option {
	return func(s *Simulator) {
		s.integrator = integrators.NewEuler(integrators.WithSubsteps(n))
	}
}

func New(opts ...Option) *Simulator {
	s := &Simulator{
		dyn:            NewDynamics(),
		integrator:     integrators.NewEuler(),
		forceMag:       ForceMag,
		tau:            Tau,
		angleBounds:    r1.Interval{Min: -AngleThreshold, Max: AngleThreshold},
		positionBounds: r1.Interval{Min: -PositionThreshold, Max: PositionThreshold},
		state:          placeholderState(),
		phase:          PhaseUninitialized,
	}
	s.initial.Reset()
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) ActionSpace() int {
	return NumActions
}

func (s *Simulator) ObservationSpace() int {
	return NumObservations
}

// State returns the current snapshot.
func (s *Simulator) State() EpisodeState {
	return s.state
}

func (s *Simulator) Phase() Phase {
	return s.phase
}

// Reset restores the initial snapshot and returns it.
func (s *Simulator) Reset() EpisodeState {
	s.state = s.initial
	s.phase = PhaseAlive
	s.t = 0
	return s.state
}

// Step advances the physics by one timestep under the given action.
// Stepping a terminated episode is allowed and keeps integrating from
// the terminal state; callers decide when to Reset.
func (s *Simulator) Step(action Action) (EpisodeState, error) {
	if s.phase == PhaseUninitialized {
		return s.state, ErrUninitialized
	}
	if err := action.Validate(); err != nil {
		return s.state, err
	}

	x := s.state.Observation()
	u := sim.Control{action.Force(s.forceMag)}
	next := s.integrator.Step(s.dyn, x, u, s.t, s.tau)
	s.t += s.tau

	done := outside(next[0], s.positionBounds) || outside(next[2], s.angleBounds)
	reward := 1
	if done {
		reward = 0
	}

	s.state = EpisodeState{
		X:        next[0],
		XDot:     next[1],
		Theta:    next[2],
		ThetaDot: next[3],
		Reward:   reward,
		Done:     done,
	}
	if done {
		s.phase = PhaseDone
	} else {
		s.phase = PhaseAlive
	}
	return s.state, nil
}

func outside(v float64, bounds r1.Interval) bool {
	return v < bounds.Min || v > bounds.Max
}
