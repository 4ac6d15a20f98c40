package controllers

import "github.com/san-kum/cartpole/internal/cartpole"

// PID acts on the pole angle. The derivative term uses theta_dot from the
// snapshot and the integral accumulates over the fixed timestep.
type PID struct {
	Kp       float64
	Ki       float64
	Kd       float64
	Target   float64
	integral float64
}

func NewPID(kp, ki, kd, target float64) *PID {
	return &PID{
		Kp:     kp,
		Ki:     ki,
		Kd:     kd,
		Target: target,
	}
}

// Signal returns the raw control value for a snapshot and updates the
// integral term.
func (p *PID) Signal(s cartpole.EpisodeState) float64 {
	err := s.Theta - p.Target
	p.integral += err * cartpole.Tau
	return p.Kp*err + p.Ki*p.integral + p.Kd*s.ThetaDot
}

func (p *PID) Act(s cartpole.EpisodeState) cartpole.Action {
	return actionFor(p.Signal(s))
}

func (p *PID) Reset() {
	p.integral = 0
}
