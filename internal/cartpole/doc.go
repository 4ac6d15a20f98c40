// Package cartpole simulates the classic cart-and-pole control problem.
//
// A cart moves on a frictionless track with an inverted pole hinged on
// top. At every step an external controller picks one of two actions and
// the cart is pushed left or right with a fixed force:
//
//   - [EpisodeState]: one snapshot (x, x_dot, theta, theta_dot, reward, done)
//   - [Action]: [PushLeft] or [PushRight]
//   - [Dynamics]: the continuous-time equations of motion
//   - [Simulator]: owns the constants and the current snapshot
//
// # Example
//
//	s := cartpole.New()
//	state := s.Reset()
//	for !state.Done {
//	    state, err = s.Step(cartpole.PushRight)
//	}
//
// # Thread Safety
//
// A Simulator is NOT safe for concurrent use. Give every episode or
// session its own instance.
package cartpole
