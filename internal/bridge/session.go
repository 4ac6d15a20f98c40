package bridge

import (
	"fmt"

	"github.com/san-kum/cartpole/internal/cartpole"
)

// session owns the simulator of one connection. Requests on a session
// are handled one at a time by the connection goroutine.
type session struct {
	id    string
	sim   *cartpole.Simulator
	steps int
}

func newSession(id string, opts ...cartpole.Option) *session {
	return &session{id: id, sim: cartpole.New(opts...)}
}

func (s *session) handle(req Request) Response {
	resp := Response{ID: req.ID}

	switch req.Op {
	case OpActionSpace:
		resp.Value = s.sim.ActionSpace()
	case OpObservationSpace:
		resp.Value = s.sim.ObservationSpace()
	case OpReset:
		st := s.sim.Reset()
		resp.State = &st
	case OpStep:
		if req.Action == nil {
			resp.Error = &ErrorMessage{Code: CodeBadRequest, Message: "step requires an action"}
			return resp
		}
		st, err := s.sim.Step(cartpole.Action(*req.Action))
		if err != nil {
			resp.Error = errorMessage(err)
			return resp
		}
		s.steps++
		resp.State = &st
	default:
		resp.Error = &ErrorMessage{Code: CodeUnknownOp, Message: fmt.Sprintf("unknown op %q", req.Op)}
	}

	return resp
}
