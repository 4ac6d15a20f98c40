package bridge

import (
	"errors"
	"fmt"

	"github.com/san-kum/cartpole/internal/cartpole"
)

// Operations understood by the bridge.
const (
	OpActionSpace      = "action_space"
	OpObservationSpace = "observation_space"
	OpReset            = "reset"
	OpStep             = "step"
)

// Error codes carried in Response.Error.
const (
	CodeInvalidArgument = "invalid_argument"
	CodeUninitialized   = "uninitialized"
	CodeBadRequest      = "bad_request"
	CodeUnknownOp       = "unknown_op"
	CodeInternal        = "internal"
)

// Request is one newline-terminated JSON object sent by a controller.
type Request struct {
	ID     uint64 `json:"id"`
	Op     string `json:"op"`
	Action *int   `json:"action,omitempty"`
}

// Response answers exactly one Request and echoes its ID.
type Response struct {
	ID    uint64                 `json:"id"`
	Value int                    `json:"value,omitempty"`
	State *cartpole.EpisodeState `json:"state,omitempty"`
	Error *ErrorMessage          `json:"error,omitempty"`
}

type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RemoteError is a failure reported by the other side of the bridge.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bridge: %s: %s", e.Code, e.Message)
}

// Unwrap maps wire codes back onto the simulator sentinels so callers
// can use errors.Is across the connection.
func (e *RemoteError) Unwrap() error {
	switch e.Code {
	case CodeInvalidArgument:
		return cartpole.ErrInvalidAction
	case CodeUninitialized:
		return cartpole.ErrUninitialized
	default:
		return nil
	}
}

func errorMessage(err error) *ErrorMessage {
	code := CodeInternal
	switch {
	case errors.Is(err, cartpole.ErrInvalidAction):
		code = CodeInvalidArgument
	case errors.Is(err, cartpole.ErrUninitialized):
		code = CodeUninitialized
	}
	return &ErrorMessage{Code: code, Message: err.Error()}
}
