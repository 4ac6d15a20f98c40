package cartpole

import "errors"

var (
	// ErrInvalidAction indicates an action outside {PushLeft, PushRight}.
	ErrInvalidAction = errors.New("cartpole: invalid action")

	// ErrUninitialized indicates Step was called before the first Reset.
	ErrUninitialized = errors.New("cartpole: step called before reset")
)
