package cartpole

import "fmt"

// Action is a discrete control input.
type Action int

const (
	PushLeft  Action = 0
	PushRight Action = 1
)

// NumActions is the size of the action space.
const NumActions = 2

// ParseAction converts a raw integer into an Action.
func ParseAction(v int) (Action, error) {
	a := Action(v)
	if err := a.Validate(); err != nil {
		return 0, err
	}
	return a, nil
}

func (a Action) Validate() error {
	if a != PushLeft && a != PushRight {
		return fmt.Errorf("%w: %d (expected 0 or 1)", ErrInvalidAction, int(a))
	}
	return nil
}

// Force returns the signed force for a push of the given magnitude.
func (a Action) Force(magnitude float64) float64 {
	if a == PushRight {
		return magnitude
	}
	return -magnitude
}

func (a Action) String() string {
	switch a {
	case PushLeft:
		return "left"
	case PushRight:
		return "right"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}
