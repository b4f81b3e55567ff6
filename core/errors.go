package core

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrTimeout is passed to timeout callbacks when the timer wins the race.
	ErrTimeout = errors.New("taskruntime: timeout")

	// ErrTaskKilled is recorded for work whose task was force-killed.
	ErrTaskKilled = errors.New("taskruntime: task killed")

	// ErrInvalidLimits is returned by ResourceLimits.Validate.
	ErrInvalidLimits = errors.New("taskruntime: invalid resource limits")
)

// ItemError is the structured failure stored for a pool item.
type ItemError struct {
	ItemID string
	Err    error
	Panic  any    // recovered value, nil for plain errors
	Stack  []byte // set when Panic != nil
}

func (e *ItemError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("pool item %s panicked: %v", e.ItemID, e.Panic)
	}
	return fmt.Sprintf("pool item %s failed: %v", e.ItemID, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// panicError converts a recovered panic value into an error.
func panicError(p any) error {
	if err, ok := p.(error); ok {
		return errors.Wrap(err, "panic")
	}
	return errors.Errorf("panic: %v", p)
}
