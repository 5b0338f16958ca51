package launcher

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyLaunched is returned by Register and Launch once the
	// launcher has left the collecting state.
	ErrAlreadyLaunched = errors.New("launcher already launched")

	// ErrDuplicateName is returned when a task name is registered twice.
	// The registry keeps the first entry.
	ErrDuplicateName = errors.New("task already registered")

	ErrNameEmpty   = errors.New("task name must not be empty")
	ErrNilRunnable = errors.New("task runnable must not be nil")
)

// LaunchFailureError reports that a single task could not be dispatched.
// Launch logs it and moves on to the remaining tasks; it is never
// returned to the Launch caller.
type LaunchFailureError struct {
	Name string
	Err  error
}

func (e *LaunchFailureError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Name, e.Err)
}

func (e *LaunchFailureError) Unwrap() error { return e.Err }
