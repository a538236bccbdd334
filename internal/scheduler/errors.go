package scheduler

import (
	"errors"
	"fmt"
)

// Common scheduler errors.
var (
	// ErrNotFound indicates the task id has no registry entry.
	ErrNotFound = errors.New("task not found")

	// ErrInvalidState indicates an operation was applied to a task in the
	// wrong lifecycle state, e.g. retrying a task that never failed.
	ErrInvalidState = errors.New("invalid task state")

	// ErrTimeout indicates a task's work exceeded its allotted time.
	ErrTimeout = errors.New("task timed out")
)

// NotFoundError wraps ErrNotFound with the task id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// InvalidStateError wraps ErrInvalidState with the task id and its state.
type InvalidStateError struct {
	ID     string
	Status Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("task %s is %s: %v", e.ID, e.Status, ErrInvalidState)
}

func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// TimeoutError wraps ErrTimeout with the task id and configured limit.
type TimeoutError struct {
	ID            string
	TimeoutMillis int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %s timed out after %dms", e.ID, e.TimeoutMillis)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// IsNotFound checks if an error reports an unknown task id.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidState checks if an error reports a wrong lifecycle state.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsTimeout checks if an error reports an exceeded time limit.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
