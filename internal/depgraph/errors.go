package depgraph

import (
	"errors"
	"fmt"
	"strings"
)

// Common graph errors.
var (
	// ErrDuplicateID indicates two task specs share the same id.
	ErrDuplicateID = errors.New("duplicate task id")

	// ErrCycle indicates the graph contains a dependency cycle.
	ErrCycle = errors.New("dependency cycle detected")

	// ErrNotFound indicates the queried id has no node in the graph.
	ErrNotFound = errors.New("node not found")
)

// DuplicateIDError wraps ErrDuplicateID with the offending id.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate task id: %s", e.ID)
}

func (e *DuplicateIDError) Unwrap() error {
	return ErrDuplicateID
}

// CycleError wraps ErrCycle with the detected cycle path.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrCycle
}

// NotFoundError wraps ErrNotFound with the queried id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("node not found: %s", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// IsCycle checks if an error reports a dependency cycle.
func IsCycle(err error) bool {
	return errors.Is(err, ErrCycle)
}

// IsNotFound checks if an error reports an unknown node id.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
