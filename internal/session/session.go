// Package session provides checkpoint persistence for coordination runs.
// A session records which tasks of a plan have completed so a caller can
// resume or audit a run; stores are pluggable behind one interface.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusBlocked   = "blocked"
)

// TaskOutcome is the persisted per-task result of a run.
type TaskOutcome struct {
	Status         string `json:"status"`
	DurationMillis int64  `json:"duration_ms"`
	Error          string `json:"error,omitempty"`
}

// Session is one coordination run checkpoint.
type Session struct {
	ID        string                 `json:"id"`
	PlanID    string                 `json:"plan_id,omitempty"`
	Status    string                 `json:"status"`
	Completed []string               `json:"completed,omitempty"`
	Results   map[string]TaskOutcome `json:"results,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// New creates a running session with a fresh id.
func New(planID string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		PlanID:    planID,
		Status:    StatusRunning,
		Results:   make(map[string]TaskOutcome),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Record marks a task outcome and, when terminal-successful, adds it to the
// completed set.
func (s *Session) Record(taskID string, outcome TaskOutcome) {
	if s.Results == nil {
		s.Results = make(map[string]TaskOutcome)
	}
	s.Results[taskID] = outcome
	if outcome.Status == "completed" {
		for _, id := range s.Completed {
			if id == taskID {
				return
			}
		}
		s.Completed = append(s.Completed, taskID)
	}
}

// CompletedSet returns the completed ids as a set for frontier queries.
func (s *Session) CompletedSet() map[string]bool {
	set := make(map[string]bool, len(s.Completed))
	for _, id := range s.Completed {
		set[id] = true
	}
	return set
}

// Store persists sessions. Implementations must be safe for concurrent use.
type Store interface {
	// Save writes or replaces a session.
	Save(ctx context.Context, s *Session) error
	// Load retrieves a session by id.
	Load(ctx context.Context, id string) (*Session, error)
	// List retrieves all sessions, newest first.
	List(ctx context.Context) ([]*Session, error)
	// Delete removes a session by id.
	Delete(ctx context.Context, id string) error
	// Close releases store resources.
	Close() error
}
