package scheduler

import (
	"time"
)

// StatusInfo is a point-in-time view of one registry entry.
type StatusInfo struct {
	Status         Status    `json:"status"`
	Progress       int       `json:"progress"`
	StartedAt      time.Time `json:"started_at,omitempty"`
	DurationMillis int64     `json:"duration_ms"`
}

// CancelTask requests cooperative cancellation. It succeeds only while the
// task is pending or running; the reported outcome is then guaranteed to be
// cancelled, though in-flight work is not forcibly stopped. Returns false
// for unknown ids and tasks already in a terminal state.
func (s *Scheduler) CancelTask(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tasks[id]
	if !ok || e.Status.Terminal() {
		return false
	}

	e.CancelRequested = true
	if e.Status == StatusRunning && e.cancel != nil {
		// Propagate the signal into the work's context so cooperative
		// workloads can exit early.
		e.cancel()
	}

	s.log.WithTask(id).Info("cancel_requested", map[string]interface{}{
		"status": string(e.Status),
	})
	return true
}

// TaskStatus returns the current state of a task, or nil for unknown ids.
// Progress is a coarse heuristic: 100 for any terminal state, and
// min(95, elapsed/timeout*100) while running.
func (s *Scheduler) TaskStatus(id string) *StatusInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tasks[id]
	if !ok {
		return nil
	}

	info := &StatusInfo{
		Status:    e.Status,
		StartedAt: e.StartedAt,
	}

	switch {
	case e.Status.Terminal():
		info.Progress = 100
		if !e.StartedAt.IsZero() {
			info.DurationMillis = e.EndedAt.Sub(e.StartedAt).Milliseconds()
		}
	case e.Status == StatusRunning:
		elapsed := time.Since(e.StartedAt)
		info.DurationMillis = elapsed.Milliseconds()
		timeout := time.Duration(e.TimeoutMillis) * time.Millisecond
		pct := int(elapsed * 100 / timeout)
		if pct > 95 {
			pct = 95
		}
		info.Progress = pct
	}

	return info
}

// Stats recomputes aggregate counts from the registry. The counts are never
// kept as independently drifting counters, so they always match the
// registry's actual contents.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

func (s *Scheduler) statsLocked() Stats {
	var st Stats
	for _, e := range s.tasks {
		switch e.Status {
		case StatusPending:
			st.Queued++
		case StatusRunning:
			st.Running++
		case StatusCompleted:
			st.Completed++
		case StatusFailed:
			st.Failed++
		}
		if e.Status.Terminal() && !e.StartedAt.IsZero() {
			st.TotalElapsedMillis += e.EndedAt.Sub(e.StartedAt).Milliseconds()
		}
	}
	return st
}

// ClearOptions configures ClearTasks.
type ClearOptions struct {
	// OnlyCompleted restricts removal to completed entries.
	OnlyCompleted bool

	// Force allows removing running entries too.
	Force bool
}

// ClearTasks removes registry entries and returns how many were removed.
// Running tasks are protected unless Force is set.
func (s *Scheduler) ClearTasks(opts ClearOptions) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.tasks {
		if e.Status == StatusRunning && !opts.Force {
			continue
		}
		if opts.OnlyCompleted && e.Status != StatusCompleted {
			continue
		}
		delete(s.tasks, id)
		removed++
	}

	if removed > 0 {
		s.log.Info("tasks_cleared", map[string]interface{}{
			"removed":   removed,
			"remaining": len(s.tasks),
		})
	}
	return removed
}

// Len returns the number of registry entries.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
