// Package scheduler executes unordered batches of tasks under a global
// concurrency ceiling, tracking priority, timeout, cancellation and retry.
//
// A Scheduler owns one registry of task metadata for the lifetime of a
// scheduling session. It knows nothing about dependency graphs; callers
// combine it with depgraph by scheduling successive ready frontiers
// (see coordinator).
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/joss/taskmesh/internal/logging"
	"github.com/joss/taskmesh/internal/metrics"
)

// Status is the lifecycle state of a scheduled task. Transitions are
// monotonic pending -> running -> terminal, except that a retry resets a
// failed entry back to pending.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// WorkFunc is one unit of work. The context carries the task's timeout and
// cancellation signal; cooperative workloads should observe it, but the
// contract only guarantees the reported outcome, never forced termination.
type WorkFunc func(ctx context.Context) (any, error)

// Task is the execution input: a callable plus scheduling attributes.
type Task struct {
	ID            string
	Priority      int // higher runs first at dispatch time
	TimeoutMillis int // 0 means use the batch default
	Run           WorkFunc
}

// Metadata is the scheduler's mutable per-task record. Entries persist in
// the registry until ClearTasks removes them.
type Metadata struct {
	ID              string
	Priority        int
	TimeoutMillis   int
	Status          Status
	StartedAt       time.Time
	EndedAt         time.Time
	Result          any
	ErrorMessage    string
	CancelRequested bool
	OriginalIndex   int

	task   Task
	cancel context.CancelFunc
}

// Options configures one ScheduleTasks call.
type Options struct {
	// MaxConcurrency bounds how many tasks may be running at once.
	// Values below 1 fall back to 4.
	MaxConcurrency int

	// TimeoutMillis is the default per-task timeout for tasks that do not
	// carry their own. Values below 1 fall back to 30000.
	TimeoutMillis int

	// CompletionOrder returns results in the order tasks settled instead of
	// the input order. The zero value preserves input order.
	CompletionOrder bool
}

// Result is the per-task outcome of a ScheduleTasks call.
type Result struct {
	ID             string `json:"id"`
	Result         any    `json:"result,omitempty"`
	Status         Status `json:"status"`
	DurationMillis int64  `json:"duration_ms"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// Stats are aggregate counts derived by scanning the registry.
type Stats struct {
	Queued             int   `json:"queued"`
	Running            int   `json:"running"`
	Completed          int   `json:"completed"`
	Failed             int   `json:"failed"`
	TotalElapsedMillis int64 `json:"total_elapsed_ms"`
}

// Scheduler owns a task metadata registry and executes batches against it.
// All registry mutations are serialized by one mutex; there is no implicit
// global state shared between instances.
type Scheduler struct {
	mu    sync.Mutex
	tasks map[string]*Metadata

	log *logging.Logger
}

// New creates an empty scheduler instance.
func New() *Scheduler {
	return &Scheduler{
		tasks: make(map[string]*Metadata),
		log:   logging.New("scheduler"),
	}
}

type outcome struct {
	res any
	err error
}

// ScheduleTasks executes a batch under the concurrency gate and returns one
// outcome per task. Dispatch order is by descending priority (stable on the
// input order); completion order is unconstrained. Per-task failures and
// timeouts never abort sibling tasks.
func (s *Scheduler) ScheduleTasks(ctx context.Context, tasks []Task, opts Options) ([]Result, error) {
	if len(tasks) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 4
	}
	if opts.TimeoutMillis < 1 {
		opts.TimeoutMillis = 30000
	}

	entries := make([]*Metadata, len(tasks))
	s.mu.Lock()
	for i, t := range tasks {
		timeout := t.TimeoutMillis
		if timeout < 1 {
			timeout = opts.TimeoutMillis
		}
		e := &Metadata{
			ID:            t.ID,
			Priority:      t.Priority,
			TimeoutMillis: timeout,
			Status:        StatusPending,
			OriginalIndex: i,
			task:          t,
		}
		// Re-scheduling an id replaces its stale registry entry.
		s.tasks[t.ID] = e
		entries[i] = e
	}
	s.mu.Unlock()

	// Stable sort by descending priority decides dispatch order only.
	dispatch := make([]*Metadata, len(entries))
	copy(dispatch, entries)
	sort.SliceStable(dispatch, func(i, j int) bool {
		return dispatch[i].Priority > dispatch[j].Priority
	})

	queue := make(chan *Metadata, len(dispatch))
	for _, e := range dispatch {
		queue <- e
	}
	close(queue)

	// Fixed worker pool instead of filtering a shared in-flight list:
	// each worker independently races its own task against its timeout,
	// so no collection is mutated while being scanned.
	workers := opts.MaxConcurrency
	if workers > len(dispatch) {
		workers = len(dispatch)
	}

	var (
		resMu     sync.Mutex
		completed []Result
		wg        sync.WaitGroup
	)

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for e := range queue {
				r := s.execute(ctx, e)
				resMu.Lock()
				completed = append(completed, r)
				resMu.Unlock()
			}
		}()
	}
	wg.Wait()

	if opts.CompletionOrder {
		return completed, nil
	}

	// Re-index by original input position.
	ordered := make([]Result, len(entries))
	for i, e := range entries {
		for _, r := range completed {
			if r.ID == e.ID {
				ordered[i] = r
				break
			}
		}
	}
	return ordered, nil
}

// execute runs one task to a terminal state and returns its outcome.
// Shared by the batch worker pool and by RetryTask.
func (s *Scheduler) execute(ctx context.Context, e *Metadata) Result {
	s.mu.Lock()
	if e.CancelRequested {
		r := s.settleLocked(e, StatusCancelled, nil, "cancelled before start")
		s.mu.Unlock()
		return r
	}
	e.Status = StatusRunning
	e.StartedAt = time.Now()
	e.EndedAt = time.Time{}

	timeout := time.Duration(e.TimeoutMillis) * time.Millisecond
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	e.cancel = cancel
	run := e.task.Run
	s.mu.Unlock()
	defer cancel()

	out := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				out <- outcome{err: fmt.Errorf("task panicked: %v", r)}
			}
		}()
		res, err := run(taskCtx)
		out <- outcome{res: res, err: err}
	}()

	var (
		settled  outcome
		timedOut bool
	)
	select {
	case settled = <-out:
	case <-taskCtx.Done():
		// The work is abandoned, not forcibly terminated; a cooperative
		// WorkFunc observes taskCtx and exits early.
		if errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
			timedOut = true
			settled.err = &TimeoutError{ID: e.ID, TimeoutMillis: e.TimeoutMillis}
		} else {
			settled.err = taskCtx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e.cancel = nil

	var r Result
	switch {
	case e.CancelRequested, !timedOut && errors.Is(settled.err, context.Canceled):
		// A cancelled task's eventual result or error is discarded.
		r = s.settleLocked(e, StatusCancelled, nil, "cancelled")
	case settled.err != nil:
		r = s.settleLocked(e, StatusFailed, nil, settled.err.Error())
	default:
		r = s.settleLocked(e, StatusCompleted, settled.res, "")
	}

	metrics.Global().RecordSettled(string(e.Status), timedOut)
	log := s.log.WithTask(e.ID)
	if run := logging.RunIDFromContext(ctx); run != "" {
		log = log.WithRun(run)
	}
	log.Debug("task_settled", map[string]interface{}{
		"status":      string(e.Status),
		"duration_ms": r.DurationMillis,
	})
	return r
}

// settleLocked records a terminal state. Caller holds s.mu.
func (s *Scheduler) settleLocked(e *Metadata, status Status, result any, errMsg string) Result {
	e.Status = status
	e.EndedAt = time.Now()
	e.Result = result
	e.ErrorMessage = errMsg

	var duration int64
	if !e.StartedAt.IsZero() {
		duration = e.EndedAt.Sub(e.StartedAt).Milliseconds()
	}

	return Result{
		ID:             e.ID,
		Result:         result,
		Status:         status,
		DurationMillis: duration,
		ErrorMessage:   errMsg,
	}
}

// CreateTaskBatches partitions tasks into contiguous slices of batchSize
// (default 3), preserving input order. Pure helper, no execution side
// effects.
func CreateTaskBatches(tasks []Task, batchSize int) [][]Task {
	if batchSize < 1 {
		batchSize = 3
	}
	var batches [][]Task
	for start := 0; start < len(tasks); start += batchSize {
		end := start + batchSize
		if end > len(tasks) {
			end = len(tasks)
		}
		batches = append(batches, tasks[start:end])
	}
	return batches
}
