package scheduler

import (
	"context"
	"time"

	"github.com/joss/taskmesh/internal/metrics"
)

// RetryOptions configures RetryTask.
type RetryOptions struct {
	// MaxRetries is the attempt budget. Values below 1 fall back to 3.
	MaxRetries int

	// BackoffMillis is the base delay; attempt k (k >= 2) waits
	// backoff * 2^(k-2). Values below 1 fall back to 1000.
	BackoffMillis int
}

// RetryResult is the outcome of a RetryTask call.
type RetryResult struct {
	Result       any    `json:"result,omitempty"`
	Status       Status `json:"status"`
	Attempts     int    `json:"attempts"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// RetryTask re-runs a failed task with exponential backoff, bypassing the
// concurrency gate: retries are isolated recovery actions, not part of the
// original batch. The entry is reset to pending before each attempt. Fails
// with *NotFoundError for unknown ids and *InvalidStateError unless the
// task's current status is failed. After MaxRetries attempts the last error
// is reported in the result, not as a call error.
func (s *Scheduler) RetryTask(ctx context.Context, id string, opts RetryOptions) (*RetryResult, error) {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 3
	}
	if opts.BackoffMillis < 1 {
		opts.BackoffMillis = 1000
	}

	s.mu.Lock()
	e, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return nil, &NotFoundError{ID: id}
	}
	if e.Status != StatusFailed {
		status := e.Status
		s.mu.Unlock()
		return nil, &InvalidStateError{ID: id, Status: status}
	}
	s.mu.Unlock()

	log := s.log.WithTask(id)
	var (
		last     Result
		attempts int
	)

	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		attempts = attempt
		if attempt >= 2 {
			// No delay before the first attempt; afterwards the wait
			// doubles per attempt.
			delay := time.Duration(opts.BackoffMillis) * time.Millisecond << (attempt - 2)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		s.mu.Lock()
		e.Status = StatusPending
		e.CancelRequested = false
		e.Result = nil
		e.ErrorMessage = ""
		s.mu.Unlock()

		metrics.Global().RecordRetry()
		log.Info("retry_attempt", map[string]interface{}{"attempt": attempt})

		last = s.execute(ctx, e)
		if last.Status == StatusCompleted {
			return &RetryResult{
				Result:   last.Result,
				Status:   last.Status,
				Attempts: attempt,
			}, nil
		}
		if last.Status == StatusCancelled {
			break
		}
	}

	return &RetryResult{
		Status:       last.Status,
		Attempts:     attempts,
		ErrorMessage: last.ErrorMessage,
	}, nil
}
