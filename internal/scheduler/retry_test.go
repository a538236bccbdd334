package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

// failNTimes returns a task that fails its first n invocations.
func failNTimes(id string, n int, calls *atomic.Int32) Task {
	return Task{
		ID: id,
		Run: func(ctx context.Context) (any, error) {
			c := calls.Add(1)
			if int(c) <= n {
				return nil, fmt.Errorf("attempt %d failed", c)
			}
			return "recovered", nil
		},
	}
}

func scheduleFailing(t *testing.T, s *Scheduler, task Task) {
	t.Helper()
	results, err := s.ScheduleTasks(context.Background(), []Task{task}, Options{})
	if err != nil {
		t.Fatalf("ScheduleTasks: %v", err)
	}
	if results[0].Status != StatusFailed {
		t.Fatalf("setup: expected initial failure, got %s", results[0].Status)
	}
}

func TestRetryTaskUnknownID(t *testing.T) {
	s := New()

	_, err := s.RetryTask(context.Background(), "ghost", RetryOptions{})
	if !IsNotFound(err) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRetryTaskInvalidState(t *testing.T) {
	s := New()

	_, err := s.ScheduleTasks(context.Background(), []Task{
		{ID: "fine", Run: func(ctx context.Context) (any, error) { return nil, nil }},
	}, Options{})
	if err != nil {
		t.Fatalf("ScheduleTasks: %v", err)
	}

	_, err = s.RetryTask(context.Background(), "fine", RetryOptions{})
	if !IsInvalidState(err) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestRetryTaskEventualSuccess(t *testing.T) {
	s := New()

	var calls atomic.Int32
	// Fails the initial run plus one retry, succeeds on the second retry.
	scheduleFailing(t, s, failNTimes("flaky", 2, &calls))

	res, err := s.RetryTask(context.Background(), "flaky", RetryOptions{
		MaxRetries:    3,
		BackoffMillis: 1,
	})
	if err != nil {
		t.Fatalf("RetryTask: %v", err)
	}

	if res.Status != StatusCompleted {
		t.Errorf("expected completed, got %s (%s)", res.Status, res.ErrorMessage)
	}
	if res.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", res.Attempts)
	}
	if res.Result != "recovered" {
		t.Errorf("unexpected result %v", res.Result)
	}

	if info := s.TaskStatus("flaky"); info == nil || info.Status != StatusCompleted {
		t.Error("registry entry should reflect the successful retry")
	}
}

func TestRetryTaskExhaustsBudget(t *testing.T) {
	s := New()

	var calls atomic.Int32
	scheduleFailing(t, s, failNTimes("doomed", 100, &calls))

	res, err := s.RetryTask(context.Background(), "doomed", RetryOptions{
		MaxRetries:    3,
		BackoffMillis: 1,
	})
	if err != nil {
		t.Fatalf("RetryTask: %v", err)
	}

	if res.Status != StatusFailed {
		t.Errorf("expected failed, got %s", res.Status)
	}
	if res.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", res.Attempts)
	}
	if res.ErrorMessage == "" {
		t.Error("expected last error to be reported")
	}
	// Initial run + 3 retries.
	if calls.Load() != 4 {
		t.Errorf("expected 4 invocations, got %d", calls.Load())
	}
}

func TestRetryBackoffDoubles(t *testing.T) {
	s := New()

	var calls atomic.Int32
	scheduleFailing(t, s, failNTimes("slow-recovery", 100, &calls))

	start := time.Now()
	_, err := s.RetryTask(context.Background(), "slow-recovery", RetryOptions{
		MaxRetries:    3,
		BackoffMillis: 20,
	})
	if err != nil {
		t.Fatalf("RetryTask: %v", err)
	}
	elapsed := time.Since(start)

	// No delay before attempt 1, 20ms before attempt 2, 40ms before attempt 3.
	if elapsed < 60*time.Millisecond {
		t.Errorf("expected at least 60ms of backoff, got %v", elapsed)
	}
}

func TestRetryRespectsContext(t *testing.T) {
	s := New()

	var calls atomic.Int32
	scheduleFailing(t, s, failNTimes("hopeless", 100, &calls))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.RetryTask(ctx, "hopeless", RetryOptions{
		MaxRetries:    5,
		BackoffMillis: 100,
	})
	if err == nil {
		t.Fatal("expected context error during backoff")
	}
}
