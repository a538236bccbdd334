// Package metrics provides a simple Prometheus-compatible metrics endpoint.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds runtime metrics for taskmesh
type Metrics struct {
	// Scheduler activity
	TasksScheduled atomic.Int64
	TasksCompleted atomic.Int64
	TasksFailed    atomic.Int64
	TasksCancelled atomic.Int64
	TaskTimeouts   atomic.Int64
	RetryAttempts  atomic.Int64

	// Coordinator activity
	WavesDispatched atomic.Int64
	RunsStarted     atomic.Int64
	RunsFailed      atomic.Int64

	// Checkpointing
	CheckpointWrites      atomic.Int64
	CheckpointWriteErrors atomic.Int64

	// Timing (last operation duration in ms)
	LastWaveDurationMs atomic.Int64
	LastRunDurationMs  atomic.Int64

	startTime time.Time
}

var (
	global     *Metrics
	globalOnce sync.Once
)

// Global returns the global metrics instance
func Global() *Metrics {
	globalOnce.Do(func() {
		global = &Metrics{
			startTime: time.Now(),
		}
	})
	return global
}

// RecordSettled records one settled task by terminal status.
func (m *Metrics) RecordSettled(status string, timedOut bool) {
	switch status {
	case "completed":
		m.TasksCompleted.Add(1)
	case "failed":
		m.TasksFailed.Add(1)
		if timedOut {
			m.TaskTimeouts.Add(1)
		}
	case "cancelled":
		m.TasksCancelled.Add(1)
	}
}

// RecordWave records a dispatched frontier wave.
func (m *Metrics) RecordWave(size int, durationMs int64) {
	m.WavesDispatched.Add(1)
	m.TasksScheduled.Add(int64(size))
	m.LastWaveDurationMs.Store(durationMs)
}

// RecordRun records a completed coordination run. Run starts are counted
// separately when the run begins.
func (m *Metrics) RecordRun(success bool, durationMs int64) {
	if !success {
		m.RunsFailed.Add(1)
	}
	m.LastRunDurationMs.Store(durationMs)
}

// RecordRetry records one retry attempt.
func (m *Metrics) RecordRetry() {
	m.RetryAttempts.Add(1)
}

// RecordCheckpoint records a checkpoint write attempt.
func (m *Metrics) RecordCheckpoint(success bool) {
	m.CheckpointWrites.Add(1)
	if !success {
		m.CheckpointWriteErrors.Add(1)
	}
}

// Handler returns an HTTP handler for /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		uptime := time.Since(m.startTime).Seconds()

		fmt.Fprintf(w, "# HELP taskmesh_uptime_seconds Time since taskmesh started\n")
		fmt.Fprintf(w, "# TYPE taskmesh_uptime_seconds gauge\n")
		fmt.Fprintf(w, "taskmesh_uptime_seconds %.2f\n\n", uptime)

		counter := func(name, help string, v int64) {
			fmt.Fprintf(w, "# HELP %s %s\n", name, help)
			fmt.Fprintf(w, "# TYPE %s counter\n", name)
			fmt.Fprintf(w, "%s %d\n\n", name, v)
		}

		counter("taskmesh_tasks_scheduled_total", "Total tasks dispatched to the scheduler", m.TasksScheduled.Load())
		counter("taskmesh_tasks_completed_total", "Total tasks completed successfully", m.TasksCompleted.Load())
		counter("taskmesh_tasks_failed_total", "Total tasks failed", m.TasksFailed.Load())
		counter("taskmesh_tasks_cancelled_total", "Total tasks cancelled", m.TasksCancelled.Load())
		counter("taskmesh_task_timeouts_total", "Total tasks failed by timeout", m.TaskTimeouts.Load())
		counter("taskmesh_retry_attempts_total", "Total retry attempts", m.RetryAttempts.Load())
		counter("taskmesh_waves_dispatched_total", "Total frontier waves dispatched", m.WavesDispatched.Load())
		counter("taskmesh_runs_started_total", "Total coordination runs started", m.RunsStarted.Load())
		counter("taskmesh_runs_failed_total", "Total coordination runs failed", m.RunsFailed.Load())
		counter("taskmesh_checkpoint_writes_total", "Total checkpoint write attempts", m.CheckpointWrites.Load())
		counter("taskmesh_checkpoint_write_errors_total", "Total checkpoint write failures", m.CheckpointWriteErrors.Load())

		fmt.Fprintf(w, "# HELP taskmesh_last_wave_duration_ms Last frontier wave duration\n")
		fmt.Fprintf(w, "# TYPE taskmesh_last_wave_duration_ms gauge\n")
		fmt.Fprintf(w, "taskmesh_last_wave_duration_ms %d\n\n", m.LastWaveDurationMs.Load())

		fmt.Fprintf(w, "# HELP taskmesh_last_run_duration_ms Last coordination run duration\n")
		fmt.Fprintf(w, "# TYPE taskmesh_last_run_duration_ms gauge\n")
		fmt.Fprintf(w, "taskmesh_last_run_duration_ms %d\n", m.LastRunDurationMs.Load())
	}
}

// Server wraps the metrics HTTP server
type Server struct {
	srv *http.Server
}

// NewServer creates a metrics server on the given address.
func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", m.Handler())

	return &Server{
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start begins serving metrics in a background goroutine.
func (s *Server) Start() {
	go func() {
		_ = s.srv.ListenAndServe()
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
