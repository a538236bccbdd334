// Package coordinator drives full plan runs: it walks the dependency graph
// in waves of ready tasks, executes each wave through the scheduler, and
// checkpoints progress after every wave.
package coordinator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joss/taskmesh/internal/depgraph"
	"github.com/joss/taskmesh/internal/exec"
	"github.com/joss/taskmesh/internal/gitops"
	"github.com/joss/taskmesh/internal/graphstore"
	"github.com/joss/taskmesh/internal/logging"
	"github.com/joss/taskmesh/internal/metrics"
	"github.com/joss/taskmesh/internal/plan"
	"github.com/joss/taskmesh/internal/scheduler"
	"github.com/joss/taskmesh/internal/session"
)

// Options configures a coordinator.
type Options struct {
	// MaxConcurrency bounds parallel tasks per wave. Below 1 uses the
	// scheduler default.
	MaxConcurrency int

	// TimeoutMillis is the default per-task timeout. Below 1 uses the
	// scheduler default.
	TimeoutMillis int

	// Retry, when set, re-runs failed tasks with backoff before their
	// dependents are given up on.
	Retry *scheduler.RetryOptions

	// Store checkpoints the session after every wave when non-nil.
	Store session.Store

	// Exporter mirrors the graph and outcomes into a graph database
	// when non-nil.
	Exporter *graphstore.Exporter

	// Runner executes task commands. Nil uses the OS runner.
	Runner exec.Runner

	// Worktrees isolates tasks marked for isolation in their own git
	// worktree when non-nil.
	Worktrees *gitops.Manager

	// Resume continues a previous session instead of starting fresh.
	Resume *session.Session

	// OnWaveStart and OnTaskSettled observe progress; both may be nil.
	OnWaveStart   func(wave int, ids []string)
	OnTaskSettled func(res scheduler.Result)
}

// RunResult is the outcome of one full plan run.
type RunResult struct {
	Session *session.Session
	Results map[string]scheduler.Result
	// Skipped lists tasks never attempted because a dependency failed.
	Skipped []string
	Waves   int
}

// Coordinator executes one plan document.
type Coordinator struct {
	doc   *plan.Document
	graph *depgraph.Graph
	opts  Options
	sched *scheduler.Scheduler
	log   *logging.Logger
}

// New builds a coordinator for a plan, validating its graph up front. A plan
// with missing dependencies or cycles never starts executing.
func New(doc *plan.Document, opts Options) (*Coordinator, error) {
	g, err := doc.Graph()
	if err != nil {
		return nil, fmt.Errorf("building plan graph: %w", err)
	}
	if v := g.Validate(); !v.Valid {
		return nil, fmt.Errorf("invalid plan %s: %s", doc.PlanID, strings.Join(v.Errors, "; "))
	}
	if opts.Runner == nil {
		opts.Runner = exec.NewOSRunner()
	}

	return &Coordinator{
		doc:   doc,
		graph: g,
		opts:  opts,
		sched: scheduler.New(),
		log:   logging.New("coordinator"),
	}, nil
}

// Scheduler exposes the underlying scheduler for status queries while a
// run is in flight.
func (c *Coordinator) Scheduler() *scheduler.Scheduler {
	return c.sched
}

// Graph returns the validated plan graph.
func (c *Coordinator) Graph() *depgraph.Graph {
	return c.graph
}

// Run executes the plan to completion. Tasks run in waves: every task whose
// dependencies are settled successfully is dispatched together, bounded by
// MaxConcurrency. When a task fails, its transitive dependents are skipped
// rather than run against a broken precondition; unrelated subgraphs keep
// going. The returned error is non-nil only for infrastructure failures,
// not for task failures, which are reported in the RunResult.
func (c *Coordinator) Run(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	m := metrics.Global()
	m.RunsStarted.Add(1)

	sess := c.opts.Resume
	if sess == nil {
		sess = session.New(c.doc.PlanID)
	}
	// Downstream components (scheduler, task work funcs) pick the run id
	// off the context so their log events correlate with this run.
	ctx = logging.WithRunID(ctx, sess.ID)
	log := c.log.WithRun(sess.ID)
	log.Info("run started", map[string]any{"plan": c.doc.PlanID, "tasks": c.graph.Len()})

	if c.opts.Exporter != nil {
		if err := c.opts.Exporter.ExportGraph(ctx, c.doc.PlanID, c.graph); err != nil {
			log.Warn("graph export failed", nil, err)
		}
	}

	out := &RunResult{
		Session: sess,
		Results: make(map[string]scheduler.Result),
	}

	completed := sess.CompletedSet()
	skipped := make(map[string]bool)
	failed := make(map[string]bool)

	for {
		if err := ctx.Err(); err != nil {
			c.finish(ctx, sess, out, session.StatusFailed, start)
			return out, fmt.Errorf("run interrupted: %w", err)
		}

		frontier := c.frontier(completed, skipped, failed)
		if len(frontier) == 0 {
			break
		}

		out.Waves++
		if c.opts.OnWaveStart != nil {
			c.opts.OnWaveStart(out.Waves, frontier)
		}
		log.Info("wave dispatched", map[string]any{"wave": out.Waves, "tasks": len(frontier)})

		waveStart := time.Now()
		results, err := c.runWave(ctx, frontier)
		if err != nil {
			c.finish(ctx, sess, out, session.StatusFailed, start)
			return out, err
		}
		m.RecordWave(len(frontier), time.Since(waveStart).Milliseconds())

		for _, res := range results {
			res = c.maybeRetry(ctx, res)
			out.Results[res.ID] = res
			sess.Record(res.ID, session.TaskOutcome{
				Status:         string(res.Status),
				DurationMillis: res.DurationMillis,
				Error:          res.ErrorMessage,
			})

			switch res.Status {
			case scheduler.StatusCompleted:
				completed[res.ID] = true
			default:
				failed[res.ID] = true
				c.skipDependents(res.ID, skipped, out)
			}

			if c.opts.OnTaskSettled != nil {
				c.opts.OnTaskSettled(res)
			}
			if c.opts.Exporter != nil {
				if err := c.opts.Exporter.ExportOutcome(ctx, sess.ID, c.doc.PlanID, res); err != nil {
					log.Warn("outcome export failed", map[string]any{"task": res.ID}, err)
				}
			}
		}

		c.checkpoint(ctx, sess)
	}

	status := session.StatusCompleted
	if len(failed) > 0 {
		status = session.StatusFailed
	} else if len(skipped) > 0 {
		status = session.StatusBlocked
	}
	c.finish(ctx, sess, out, status, start)

	log.TimedEvent("run finished", start, map[string]any{
		"status":  status,
		"waves":   out.Waves,
		"settled": len(out.Results),
		"skipped": len(out.Skipped),
	})
	return out, nil
}

// frontier returns ready tasks that have not already been attempted,
// skipped, or failed.
func (c *Coordinator) frontier(completed, skipped, failed map[string]bool) []string {
	var frontier []string
	for _, id := range c.graph.ReadyTasks(completed) {
		if skipped[id] || failed[id] {
			continue
		}
		frontier = append(frontier, id)
	}
	return frontier
}

// runWave executes one frontier through the scheduler.
func (c *Coordinator) runWave(ctx context.Context, ids []string) ([]scheduler.Result, error) {
	tasks := make([]scheduler.Task, 0, len(ids))
	cleanups := make([]func(), 0)
	defer func() {
		for _, fn := range cleanups {
			fn()
		}
	}()

	for _, id := range ids {
		pt := c.doc.Task(id)
		if pt == nil {
			return nil, fmt.Errorf("plan %s: graph references unknown task %s", c.doc.PlanID, id)
		}

		dir := ""
		if pt.Isolate && c.opts.Worktrees != nil {
			wt, err := c.opts.Worktrees.Create(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("isolating task %s: %w", id, err)
			}
			dir = wt.Path
			cleanups = append(cleanups, func() {
				if err := c.opts.Worktrees.Remove(context.Background(), wt, true); err != nil {
					c.log.Warn("worktree cleanup failed", map[string]any{"task": wt.Branch}, err)
				}
			})
		}

		tasks = append(tasks, c.doc.SchedulerTask(pt, c.opts.Runner, dir))
	}

	return c.sched.ScheduleTasks(ctx, tasks, scheduler.Options{
		MaxConcurrency: c.opts.MaxConcurrency,
		TimeoutMillis:  c.opts.TimeoutMillis,
	})
}

// maybeRetry re-runs a failed task when retry is configured, folding the
// retry outcome back into the wave result.
func (c *Coordinator) maybeRetry(ctx context.Context, res scheduler.Result) scheduler.Result {
	if c.opts.Retry == nil || res.Status != scheduler.StatusFailed {
		return res
	}

	rr, err := c.sched.RetryTask(ctx, res.ID, *c.opts.Retry)
	if err != nil {
		c.log.Warn("retry failed to start", map[string]any{"task": res.ID}, err)
		return res
	}

	res.Status = rr.Status
	res.Result = rr.Result
	res.ErrorMessage = rr.ErrorMessage
	if info := c.sched.TaskStatus(res.ID); info != nil {
		res.DurationMillis = info.DurationMillis
	}
	return res
}

// skipDependents marks every transitive dependent of a failed task.
func (c *Coordinator) skipDependents(id string, skipped map[string]bool, out *RunResult) {
	dependents, err := c.graph.AllDependents(id)
	if err != nil {
		return
	}
	for _, dep := range dependents {
		if !skipped[dep] {
			skipped[dep] = true
			out.Skipped = append(out.Skipped, dep)
		}
	}
}

func (c *Coordinator) checkpoint(ctx context.Context, sess *session.Session) {
	if c.opts.Store == nil {
		return
	}
	err := c.opts.Store.Save(ctx, sess)
	metrics.Global().RecordCheckpoint(err == nil)
	if err != nil {
		c.log.Warn("checkpoint failed", map[string]any{"session": sess.ID}, err)
	}
}

func (c *Coordinator) finish(ctx context.Context, sess *session.Session, out *RunResult, status string, start time.Time) {
	sess.Status = status
	c.checkpoint(ctx, sess)
	metrics.Global().RecordRun(status == session.StatusCompleted, time.Since(start).Milliseconds())
}
