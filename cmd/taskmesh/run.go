package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joss/taskmesh/internal/capability"
	"github.com/joss/taskmesh/internal/config"
	"github.com/joss/taskmesh/internal/coordinator"
	"github.com/joss/taskmesh/internal/gitops"
	"github.com/joss/taskmesh/internal/graphstore"
	"github.com/joss/taskmesh/internal/metrics"
	"github.com/joss/taskmesh/internal/plan"
	"github.com/joss/taskmesh/internal/render"
	"github.com/joss/taskmesh/internal/scheduler"
	"github.com/joss/taskmesh/internal/session"
	"github.com/joss/taskmesh/internal/tui"
)

func runCmd() *cobra.Command {
	var (
		maxConcurrency int
		timeoutMs      int
		retries        int
		backoffMs      int
		storeBackend   string
		resumeID       string
		capsDir        string
		repoPath       string
		export         bool
		watch          bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "run <plan.json>",
		Short: "Execute a plan",
		Long: `Execute a plan file. Tasks run in dependency order, parallel where the
graph allows, bounded by --max. Progress is checkpointed after every wave.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			doc, err := plan.Load(args[0])
			if err != nil {
				exitOnError(err)
			}

			if capsDir != "" {
				reg := capability.NewRegistry()
				if _, err := capability.NewLoader(reg).Discover(capsDir); err != nil {
					exitOnError(err)
				}
				if err := doc.ResolveCommands(reg); err != nil {
					exitOnError(err)
				}
			}

			store, err := openStore(storeBackend)
			if err != nil {
				exitOnError(err)
			}
			defer store.Close()

			opts := coordinator.Options{
				MaxConcurrency: maxConcurrency,
				TimeoutMillis:  timeoutMs,
				Store:          store,
			}

			if retries > 0 {
				opts.Retry = &scheduler.RetryOptions{MaxRetries: retries, BackoffMillis: backoffMs}
			}

			if resumeID != "" {
				prior, err := store.Load(cmd.Context(), resumeID)
				if err != nil {
					exitOnError(fmt.Errorf("resuming session %s: %w", resumeID, err))
				}
				opts.Resume = prior
			}

			if repoPath != "" {
				opts.Worktrees = gitops.NewManager(repoPath, meshPath("worktrees"), nil)
			}

			if export {
				db, err := graphstore.Connect()
				if err != nil {
					exitOnError(fmt.Errorf("connecting to %s: %w", config.Env().GraphURI, err))
				}
				defer db.Close()
				opts.Exporter = graphstore.NewExporter(db)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if metricsAddr != "" {
				srv := metrics.NewServer(metricsAddr, metrics.Global())
				srv.Start()
				defer srv.Stop(context.Background())
			}

			if watch {
				runWithMonitor(ctx, doc, opts)
				return
			}

			c, err := coordinator.New(doc, opts)
			if err != nil {
				exitOnError(err)
			}

			out, err := c.Run(ctx)
			if err != nil {
				exitOnError(err)
			}
			printRunResult(c, out)
		},
	}

	env := config.Env()
	cmd.Flags().IntVarP(&maxConcurrency, "max", "m", env.MaxConcurrency, "Max parallel tasks")
	cmd.Flags().IntVar(&timeoutMs, "timeout-ms", env.DefaultTimeoutMillis, "Per-task timeout in milliseconds")
	cmd.Flags().IntVar(&retries, "retries", 0, "Retry failed tasks up to n times")
	cmd.Flags().IntVar(&backoffMs, "backoff-ms", 1000, "Base retry backoff in milliseconds")
	cmd.Flags().StringVar(&storeBackend, "store", "file", "Session store backend (file|sqlite)")
	cmd.Flags().StringVar(&resumeID, "resume", "", "Resume a previous session by id")
	cmd.Flags().StringVar(&capsDir, "capabilities", "", "Capability manifest directory")
	cmd.Flags().StringVar(&repoPath, "repo", "", "Git repository for isolated tasks")
	cmd.Flags().BoolVar(&export, "export", false, "Export graph and outcomes to the graph database")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Show a live monitor while running")
	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "Serve Prometheus metrics on this address while running")

	return cmd
}

// printRunResult renders the outcome and exits non-zero on failure.
func printRunResult(c *coordinator.Coordinator, out *coordinator.RunResult) {
	r := render.New(pretty)

	order, err := c.Graph().TopologicalSort()
	if err != nil {
		order = c.Graph().IDs()
	}

	fmt.Println(r.Results(order, out.Results, out.Skipped))
	fmt.Println(r.Stats(c.Scheduler().Stats()))
	fmt.Printf("session: %s\n", out.Session.ID)

	if out.Session.Status != session.StatusCompleted {
		os.Exit(1)
	}
}

// runWithMonitor runs the coordinator behind a live TUI.
func runWithMonitor(ctx context.Context, doc *plan.Document, opts coordinator.Options) {
	events := make(chan tui.Event, 16)

	// Display updates are best-effort: if the monitor has quit, dropping
	// them must not stall the run.
	send := func(ev tui.Event) {
		select {
		case events <- ev:
		default:
		}
	}
	opts.OnWaveStart = func(wave int, ids []string) {
		send(tui.Event{Wave: wave, WaveIDs: ids})
	}
	opts.OnTaskSettled = func(res scheduler.Result) {
		r := res
		send(tui.Event{Settled: &r})
	}

	c, err := coordinator.New(doc, opts)
	if err != nil {
		exitOnError(err)
	}

	order, sortErr := c.Graph().TopologicalSort()
	if sortErr != nil {
		order = c.Graph().IDs()
	}

	type done struct {
		out *coordinator.RunResult
		err error
	}
	doneCh := make(chan done, 1)

	go func() {
		out, err := c.Run(ctx)
		final := ""
		if out != nil {
			final = out.Session.Status
		}
		send(tui.Event{Done: true, FinalState: final})
		close(events)
		doneCh <- done{out: out, err: err}
	}()

	if err := tui.Run(tui.New(doc.PlanID, order, events)); err != nil {
		exitOnError(err)
	}

	d := <-doneCh
	if d.err != nil {
		exitOnError(d.err)
	}
	printRunResult(c, d.out)
}
