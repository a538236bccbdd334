package plan

import (
	"context"
	"fmt"
	"strings"

	"github.com/joss/taskmesh/internal/exec"
	"github.com/joss/taskmesh/internal/scheduler"
)

// CommandOutput is what a shell-backed task returns on success.
type CommandOutput struct {
	Command string `json:"command"`
	Output  string `json:"output"`
}

// SchedulerTask turns one plan task into a schedulable unit whose work
// function runs the task's command through the given runner. dir overrides
// the task's directory when non-empty, which is how isolated worktrees are
// wired in.
func (d *Document) SchedulerTask(t *Task, runner exec.Runner, dir string) scheduler.Task {
	if runner == nil {
		runner = exec.Default
	}
	command := t.Command
	workDir := t.Dir
	if dir != "" {
		workDir = dir
	}

	return scheduler.Task{
		ID:            t.ID,
		Priority:      t.Priority,
		TimeoutMillis: int(t.TimeoutMs),
		Run: func(ctx context.Context) (any, error) {
			out, err := runner.RunInDir(ctx, workDir, "sh", "-c", command)
			if err != nil {
				msg := strings.TrimSpace(string(out))
				if msg != "" {
					return nil, fmt.Errorf("%s: %w: %s", t.ID, err, msg)
				}
				return nil, fmt.Errorf("%s: %w", t.ID, err)
			}
			return CommandOutput{Command: command, Output: string(out)}, nil
		},
	}
}

// SchedulerTasks converts every plan task, in plan order.
func (d *Document) SchedulerTasks(runner exec.Runner) []scheduler.Task {
	tasks := make([]scheduler.Task, 0, len(d.Tasks))
	for i := range d.Tasks {
		tasks = append(tasks, d.SchedulerTask(&d.Tasks[i], runner, ""))
	}
	return tasks
}
