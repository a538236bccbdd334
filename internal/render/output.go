// Package render provides output formatting for terminal consumption.
package render

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/joss/taskmesh/internal/depgraph"
	"github.com/joss/taskmesh/internal/scheduler"
	"github.com/joss/taskmesh/internal/session"
)

// Renderer formats run output. Pretty mode adds color and layout; plain
// mode stays machine-friendly.
type Renderer struct {
	pretty bool
}

// New creates a renderer.
func New(pretty bool) *Renderer {
	return &Renderer{pretty: pretty}
}

func statusMark(status scheduler.Status) string {
	switch status {
	case scheduler.StatusCompleted:
		return color.GreenString("✓")
	case scheduler.StatusFailed:
		return color.RedString("✗")
	case scheduler.StatusCancelled:
		return color.YellowString("⊘")
	case scheduler.StatusRunning:
		return color.CyanString("▸")
	default:
		return "○"
	}
}

// Results formats per-task outcomes in the given order, with skipped tasks
// listed after.
func (r *Renderer) Results(order []string, results map[string]scheduler.Result, skipped []string) string {
	if len(results) == 0 && len(skipped) == 0 {
		return "No tasks ran"
	}

	var sb strings.Builder

	if r.pretty {
		sb.WriteString(color.CyanString("Task Results\n"))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	}

	for _, id := range order {
		res, ok := results[id]
		if !ok {
			continue
		}
		r.formatResult(&sb, res)
	}

	for _, id := range skipped {
		if r.pretty {
			fmt.Fprintf(&sb, "%s %s %s\n", color.HiBlackString("–"), id, color.HiBlackString("skipped"))
		} else {
			fmt.Fprintf(&sb, "[skipped] %s\n", id)
		}
	}

	return sb.String()
}

func (r *Renderer) formatResult(sb *strings.Builder, res scheduler.Result) {
	durStr := ""
	if res.DurationMillis > 0 {
		durStr = fmt.Sprintf(" (%.1fs)", float64(res.DurationMillis)/1000)
	}

	if r.pretty {
		fmt.Fprintf(sb, "%s %s%s\n", statusMark(res.Status), res.ID, durStr)
		if res.ErrorMessage != "" {
			lines := strings.Split(res.ErrorMessage, "\n")
			for _, line := range lines[:min(3, len(lines))] {
				fmt.Fprintf(sb, "    %s\n", color.RedString(line))
			}
		}
	} else {
		fmt.Fprintf(sb, "[%s] %s%s\n", res.Status, res.ID, durStr)
		if res.ErrorMessage != "" {
			fmt.Fprintf(sb, "    error: %s\n", res.ErrorMessage)
		}
	}
}

// Stats formats aggregate scheduler counts.
func (r *Renderer) Stats(stats scheduler.Stats) string {
	var sb strings.Builder

	if r.pretty {
		sb.WriteString(color.CyanString("Run Summary\n"))
		sb.WriteString(strings.Repeat("─", 40) + "\n")
		fmt.Fprintf(&sb, "  Completed: %s\n", color.GreenString("%d", stats.Completed))
		fmt.Fprintf(&sb, "  Failed:    %s\n", color.RedString("%d", stats.Failed))
		fmt.Fprintf(&sb, "  Running:   %d\n", stats.Running)
		fmt.Fprintf(&sb, "  Queued:    %d\n", stats.Queued)
		fmt.Fprintf(&sb, "  Elapsed:   %.1fs\n", float64(stats.TotalElapsedMillis)/1000)
	} else {
		fmt.Fprintf(&sb, "completed=%d failed=%d running=%d queued=%d elapsed_ms=%d\n",
			stats.Completed, stats.Failed, stats.Running, stats.Queued, stats.TotalElapsedMillis)
	}

	return sb.String()
}

// Graph formats a dependency graph, optionally with its execution order.
func (r *Renderer) Graph(g *depgraph.Graph, order []string) string {
	var sb strings.Builder

	if r.pretty {
		sb.WriteString(color.CyanString("Dependency Graph\n"))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	}
	sb.WriteString(g.Visualize())

	if len(order) > 0 {
		if r.pretty {
			sb.WriteString(color.CyanString("\nExecution Order\n"))
		} else {
			sb.WriteString("\norder:\n")
		}
		for i, id := range order {
			fmt.Fprintf(&sb, "  %d. %s\n", i+1, id)
		}
	}

	return sb.String()
}

// Sessions formats a session listing, newest first.
func (r *Renderer) Sessions(sessions []*session.Session) string {
	if len(sessions) == 0 {
		return "No sessions found"
	}

	var sb strings.Builder

	if r.pretty {
		sb.WriteString(color.CyanString("Sessions\n"))
		sb.WriteString(strings.Repeat("─", 72) + "\n")
	}

	for _, s := range sessions {
		timeStr := s.UpdatedAt.Format("2006-01-02 15:04")
		statusStr := s.Status
		if r.pretty {
			switch s.Status {
			case session.StatusCompleted:
				statusStr = color.GreenString(s.Status)
			case session.StatusFailed:
				statusStr = color.RedString(s.Status)
			case session.StatusRunning:
				statusStr = color.CyanString(s.Status)
			}
			fmt.Fprintf(&sb, "%s  %s  %-9s  %d/%d tasks\n",
				color.HiBlackString(timeStr), shortID(s.ID), statusStr, len(s.Completed), len(s.Results))
		} else {
			fmt.Fprintf(&sb, "%s %s %s %d/%d\n", timeStr, s.ID, s.Status, len(s.Completed), len(s.Results))
		}
	}

	return sb.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
