package graphstore

import (
	"context"
	"fmt"
	"time"

	"github.com/joss/taskmesh/internal/depgraph"
	"github.com/joss/taskmesh/internal/scheduler"
)

// Exporter persists dependency graphs and run outcomes.
type Exporter struct {
	db Driver
}

// NewExporter creates an exporter on the given driver.
func NewExporter(db Driver) *Exporter {
	return &Exporter{db: db}
}

// ExportGraph writes every node and dependency edge of a plan's graph.
func (e *Exporter) ExportGraph(ctx context.Context, planID string, g *depgraph.Graph) error {
	now := time.Now().UTC().Format(time.RFC3339)

	for _, id := range g.IDs() {
		err := e.db.ExecuteWrite(ctx, `
			MERGE (p:Plan {plan_id: $plan_id})
			MERGE (t:Task {plan_id: $plan_id, task_id: $task_id})
			ON CREATE SET t.created_at = $now
			MERGE (p)-[:HAS_TASK]->(t)
		`, map[string]any{
			"plan_id": planID,
			"task_id": id,
			"now":     now,
		})
		if err != nil {
			return fmt.Errorf("export task %s: %w", id, err)
		}
	}

	for _, id := range g.IDs() {
		for _, dep := range g.Node(id).Dependencies {
			if g.Node(dep) == nil {
				continue
			}
			err := e.db.ExecuteWrite(ctx, `
				MATCH (a:Task {plan_id: $plan_id, task_id: $task_id})
				MATCH (b:Task {plan_id: $plan_id, task_id: $dep_id})
				MERGE (a)-[:DEPENDS_ON]->(b)
			`, map[string]any{
				"plan_id": planID,
				"task_id": id,
				"dep_id":  dep,
			})
			if err != nil {
				return fmt.Errorf("export edge %s -> %s: %w", id, dep, err)
			}
		}
	}

	return nil
}

// ExportOutcome records one settled task for a run.
func (e *Exporter) ExportOutcome(ctx context.Context, runID, planID string, r scheduler.Result) error {
	err := e.db.ExecuteWrite(ctx, `
		MERGE (run:Run {run_id: $run_id})
		MERGE (t:Task {plan_id: $plan_id, task_id: $task_id})
		MERGE (run)-[exec:EXECUTED]->(t)
		SET exec.status = $status,
		    exec.duration_ms = $duration_ms,
		    exec.error = $error,
		    exec.at = $now
	`, map[string]any{
		"run_id":      runID,
		"plan_id":     planID,
		"task_id":     r.ID,
		"status":      string(r.Status),
		"duration_ms": r.DurationMillis,
		"error":       r.ErrorMessage,
		"now":         time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("export outcome %s: %w", r.ID, err)
	}
	return nil
}
