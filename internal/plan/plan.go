// Package plan loads task plan documents and turns them into runnable work.
package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joss/taskmesh/internal/capability"
	"github.com/joss/taskmesh/internal/depgraph"
)

// Document is a plan file: a named set of tasks with dependencies.
type Document struct {
	PlanID      string `json:"plan_id"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	Tasks       []Task `json:"tasks"`
}

// Task is one unit of work in a plan. Command is a shell command line;
// Capability optionally names a registered capability whose command is used
// when Command is empty.
type Task struct {
	ID         string   `json:"id"`
	Command    string   `json:"command,omitempty"`
	Capability string   `json:"capability,omitempty"`
	Dir        string   `json:"dir,omitempty"`
	Priority   int      `json:"priority,omitempty"`
	TimeoutMs  int64    `json:"timeout_ms,omitempty"`
	DependsOn  []string `json:"depends_on,omitempty"`
	Isolate    bool     `json:"isolate,omitempty"`
}

// Load reads and parses a plan file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	return Parse(data)
}

// Parse decodes a plan document and checks its basic shape. Dependency
// problems are left to graph validation.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing plan: %w", err)
	}

	if doc.PlanID == "" {
		doc.PlanID = fmt.Sprintf("plan-%d", time.Now().UnixNano())
	}
	if len(doc.Tasks) == 0 {
		return nil, fmt.Errorf("plan %s has no tasks", doc.PlanID)
	}
	for i, t := range doc.Tasks {
		if strings.TrimSpace(t.ID) == "" {
			return nil, fmt.Errorf("plan %s: task %d has no id", doc.PlanID, i)
		}
		if t.Command == "" && t.Capability == "" {
			return nil, fmt.Errorf("plan %s: task %s has neither command nor capability", doc.PlanID, t.ID)
		}
	}

	return &doc, nil
}

// Specs converts the plan's tasks into graph specs.
func (d *Document) Specs() []depgraph.TaskSpec {
	specs := make([]depgraph.TaskSpec, 0, len(d.Tasks))
	for _, t := range d.Tasks {
		specs = append(specs, depgraph.TaskSpec{
			ID:           t.ID,
			Predecessors: t.DependsOn,
		})
	}
	return specs
}

// Graph builds and returns the plan's dependency graph.
func (d *Document) Graph() (*depgraph.Graph, error) {
	return depgraph.Build(d.Specs())
}

// Task returns the plan task with the given id, or nil.
func (d *Document) Task(id string) *Task {
	for i := range d.Tasks {
		if d.Tasks[i].ID == id {
			return &d.Tasks[i]
		}
	}
	return nil
}

// ResolveCommands fills in empty task commands from a capability registry.
// It fails on the first task that names an unknown capability.
func (d *Document) ResolveCommands(reg *capability.Registry) error {
	for i := range d.Tasks {
		t := &d.Tasks[i]
		if t.Command != "" || t.Capability == "" {
			continue
		}
		c := reg.Get(t.Capability)
		if c == nil {
			return fmt.Errorf("plan %s: task %s needs unknown capability %q", d.PlanID, t.ID, t.Capability)
		}
		if c.Command == "" {
			return fmt.Errorf("plan %s: capability %q has no command", d.PlanID, t.Capability)
		}
		t.Command = c.Command
	}
	return nil
}
