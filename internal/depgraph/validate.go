package depgraph

import (
	"fmt"
	"strings"
)

// ValidationResult lists every structural problem found in a graph.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Validate checks the graph for dangling edge references and cycles.
// All detected problems are reported, not just the first.
func (g *Graph) Validate() *ValidationResult {
	result := &ValidationResult{Valid: true}

	for _, id := range g.order {
		n := g.nodes[id]
		for _, dep := range n.Dependencies {
			if _, ok := g.nodes[dep]; !ok {
				result.Errors = append(result.Errors,
					fmt.Sprintf("task %s depends on missing task %s", id, dep))
			}
		}
		for _, dep := range n.Dependents {
			if _, ok := g.nodes[dep]; !ok {
				result.Errors = append(result.Errors,
					fmt.Sprintf("task %s unlocks missing task %s", id, dep))
			}
		}
	}

	if has, path := g.HasCycle(); has {
		result.Errors = append(result.Errors,
			fmt.Sprintf("dependency cycle detected: %s", strings.Join(path, " -> ")))
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// Visualize renders the graph as deterministic multi-line text for
// diagnostics: every node in insertion order, its dependency list, and an
// arrow per dependent.
func (g *Graph) Visualize() string {
	var sb strings.Builder

	for _, id := range g.order {
		n := g.nodes[id]
		if len(n.Dependencies) > 0 {
			sb.WriteString(fmt.Sprintf("%s (after: %s)\n", id, strings.Join(n.Dependencies, ", ")))
		} else {
			sb.WriteString(id + "\n")
		}
		for _, dep := range n.Dependents {
			sb.WriteString(fmt.Sprintf("  └─> %s\n", dep))
		}
	}

	return sb.String()
}

// appendUnique appends s to list unless already present.
func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
