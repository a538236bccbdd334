// Package depgraph builds an in-memory dependency DAG from task specs and
// answers ordering queries: cycle detection, topological sort, transitive
// closures and the ready frontier.
//
// A Graph is immutable once Build returns, so it is safe for any number of
// concurrent readers and reusable across independent execution sessions.
package depgraph

import (
	"fmt"
)

// TaskSpec is the build input for one node.
type TaskSpec struct {
	ID           string   `json:"id"`
	Predecessors []string `json:"predecessors,omitempty"`
	Successors   []string `json:"successors,omitempty"`
}

// Node is a single vertex in the graph. Dependencies must complete before
// the node; Dependents are unlocked by it.
type Node struct {
	ID           string
	Dependencies []string
	Dependents   []string
	Spec         TaskSpec
}

// Graph is a dependency DAG keyed by task id. Build establishes bidirectional
// edge consistency once; nothing mutates the graph afterwards.
type Graph struct {
	nodes map[string]*Node
	order []string // insertion order, used for deterministic iteration
}

// Build assembles a graph from task specs. Every declared predecessor and
// successor edge is recorded in both directions on the nodes that exist.
// Build is pure data assembly: it rejects duplicate ids but tolerates
// dangling references and cycles, which Validate and TopologicalSort report.
func Build(tasks []TaskSpec) (*Graph, error) {
	g := &Graph{nodes: make(map[string]*Node, len(tasks))}

	for _, t := range tasks {
		if _, exists := g.nodes[t.ID]; exists {
			return nil, &DuplicateIDError{ID: t.ID}
		}
		g.nodes[t.ID] = &Node{ID: t.ID, Spec: t}
		g.order = append(g.order, t.ID)
	}

	// Second pass so edge resolution is independent of spec order.
	for _, t := range tasks {
		n := g.nodes[t.ID]
		for _, pred := range t.Predecessors {
			g.addEdge(n, pred)
		}
		for _, succ := range t.Successors {
			if m, ok := g.nodes[succ]; ok {
				g.addEdge(m, t.ID)
			} else {
				// Keep the dangling reference visible for Validate.
				n.Dependents = appendUnique(n.Dependents, succ)
			}
		}
	}

	return g, nil
}

// addEdge records that n depends on depID, in both directions when the
// dependency node exists.
func (g *Graph) addEdge(n *Node, depID string) {
	n.Dependencies = appendUnique(n.Dependencies, depID)
	if dep, ok := g.nodes[depID]; ok {
		dep.Dependents = appendUnique(dep.Dependents, n.ID)
	}
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Node returns the node for id, or nil if absent.
func (g *Graph) Node(id string) *Node {
	return g.nodes[id]
}

// IDs returns all node ids in insertion order.
func (g *Graph) IDs() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// TopologicalSort returns an ordering of all node ids such that every
// dependency precedes its dependents. Kahn's algorithm: track in-degree and
// repeatedly emit zero-in-degree nodes, breaking ties among simultaneously
// ready nodes by insertion order. Returns a *CycleError when not all nodes
// can be emitted.
func (g *Graph) TopologicalSort() ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	for _, id := range g.order {
		n := g.nodes[id]
		count := 0
		for _, dep := range n.Dependencies {
			if _, ok := g.nodes[dep]; ok {
				count++
			}
		}
		indegree[id] = count
	}

	position := make(map[string]int, len(g.order))
	for i, id := range g.order {
		position[id] = i
	}

	var ready []string
	for _, id := range g.order {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	sorted := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		// Pop the earliest-inserted ready node for reproducible output.
		best := 0
		for i := 1; i < len(ready); i++ {
			if position[ready[i]] < position[ready[best]] {
				best = i
			}
		}
		id := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		sorted = append(sorted, id)

		for _, depID := range g.nodes[id].Dependents {
			if _, ok := g.nodes[depID]; !ok {
				continue
			}
			indegree[depID]--
			if indegree[depID] == 0 {
				ready = append(ready, depID)
			}
		}
	}

	if len(sorted) != len(g.nodes) {
		if has, path := g.HasCycle(); has {
			return nil, &CycleError{Path: path}
		}
		// Unreachable for well-formed graphs; guard anyway.
		return nil, fmt.Errorf("%w: %d of %d nodes unsortable", ErrCycle, len(g.nodes)-len(sorted), len(g.nodes))
	}

	return sorted, nil
}

// HasCycle reports whether the graph contains a dependency cycle and returns
// the first cycle path found, with the entry node repeated at the end
// (a self-loop yields [id, id]). Detection is depth-first traversal along
// dependency edges tracking the recursion stack.
func (g *Graph) HasCycle() (bool, []string) {
	visited := make(map[string]bool, len(g.nodes))
	onStack := make(map[string]bool, len(g.nodes))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		visited[id] = true
		onStack[id] = true
		stack = append(stack, id)

		for _, dep := range g.nodes[id].Dependencies {
			if _, ok := g.nodes[dep]; !ok {
				continue
			}
			if onStack[dep] {
				// Back edge: slice the stack from the revisited node.
				start := 0
				for i, sid := range stack {
					if sid == dep {
						start = i
						break
					}
				}
				cycle = append(append([]string{}, stack[start:]...), dep)
				return true
			}
			if !visited[dep] && visit(dep) {
				return true
			}
		}

		stack = stack[:len(stack)-1]
		onStack[id] = false
		return false
	}

	for _, id := range g.order {
		if !visited[id] && visit(id) {
			return true, cycle
		}
	}
	return false, nil
}

// AllDependencies returns the deduplicated transitive closure of everything
// id depends on, directly or indirectly, in insertion order. The queried id
// is never included.
func (g *Graph) AllDependencies(id string) ([]string, error) {
	return g.closure(id, func(n *Node) []string { return n.Dependencies })
}

// AllDependents returns the deduplicated transitive closure of everything
// that depends on id, directly or indirectly, in insertion order.
func (g *Graph) AllDependents(id string) ([]string, error) {
	return g.closure(id, func(n *Node) []string { return n.Dependents })
}

func (g *Graph) closure(id string, edges func(*Node) []string) ([]string, error) {
	if _, ok := g.nodes[id]; !ok {
		return nil, &NotFoundError{ID: id}
	}

	seen := map[string]bool{id: true}
	queue := []string{id}
	members := make(map[string]bool)

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range edges(g.nodes[cur]) {
			if _, ok := g.nodes[next]; !ok {
				continue
			}
			if seen[next] {
				continue
			}
			seen[next] = true
			members[next] = true
			queue = append(queue, next)
		}
	}

	// The closure never contains the queried node itself, even on cycles.
	delete(members, id)

	var out []string
	for _, nid := range g.order {
		if members[nid] {
			out = append(out, nid)
		}
	}
	return out, nil
}

// ReadyTasks returns ids not yet completed whose every dependency is in the
// completed set, in insertion order. Pure function of graph plus completed
// set; callers re-invoke it after each completion.
func (g *Graph) ReadyTasks(completed map[string]bool) []string {
	var ready []string
	for _, id := range g.order {
		if completed[id] {
			continue
		}
		ok := true
		for _, dep := range g.nodes[id].Dependencies {
			if _, exists := g.nodes[dep]; !exists {
				ok = false
				break
			}
			if !completed[dep] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, id)
		}
	}
	return ready
}
