package capability

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Capability describes one unit of work the mesh knows how to run: a named
// command template plus the metadata a plan needs to reference it.
type Capability struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Command     string    `json:"command,omitempty"`
	Version     string    `json:"version,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Source      string    `json:"source"`
	LoadedAt    time.Time `json:"loaded_at"`
}

// Registry is an in-memory capability index keyed by name.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]*Capability
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Capability)}
}

// Register adds or replaces a capability. Re-registering a name keeps the
// original ID and load time so references stay stable across rescans.
func (r *Registry) Register(c *Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.lookupLocked(c.Name); ok {
		c.ID = existing.ID
		c.LoadedAt = existing.LoadedAt
		delete(r.byID, existing.ID)
	}
	r.byID[c.ID] = c
}

// Get returns the capability with the given name, or nil.
func (r *Registry) Get(name string) *Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.lookupLocked(name); ok {
		return c
	}
	return nil
}

func (r *Registry) lookupLocked(name string) (*Capability, bool) {
	for _, c := range r.byID {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// List returns all capabilities sorted by category then name.
func (r *Registry) List() []*Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Capability, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Search returns capabilities whose name, description, or tags contain the
// query, case-insensitively.
func (r *Registry) Search(query string) []*Capability {
	query = strings.ToLower(query)
	var out []*Capability
	for _, c := range r.List() {
		if strings.Contains(strings.ToLower(c.Name), query) ||
			strings.Contains(strings.ToLower(c.Description), query) {
			out = append(out, c)
			continue
		}
		for _, tag := range c.Tags {
			if strings.Contains(strings.ToLower(tag), query) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
