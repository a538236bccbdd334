package capability

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/oklog/ulid/v2"

	"github.com/joss/taskmesh/internal/logging"
)

// Loader discovers capability manifests on disk and registers them.
type Loader struct {
	registry *Registry
	log      *logging.Logger
}

// NewLoader creates a loader writing into the given registry.
func NewLoader(registry *Registry) *Loader {
	return &Loader{
		registry: registry,
		log:      logging.New("capability"),
	}
}

// Discover scans a directory tree for capability manifests. Manifests are
// markdown files with YAML frontmatter; subdirectory names act as category
// hints. Broken files are skipped, not fatal.
func (l *Loader) Discover(dir string) (int, error) {
	if _, err := os.Stat(dir); err != nil {
		return 0, fmt.Errorf("capability directory: %w", err)
	}

	fsys := os.DirFS(dir)
	loaded := 0
	err := doublestar.GlobWalk(fsys, "**/*.md", func(path string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		full := filepath.Join(dir, path)
		hint := ""
		if parent := filepath.Dir(path); parent != "." {
			hint = filepath.Base(parent)
		}
		entry, err := l.loadManifest(full, hint)
		if err != nil {
			l.log.Warn("manifest skipped", map[string]any{"path": full}, err)
			return nil
		}
		l.registry.Register(entry)
		loaded++
		return nil
	})
	if err != nil {
		return loaded, fmt.Errorf("scanning capabilities: %w", err)
	}

	l.log.Info("capabilities discovered", map[string]any{"dir": dir, "count": loaded})
	return loaded, nil
}

func (l *Loader) loadManifest(path, categoryHint string) (*Capability, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	entry := parseManifest(string(content), path, categoryHint)
	if entry.Name == "" {
		return nil, fmt.Errorf("manifest has no name")
	}
	return entry, nil
}

// parseManifest extracts capability metadata from markdown.
// Format:
// ---
// name: build-backend
// category: build
// command: make backend
// tags: [build, backend]
// ---
// Description here...
func parseManifest(content, path, categoryHint string) *Capability {
	name := strings.TrimSuffix(filepath.Base(path), ".md")

	entry := &Capability{
		ID:       ulid.Make().String(),
		Name:     name,
		Category: categoryHint,
		Source:   path,
		LoadedAt: time.Now(),
	}

	if strings.HasPrefix(content, "---") {
		parts := strings.SplitN(content, "---", 3)
		if len(parts) >= 3 {
			parseFrontmatter(parts[1], entry)
			entry.Description = strings.TrimSpace(parts[2])
		}
	} else {
		entry.Description = strings.TrimSpace(content)
	}

	if len(entry.Description) > 500 {
		entry.Description = entry.Description[:500]
	}
	if entry.Category == "" {
		entry.Category = "general"
	}

	return entry
}

func parseFrontmatter(yaml string, entry *Capability) {
	for _, line := range strings.Split(yaml, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch key {
		case "name":
			entry.Name = value
		case "category":
			entry.Category = value
		case "command":
			entry.Command = value
		case "version":
			entry.Version = value
		case "tags":
			entry.Tags = parseListValue(value)
		}
	}
}

func parseListValue(value string) []string {
	value = strings.Trim(value, "[]")
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
