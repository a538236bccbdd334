package capability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "build/backend.md", `---
name: build-backend
command: make backend
tags: [build, backend]
---
Compile the backend service.`)
	writeManifest(t, dir, "deploy.md", `---
name: deploy
category: release
version: "2.1"
command: make deploy
---
Push the current build out.`)
	writeManifest(t, dir, "notes.txt", "not a manifest")

	reg := NewRegistry()
	loader := NewLoader(reg)

	n, err := loader.Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, reg.Len())

	backend := reg.Get("build-backend")
	require.NotNil(t, backend)
	assert.Equal(t, "build", backend.Category, "directory name should act as category hint")
	assert.Equal(t, "make backend", backend.Command)
	assert.Equal(t, []string{"build", "backend"}, backend.Tags)
	assert.Equal(t, "Compile the backend service.", backend.Description)
	assert.NotEmpty(t, backend.ID)

	deploy := reg.Get("deploy")
	require.NotNil(t, deploy)
	assert.Equal(t, "release", deploy.Category, "frontmatter category wins over hint")
	assert.Equal(t, "2.1", deploy.Version)
}

func TestDiscoverWithoutFrontmatter(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "cleanup.md", "Remove stale artifacts.")

	reg := NewRegistry()
	n, err := NewLoader(reg).Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	c := reg.Get("cleanup")
	require.NotNil(t, c)
	assert.Equal(t, "general", c.Category)
	assert.Equal(t, "Remove stale artifacts.", c.Description)
}

func TestDiscoverMissingDir(t *testing.T) {
	reg := NewRegistry()
	_, err := NewLoader(reg).Discover(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestRegisterKeepsIdentity(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Capability{ID: "01A", Name: "lint"})
	reg.Register(&Capability{ID: "01B", Name: "lint", Command: "make lint"})

	assert.Equal(t, 1, reg.Len())
	c := reg.Get("lint")
	require.NotNil(t, c)
	assert.Equal(t, "01A", c.ID, "re-registering keeps the original ID")
	assert.Equal(t, "make lint", c.Command)
}

func TestSearch(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Capability{ID: "1", Name: "build-backend", Tags: []string{"compile"}})
	reg.Register(&Capability{ID: "2", Name: "deploy", Description: "push build artifacts"})
	reg.Register(&Capability{ID: "3", Name: "lint"})

	assert.Len(t, reg.Search("build"), 2)
	assert.Len(t, reg.Search("COMPILE"), 1)
	assert.Empty(t, reg.Search("nothing"))
}

func TestListOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Capability{ID: "1", Name: "b", Category: "x"})
	reg.Register(&Capability{ID: "2", Name: "a", Category: "x"})
	reg.Register(&Capability{ID: "3", Name: "z", Category: "a"})

	var names []string
	for _, c := range reg.List() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"z", "a", "b"}, names)
}
