package gitops

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/taskmesh/internal/exec"
)

func TestParseStatus(t *testing.T) {
	out := " M internal/app.go\n?? notes.txt\nUU conflicted.go\n"
	entries := ParseStatus(out)
	require.Len(t, entries, 3)
	assert.Equal(t, StatusEntry{Code: "M", Path: "internal/app.go"}, entries[0])
	assert.Equal(t, StatusEntry{Code: "??", Path: "notes.txt"}, entries[1])
	assert.Equal(t, StatusEntry{Code: "UU", Path: "conflicted.go"}, entries[2])
}

func TestParseStatusEmpty(t *testing.T) {
	assert.Empty(t, ParseStatus(""))
	assert.Empty(t, ParseStatus("\n\n"))
}

func TestParseConflictList(t *testing.T) {
	files := ParseConflictList("a.go\n\nb/c.go\n")
	assert.Equal(t, []string{"a.go", "b/c.go"}, files)
}

func TestParseWorktreeList(t *testing.T) {
	out := `worktree /repo
HEAD abc123
branch refs/heads/main

worktree /repo/.mesh/build-backend
HEAD def456
branch refs/heads/task/build-backend
`
	list := ParseWorktreeList(out)
	require.Len(t, list, 2)
	assert.Equal(t, "/repo", list[0].Path)
	assert.Equal(t, "main", list[0].Branch)
	assert.Equal(t, "abc123", list[0].Head)
	assert.Equal(t, "task/build-backend", list[1].Branch)
}

func TestCreateAndRemove(t *testing.T) {
	mock := exec.NewMockRunner()
	m := NewManager("/repo", "/repo/.mesh", mock)

	wt, err := m.Create(context.Background(), "build-backend")
	require.NoError(t, err)
	assert.Equal(t, "/repo/.mesh/build-backend", wt.Path)
	assert.Equal(t, "task/build-backend", wt.Branch)

	require.NoError(t, m.Remove(context.Background(), wt, true))

	require.Len(t, mock.Calls, 3)
	assert.Equal(t, []string{"worktree", "add", "-b", "task/build-backend", "/repo/.mesh/build-backend"}, mock.Calls[0].Args)
	assert.Equal(t, "/repo", mock.Calls[0].Dir)
	assert.Equal(t, []string{"worktree", "remove", "/repo/.mesh/build-backend", "--force"}, mock.Calls[1].Args)
	assert.Equal(t, []string{"branch", "-D", "task/build-backend"}, mock.Calls[2].Args)
}

func TestCreateFailure(t *testing.T) {
	mock := exec.NewMockRunner()
	mock.AddResponse("git", exec.MockResponse{
		Stderr: []byte("fatal: already exists"),
		Err:    errors.New("exit status 128"),
	})
	m := NewManager("/repo", "/repo/.mesh", mock)

	_, err := m.Create(context.Background(), "dup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestMergeConflicts(t *testing.T) {
	mock := exec.NewMockRunner()
	mock.AddResponse("git merge --no-ff task/build-backend", exec.MockResponse{
		Stdout: []byte("CONFLICT (content): Merge conflict in a.go"),
		Err:    errors.New("exit status 1"),
	})
	mock.AddResponse("git diff --name-only --diff-filter=U", exec.MockResponse{
		Stdout: []byte("a.go\nb.go\n"),
	})
	m := NewManager("/repo", "/repo/.mesh", mock)

	conflicts, err := m.Merge(context.Background(), &Worktree{Branch: "task/build-backend"})
	require.Error(t, err)
	assert.Equal(t, []string{"a.go", "b.go"}, conflicts)

	// Merge must have been aborted after the conflict.
	var aborted bool
	for _, c := range mock.Calls {
		if len(c.Args) == 2 && c.Args[0] == "merge" && c.Args[1] == "--abort" {
			aborted = true
		}
	}
	assert.True(t, aborted)
}

func TestMergeClean(t *testing.T) {
	mock := exec.NewMockRunner()
	m := NewManager("/repo", "/repo/.mesh", mock)

	conflicts, err := m.Merge(context.Background(), &Worktree{Branch: "task/x"})
	require.NoError(t, err)
	assert.Nil(t, conflicts)
}

func TestDirty(t *testing.T) {
	mock := exec.NewMockRunner()
	mock.AddResponse("git status --porcelain", exec.MockResponse{Stdout: []byte(" M a.go\n")})
	m := NewManager("/repo", "/repo/.mesh", mock)

	dirty, err := m.Dirty(context.Background(), &Worktree{Path: "/repo/.mesh/x"})
	require.NoError(t, err)
	assert.True(t, dirty)
}
