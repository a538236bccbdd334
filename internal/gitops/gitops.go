// Package gitops manages git worktrees so independent tasks can run in
// isolated checkouts of the same repository.
package gitops

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joss/taskmesh/internal/exec"
	"github.com/joss/taskmesh/internal/logging"
)

// Worktree describes one checkout attached to the repository.
type Worktree struct {
	Path   string `json:"path"`
	Branch string `json:"branch"`
	Head   string `json:"head"`
}

// Manager drives git worktree commands against one repository.
type Manager struct {
	repoPath string
	baseDir  string
	runner   exec.Runner
	log      *logging.Logger
}

// NewManager creates a worktree manager. baseDir is where new worktrees
// are created; runner may be nil to use the OS runner.
func NewManager(repoPath, baseDir string, runner exec.Runner) *Manager {
	if runner == nil {
		runner = exec.NewOSRunner()
	}
	return &Manager{
		repoPath: repoPath,
		baseDir:  baseDir,
		runner:   runner,
		log:      logging.New("gitops"),
	}
}

// Create adds a worktree named after the task on a fresh branch. The branch
// is task/<name> so parallel tasks never collide.
func (m *Manager) Create(ctx context.Context, name string) (*Worktree, error) {
	path := filepath.Join(m.baseDir, name)
	branch := "task/" + name

	out, err := m.runner.RunInDir(ctx, m.repoPath, "git", "worktree", "add", "-b", branch, path)
	if err != nil {
		return nil, fmt.Errorf("worktree add %s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}

	m.log.Info("worktree created", map[string]any{"path": path, "branch": branch})
	return &Worktree{Path: path, Branch: branch}, nil
}

// Remove deletes a worktree and its branch. Force discards local changes.
func (m *Manager) Remove(ctx context.Context, wt *Worktree, force bool) error {
	args := []string{"worktree", "remove", wt.Path}
	if force {
		args = append(args, "--force")
	}
	out, err := m.runner.RunInDir(ctx, m.repoPath, "git", args...)
	if err != nil {
		return fmt.Errorf("worktree remove %s: %w: %s", wt.Path, err, strings.TrimSpace(string(out)))
	}

	if wt.Branch != "" {
		// Branch removal failure is not fatal, the worktree is already gone.
		if out, err := m.runner.RunInDir(ctx, m.repoPath, "git", "branch", "-D", wt.Branch); err != nil {
			m.log.Warn("branch cleanup failed", map[string]any{"branch": wt.Branch, "output": strings.TrimSpace(string(out))}, err)
		}
	}

	m.log.Info("worktree removed", map[string]any{"path": wt.Path})
	return nil
}

// List returns every worktree attached to the repository, including the
// main checkout.
func (m *Manager) List(ctx context.Context) ([]Worktree, error) {
	out, err := m.runner.RunInDir(ctx, m.repoPath, "git", "worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("worktree list: %w", err)
	}
	return ParseWorktreeList(string(out)), nil
}

// Merge merges a worktree's branch back into the current branch of the main
// checkout. On conflict it reports the conflicted paths and aborts the merge
// so the repository stays clean.
func (m *Manager) Merge(ctx context.Context, wt *Worktree) ([]string, error) {
	out, err := m.runner.RunInDir(ctx, m.repoPath, "git", "merge", "--no-ff", wt.Branch)
	if err == nil {
		m.log.Info("branch merged", map[string]any{"branch": wt.Branch})
		return nil, nil
	}

	diffOut, diffErr := m.runner.RunInDir(ctx, m.repoPath, "git", "diff", "--name-only", "--diff-filter=U")
	if diffErr != nil {
		return nil, fmt.Errorf("merge %s: %w: %s", wt.Branch, err, strings.TrimSpace(string(out)))
	}

	conflicts := ParseConflictList(string(diffOut))
	if len(conflicts) == 0 {
		return nil, fmt.Errorf("merge %s: %w: %s", wt.Branch, err, strings.TrimSpace(string(out)))
	}

	if out, abortErr := m.runner.RunInDir(ctx, m.repoPath, "git", "merge", "--abort"); abortErr != nil {
		m.log.Warn("merge abort failed", map[string]any{"output": strings.TrimSpace(string(out))}, abortErr)
	}

	m.log.Warn("merge conflicts", map[string]any{"branch": wt.Branch, "files": len(conflicts)}, err)
	return conflicts, fmt.Errorf("merge %s: %d conflicting files", wt.Branch, len(conflicts))
}

// Dirty reports whether a worktree has uncommitted changes.
func (m *Manager) Dirty(ctx context.Context, wt *Worktree) (bool, error) {
	out, err := m.runner.RunInDir(ctx, wt.Path, "git", "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("status %s: %w", wt.Path, err)
	}
	return len(ParseStatus(string(out))) > 0, nil
}
