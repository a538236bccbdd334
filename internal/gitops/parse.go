package gitops

import (
	"bufio"
	"strings"
)

// StatusEntry is one line of `git status --porcelain` output.
type StatusEntry struct {
	Code string
	Path string
}

// ParseStatus parses porcelain status output into entries.
func ParseStatus(output string) []StatusEntry {
	var entries []StatusEntry
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 4 {
			continue
		}
		entries = append(entries, StatusEntry{
			Code: strings.TrimSpace(line[:2]),
			Path: strings.TrimSpace(line[3:]),
		})
	}
	return entries
}

// ParseConflictList parses `git diff --name-only --diff-filter=U` output.
func ParseConflictList(output string) []string {
	var files []string
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		file := strings.TrimSpace(scanner.Text())
		if file != "" {
			files = append(files, file)
		}
	}
	return files
}

// ParseWorktreeList parses `git worktree list --porcelain` output. Entries
// are blank-line separated blocks of "worktree <path>", "HEAD <sha>", and
// "branch refs/heads/<name>" lines.
func ParseWorktreeList(output string) []Worktree {
	var list []Worktree
	var current *Worktree

	flush := func() {
		if current != nil {
			list = append(list, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "worktree "):
			flush()
			current = &Worktree{Path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "HEAD ") && current != nil:
			current.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch ") && current != nil:
			current.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		}
	}
	flush()
	return list
}
