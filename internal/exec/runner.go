// Package exec wraps external command execution behind an interface so
// callers can be tested without spawning processes.
package exec

import (
	"bytes"
	"context"
	"io"
	osexec "os/exec"
	"strings"
	"sync"
)

// Runner executes external commands. Inject this instead of calling
// exec.Command directly.
type Runner interface {
	// Run executes a command and returns combined stdout/stderr.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// RunInDir executes a command in a specific directory.
	RunInDir(ctx context.Context, dir, name string, args ...string) ([]byte, error)

	// RunWithStdin executes a command with stdin input.
	RunWithStdin(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error)

	// RunSeparate executes and returns stdout and stderr separately.
	RunSeparate(ctx context.Context, dir, name string, args ...string) (stdout, stderr []byte, err error)
}

// OSRunner implements Runner using os/exec.
type OSRunner struct {
	// Env overrides environment variables (nil = inherit from parent)
	Env []string
}

// NewOSRunner creates an OS-based command runner.
func NewOSRunner() *OSRunner {
	return &OSRunner{}
}

func (r *OSRunner) command(ctx context.Context, name string, args ...string) *osexec.Cmd {
	cmd := osexec.CommandContext(ctx, name, args...)
	if r.Env != nil {
		cmd.Env = r.Env
	}
	return cmd
}

// Run executes a command and returns combined output.
func (r *OSRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return r.command(ctx, name, args...).CombinedOutput()
}

// RunInDir executes a command in a specific directory.
func (r *OSRunner) RunInDir(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := r.command(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// RunWithStdin executes a command with stdin input.
func (r *OSRunner) RunWithStdin(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmd := r.command(ctx, name, args...)
	cmd.Stdin = stdin
	return cmd.CombinedOutput()
}

// RunSeparate executes in dir and returns stdout and stderr separately.
func (r *OSRunner) RunSeparate(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
	cmd := r.command(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// MockRunner implements Runner for testing. Responses are keyed by the
// command name plus its arguments joined with spaces; a bare-name key acts
// as a fallback for any argument list.
type MockRunner struct {
	mu sync.Mutex

	// Calls records every invocation in order.
	Calls []MockCall

	// Responses maps "name arg1 arg2..." (or just "name") to a response.
	Responses map[string]MockResponse
}

// MockCall records a single command invocation.
type MockCall struct {
	Name string
	Args []string
	Dir  string
}

// MockResponse defines the canned response for a mocked command.
type MockResponse struct {
	Stdout []byte
	Stderr []byte
	Err    error
}

// NewMockRunner creates an empty mock runner.
func NewMockRunner() *MockRunner {
	return &MockRunner{Responses: make(map[string]MockResponse)}
}

// AddResponse sets the response for a command pattern.
func (m *MockRunner) AddResponse(pattern string, resp MockResponse) {
	m.Responses[pattern] = resp
}

func (m *MockRunner) respond(name string, args []string, dir string) MockResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Name: name, Args: args, Dir: dir})

	key := name
	if len(args) > 0 {
		key = name + " " + strings.Join(args, " ")
	}
	if resp, ok := m.Responses[key]; ok {
		return resp
	}
	if resp, ok := m.Responses[name]; ok {
		return resp
	}
	return MockResponse{}
}

func (m *MockRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	resp := m.respond(name, args, "")
	return append(resp.Stdout, resp.Stderr...), resp.Err
}

func (m *MockRunner) RunInDir(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	resp := m.respond(name, args, dir)
	return append(resp.Stdout, resp.Stderr...), resp.Err
}

func (m *MockRunner) RunWithStdin(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	resp := m.respond(name, args, "")
	return append(resp.Stdout, resp.Stderr...), resp.Err
}

func (m *MockRunner) RunSeparate(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
	resp := m.respond(name, args, dir)
	return resp.Stdout, resp.Stderr, resp.Err
}

// Default is the runner used when callers do not inject their own.
var Default Runner = NewOSRunner()
