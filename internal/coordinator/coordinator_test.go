package coordinator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/taskmesh/internal/exec"
	"github.com/joss/taskmesh/internal/graphstore"
	"github.com/joss/taskmesh/internal/logging"
	"github.com/joss/taskmesh/internal/metrics"
	"github.com/joss/taskmesh/internal/plan"
	"github.com/joss/taskmesh/internal/scheduler"
	"github.com/joss/taskmesh/internal/session"
)

const pipelinePlan = `{
  "plan_id": "pipeline",
  "tasks": [
    {"id": "design", "command": "run design"},
    {"id": "backend", "command": "run backend", "depends_on": ["design"]},
    {"id": "frontend", "command": "run frontend", "depends_on": ["design"]},
    {"id": "integration", "command": "run integration", "depends_on": ["backend", "frontend"]},
    {"id": "deploy", "command": "run deploy", "depends_on": ["integration"]}
  ]
}`

func parsePlan(t *testing.T, raw string) *plan.Document {
	t.Helper()
	doc, err := plan.Parse([]byte(raw))
	require.NoError(t, err)
	return doc
}

func TestRunCompletesWholePlan(t *testing.T) {
	mock := exec.NewMockRunner()
	mock.AddResponse("sh", exec.MockResponse{Stdout: []byte("ok")})

	var mu sync.Mutex
	var waves [][]string
	c, err := New(parsePlan(t, pipelinePlan), Options{
		Runner: mock,
		OnWaveStart: func(wave int, ids []string) {
			mu.Lock()
			waves = append(waves, ids)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	out, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, session.StatusCompleted, out.Session.Status)
	assert.Len(t, out.Results, 5)
	assert.Empty(t, out.Skipped)
	for id, res := range out.Results {
		assert.Equal(t, scheduler.StatusCompleted, res.Status, id)
	}

	// design alone, then backend+frontend together, then integration, then deploy.
	require.Equal(t, 4, out.Waves)
	assert.Equal(t, []string{"design"}, waves[0])
	assert.ElementsMatch(t, []string{"backend", "frontend"}, waves[1])
	assert.Equal(t, []string{"integration"}, waves[2])
	assert.Equal(t, []string{"deploy"}, waves[3])
}

func TestRunSkipsDependentsOfFailedTask(t *testing.T) {
	mock := exec.NewMockRunner()
	mock.AddResponse("sh", exec.MockResponse{Stdout: []byte("ok")})
	mock.AddResponse("sh -c run backend", exec.MockResponse{
		Stderr: []byte("compile error"),
		Err:    errors.New("exit status 2"),
	})

	c, err := New(parsePlan(t, pipelinePlan), Options{Runner: mock})
	require.NoError(t, err)

	out, err := c.Run(context.Background())
	require.NoError(t, err, "task failures are reported in the result, not as a run error")

	assert.Equal(t, session.StatusFailed, out.Session.Status)
	assert.Equal(t, scheduler.StatusFailed, out.Results["backend"].Status)
	assert.ElementsMatch(t, []string{"integration", "deploy"}, out.Skipped)

	// frontend does not depend on backend, so it still ran.
	assert.Equal(t, scheduler.StatusCompleted, out.Results["frontend"].Status)
	_, attempted := out.Results["integration"]
	assert.False(t, attempted)
}

func TestRunRetriesFailedTask(t *testing.T) {
	mock := exec.NewMockRunner()
	mock.AddResponse("sh", exec.MockResponse{Stdout: []byte("ok")})

	doc := parsePlan(t, `{"plan_id": "flaky", "tasks": [{"id": "only", "command": "run only"}]}`)

	// First attempt fails, the retry succeeds.
	var mu sync.Mutex
	attempts := 0
	runner := &flakyRunner{Runner: mock, failFirst: 1, mu: &mu, attempts: &attempts}

	c, err := New(doc, Options{
		Runner: runner,
		Retry:  &scheduler.RetryOptions{MaxRetries: 2, BackoffMillis: 1},
	})
	require.NoError(t, err)

	out, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, session.StatusCompleted, out.Session.Status)
	assert.Equal(t, scheduler.StatusCompleted, out.Results["only"].Status)
	assert.Equal(t, 2, attempts)
}

// flakyRunner fails the first failFirst invocations, then delegates.
type flakyRunner struct {
	exec.Runner
	failFirst int
	mu        *sync.Mutex
	attempts  *int
}

func (f *flakyRunner) RunInDir(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	*f.attempts++
	n := *f.attempts
	f.mu.Unlock()
	if n <= f.failFirst {
		return []byte("transient"), errors.New("exit status 1")
	}
	return f.Runner.RunInDir(ctx, dir, name, args...)
}

func TestRunCheckpointsSession(t *testing.T) {
	mock := exec.NewMockRunner()
	mock.AddResponse("sh", exec.MockResponse{Stdout: []byte("ok")})

	store, err := session.NewFileStore(t.TempDir())
	require.NoError(t, err)

	c, err := New(parsePlan(t, pipelinePlan), Options{Runner: mock, Store: store})
	require.NoError(t, err)

	out, err := c.Run(context.Background())
	require.NoError(t, err)

	saved, err := store.Load(context.Background(), out.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, saved.Status)
	assert.Len(t, saved.Completed, 5)
	assert.Equal(t, "pipeline", saved.PlanID)
}

func TestRunResumesFromSession(t *testing.T) {
	mock := exec.NewMockRunner()
	mock.AddResponse("sh", exec.MockResponse{Stdout: []byte("ok")})

	prior := session.New("pipeline")
	prior.Record("design", session.TaskOutcome{Status: "completed"})
	prior.Record("backend", session.TaskOutcome{Status: "completed"})
	prior.Record("frontend", session.TaskOutcome{Status: "completed"})

	c, err := New(parsePlan(t, pipelinePlan), Options{Runner: mock, Resume: prior})
	require.NoError(t, err)

	out, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, prior.ID, out.Session.ID)
	assert.Len(t, out.Results, 2, "only integration and deploy should run")
	assert.Contains(t, out.Results, "integration")
	assert.Contains(t, out.Results, "deploy")
	assert.Equal(t, 2, out.Waves)
}

func TestRunExportsGraphAndOutcomes(t *testing.T) {
	mock := exec.NewMockRunner()
	mock.AddResponse("sh", exec.MockResponse{Stdout: []byte("ok")})

	db := graphstore.NewMemoryDriver()
	c, err := New(parsePlan(t, pipelinePlan), Options{
		Runner:   mock,
		Exporter: graphstore.NewExporter(db),
	})
	require.NoError(t, err)

	_, err = c.Run(context.Background())
	require.NoError(t, err)

	// 5 task nodes + 5 dependency edges + 5 outcomes.
	assert.Len(t, db.Writes(), 15)
}

func TestRunCountsOneStartPerRun(t *testing.T) {
	mock := exec.NewMockRunner()
	mock.AddResponse("sh", exec.MockResponse{Stdout: []byte("ok")})

	c, err := New(parsePlan(t, `{"plan_id": "solo", "tasks": [{"id": "only", "command": "run only"}]}`), Options{Runner: mock})
	require.NoError(t, err)

	before := metrics.Global().RunsStarted.Load()
	_, err = c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), metrics.Global().RunsStarted.Load()-before)
}

func TestRunTagsLogsWithSessionID(t *testing.T) {
	mock := exec.NewMockRunner()
	mock.AddResponse("sh", exec.MockResponse{Stdout: []byte("ok")})

	var buf bytes.Buffer
	logging.SetOutput(&buf)
	defer logging.SetOutput(nil)

	c, err := New(parsePlan(t, `{"plan_id": "tagged", "tasks": [{"id": "only", "command": "run only"}]}`), Options{Runner: mock})
	require.NoError(t, err)

	out, err := c.Run(context.Background())
	require.NoError(t, err)

	// Scheduler events for this run must carry the session id picked off
	// the context, not just the coordinator's own events.
	want := fmt.Sprintf(`"component":"scheduler","event":"task_settled","run":"%s"`, out.Session.ID)
	assert.Contains(t, buf.String(), want)
}

func TestNewRejectsInvalidPlan(t *testing.T) {
	doc := parsePlan(t, `{"tasks": [
		{"id": "a", "command": "x", "depends_on": ["ghost"]}
	]}`)
	_, err := New(doc, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")

	cyclic := parsePlan(t, `{"tasks": [
		{"id": "a", "command": "x", "depends_on": ["b"]},
		{"id": "b", "command": "x", "depends_on": ["a"]}
	]}`)
	_, err = New(cyclic, Options{})
	assert.Error(t, err)
}
