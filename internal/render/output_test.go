package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/taskmesh/internal/depgraph"
	"github.com/joss/taskmesh/internal/scheduler"
	"github.com/joss/taskmesh/internal/session"
)

func TestResultsPlain(t *testing.T) {
	r := New(false)
	out := r.Results(
		[]string{"a", "b"},
		map[string]scheduler.Result{
			"a": {ID: "a", Status: scheduler.StatusCompleted, DurationMillis: 1500},
			"b": {ID: "b", Status: scheduler.StatusFailed, ErrorMessage: "boom"},
		},
		[]string{"c"},
	)
	assert.Contains(t, out, "[completed] a (1.5s)")
	assert.Contains(t, out, "[failed] b")
	assert.Contains(t, out, "error: boom")
	assert.Contains(t, out, "[skipped] c")
}

func TestResultsEmpty(t *testing.T) {
	assert.Equal(t, "No tasks ran", New(true).Results(nil, nil, nil))
}

func TestStatsPlain(t *testing.T) {
	out := New(false).Stats(scheduler.Stats{Completed: 3, Failed: 1, TotalElapsedMillis: 250})
	assert.Equal(t, "completed=3 failed=1 running=0 queued=0 elapsed_ms=250\n", out)
}

func TestGraphPlain(t *testing.T) {
	g, err := depgraph.Build([]depgraph.TaskSpec{
		{ID: "a"},
		{ID: "b", Predecessors: []string{"a"}},
	})
	require.NoError(t, err)

	out := New(false).Graph(g, []string{"a", "b"})
	assert.Contains(t, out, "a")
	assert.Contains(t, out, "1. a")
	assert.Contains(t, out, "2. b")
}

func TestSessionsPlain(t *testing.T) {
	s := session.New("plan-1")
	s.Record("a", session.TaskOutcome{Status: "completed"})

	out := New(false).Sessions([]*session.Session{s})
	assert.Contains(t, out, s.ID)
	assert.Contains(t, out, "1/1")

	assert.Equal(t, "No sessions found", New(false).Sessions(nil))
}
