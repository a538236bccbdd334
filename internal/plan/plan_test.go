package plan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/taskmesh/internal/capability"
	"github.com/joss/taskmesh/internal/exec"
)

const samplePlan = `{
  "plan_id": "release-7",
  "description": "ship the release",
  "tasks": [
    {"id": "design", "command": "make design"},
    {"id": "backend", "command": "make backend", "depends_on": ["design"], "priority": 5},
    {"id": "frontend", "command": "make frontend", "depends_on": ["design"]},
    {"id": "integration", "command": "make test", "depends_on": ["backend", "frontend"], "timeout_ms": 60000}
  ]
}`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(samplePlan))
	require.NoError(t, err)
	assert.Equal(t, "release-7", doc.PlanID)
	require.Len(t, doc.Tasks, 4)
	assert.Equal(t, int64(60000), doc.Tasks[3].TimeoutMs)
}

func TestParseAssignsPlanID(t *testing.T) {
	doc, err := Parse([]byte(`{"tasks": [{"id": "a", "command": "true"}]}`))
	require.NoError(t, err)
	assert.NotEmpty(t, doc.PlanID)
}

func TestParseRejectsBadDocuments(t *testing.T) {
	cases := map[string]string{
		"not json":       `{`,
		"no tasks":       `{"plan_id": "p"}`,
		"missing id":     `{"tasks": [{"command": "true"}]}`,
		"nothing to run": `{"tasks": [{"id": "a"}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, os.WriteFile(path, []byte(samplePlan), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "release-7", doc.PlanID)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestGraph(t *testing.T) {
	doc, err := Parse([]byte(samplePlan))
	require.NoError(t, err)

	g, err := doc.Graph()
	require.NoError(t, err)
	assert.Equal(t, 4, g.Len())

	order, err := g.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, "design", order[0])
	assert.Equal(t, "integration", order[3])
}

func TestResolveCommands(t *testing.T) {
	reg := capability.NewRegistry()
	reg.Register(&capability.Capability{ID: "1", Name: "lint", Command: "make lint"})

	doc, err := Parse([]byte(`{"tasks": [
		{"id": "a", "capability": "lint"},
		{"id": "b", "command": "make b", "capability": "lint"}
	]}`))
	require.NoError(t, err)

	require.NoError(t, doc.ResolveCommands(reg))
	assert.Equal(t, "make lint", doc.Tasks[0].Command)
	assert.Equal(t, "make b", doc.Tasks[1].Command, "explicit command wins over capability")
}

func TestResolveCommandsUnknownCapability(t *testing.T) {
	doc, err := Parse([]byte(`{"tasks": [{"id": "a", "capability": "nope"}]}`))
	require.NoError(t, err)
	assert.Error(t, doc.ResolveCommands(capability.NewRegistry()))
}

func TestSchedulerTask(t *testing.T) {
	mock := exec.NewMockRunner()
	mock.AddResponse("sh", exec.MockResponse{Stdout: []byte("done\n")})

	doc, err := Parse([]byte(samplePlan))
	require.NoError(t, err)

	st := doc.SchedulerTask(doc.Task("backend"), mock, "/tmp/wt")
	assert.Equal(t, "backend", st.ID)
	assert.Equal(t, 5, st.Priority)

	out, err := st.Run(context.Background())
	require.NoError(t, err)
	cmdOut, ok := out.(CommandOutput)
	require.True(t, ok)
	assert.Equal(t, "make backend", cmdOut.Command)
	assert.Equal(t, "done\n", cmdOut.Output)

	require.Len(t, mock.Calls, 1)
	assert.Equal(t, "/tmp/wt", mock.Calls[0].Dir)
	assert.Equal(t, []string{"-c", "make backend"}, mock.Calls[0].Args)
}

func TestSchedulerTaskFailureIncludesOutput(t *testing.T) {
	mock := exec.NewMockRunner()
	mock.AddResponse("sh", exec.MockResponse{
		Stderr: []byte("make: *** [backend] Error 2"),
		Err:    os.ErrPermission,
	})

	doc, err := Parse([]byte(samplePlan))
	require.NoError(t, err)

	_, err = doc.SchedulerTask(doc.Task("backend"), mock, "").Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error 2")
}
