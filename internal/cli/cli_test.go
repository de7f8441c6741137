package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/avivheldman/WorkFlow/pkg/models"
	"github.com/avivheldman/WorkFlow/pkg/service"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "ERROR")

	rootCmd := &cobra.Command{Use: "workflow"}
	SetupCLI(rootCmd)
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(args)
	err = rootCmd.Execute()
	return out.String(), err
}

func writeSpec(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCLI(t *testing.T) {
	t.Run("RunYAMLSpec", func(t *testing.T) {
		path := writeSpec(t, "spec.yaml", `
name: yaml-run
steps:
  - execution_type: parallel
    tasks:
      - name: task_a
        params: {duration: 10ms}
      - name: task_b
        params: {duration: 10ms, retry_count: 3}
  - execution_type: sequential
    tasks:
      - name: task_c
        params: {duration: 10ms}
`)
		out, err := execute(t, "run", "-f", path)
		require.NoError(t, err)

		var wf models.Workflow
		require.NoError(t, json.Unmarshal([]byte(out), &wf))
		assert.Equal(t, "yaml-run", wf.Name)
		assert.Equal(t, models.SucceededStatus, wf.Status)
		require.Len(t, wf.Steps, 2)
		assert.Equal(t, models.ParallelExecution, wf.Steps[0].ExecutionType)
	})

	t.Run("RunJSONSpecWithFailure", func(t *testing.T) {
		path := writeSpec(t, "spec.json", `{"name":"json-run","steps":[
			{"execution_type":"sequential","tasks":[{"name":"task_a","params":{"duration":"5ms","fail":true}}]},
			{"execution_type":"sequential","tasks":[{"name":"task_b","params":{"duration":"5ms"}}]}]}`)
		out, err := execute(t, "run", "-f", path)
		require.NoError(t, err)

		var wf models.Workflow
		require.NoError(t, json.Unmarshal([]byte(out), &wf))
		assert.Equal(t, models.FailedStatus, wf.Status)
		assert.Equal(t, models.PendingStatus, wf.Steps[1].Status)
	})

	t.Run("RunUnknownTask", func(t *testing.T) {
		path := writeSpec(t, "spec.yaml", "name: bad\nsteps:\n  - execution_type: sequential\n    tasks:\n      - name: task_z\n")
		_, err := execute(t, "run", "-f", path)
		assert.ErrorIs(t, err, service.ErrUnknownTask)
	})

	t.Run("RunMissingFile", func(t *testing.T) {
		_, err := execute(t, "run", "-f", filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorContains(t, err, "failed to read spec file")
	})

	t.Run("ListEmpty", func(t *testing.T) {
		out, err := execute(t, "list")
		require.NoError(t, err)
		assert.Equal(t, "No workflows found.\n", out)
	})

	t.Run("GetAndDeleteMissing", func(t *testing.T) {
		_, err := execute(t, "get", "missing")
		assert.ErrorIs(t, err, service.ErrWorkflowNotFound)
		_, err = execute(t, "delete", "missing")
		assert.ErrorIs(t, err, service.ErrWorkflowNotFound)
	})
}

func TestListWorkflowsOutput(t *testing.T) {
	out := &bytes.Buffer{}
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	listWorkflows(out, []models.Workflow{{ID: "abc", Name: "s1", Status: models.SucceededStatus, CreatedAt: created}})
	assert.Equal(t, "Workflows:\n- ID: abc, Name: s1, Status: SUCCEEDED, Created: 2025-01-02T03:04:05Z\n", out.String())
}
