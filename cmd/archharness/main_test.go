package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/archharness/internal/config"
	"github.com/fyrsmithlabs/archharness/internal/orchestrator"
	"github.com/fyrsmithlabs/archharness/internal/runs"
)

// execute runs the CLI with args and returns what it printed on stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func seedWorkspace(t *testing.T) string {
	t.Helper()
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, "index.html"), []byte("<h1>hi</h1>\n"), 0o644))
	return ws
}

func runOnce(t *testing.T, args ...string) runOutput {
	t.Helper()
	stdout, err := execute(t, append([]string{"run"}, args...)...)
	require.NoError(t, err)

	var got runOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &got), stdout)
	return got
}

func TestRunCommand(t *testing.T) {
	t.Run("existing folder prints run dir", func(t *testing.T) {
		ws := seedWorkspace(t)
		got := runOnce(t, "--task", "Add a login page", "--path", ws)

		assert.Equal(t, "patch", got.OutputMode)
		assert.True(t, strings.HasPrefix(got.RunDir, orchestrator.RunsRoot(ws)), got.RunDir)
		assert.FileExists(t, filepath.Join(got.RunDir, orchestrator.ArtifactRunLog))
		assert.FileExists(t, filepath.Join(got.RunDir, orchestrator.ArtifactPatch))
		assert.NoFileExists(t, filepath.Join(got.RunDir, orchestrator.ArtifactBranchNote))

		run, err := runs.Load(got.RunDir)
		require.NoError(t, err)
		assert.Equal(t, orchestrator.StatusCompleted, run.Status)
		assert.Equal(t, orchestrator.WorkflowFrontendFeature, run.Workflow)
	})

	t.Run("branch output mode writes note", func(t *testing.T) {
		ws := seedWorkspace(t)
		got := runOnce(t, "--task", "Add a login page", "--path", ws, "--output-mode", "branch")

		assert.Equal(t, "branch", got.OutputMode)
		assert.FileExists(t, filepath.Join(got.RunDir, orchestrator.ArtifactBranchNote))
	})

	t.Run("review only workflow", func(t *testing.T) {
		ws := seedWorkspace(t)
		got := runOnce(t, "--task", "Review layering", "--path", ws, "--workflow", orchestrator.WorkflowArchReviewOnly)

		assert.NoFileExists(t, filepath.Join(got.RunDir, orchestrator.ArtifactPlan))
		assert.FileExists(t, filepath.Join(got.RunDir, orchestrator.ArtifactReview))
	})

	t.Run("new project with name", func(t *testing.T) {
		ws := t.TempDir()
		got := runOnce(t, "--task", "Add a login page", "--path", ws,
			"--mode", orchestrator.ModeNewProject, "--project-name", "Portal", "--init-git", "no")

		project := filepath.Join(ws, "Portal")
		assert.DirExists(t, project)
		assert.NoDirExists(t, filepath.Join(project, ".git"))
		assert.True(t, strings.HasPrefix(got.RunDir, orchestrator.RunsRoot(project)), got.RunDir)
	})

	t.Run("zero retry budget", func(t *testing.T) {
		ws := seedWorkspace(t)
		cfgPath := filepath.Join(t.TempDir(), "harness.yaml")
		require.NoError(t, os.WriteFile(cfgPath, []byte("orchestration:\n  maxIterations: 0\n"), 0o644))

		got := runOnce(t, "--config", cfgPath, "--task", "Add a login page", "--path", ws)
		run, err := runs.Load(got.RunDir)
		require.NoError(t, err)
		assert.Equal(t, orchestrator.StatusCompleted, run.Status)
	})

	t.Run("metrics file", func(t *testing.T) {
		ws := seedWorkspace(t)
		metrics := filepath.Join(t.TempDir(), "run.prom")
		runOnce(t, "--task", "Add a login page", "--path", ws, "--metrics-file", metrics)

		raw, err := os.ReadFile(metrics)
		require.NoError(t, err)
		assert.Contains(t, string(raw), "archharness_runs_total")
	})
}

func TestOverridesFromFlags(t *testing.T) {
	parse := func(t *testing.T, args ...string) config.Overrides {
		t.Helper()
		cmd := newRunCmd()
		require.NoError(t, cmd.ParseFlags(args))
		return overridesFromFlags(cmd)
	}

	o := parse(t)
	assert.Nil(t, o.MaxIterations)
	assert.Empty(t, o.OutputMode)

	o = parse(t, "--max-iterations", "0", "--builder-model", "codex-x")
	require.NotNil(t, o.MaxIterations)
	assert.Equal(t, 0, *o.MaxIterations)
	assert.Equal(t, "codex-x", o.BuilderModel)

	cfg := config.Default()
	require.NoError(t, cfg.ApplyOverrides(o))
	assert.Equal(t, 0, cfg.Orchestration.MaxIterations)
}

func TestRunCommand_Errors(t *testing.T) {
	ws := seedWorkspace(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing task", []string{"run", "--path", ws}, `required flag(s) "task" not set`},
		{"invalid init-git", []string{"run", "--task", "t", "--path", ws, "--init-git", "maybe"}, "invalid initGit"},
		{"invalid workflow", []string{"run", "--task", "t", "--path", ws, "--workflow", "ship_it"}, "invalid workflow"},
		{"project without name", []string{"run", "--task", "t", "--path", ws, "--mode", orchestrator.ModeNewProject}, "projectName is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	entries, err := os.ReadDir(ws)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "failed invocations must not create run directories")
}

func TestRunsCommand(t *testing.T) {
	ws := seedWorkspace(t)

	stdout, err := execute(t, "runs", "--path", ws)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No runs in")

	first := runOnce(t, "--task", "Add a login page", "--path", ws)
	second := runOnce(t, "--task", "Add a logout button", "--path", ws)

	stdout, err = execute(t, "runs", "--path", ws)
	require.NoError(t, err)
	assert.Contains(t, stdout, "RUN")
	assert.Contains(t, stdout, filepath.Base(first.RunDir))
	assert.Contains(t, stdout, orchestrator.StatusCompleted)

	stdout, err = execute(t, "runs", "--path", ws, "--json")
	require.NoError(t, err)
	var list []runs.Run
	require.NoError(t, json.Unmarshal([]byte(stdout), &list))
	require.Len(t, list, 2)
	assert.Equal(t, second.RunDir, list[0].Dir)
	assert.Equal(t, first.RunDir, list[1].Dir)
}

func TestLogsCommand(t *testing.T) {
	ws := seedWorkspace(t)
	got := runOnce(t, "--task", "Add a login page", "--path", ws)

	stdout, err := execute(t, "logs", got.RunDir)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[len(lines)-1], "orchestrator")

	stdout, err = execute(t, "logs", got.RunDir, "--role", "builder")
	require.NoError(t, err)
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		assert.Contains(t, line, " builder ")
	}

	stdout, err = execute(t, "logs", got.RunDir, "--limit", "1")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(stdout), "\n"), 1)

	// The run has ended, so follow replays and returns.
	followed, err := execute(t, "logs", got.RunDir, "--follow")
	require.NoError(t, err)
	all, err := execute(t, "logs", got.RunDir)
	require.NoError(t, err)
	assert.Equal(t, all, followed)

	_, err = execute(t, "logs")
	require.Error(t, err)
}
