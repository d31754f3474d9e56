package orchestrator

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/archharness/internal/agents"
	"github.com/fyrsmithlabs/archharness/internal/workspace"
)

func TestAllPhases(t *testing.T) {
	phases := AllPhases()

	require.Len(t, phases, 9)
	assert.Equal(t, PhaseStarted, phases[0], "started should be first")
	assert.True(t, phases[7].Terminal())
	assert.True(t, phases[8].Terminal())
	for _, p := range phases[:7] {
		assert.False(t, p.Terminal(), "%s should not be terminal", p)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Phase
		to      Phase
		wantErr string
	}{
		{"start to context", PhaseStarted, PhaseContextGathered, ""},
		{"cancel right after start", PhaseStarted, PhaseFinalizing, ""},
		{"review only", PhaseContextGathered, PhaseReviewing, ""},
		{"retry", PhaseReviewing, PhaseBuilding, ""},
		{"cancelled", PhaseFinalizing, PhaseCancelled, ""},
		{"skip planning", PhaseStarted, PhasePlanning, "cannot transition"},
		{"build before checks", PhasePlanning, PhaseBuilding, "cannot transition"},
		{"leave terminal", PhaseCompleted, PhaseStarted, "cannot transition"},
		{"unknown source", Phase("bogus"), PhaseStarted, "invalid current phase"},
		{"unknown target", PhaseStarted, Phase("bogus"), "invalid target phase"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanTransition(tt.from, tt.to)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunLog_SetStatusIsMonotonic(t *testing.T) {
	tests := []struct {
		name  string
		steps []string
		want  string
	}{
		{"running then completed", []string{StatusRunning, StatusCompleted}, StatusCompleted},
		{"completed is final", []string{StatusRunning, StatusCompleted, StatusFailed}, StatusCompleted},
		{"cancelled is final", []string{StatusCancelled, StatusRunning}, StatusCancelled},
		{"failed from running", []string{StatusRunning, StatusFailed}, StatusFailed},
		{"unknown ignored", []string{StatusRunning, "bogus"}, StatusRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l RunLog
			for _, s := range tt.steps {
				l.setStatus(s)
			}
			assert.Equal(t, tt.want, l.Status)
		})
	}
}

func TestToolCall_JSONShape(t *testing.T) {
	n, skipped, rc := 3, true, 0

	gather, err := json.Marshal(ToolCall{Type: ToolCallContextGather, FilesCount: &n})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"context_gather","filesCount":3}`, string(gather))

	cmd, err := json.Marshal(ToolCall{Type: ToolCallCommand, Check: "lint", Skipped: &skipped, ReturnCode: &rc})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"command","check":"lint","skipped":true,"returncode":0}`, string(cmd))
}

func TestRunRequest_Validate(t *testing.T) {
	tests := []struct {
		name      string
		req       RunRequest
		wantField string
	}{
		{"valid folder", RunRequest{WorkspacePath: "/w", TaskPrompt: "t"}, ""},
		{"valid project", RunRequest{WorkspaceMode: ModeNewProject, WorkspacePath: "/w", TaskPrompt: "t", ProjectName: "p"}, ""},
		{"missing path", RunRequest{TaskPrompt: "t"}, "workspacePath"},
		{"missing task", RunRequest{WorkspacePath: "/w"}, "taskPrompt"},
		{"project without name", RunRequest{WorkspaceMode: ModeNewProject, WorkspacePath: "/w", TaskPrompt: "t"}, "projectName"},
		{"name ignored outside new-project", RunRequest{WorkspaceMode: ModeExistingGit, WorkspacePath: "/w", TaskPrompt: "t"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestRunRequest_EffectiveSafety(t *testing.T) {
	req := RunRequest{WorkspaceMode: ModeNewProject, WorkspacePath: "/w"}
	assert.Equal(t, Safety{WriteScopeRoot: "/w", InitGit: true}, req.EffectiveSafety())

	req.WorkspaceMode = ModeExistingFolder
	assert.False(t, req.EffectiveSafety().InitGit)

	req.Safety = &Safety{WriteScopeRoot: "/other"}
	assert.Equal(t, Safety{WriteScopeRoot: "/other"}, req.EffectiveSafety())
}

func TestRunRequest_JSONOmitsEmptyOverrides(t *testing.T) {
	data, err := json.Marshal(RunRequest{WorkspacePath: "/w", TaskPrompt: "t"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "modelOverrides")

	data, err = json.Marshal(RunRequest{ModelOverrides: ModelOverrides{Builder: "b"}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"modelOverrides":{"builderModel":"b"}`)
}

func TestFinalSummary(t *testing.T) {
	high := agents.Review{Findings: []agents.Finding{
		{Severity: agents.SeverityHigh},
		{Severity: agents.SeverityLow},
	}}

	tests := []struct {
		name    string
		changed []string
		checks  []CheckResult
		review  agents.Review
		want    []string
	}{
		{
			name: "empty",
			want: []string{
				"# Final Summary", "", "## Changed files", "- none", "",
				"## Tests/commands run", "- none", "",
				"## Architecture findings", "- resolved high severity: yes", "- unresolved count: 0",
			},
		},
		{
			name:    "checks and unresolved findings",
			changed: []string{"a.txt", "b/c.txt"},
			checks: []CheckResult{
				{Check: "format", CommandResult: workspace.CommandResult{Skipped: true}},
				{Check: "lint", CommandResult: workspace.CommandResult{Command: "golint ./..."}},
				{Check: "test", CommandResult: workspace.CommandResult{Command: "go test", ReturnCode: 1}},
			},
			review: high,
			want: []string{
				"# Final Summary", "", "## Changed files", "- a.txt", "- b/c.txt", "",
				"## Tests/commands run", "- format: skipped", "- golint ./...: passed", "- go test: failed", "",
				"## Architecture findings", "- resolved high severity: no", "- unresolved count: 1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FinalSummary(tt.changed, tt.checks, tt.review)
			assert.Equal(t, strings.Join(tt.want, "\n"), got)
		})
	}
}

func TestWorkspaceModeError(t *testing.T) {
	cause := errors.New("boom")
	err := &WorkspaceModeError{Mode: ModeExistingGit, Path: "/w", Reason: "no .git directory found", Err: cause}

	assert.Equal(t, "workspace mode existing-git at /w: no .git directory found: boom", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestParseInitGit(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"true", true, false},
		{"TRUE", true, false},
		{" yes ", true, false},
		{"1", true, false},
		{"false", false, false},
		{"No", false, false},
		{"0", false, false},
		{"maybe", false, true},
		{"", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInitGit(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
