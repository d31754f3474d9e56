package orchestrator

import (
	"fmt"
	"strings"
)

// Workspace modes.
const (
	ModeNewProject     = "new-project"
	ModeExistingFolder = "existing-folder"
	ModeExistingGit    = "existing-git"
)

// Workflows.
const (
	WorkflowFrontendFeature = "frontend_feature"
	WorkflowArchReviewOnly  = "arch_review_only"
)

// ModelOverrides replaces configured models for a single run.
type ModelOverrides struct {
	Frontend     string `json:"frontendModel,omitempty"`
	Builder      string `json:"builderModel,omitempty"`
	Architecture string `json:"architectureModel,omitempty"`
	TUIAssistant string `json:"tuiAssistantModel,omitempty"`
}

// IsZero reports whether no override is set.
func (m ModelOverrides) IsZero() bool {
	return m == ModelOverrides{}
}

// Safety bounds what a run may touch.
type Safety struct {
	WriteScopeRoot string `json:"writeScopeRoot"`
	InitGit        bool   `json:"initGit"`
}

// ParseInitGit parses an initGit flag value. It accepts true/false, yes/no
// and 1/0 in any case.
func ParseInitGit(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		return true, nil
	case "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid initGit value %q: want true or false", s)
}

// RunRequest is everything needed to start a run.
type RunRequest struct {
	WorkspaceMode  string         `json:"workspaceMode"`
	WorkspacePath  string         `json:"workspacePath"`
	Workflow       string         `json:"workflow"`
	TaskPrompt     string         `json:"taskPrompt"`
	ProjectName    string         `json:"projectName,omitempty"`
	ModelOverrides ModelOverrides `json:"modelOverrides,omitzero"`

	// Commands overrides configured check commands by name (format, lint,
	// test). An empty value disables that check for the run.
	Commands map[string]string `json:"commands,omitempty"`

	// Safety defaults to {WriteScopeRoot: WorkspacePath, InitGit: mode is new-project}.
	Safety *Safety `json:"safety,omitempty"`
}

// ValidationError names the RunRequest field that is missing.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validate fails iff the task prompt or workspace path is empty, or a
// new-project request has no project name.
func (r RunRequest) Validate() error {
	switch {
	case r.WorkspacePath == "":
		return &ValidationError{Field: "workspacePath", Message: "workspacePath is required."}
	case r.TaskPrompt == "":
		return &ValidationError{Field: "taskPrompt", Message: "taskPrompt is required."}
	case r.WorkspaceMode == ModeNewProject && r.ProjectName == "":
		return &ValidationError{Field: "projectName", Message: "projectName is required for new-project mode."}
	}
	return nil
}

// EffectiveSafety returns Safety or its default.
func (r RunRequest) EffectiveSafety() Safety {
	if r.Safety != nil {
		return *r.Safety
	}
	return Safety{WriteScopeRoot: r.WorkspacePath, InitGit: r.WorkspaceMode == ModeNewProject}
}

// WorkspaceModeError reports a workspace that cannot be used in the
// requested mode. It is returned before any side effect.
type WorkspaceModeError struct {
	Mode   string
	Path   string
	Reason string
	Err    error
}

func (e *WorkspaceModeError) Error() string {
	msg := fmt.Sprintf("workspace mode %s at %s: %s", e.Mode, e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *WorkspaceModeError) Unwrap() error { return e.Err }
