package conversation

import (
	"time"

	"github.com/fyrsmithlabs/archharness/internal/orchestrator"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is one entry of the dialogue history.
type Turn struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Slots is the partially filled run request. An empty string means the
// slot has not been filled yet.
type Slots struct {
	WorkspaceMode  string                      `json:"workspaceMode,omitempty"`
	WorkspacePath  string                      `json:"workspacePath,omitempty"`
	Workflow       string                      `json:"workflow,omitempty"`
	TaskPrompt     string                      `json:"taskPrompt,omitempty"`
	ProjectName    string                      `json:"projectName,omitempty"`
	ModelOverrides orchestrator.ModelOverrides `json:"modelOverrides,omitzero"`
	Commands       map[string]string           `json:"commands,omitempty"`
	Safety         *orchestrator.Safety        `json:"safety,omitempty"`
}

// Slot keys accepted by Controller.UpdateSlot.
const (
	SlotWorkspaceMode     = "workspaceMode"
	SlotWorkspacePath     = "workspacePath"
	SlotWorkflow          = "workflow"
	SlotTaskPrompt        = "taskPrompt"
	SlotProjectName       = "projectName"
	SlotFrontendModel     = "frontendModel"
	SlotBuilderModel      = "builderModel"
	SlotArchitectureModel = "architectureModel"
	SlotTUIAssistantModel = "tuiAssistantModel"
	SlotInitGit           = "initGit"
)

// Missing returns the unfilled required slots in clarification order.
func (s Slots) Missing() []string {
	var missing []string
	if s.TaskPrompt == "" {
		missing = append(missing, SlotTaskPrompt)
	}
	if s.WorkspacePath == "" {
		missing = append(missing, SlotWorkspacePath)
	}
	if s.WorkspaceMode == orchestrator.ModeNewProject && s.ProjectName == "" {
		missing = append(missing, SlotProjectName)
	}
	return missing
}

// setModel applies an override for the override key (frontendModel, ...).
// Unknown keys are ignored.
func (s *Slots) setModel(key, model string) bool {
	switch key {
	case SlotFrontendModel:
		s.ModelOverrides.Frontend = model
	case SlotBuilderModel:
		s.ModelOverrides.Builder = model
	case SlotArchitectureModel:
		s.ModelOverrides.Architecture = model
	case SlotTUIAssistantModel:
		s.ModelOverrides.TUIAssistant = model
	default:
		return false
	}
	return true
}

func (s Slots) clone() Slots {
	out := s
	if s.Commands != nil {
		out.Commands = make(map[string]string, len(s.Commands))
		for k, v := range s.Commands {
			out.Commands[k] = v
		}
	}
	if s.Safety != nil {
		safety := *s.Safety
		out.Safety = &safety
	}
	return out
}
