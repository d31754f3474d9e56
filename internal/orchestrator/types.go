package orchestrator

import (
	"fmt"
	"slices"

	"github.com/fyrsmithlabs/archharness/internal/agents"
	"github.com/fyrsmithlabs/archharness/internal/workspace"
)

// Phase is a state of the run loop.
type Phase string

const (
	// PhaseStarted is entered once the run directory and log exist.
	PhaseStarted Phase = "started"

	// PhaseContextGathered follows listing the workspace files.
	PhaseContextGathered Phase = "context_gathered"

	// PhasePlanning runs the frontend planner.
	PhasePlanning Phase = "planning"

	// PhaseChecking runs the format, lint and test commands.
	PhaseChecking Phase = "checking"

	// PhaseBuilding runs the builder, initially or as a retry.
	PhaseBuilding Phase = "building"

	// PhaseReviewing runs the architecture reviewer.
	PhaseReviewing Phase = "reviewing"

	// PhaseFinalizing writes the closing artifacts.
	PhaseFinalizing Phase = "finalizing"

	// PhaseCompleted and PhaseCancelled are terminal.
	PhaseCompleted Phase = "completed"
	PhaseCancelled Phase = "cancelled"
)

// transitions lists the legal successors of every phase. Any non-terminal
// phase may jump to finalizing when a checkpoint observes cancellation.
var transitions = map[Phase][]Phase{
	PhaseStarted:         {PhaseContextGathered, PhaseFinalizing},
	PhaseContextGathered: {PhasePlanning, PhaseReviewing, PhaseFinalizing},
	PhasePlanning:        {PhaseChecking, PhaseFinalizing},
	PhaseChecking:        {PhaseBuilding, PhaseFinalizing},
	PhaseBuilding:        {PhaseReviewing, PhaseFinalizing},
	PhaseReviewing:       {PhaseBuilding, PhaseFinalizing},
	PhaseFinalizing:      {PhaseCompleted, PhaseCancelled},
	PhaseCompleted:       nil,
	PhaseCancelled:       nil,
}

// AllPhases returns every phase in nominal order.
func AllPhases() []Phase {
	return []Phase{
		PhaseStarted, PhaseContextGathered, PhasePlanning, PhaseChecking,
		PhaseBuilding, PhaseReviewing, PhaseFinalizing, PhaseCompleted, PhaseCancelled,
	}
}

// Terminal reports whether no transition leaves p.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseCancelled
}

// CanTransition checks the transition table.
func CanTransition(from, to Phase) error {
	next, ok := transitions[from]
	if !ok {
		return fmt.Errorf("invalid current phase: %s", from)
	}
	if _, ok := transitions[to]; !ok {
		return fmt.Errorf("invalid target phase: %s", to)
	}
	if !slices.Contains(next, to) {
		return fmt.Errorf("cannot transition from %s to %s", from, to)
	}
	return nil
}

// Run statuses as written to run-log.json.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// statusRank orders statuses so the run log never moves backwards.
func statusRank(s string) int {
	switch s {
	case StatusRunning:
		return 1
	case StatusCompleted, StatusCancelled, StatusFailed:
		return 2
	}
	return 0
}

// AgentInfo is one role entry of the run log.
type AgentInfo struct {
	Role  agents.Role `json:"role"`
	Model string      `json:"model"`
}

// ToolCall is one entry of the run log's toolCalls list. Context gathers
// carry FilesCount; commands carry Command, Skipped and ReturnCode.
type ToolCall struct {
	Type       string `json:"type"`
	Check      string `json:"check,omitempty"`
	FilesCount *int   `json:"filesCount,omitempty"`
	Command    string `json:"command,omitempty"`
	Skipped    *bool  `json:"skipped,omitempty"`
	ReturnCode *int   `json:"returncode,omitempty"`
}

// Tool call types.
const (
	ToolCallContextGather = "context_gather"
	ToolCallCommand       = "command"
)

// RunLog is the run-log.json artifact.
type RunLog struct {
	RunID         string              `json:"runId"`
	Workflow      string              `json:"workflow"`
	PromptHash    string              `json:"promptHash"`
	WorkspaceMode string              `json:"workspaceMode"`
	WorkspacePath string              `json:"workspacePath"`
	Workspace     *workspace.Metadata `json:"workspace,omitempty"`
	Agents        []AgentInfo         `json:"agents"`
	ToolCalls     []ToolCall          `json:"toolCalls"`
	Iterations    int                 `json:"iterations"`
	Status        string              `json:"status"`
	Error         string              `json:"error,omitempty"`
}

// setStatus advances the status. A terminal status is never replaced.
func (l *RunLog) setStatus(s string) {
	cur := statusRank(l.Status)
	if cur == 2 || statusRank(s) < cur {
		return
	}
	l.Status = s
}

// CheckResult pairs a check name with its command outcome.
type CheckResult struct {
	Check string `json:"check"`
	workspace.CommandResult
}

// Result describes a finished run.
type Result struct {
	RunID      string
	RunDir     string
	Status     string
	Iterations int
	Review     agents.Review
	Checks     []CheckResult
	Changed    []string
	OutputMode string
}

// Unresolved returns the number of high-severity findings left.
func (r *Result) Unresolved() int { return r.Review.HighCount() }
