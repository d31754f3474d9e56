package monitor

import (
	"github.com/fyrsmithlabs/archharness/internal/agents"
	"github.com/fyrsmithlabs/archharness/internal/events"
)

// AgentState is the monitor's view of one role.
type AgentState struct {
	Role        string
	Model       string
	Status      string
	CurrentStep string
}

// AgentBoard folds agent.status and agent.step events into per-role state.
type AgentBoard struct {
	states map[string]*AgentState
}

// NewAgentBoard returns a board with every role idle.
func NewAgentBoard() AgentBoard {
	b := AgentBoard{states: make(map[string]*AgentState)}
	for _, role := range agents.Roles() {
		b.states[string(role)] = &AgentState{Role: string(role), Status: "idle"}
	}
	return b
}

// Apply merges an agent event into the board. It reports whether the
// event changed anything.
func (b AgentBoard) Apply(ev events.Event) bool {
	if ev.AgentRole == "" {
		return false
	}
	if ev.Type != events.TypeAgentStatus && ev.Type != events.TypeAgentStep {
		return false
	}

	st, ok := b.states[ev.AgentRole]
	if !ok {
		st = &AgentState{Role: ev.AgentRole, Status: "idle"}
		b.states[ev.AgentRole] = st
	}
	if v, ok := ev.Data["status"].(string); ok && v != "" {
		st.Status = v
	}
	if v, ok := ev.Data["model"].(string); ok && v != "" {
		st.Model = v
	}
	if v, ok := ev.Data["currentStep"].(string); ok {
		st.CurrentStep = v
	}
	return true
}

// States returns the fixed roles in run-log order, then any others.
func (b AgentBoard) States() []AgentState {
	out := make([]AgentState, 0, len(b.states))
	seen := make(map[string]bool, len(b.states))
	for _, role := range agents.Roles() {
		if st, ok := b.states[string(role)]; ok {
			out = append(out, *st)
			seen[string(role)] = true
		}
	}
	for role, st := range b.states {
		if !seen[role] {
			out = append(out, *st)
		}
	}
	return out
}

// Get returns the state of one role.
func (b AgentBoard) Get(role string) (AgentState, bool) {
	st, ok := b.states[role]
	if !ok {
		return AgentState{}, false
	}
	return *st, true
}
