// Package events is the append-only audit pipeline of a run.
//
// Every event is redacted, persisted to events.jsonl and only then forwarded
// to the live subscriber and any fan-out sinks, so the file is always the
// complete record even when nobody is watching.
package events

import "time"

// FileName is the event log name inside a run directory.
const FileName = "events.jsonl"

// Source tags which part of the system produced an event.
type Source string

const (
	SourceOrchestrator Source = "orchestrator"
	SourceAgent        Source = "agent"
	SourceRepo         Source = "repo"
	SourceCommand      Source = "command"
)

// Level is the event severity.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Event types emitted by the orchestrator.
const (
	TypeRunStarted      = "run.started"
	TypeAgentStatus     = "agent.status"
	TypeAgentStep       = "agent.step"
	TypeToolCall        = "tool.call"
	TypeWorkflowPhase   = "workflow.phase"
	TypeReviewIteration = "review.iteration"
	TypeRunCompleted    = "run.completed"
	TypeRunCancelled    = "run.cancelled"
	TypeRunFailed       = "run.failed"
)

// Event is one line of events.jsonl.
type Event struct {
	EventID   string         `json:"eventId"`
	RunID     string         `json:"runId"`
	Timestamp time.Time      `json:"timestamp"`
	Source    Source         `json:"source"`
	AgentRole string         `json:"agentRole,omitempty"`
	Type      string         `json:"type"`
	Level     Level          `json:"level"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data"`
}

// StatusFromType maps a terminal event type to the run status it implies.
// It returns "" for events that carry no status.
func StatusFromType(typ string) string {
	switch typ {
	case TypeRunStarted:
		return "running"
	case TypeRunCompleted:
		return "completed"
	case TypeRunCancelled:
		return "cancelled"
	case TypeRunFailed:
		return "failed"
	}
	return ""
}

// LastStatus returns the status implied by the last status-bearing event.
func LastStatus(evs []Event) string {
	for i := len(evs) - 1; i >= 0; i-- {
		if s := StatusFromType(evs[i].Type); s != "" {
			return s
		}
	}
	return ""
}
