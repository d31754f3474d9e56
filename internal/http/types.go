package http

import (
	"github.com/fyrsmithlabs/archharness/internal/events"
	"github.com/fyrsmithlabs/archharness/internal/orchestrator"
	"github.com/fyrsmithlabs/archharness/internal/runs"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Status    string       `json:"status"`
	Workspace string       `json:"workspace"`
	Counts    StatusCounts `json:"counts"`
}

// StatusCounts tallies runs by final status.
type StatusCounts struct {
	Total     int `json:"total"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
	Failed    int `json:"failed"`
	Unknown   int `json:"unknown"`
}

// CountByStatus tallies a run list. Runs without a recorded status count
// as unknown.
func CountByStatus(list []runs.Run) StatusCounts {
	c := StatusCounts{Total: len(list)}
	for _, r := range list {
		switch r.Status {
		case orchestrator.StatusRunning:
			c.Running++
		case orchestrator.StatusCompleted:
			c.Completed++
		case orchestrator.StatusCancelled:
			c.Cancelled++
		case orchestrator.StatusFailed:
			c.Failed++
		default:
			c.Unknown++
		}
	}
	return c
}

// RunsResponse is the response body for GET /api/v1/runs.
type RunsResponse struct {
	Runs  []runs.Run `json:"runs"`
	Count int        `json:"count"`
}

// RunResponse is the response body for GET /api/v1/runs/:id.
type RunResponse struct {
	Run       runs.Run             `json:"run"`
	RunLog    *orchestrator.RunLog `json:"runLog,omitempty"`
	Artifacts []runs.Artifact      `json:"artifacts"`
}

// EventsResponse is the response body for GET /api/v1/runs/:id/events.
type EventsResponse struct {
	Events []events.Event `json:"events"`
	Count  int            `json:"count"`
}

// ArtifactsResponse is the response body for GET /api/v1/runs/:id/artifacts.
type ArtifactsResponse struct {
	Artifacts []runs.Artifact `json:"artifacts"`
}

// ScrubRequest is the request body for POST /api/v1/scrub.
type ScrubRequest struct {
	Content string `json:"content"`
}

// ScrubResponse is the response body for POST /api/v1/scrub.
type ScrubResponse struct {
	Content       string `json:"content"`
	FindingsCount int    `json:"findings_count"`
}
