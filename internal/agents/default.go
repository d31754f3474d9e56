package agents

import (
	"context"
	"slices"
	"strings"
)

const (
	maxPlannedFiles = 5

	// RemoveTODOAction is the corrective action paired with the TODO finding.
	RemoveTODOAction = "Remove TODO markers and complete implementation details."

	builderNotes = "Apply repo-specific implementation updates according to plan and review actions."
)

// Models selects the model identifier for each role.
type Models struct {
	Frontend     string
	Builder      string
	Architecture string
}

// DefaultTeam returns the deterministic built-in agents.
func DefaultTeam(m Models) Team {
	return Team{
		Frontend:     &FrontendPlanner{model: m.Frontend},
		Builder:      &PlanBuilder{model: m.Builder},
		Architecture: &ArchitectureReviewer{model: m.Architecture},
	}
}

// FrontendPlanner plans a UI feature around the first few context files.
type FrontendPlanner struct {
	model string
}

// NewFrontendPlanner returns a planner reporting model.
func NewFrontendPlanner(model string) *FrontendPlanner {
	return &FrontendPlanner{model: model}
}

func (p *FrontendPlanner) Model() string { return p.model }

func (p *FrontendPlanner) Plan(_ context.Context, task string, contextFiles []string) (Plan, error) {
	files := make([]string, min(len(contextFiles), maxPlannedFiles))
	copy(files, contextFiles)
	return Plan{
		Task:               task,
		Components:         []string{"feature-shell", "state-handler", "validation"},
		FilesToTouch:       files,
		AcceptanceCriteria: []string{"Implements requested behavior", "Handles edge cases", "Maintains accessibility"},
		EdgeCases:          []string{"Empty data state", "Validation error paths"},
	}, nil
}

// PlanBuilder records the plan's files and any corrective actions as applied.
type PlanBuilder struct {
	model string
}

// NewPlanBuilder returns a builder reporting model.
func NewPlanBuilder(model string) *PlanBuilder {
	return &PlanBuilder{model: model}
}

func (b *PlanBuilder) Model() string { return b.model }

func (b *PlanBuilder) Implement(_ context.Context, plan Plan, actions []string) (BuildResult, error) {
	files := slices.Clone(plan.FilesToTouch)
	if files == nil {
		files = []string{}
	}
	applied := slices.Clone(actions)
	if applied == nil {
		applied = []string{}
	}
	return BuildResult{
		ImplementedFromPlan: true,
		FilesTouched:        files,
		AppliedActions:      applied,
		Notes:               builderNotes,
	}, nil
}

// ArchitectureReviewer flags unfinished work left in the diff.
type ArchitectureReviewer struct {
	model string
}

// NewArchitectureReviewer returns a reviewer reporting model.
func NewArchitectureReviewer(model string) *ArchitectureReviewer {
	return &ArchitectureReviewer{model: model}
}

func (r *ArchitectureReviewer) Model() string { return r.model }

// Review raises a high structural finding when the diff contains a TODO
// marker and the matching corrective action has not been applied yet.
func (r *ArchitectureReviewer) Review(_ context.Context, diff string, filesTouched, appliedActions []string) (Review, error) {
	review := Review{Findings: []Finding{}, RequiredActions: []string{}}
	if !strings.Contains(diff, "TODO") || slices.Contains(appliedActions, RemoveTODOAction) {
		return review, nil
	}

	var file *string
	if len(filesTouched) > 0 {
		f := filesTouched[0]
		file = &f
	}
	review.Findings = append(review.Findings, Finding{
		Severity:  SeverityHigh,
		Rule:      "Structural quality",
		File:      file,
		Rationale: "TODO markers indicate unfinished implementation.",
	})
	review.RequiredActions = append(review.RequiredActions, RemoveTODOAction)
	return review, nil
}

var (
	_ Planner  = (*FrontendPlanner)(nil)
	_ Builder  = (*PlanBuilder)(nil)
	_ Reviewer = (*ArchitectureReviewer)(nil)
)
