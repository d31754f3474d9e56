// Package agents defines the three role contracts of a run and their
// built-in deterministic implementations.
//
// The frontend role plans, the builder implements and the architecture role
// reviews. Each role has exactly one capability; the orchestrator holds one
// implementation per role.
package agents

import (
	"context"
	"fmt"
	"strings"
)

// Role identifies one of the fixed agent roles.
type Role string

const (
	RoleFrontend     Role = "frontend"
	RoleBuilder      Role = "builder"
	RoleArchitecture Role = "architecture"
)

// Roles returns every role in the order the run log lists them.
func Roles() []Role {
	return []Role{RoleFrontend, RoleBuilder, RoleArchitecture}
}

// Severity grades a review finding. Only SeverityHigh blocks convergence.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities; unknown values rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	}
	return 0
}

// Plan is the frontend role's output.
type Plan struct {
	Task               string   `json:"task"`
	Components         []string `json:"components"`
	FilesToTouch       []string `json:"filesToTouch"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
	EdgeCases          []string `json:"edgeCases"`
}

// Markdown renders the plan as written to plan.md.
func (p Plan) Markdown() string {
	files := "none"
	if len(p.FilesToTouch) > 0 {
		files = strings.Join(p.FilesToTouch, ", ")
	}
	var b strings.Builder
	b.WriteString("# Frontend Plan\n\n")
	fmt.Fprintf(&b, "- Task: %s\n", p.Task)
	fmt.Fprintf(&b, "- Components: %s\n", strings.Join(p.Components, ", "))
	fmt.Fprintf(&b, "- Files to touch: %s\n", files)
	return b.String()
}

// BuildResult is the builder role's output.
type BuildResult struct {
	ImplementedFromPlan bool     `json:"implementedFromPlan"`
	FilesTouched        []string `json:"filesTouched"`
	AppliedActions      []string `json:"appliedActions"`
	Notes               string   `json:"notes"`
}

// Finding is one issue raised by review. Location fields are null in JSON
// when unknown.
type Finding struct {
	Severity  Severity `json:"severity"`
	Rule      string   `json:"rule"`
	File      *string  `json:"file"`
	Line      *int     `json:"line"`
	Symbol    *string  `json:"symbol"`
	Rationale string   `json:"rationale"`
}

// Review is the architecture role's output.
type Review struct {
	Findings        []Finding `json:"findings"`
	RequiredActions []string  `json:"requiredActions"`
}

// HighCount returns the number of high-severity findings.
func (r Review) HighCount() int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == SeverityHigh {
			n++
		}
	}
	return n
}

// HasHigh reports whether any finding blocks convergence.
func (r Review) HasHigh() bool { return r.HighCount() > 0 }

// Planner produces a Plan from the task and the gathered context files.
type Planner interface {
	Model() string
	Plan(ctx context.Context, task string, contextFiles []string) (Plan, error)
}

// Builder applies a Plan, optionally with corrective actions from review.
type Builder interface {
	Model() string
	Implement(ctx context.Context, plan Plan, actions []string) (BuildResult, error)
}

// Reviewer inspects the current diff.
type Reviewer interface {
	Model() string
	Review(ctx context.Context, diff string, filesTouched, appliedActions []string) (Review, error)
}

// Team is one implementation per role.
type Team struct {
	Frontend     Planner
	Builder      Builder
	Architecture Reviewer
}

// Model returns the model configured for role.
func (t Team) Model(role Role) string {
	switch role {
	case RoleFrontend:
		return t.Frontend.Model()
	case RoleBuilder:
		return t.Builder.Model()
	case RoleArchitecture:
		return t.Architecture.Model()
	}
	return ""
}

// Validate reports a missing role implementation.
func (t Team) Validate() error {
	switch {
	case t.Frontend == nil:
		return fmt.Errorf("no %s agent configured", RoleFrontend)
	case t.Builder == nil:
		return fmt.Errorf("no %s agent configured", RoleBuilder)
	case t.Architecture == nil:
		return fmt.Errorf("no %s agent configured", RoleArchitecture)
	}
	return nil
}
