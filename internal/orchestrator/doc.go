// Package orchestrator runs the plan, build and review loop over a workspace.
//
// # Overview
//
// A run gathers the workspace files, asks the frontend role for a plan,
// runs the configured format, lint and test commands, then alternates the
// builder and architecture roles until review reports no high-severity
// finding or the retry budget is spent:
//
//	started → context_gathered → planning → checking → building ⇄ reviewing → finalizing → completed
//
// The arch_review_only workflow reviews the workspace once and finalizes.
// Transitions are checked against a fixed table; every transition emits a
// workflow.phase event.
//
// # Control
//
// Pause and cancel are cooperative. The loop consults its control.Signal at
// named checkpoints (after start, before each check command and before each
// retry) and never interrupts an agent call or a running command. A
// cancelled run still writes every artifact with status cancelled.
//
// # Artifacts
//
// Each run owns <workspace>/.agent-harness/runs/<runId>/ holding plan.md,
// architecture-review.json, changes.patch, run-log.json, events.jsonl and
// final-summary.md, plus branch-note.txt in branch output mode.
//
// # Usage
//
//	o := orchestrator.New(cfg, orchestrator.WithLogger(logger))
//	ctl := control.New()
//	res, err := o.Run(ctx, orchestrator.RunRequest{
//		WorkspacePath: "./app",
//		Workflow:      orchestrator.WorkflowFrontendFeature,
//		TaskPrompt:    "Build a settings page",
//	}, orchestrator.WithSignal(ctl))
package orchestrator
