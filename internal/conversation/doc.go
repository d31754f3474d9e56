// Package conversation turns an operator chat into a validated run request.
//
// The Controller fills slots (task, workspace path and mode, project name,
// workflow, model overrides) from free-form messages using fixed patterns,
// applied per message in this order:
//
//  1. "set/change the <field> to <value>" edits one slot and stops.
//  2. "use <model> for <role>" sets model overrides; several may appear.
//  3. The workflow is inferred once from "architecture review" phrasing.
//  4. "new <kind> app/project" selects new-project mode, with an optional
//     "called <Name>".
//  5. The first path token (./x, ../x, /x, ~/x) fills the workspace path and
//     probes it for a git repository.
//  6. The remaining text becomes the task, or restates it on later turns.
//
// While a required slot is missing ProcessMessage answers with a question
// about the first one; once complete it answers with a summary the operator
// confirms before BuildRunRequest hands the request to the orchestrator.
//
//	ctrl := conversation.NewController(cfg)
//	reply, done := ctrl.ProcessMessage("Create a new React app called ClaimsPortal")
//	if done {
//		req, err := ctrl.BuildRunRequest()
//	}
package conversation
