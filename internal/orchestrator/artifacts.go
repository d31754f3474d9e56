package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyrsmithlabs/archharness/internal/agents"
)

// Artifact file names inside a run directory.
const (
	ArtifactPlan         = "plan.md"
	ArtifactReview       = "architecture-review.json"
	ArtifactPatch        = "changes.patch"
	ArtifactRunLog       = "run-log.json"
	ArtifactFinalSummary = "final-summary.md"
	ArtifactBranchNote   = "branch-note.txt"
)

// HarnessDir is the per-workspace directory the harness owns.
const HarnessDir = ".agent-harness"

// RunIDLayout formats run directory names.
const RunIDLayout = "20060102T150405Z"

const branchNote = "Branch mode selected. Create and push branch using your VCS workflow."

// RunsRoot returns the directory holding every run of a workspace.
func RunsRoot(workspace string) string {
	return filepath.Join(workspace, HarnessDir, "runs")
}

// createRunDir makes a fresh run directory named after now. Collisions
// within the same second get a -N suffix.
func createRunDir(workspace string, now time.Time) (string, string, error) {
	root := RunsRoot(workspace)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", "", fmt.Errorf("creating runs directory: %w", err)
	}

	base := now.UTC().Format(RunIDLayout)
	for i := 0; i < 1000; i++ {
		id := base
		if i > 0 {
			id = fmt.Sprintf("%s-%d", base, i)
		}
		dir := filepath.Join(root, id)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return id, dir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", "", fmt.Errorf("creating run directory: %w", err)
		}
	}
	return "", "", fmt.Errorf("too many runs named %s", base)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return writeText(path, string(data))
}

func writeText(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// FinalSummary renders final-summary.md.
func FinalSummary(changed []string, checks []CheckResult, review agents.Review) string {
	lines := []string{"# Final Summary", "", "## Changed files"}
	if len(changed) == 0 {
		lines = append(lines, "- none")
	}
	for _, f := range changed {
		lines = append(lines, "- "+f)
	}

	lines = append(lines, "", "## Tests/commands run")
	if len(checks) == 0 {
		lines = append(lines, "- none")
	}
	for _, c := range checks {
		lines = append(lines, fmt.Sprintf("- %s: %s", checkLabel(c), c.Outcome()))
	}

	resolved := "yes"
	if review.HasHigh() {
		resolved = "no"
	}
	lines = append(lines,
		"",
		"## Architecture findings",
		"- resolved high severity: "+resolved,
		fmt.Sprintf("- unresolved count: %d", review.HighCount()),
	)
	return strings.Join(lines, "\n")
}

func checkLabel(c CheckResult) string {
	if c.Command == "" {
		return c.Check
	}
	return c.Command
}
