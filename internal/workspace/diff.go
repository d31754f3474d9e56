package workspace

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Diff renders a unified diff of every path whose entry differs from the
// baseline, in sorted path order. An unchanged workspace yields "".
func (g *Gateway) Diff() (string, error) {
	current, err := g.snapshot()
	if err != nil {
		return "", err
	}
	baseline := g.Baseline()

	var b strings.Builder
	for _, rel := range unionPaths(baseline, current) {
		before, hadBefore := baseline[rel]
		after, hasAfter := current[rel]
		if hadBefore == hasAfter && before == after {
			continue
		}

		text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        splitLines(before.Text),
			B:        splitLines(after.Text),
			FromFile: "a/" + rel,
			ToFile:   "b/" + rel,
			Context:  3,
		})
		if err != nil {
			return "", fmt.Errorf("diffing %s: %w", rel, err)
		}
		b.WriteString(text)
		if text != "" && !strings.HasSuffix(text, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

// ChangedFiles returns sorted paths added, removed or modified since the baseline.
func (g *Gateway) ChangedFiles() ([]string, error) {
	current, err := g.snapshot()
	if err != nil {
		return nil, err
	}
	baseline := g.Baseline()

	changed := []string{}
	for _, rel := range unionPaths(baseline, current) {
		before, hadBefore := baseline[rel]
		after, hasAfter := current[rel]
		if hadBefore != hasAfter || before.Hash != after.Hash {
			changed = append(changed, rel)
		}
	}
	return changed, nil
}

func unionPaths(a, b Snapshot) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for p := range a {
		seen[p] = struct{}{}
	}
	for p := range b {
		seen[p] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// noNewline marks a final line without a terminator, as git and patch expect.
const noNewline = "\\ No newline at end of file\n"

// splitLines keeps line terminators. A final partial line carries the
// no-newline marker, so "x" and "x\n" differ and the marker lands right
// after the line it describes.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if last := len(lines) - 1; lines[last] == "" {
		lines = lines[:last]
	} else {
		lines[last] += "\n" + noNewline
	}
	return lines
}
