package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/archharness/pkg/git"
)

// PathEscapeError reports a project name that would resolve outside the root.
type PathEscapeError struct {
	Root   string
	Target string
}

func (e *PathEscapeError) Error() string {
	return fmt.Sprintf("Project path escapes target root: %s is outside %s", e.Target, e.Root)
}

// Metadata describes the workspace for run logs and the monitor.
type Metadata struct {
	IsGit         bool   `json:"isGit"`
	Branch        string `json:"branch,omitempty"`
	WorkspacePath string `json:"workspacePath"`
}

// InitializeProject prepares the workspace directory and captures the baseline.
//
// With a name, root/name is created (it must not exist) and becomes the new
// root. A name that resolves outside the root returns *PathEscapeError before
// anything is created. Without a name the root itself is created if missing.
func (g *Gateway) InitializeProject(name string) (string, error) {
	root := g.Root()

	if name == "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return "", fmt.Errorf("creating workspace %s: %w", root, err)
		}
		return root, g.CaptureBaseline()
	}

	target := filepath.Clean(filepath.Join(root, name))
	if filepath.IsAbs(name) || escapes(root, target) {
		return "", &PathEscapeError{Root: root, Target: target}
	}
	// Symlinks below the root may point elsewhere; compare resolved paths.
	resolvedRoot, err := resolveExisting(root)
	if err != nil {
		return "", err
	}
	resolvedTarget, err := resolveExisting(target)
	if err != nil {
		return "", err
	}
	if escapes(resolvedRoot, resolvedTarget) {
		return "", &PathEscapeError{Root: root, Target: resolvedTarget}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("creating parent of %s: %w", target, err)
	}
	if err := os.Mkdir(target, 0o755); err != nil {
		return "", fmt.Errorf("creating project directory: %w", err)
	}

	g.mu.Lock()
	g.root = target
	g.mu.Unlock()

	return target, g.CaptureBaseline()
}

// resolveExisting evaluates symlinks in the deepest existing ancestor of p
// and re-attaches the components that do not exist yet.
func resolveExisting(p string) (string, error) {
	var rest []string
	cur := p
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("resolving %s: %w", cur, err)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p, nil
		}
		rest = append([]string{filepath.Base(cur)}, rest...)
		cur = parent
	}
}

func escapes(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return true
	}
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// InitializeGit creates a git repository in the root. It reports success
// and never returns an error; a successful init switches on branch reporting.
func (g *Gateway) InitializeGit() bool {
	if err := git.Init(g.Root()); err != nil {
		return false
	}
	g.mu.Lock()
	g.opts.Git = true
	g.mu.Unlock()
	return true
}

// Metadata reports repository state. Filesystem gateways always report
// isGit=false.
func (g *Gateway) Metadata() Metadata {
	g.mu.RLock()
	root, isGit := g.root, g.opts.Git
	g.mu.RUnlock()

	md := Metadata{WorkspacePath: root}
	if !isGit {
		return md
	}
	md.IsGit = git.HasRepo(root)
	if branch, err := git.DetectBranch(root); err == nil {
		md.Branch = branch
	}
	return md
}
