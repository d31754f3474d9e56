// Package git wraps the few repository operations the harness needs:
// detecting a repository marker, reading the current branch and
// initializing a fresh repository for new projects.
package git

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

var (
	// ErrNotGitRepo indicates the directory is not a Git repository
	ErrNotGitRepo = errors.New("not a git repository")
)

// Detached is reported as the branch name when HEAD points at a commit.
const Detached = "detached"

// HasRepo reports whether path carries a .git marker (directory or worktree file).
func HasRepo(path string) bool {
	_, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil
}

// DetectBranch returns the short branch name HEAD points to.
//
// A freshly initialized repository has no commits, so HEAD is an unborn
// symbolic ref; its target branch is still reported.
func DetectBranch(path string) (string, error) {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return "", fmt.Errorf("%w: %s", ErrNotGitRepo, path)
		}
		return "", fmt.Errorf("opening repository: %w", err)
	}

	head, err := repo.Head()
	if err == nil {
		if head.Name().IsBranch() {
			return head.Name().Short(), nil
		}
		return Detached, nil
	}
	if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", fmt.Errorf("reading HEAD: %w", err)
	}

	sym, err := repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("reading HEAD: %w", err)
	}
	if sym.Type() == plumbing.SymbolicReference && sym.Target().IsBranch() {
		return sym.Target().Short(), nil
	}
	return Detached, nil
}

// Init creates an empty non-bare repository at path.
func Init(path string) error {
	if _, err := gogit.PlainInit(path, false); err != nil {
		return fmt.Errorf("initializing repository at %s: %w", path, err)
	}
	return nil
}

// IsMainBranch checks if the given branch name is "main" or "master".
func IsMainBranch(branch string) bool {
	return branch == "main" || branch == "master"
}
