package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Entry is one file in a Snapshot.
type Entry struct {
	Hash string `json:"hash"`
	Text string `json:"text"`
}

// Snapshot maps slash-separated relative paths to their content.
// Snapshots are values: a new capture never mutates an older one.
type Snapshot map[string]Entry

// Paths returns the snapshot keys in sorted order.
func (s Snapshot) Paths() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Options configures a Gateway.
type Options struct {
	IncludeGlobs []string
	ExcludeGlobs []string

	// Allowlist restricts RunCommand to these executable base names.
	// Empty means every command may run.
	Allowlist []string

	// Git marks the gateway as backed by a git repository, enabling branch
	// reporting in Metadata.
	Git bool
}

// Gateway is the run's view of its workspace directory.
type Gateway struct {
	mu       sync.RWMutex
	root     string
	opts     Options
	baseline Snapshot
}

// New returns a Gateway rooted at root. The directory need not exist yet.
func New(root string, opts Options) (*Gateway, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root %s: %w", root, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	if len(opts.IncludeGlobs) == 0 {
		opts.IncludeGlobs = []string{"**/*"}
	}
	return &Gateway{root: abs, opts: opts, baseline: Snapshot{}}, nil
}

// Root returns the current working root.
func (g *Gateway) Root() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.root
}

// Baseline returns a copy of the captured baseline.
func (g *Gateway) Baseline() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(Snapshot, len(g.baseline))
	for k, v := range g.baseline {
		out[k] = v
	}
	return out
}

// CaptureBaseline replaces the baseline with a fresh snapshot.
func (g *Gateway) CaptureBaseline() error {
	snap, err := g.snapshot()
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.baseline = snap
	g.mu.Unlock()
	return nil
}

// ListFiles returns the sorted relative paths currently included.
func (g *Gateway) ListFiles() ([]string, error) {
	snap, err := g.snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Paths(), nil
}

// snapshot walks the root and reads every included regular file.
// The .git directory is never descended into.
func (g *Gateway) snapshot() (Snapshot, error) {
	root := g.Root()
	snap := Snapshot{}

	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return snap, nil
	}

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !included(rel, g.opts.IncludeGlobs, g.opts.ExcludeGlobs) {
			return nil
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(data)
		snap[rel] = Entry{
			Hash: hex.EncodeToString(sum[:]),
			Text: strings.ToValidUTF8(string(data), "�"),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("snapshotting %s: %w", root, err)
	}
	return snap, nil
}
