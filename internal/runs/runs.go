// Package runs is the read side of run history: it lists run directories
// under a workspace and loads their run log, events and artifacts.
package runs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fyrsmithlabs/archharness/internal/events"
	"github.com/fyrsmithlabs/archharness/internal/orchestrator"
)

var (
	// ErrRunNotFound is returned for an unknown or malformed run id.
	ErrRunNotFound = errors.New("run not found")
	// ErrArtifactNotFound is returned for an unknown artifact name.
	ErrArtifactNotFound = errors.New("artifact not found")
)

// artifactOrder lists known artifacts in the order a run writes them.
var artifactOrder = []string{
	orchestrator.ArtifactPlan,
	orchestrator.ArtifactReview,
	orchestrator.ArtifactPatch,
	orchestrator.ArtifactRunLog,
	events.FileName,
	orchestrator.ArtifactFinalSummary,
	orchestrator.ArtifactBranchNote,
}

// Run summarizes one run directory.
type Run struct {
	ID         string    `json:"runId"`
	Dir        string    `json:"runDir"`
	StartedAt  time.Time `json:"startedAt"`
	Workflow   string    `json:"workflow,omitempty"`
	Status     string    `json:"status,omitempty"`
	Iterations int       `json:"iterations"`
	Error      string    `json:"error,omitempty"`
}

// Artifact is one file inside a run directory.
type Artifact struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// runKey splits a run id into its timestamp and collision suffix.
type runKey struct {
	started time.Time
	seq     int
}

func parseID(id string) (runKey, bool) {
	base, suffix, hasSuffix := strings.Cut(id, "-")
	ts, err := time.Parse(orchestrator.RunIDLayout, base)
	if err != nil {
		return runKey{}, false
	}
	k := runKey{started: ts}
	if hasSuffix {
		n, err := strconv.Atoi(suffix)
		if err != nil || n < 1 {
			return runKey{}, false
		}
		k.seq = n
	}
	return k, true
}

// List returns every run of the workspace, newest first. A workspace
// without runs yields an empty list.
func List(workspace string) ([]Run, error) {
	root := orchestrator.RunsRoot(workspace)
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return []Run{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	type keyed struct {
		key runKey
		run Run
	}
	var found []keyed
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		k, ok := parseID(e.Name())
		if !ok {
			continue
		}
		r, err := load(filepath.Join(root, e.Name()), e.Name(), k)
		if err != nil {
			return nil, err
		}
		found = append(found, keyed{key: k, run: r})
	}

	sort.Slice(found, func(i, j int) bool {
		a, b := found[i].key, found[j].key
		if !a.started.Equal(b.started) {
			return a.started.After(b.started)
		}
		return a.seq > b.seq
	})

	out := make([]Run, len(found))
	for i, f := range found {
		out[i] = f.run
	}
	return out, nil
}

// Dir returns the directory of run id, or ErrRunNotFound.
func Dir(workspace, id string) (string, error) {
	if _, ok := parseID(id); !ok {
		return "", fmt.Errorf("%w: %q", ErrRunNotFound, id)
	}
	dir := filepath.Join(orchestrator.RunsRoot(workspace), id)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %q", ErrRunNotFound, id)
	}
	return dir, nil
}

// Get loads the summary of run id.
func Get(workspace, id string) (Run, error) {
	dir, err := Dir(workspace, id)
	if err != nil {
		return Run{}, err
	}
	k, _ := parseID(id)
	return load(dir, id, k)
}

// Load reads a run directory given by path, as the logs command does.
func Load(dir string) (Run, error) {
	dir = filepath.Clean(dir)
	id := filepath.Base(dir)
	k, _ := parseID(id)
	return load(dir, id, k)
}

func load(dir, id string, k runKey) (Run, error) {
	r := Run{ID: id, Dir: dir, StartedAt: k.started}

	rl, err := RunLog(dir)
	switch {
	case err == nil:
		r.Workflow = rl.Workflow
		r.Status = rl.Status
		r.Iterations = rl.Iterations
		r.Error = rl.Error
	case errors.Is(err, ErrArtifactNotFound):
		// The run log is written after the first events; fall back to them.
		evs, err := events.ReadFile(filepath.Join(dir, events.FileName))
		if err != nil {
			return Run{}, err
		}
		r.Status = events.LastStatus(evs)
	default:
		return Run{}, err
	}
	return r, nil
}

// RunLog decodes run-log.json of a run directory.
func RunLog(dir string) (*orchestrator.RunLog, error) {
	raw, err := os.ReadFile(filepath.Join(dir, orchestrator.ArtifactRunLog))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, orchestrator.ArtifactRunLog)
	}
	if err != nil {
		return nil, fmt.Errorf("reading run log: %w", err)
	}
	var rl orchestrator.RunLog
	if err := json.Unmarshal(raw, &rl); err != nil {
		return nil, fmt.Errorf("decoding run log: %w", err)
	}
	return &rl, nil
}

// Events returns the run's events narrowed by f.
func Events(dir string, f events.Filter) ([]events.Event, error) {
	evs, err := events.ReadFile(filepath.Join(dir, events.FileName))
	if err != nil {
		return nil, err
	}
	return f.Apply(evs), nil
}

// Artifacts lists the files of a run directory. Known artifacts come first
// in write order, anything else follows by name.
func Artifacts(dir string) ([]Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}

	rank := make(map[string]int, len(artifactOrder))
	for i, name := range artifactOrder {
		rank[name] = i
	}

	out := make([]Artifact, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Artifact{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, iKnown := rank[out[i].Name]
		rj, jKnown := rank[out[j].Name]
		switch {
		case iKnown && jKnown:
			return ri < rj
		case iKnown != jKnown:
			return iKnown
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// ReadArtifact returns the content of one artifact. Names must be plain
// file names inside the run directory.
func ReadArtifact(dir, name string) ([]byte, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("%w: %q", ErrArtifactNotFound, name)
	}
	raw, err := os.ReadFile(filepath.Join(dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrArtifactNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}
	return raw, nil
}
