// Package workspace observes and mutates the directory a run operates on.
//
// A Gateway snapshots the included files (sha256 + UTF-8 text), diffs the
// current tree against a baseline captured at run start, runs allow-listed
// commands with the workspace as working directory, and creates new project
// directories without letting the target escape the workspace root.
//
// Command failures are data: RunCommand never returns an error.
package workspace
