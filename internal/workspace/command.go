package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// exitNotFound mirrors the shell convention for a missing executable.
const exitNotFound = 127

// CommandResult is the outcome of RunCommand. Failure is reported here,
// never as an error.
type CommandResult struct {
	Command    string `json:"command"`
	Skipped    bool   `json:"skipped"`
	ReturnCode int    `json:"returncode"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	DurationMS int64  `json:"durationMs,omitempty"`
}

// Passed reports whether the command ran and exited zero.
func (r CommandResult) Passed() bool {
	return !r.Skipped && r.ReturnCode == 0
}

// Outcome returns "skipped", "passed" or "failed".
func (r CommandResult) Outcome() string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.ReturnCode == 0:
		return "passed"
	default:
		return "failed"
	}
}

// RunCommand executes command in the workspace root without a shell.
//
// An empty command is skipped. When an allow-list is configured, commands
// whose executable base name is not on it are skipped and never spawned.
// Cancelling ctx kills the child process; callers that want in-flight
// commands to finish should pass a context that outlives operator cancel.
func (g *Gateway) RunCommand(ctx context.Context, command string) CommandResult {
	result := CommandResult{Command: command}
	if strings.TrimSpace(command) == "" {
		result.Skipped = true
		return result
	}

	argv, err := splitCommand(command)
	if err != nil {
		result.Skipped = true
		result.Stderr = err.Error()
		return result
	}

	exe := filepath.Base(argv[0])
	if len(g.opts.Allowlist) > 0 && !slices.Contains(g.opts.Allowlist, exe) {
		result.Skipped = true
		result.Stderr = "command not allowlisted: " + exe
		return result
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = g.Root()
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	result.DurationMS = time.Since(start).Milliseconds()
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ReturnCode = 0
	case errors.As(err, &exitErr):
		result.ReturnCode = exitErr.ExitCode()
	default:
		result.ReturnCode = exitNotFound
		if result.Stderr != "" && !strings.HasSuffix(result.Stderr, "\n") {
			result.Stderr += "\n"
		}
		result.Stderr += err.Error()
	}
	return result
}

// splitCommand tokenizes a command line with POSIX-shell quoting rules:
// whitespace separates words, single quotes are literal, double quotes
// allow backslash escapes of \ " $ and `, and an unquoted backslash escapes
// the next character. No expansion of any kind is performed.
func splitCommand(s string) ([]string, error) {
	var (
		words   []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, r := range s {
		switch {
		case escaped:
			if quote == '"' && !strings.ContainsRune("\\\"$`\n", r) {
				cur.WriteRune('\\')
			}
			cur.WriteRune(r)
			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case quote == '"':
			switch r {
			case '"':
				quote = 0
			case '\\':
				escaped = true
			default:
				cur.WriteRune(r)
			}
		case r == '\\':
			escaped = true
			inWord = true
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t' || r == '\n':
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}

	if escaped {
		return nil, fmt.Errorf("command ends with an unfinished escape: %q", s)
	}
	if quote != 0 {
		return nil, fmt.Errorf("command has an unterminated %c quote: %q", quote, s)
	}
	if inWord {
		words = append(words, cur.String())
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("command is empty: %q", s)
	}
	return words, nil
}
