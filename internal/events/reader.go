package events

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// DefaultLimit is how many events a filtered view keeps.
const DefaultLimit = 50

// maxLineSize bounds a single event line; command output can be large.
const maxLineSize = 8 * 1024 * 1024

// ReadFile loads every event from an events.jsonl file. A missing file
// yields no events. Blank and malformed lines are skipped so a log that is
// still being written can be read.
func ReadFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes newline-delimited events from r.
func Read(r io.Reader) ([]Event, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	var out []Event
	for sc.Scan() {
		if ev, ok := decodeLine(sc.Bytes()); ok {
			out = append(out, ev)
		}
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("reading event log: %w", err)
	}
	return out, nil
}

func decodeLine(line []byte) (Event, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Event{}, false
	}
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return Event{}, false
	}
	return ev, true
}

// Filter narrows a list of events for display.
type Filter struct {
	// Role keeps only events from this agent role. Empty keeps all.
	Role string
	// Search keeps events whose type, message or data contain the term,
	// case-insensitively.
	Search string
	// Limit keeps the most recent N matches. Zero means DefaultLimit,
	// negative means no limit.
	Limit int
}

// Matches reports whether ev passes the role and search criteria.
func (f Filter) Matches(ev Event) bool {
	if f.Role != "" && !strings.EqualFold(ev.AgentRole, f.Role) {
		return false
	}
	if f.Search == "" {
		return true
	}
	term := strings.ToLower(f.Search)
	if strings.Contains(strings.ToLower(ev.Message), term) ||
		strings.Contains(strings.ToLower(ev.Type), term) {
		return true
	}
	if len(ev.Data) == 0 {
		return false
	}
	raw, err := json.Marshal(ev.Data)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(raw)), term)
}

// Apply returns the matching events in their original order.
func (f Filter) Apply(evs []Event) []Event {
	out := make([]Event, 0, len(evs))
	for _, ev := range evs {
		if f.Matches(ev) {
			out = append(out, ev)
		}
	}
	limit := f.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
