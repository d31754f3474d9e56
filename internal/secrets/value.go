package secrets

import (
	"encoding/json"
	"fmt"
)

// RedactString scrubs a single string.
func RedactString(s Scrubber, v string) string {
	if s == nil || !s.IsEnabled() {
		return v
	}
	return s.Scrub(v).Scrubbed
}

// RedactValue returns a copy of v with every string leaf scrubbed.
// Maps and slices are walked recursively; numbers, booleans and nil pass
// through. Other types are normalized through JSON first so struct fields
// are covered too. Map keys are left untouched.
func RedactValue(s Scrubber, v any) any {
	if s == nil || !s.IsEnabled() {
		return v
	}

	switch val := v.(type) {
	case nil, bool, int, int32, int64, uint, uint32, uint64, float32, float64, json.Number:
		return val
	case string:
		return s.Scrub(val).Scrubbed
	case []string:
		out := make([]string, len(val))
		for i, item := range val {
			out[i] = s.Scrub(item).Scrubbed
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = RedactValue(s, item)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, item := range val {
			out[k] = s.Scrub(item).Scrubbed
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = RedactValue(s, item)
		}
		return out
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return s.Scrub(fmt.Sprint(v)).Scrubbed
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return s.Scrub(string(raw)).Scrubbed
	}
	return RedactValue(s, generic)
}

// RedactMap scrubs a payload map, returning nil for a nil input.
func RedactMap(s Scrubber, m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return RedactValue(s, m).(map[string]any)
}
