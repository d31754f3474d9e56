package workspace

import (
	"path"
	"strings"
)

// matchGlob reports whether the slash-separated rel path matches pattern.
//
// Within a segment, *, ? and [...] behave as in path.Match. A "**" segment
// matches zero or more whole segments. A pattern without "/" is also tried
// against the base name, so "*.md" matches "docs/readme.md".
func matchGlob(pattern, rel string) bool {
	if pattern == "" {
		return false
	}
	if !strings.Contains(pattern, "/") && pattern != "**" {
		if ok, _ := path.Match(pattern, path.Base(rel)); ok {
			return true
		}
	}
	return matchSegments(strings.Split(pattern, "/"), strings.Split(rel, "/"))
}

func matchSegments(pat, segs []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			// Collapse consecutive ** segments.
			for len(pat) > 1 && pat[1] == "**" {
				pat = pat[1:]
			}
			if len(pat) == 1 {
				return true
			}
			for i := 0; i <= len(segs); i++ {
				if matchSegments(pat[1:], segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		if ok, _ := path.Match(pat[0], segs[0]); !ok {
			return false
		}
		pat, segs = pat[1:], segs[1:]
	}
	return len(segs) == 0
}

// included applies include-then-exclude filtering.
func included(rel string, include, exclude []string) bool {
	in := false
	for _, p := range include {
		if matchGlob(p, rel) {
			in = true
			break
		}
	}
	if !in {
		return false
	}
	for _, p := range exclude {
		if matchGlob(p, rel) {
			return false
		}
	}
	return true
}
