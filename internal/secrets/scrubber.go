package secrets

import (
	"sort"
	"strings"
)

// Scrubber detects and redacts secrets from content.
type Scrubber interface {
	// Scrub redacts secrets from the content.
	Scrub(content string) *Result

	// IsEnabled returns whether scrubbing is enabled.
	IsEnabled() bool
}

// scrubber is the regexp implementation of Scrubber.
// Compiled rules are read-only after New, so it is safe for concurrent use.
type scrubber struct {
	config *Config
}

// span marks a byte range to redact.
type span struct {
	start, end int
}

// New creates a new Scrubber with the given configuration.
// If config is nil, DefaultConfig() is used.
func New(cfg *Config) (Scrubber, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &scrubber{config: cfg}, nil
}

// MustNew creates a new Scrubber, panicking on error.
func MustNew(cfg *Config) Scrubber {
	s, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

// Scrub redacts secrets from the content.
func (s *scrubber) Scrub(content string) *Result {
	result := &Result{
		Scrubbed: content,
		ByRule:   make(map[string]int),
	}
	if !s.config.Enabled || content == "" {
		return result
	}

	var spans []span
	for _, rule := range s.config.compiledRules {
		if !rule.applies(content) {
			continue
		}
		for _, m := range rule.pattern.FindAllStringIndex(content, -1) {
			if s.isAllowed(content[m[0]:m[1]]) {
				continue
			}
			result.Findings = append(result.Findings, Finding{
				RuleID:      rule.ID,
				Description: rule.Description,
				Severity:    rule.Severity,
				StartIndex:  m[0],
				EndIndex:    m[1],
				Line:        strings.Count(content[:m[0]], "\n") + 1,
			})
			result.ByRule[rule.ID]++
			spans = append(spans, span{start: m[0], end: m[1]})
		}
	}

	result.TotalFindings = len(result.Findings)
	if len(spans) > 0 {
		result.Scrubbed = applySpans(content, spans, s.config.RedactionString)
	}
	return result
}

// IsEnabled returns whether scrubbing is enabled.
func (s *scrubber) IsEnabled() bool {
	return s.config.Enabled
}

func (r *compiledRule) applies(content string) bool {
	if len(r.keywords) == 0 {
		return true
	}
	for _, kw := range r.keywords {
		if kw.MatchString(content) {
			return true
		}
	}
	return false
}

func (s *scrubber) isAllowed(match string) bool {
	for _, pattern := range s.config.compiledAllowList {
		if pattern.MatchString(match) {
			return true
		}
	}
	return false
}

// applySpans merges overlapping spans and replaces each with marker.
func applySpans(content string, spans []span, marker string) string {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	merged := []span{spans[0]}
	for _, cur := range spans[1:] {
		last := &merged[len(merged)-1]
		if cur.start <= last.end {
			if cur.end > last.end {
				last.end = cur.end
			}
			continue
		}
		merged = append(merged, cur)
	}

	var b strings.Builder
	b.Grow(len(content))
	prev := 0
	for _, sp := range merged {
		b.WriteString(content[prev:sp.start])
		b.WriteString(marker)
		prev = sp.end
	}
	b.WriteString(content[prev:])
	return b.String()
}

// Chain runs scrubbers in order, feeding each the previous output.
type Chain []Scrubber

// Scrub applies every enabled scrubber in the chain.
func (c Chain) Scrub(content string) *Result {
	result := &Result{Scrubbed: content, ByRule: make(map[string]int)}
	for _, s := range c {
		if s == nil || !s.IsEnabled() {
			continue
		}
		r := s.Scrub(result.Scrubbed)
		result.Scrubbed = r.Scrubbed
		result.Findings = append(result.Findings, r.Findings...)
		for id, n := range r.ByRule {
			result.ByRule[id] += n
		}
	}
	result.TotalFindings = len(result.Findings)
	return result
}

// IsEnabled reports whether any scrubber in the chain is enabled.
func (c Chain) IsEnabled() bool {
	for _, s := range c {
		if s != nil && s.IsEnabled() {
			return true
		}
	}
	return false
}

// NoopScrubber is a scrubber that does nothing (for testing or disabled mode).
type NoopScrubber struct{}

// Scrub returns content unchanged.
func (NoopScrubber) Scrub(content string) *Result {
	return &Result{Scrubbed: content, ByRule: make(map[string]int)}
}

// IsEnabled returns false.
func (NoopScrubber) IsEnabled() bool {
	return false
}

var (
	_ Scrubber = (*scrubber)(nil)
	_ Scrubber = Chain(nil)
	_ Scrubber = NoopScrubber{}
)
