package secrets

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// GitleaksScrubber redacts anything the gitleaks default ruleset flags.
// It is slower than the regexp scrubber and is enabled by secrets.gitleaks.
type GitleaksScrubber struct {
	mu       sync.Mutex
	detector *detect.Detector
	allow    []*regexp.Regexp
	marker   string
}

// NewGitleaks builds a gitleaks-backed scrubber. allow may be nil.
func NewGitleaks(marker string, allow *Allowlist) (*GitleaksScrubber, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("creating gitleaks detector: %w", err)
	}
	if marker == "" {
		marker = DefaultRedaction
	}

	g := &GitleaksScrubber{detector: detector, marker: marker}
	for _, p := range allow.Patterns() {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRegex, p, err)
		}
		g.allow = append(g.allow, re)
	}
	return g, nil
}

// Scrub replaces every secret gitleaks reports with the marker.
func (g *GitleaksScrubber) Scrub(content string) *Result {
	result := &Result{Scrubbed: content, ByRule: make(map[string]int)}
	if content == "" {
		return result
	}

	g.mu.Lock()
	findings := g.detector.DetectString(content)
	g.mu.Unlock()

	scrubbed := content
	for _, f := range findings {
		if f.Secret == "" || g.isAllowed(f.Secret) || g.isAllowed(f.Match) {
			continue
		}
		start := strings.Index(content, f.Secret)
		result.Findings = append(result.Findings, Finding{
			RuleID:      f.RuleID,
			Description: f.Description,
			Severity:    "high",
			StartIndex:  start,
			EndIndex:    start + len(f.Secret),
			Line:        f.StartLine + 1,
		})
		result.ByRule[f.RuleID]++
		scrubbed = strings.ReplaceAll(scrubbed, f.Secret, g.marker)
	}

	result.Scrubbed = scrubbed
	result.TotalFindings = len(result.Findings)
	return result
}

// IsEnabled returns true.
func (g *GitleaksScrubber) IsEnabled() bool { return true }

func (g *GitleaksScrubber) isAllowed(s string) bool {
	for _, re := range g.allow {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

var _ Scrubber = (*GitleaksScrubber)(nil)
