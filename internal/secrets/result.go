package secrets

// Result contains the scrubbing result.
type Result struct {
	// Scrubbed is the content with secrets redacted
	Scrubbed string `json:"scrubbed"`

	// Findings contains the detected secrets (without actual values)
	Findings []Finding `json:"findings,omitempty"`

	TotalFindings int            `json:"totalFindings"`
	ByRule        map[string]int `json:"byRule,omitempty"`
}

// Finding represents a detected secret. The matched value is never stored.
type Finding struct {
	RuleID      string `json:"ruleId"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	StartIndex  int    `json:"startIndex"`
	EndIndex    int    `json:"endIndex"`
	Line        int    `json:"line,omitempty"`
}

// HasFindings returns true if any secrets were found.
func (r *Result) HasFindings() bool {
	return r.TotalFindings > 0
}
