package secrets

import (
	"fmt"
	"regexp"

	"github.com/fyrsmithlabs/archharness/internal/config"
)

// DefaultRedaction is the marker substituted for detected secrets.
const DefaultRedaction = "[REDACTED]"

// Config configures the scrubber.
type Config struct {
	// Enabled controls whether scrubbing is active (default: true)
	Enabled bool `koanf:"enabled"`

	// Rules defines the detection rules
	Rules []Rule `koanf:"rules"`

	// RedactionString replaces detected secrets (default: "[REDACTED]")
	RedactionString string `koanf:"redactionString"`

	// AllowList contains patterns whose matches are never redacted
	AllowList []string `koanf:"allowList"`

	compiledRules     []*compiledRule
	compiledAllowList []*regexp.Regexp
}

// Rule defines a secret detection rule.
type Rule struct {
	ID          string `koanf:"id"`
	Description string `koanf:"description"`
	Pattern     string `koanf:"pattern"`

	// Keywords gate the rule: at least one must appear in the content.
	Keywords []string `koanf:"keywords"`

	Severity string `koanf:"severity"`
}

type compiledRule struct {
	Rule
	pattern  *regexp.Regexp
	keywords []*regexp.Regexp
}

// DefaultConfig returns a configuration with token-shape and keyword rules.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		RedactionString: DefaultRedaction,
		Rules:           DefaultRules(),
		AllowList:       []string{},
	}
}

// FromSettings builds a scrubber config from the harness secrets settings.
func FromSettings(s config.SecretsConfig) *Config {
	cfg := DefaultConfig()
	cfg.Enabled = s.Enabled
	if s.RedactionString != "" {
		cfg.RedactionString = s.RedactionString
	}
	return cfg
}

// Validate validates and compiles the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.RedactionString == "" {
		c.RedactionString = DefaultRedaction
	}

	c.compiledRules = make([]*compiledRule, 0, len(c.Rules))
	for i, rule := range c.Rules {
		if rule.ID == "" {
			return fmt.Errorf("rule %d: ID is required", i)
		}
		if rule.Pattern == "" {
			return fmt.Errorf("rule %s: pattern is required", rule.ID)
		}

		pattern, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return fmt.Errorf("rule %s: invalid pattern: %w", rule.ID, err)
		}

		compiled := &compiledRule{
			Rule:     rule,
			pattern:  pattern,
			keywords: make([]*regexp.Regexp, 0, len(rule.Keywords)),
		}
		for _, kw := range rule.Keywords {
			compiled.keywords = append(compiled.keywords, regexp.MustCompile("(?i)"+regexp.QuoteMeta(kw)))
		}

		c.compiledRules = append(c.compiledRules, compiled)
	}

	c.compiledAllowList = make([]*regexp.Regexp, 0, len(c.AllowList))
	for i, pattern := range c.AllowList {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("allowList %d: invalid pattern: %w", i, err)
		}
		c.compiledAllowList = append(c.compiledAllowList, compiled)
	}

	return nil
}
