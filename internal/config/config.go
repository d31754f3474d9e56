// Package config provides configuration loading for archharness.
//
// Configuration is layered: built-in defaults, then an optional YAML or JSON
// file, then ARCHHARNESS_* environment variables, then per-run CLI overrides.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Output modes.
const (
	OutputModePatch  = "patch"
	OutputModeBranch = "branch"
)

// Config holds the complete harness configuration.
type Config struct {
	Agents        AgentsConfig        `koanf:"agents"`
	Orchestration OrchestrationConfig `koanf:"orchestration"`
	Repo          RepoConfig          `koanf:"repo"`
	Commands      CommandsConfig      `koanf:"commands"`
	Output        OutputConfig        `koanf:"output"`
	Logging       LoggingConfig       `koanf:"logging"`
	Secrets       SecretsConfig       `koanf:"secrets"`
	Events        EventsConfig        `koanf:"events"`
	Server        ServerConfig        `koanf:"server"`
	TUI           TUIConfig           `koanf:"tui"`
}

// AgentConfig selects the model backing one role.
type AgentConfig struct {
	Model string `koanf:"model"`
}

// AgentsConfig holds per-role agent settings.
type AgentsConfig struct {
	Frontend     AgentConfig `koanf:"frontend"`
	Architecture AgentConfig `koanf:"architecture"`
	Builder      AgentConfig `koanf:"builder"`
}

// OrchestrationConfig bounds the build/review loop.
type OrchestrationConfig struct {
	MaxIterations int `koanf:"maxIterations"`
}

// RepoConfig controls which workspace files are observed.
type RepoConfig struct {
	IncludeGlobs []string `koanf:"includeGlobs"`
	ExcludeGlobs []string `koanf:"excludeGlobs"`
}

// CommandsConfig holds the check commands and the executable allow-list.
// An empty command string means the check is not configured.
type CommandsConfig struct {
	Format    string   `koanf:"format"`
	Lint      string   `koanf:"lint"`
	Test      string   `koanf:"test"`
	Allowlist []string `koanf:"allowlist"`
}

// Get returns the command configured for a check name.
func (c CommandsConfig) Get(name string) string {
	switch name {
	case "format":
		return c.Format
	case "lint":
		return c.Lint
	case "test":
		return c.Test
	}
	return ""
}

// OutputConfig selects how results are delivered.
type OutputConfig struct {
	Mode string `koanf:"mode"`
}

// LoggingConfig holds operational log settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	File   string `koanf:"file"`
}

// SecretsConfig controls redaction of event payloads.
type SecretsConfig struct {
	Enabled         bool   `koanf:"enabled"`
	Gitleaks        bool   `koanf:"gitleaks"`
	RedactionString string `koanf:"redactionString"`
	AllowlistFile   string `koanf:"allowlistFile"`
}

// EventsConfig holds optional event fan-out settings.
type EventsConfig struct {
	NATS NATSConfig `koanf:"nats"`
}

// NATSConfig configures publishing of run events to NATS.
// An empty URL disables the sink.
type NATSConfig struct {
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
	Token   Secret `koanf:"token"`
}

// ServerConfig holds the run-history HTTP API settings.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdownTimeout"`
}

// TUIConfig holds terminal UI settings.
type TUIConfig struct {
	Assistant AssistantConfig `koanf:"assistant"`
}

// AssistantConfig configures the conversational assistant.
type AssistantConfig struct {
	Enabled     bool            `koanf:"enabled"`
	Model       string          `koanf:"model"`
	Temperature float64         `koanf:"temperature"`
	Redaction   RedactionToggle `koanf:"redaction"`
}

// RedactionToggle enables or disables redaction for a component.
type RedactionToggle struct {
	Enabled bool `koanf:"enabled"`
}

// ConfigurationError reports an unusable configuration source or value.
type ConfigurationError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := e.Reason
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Overrides holds per-run values supplied on the command line.
// Empty strings and a nil MaxIterations leave the loaded configuration
// untouched. A MaxIterations of zero disables retries.
type Overrides struct {
	FrontendModel     string
	ArchitectureModel string
	BuilderModel      string
	MaxIterations     *int
	OutputMode        string
}

// ApplyOverrides merges CLI overrides into the configuration and re-validates it.
func (c *Config) ApplyOverrides(o Overrides) error {
	if o.FrontendModel != "" {
		c.Agents.Frontend.Model = o.FrontendModel
	}
	if o.ArchitectureModel != "" {
		c.Agents.Architecture.Model = o.ArchitectureModel
	}
	if o.BuilderModel != "" {
		c.Agents.Builder.Model = o.BuilderModel
	}
	if o.MaxIterations != nil {
		c.Orchestration.MaxIterations = *o.MaxIterations
	}
	if o.OutputMode != "" {
		c.Output.Mode = o.OutputMode
	}
	return c.Validate()
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Orchestration.MaxIterations < 0 {
		errs = append(errs, fmt.Errorf("orchestration.maxIterations must be >= 0, got %d", c.Orchestration.MaxIterations))
	}
	if c.Output.Mode != OutputModePatch && c.Output.Mode != OutputModeBranch {
		errs = append(errs, fmt.Errorf("output.mode must be %q or %q, got %q", OutputModePatch, OutputModeBranch, c.Output.Mode))
	}
	for _, g := range append(append([]string{}, c.Repo.IncludeGlobs...), c.Repo.ExcludeGlobs...) {
		if _, err := filepath.Match(strings.ReplaceAll(g, "**", "*"), ""); err != nil {
			errs = append(errs, fmt.Errorf("invalid glob %q: %w", g, err))
		}
	}
	for _, agent := range []struct{ name, model string }{
		{"frontend", c.Agents.Frontend.Model},
		{"architecture", c.Agents.Architecture.Model},
		{"builder", c.Agents.Builder.Model},
	} {
		if agent.model == "" {
			errs = append(errs, fmt.Errorf("agents.%s.model is required", agent.name))
		}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.TUI.Assistant.Temperature < 0 || c.TUI.Assistant.Temperature > 2 {
		errs = append(errs, fmt.Errorf("tui.assistant.temperature must be within [0, 2], got %v", c.TUI.Assistant.Temperature))
	}

	if len(errs) == 0 {
		return nil
	}
	return &ConfigurationError{Reason: "invalid configuration", Err: errors.Join(errs...)}
}
