package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes environment overrides, e.g. ARCHHARNESS_OUTPUT_MODE.
	EnvPrefix = "ARCHHARNESS_"
)

// defaultConfigYAML is loaded first so files and env only need to name what they change.
const defaultConfigYAML = `
agents:
  frontend:
    model: sonnet-4.6
  architecture:
    model: opus-4.6
  builder:
    model: codex-5.3
orchestration:
  maxIterations: 2
repo:
  includeGlobs: ["**/*"]
  excludeGlobs: [".agent-harness/**", ".git/**"]
commands:
  format: ""
  lint: ""
  test: ""
  allowlist: []
output:
  mode: patch
logging:
  level: info
  format: console
  file: ""
secrets:
  enabled: true
  gitleaks: false
  redactionString: "[REDACTED]"
  allowlistFile: ""
events:
  nats:
    url: ""
    subject: archharness.events
    token: ""
server:
  host: localhost
  port: 9797
  shutdownTimeout: 10s
tui:
  assistant:
    enabled: true
    model: gpt-5-mini
    temperature: 0.2
    redaction:
      enabled: true
`

// Default returns the built-in configuration without file or env layers.
func Default() *Config {
	cfg, err := load("", false)
	if err != nil {
		// The embedded defaults are static; failing here is a programming error.
		panic(fmt.Sprintf("config: invalid built-in defaults: %v", err))
	}
	return cfg
}

// Load builds the configuration from defaults, the optional file at path and
// ARCHHARNESS_* environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (ARCHHARNESS_ORCHESTRATION_MAXITERATIONS, ...)
//  2. Config file (.yaml, .yml or .json)
//  3. Built-in defaults
//
// Nested objects are deep-merged; lists and scalars are replaced.
// An empty path skips the file layer. Any other extension is a ConfigurationError.
func Load(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, withEnv bool) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaultConfigYAML)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	canonical := canonicalKeys(k.Keys())

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		// YAML is a superset of JSON, so one parser serves both formats.
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, &ConfigurationError{Path: path, Reason: "failed to parse config file", Err: err}
		}
	}

	// ARCHHARNESS_TUI_ASSISTANT_MODEL -> tui.assistant.model
	if withEnv {
		if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
			key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
			key = strings.ReplaceAll(key, "_", ".")
			if c, ok := canonical[key]; ok {
				return c
			}
			return key
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load environment variables: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, &ConfigurationError{Path: path, Reason: "failed to decode configuration", Err: err}
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// readConfigFile validates the extension and size before reading.
func readConfigFile(path string) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
	default:
		return nil, &ConfigurationError{Path: path, Reason: "Unsupported config format. Use JSON or YAML."}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Reason: "failed to open config file", Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &ConfigurationError{Path: path, Reason: "failed to stat config file", Err: err}
	}
	if info.Size() > maxConfigFileSize {
		return nil, &ConfigurationError{
			Path:   path,
			Reason: fmt.Sprintf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize),
		}
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Reason: "failed to read config file", Err: err}
	}
	return content, nil
}

// canonicalKeys maps lower-cased dotted keys to their camelCase spelling so
// env overrides land on the same koanf key as file values.
func canonicalKeys(keys []string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[strings.ToLower(k)] = k
	}
	return out
}

// applyDefaults restores values a config file may have nulled out.
func applyDefaults(cfg *Config) {
	if cfg.Output.Mode == "" {
		cfg.Output.Mode = OutputModePatch
	}
	if len(cfg.Repo.IncludeGlobs) == 0 {
		cfg.Repo.IncludeGlobs = []string{"**/*"}
	}
	if cfg.Events.NATS.Subject == "" {
		cfg.Events.NATS.Subject = "archharness.events"
	}
	if cfg.Secrets.RedactionString == "" {
		cfg.Secrets.RedactionString = "[REDACTED]"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
}
