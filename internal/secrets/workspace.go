package secrets

import (
	"fmt"

	"github.com/fyrsmithlabs/archharness/internal/config"
)

// ForWorkspace builds the scrubber used for a workspace's events and
// artifacts. The gitleaks detector is layered on when enabled, honouring the
// workspace .gitleaks.toml allowlist.
func ForWorkspace(s config.SecretsConfig, root string) (Scrubber, error) {
	allow, err := LoadAllowlists(root, s.AllowlistFile)
	if err != nil {
		return nil, fmt.Errorf("loading secret allowlists: %w", err)
	}

	cfg := FromSettings(s)
	cfg.AllowList = append(cfg.AllowList, allow.Patterns()...)
	base, err := New(cfg)
	if err != nil {
		return nil, fmt.Errorf("building scrubber: %w", err)
	}
	if !s.Enabled || !s.Gitleaks {
		return base, nil
	}

	deep, err := NewGitleaks(cfg.RedactionString, allow)
	if err != nil {
		return nil, err
	}
	return Chain{base, deep}, nil
}
