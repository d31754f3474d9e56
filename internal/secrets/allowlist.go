package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
)

// AllowlistFile is the per-workspace allowlist read alongside gitleaks rules.
const AllowlistFile = ".gitleaks.toml"

// Allowlist holds content patterns that must never be redacted.
type Allowlist struct {
	Regexes   []string
	StopWords []string
}

// LoadAllowlists merges the workspace .gitleaks.toml with an optional extra file.
// Missing files are skipped. Invalid TOML or regex patterns return errors.
func LoadAllowlists(workspace, extraPath string) (*Allowlist, error) {
	merged := &Allowlist{}

	paths := make([]string, 0, 2)
	if workspace != "" {
		paths = append(paths, filepath.Join(workspace, AllowlistFile))
	}
	if extraPath != "" {
		paths = append(paths, extraPath)
	}

	for _, p := range paths {
		al, err := loadTOML(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		merged.Regexes = append(merged.Regexes, al.Regexes...)
		merged.StopWords = append(merged.StopWords, al.StopWords...)
	}
	return merged, nil
}

// Patterns returns the allowlist as regexp sources usable in Config.AllowList.
func (a *Allowlist) Patterns() []string {
	if a == nil {
		return nil
	}
	out := append([]string{}, a.Regexes...)
	for _, w := range a.StopWords {
		out = append(out, regexp.QuoteMeta(w))
	}
	return out
}

func loadTOML(path string) (*Allowlist, error) {
	var doc struct {
		Allowlist struct {
			Regexes   []string `toml:"regexes"`
			StopWords []string `toml:"stopwords"`
		} `toml:"allowlist"`
	}

	if _, err := toml.DecodeFile(path, &doc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}

	for _, pattern := range doc.Allowlist.Regexes {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: %q in %s: %v", ErrInvalidRegex, pattern, path, err)
		}
	}

	return &Allowlist{
		Regexes:   doc.Allowlist.Regexes,
		StopWords: doc.Allowlist.StopWords,
	}, nil
}
