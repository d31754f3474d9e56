package conversation

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/archharness/internal/orchestrator"
	"github.com/fyrsmithlabs/archharness/pkg/git"
)

// roleKeys maps role words to override keys. Order matters: the first role
// word contained in a set-command field wins.
var roleKeys = []struct {
	word string
	key  string
}{
	{"frontend", SlotFrontendModel},
	{"builder", SlotBuilderModel},
	{"architecture", SlotArchitectureModel},
	{"architect", SlotArchitectureModel},
	{"tui", SlotTUIAssistantModel},
}

func roleKey(word string) string {
	word = strings.ToLower(word)
	for _, rk := range roleKeys {
		if rk.word == word {
			return rk.key
		}
	}
	return ""
}

// Extractor pulls slot values out of free-form operator messages.
type Extractor struct {
	newProjectPattern  *regexp.Regexp
	projectNamePattern *regexp.Regexp
	archReviewPattern  *regexp.Regexp
	pathPattern        *regexp.Regexp
	setPattern         *regexp.Regexp
	useModelPattern    *regexp.Regexp
	inlineEditPattern  *regexp.Regexp
}

// NewExtractor compiles the extraction patterns.
func NewExtractor() *Extractor {
	return &Extractor{
		newProjectPattern:  regexp.MustCompile(`(?i)\bnew\s+(?:\w+\s+)?(?:project|app|application)\b`),
		projectNamePattern: regexp.MustCompile(`(?i)\b(?:called|named)\s+([A-Za-z][A-Za-z0-9_\-]+)`),
		archReviewPattern:  regexp.MustCompile(`(?i)\barch(?:itecture)?\s+review\b|\breview\s+only\b`),
		// Path tokens start a word: ./x, ../x, /x or ~/x.
		pathPattern: regexp.MustCompile(`(^|\s)(\.{1,2}[\\/][^\s,;]*|/[^\s,;]+|~[\\/][^\s,;]*)`),
		setPattern: regexp.MustCompile(
			`(?i)\b(?:set|change)\s+(?:the\s+)?(?P<field>\w+(?:\s+\w+)?)\s+(?:model\s+)?to\s+(?P<value>\S+)`),
		useModelPattern: regexp.MustCompile(
			`(?i)\buse\s+(?P<model>\S+)\s+(?:for\s+|as\s+)?(?P<role>frontend|builder|architect(?:ure)?|tui)(?:\s+(?:model|review|agent))?`),
		inlineEditPattern: regexp.MustCompile(
			`(?i)\b(?:set|change|update)\s+(?:the\s+)?(?:workspace|path|folder|project\s+name|workflow|model)\b`),
	}
}

// SetCommand is a parsed "set/change the <field> to <value>" instruction.
type SetCommand struct {
	Field string
	Value string
}

// ExtractSetCommand returns the first inline set command in text.
func (e *Extractor) ExtractSetCommand(text string) (SetCommand, bool) {
	m := e.setPattern.FindStringSubmatch(text)
	if m == nil {
		return SetCommand{}, false
	}
	return SetCommand{
		Field: strings.ToLower(strings.TrimSpace(m[e.setPattern.SubexpIndex("field")])),
		Value: strings.TrimSpace(m[e.setPattern.SubexpIndex("value")]),
	}, true
}

// ModelOverride is one "use <model> for <role>" instruction.
type ModelOverride struct {
	Key   string
	Model string
}

// ExtractModelOverrides returns every "use <model> for <role>" match.
func (e *Extractor) ExtractModelOverrides(text string) []ModelOverride {
	var out []ModelOverride
	modelIdx := e.useModelPattern.SubexpIndex("model")
	roleIdx := e.useModelPattern.SubexpIndex("role")
	for _, m := range e.useModelPattern.FindAllStringSubmatch(text, -1) {
		if key := roleKey(m[roleIdx]); key != "" {
			out = append(out, ModelOverride{Key: key, Model: m[modelIdx]})
		}
	}
	return out
}

// ExtractWorkflow infers the workflow from review phrasing.
func (e *Extractor) ExtractWorkflow(text string) string {
	if e.archReviewPattern.MatchString(text) {
		return orchestrator.WorkflowArchReviewOnly
	}
	return orchestrator.WorkflowFrontendFeature
}

// HasNewProjectIntent reports phrases like "new React app".
func (e *Extractor) HasNewProjectIntent(text string) bool {
	return e.newProjectPattern.MatchString(text)
}

// ExtractProjectName returns the word after "called" or "named".
func (e *Extractor) ExtractProjectName(text string) string {
	m := e.projectNamePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// ExtractPath returns the first path-shaped token.
func (e *Extractor) ExtractPath(text string) string {
	m := e.pathPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[2]
}

// StripPaths removes every path token from text.
func (e *Extractor) StripPaths(text string) string {
	return strings.TrimSpace(e.pathPattern.ReplaceAllString(text, "${1}"))
}

// IsEditCommand reports whether text is an inline edit or a model
// override rather than a new description of the task.
func (e *Extractor) IsEditCommand(text string) bool {
	return e.inlineEditPattern.MatchString(text) || e.useModelPattern.MatchString(text)
}

// ResolvePath expands ~ and returns an absolute, symlink-free path where
// possible.
func ResolvePath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// DetectWorkspaceMode returns existing-git when path holds a repository,
// else existing-folder.
func DetectWorkspaceMode(path string) string {
	if git.HasRepo(path) {
		return orchestrator.ModeExistingGit
	}
	return orchestrator.ModeExistingFolder
}
