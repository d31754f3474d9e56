package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/archharness/internal/config"
	"github.com/fyrsmithlabs/archharness/internal/logging"
	"github.com/fyrsmithlabs/archharness/internal/orchestrator"
	"github.com/fyrsmithlabs/archharness/internal/secrets"
)

// DefaultAssistantModel names the assistant when none is configured.
const DefaultAssistantModel = "gpt-5-mini"

var clarifications = map[string]string{
	SlotTaskPrompt:    "What would you like the agents to do? Please describe the task.",
	SlotWorkspacePath: "Which folder should I use? Please provide a path (e.g. ./my-project or /absolute/path).",
	SlotProjectName:   "What should the new project be called?",
}

// quickActions expands single-key shortcuts into full messages.
var quickActions = map[string]string{
	"n":               "Create a new project",
	"new project":     "Create a new project",
	"e":               "Use an existing folder",
	"existing folder": "Use an existing folder",
	"r":               "Architecture review only",
	"review diff":     "Architecture review only",
}

// ExpandQuickAction returns the message a shortcut stands for.
func ExpandQuickAction(input string) (string, bool) {
	msg, ok := quickActions[strings.ToLower(strings.TrimSpace(input))]
	return msg, ok
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the operational logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithScrubber replaces the history redaction filter.
func WithScrubber(s secrets.Scrubber) Option {
	return func(c *Controller) { c.scrubber = s }
}

// WithClock overrides turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller fills a RunRequest from a chat with the operator.
//
// Each message is parsed on its own and merged into the slots. Slots are
// only replaced by a later message, never cleared.
type Controller struct {
	mu             sync.Mutex
	extractor      *Extractor
	assistantModel string
	slots          Slots
	history        []Turn
	scrubber       secrets.Scrubber
	logger         *logging.Logger
	now            func() time.Time
}

// NewController returns a controller with empty slots. A nil cfg uses
// config.Default().
func NewController(cfg *config.Config, opts ...Option) *Controller {
	if cfg == nil {
		cfg = config.Default()
	}
	c := &Controller{
		extractor:      NewExtractor(),
		assistantModel: cfg.TUI.Assistant.Model,
		logger:         logging.NewNop(),
		now:            time.Now,
	}
	if c.assistantModel == "" {
		c.assistantModel = DefaultAssistantModel
	}
	if cfg.TUI.Assistant.Redaction.Enabled {
		c.scrubber = secrets.MustNew(secrets.FromSettings(cfg.Secrets))
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProcessMessage parses text into the slots. It returns a clarification
// question and false while a required slot is missing, else the run
// summary and true.
func (c *Controller) ProcessMessage(text string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record(SpeakerUser, text)
	c.parse(text)

	missing := c.slots.Missing()
	var response string
	if len(missing) > 0 {
		response = clarifications[missing[0]]
	} else {
		response = c.summary()
	}
	c.record(SpeakerAssistant, response)

	c.logger.Debug(context.Background(), "conversation turn",
		zap.Strings("missing", missing),
		zap.String("workflow", c.slots.Workflow),
		zap.String("mode", c.slots.WorkspaceMode))
	return response, len(missing) == 0
}

func (c *Controller) parse(text string) {
	e := c.extractor

	if cmd, ok := e.ExtractSetCommand(text); ok && c.applySet(cmd) {
		return
	}

	for _, mo := range e.ExtractModelOverrides(text) {
		c.slots.setModel(mo.Key, mo.Model)
	}

	if c.slots.Workflow == "" {
		c.slots.Workflow = e.ExtractWorkflow(text)
	}

	if e.HasNewProjectIntent(text) {
		c.slots.WorkspaceMode = orchestrator.ModeNewProject
		if name := e.ExtractProjectName(text); name != "" {
			c.slots.ProjectName = name
		}
	}

	if raw := e.ExtractPath(text); raw != "" && c.slots.WorkspacePath == "" {
		c.setPath(ResolvePath(raw))
	}

	stripped := e.StripPaths(text)
	switch {
	case c.slots.TaskPrompt == "":
		c.slots.TaskPrompt = stripped
	// A message that was only a path sets the workspace and leaves the task alone.
	case stripped != "" && !e.IsEditCommand(text):
		// A later free-form message restates the task.
		c.slots.TaskPrompt = strings.TrimSpace(text)
	}
}

// applySet handles an inline set command and reports whether it named a
// known field.
func (c *Controller) applySet(cmd SetCommand) bool {
	f := cmd.Field
	switch {
	case strings.Contains(f, "workspace") || strings.Contains(f, "path") || strings.Contains(f, "folder"):
		c.setPath(ResolvePath(cmd.Value))
		return true
	case strings.Contains(f, "project") && strings.Contains(f, "name"):
		c.slots.ProjectName = cmd.Value
		return true
	case strings.Contains(f, "workflow"):
		c.slots.Workflow = cmd.Value
		return true
	}
	for _, rk := range roleKeys {
		if strings.Contains(f, rk.word) {
			return c.slots.setModel(rk.key, cmd.Value)
		}
	}
	return false
}

func (c *Controller) setPath(path string) {
	c.slots.WorkspacePath = path
	if c.slots.WorkspaceMode == "" {
		c.slots.WorkspaceMode = DetectWorkspaceMode(path)
	}
}

// UpdateSlot sets one slot directly. Model keys (frontendModel, ...) set
// overrides and initGit takes true/false.
func (c *Controller) UpdateSlot(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch key {
	case SlotWorkspaceMode:
		switch value {
		case orchestrator.ModeNewProject, orchestrator.ModeExistingFolder, orchestrator.ModeExistingGit:
		default:
			return fmt.Errorf("unknown workspace mode %q", value)
		}
		c.slots.WorkspaceMode = value
	case SlotWorkspacePath:
		c.setPath(value)
	case SlotWorkflow:
		c.slots.Workflow = value
	case SlotTaskPrompt:
		c.slots.TaskPrompt = value
	case SlotProjectName:
		c.slots.ProjectName = value
	case SlotInitGit:
		initGit, err := orchestrator.ParseInitGit(value)
		if err != nil {
			return err
		}
		if c.slots.Safety == nil {
			c.slots.Safety = &orchestrator.Safety{}
		}
		c.slots.Safety.InitGit = initGit
	default:
		if !c.slots.setModel(key, value) {
			return fmt.Errorf("unknown slot %q", key)
		}
	}
	return nil
}

// Slots returns a copy of the current slots.
func (c *Controller) Slots() Slots {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slots.clone()
}

// History returns the turns so far. User text is redacted when the
// assistant redaction setting is on.
func (c *Controller) History() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.history))
	copy(out, c.history)
	return out
}

func (c *Controller) record(speaker Speaker, text string) {
	c.history = append(c.history, Turn{
		Speaker:   speaker,
		Text:      secrets.RedactString(c.scrubber, text),
		Timestamp: c.now(),
	})
}

// Summary renders the confirmation shown before a run starts.
func (c *Controller) Summary() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary()
}

func (c *Controller) summary() string {
	s := c.slots
	safety := c.safety()
	lines := []string{
		"┌─ Run Summary ─────────────────────────────────────────",
		"│  Task:           " + orDash(s.TaskPrompt),
		"│  Workspace mode: " + c.mode(),
		"│  Path:           " + orDash(s.WorkspacePath),
	}
	if s.ProjectName != "" {
		lines = append(lines, "│  Project name:   "+s.ProjectName)
	}
	lines = append(lines, "│  Workflow:       "+c.workflow())

	ov := s.ModelOverrides
	for _, kv := range [][2]string{
		{SlotFrontendModel, ov.Frontend},
		{SlotBuilderModel, ov.Builder},
		{SlotArchitectureModel, ov.Architecture},
		{SlotTUIAssistantModel, ov.TUIAssistant},
	} {
		if kv[1] != "" {
			lines = append(lines, fmt.Sprintf("│  %-18s %s", kv[0], kv[1]))
		}
	}

	lines = append(lines,
		"│  TUI assistant:  "+c.assistantModel,
		"│  Write scope:    "+orDash(safety.WriteScopeRoot),
		fmt.Sprintf("│  Init git:       %t", safety.InitGit),
		"└───────────────────────────────────────────────────────",
		"\nType 'run' to start, or describe what to change.",
	)
	return strings.Join(lines, "\n")
}

// BuildRunRequest materializes and validates a RunRequest. A missing
// field is reported as *orchestrator.ValidationError.
func (c *Controller) BuildRunRequest() (*orchestrator.RunRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.slots.clone()
	safety := c.safety()
	req := &orchestrator.RunRequest{
		WorkspaceMode:  c.mode(),
		WorkspacePath:  s.WorkspacePath,
		Workflow:       c.workflow(),
		TaskPrompt:     s.TaskPrompt,
		ProjectName:    s.ProjectName,
		ModelOverrides: s.ModelOverrides,
		Commands:       s.Commands,
		Safety:         &safety,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func (c *Controller) mode() string {
	if c.slots.WorkspaceMode == "" {
		return orchestrator.ModeExistingFolder
	}
	return c.slots.WorkspaceMode
}

func (c *Controller) workflow() string {
	if c.slots.Workflow == "" {
		return orchestrator.WorkflowFrontendFeature
	}
	return c.slots.Workflow
}

// safety returns the explicit safety slot with its write scope defaulted,
// or the default for the current mode.
func (c *Controller) safety() orchestrator.Safety {
	out := orchestrator.Safety{
		WriteScopeRoot: c.slots.WorkspacePath,
		InitGit:        c.mode() == orchestrator.ModeNewProject,
	}
	if c.slots.Safety != nil {
		out.InitGit = c.slots.Safety.InitGit
		if c.slots.Safety.WriteScopeRoot != "" {
			out.WriteScopeRoot = c.slots.Safety.WriteScopeRoot
		}
	}
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
