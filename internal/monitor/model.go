package monitor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/archharness/internal/agents"
	"github.com/fyrsmithlabs/archharness/internal/config"
	"github.com/fyrsmithlabs/archharness/internal/control"
	"github.com/fyrsmithlabs/archharness/internal/conversation"
	"github.com/fyrsmithlabs/archharness/internal/events"
	"github.com/fyrsmithlabs/archharness/internal/logging"
	"github.com/fyrsmithlabs/archharness/internal/orchestrator"
	"github.com/fyrsmithlabs/archharness/internal/runs"
)

// MaxLogLines bounds the live log and the filtered log view.
const MaxLogLines = events.DefaultLimit

type screen int

const (
	screenRuns screen = iota
	screenChat
	screenConfirm
	screenMonitor
	screenArtifacts
	screenLogs
)

// Runner executes one run. The monitor calls it from its own goroutine.
type Runner func(ctx context.Context, req orchestrator.RunRequest, sig control.Signal, sub events.Subscriber) (*orchestrator.Result, error)

// OrchestratorRunner adapts an Orchestrator to a Runner.
func OrchestratorRunner(o *orchestrator.Orchestrator) Runner {
	return func(ctx context.Context, req orchestrator.RunRequest, sig control.Signal, sub events.Subscriber) (*orchestrator.Result, error) {
		return o.Run(ctx, req, orchestrator.WithSignal(sig), orchestrator.WithSubscriber(sub))
	}
}

// Option configures a Model.
type Option func(*Model)

// WithRunner replaces the orchestrator used for new runs.
func WithRunner(r Runner) Option {
	return func(m *Model) { m.runner = r }
}

// WithWorkspace lists the runs of path on the start screen.
func WithWorkspace(path string) Option {
	return func(m *Model) { m.workspace = path }
}

// WithLogger sets the operational logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Model) { m.logger = l }
}

// WithContext sets the context runs are started with.
func WithContext(ctx context.Context) Option {
	return func(m *Model) { m.ctx = ctx }
}

// Messages
type runsLoadedMsg struct {
	runs []runs.Run
	err  error
}

type runDoneMsg struct {
	feed   *Feed
	result *orchestrator.Result
	err    error
}

// Model is the bubbletea program: a run list, the chat that fills a run
// request, and the live monitor of the run it starts.
type Model struct {
	cfg       *config.Config
	ctx       context.Context
	runner    Runner
	logger    *logging.Logger
	now       func() time.Time
	workspace string

	screen       screen
	width        int
	notice       string
	quitting     bool
	quitAfterRun bool

	input      textinput.Model
	controller *conversation.Controller

	runList   []runs.Run
	cursor    int
	artifacts []runs.Artifact
	logs      []events.Event
	filter    events.Filter
	searching bool

	req       *orchestrator.RunRequest
	ctrl      *control.Control
	feed      *Feed
	board     AgentBoard
	live      []events.Event
	phase     orchestrator.Phase
	iteration int
	started   time.Time
	finished  time.Time
	running   bool
	result    *orchestrator.Result
	runErr    error

	phaseProgress progress.Model
}

// NewModel creates the TUI model. A nil cfg uses config.Default(). Without
// a workspace the chat opens immediately.
func NewModel(cfg *config.Config, opts ...Option) Model {
	if cfg == nil {
		cfg = config.Default()
	}

	input := textinput.New()
	input.CharLimit = 4000
	input.Width = 72

	m := Model{
		cfg:    cfg,
		ctx:    context.Background(),
		logger: logging.NewNop(),
		now:    time.Now,
		input:  input,
		board:  NewAgentBoard(),
		phaseProgress: progress.New(
			progress.WithGradient("#00ffff", "#ff00ff"),
			progress.WithWidth(40),
		),
	}
	for _, opt := range opts {
		opt(&m)
	}
	if m.runner == nil {
		m.runner = OrchestratorRunner(orchestrator.New(cfg, orchestrator.WithLogger(m.logger)))
	}
	if m.workspace == "" {
		m.openChat()
	}
	return m
}

// Init loads the run list, or starts the cursor blinking in the chat.
func (m Model) Init() tea.Cmd {
	if m.workspace != "" {
		return loadRuns(m.workspace)
	}
	return textinput.Blink
}

func loadRuns(workspace string) tea.Cmd {
	return func() tea.Msg {
		list, err := runs.List(workspace)
		return runsLoadedMsg{runs: list, err: err}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(20, msg.Width-16)
		return m, nil

	case runsLoadedMsg:
		if msg.err != nil {
			m.notice = "Cannot list runs: " + msg.err.Error()
			return m, nil
		}
		m.runList = msg.runs
		m.cursor = min(m.cursor, max(0, len(m.runList)-1))
		return m, nil

	case eventMsg:
		if msg.feed != m.feed {
			return m, nil
		}
		m.applyEvent(msg.ev)
		if m.running {
			return m, m.feed.Next()
		}
		return m, nil

	case runDoneMsg:
		if msg.feed != m.feed {
			return m, nil
		}
		return m.finishRun(msg)

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			if m.running {
				// Quit once the run has written its closing artifacts.
				m.ctrl.Cancel()
				m.quitAfterRun = true
				m.notice = "Cancelling; quitting once the run is finalized..."
				return m, nil
			}
			m.quitting = true
			return m, tea.Quit
		}
		switch m.screen {
		case screenRuns:
			return m.updateRuns(msg)
		case screenChat:
			return m.updateChat(msg)
		case screenConfirm:
			return m.updateConfirm(msg)
		case screenMonitor:
			return m.updateMonitor(msg)
		case screenArtifacts:
			return m.updateArtifacts(msg)
		case screenLogs:
			return m.updateLogs(msg)
		}
	}

	if m.input.Focused() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) selected() (runs.Run, bool) {
	if m.cursor < 0 || m.cursor >= len(m.runList) {
		return runs.Run{}, false
	}
	return m.runList[m.cursor], true
}

func (m Model) updateRuns(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.notice = ""
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.runList)-1 {
			m.cursor++
		}
	case "n":
		m.openChat()
		return m, textinput.Blink
	case "r":
		if m.workspace != "" {
			return m, loadRuns(m.workspace)
		}
	case "a":
		run, ok := m.selected()
		if !ok {
			return m, nil
		}
		list, err := runs.Artifacts(run.Dir)
		if err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.artifacts = list
		m.screen = screenArtifacts
	case "l", "enter":
		if _, ok := m.selected(); !ok {
			return m, nil
		}
		m.filter = events.Filter{Limit: MaxLogLines}
		m.screen = screenLogs
		m.reloadLogs()
	}
	return m, nil
}

// openChat starts a fresh conversation.
func (m *Model) openChat() {
	m.controller = conversation.NewController(m.cfg, conversation.WithLogger(m.logger))
	m.screen = screenChat
	m.notice = ""
	m.input.Reset()
	m.input.Prompt = "You: "
	m.input.Placeholder = "Describe what you want to do"
	m.input.Focus()
}

func (m *Model) leaveChat() {
	m.input.Blur()
	m.screen = screenRuns
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.leaveChat()
		return m, nil
	case tea.KeyEnter:
		text := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if text == "" {
			return m, nil
		}
		switch strings.ToLower(text) {
		case "cancel", "q", "quit":
			m.leaveChat()
			return m, nil
		}
		if expanded, ok := conversation.ExpandQuickAction(text); ok {
			text = expanded
		}
		m.notice = ""
		if _, complete := m.controller.ProcessMessage(text); complete {
			m.input.Blur()
			m.screen = screenConfirm
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "r", "enter":
		req, err := m.controller.BuildRunRequest()
		if err != nil {
			m.notice = "Configuration error: " + err.Error()
			m.screen = screenChat
			m.input.Focus()
			return m, textinput.Blink
		}
		return m.startRun(req)
	case "e":
		m.notice = "Describe what to change (e.g. 'set workspace to ./other')"
		m.screen = screenChat
		m.input.Focus()
		return m, textinput.Blink
	case "c", "q", "esc":
		m.screen = screenRuns
	}
	return m, nil
}

func (m Model) startRun(req *orchestrator.RunRequest) (tea.Model, tea.Cmd) {
	m.req = req
	m.ctrl = control.New()
	m.feed = NewFeed(DefaultFeedSize)
	m.board = NewAgentBoard()
	m.live = nil
	m.phase = ""
	m.iteration = 0
	m.result = nil
	m.runErr = nil
	m.running = true
	m.started = m.now()
	m.screen = screenMonitor
	m.notice = ""

	m.logger.Info(m.ctx, "starting run from chat",
		zap.String("workflow", req.Workflow),
		zap.String("workspace_mode", req.WorkspaceMode))

	// The run never sees the parent's cancellation directly. It is turned
	// into a cooperative cancel so the run still finalizes.
	runner, sig, feed, r := m.runner, m.ctrl, m.feed, *req
	ctx := context.WithoutCancel(m.ctx)
	stop := context.AfterFunc(m.ctx, sig.Cancel)
	run := func() tea.Msg {
		defer stop()
		res, err := runner(ctx, r, sig, feed.Subscriber())
		return runDoneMsg{feed: feed, result: res, err: err}
	}
	return m, tea.Batch(run, feed.Next())
}

func (m *Model) applyEvent(ev events.Event) {
	m.board.Apply(ev)
	m.live = append(m.live, ev)
	if len(m.live) > MaxLogLines {
		m.live = m.live[len(m.live)-MaxLogLines:]
	}
	switch ev.Type {
	case events.TypeWorkflowPhase:
		if to, ok := ev.Data["to"].(string); ok {
			m.phase = orchestrator.Phase(to)
		}
	case events.TypeReviewIteration:
		if n, ok := intValue(ev.Data["iteration"]); ok {
			m.iteration = n
		}
	}
}

func (m Model) finishRun(msg runDoneMsg) (tea.Model, tea.Cmd) {
	for _, ev := range m.feed.Drain() {
		m.applyEvent(ev)
	}
	m.feed.Stop()
	m.running = false
	m.finished = m.now()
	m.result = msg.result
	m.runErr = msg.err

	if msg.err != nil {
		m.logger.Error(m.ctx, "run failed", zap.Error(msg.err))
	}
	if m.quitAfterRun {
		m.quitting = true
		return m, tea.Quit
	}
	if msg.err != nil {
		return m, nil
	}
	if dropped := m.feed.Dropped(); dropped > 0 {
		m.logger.Warn(m.ctx, "monitor dropped events", zap.Int64("dropped", dropped))
	}
	if m.workspace == "" && msg.result != nil {
		// <workspace>/.agent-harness/runs/<id>
		m.workspace = filepath.Dir(filepath.Dir(filepath.Dir(msg.result.RunDir)))
	}
	if m.workspace != "" {
		return m, loadRuns(m.workspace)
	}
	return m, nil
}

func (m Model) updateMonitor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.running {
		switch msg.String() {
		case "p":
			if m.ctrl.Toggle() {
				m.notice = "Paused. Press p to resume."
			} else {
				m.notice = "Resumed."
			}
		case "c":
			m.ctrl.Cancel()
			m.notice = "Cancelling at the next checkpoint..."
		}
		return m, nil
	}

	switch msg.String() {
	case "enter", "esc", "q":
		m.screen = screenRuns
		m.notice = ""
		if m.workspace != "" {
			return m, loadRuns(m.workspace)
		}
	}
	return m, nil
}

func (m Model) updateArtifacts(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "backspace":
		m.screen = screenRuns
	case "l":
		m.filter = events.Filter{Limit: MaxLogLines}
		m.screen = screenLogs
		m.reloadLogs()
	}
	return m, nil
}

// roleFilters is the cycle of the log view's role filter.
var roleFilters = []string{"", string(agents.RoleFrontend), string(agents.RoleBuilder), string(agents.RoleArchitecture)}

func (m Model) updateLogs(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		switch msg.Type {
		case tea.KeyEnter:
			m.filter.Search = strings.TrimSpace(m.input.Value())
			m.searching = false
			m.input.Blur()
			m.reloadLogs()
			return m, nil
		case tea.KeyEsc:
			m.searching = false
			m.input.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "f":
		next := 0
		for i, r := range roleFilters {
			if r == m.filter.Role {
				next = (i + 1) % len(roleFilters)
			}
		}
		m.filter.Role = roleFilters[next]
		m.reloadLogs()
	case "/":
		m.searching = true
		m.input.Reset()
		m.input.Prompt = "/ "
		m.input.Placeholder = "search term"
		m.input.SetValue(m.filter.Search)
		m.input.Focus()
		return m, textinput.Blink
	case "x":
		m.filter = events.Filter{Limit: MaxLogLines}
		m.reloadLogs()
	case "esc", "q", "backspace":
		m.screen = screenRuns
	}
	return m, nil
}

func (m *Model) reloadLogs() {
	run, ok := m.selected()
	if !ok {
		m.logs = nil
		return
	}
	evs, err := runs.Events(run.Dir, m.filter)
	if err != nil {
		m.notice = err.Error()
		return
	}
	m.logs = evs
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// phaseRatio places a phase on the nominal path for the progress bar.
func phaseRatio(p orchestrator.Phase) float64 {
	if p == "" {
		return 0
	}
	if p.Terminal() {
		return 1
	}
	nominal := orchestrator.AllPhases()
	steps := len(nominal) - 2
	for i, ph := range nominal {
		if ph == p {
			return float64(i) / float64(steps)
		}
	}
	return 0
}

// resultLine summarizes a finished run.
func (m Model) resultLine() string {
	if m.runErr != nil {
		return fmt.Sprintf("Run failed: %v", m.runErr)
	}
	if m.result == nil {
		return ""
	}
	return fmt.Sprintf("Run %s: %s", m.result.Status, m.result.RunDir)
}
