package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/archharness/internal/agents"
	"github.com/fyrsmithlabs/archharness/internal/config"
	"github.com/fyrsmithlabs/archharness/internal/control"
	"github.com/fyrsmithlabs/archharness/internal/events"
	"github.com/fyrsmithlabs/archharness/internal/logging"
	"github.com/fyrsmithlabs/archharness/internal/secrets"
	"github.com/fyrsmithlabs/archharness/internal/workspace"
	"github.com/fyrsmithlabs/archharness/pkg/git"
)

// Check names in execution order.
var checkNames = []string{"format", "lint", "test"}

// OutputModeBranch asks the operator to publish the change on a branch.
const OutputModeBranch = "branch"

// TeamFactory builds the role implementations for one run's models.
type TeamFactory func(m agents.Models) agents.Team

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTeamFactory replaces the built-in deterministic agents.
func WithTeamFactory(f TeamFactory) Option {
	return func(o *Orchestrator) { o.teamFactory = f }
}

// WithLogger sets the operational logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics records run metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithScrubber replaces the scrubber built from the secrets settings.
func WithScrubber(s secrets.Scrubber) Option {
	return func(o *Orchestrator) { o.scrubber = s }
}

// WithSink adds an event fan-out sink shared by every run. The
// orchestrator never closes it.
func WithSink(s events.Sink) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.sinks = append(o.sinks, s)
		}
	}
}

// WithClock overrides the time source for run ids and event timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator drives runs against a workspace.
type Orchestrator struct {
	cfg         *config.Config
	teamFactory TeamFactory
	logger      *logging.Logger
	metrics     *Metrics
	scrubber    secrets.Scrubber
	sinks       []events.Sink
	now         func() time.Time
}

// New returns an Orchestrator for cfg. A nil cfg uses config.Default().
func New(cfg *config.Config, opts ...Option) *Orchestrator {
	if cfg == nil {
		cfg = config.Default()
	}
	o := &Orchestrator{
		cfg:         cfg,
		teamFactory: agents.DefaultTeam,
		logger:      logging.NewNop(),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunOption configures a single run.
type RunOption func(*runOptions)

type runOptions struct {
	signal     control.Signal
	subscriber events.Subscriber
}

// WithSignal lets an operator pause or cancel the run.
func WithSignal(s control.Signal) RunOption {
	return func(r *runOptions) { r.signal = s }
}

// WithSubscriber receives every event after it is persisted.
func WithSubscriber(fn events.Subscriber) RunOption {
	return func(r *runOptions) { r.subscriber = fn }
}

// run is the mutable state of one Run call.
type run struct {
	o        *Orchestrator
	ctx      context.Context
	req      RunRequest
	mode     string
	team     agents.Team
	gw       *workspace.Gateway
	signal   control.Signal
	ch       *events.Channel
	dir      string
	log      RunLog
	phase    Phase
	review   agents.Review
	checks   []CheckResult
	started  time.Time
	commands map[string]string
}

// Run executes req and returns once every artifact is written.
//
// Validation and workspace-mode errors are returned before anything is
// written. Once the run directory exists every exit path, including
// internal faults, leaves a run-log.json and a terminal event behind.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest, opts ...RunOption) (res *Result, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ro := runOptions{}
	for _, opt := range opts {
		opt(&ro)
	}
	if ro.signal == nil {
		ro.signal = control.New()
	}

	r := &run{
		o:       o,
		req:     req,
		mode:    req.WorkspaceMode,
		signal:  ro.signal,
		started: o.now(),
	}
	if r.mode == "" {
		r.mode = ModeExistingFolder
	}
	r.team = o.teamFactory(o.models(req.ModelOverrides))
	if err := r.team.Validate(); err != nil {
		return nil, err
	}
	r.commands = o.commands(req.Commands)

	if err := r.prepareWorkspace(); err != nil {
		return nil, err
	}

	scrubber, err := o.scrubberFor(r.gw.Root())
	if err != nil {
		return nil, err
	}

	runID, dir, err := createRunDir(r.gw.Root(), r.started)
	if err != nil {
		return nil, err
	}
	r.dir = dir
	r.ctx = logging.WithWorkflow(logging.WithRunID(ctx, runID), req.Workflow)
	chOpts := []events.Option{
		events.WithScrubber(scrubber),
		events.WithLogger(o.logger),
		events.WithClock(o.now),
	}
	if ro.subscriber != nil {
		chOpts = append(chOpts, events.WithSubscriber(ro.subscriber))
	}
	for _, s := range o.sinks {
		chOpts = append(chOpts, events.WithSink(sharedSink{s}))
	}
	r.ch, err = events.Open(filepath.Join(dir, events.FileName), runID, chOpts...)
	if err != nil {
		return nil, err
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("run %s panicked: %v", runID, p)
		}
		if err != nil {
			res = nil
			r.fail(err)
		}
		if cerr := r.ch.Close(); cerr != nil {
			o.logger.Warn(r.ctx, "closing event log", zap.Error(cerr))
		}
	}()

	return r.execute()
}

func (o *Orchestrator) models(ov ModelOverrides) agents.Models {
	m := agents.Models{
		Frontend:     o.cfg.Agents.Frontend.Model,
		Builder:      o.cfg.Agents.Builder.Model,
		Architecture: o.cfg.Agents.Architecture.Model,
	}
	if ov.Frontend != "" {
		m.Frontend = ov.Frontend
	}
	if ov.Builder != "" {
		m.Builder = ov.Builder
	}
	if ov.Architecture != "" {
		m.Architecture = ov.Architecture
	}
	return m
}

func (o *Orchestrator) commands(overrides map[string]string) map[string]string {
	out := make(map[string]string, len(checkNames))
	for _, name := range checkNames {
		out[name] = o.cfg.Commands.Get(name)
		if cmd, ok := overrides[name]; ok {
			out[name] = cmd
		}
	}
	return out
}

// scrubberFor returns the injected scrubber or the workspace default.
func (o *Orchestrator) scrubberFor(root string) (secrets.Scrubber, error) {
	if o.scrubber != nil {
		return o.scrubber, nil
	}
	return secrets.ForWorkspace(o.cfg.Secrets, root)
}

// prepareWorkspace checks the mode and creates the project when asked.
// Nothing is written before the mode is known to be usable.
func (r *run) prepareWorkspace() error {
	cfg := r.o.cfg
	gw, err := workspace.New(r.req.WorkspacePath, workspace.Options{
		IncludeGlobs: cfg.Repo.IncludeGlobs,
		ExcludeGlobs: cfg.Repo.ExcludeGlobs,
		Allowlist:    cfg.Commands.Allowlist,
		Git:          r.mode == ModeExistingGit,
	})
	if err != nil {
		return err
	}
	r.gw = gw

	modeErr := func(reason string, err error) error {
		return &WorkspaceModeError{Mode: r.mode, Path: r.req.WorkspacePath, Reason: reason, Err: err}
	}

	switch r.mode {
	case ModeExistingGit:
		if !git.HasRepo(gw.Root()) {
			return modeErr("no .git directory found", nil)
		}
		return gw.CaptureBaseline()

	case ModeExistingFolder:
		_, err := gw.InitializeProject("")
		return err

	case ModeNewProject:
		if r.req.ProjectName == "" {
			return modeErr("projectName is required", nil)
		}
		if _, err := gw.InitializeProject(r.req.ProjectName); err != nil {
			var escape *workspace.PathEscapeError
			if errors.As(err, &escape) {
				return err
			}
			return modeErr("cannot create project", err)
		}
		if r.req.EffectiveSafety().InitGit && !gw.InitializeGit() {
			r.o.logger.Warn(context.Background(), "git init failed", zap.String("path", gw.Root()))
		}
		return nil
	}
	return modeErr("unknown workspace mode", nil)
}

func (r *run) execute() (*Result, error) {
	r.log = RunLog{
		RunID:         r.ch.RunID(),
		Workflow:      r.req.Workflow,
		PromptHash:    promptHash(r.req.TaskPrompt),
		WorkspaceMode: r.mode,
		WorkspacePath: r.gw.Root(),
		ToolCalls:     []ToolCall{},
	}
	md := r.gw.Metadata()
	r.log.Workspace = &md
	for _, role := range agents.Roles() {
		r.log.Agents = append(r.log.Agents, AgentInfo{Role: role, Model: r.team.Model(role)})
	}
	r.log.setStatus(StatusRunning)
	if err := r.writeRunLog(); err != nil {
		return nil, err
	}

	r.phase = PhaseStarted
	if err := r.emit(events.SourceOrchestrator, "", events.TypeRunStarted, events.LevelInfo, "Run started", map[string]any{
		"workflow":      r.req.Workflow,
		"workspaceMode": r.mode,
		"workspacePath": r.gw.Root(),
		"promptHash":    r.log.PromptHash,
		"runDir":        r.dir,
	}); err != nil {
		return nil, err
	}
	r.o.logger.Info(r.ctx, "run started",
		zap.String("workspace", r.gw.Root()),
		zap.String("mode", r.mode),
		zap.String("prompt_hash", r.log.PromptHash))

	for _, role := range agents.Roles() {
		if err := r.agentStatus(role, "idle", ""); err != nil {
			return nil, err
		}
	}

	if r.checkpoint() {
		return r.finalize()
	}

	files, err := r.gw.ListFiles()
	if err != nil {
		return nil, err
	}
	count := len(files)
	r.log.ToolCalls = append(r.log.ToolCalls, ToolCall{Type: ToolCallContextGather, FilesCount: &count})
	if err := r.emit(events.SourceRepo, "", events.TypeToolCall, events.LevelInfo,
		fmt.Sprintf("Gathered %d context files", count),
		map[string]any{"type": ToolCallContextGather, "filesCount": count}); err != nil {
		return nil, err
	}
	if err := r.transition(PhaseContextGathered); err != nil {
		return nil, err
	}

	if r.req.Workflow == WorkflowArchReviewOnly {
		if err := r.reviewWorkspace(); err != nil {
			return nil, err
		}
		return r.finalize()
	}

	plan, err := r.plan(files)
	if err != nil {
		return nil, err
	}

	if err := r.transition(PhaseChecking); err != nil {
		return nil, err
	}
	for _, name := range checkNames {
		if r.checkpoint() {
			return r.finalize()
		}
		if err := r.runCheck(name); err != nil {
			return nil, err
		}
	}

	build, err := r.build(plan, nil)
	if err != nil {
		return nil, err
	}
	if err := r.reviewBuild(build); err != nil {
		return nil, err
	}

	maxIter := r.o.cfg.Orchestration.MaxIterations
	for r.review.HasHigh() && r.log.Iterations < maxIter {
		if r.checkpoint() {
			break
		}
		r.log.Iterations++
		build, err = r.build(plan, r.review.RequiredActions)
		if err != nil {
			return nil, err
		}
		if err := r.reviewBuild(build); err != nil {
			return nil, err
		}
	}

	return r.finalize()
}

// checkpoint blocks while paused and reports whether the run was cancelled.
func (r *run) checkpoint() bool {
	r.signal.WaitIfPaused()
	return r.signal.IsCancelled()
}

func (r *run) plan(files []string) (agents.Plan, error) {
	if err := r.transition(PhasePlanning); err != nil {
		return agents.Plan{}, err
	}
	role := agents.RoleFrontend
	if err := r.agentStatus(role, "running", "Planning"); err != nil {
		return agents.Plan{}, err
	}
	plan, err := r.team.Frontend.Plan(r.roleCtx(role), r.req.TaskPrompt, files)
	if err != nil {
		return agents.Plan{}, fmt.Errorf("%s agent: %w", role, err)
	}
	if err := writeText(filepath.Join(r.dir, ArtifactPlan), plan.Markdown()); err != nil {
		return agents.Plan{}, err
	}
	if err := r.agentStep(role, "Plan written", map[string]any{
		"components":   plan.Components,
		"filesToTouch": plan.FilesToTouch,
	}); err != nil {
		return agents.Plan{}, err
	}
	return plan, r.agentStatus(role, "done", "")
}

// runCheck runs one configured command. The run context is deliberately
// not derived from the control signal so cancel never kills a command.
func (r *run) runCheck(name string) error {
	result := r.gw.RunCommand(r.ctx, r.commands[name])
	r.checks = append(r.checks, CheckResult{Check: name, CommandResult: result})

	skipped, rc := result.Skipped, result.ReturnCode
	r.log.ToolCalls = append(r.log.ToolCalls, ToolCall{
		Type:       ToolCallCommand,
		Check:      name,
		Command:    result.Command,
		Skipped:    &skipped,
		ReturnCode: &rc,
	})
	r.o.metrics.observeCheck(name, result.Outcome())

	level := events.LevelInfo
	if !skipped && rc != 0 {
		level = events.LevelError
		r.o.logger.Warn(r.ctx, "check failed", zap.String("check", name), zap.Int("returncode", rc))
	}
	return r.emit(events.SourceCommand, "", events.TypeToolCall, level,
		fmt.Sprintf("%s: %s", name, result.Outcome()),
		map[string]any{
			"type":       ToolCallCommand,
			"check":      name,
			"command":    result.Command,
			"skipped":    skipped,
			"returncode": rc,
			"stdout":     result.Stdout,
			"stderr":     result.Stderr,
		})
}

func (r *run) build(plan agents.Plan, actions []string) (agents.BuildResult, error) {
	if err := r.transition(PhaseBuilding); err != nil {
		return agents.BuildResult{}, err
	}
	role := agents.RoleBuilder
	step := "Implementing plan"
	if len(actions) > 0 {
		step = "Applying review actions"
	}
	if err := r.agentStatus(role, "running", step); err != nil {
		return agents.BuildResult{}, err
	}
	build, err := r.team.Builder.Implement(r.roleCtx(role), plan, actions)
	if err != nil {
		return agents.BuildResult{}, fmt.Errorf("%s agent: %w", role, err)
	}
	if err := r.agentStep(role, build.Notes, map[string]any{
		"filesTouched":   build.FilesTouched,
		"appliedActions": build.AppliedActions,
		"iteration":      r.log.Iterations,
	}); err != nil {
		return agents.BuildResult{}, err
	}
	return build, r.agentStatus(role, "done", "")
}

func (r *run) reviewBuild(build agents.BuildResult) error {
	diff, err := r.gw.Diff()
	if err != nil {
		return err
	}
	return r.runReview(diff, build.FilesTouched, build.AppliedActions)
}

// reviewWorkspace reviews the workspace as found, for arch_review_only.
func (r *run) reviewWorkspace() error {
	diff, err := r.gw.Diff()
	if err != nil {
		return err
	}
	changed, err := r.gw.ChangedFiles()
	if err != nil {
		return err
	}
	return r.runReview(diff, changed, nil)
}

func (r *run) runReview(diff string, files, applied []string) error {
	if err := r.transition(PhaseReviewing); err != nil {
		return err
	}
	role := agents.RoleArchitecture
	if err := r.agentStatus(role, "running", "Reviewing changes"); err != nil {
		return err
	}
	review, err := r.team.Architecture.Review(r.roleCtx(role), diff, files, applied)
	if err != nil {
		return fmt.Errorf("%s agent: %w", role, err)
	}
	r.review = review

	level := events.LevelInfo
	if review.HasHigh() {
		level = events.LevelWarning
	}
	if err := r.emit(events.SourceOrchestrator, string(role), events.TypeReviewIteration, level,
		fmt.Sprintf("Review found %d high-severity findings", review.HighCount()),
		map[string]any{
			"iteration":       r.log.Iterations,
			"findings":        len(review.Findings),
			"high":            review.HighCount(),
			"requiredActions": review.RequiredActions,
		}); err != nil {
		return err
	}
	return r.agentStatus(role, "done", "")
}

// finalize writes the closing artifacts. Status is cancelled when the
// signal was cancelled at any point.
func (r *run) finalize() (*Result, error) {
	if err := r.transition(PhaseFinalizing); err != nil {
		return nil, err
	}

	status, terminal, typ := StatusCompleted, PhaseCompleted, events.TypeRunCompleted
	if r.signal.IsCancelled() {
		status, terminal, typ = StatusCancelled, PhaseCancelled, events.TypeRunCancelled
	}

	review := r.review
	if review.Findings == nil {
		review.Findings = []agents.Finding{}
	}
	if review.RequiredActions == nil {
		review.RequiredActions = []string{}
	}
	if err := writeJSON(filepath.Join(r.dir, ArtifactReview), review); err != nil {
		return nil, err
	}

	diff, err := r.gw.Diff()
	if err != nil {
		return nil, err
	}
	if err := writeText(filepath.Join(r.dir, ArtifactPatch), diff); err != nil {
		return nil, err
	}
	changed, err := r.gw.ChangedFiles()
	if err != nil {
		return nil, err
	}
	if changed == nil {
		changed = []string{}
	}

	r.log.setStatus(status)
	if err := r.writeRunLog(); err != nil {
		return nil, err
	}
	if err := writeText(filepath.Join(r.dir, ArtifactFinalSummary), FinalSummary(changed, r.checks, review)); err != nil {
		return nil, err
	}
	outputMode := r.o.cfg.Output.Mode
	if outputMode == OutputModeBranch {
		if err := writeText(filepath.Join(r.dir, ArtifactBranchNote), branchNote); err != nil {
			return nil, err
		}
	}

	if err := r.transition(terminal); err != nil {
		return nil, err
	}
	if err := r.emit(events.SourceOrchestrator, "", typ, events.LevelInfo, "Run "+status, map[string]any{
		"status":     status,
		"iterations": r.log.Iterations,
		"unresolved": review.HighCount(),
		"runDir":     r.dir,
	}); err != nil {
		return nil, err
	}

	elapsed := r.o.now().Sub(r.started).Seconds()
	r.o.metrics.observeRun(r.req.Workflow, status, r.log.Iterations, review.HighCount(), elapsed)
	r.o.logger.Info(r.ctx, "run finished",
		zap.String("status", status),
		zap.Int("iterations", r.log.Iterations),
		zap.Int("unresolved", review.HighCount()))

	return &Result{
		RunID:      r.ch.RunID(),
		RunDir:     r.dir,
		Status:     status,
		Iterations: r.log.Iterations,
		Review:     review,
		Checks:     r.checks,
		Changed:    changed,
		OutputMode: outputMode,
	}, nil
}

// fail records an internal fault. It never overrides a status already
// written as terminal.
func (r *run) fail(cause error) {
	r.o.logger.Error(r.ctx, "run failed", zap.Error(cause))
	r.log.setStatus(StatusFailed)
	if r.log.Status == StatusFailed {
		r.log.Error = cause.Error()
	}
	if err := r.writeRunLog(); err != nil {
		r.o.logger.Error(r.ctx, "writing run log after failure", zap.Error(err))
	}
	if _, err := r.ch.Emit(events.SourceOrchestrator, "", events.TypeRunFailed, events.LevelError,
		"Run failed", map[string]any{"error": cause.Error(), "phase": string(r.phase)}); err != nil {
		r.o.logger.Error(r.ctx, "emitting run.failed", zap.Error(err))
	}
	r.o.metrics.observeRun(r.req.Workflow, StatusFailed, r.log.Iterations, r.review.HighCount(),
		r.o.now().Sub(r.started).Seconds())
}

func (r *run) transition(to Phase) error {
	if err := CanTransition(r.phase, to); err != nil {
		return err
	}
	from := r.phase
	r.phase = to
	return r.emit(events.SourceOrchestrator, "", events.TypeWorkflowPhase, events.LevelInfo,
		fmt.Sprintf("Phase %s", to),
		map[string]any{"from": string(from), "to": string(to)})
}

func (r *run) agentStatus(role agents.Role, status, step string) error {
	data := map[string]any{"status": status, "model": r.team.Model(role)}
	if step != "" {
		data["currentStep"] = step
	}
	return r.emit(events.SourceAgent, string(role), events.TypeAgentStatus, events.LevelInfo,
		fmt.Sprintf("%s agent %s", role, status), data)
}

func (r *run) agentStep(role agents.Role, message string, data map[string]any) error {
	data["currentStep"] = message
	return r.emit(events.SourceAgent, string(role), events.TypeAgentStep, events.LevelInfo, message, data)
}

func (r *run) emit(source events.Source, role, typ string, level events.Level, msg string, data map[string]any) error {
	_, err := r.ch.Emit(source, role, typ, level, msg, data)
	return err
}

func (r *run) roleCtx(role agents.Role) context.Context {
	return logging.WithRole(r.ctx, string(role))
}

func (r *run) writeRunLog() error {
	return writeJSON(filepath.Join(r.dir, ArtifactRunLog), r.log)
}

func promptHash(task string) string {
	sum := sha256.Sum256([]byte(task))
	return hex.EncodeToString(sum[:])
}

// sharedSink keeps a channel from closing a sink that outlives the run.
type sharedSink struct{ events.Sink }

func (s sharedSink) Close() error { return nil }
