package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/archharness/internal/config"
	"github.com/fyrsmithlabs/archharness/internal/control"
	"github.com/fyrsmithlabs/archharness/internal/conversation"
	"github.com/fyrsmithlabs/archharness/internal/orchestrator"
)

// runOutput is printed to stdout when a run finishes.
type runOutput struct {
	RunDir     string `json:"runDir"`
	OutputMode string `json:"outputMode"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the agent workflow against a workspace",
		Long: `Run the agent workflow against a workspace and print the run directory.

Examples:
  # Implement a feature in an existing repository
  archharness run --task "Add a login page" --path ./my-app

  # Review the working tree without building
  archharness run --task "Review layering" --path . --workflow arch_review_only

  # Scaffold a new project with its own git repository
  archharness run --task "Add a login page" --path ~/code --mode new-project --project-name Portal`,
		Args: cobra.NoArgs,
		RunE: runRun,
	}

	f := cmd.Flags()
	f.String("task", "", "task prompt for the agents")
	f.String("path", "", "workspace path (default: current directory)")
	f.String("mode", "", "workspace mode: new-project, existing-folder or existing-git (default: detected)")
	f.String("project-name", "", "project directory name for new-project mode")
	f.String("workflow", orchestrator.WorkflowFrontendFeature, "workflow: frontend_feature or arch_review_only")
	f.String("frontend-model", "", "override the frontend agent model")
	f.String("architecture-model", "", "override the architecture agent model")
	f.String("builder-model", "", "override the builder agent model")
	f.Int("max-iterations", 0, "override the retry budget (0: no retries)")
	f.String("output-mode", "", "output mode: patch or branch")
	f.String("init-git", "", "initialize git in a new project: true or false")
	f.String("metrics-file", "", "write run metrics in Prometheus text format to this file")
	_ = cmd.MarkFlagRequired("task")

	return cmd
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.ApplyOverrides(overridesFromFlags(cmd)); err != nil {
		return err
	}

	req, err := requestFromFlags(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reg := prometheus.NewRegistry()
	opts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(orchestrator.NewMetrics(reg)),
	}
	sink, err := natsSink(cfg)
	if err != nil {
		return err
	}
	if sink != nil {
		defer sink.Close()
		opts = append(opts, orchestrator.WithSink(sink))
	}

	// Interrupts cancel cooperatively so the run still finalizes its
	// artifacts with status cancelled.
	ctrl := control.New()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stop := context.AfterFunc(ctx, ctrl.Cancel)
	defer stop()

	res, err := orchestrator.New(cfg, opts...).Run(context.WithoutCancel(ctx), req, orchestrator.WithSignal(ctrl))
	if err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("metrics-file"); path != "" {
		if err := prometheus.WriteToTextfile(path, reg); err != nil {
			logger.Warn(ctx, "writing metrics file", zap.Error(err))
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	return enc.Encode(runOutput{RunDir: res.RunDir, OutputMode: res.OutputMode})
}

// overridesFromFlags collects the config overrides. An explicit
// --max-iterations 0 is kept.
func overridesFromFlags(cmd *cobra.Command) config.Overrides {
	f := cmd.Flags()
	var o config.Overrides
	o.FrontendModel, _ = f.GetString("frontend-model")
	o.ArchitectureModel, _ = f.GetString("architecture-model")
	o.BuilderModel, _ = f.GetString("builder-model")
	o.OutputMode, _ = f.GetString("output-mode")
	if f.Changed("max-iterations") {
		n, _ := f.GetInt("max-iterations")
		o.MaxIterations = &n
	}
	return o
}

// requestFromFlags builds the RunRequest. An unset --mode is detected from
// the path.
func requestFromFlags(cmd *cobra.Command) (orchestrator.RunRequest, error) {
	f := cmd.Flags()
	path, err := workspacePath(cmd)
	if err != nil {
		return orchestrator.RunRequest{}, err
	}

	req := orchestrator.RunRequest{WorkspacePath: path}
	req.TaskPrompt, _ = f.GetString("task")
	req.WorkspaceMode, _ = f.GetString("mode")
	req.ProjectName, _ = f.GetString("project-name")
	req.Workflow, _ = f.GetString("workflow")

	switch req.Workflow {
	case orchestrator.WorkflowFrontendFeature, orchestrator.WorkflowArchReviewOnly:
	default:
		return req, fmt.Errorf("invalid workflow %q: want %s or %s",
			req.Workflow, orchestrator.WorkflowFrontendFeature, orchestrator.WorkflowArchReviewOnly)
	}

	if req.WorkspaceMode == "" {
		req.WorkspaceMode = conversation.DetectWorkspaceMode(path)
		if req.ProjectName != "" {
			req.WorkspaceMode = orchestrator.ModeNewProject
		}
	}

	if raw, _ := f.GetString("init-git"); raw != "" {
		initGit, err := orchestrator.ParseInitGit(raw)
		if err != nil {
			return req, err
		}
		safety := req.EffectiveSafety()
		safety.InitGit = initGit
		req.Safety = &safety
	}

	return req, req.Validate()
}
