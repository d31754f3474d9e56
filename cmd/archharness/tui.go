package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/archharness/internal/monitor"
	"github.com/fyrsmithlabs/archharness/internal/orchestrator"
)

func newTUICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the chat and run monitor",
		Long: `Open the interactive terminal UI.

With --path the run list of that workspace is shown first. Without it the
chat opens directly and collects the workspace, task and models before
starting a run.

Logs are written only to logging.file, if configured.`,
		Args: cobra.NoArgs,
		RunE: runTUI,
	}
	cmd.Flags().String("path", "", "workspace whose runs are listed on start")
	return cmd
}

func runTUI(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := newFileLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	oopts := []orchestrator.Option{orchestrator.WithLogger(logger)}
	sink, err := natsSink(cfg)
	if err != nil {
		return err
	}
	if sink != nil {
		defer sink.Close()
		oopts = append(oopts, orchestrator.WithSink(sink))
	}

	ctx := cmd.Context()
	opts := []monitor.Option{
		monitor.WithLogger(logger),
		monitor.WithContext(ctx),
		monitor.WithRunner(monitor.OrchestratorRunner(orchestrator.New(cfg, oopts...))),
	}
	if cmd.Flags().Changed("path") {
		path, err := workspacePath(cmd)
		if err != nil {
			return err
		}
		opts = append(opts, monitor.WithWorkspace(path))
	}

	// Signals go through the model like ctrl+c, so an active run is
	// cancelled and finalized before the program exits.
	p := tea.NewProgram(monitor.NewModel(cfg, opts...), tea.WithAltScreen(), tea.WithoutSignalHandler())
	stop := context.AfterFunc(ctx, func() { p.Send(tea.KeyMsg{Type: tea.KeyCtrlC}) })
	defer stop()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running tui: %w", err)
	}
	return nil
}
