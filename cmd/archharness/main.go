// Package main implements the archharness CLI: scripted agent runs against a
// workspace, the interactive chat and monitor, and read access to run history.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/archharness/internal/config"
	"github.com/fyrsmithlabs/archharness/internal/conversation"
	"github.com/fyrsmithlabs/archharness/internal/events"
	"github.com/fyrsmithlabs/archharness/internal/logging"
)

// version information
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "archharness",
		Short: "Plan, build and review changes to a workspace with a team of agents",
		Long: `archharness coordinates a planning agent, a builder and an architecture
reviewer over a code workspace. Every run writes its plan, review, patch,
run log and event stream under <workspace>/.agent-harness/runs/<run-id>.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().String("config", "", "config file (.yaml, .yml or .json)")

	root.AddCommand(
		newRunCmd(),
		newTUICmd(),
		newRunsCmd(),
		newLogsCmd(),
		newServeCmd(),
	)
	return root
}

// loadConfig reads the --config file plus ARCHHARNESS_* overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

// newLogger builds the operational logger. Logs go to stderr so stdout
// stays clean for command results.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	lc, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(lc)
}

// newFileLogger logs only to the configured file, for full-screen commands.
// Without a file it discards logs.
func newFileLogger(cfg *config.Config) (*logging.Logger, error) {
	if cfg.Logging.File == "" {
		return logging.NewNop(), nil
	}
	lc, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		return nil, err
	}
	lc.Output.Stderr = false
	return logging.NewLogger(lc)
}

// natsSink connects the optional event fan-out. It returns nil when no URL
// is configured.
func natsSink(cfg *config.Config) (*events.NATSSink, error) {
	n := cfg.Events.NATS
	if n.URL == "" {
		return nil, nil
	}
	return events.ConnectNATS(n.URL, n.Subject, n.Token.Value())
}

// workspacePath resolves --path, defaulting to the working directory. A
// leading ~ expands to the home directory.
func workspacePath(cmd *cobra.Command) (string, error) {
	path, err := cmd.Flags().GetString("path")
	if err != nil {
		return "", err
	}
	if path == "" {
		path = "."
	}
	return conversation.ResolvePath(path), nil
}
