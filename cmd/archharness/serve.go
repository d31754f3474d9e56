package main

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/archharness/internal/http"
	"github.com/fyrsmithlabs/archharness/internal/secrets"
)

const defaultShutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve run history of a workspace over HTTP",
		Long: `Serve the runs, events and artifacts of a workspace as JSON.

Artifact content is passed through the secret scrubber before it is
returned. Prometheus metrics are exposed on /metrics.

Examples:
  archharness serve --path ./my-app
  archharness serve --path ./my-app --host 0.0.0.0 --port 8080`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	f := cmd.Flags()
	f.String("path", "", "workspace path (default: current directory)")
	f.String("host", "", "listen host (default: server.host)")
	f.Int("port", 0, "listen port (default: server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path, err := workspacePath(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	scrubber, err := secrets.ForWorkspace(cfg.Secrets, path)
	if err != nil {
		return err
	}

	scfg := &http.Config{Host: cfg.Server.Host, Port: cfg.Server.Port, Workspace: path}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		scfg.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		scfg.Port = port
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv, err := http.NewServer(scrubber, logger, scfg, http.WithRegistry(reg))
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	ctx := cmd.Context()
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := cfg.Server.ShutdownTimeout.Duration()
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "http server shutdown", zap.Error(err))
		return err
	}
	return nil
}
