// Package http serves the run history of a workspace over a read-only JSON
// API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/archharness/internal/events"
	"github.com/fyrsmithlabs/archharness/internal/logging"
	"github.com/fyrsmithlabs/archharness/internal/runs"
	"github.com/fyrsmithlabs/archharness/internal/secrets"
)

// Server provides HTTP endpoints over one workspace's runs.
type Server struct {
	echo     *echo.Echo
	scrubber secrets.Scrubber
	logger   *logging.Logger
	config   *Config
	metrics  *HTTPMetrics
	gatherer prometheus.Gatherer
}

// Config holds HTTP server configuration.
type Config struct {
	Host      string
	Port      int
	Workspace string
}

// Option configures a Server.
type Option func(*Server)

// WithRegistry exposes the collectors of reg on /metrics and registers the
// request metrics with it.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.gatherer = reg
		s.metrics = NewHTTPMetrics(reg)
	}
}

// NewServer creates a new HTTP server.
func NewServer(scrubber secrets.Scrubber, logger *logging.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if scrubber == nil {
		return nil, fmt.Errorf("scrubber cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9797,
		}
	}
	if cfg.Workspace == "" {
		return nil, fmt.Errorf("workspace is required")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		scrubber: scrubber,
		logger:   logger,
		config:   cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})
	if s.metrics != nil {
		e.Use(s.metrics.MetricsMiddleware())
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	if s.gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.GET("/runs", s.handleListRuns)
	v1.GET("/runs/:id", s.handleGetRun)
	v1.GET("/runs/:id/events", s.handleEvents)
	v1.GET("/runs/:id/artifacts", s.handleListArtifacts)
	v1.GET("/runs/:id/artifacts/:name", s.handleGetArtifact)
	v1.POST("/scrub", s.handleScrub)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.echo }

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	list, err := runs.List(s.config.Workspace)
	if err != nil {
		return s.internalError(c, "listing runs", err)
	}
	return c.JSON(http.StatusOK, StatusResponse{
		Status:    "ok",
		Workspace: s.config.Workspace,
		Counts:    CountByStatus(list),
	})
}

func (s *Server) handleListRuns(c echo.Context) error {
	list, err := runs.List(s.config.Workspace)
	if err != nil {
		return s.internalError(c, "listing runs", err)
	}
	return c.JSON(http.StatusOK, RunsResponse{Runs: list, Count: len(list)})
}

func (s *Server) handleGetRun(c echo.Context) error {
	run, err := runs.Get(s.config.Workspace, c.Param("id"))
	if err != nil {
		return s.lookupError(c, err)
	}
	resp := RunResponse{Run: run}
	if rl, err := runs.RunLog(run.Dir); err == nil {
		resp.RunLog = rl
	}
	if list, err := runs.Artifacts(run.Dir); err == nil {
		resp.Artifacts = list
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleEvents(c echo.Context) error {
	dir, err := runs.Dir(s.config.Workspace, c.Param("id"))
	if err != nil {
		return s.lookupError(c, err)
	}

	f := events.Filter{
		Role:   c.QueryParam("role"),
		Search: c.QueryParam("search"),
	}
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
		}
		f.Limit = n
	}

	evs, err := runs.Events(dir, f)
	if err != nil {
		return s.internalError(c, "reading events", err)
	}
	return c.JSON(http.StatusOK, EventsResponse{Events: evs, Count: len(evs)})
}

func (s *Server) handleListArtifacts(c echo.Context) error {
	dir, err := runs.Dir(s.config.Workspace, c.Param("id"))
	if err != nil {
		return s.lookupError(c, err)
	}
	list, err := runs.Artifacts(dir)
	if err != nil {
		return s.internalError(c, "listing artifacts", err)
	}
	return c.JSON(http.StatusOK, ArtifactsResponse{Artifacts: list})
}

// handleGetArtifact serves one artifact as text, passed through the
// scrubber on the way out.
func (s *Server) handleGetArtifact(c echo.Context) error {
	dir, err := runs.Dir(s.config.Workspace, c.Param("id"))
	if err != nil {
		return s.lookupError(c, err)
	}
	raw, err := runs.ReadArtifact(dir, c.Param("name"))
	if err != nil {
		return s.lookupError(c, err)
	}
	body := secrets.RedactString(s.scrubber, string(raw))

	contentType := echo.MIMETextPlainCharsetUTF8
	if filepath.Ext(c.Param("name")) == ".json" {
		contentType = echo.MIMEApplicationJSONCharsetUTF8
	}
	return c.Blob(http.StatusOK, contentType, []byte(body))
}

// handleScrub previews redaction of arbitrary content.
func (s *Server) handleScrub(c echo.Context) error {
	var req ScrubRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid scrub request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content field is required")
	}

	result := s.scrubber.Scrub(req.Content)

	s.logger.Debug(c.Request().Context(), "scrubbed content",
		zap.Int("findings", result.TotalFindings),
	)

	return c.JSON(http.StatusOK, ScrubResponse{
		Content:       result.Scrubbed,
		FindingsCount: result.TotalFindings,
	})
}

func (s *Server) lookupError(c echo.Context, err error) error {
	if errors.Is(err, runs.ErrRunNotFound) || errors.Is(err, runs.ErrArtifactNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return s.internalError(c, "loading run", err)
}

func (s *Server) internalError(c echo.Context, what string, err error) error {
	s.logger.Error(c.Request().Context(), what, zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, what+" failed")
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server",
		zap.String("addr", addr),
		zap.String("workspace", s.config.Workspace))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
