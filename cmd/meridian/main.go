package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/siderealworks/meridian/internal/archive"
	"github.com/siderealworks/meridian/internal/config"
	"github.com/siderealworks/meridian/internal/events"
	"github.com/siderealworks/meridian/internal/executor"
	"github.com/siderealworks/meridian/internal/history"
	"github.com/siderealworks/meridian/internal/server"
	"github.com/siderealworks/meridian/internal/task"
	"github.com/siderealworks/meridian/internal/workflow"
	"github.com/siderealworks/meridian/pkg/log"
)

// meridian wires the orchestrator together. Every component is constructed
// here and injected explicitly; nothing is a package-level singleton
type meridian struct {
	cfg        *config.Config
	hub        *events.Hub
	tools      *executor.Registry
	tasks      *task.Manager
	engine     *workflow.Engine
	history    *history.RedisStore
	archiver   *archive.BlobArchiver
	httpServer *http.Server
	quit       chan os.Signal
}

const serviceName = "meridian"

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func main() {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	m := &meridian{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	m.setupLogging()

	if err := m.run(); err != nil {
		slog.Error("Failed to start orchestrator", log.Error(err))
		os.Exit(1)
	}
}

func (m *meridian) run() error {
	if err := m.initialize(); err != nil {
		return err
	}
	m.startServer()

	signal.Notify(m.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(m.quit)
	<-m.quit

	m.shutdown()
	return nil
}

func (m *meridian) setupLogging() {
	level, ok := logLevels[m.cfg.LogLevel]
	if !ok {
		level = slog.LevelInfo
	}
	logger := log.New(
		serviceName, os.Getenv("ENV"), version(), level,
	)
	slog.SetDefault(logger)
}

func (m *meridian) initialize() error {
	m.hub = events.NewHub()

	m.tools = executor.NewRegistry()
	if err := executor.RegisterBuiltins(m.tools); err != nil {
		return err
	}

	m.tasks = task.NewManager(m.hub)
	m.engine = workflow.New(m.cfg, m.tools, m.hub).
		WithNestedRunner(executor.NewTaskRunner(m.tasks, m.tools))

	if m.cfg.History.Addr != "" {
		m.history = history.New(m.cfg.History)
		m.tasks.WithHistory(m.history)
		m.engine.WithHistory(m.history)
	}

	if m.cfg.ArchiveBucketURL != "" {
		a, err := archive.NewBlobArchiver(
			context.Background(), m.cfg.ArchiveBucketURL, serviceName,
		)
		if err != nil {
			return err
		}
		m.archiver = a
		m.engine.WithArchiver(a)
	}

	return m.engine.Start()
}

func (m *meridian) startServer() {
	apiServer := server.NewServer(m.tasks, m.engine, m.tools, m.hub)
	addr := fmt.Sprintf("%s:%d", m.cfg.APIHost, m.cfg.APIPort)

	m.httpServer = &http.Server{
		Addr:    addr,
		Handler: apiServer.SetupRoutes(),
	}

	go func() {
		slog.Info("HTTP API listening", slog.String("addr", addr))
		err := m.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", log.Error(err))
			m.quit <- syscall.SIGTERM
		}
	}()
}

func (m *meridian) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), m.cfg.ShutdownTimeout,
	)
	defer cancel()

	if m.httpServer != nil {
		if err := m.httpServer.Shutdown(ctx); err != nil {
			slog.Error("HTTP shutdown failed", log.Error(err))
		}
	}

	m.engine.Stop()
	if err := m.tasks.Shutdown(ctx); err != nil {
		slog.Warn("Tasks still running at shutdown", log.Error(err))
	}

	if m.archiver != nil {
		_ = m.archiver.Close()
	}
	if m.history != nil {
		_ = m.history.Close()
	}
}

func version() string {
	if v := os.Getenv("VERSION"); v != "" {
		return v
	}
	return "dev"
}
