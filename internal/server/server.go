// Package server exposes the orchestrator over HTTP: task submission and
// inspection, workflow registration and run control, and a WebSocket event
// stream
package server

import (
	"log/slog"
	"net/http"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/siderealworks/meridian/internal/events"
	"github.com/siderealworks/meridian/internal/executor"
	"github.com/siderealworks/meridian/internal/task"
	"github.com/siderealworks/meridian/internal/workflow"
)

// Server implements the HTTP API for the orchestrator
type Server struct {
	tasks  *task.Manager
	engine *workflow.Engine
	tools  *executor.Registry
	hub    *events.Hub
}

// NewServer creates a new HTTP API server
func NewServer(
	tasks *task.Manager, engine *workflow.Engine,
	tools *executor.Registry, hub *events.Hub,
) *Server {
	return &Server{
		tasks:  tasks,
		engine: engine,
		tools:  tools,
		hub:    hub,
	}
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods",
			"GET, POST, PUT, DELETE, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization",
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.GET("/health", s.handleHealth)

	// Task endpoints
	tasks := router.Group("/tasks")
	{
		tasks.POST("", s.submitTask)
		tasks.GET("", s.listActiveTasks)
		tasks.GET("/:taskID", s.getTask)
		tasks.DELETE("/:taskID", s.cancelTask)
	}

	// Workflow endpoints
	flows := router.Group("/workflows")
	{
		flows.POST("", s.registerWorkflow)
		flows.GET("", s.listWorkflows)
		flows.GET("/:name", s.getWorkflowState)
		flows.POST("/:name/execute", s.executeWorkflow)
		flows.POST("/:name/pause", s.pauseWorkflow)
		flows.POST("/:name/resume", s.resumeWorkflow)
		flows.POST("/:name/abort", s.abortWorkflow)
		flows.GET("/:name/result", s.getWorkflowResult)
	}

	// WebSocket event stream
	router.GET("/ws", s.handleWebSocket)

	return router
}
