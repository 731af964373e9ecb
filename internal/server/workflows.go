package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/siderealworks/meridian/internal/workflow"
	"github.com/siderealworks/meridian/pkg/api"
)

var (
	ErrWorkflowNameNeeded = errors.New("valid workflow name is required")
	ErrRegisterWorkflow   = errors.New("failed to register workflow")
	ErrExecuteWorkflow    = errors.New("failed to execute workflow")
	ErrNoResultYet        = errors.New("workflow has no terminal result")
)

// registerWorkflow stores a definition, replacing any prior definition
// under the same name
func (s *Server) registerWorkflow(c *gin.Context) {
	var req api.RegisterWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrInvalidJSON, err),
			Status: http.StatusBadRequest,
		})
		return
	}

	name := api.SanitizeName(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  ErrWorkflowNameNeeded.Error(),
			Status: http.StatusBadRequest,
		})
		return
	}

	wf := &api.Workflow{Name: name, Steps: req.Steps}
	if err := s.engine.Register(wf); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, workflow.ErrRunActive) {
			status = http.StatusConflict
		}
		c.JSON(status, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrRegisterWorkflow, err),
			Status: status,
		})
		return
	}

	c.JSON(http.StatusCreated, api.MessageResponse{
		Message: fmt.Sprintf("workflow %s registered", name),
	})
}

func (s *Server) listWorkflows(c *gin.Context) {
	names := s.engine.Names()
	c.JSON(http.StatusOK, gin.H{
		"workflows": names,
		"count":     len(names),
	})
}

// executeWorkflow launches a run asynchronously; progress is observable via
// the state endpoint and the event stream
func (s *Server) executeWorkflow(c *gin.Context) {
	var req api.ExecuteWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrInvalidJSON, err),
			Status: http.StatusBadRequest,
		})
		return
	}

	name := api.Name(c.Param("name"))
	if _, err := s.engine.ExecuteAsync(name, req.Params); err != nil {
		status := workflowErrorStatus(err)
		c.JSON(status, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrExecuteWorkflow, err),
			Status: status,
		})
		return
	}

	c.JSON(http.StatusAccepted, api.WorkflowStartedResponse{
		Name:   name,
		Status: api.RunRunning,
	})
}

func (s *Server) getWorkflowState(c *gin.Context) {
	name := api.Name(c.Param("name"))
	state, err := s.engine.GetState(name)
	if err != nil {
		status := workflowErrorStatus(err)
		c.JSON(status, api.ErrorResponse{
			Error:  err.Error(),
			Status: status,
		})
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) getWorkflowResult(c *gin.Context) {
	name := api.Name(c.Param("name"))
	res, ok := s.engine.Result(name)
	if !ok {
		c.JSON(http.StatusNotFound, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %s", ErrNoResultYet, name),
			Status: http.StatusNotFound,
		})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) pauseWorkflow(c *gin.Context) {
	s.runStateChange(c, s.engine.Pause, "paused")
}

func (s *Server) resumeWorkflow(c *gin.Context) {
	s.runStateChange(c, s.engine.Resume, "resumed")
}

func (s *Server) abortWorkflow(c *gin.Context) {
	s.runStateChange(c, s.engine.Abort, "aborted")
}

func (s *Server) runStateChange(
	c *gin.Context, op func(api.Name) error, verb string,
) {
	name := api.Name(c.Param("name"))
	if err := op(name); err != nil {
		status := workflowErrorStatus(err)
		c.JSON(status, api.ErrorResponse{
			Error:  err.Error(),
			Status: status,
		})
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{
		Message: fmt.Sprintf("workflow %s %s", name, verb),
	})
}

// workflowErrorStatus maps engine errors to HTTP statuses: unknown names
// are 404, lifecycle conflicts are 409, everything else is 400
func workflowErrorStatus(err error) int {
	switch {
	case errors.Is(err, workflow.ErrWorkflowNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrRunActive),
		errors.Is(err, workflow.ErrRunNotActive),
		errors.Is(err, workflow.ErrAlreadyTerminal):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
