package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/siderealworks/meridian/internal/executor"
	"github.com/siderealworks/meridian/internal/task"
	"github.com/siderealworks/meridian/pkg/api"
)

var (
	ErrInvalidJSON    = errors.New("invalid JSON payload")
	ErrUnknownTask    = errors.New("unknown task")
	ErrUnknownType    = errors.New("unknown task type")
	ErrSubmitTask     = errors.New("failed to submit task")
	ErrTaskNotActive  = errors.New("task not found or already terminal")
	ErrTaskTypeNeeded = errors.New("task type is required")
)

// submitTask registers a task whose type names a handler in the tool
// registry and returns its ID without waiting on the work
func (s *Server) submitTask(c *gin.Context) {
	var req api.SubmitTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrInvalidJSON, err),
			Status: http.StatusBadRequest,
		})
		return
	}
	if req.Type == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  ErrTaskTypeNeeded.Error(),
			Status: http.StatusBadRequest,
		})
		return
	}

	tool, ok := s.tools.Lookup(req.Type)
	if !ok {
		c.JSON(http.StatusNotFound, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %s", ErrUnknownType, req.Type),
			Status: http.StatusNotFound,
		})
		return
	}

	id, err := s.tasks.Submit(req.Type, req.Params, toolExecutor(tool))
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrSubmitTask, err),
			Status: http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusAccepted, api.TaskSubmittedResponse{TaskID: id})
}

func (s *Server) getTask(c *gin.Context) {
	id := api.TaskID(c.Param("taskID"))
	rec, ok := s.tasks.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %s", ErrUnknownTask, id),
			Status: http.StatusNotFound,
		})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) listActiveTasks(c *gin.Context) {
	tasks := s.tasks.ListActive()
	c.JSON(http.StatusOK, api.TasksListResponse{
		Tasks: tasks,
		Count: len(tasks),
	})
}

// cancelTask requests cooperative cancellation. Cancelling an unknown or
// already-terminal task reports conflict rather than success
func (s *Server) cancelTask(c *gin.Context) {
	id := api.TaskID(c.Param("taskID"))
	if !s.tasks.Cancel(id) {
		c.JSON(http.StatusConflict, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %s", ErrTaskNotActive, id),
			Status: http.StatusConflict,
		})
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{
		Message: fmt.Sprintf("cancellation requested for %s", id),
	})
}

// toolExecutor adapts a registry tool to the task manager's executor
// contract, mapping cancellation and failure reporting
func toolExecutor(tool executor.Executor) task.Executor {
	return func(
		ctx context.Context, tok *task.Token, params api.Args,
	) (api.Args, error) {
		res, err := tool.Execute(ctx, params, nil)
		if err != nil {
			if tok.Cancelled() {
				return nil, task.ErrCancelled
			}
			return nil, err
		}
		if !res.Success {
			return nil, errors.New(res.Error)
		}
		return res.Output, nil
	}
}
