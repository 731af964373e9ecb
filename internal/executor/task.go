package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/siderealworks/meridian/internal/task"
	"github.com/siderealworks/meridian/pkg/api"
)

// TaskRunner executes a step as a nested tracked task: the tool handler is
// submitted through the task manager, so the step shows up in the task
// registry with its own ID and lifecycle
type TaskRunner struct {
	manager *task.Manager
	tools   *Registry
}

var ErrNestedTaskType = errors.New("nested task requires a tool name")

var _ Executor = (*TaskRunner)(nil)

// NewTaskRunner creates a nested-task step executor
func NewTaskRunner(manager *task.Manager, tools *Registry) *TaskRunner {
	return &TaskRunner{manager: manager, tools: tools}
}

// Execute submits the named tool as a task and waits for it to reach a
// terminal state, mapping the record back to a step result
func (r *TaskRunner) Execute(
	ctx context.Context, params, shared api.Args,
) (*Result, error) {
	name := params.GetString("tool", "")
	if name == "" {
		return nil, ErrNestedTaskType
	}
	tool, ok := r.tools.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	id, err := r.manager.Submit(name, params,
		func(tctx context.Context, tok *task.Token, p api.Args) (api.Args, error) {
			res, err := tool.Execute(tctx, p, shared)
			if err != nil {
				if tok.Cancelled() && errors.Is(err, context.Canceled) {
					return nil, task.ErrCancelled
				}
				return nil, err
			}
			if !res.Success {
				return nil, errors.New(res.Error)
			}
			return res.Output, nil
		})
	if err != nil {
		return nil, err
	}

	rec, err := r.manager.WaitTerminal(ctx, id)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, context.Canceled) {
			r.manager.Cancel(id)
		}
		return nil, err
	}

	switch rec.Status {
	case api.TaskCompleted:
		return Succeed(rec.Result.Set("task_id", string(rec.ID))), nil
	default:
		res := Fail(rec.Error)
		res.Output = api.Args{"task_id": string(rec.ID)}
		return res, nil
	}
}
