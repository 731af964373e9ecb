package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/siderealworks/meridian/internal/config"
	"github.com/siderealworks/meridian/internal/events"
	"github.com/siderealworks/meridian/internal/executor"
	"github.com/siderealworks/meridian/pkg/api"
	"github.com/siderealworks/meridian/pkg/log"
)

type (
	// Recorder persists terminal workflow results
	Recorder interface {
		RecordResult(context.Context, *api.WorkflowResult) error
	}

	// Archiver writes terminal workflow results to long-term storage
	Archiver interface {
		ArchiveResult(context.Context, *api.WorkflowResult) error
	}

	// Engine owns the workflow registry and all run state. Construct it
	// explicitly at bootstrap and share the single instance; there is no
	// package-level singleton
	Engine struct {
		cfg     *config.Config
		tools   *executor.Registry
		shell   *executor.ShellRunner
		lua     *executor.LuaRunner
		nested  executor.Executor
		hub     *events.Hub
		history Recorder
		archive Archiver
		pool    *pool

		mu      sync.RWMutex
		defs    map[api.Name]*api.Workflow
		runs    map[api.Name]*run
		started bool
	}

	// Handle awaits the result of an asynchronously launched run
	Handle struct {
		name api.Name
		r    *run
	}
)

const finalizeTimeout = 10 * time.Second

var (
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrRunActive        = errors.New("workflow run already active")
	ErrRunNotActive     = errors.New("workflow run not active")
	ErrAlreadyTerminal  = errors.New("workflow run already terminal")
	ErrNotStarted       = errors.New("engine not started")
	ErrAlreadyStarted   = errors.New("engine already started")
	ErrStepTimeout      = errors.New("step timed out")
)

// New creates a workflow engine. The registry supplies tool-mode handlers;
// script and nested-task executors are constructed internally
func New(
	cfg *config.Config, tools *executor.Registry, hub *events.Hub,
) *Engine {
	return &Engine{
		cfg:   cfg,
		tools: tools,
		shell: executor.NewShellRunner(""),
		lua:   executor.NewLuaRunner(),
		hub:   hub,
		pool:  newPool(cfg.MaxConcurrentSteps),
		defs:  map[api.Name]*api.Workflow{},
		runs:  map[api.Name]*run{},
	}
}

// WithHistory attaches a terminal-result store. Recording is best-effort
func (e *Engine) WithHistory(rec Recorder) *Engine {
	e.history = rec
	return e
}

// WithArchiver attaches a result archiver. Archiving is best-effort
func (e *Engine) WithArchiver(a Archiver) *Engine {
	e.archive = a
	return e
}

// WithNestedRunner attaches the executor used for task-mode steps
func (e *Engine) WithNestedRunner(ex executor.Executor) *Engine {
	e.nested = ex
	return e
}

// Start launches the step worker pool
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return ErrAlreadyStarted
	}
	e.started = true
	e.pool.start()
	return nil
}

// Stop refuses new step dispatch and waits for in-flight steps to finish
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	e.mu.Unlock()
	e.pool.stop()
}

// Register stores a workflow definition, overwriting any prior definition
// under the same name and discarding its terminal run state. Registration
// is refused while a run for the name is still active
func (e *Engine) Register(wf *api.Workflow) error {
	if err := wf.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if r, ok := e.runs[wf.Name]; ok {
		r.mu.Lock()
		active := !r.status.Terminal()
		r.mu.Unlock()
		if active {
			return fmt.Errorf("%w: %s", ErrRunActive, wf.Name)
		}
		delete(e.runs, wf.Name)
	}
	e.defs[wf.Name] = wf
	return nil
}

// Definition returns the registered definition for a name
func (e *Engine) Definition(name api.Name) (*api.Workflow, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	wf, ok := e.defs[name]
	return wf, ok
}

// Execute runs a workflow to completion, blocking until the run terminates
// or the context expires. The run itself continues if the context expires
// first; the result remains queryable
func (e *Engine) Execute(
	ctx context.Context, name api.Name, initParams api.Args,
) (*api.WorkflowResult, error) {
	h, err := e.ExecuteAsync(name, initParams)
	if err != nil {
		return nil, err
	}
	return h.Wait(ctx)
}

// ExecuteAsync launches a workflow run and returns a handle to await it.
// One run per name may be active at a time; a finished run is replaced
func (e *Engine) ExecuteAsync(
	name api.Name, initParams api.Args,
) (*Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return nil, ErrNotStarted
	}
	def, ok := e.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, name)
	}
	if prev, ok := e.runs[name]; ok {
		prev.mu.Lock()
		active := !prev.status.Terminal()
		prev.mu.Unlock()
		if active {
			return nil, fmt.Errorf("%w: %s", ErrRunActive, name)
		}
	}

	r := newRun(def, initParams)
	e.runs[name] = r
	go e.runLoop(name, r)

	return &Handle{name: name, r: r}, nil
}

// Pause suspends new step dispatch for an active run. Steps already
// executing continue to completion
func (e *Engine) Pause(name api.Name) error {
	return e.withRun(name, func(r *run) error {
		if r.status.Terminal() {
			return fmt.Errorf("%w: %s", ErrAlreadyTerminal, name)
		}
		if !r.transitionLocked(api.RunPaused) {
			return fmt.Errorf("%w: %s is %s", ErrRunNotActive, name, r.status)
		}
		return nil
	})
}

// Resume continues a paused run from its existing completion set
func (e *Engine) Resume(name api.Name) error {
	return e.withRun(name, func(r *run) error {
		if r.status.Terminal() {
			return fmt.Errorf("%w: %s", ErrAlreadyTerminal, name)
		}
		if !r.transitionLocked(api.RunRunning) {
			return fmt.Errorf("%w: %s is %s", ErrRunNotActive, name, r.status)
		}
		return nil
	})
}

// Abort terminates a run: in-flight steps finish, nothing new starts, and
// every not-yet-completed step is marked skipped in the result
func (e *Engine) Abort(name api.Name) error {
	return e.withRun(name, func(r *run) error {
		if r.status.Terminal() {
			return fmt.Errorf("%w: %s", ErrAlreadyTerminal, name)
		}
		if !r.transitionLocked(api.RunAborted) {
			return fmt.Errorf("%w: %s is %s", ErrRunNotActive, name, r.status)
		}
		return nil
	})
}

// GetState returns a point-in-time snapshot of the named workflow's run. A
// registered workflow that has never run reports Created
func (e *Engine) GetState(name api.Name) (*api.WorkflowState, error) {
	e.mu.RLock()
	_, defined := e.defs[name]
	r, hasRun := e.runs[name]
	e.mu.RUnlock()

	if !defined {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, name)
	}
	if !hasRun {
		return &api.WorkflowState{
			Name:    name,
			Status:  api.RunCreated,
			Context: api.Args{},
		}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(name), nil
}

// Result returns the terminal result of the most recent run, if any
func (e *Engine) Result(name api.Name) (*api.WorkflowResult, bool) {
	e.mu.RLock()
	r, ok := e.runs[name]
	e.mu.RUnlock()
	if !ok {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result == nil {
		return nil, false
	}
	return r.result, true
}

// Names returns the registered workflow names
func (e *Engine) Names() []api.Name {
	e.mu.RLock()
	defer e.mu.RUnlock()

	res := make([]api.Name, 0, len(e.defs))
	for name := range e.defs {
		res = append(res, name)
	}
	return res
}

// Wait blocks until the run terminates or the context expires
func (h *Handle) Wait(ctx context.Context) (*api.WorkflowResult, error) {
	select {
	case <-h.r.finished:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	return h.r.result, nil
}

func (e *Engine) withRun(name api.Name, fn func(*run) error) error {
	e.mu.RLock()
	_, defined := e.defs[name]
	r, hasRun := e.runs[name]
	e.mu.RUnlock()

	if !defined {
		return fmt.Errorf("%w: %s", ErrWorkflowNotFound, name)
	}
	if !hasRun {
		return fmt.Errorf("%w: %s has no run", ErrRunNotActive, name)
	}

	r.mu.Lock()
	prev := r.status
	err := fn(r)
	next := r.status
	r.mu.Unlock()

	if err == nil && prev != next {
		e.publishRunState(name, next, "")
	}
	return err
}

func (e *Engine) publishRunState(
	name api.Name, status api.RunState, errMsg string,
) {
	if e.hub == nil {
		return
	}
	e.hub.Publish(&api.Event{
		Kind:     api.EventRunState,
		Workflow: name,
		Status:   string(status),
		Error:    errMsg,
	})
}

// finalize persists and announces a terminal result outside the run lock
func (e *Engine) finalize(name api.Name, res *api.WorkflowResult) {
	e.publishRunState(name, res.Status, res.Error)

	slog.Info("Workflow run finished",
		log.Workflow(name),
		log.Status(res.Status),
		slog.Int("succeeded", res.Succeeded),
		slog.Int("failed", res.Failed),
		slog.Int("skipped", res.Skipped))

	ctx, cancel := context.WithTimeout(
		context.Background(), finalizeTimeout,
	)
	defer cancel()

	if e.history != nil {
		if err := e.history.RecordResult(ctx, res); err != nil {
			slog.Error("Failed to record workflow result",
				log.Workflow(name),
				log.Error(err))
		}
	}
	if e.archive != nil {
		if err := e.archive.ArchiveResult(ctx, res); err != nil {
			slog.Error("Failed to archive workflow result",
				log.Workflow(name),
				log.Error(err))
		}
	}
}
