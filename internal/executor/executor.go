// Package executor provides the step executor collaborators the workflow
// engine dispatches to: a registry of named in-process tool handlers, a
// sandboxed Lua script runner, a shell script runner, and a nested-task
// runner
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/siderealworks/meridian/pkg/api"
)

type (
	// Result is the uniform outcome of one step executor invocation
	Result struct {
		Output  api.Args `json:"output,omitempty"`
		Error   string   `json:"error,omitempty"`
		Success bool     `json:"success"`
	}

	// Executor runs one workflow step's effect. The shared workflow context
	// is read-only from the executor's point of view; results flow back
	// through the returned Result
	Executor interface {
		Execute(
			ctx context.Context, params, shared api.Args,
		) (*Result, error)
	}

	// Func adapts a plain function to the Executor interface
	Func func(ctx context.Context, params, shared api.Args) (*Result, error)

	// Registry holds named in-process tool handlers
	Registry struct {
		mu    sync.RWMutex
		tools map[string]Executor
	}
)

var (
	ErrToolNameEmpty     = errors.New("tool name empty")
	ErrToolNil           = errors.New("tool executor is nil")
	ErrToolAlreadyExists = errors.New("tool already registered")
	ErrToolNotFound      = errors.New("tool not found")
)

// Execute implements Executor
func (f Func) Execute(
	ctx context.Context, params, shared api.Args,
) (*Result, error) {
	return f(ctx, params, shared)
}

// Succeed builds a successful result carrying the given output
func Succeed(output api.Args) *Result {
	return &Result{Output: output, Success: true}
}

// Fail builds a failed result carrying the given message
func Fail(msg string) *Result {
	return &Result{Error: msg}
}

// NewRegistry creates an empty tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools: map[string]Executor{},
	}
}

// Register adds a named tool handler. Re-registering an existing name is an
// error; tools are wired once at bootstrap
func (r *Registry) Register(name string, ex Executor) error {
	if name == "" {
		return ErrToolNameEmpty
	}
	if ex == nil {
		return fmt.Errorf("%w: %s", ErrToolNil, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; ok {
		return fmt.Errorf("%w: %s", ErrToolAlreadyExists, name)
	}
	r.tools[name] = ex
	return nil
}

// Lookup returns the tool registered under name
func (r *Registry) Lookup(name string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ex, ok := r.tools[name]
	return ex, ok
}

// Names returns the registered tool names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]string, 0, len(r.tools))
	for name := range r.tools {
		res = append(res, name)
	}
	return res
}
