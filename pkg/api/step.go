package api

import (
	"errors"
	"fmt"
)

type (
	// ExecutionMode selects which step executor runs a workflow step
	ExecutionMode string

	// Step is one node of a workflow definition. Dependencies name steps
	// that must complete successfully before this step may start
	Step struct {
		Params     Args          `json:"params,omitempty"`
		ID         StepID        `json:"id"`
		DependsOn  []StepID      `json:"depends_on,omitempty"`
		Mode       ExecutionMode `json:"mode,omitempty"`
		Tool       string        `json:"tool,omitempty"`
		Script     string        `json:"script,omitempty"`
		Condition  string        `json:"condition,omitempty"`
		OnSuccess  StepID        `json:"on_success,omitempty"`
		OnFailure  StepID        `json:"on_failure,omitempty"`
		Timeout    int64         `json:"timeout,omitempty"`
		MaxRetries int           `json:"max_retries,omitempty"`
		Optional   bool          `json:"optional,omitempty"`
	}

	// Workflow is a named, ordered collection of steps with dependency
	// edges. Definitions are replaced wholesale by re-registration, never
	// mutated in place
	Workflow struct {
		Name  Name    `json:"name"`
		Steps []*Step `json:"steps"`
	}

	// RetryPolicy controls delay between step retry attempts
	RetryPolicy struct {
		BackoffType string `json:"backoff_type,omitempty"`
		InitBackoff int64  `json:"init_backoff_ms,omitempty"`
		MaxBackoff  int64  `json:"max_backoff_ms,omitempty"`
	}
)

const (
	// ModeTool dispatches the step to a registered in-process tool handler
	ModeTool ExecutionMode = "tool"

	// ModeProcess runs the step's script through the shell runner
	ModeProcess ExecutionMode = "process"

	// ModeSandbox runs the step's script in the sandboxed Lua environment
	ModeSandbox ExecutionMode = "sandbox"

	// ModeTask runs the step as a nested tracked task
	ModeTask ExecutionMode = "task"
)

const (
	BackoffTypeFixed       = "fixed"
	BackoffTypeLinear      = "linear"
	BackoffTypeExponential = "exponential"
)

// Millisecond-denominated duration constants for timeout fields
const (
	Second int64 = 1000
	Minute       = Second * 60
	Hour         = Minute * 60
)

var (
	ErrWorkflowNameEmpty = errors.New("workflow name empty")
	ErrWorkflowNoSteps   = errors.New("workflow has no steps")
	ErrStepIDEmpty       = errors.New("step ID empty")
	ErrDuplicateStepID   = errors.New("duplicate step ID")
	ErrStepToolEmpty     = errors.New("tool step requires a tool name")
	ErrStepScriptEmpty   = errors.New("script step requires a script")
	ErrInvalidMode       = errors.New("invalid execution mode")
	ErrNegativeTimeout   = errors.New("step timeout cannot be negative")
	ErrNegativeRetries   = errors.New("step max retries cannot be negative")
)

// Validate checks a workflow definition for well-formed steps. Dependency
// references are not resolved here; a reference to a step that never exists
// manifests as an indefinitely blocked run
func (w *Workflow) Validate() error {
	if w.Name == "" {
		return ErrWorkflowNameEmpty
	}
	if len(w.Steps) == 0 {
		return fmt.Errorf("%w: %s", ErrWorkflowNoSteps, w.Name)
	}
	seen := make(map[StepID]struct{}, len(w.Steps))
	for _, s := range w.Steps {
		if err := s.Validate(); err != nil {
			return err
		}
		if _, ok := seen[s.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateStepID, s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

// Step returns the step with the given ID, or nil when absent
func (w *Workflow) Step(id StepID) *Step {
	for _, s := range w.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Validate checks a single step for well-formed fields
func (s *Step) Validate() error {
	if s.ID == "" {
		return ErrStepIDEmpty
	}
	if s.Timeout < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeTimeout, s.ID)
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeRetries, s.ID)
	}
	switch s.ResolvedMode() {
	case ModeTool, ModeTask:
		if s.Tool == "" {
			return fmt.Errorf("%w: %s", ErrStepToolEmpty, s.ID)
		}
	case ModeProcess, ModeSandbox:
		if s.Script == "" {
			return fmt.Errorf("%w: %s", ErrStepScriptEmpty, s.ID)
		}
	default:
		return fmt.Errorf("%w: %q on %s", ErrInvalidMode, s.Mode, s.ID)
	}
	return nil
}

// ResolvedMode returns the step's execution mode, defaulting to ModeTool
func (s *Step) ResolvedMode() ExecutionMode {
	if s.Mode == "" {
		return ModeTool
	}
	return s.Mode
}
