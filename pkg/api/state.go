package api

import "time"

type (
	// RunState represents the workflow-level lifecycle, distinct from the
	// status of any individual task
	RunState string

	// StepOutcome is the per-step result of one workflow run
	StepOutcome struct {
		StartedAt   time.Time `json:"started_at,omitempty"`
		CompletedAt time.Time `json:"completed_at,omitempty"`
		Output      Args      `json:"output,omitempty"`
		ID          StepID    `json:"id"`
		Error       string    `json:"error,omitempty"`
		Duration    int64     `json:"duration_ms,omitempty"`
		Retries     int       `json:"retries,omitempty"`
		Success     bool      `json:"success"`
		Skipped     bool      `json:"skipped,omitempty"`
	}

	// WorkflowState is a point-in-time snapshot of one workflow run. The
	// Completed slice grows monotonically in completion order; Context
	// accumulates each step's last output under the step's ID
	WorkflowState struct {
		StartedAt   time.Time               `json:"started_at,omitempty"`
		CompletedAt time.Time               `json:"completed_at,omitempty"`
		Context     Args                    `json:"context,omitempty"`
		Outcomes    map[StepID]*StepOutcome `json:"outcomes,omitempty"`
		Name        Name                    `json:"name"`
		Status      RunState                `json:"status"`
		Completed   []StepID                `json:"completed,omitempty"`
		Error       string                  `json:"error,omitempty"`
	}

	// WorkflowResult is produced exactly once, at workflow termination
	WorkflowResult struct {
		StartedAt   time.Time               `json:"started_at"`
		CompletedAt time.Time               `json:"completed_at"`
		Steps       map[StepID]*StepOutcome `json:"steps"`
		Name        Name                    `json:"name"`
		Status      RunState                `json:"status"`
		Error       string                  `json:"error,omitempty"`
		Duration    int64                   `json:"duration_ms"`
		Succeeded   int                     `json:"succeeded"`
		Failed      int                     `json:"failed"`
		Skipped     int                     `json:"skipped"`
		Success     bool                    `json:"success"`
	}
)

const (
	RunCreated   RunState = "created"
	RunRunning   RunState = "running"
	RunPaused    RunState = "paused"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
	RunAborted   RunState = "aborted"
)

// Terminal returns true once the run state is absorbing
func (s RunState) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunAborted:
		return true
	default:
		return false
	}
}
