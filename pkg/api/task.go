package api

import "time"

type (
	// TaskStatus represents the lifecycle state of a submitted task
	TaskStatus string

	// TaskRecord captures one unit of work's identity, parameters, status,
	// result, and cancellation flag. Pure state; behavior lives in the task
	// manager
	TaskRecord struct {
		CreatedAt       time.Time  `json:"created_at"`
		StartedAt       time.Time  `json:"started_at,omitempty"`
		CompletedAt     time.Time  `json:"completed_at,omitempty"`
		Params          Args       `json:"params,omitempty"`
		Result          Args       `json:"result,omitempty"`
		ID              TaskID     `json:"id"`
		Type            string     `json:"type"`
		Status          TaskStatus `json:"status"`
		Error           string     `json:"error,omitempty"`
		CancelRequested bool       `json:"cancel_requested,omitempty"`
	}
)

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// Terminal returns true once the status is absorbing
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// Active returns true while the task is pending or running
func (s TaskStatus) Active() bool {
	return s == TaskPending || s == TaskRunning
}

// Clone returns a point-in-time copy of the record safe to hand to callers
func (r *TaskRecord) Clone() *TaskRecord {
	res := *r
	res.Params = r.Params.Clone()
	res.Result = r.Result.Clone()
	return &res
}
