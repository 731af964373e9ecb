package api

import "time"

type (
	// EventKind classifies orchestrator events on the event stream
	EventKind string

	// Event is one orchestrator event delivered to stream subscribers
	Event struct {
		At       time.Time `json:"at"`
		Kind     EventKind `json:"kind"`
		TaskID   TaskID    `json:"task_id,omitempty"`
		Workflow Name      `json:"workflow,omitempty"`
		StepID   StepID    `json:"step_id,omitempty"`
		Status   string    `json:"status,omitempty"`
		Error    string    `json:"error,omitempty"`
	}
)

const (
	EventTaskStatus   EventKind = "task-status"
	EventStepStarted  EventKind = "step-started"
	EventStepFinished EventKind = "step-finished"
	EventRunState     EventKind = "run-state"
)
