package api

type (
	// SubmitTaskRequest contains parameters for submitting a task
	SubmitTaskRequest struct {
		Params Args   `json:"params,omitempty"`
		Type   string `json:"type"`
	}

	// TaskSubmittedResponse is returned when a task submission succeeds
	TaskSubmittedResponse struct {
		TaskID TaskID `json:"task_id"`
	}

	// TasksListResponse contains the currently active tasks
	TasksListResponse struct {
		Tasks []*TaskRecord `json:"tasks"`
		Count int           `json:"count"`
	}

	// RegisterWorkflowRequest contains a workflow definition to register
	RegisterWorkflowRequest struct {
		Name  Name    `json:"name"`
		Steps []*Step `json:"steps"`
	}

	// ExecuteWorkflowRequest contains initial parameters for a run
	ExecuteWorkflowRequest struct {
		Params Args `json:"params,omitempty"`
	}

	// WorkflowStartedResponse is returned when a run is launched
	WorkflowStartedResponse struct {
		Name   Name     `json:"name"`
		Status RunState `json:"status"`
	}

	// MessageResponse contains a simple message string
	MessageResponse struct {
		Message string `json:"message"`
	}

	// ErrorResponse contains error details for failed requests
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status,omitempty"`
	}
)
