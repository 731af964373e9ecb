package task

import (
	"github.com/siderealworks/meridian/internal/util"
	"github.com/siderealworks/meridian/pkg/api"
)

// taskTransitions validates task status changes. All three terminal states
// are absorbing; a task can never regress out of one
var taskTransitions = util.Transitions[api.TaskStatus]{
	api.TaskPending: util.SetOf(
		api.TaskRunning,
		api.TaskCancelled,
		api.TaskFailed,
	),
	api.TaskRunning: util.SetOf(
		api.TaskCompleted,
		api.TaskFailed,
		api.TaskCancelled,
	),
	api.TaskCompleted: {},
	api.TaskFailed:    {},
	api.TaskCancelled: {},
}
