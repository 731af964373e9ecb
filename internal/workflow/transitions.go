package workflow

import (
	"github.com/siderealworks/meridian/internal/util"
	"github.com/siderealworks/meridian/pkg/api"
)

// runTransitions validates run state changes. Completed, Failed, and
// Aborted are absorbing
var runTransitions = util.Transitions[api.RunState]{
	api.RunCreated: util.SetOf(
		api.RunRunning,
		api.RunAborted,
	),
	api.RunRunning: util.SetOf(
		api.RunPaused,
		api.RunCompleted,
		api.RunFailed,
		api.RunAborted,
	),
	api.RunPaused: util.SetOf(
		api.RunRunning,
		api.RunFailed,
		api.RunAborted,
	),
	api.RunCompleted: {},
	api.RunFailed:    {},
	api.RunAborted:   {},
}
