package workflow

import (
	"sync"
	"time"

	"github.com/siderealworks/meridian/internal/util"
	"github.com/siderealworks/meridian/pkg/api"
)

type (
	// run holds the mutable state of one workflow execution. All fields are
	// guarded by mu; cond is broadcast on every step completion and run
	// state change
	run struct {
		def  *api.Workflow
		cond *sync.Cond

		status     api.RunState
		completed  []api.StepID
		succeeded  util.Set[api.StepID]
		terminal   util.Set[api.StepID]
		dispatched util.Set[api.StepID]
		optedOut   util.Set[api.StepID]
		forceDone  util.Set[api.StepID]
		forceReady util.Set[api.StepID]
		warned     util.Set[api.StepID]
		outcomes   map[api.StepID]*api.StepOutcome
		shared     api.Args
		inflight   int
		errMsg     string

		startedAt   time.Time
		completedAt time.Time
		result      *api.WorkflowResult
		finished    chan struct{}
		mu          sync.Mutex
	}

	stepReadiness uint8
)

const (
	// stepWaiting means at least one dependency is still pending
	stepWaiting stepReadiness = iota

	// stepReady means every dependency completed successfully (or is
	// overridden) and the step may be dispatched
	stepReady

	// stepUnreachable means a dependency finished without success and the
	// step can never run; it is skipped
	stepUnreachable
)

func newRun(def *api.Workflow, initParams api.Args) *run {
	r := &run{
		def:        def,
		status:     api.RunCreated,
		succeeded:  util.Set[api.StepID]{},
		terminal:   util.Set[api.StepID]{},
		dispatched: util.Set[api.StepID]{},
		optedOut:   util.Set[api.StepID]{},
		forceDone:  util.Set[api.StepID]{},
		forceReady: util.Set[api.StepID]{},
		warned:     util.Set[api.StepID]{},
		outcomes:   map[api.StepID]*api.StepOutcome{},
		shared:     initParams.Clone(),
		finished:   make(chan struct{}),
	}
	if r.shared == nil {
		r.shared = api.Args{}
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// transitionLocked applies a run state change if the transition table
// permits it, broadcasting to wake the readiness loop
func (r *run) transitionLocked(to api.RunState) bool {
	if !runTransitions.CanTransition(r.status, to) {
		return false
	}
	r.status = to
	r.cond.Broadcast()
	return true
}

// waitLocked suspends the caller until the condition variable is signalled
// or the bounded fallback elapses. The fallback guards against missed
// wakeups; correctness never depends on it
func (r *run) waitLocked(fallback time.Duration) {
	timer := time.AfterFunc(fallback, r.cond.Broadcast)
	r.cond.Wait()
	timer.Stop()
}

// readinessLocked classifies a not-yet-dispatched step against the current
// completion sets. A dependency naming no step in the definition is
// reported via the ghost return; such a step waits forever
func (r *run) readinessLocked(s *api.Step) (stepReadiness, []api.StepID) {
	if r.forceReady.Contains(s.ID) {
		return stepReady, nil
	}

	var ghosts []api.StepID
	for _, dep := range s.DependsOn {
		if r.depSatisfiedLocked(dep) {
			continue
		}
		if r.terminal.Contains(dep) {
			return stepUnreachable, nil
		}
		if r.def.Step(dep) == nil {
			ghosts = append(ghosts, dep)
			continue
		}
		return stepWaiting, nil
	}
	if len(ghosts) > 0 {
		return stepWaiting, ghosts
	}
	return stepReady, nil
}

// depSatisfiedLocked reports whether a single dependency counts as met: it
// completed successfully, or it opted out via its condition, or it was
// marked satisfied by another step's on_success routing
func (r *run) depSatisfiedLocked(dep api.StepID) bool {
	return r.succeeded.Contains(dep) || r.optedOut.Contains(dep)
}

// recordOutcomeLocked stores a step's terminal outcome exactly once,
// updates the shared context and completion sets, and applies branching
// overrides. Callers must broadcast afterward
func (r *run) recordOutcomeLocked(
	s *api.Step, outcome *api.StepOutcome,
) bool {
	if r.terminal.Contains(s.ID) {
		return false
	}
	r.terminal.Add(s.ID)
	r.outcomes[s.ID] = outcome
	r.completed = append(r.completed, s.ID)

	switch {
	case outcome.Success:
		r.succeeded.Add(s.ID)
		if len(outcome.Output) > 0 {
			r.shared = r.shared.Set(string(s.ID), map[string]any(outcome.Output))
		}
		if s.OnSuccess != "" {
			r.forceDone.Add(s.OnSuccess)
		}
	case outcome.Skipped:
		// cascade skips do not satisfy dependents; condition opt-outs are
		// recorded in optedOut by the caller
	default:
		if s.OnFailure != "" {
			r.forceReady.Add(s.OnFailure)
		}
	}
	return true
}

// snapshotLocked builds a point-in-time WorkflowState
func (r *run) snapshotLocked(name api.Name) *api.WorkflowState {
	completed := make([]api.StepID, len(r.completed))
	copy(completed, r.completed)

	outcomes := make(map[api.StepID]*api.StepOutcome, len(r.outcomes))
	for id, o := range r.outcomes {
		c := *o
		outcomes[id] = &c
	}

	return &api.WorkflowState{
		Name:        name,
		Status:      r.status,
		Completed:   completed,
		Context:     r.shared.Clone(),
		Outcomes:    outcomes,
		Error:       r.errMsg,
		StartedAt:   r.startedAt,
		CompletedAt: r.completedAt,
	}
}
