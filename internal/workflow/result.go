package workflow

import (
	"time"

	"github.com/siderealworks/meridian/pkg/api"
)

// buildResultLocked assembles the run's terminal WorkflowResult. Steps that
// never received an outcome (run aborted or failed before they could start)
// are reported as skipped
func buildResultLocked(name api.Name, r *run) *api.WorkflowResult {
	completedAt := time.Now()
	res := &api.WorkflowResult{
		Name:        name,
		Status:      r.status,
		Success:     r.status == api.RunCompleted,
		Error:       r.errMsg,
		Steps:       make(map[api.StepID]*api.StepOutcome, len(r.def.Steps)),
		StartedAt:   r.startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(r.startedAt).Milliseconds(),
	}

	for _, s := range r.def.Steps {
		outcome, ok := r.outcomes[s.ID]
		if !ok {
			outcome = skippedOutcome(s.ID, "never started")
		}
		res.Steps[s.ID] = outcome

		switch {
		case outcome.Success:
			res.Succeeded++
		case outcome.Skipped:
			res.Skipped++
		default:
			res.Failed++
		}
	}
	return res
}

func skippedOutcome(id api.StepID, reason string) *api.StepOutcome {
	return &api.StepOutcome{
		ID:      id,
		Skipped: true,
		Error:   reason,
	}
}
