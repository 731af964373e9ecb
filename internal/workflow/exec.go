package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/siderealworks/meridian/internal/executor"
	"github.com/siderealworks/meridian/pkg/api"
	"github.com/siderealworks/meridian/pkg/log"
)

var (
	ErrNoNestedRunner = errors.New("no nested task runner configured")
	ErrNoResult       = errors.New("step executor returned no result")
)

// runLoop drives one workflow run: it repeatedly dispatches ready steps,
// suspends while nothing can progress, and terminates the run once every
// step has an outcome or the run state goes terminal
func (e *Engine) runLoop(name api.Name, r *run) {
	r.mu.Lock()
	r.startedAt = time.Now()
	// an Abort can land before the loop starts; only announce Running
	// when the run actually entered it
	started := r.transitionLocked(api.RunRunning)
	r.mu.Unlock()
	if started {
		e.publishRunState(name, api.RunRunning, "")
	}

	r.mu.Lock()
	for {
		if r.status == api.RunPaused {
			r.waitLocked(e.cfg.PollInterval)
			continue
		}
		if r.status.Terminal() {
			if r.inflight > 0 {
				r.waitLocked(e.cfg.PollInterval)
				continue
			}
			break
		}

		progressed := e.advanceLocked(name, r)
		if r.terminal.Len() == len(r.def.Steps) && r.inflight == 0 {
			r.transitionLocked(api.RunCompleted)
			break
		}
		if !progressed {
			r.waitLocked(e.cfg.PollInterval)
		}
	}

	res := buildResultLocked(name, r)
	r.result = res
	r.completedAt = res.CompletedAt
	close(r.finished)
	r.mu.Unlock()

	e.finalize(name, res)
}

// advanceLocked makes one dispatch pass over the definition, reporting
// whether anything changed. Steps whose dependencies can never complete are
// skipped here; steps whose condition evaluates false are marked
// completed-as-skipped without invoking their executor
func (e *Engine) advanceLocked(name api.Name, r *run) bool {
	progressed := false
	for _, s := range r.def.Steps {
		if r.terminal.Contains(s.ID) || r.dispatched.Contains(s.ID) {
			continue
		}

		if r.forceDone.Contains(s.ID) {
			r.optedOut.Add(s.ID)
			r.recordOutcomeLocked(s, skippedOutcome(
				s.ID, "satisfied by on_success routing",
			))
			progressed = true
			continue
		}

		readiness, ghosts := r.readinessLocked(s)
		switch readiness {
		case stepUnreachable:
			r.recordOutcomeLocked(s, skippedOutcome(
				s.ID, "dependency did not complete successfully",
			))
			progressed = true

		case stepReady:
			if s.Condition != "" && !evalCondition(s.Condition, r.shared) {
				r.optedOut.Add(s.ID)
				r.recordOutcomeLocked(s, skippedOutcome(
					s.ID, "condition evaluated false",
				))
				progressed = true
				continue
			}

			r.dispatched.Add(s.ID)
			r.inflight++
			step := s
			if !e.pool.submit(func() { e.runStep(name, r, step) }) {
				r.inflight--
				r.errMsg = "engine stopped before step could be dispatched"
				r.transitionLocked(api.RunFailed)
				return true
			}
			progressed = true

		case stepWaiting:
			if len(ghosts) > 0 && !r.warned.Contains(s.ID) {
				r.warned.Add(s.ID)
				slog.Warn("Step depends on IDs absent from the definition; "+
					"it will never become ready",
					log.Workflow(name),
					log.StepID(s.ID),
					slog.Any("missing", ghosts))
			}
		}
	}
	return progressed
}

// runStep executes one dispatched step on a pool worker, retrying per the
// step's budget, and records its outcome exactly once
func (e *Engine) runStep(name api.Name, r *run, s *api.Step) {
	if e.hub != nil {
		e.hub.Publish(&api.Event{
			Kind:     api.EventStepStarted,
			Workflow: name,
			StepID:   s.ID,
		})
	}

	started := time.Now()
	retries := 0
	var output api.Args
	var errMsg string
	for {
		output, errMsg = e.invokeStep(r, s)
		if errMsg == "" || retries >= s.MaxRetries {
			break
		}
		retries++
		if !r.sleepRetry(retryDelay(e.cfg.Retry, retries)) {
			errMsg = errMsg + "; run terminated during retry backoff"
			break
		}
	}

	completed := time.Now()
	outcome := &api.StepOutcome{
		ID:          s.ID,
		Success:     errMsg == "",
		Output:      output,
		Error:       errMsg,
		Retries:     retries,
		StartedAt:   started,
		CompletedAt: completed,
		Duration:    completed.Sub(started).Milliseconds(),
	}

	r.mu.Lock()
	r.inflight--
	r.recordOutcomeLocked(s, outcome)
	if !outcome.Success && !s.Optional && !r.status.Terminal() {
		r.errMsg = fmt.Sprintf("step %s failed: %s", s.ID, errMsg)
		r.transitionLocked(api.RunFailed)
	}
	r.cond.Broadcast()
	r.mu.Unlock()

	if e.hub != nil {
		e.hub.Publish(&api.Event{
			Kind:     api.EventStepFinished,
			Workflow: name,
			StepID:   s.ID,
			Status:   stepStatus(outcome),
			Error:    errMsg,
		})
	}
}

// invokeStep performs a single executor attempt under the step's deadline,
// returning the output and an empty message on success. A deadline expiry
// is reported exactly like an executor failure
func (e *Engine) invokeStep(r *run, s *api.Step) (api.Args, string) {
	ex, params, err := e.resolveExecutor(s)
	if err != nil {
		return nil, err.Error()
	}

	r.mu.Lock()
	shared := r.shared.Clone()
	r.mu.Unlock()

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = e.cfg.StepTimeout
	}
	ctx, cancel := context.WithTimeout(
		context.Background(), time.Duration(timeout)*time.Millisecond,
	)
	defer cancel()

	res, err := safeExecute(ctx, ex, params, shared)
	switch {
	case err != nil:
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Sprintf("%s after %dms", ErrStepTimeout, timeout)
		}
		return nil, err.Error()
	case !res.Success:
		msg := res.Error
		if msg == "" {
			msg = "step executor reported failure"
		}
		return res.Output, msg
	default:
		return res.Output, ""
	}
}

// safeExecute is the dispatch boundary to executor code: panics become
// errors so a faulting executor cannot destabilize the engine
func safeExecute(
	ctx context.Context, ex executor.Executor, params, shared api.Args,
) (res *executor.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res = nil
			err = fmt.Errorf("step executor panic: %v", rec)
		}
	}()

	res, err = ex.Execute(ctx, params, shared)
	if err == nil && res == nil {
		err = ErrNoResult
	}
	return res, err
}

// resolveExecutor maps a step's execution mode to the collaborator that
// runs it, layering mode-specific entries onto the step parameters
func (e *Engine) resolveExecutor(
	s *api.Step,
) (executor.Executor, api.Args, error) {
	params := s.Params.Clone()
	if params == nil {
		params = api.Args{}
	}

	switch s.ResolvedMode() {
	case api.ModeTool:
		ex, ok := e.tools.Lookup(s.Tool)
		if !ok {
			return nil, nil, fmt.Errorf(
				"%w: %s", executor.ErrToolNotFound, s.Tool,
			)
		}
		return ex, params, nil
	case api.ModeProcess:
		return e.shell, params.Set("script", s.Script), nil
	case api.ModeSandbox:
		return e.lua, params.Set("script", s.Script), nil
	case api.ModeTask:
		if e.nested == nil {
			return nil, nil, ErrNoNestedRunner
		}
		return e.nested, params.Set("tool", s.Tool), nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", api.ErrInvalidMode, s.Mode)
	}
}

// sleepRetry waits out a backoff delay, returning false if the run went
// terminal in the meantime so the step stops retrying
func (r *run) sleepRetry(d time.Duration) bool {
	deadline := time.Now().Add(d)

	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if r.status == api.RunAborted || r.status == api.RunFailed {
			return false
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		r.waitLocked(remaining)
	}
}

// retryDelay computes the delay before the given retry attempt (1-based)
func retryDelay(p api.RetryPolicy, attempt int) time.Duration {
	base := p.InitBackoff
	if base <= 0 {
		return 0
	}

	var ms int64
	switch p.BackoffType {
	case api.BackoffTypeFixed:
		ms = base
	case api.BackoffTypeLinear:
		ms = base * int64(attempt)
	default:
		shift := attempt - 1
		if shift > 32 {
			shift = 32
		}
		ms = base << shift
	}

	if p.MaxBackoff > 0 && ms > p.MaxBackoff {
		ms = p.MaxBackoff
	}
	return time.Duration(ms) * time.Millisecond
}

func stepStatus(o *api.StepOutcome) string {
	switch {
	case o.Success:
		return "completed"
	case o.Skipped:
		return "skipped"
	default:
		return "failed"
	}
}
