package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/siderealworks/meridian/internal/events"
	"github.com/siderealworks/meridian/pkg/api"
	"github.com/siderealworks/meridian/pkg/log"
)

type (
	// Executor performs a task's actual work. It must observe the token at
	// its checkpoints and return ErrCancelled when it stops on request
	Executor func(
		ctx context.Context, tok *Token, params api.Args,
	) (api.Args, error)

	// Recorder persists terminal task records. Implementations must be safe
	// for concurrent use
	Recorder interface {
		RecordTask(context.Context, *api.TaskRecord) error
	}

	// Manager owns the task registry. Submission never blocks on the work
	// itself; each task runs on its own goroutine
	Manager struct {
		hub     *events.Hub
		history Recorder
		tasks   map[api.TaskID]*entry
		mu      sync.RWMutex
		wg      sync.WaitGroup
	}

	entry struct {
		record *api.TaskRecord
		token  *Token
		done   chan struct{}
	}
)

const historyTimeout = 5 * time.Second

var (
	ErrTaskTypeEmpty = errors.New("task type empty")
	ErrNilExecutor   = errors.New("task executor is nil")
	ErrTaskNotFound  = errors.New("task not found")

	// ErrCancelled is returned by executors that stopped in response to a
	// cancellation request
	ErrCancelled = errors.New("task cancelled")
)

// NewManager creates a task manager publishing status changes to the hub
func NewManager(hub *events.Hub) *Manager {
	return &Manager{
		hub:   hub,
		tasks: map[api.TaskID]*entry{},
	}
}

// WithHistory attaches a terminal-record store. Recording is best-effort;
// failures are logged, never surfaced to the task
func (m *Manager) WithHistory(rec Recorder) *Manager {
	m.history = rec
	return m
}

// Submit registers a new pending task and dispatches it onto a background
// goroutine, returning the task's unique ID without waiting on the work
func (m *Manager) Submit(
	taskType string, params api.Args, fn Executor,
) (api.TaskID, error) {
	if taskType == "" {
		return "", ErrTaskTypeEmpty
	}
	if fn == nil {
		return "", fmt.Errorf("%w: %s", ErrNilExecutor, taskType)
	}

	e := &entry{
		record: &api.TaskRecord{
			ID:        api.NewTaskID(),
			Type:      taskType,
			Params:    params.Clone(),
			Status:    api.TaskPending,
			CreatedAt: time.Now(),
		},
		token: NewToken(),
		done:  make(chan struct{}),
	}

	m.mu.Lock()
	m.tasks[e.record.ID] = e
	m.mu.Unlock()

	m.publish(e.record)

	m.wg.Add(1)
	go m.dispatch(e, fn)

	return e.record.ID, nil
}

// Get returns a point-in-time snapshot of the task record
func (m *Manager) Get(id api.TaskID) (*api.TaskRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.tasks[id]
	if !ok {
		return nil, false
	}
	return e.record.Clone(), true
}

// ListActive returns snapshots of all tasks currently pending or running
func (m *Manager) ListActive() []*api.TaskRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	res := make([]*api.TaskRecord, 0, len(m.tasks))
	for _, e := range m.tasks {
		if e.record.Status.Active() {
			res = append(res, e.record.Clone())
		}
	}
	return res
}

// Cancel requests cooperative cancellation of a non-terminal task. Returns
// false for unknown IDs and for tasks that have already finished; the
// running executor must observe the token and stop itself
func (m *Manager) Cancel(id api.TaskID) bool {
	m.mu.Lock()
	e, ok := m.tasks[id]
	if !ok || e.record.Status.Terminal() {
		m.mu.Unlock()
		return false
	}
	e.record.CancelRequested = true
	m.mu.Unlock()

	e.token.Cancel()
	return true
}

// WaitTerminal blocks until the task reaches a terminal state or the context
// expires, returning the terminal snapshot
func (m *Manager) WaitTerminal(
	ctx context.Context, id api.TaskID,
) (*api.TaskRecord, error) {
	m.mu.RLock()
	e, ok := m.tasks[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return e.record.Clone(), nil
}

// Shutdown waits for all dispatched tasks to finish or the context to expire
func (m *Manager) Shutdown(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatch is the boundary between the manager and executor code. Panics
// are captured here and recorded as failures so a faulting executor can
// never take the manager down or leave a task stuck in Running
func (m *Manager) dispatch(e *entry, fn Executor) {
	defer m.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			m.finish(e, nil, fmt.Errorf("executor panic: %v", r))
		}
	}()

	m.begin(e)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-e.token.Done():
			cancel()
		case <-e.done:
		}
	}()

	result, err := fn(ctx, e.token, e.record.Params)
	m.finish(e, result, err)
}

func (m *Manager) begin(e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !taskTransitions.CanTransition(e.record.Status, api.TaskRunning) {
		return
	}
	e.record.Status = api.TaskRunning
	e.record.StartedAt = time.Now()
	m.publish(e.record)
}

// finish records exactly one terminal state for the task. A second call for
// the same task is rejected by the transition table
func (m *Manager) finish(e *entry, result api.Args, err error) {
	status := api.TaskCompleted
	switch {
	case err == nil:
	case errors.Is(err, ErrCancelled),
		e.token.Cancelled() && errors.Is(err, context.Canceled):
		status = api.TaskCancelled
	default:
		status = api.TaskFailed
	}

	m.mu.Lock()
	if !taskTransitions.CanTransition(e.record.Status, status) {
		m.mu.Unlock()
		return
	}
	e.record.Status = status
	e.record.CompletedAt = time.Now()
	switch status {
	case api.TaskCompleted:
		e.record.Result = result.Clone()
	case api.TaskFailed:
		e.record.Error = err.Error()
	case api.TaskCancelled:
		e.record.Error = ErrCancelled.Error()
	}
	rec := e.record.Clone()
	m.mu.Unlock()

	close(e.done)
	m.publish(rec)
	m.record(rec)
}

func (m *Manager) publish(rec *api.TaskRecord) {
	if m.hub == nil {
		return
	}
	m.hub.Publish(&api.Event{
		Kind:   api.EventTaskStatus,
		TaskID: rec.ID,
		Status: string(rec.Status),
		Error:  rec.Error,
	})
}

func (m *Manager) record(rec *api.TaskRecord) {
	if m.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	if err := m.history.RecordTask(ctx, rec); err != nil {
		slog.Error("Failed to record terminal task",
			log.TaskID(rec.ID),
			log.Error(err))
	}
}
