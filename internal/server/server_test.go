package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderealworks/meridian/internal/config"
	"github.com/siderealworks/meridian/internal/events"
	"github.com/siderealworks/meridian/internal/executor"
	"github.com/siderealworks/meridian/internal/server"
	"github.com/siderealworks/meridian/internal/task"
	"github.com/siderealworks/meridian/internal/workflow"
	"github.com/siderealworks/meridian/pkg/api"
)

const testTimeout = 10 * time.Second

type testServer struct {
	router *gin.Engine
	tasks  *task.Manager
	engine *workflow.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.NewDefaultConfig()
	cfg.PollInterval = 5 * time.Millisecond

	hub := events.NewHub()
	tools := executor.NewRegistry()
	require.NoError(t, executor.RegisterBuiltins(tools))

	tasks := task.NewManager(hub)
	engine := workflow.New(cfg, tools, hub)
	require.NoError(t, engine.Start())
	t.Cleanup(engine.Stop)

	return &testServer{
		router: server.NewServer(tasks, engine, tools, hub).SetupRoutes(),
		tasks:  tasks,
		engine: engine,
	}
}

func (ts *testServer) do(
	t *testing.T, method, path, body string,
) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]any](t, w)
	assert.Equal(t, "ok", body["status"])
}

func TestSubmitAndGetTask(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/tasks",
		`{"type": "echo", "params": {"target": "m31"}}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	resp := decode[api.TaskSubmittedResponse](t, w)
	require.NotEmpty(t, resp.TaskID)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	_, err := ts.tasks.WaitTerminal(ctx, resp.TaskID)
	require.NoError(t, err)

	w = ts.do(t, http.MethodGet, "/tasks/"+string(resp.TaskID), "")
	assert.Equal(t, http.StatusOK, w.Code)

	rec := decode[api.TaskRecord](t, w)
	assert.Equal(t, api.TaskCompleted, rec.Status)
	assert.Equal(t, "m31", rec.Result.GetString("target", ""))
}

func TestSubmitTaskValidation(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/tasks", `{"params": {}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/tasks", `{"type": "unregistered"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPost, "/tasks", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetUnknownTask(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/tasks/no-such-id", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListActiveTasks(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/tasks",
		`{"type": "sleep", "params": {"duration_ms": 500}}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	resp := decode[api.TaskSubmittedResponse](t, w)

	w = ts.do(t, http.MethodGet, "/tasks", "")
	assert.Equal(t, http.StatusOK, w.Code)

	list := decode[api.TasksListResponse](t, w)
	assert.Equal(t, 1, list.Count)

	// cancel it so the run does not linger past the test
	w = ts.do(t, http.MethodDelete, "/tasks/"+string(resp.TaskID), "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCancelTerminalTaskConflicts(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/tasks", `{"type": "echo"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	resp := decode[api.TaskSubmittedResponse](t, w)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	_, err := ts.tasks.WaitTerminal(ctx, resp.TaskID)
	require.NoError(t, err)

	w = ts.do(t, http.MethodDelete, "/tasks/"+string(resp.TaskID), "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

const workflowJSON = `{
	"name": "Nightly Imaging",
	"steps": [
		{"id": "capture", "tool": "echo", "params": {"frames": 4}},
		{"id": "annotate", "tool": "echo", "depends_on": ["capture"]}
	]
}`

func TestRegisterAndExecuteWorkflow(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/workflows", workflowJSON)
	require.Equal(t, http.StatusCreated, w.Code)

	// names are sanitized on registration
	w = ts.do(t, http.MethodGet, "/workflows", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "nightly-imaging")

	w = ts.do(t, http.MethodPost, "/workflows/nightly-imaging/execute",
		`{"params": {"target": "m31"}}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool {
		res, ok := ts.engine.Result("nightly-imaging")
		return ok && res.Success
	}, testTimeout, 10*time.Millisecond)

	w = ts.do(t, http.MethodGet, "/workflows/nightly-imaging/result", "")
	assert.Equal(t, http.StatusOK, w.Code)

	res := decode[api.WorkflowResult](t, w)
	assert.Equal(t, api.RunCompleted, res.Status)
	assert.Equal(t, 2, res.Succeeded)
}

func TestWorkflowStateEndpoint(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/workflows", workflowJSON)
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodGet, "/workflows/nightly-imaging", "")
	assert.Equal(t, http.StatusOK, w.Code)

	state := decode[api.WorkflowState](t, w)
	assert.Equal(t, api.RunCreated, state.Status)

	w = ts.do(t, http.MethodGet, "/workflows/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWorkflowRegistrationRejections(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/workflows", `{"name": "!!!"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/workflows",
		`{"name": "empty", "steps": []}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWorkflowRunControlConflicts(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/workflows", workflowJSON)
	require.Equal(t, http.StatusCreated, w.Code)

	// no active run yet
	w = ts.do(t, http.MethodPost, "/workflows/nightly-imaging/pause", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodPost, "/workflows/unknown/abort", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/workflows/nightly-imaging/result", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExecuteUnknownWorkflow(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/workflows/missing/execute", `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodOptions, "/tasks", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthReportsCounts(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/workflows", workflowJSON)
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodGet, "/health", "")
	body := decode[map[string]any](t, w)
	assert.Equal(t, float64(1), body["workflows"])
}

func TestExecuteWithEmptyBody(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/workflows", fmt.Sprintf(`{
		"name": "quick",
		"steps": [{"id": "only", "tool": %q}]
	}`, "echo"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodPost, "/workflows/quick/execute", `{}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
}
