package executor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderealworks/meridian/internal/executor"
	"github.com/siderealworks/meridian/pkg/api"
)

func runShell(
	t *testing.T, script string, params, shared api.Args,
) *executor.Result {
	t.Helper()
	r := executor.NewShellRunner("")
	if params == nil {
		params = api.Args{}
	}
	res, err := r.Execute(
		context.Background(), params.Set("script", script), shared,
	)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestShellCapturesStdout(t *testing.T) {
	res := runShell(t, `echo "frames: 24"`, nil, nil)
	assert.True(t, res.Success)
	assert.Equal(t, "frames: 24\n", res.Output["stdout"])
	assert.Equal(t, 0, res.Output["exit_code"])
}

func TestShellNonZeroExitIsFailure(t *testing.T) {
	res := runShell(t, `echo "bad coordinates" >&2; exit 3`, nil, nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "bad coordinates")
	assert.Equal(t, 3, res.Output["exit_code"])
}

func TestShellEnvFromParams(t *testing.T) {
	res := runShell(t, `echo "$FILTER"`,
		api.Args{"env": map[string]any{"FILTER": "OIII"}}, nil)
	assert.True(t, res.Success)
	assert.Equal(t, "OIII\n", res.Output["stdout"])
}

func TestShellSharedContextEnv(t *testing.T) {
	res := runShell(t, `echo "$CTX_TARGET_NAME"`,
		nil, api.Args{"target-name": "m42"})
	assert.True(t, res.Success)
	assert.Equal(t, "m42\n", res.Output["stdout"])
}

func TestShellTimeoutKillsProcess(t *testing.T) {
	r := executor.NewShellRunner("")
	ctx, cancel := context.WithTimeout(
		context.Background(), 50*time.Millisecond,
	)
	defer cancel()

	_, err := r.Execute(ctx, api.Args{"script": "sleep 30"}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestShellEmptyScript(t *testing.T) {
	r := executor.NewShellRunner("")
	_, err := r.Execute(context.Background(), api.Args{}, nil)
	assert.ErrorIs(t, err, executor.ErrShellScriptEmpty)
}
