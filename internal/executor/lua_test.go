package executor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderealworks/meridian/internal/executor"
	"github.com/siderealworks/meridian/pkg/api"
)

func runLua(
	t *testing.T, script string, params, shared api.Args,
) *executor.Result {
	t.Helper()
	r := executor.NewLuaRunner()
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

func TestLuaTableReturn(t *testing.T) {
	res := runLua(t, `return { exposure = 120, filter = "Ha" }`, nil, nil)
	assert.True(t, res.Success)
	assert.Equal(t, 120, res.Output["exposure"])
	assert.Equal(t, "Ha", res.Output["filter"])
}

func TestLuaScalarReturn(t *testing.T) {
	res := runLua(t, `return 6.5`, nil, nil)
	assert.True(t, res.Success)
	assert.Equal(t, 6.5, res.Output["result"])
}

func TestLuaReadsParams(t *testing.T) {
	res := runLua(t, `return { doubled = params.gain * 2 }`,
		api.Args{"gain": 139}, nil)
	assert.True(t, res.Success)
	assert.Equal(t, 278, res.Output["doubled"])
}

func TestLuaReadsSharedContext(t *testing.T) {
	res := runLua(t, `return { target = shared.target }`,
		nil, api.Args{"target": "ngc7000"})
	assert.True(t, res.Success)
	assert.Equal(t, "ngc7000", res.Output["target"])
}

func TestLuaNestedStructures(t *testing.T) {
	res := runLua(t,
		`return { filters = { "L", "R", "G", "B" },
		          meta = { binning = 2 } }`,
		nil, nil)
	assert.True(t, res.Success)
	assert.Equal(t, []any{"L", "R", "G", "B"}, res.Output["filters"])
	meta, ok := res.Output["meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 2, meta["binning"])
}

func TestLuaNestedMapReturn(t *testing.T) {
	res := runLua(t, `return { meta = { binning = 2 } }`, nil, nil)
	assert.True(t, res.Success)
	meta, ok := res.Output["meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 2, meta["binning"])
}

func TestLuaMixedKeyTableReturn(t *testing.T) {
	res := runLua(t,
		`return { inner = { "dark", "flat", label = "calibration" } }`,
		nil, nil)
	assert.True(t, res.Success)
	inner, ok := res.Output["inner"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "calibration", inner["label"])
	assert.Equal(t, "dark", inner["1"])
	assert.Equal(t, "flat", inner["2"])
}

func TestLuaSandboxExcludesDangerousGlobals(t *testing.T) {
	for _, name := range []string{"io", "os", "debug", "load"} {
		res := runLua(t, `return { gone = (`+name+` == nil) }`, nil, nil)
		assert.True(t, res.Success)
		assert.Equal(t, true, res.Output["gone"], name)
	}
}

func TestLuaRuntimeErrorIsFailure(t *testing.T) {
	res := runLua(t, `error("mount limit reached")`, nil, nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "mount limit reached")
}

func TestLuaCompileError(t *testing.T) {
	r := executor.NewLuaRunner()
	_, err := r.Execute(
		context.Background(),
		api.Args{"script": `return {{ nonsense`},
		nil,
	)
	assert.ErrorIs(t, err, executor.ErrLuaLoad)
}

func TestLuaEmptyScript(t *testing.T) {
	r := executor.NewLuaRunner()
	_, err := r.Execute(context.Background(), api.Args{}, nil)
	assert.ErrorIs(t, err, executor.ErrLuaScriptEmpty)
}

func TestLuaValidate(t *testing.T) {
	r := executor.NewLuaRunner()
	assert.NoError(t, r.Validate(`return 1 + 1`))
	assert.Error(t, r.Validate(`return ((`))
}

func TestLuaScriptCacheReuse(t *testing.T) {
	r := executor.NewLuaRunner()
	script := api.Args{"script": `return { n = params.n }`}

	for i := 1; i <= 3; i++ {
		res, err := r.Execute(
			context.Background(), script.Clone().Set("n", i), nil,
		)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, i, res.Output["n"])
	}
}

func TestLuaCancelledContext(t *testing.T) {
	r := executor.NewLuaRunner()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Execute(ctx, api.Args{"script": `return 1`}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
