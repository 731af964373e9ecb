package executor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderealworks/meridian/internal/executor"
	"github.com/siderealworks/meridian/pkg/api"
)

func succeedTool(
	context.Context, api.Args, api.Args,
) (*executor.Result, error) {
	return executor.Succeed(nil), nil
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := executor.NewRegistry()

	require.NoError(t, r.Register("slew", executor.Func(succeedTool)))

	ex, ok := r.Lookup("slew")
	assert.True(t, ok)
	require.NotNil(t, ex)

	res, err := ex.Execute(context.Background(), nil, nil)
	assert.NoError(t, err)
	assert.True(t, res.Success)

	_, ok = r.Lookup("focus")
	assert.False(t, ok)
}

func TestRegistryRejectsBadRegistrations(t *testing.T) {
	r := executor.NewRegistry()

	assert.ErrorIs(t,
		r.Register("", executor.Func(succeedTool)),
		executor.ErrToolNameEmpty)
	assert.ErrorIs(t, r.Register("slew", nil), executor.ErrToolNil)

	require.NoError(t, r.Register("slew", executor.Func(succeedTool)))
	assert.ErrorIs(t,
		r.Register("slew", executor.Func(succeedTool)),
		executor.ErrToolAlreadyExists)
}

func TestRegistryNames(t *testing.T) {
	r := executor.NewRegistry()
	assert.Empty(t, r.Names())

	require.NoError(t, r.Register("slew", executor.Func(succeedTool)))
	require.NoError(t, r.Register("focus", executor.Func(succeedTool)))

	names := r.Names()
	assert.Len(t, names, 2)
	assert.Contains(t, names, "slew")
	assert.Contains(t, names, "focus")
}

func TestSucceedAndFail(t *testing.T) {
	ok := executor.Succeed(api.Args{"frames": 10})
	assert.True(t, ok.Success)
	assert.Equal(t, 10, ok.Output["frames"])
	assert.Empty(t, ok.Error)

	bad := executor.Fail("clouds rolled in")
	assert.False(t, bad.Success)
	assert.Equal(t, "clouds rolled in", bad.Error)
}
