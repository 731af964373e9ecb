package executor

import (
	"context"
	"time"

	"github.com/siderealworks/meridian/pkg/api"
)

// RegisterBuiltins installs the stock tool handlers every deployment gets:
// echo and sleep. Device-specific tools are registered by the embedding
// process at bootstrap
func RegisterBuiltins(r *Registry) error {
	if err := r.Register("echo", Func(echoTool)); err != nil {
		return err
	}
	return r.Register("sleep", Func(sleepTool))
}

// echoTool returns its parameters unchanged
func echoTool(
	_ context.Context, params, _ api.Args,
) (*Result, error) {
	return Succeed(params.Clone()), nil
}

// sleepTool waits for the requested number of milliseconds, honoring the
// context deadline
func sleepTool(
	ctx context.Context, params, _ api.Args,
) (*Result, error) {
	ms := params.GetInt("duration_ms", 0)
	if ms <= 0 {
		return Succeed(api.Args{"slept_ms": 0}), nil
	}

	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return Succeed(api.Args{"slept_ms": ms}), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
