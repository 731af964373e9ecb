package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/siderealworks/meridian/pkg/api"
)

// ShellRunner executes step scripts through a shell subprocess. The context
// deadline is the only preemptive stop: on expiry the process is killed and
// the invocation reported as failed
type ShellRunner struct {
	shell string
}

const defaultShell = "/bin/sh"

var ErrShellScriptEmpty = errors.New("shell script empty")

var _ Executor = (*ShellRunner)(nil)

// NewShellRunner creates a shell script runner. An empty shell selects
// /bin/sh
func NewShellRunner(shell string) *ShellRunner {
	if shell == "" {
		shell = defaultShell
	}
	return &ShellRunner{shell: shell}
}

// Execute runs the script in params via the shell, capturing stdout and
// stderr. A non-zero exit reports failure with the captured stderr
func (r *ShellRunner) Execute(
	ctx context.Context, params, shared api.Args,
) (*Result, error) {
	script := params.GetString("script", "")
	if script == "" {
		return nil, ErrShellScriptEmpty
	}

	cmd := exec.CommandContext(ctx, r.shell, "-c", script)
	cmd.Env = shellEnv(params, shared)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		res := Fail(msg)
		res.Output = api.Args{
			"stdout":    stdout.String(),
			"exit_code": exitCode(err),
		}
		return res, nil
	}

	return Succeed(api.Args{
		"stdout":    stdout.String(),
		"exit_code": 0,
	}), nil
}

// shellEnv builds the subprocess environment: every string-valued entry of
// the "env" parameter map plus the shared context's string values under a
// CTX_ prefix
func shellEnv(params, shared api.Args) []string {
	env := []string{"PATH=/usr/local/bin:/usr/bin:/bin"}
	for k, v := range params.GetStringMap("env") {
		if s, ok := v.(string); ok {
			env = append(env, fmt.Sprintf("%s=%s", k, s))
		}
	}
	for k, v := range shared {
		if s, ok := v.(string); ok {
			name := strings.ToUpper(strings.ReplaceAll(k, "-", "_"))
			env = append(env, fmt.Sprintf("CTX_%s=%s", name, s))
		}
	}
	return env
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
