package stack

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/Scarmonit/aistack/pkg/domain/interfaces"
)

const defaultExecTimeout = 5 * time.Minute

// ExecRunner runs commands through os/exec with captured output
type ExecRunner struct {
	timeout time.Duration
}

// NewExecRunner creates an ExecRunner with the default per-command timeout
func NewExecRunner() *ExecRunner {
	return &ExecRunner{timeout: defaultExecTimeout}
}

// Run implements interfaces.Runner
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (*interfaces.RunResult, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	err := cmd.Run()
	ctxlog.From(ctx).Debug("ran command",
		"command", name,
		"args", args,
		"elapsed", time.Since(started),
	)

	result := &interfaces.RunResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, goerr.Wrap(ctx.Err(), "command timed out",
				goerr.V("command", name), goerr.V("args", args))
		}
		return nil, goerr.Wrap(err, "failed to execute command", goerr.V("command", name))
	}

	return result, nil
}

var _ interfaces.Runner = (*ExecRunner)(nil)
