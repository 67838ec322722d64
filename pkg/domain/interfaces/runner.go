package interfaces

import (
	"context"
)

// RunResult captures the output of one external command invocation
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner defines the interface for running external commands (docker,
// docker compose, service binaries). Implementations must honor context
// cancellation. A non-zero exit is reported through RunResult.ExitCode
// with a nil error; the error return is reserved for failures to execute
// at all.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*RunResult, error)
}
