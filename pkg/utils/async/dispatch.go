package async

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

var inflight sync.WaitGroup

// Dispatch executes a handler function asynchronously with proper context and panic recovery.
// Commands use it for work that must not delay or fail the main flow, such as notifications.
// Call Drain before process exit so dispatched handlers are not cut off.
func Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	// Create a new background context preserving important values
	newCtx := newBackgroundContext(ctx)

	inflight.Add(1)
	go func() {
		defer inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				ctxlog.From(newCtx).Error("Panic in async handler",
					"recover", r,
					"stack", string(stack),
				)
			}
		}()

		if err := handler(newCtx); err != nil {
			ctxlog.From(newCtx).Error("Error in async handler",
				"error", err,
			)
		}
	}()
}

// Drain blocks until every dispatched handler has finished, or the timeout
// passes, or ctx is cancelled.
func Drain(ctx context.Context, timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		inflight.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return goerr.New("async handlers still running", goerr.V("timeout", timeout))
	case <-ctx.Done():
		return goerr.Wrap(ctx.Err(), "drain interrupted")
	}
}

// newBackgroundContext creates a new background context preserving important values
func newBackgroundContext(ctx context.Context) context.Context {
	newCtx := context.Background()

	// Preserve logger
	logger := ctxlog.From(ctx)
	if logger != nil {
		newCtx = ctxlog.With(newCtx, logger)
	}

	// Add any other context values that need to be preserved
	// For example, request ID, user ID, etc.

	return newCtx
}
