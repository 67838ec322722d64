package apperr

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// Handle logs an error at the top of the call stack, unpacking goerr
// context values when present
func Handle(ctx context.Context, err error) {
	logger := ctxlog.From(ctx)

	if goErr := goerr.Unwrap(err); goErr != nil {
		attrs := make([]any, 0, len(goErr.Values())*2+2)
		attrs = append(attrs, slog.Any("error", err))
		for key, value := range goErr.Values() {
			attrs = append(attrs, slog.Any(key, value))
		}
		logger.Error("application error", attrs...)
		return
	}

	logger.Error("application error", "error", err)
}
