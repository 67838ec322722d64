package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/Scarmonit/aistack/pkg/cli/config"
	"github.com/Scarmonit/aistack/pkg/utils/async"
)

// drainTimeout bounds how long Run waits for dispatched background work
// (Slack notifications and similar) after the command finishes.
const drainTimeout = 10 * time.Second

// Run runs the CLI application
func Run(ctx context.Context, args []string) error {
	var loggerCfg config.Logger

	app := &cli.Command{
		Name:    "aistack",
		Usage:   "Deploy, audit, and track a self-hosted AI tool stack",
		Version: "0.1.0",
		Flags:   loggerCfg.Flags(),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger, err := loggerCfg.Configure()
			if err != nil {
				return nil, err
			}

			slog.SetDefault(logger)
			ctx = ctxlog.With(ctx, logger)
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmdDeploy(),
			cmdDown(),
			cmdStatus(),
			cmdAudit(),
			cmdIssues(),
			cmdSubmit(),
			cmdChat(),
			cmdSmoke(),
			cmdServe(),
		},
	}

	runErr := app.Run(ctx, args)

	// Background handlers must finish before the process exits
	if err := async.Drain(ctx, drainTimeout); err != nil {
		ctxlog.From(ctx).Warn("background handlers did not finish", "error", err)
	}

	if runErr != nil {
		return goerr.Wrap(runErr, "CLI execution failed")
	}

	return nil
}
