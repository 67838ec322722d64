package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/Scarmonit/aistack/pkg/cli/config"
	controller "github.com/Scarmonit/aistack/pkg/controller/http"
	"github.com/Scarmonit/aistack/pkg/service/stack"
	"github.com/Scarmonit/aistack/pkg/usecase"
)

func cmdServe() *cli.Command {
	var (
		serverCfg config.Server
		stackCfg  config.Stack
		storeCfg  config.Store
	)

	flags := joinFlags(
		serverCfg.Flags(),
		stackCfg.Flags(),
		storeCfg.Flags(),
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Start the local monitoring dashboard",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			logger.Info("Starting aistack dashboard",
				slog.String("addr", serverCfg.Addr),
				slog.Any("stack", stackCfg),
				slog.Any("store", storeCfg),
			)

			catalog, err := stackCfg.Configure()
			if err != nil {
				return err
			}

			repo, err := storeCfg.Configure()
			if err != nil {
				return err
			}
			defer closeRepo(ctx, repo)

			engine := stack.NewEngine(stack.NewExecRunner(), stackCfg.ComposeFile)
			statusUC := usecase.NewStatus(catalog, engine, stack.NewProber())
			issuesUC := usecase.NewIssues(repo, stackCfg.ReportsDir())

			server, err := controller.NewServer(ctx, serverCfg.Addr, statusUC, issuesUC, stackCfg.ReportsDir())
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", slog.Any("error", err))
				}
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}
