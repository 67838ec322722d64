package cli

import (
	"context"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/urfave/cli/v3"

	"github.com/Scarmonit/aistack/pkg/cli/config"
	"github.com/Scarmonit/aistack/pkg/service/stack"
	"github.com/Scarmonit/aistack/pkg/usecase"
)

func cmdDeploy() *cli.Command {
	var (
		stackCfg  config.Stack
		ollamaCfg config.Ollama
		slackCfg  config.Slack
		grace     time.Duration
	)

	flags := joinFlags(
		stackCfg.Flags(),
		ollamaCfg.Flags(),
		slackCfg.Flags(),
		[]cli.Flag{
			&cli.DurationFlag{
				Name:        "ready-grace",
				Usage:       "How long each service may take to become healthy",
				Category:    "Stack",
				Value:       2 * time.Minute,
				Sources:     cli.EnvVars("AISTACK_READY_GRACE"),
				Destination: &grace,
			},
		},
	)

	return &cli.Command{
		Name:      "deploy",
		Usage:     "Bootstrap the local AI stack (all catalog services, or the named subset)",
		ArgsUsage: "[service...]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)
			logger.Info("Starting deploy",
				"stack", stackCfg,
				"ollama", ollamaCfg,
				"services", c.Args().Slice(),
			)

			deployUC, err := newDeployUseCase(ctx, &stackCfg, &ollamaCfg, &slackCfg, grace)
			if err != nil {
				return err
			}
			return deployUC.Deploy(ctx, c.Args().Slice())
		},
	}
}

func cmdDown() *cli.Command {
	var (
		stackCfg  config.Stack
		ollamaCfg config.Ollama
		slackCfg  config.Slack
	)

	flags := joinFlags(stackCfg.Flags(), ollamaCfg.Flags(), slackCfg.Flags())

	return &cli.Command{
		Name:      "down",
		Usage:     "Stop stack services",
		ArgsUsage: "[service...]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			deployUC, err := newDeployUseCase(ctx, &stackCfg, &ollamaCfg, &slackCfg, 0)
			if err != nil {
				return err
			}
			return deployUC.Down(ctx, c.Args().Slice())
		},
	}
}

// newDeployUseCase wires the stack services shared by deploy and down
func newDeployUseCase(
	ctx context.Context,
	stackCfg *config.Stack,
	ollamaCfg *config.Ollama,
	slackCfg *config.Slack,
	grace time.Duration,
) (*usecase.Deploy, error) {
	catalog, err := stackCfg.Configure()
	if err != nil {
		return nil, err
	}

	binaries, err := stack.NewBinaryManager(stackCfg.DataDir)
	if err != nil {
		return nil, err
	}

	notifier, err := slackCfg.Configure(ctx)
	if err != nil {
		return nil, err
	}

	engine := stack.NewEngine(stack.NewExecRunner(), stackCfg.ComposeFile)
	return usecase.NewDeploy(
		catalog,
		engine,
		binaries,
		stack.NewProber(),
		ollamaCfg.Configure(),
		notifier,
		usecase.WithEnvPath(stackCfg.EnvPath()),
		usecase.WithReadyGrace(grace),
	), nil
}
