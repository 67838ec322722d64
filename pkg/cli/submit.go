package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/ctxlog"
	"github.com/urfave/cli/v3"

	"github.com/Scarmonit/aistack/pkg/cli/config"
	"github.com/Scarmonit/aistack/pkg/domain/types"
	"github.com/Scarmonit/aistack/pkg/usecase"
)

// submitFlags are shared by the bugs and merge subcommands
type submitFlags struct {
	githubCfg config.GitHub
	slackCfg  config.Slack
	report    string
	limit     int
	dryRun    bool
}

func (f *submitFlags) flags(extra ...cli.Flag) []cli.Flag {
	return joinFlags(
		f.githubCfg.Flags(),
		f.slackCfg.Flags(),
		[]cli.Flag{
			&cli.StringFlag{
				Name:        "report",
				Usage:       "Markdown audit report to submit from",
				Category:    "Submit",
				Required:    true,
				Destination: &f.report,
			},
			&cli.IntFlag{
				Name:        "limit",
				Usage:       "Cap the number of records submitted (0 is unlimited)",
				Category:    "Submit",
				Destination: &f.limit,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "Print payloads instead of posting them",
				Category:    "Submit",
				Sources:     cli.EnvVars("AISTACK_DRY_RUN"),
				Destination: &f.dryRun,
			},
		},
		extra,
	)
}

func (f *submitFlags) useCase(ctx context.Context, extra ...usecase.SubmitOption) (*usecase.Submit, error) {
	client, err := f.githubCfg.Configure()
	if err != nil {
		return nil, err
	}

	notifier, err := f.slackCfg.Configure(ctx)
	if err != nil {
		return nil, err
	}

	opts := append([]usecase.SubmitOption{
		usecase.WithDryRun(f.dryRun),
		usecase.WithLimit(f.limit),
	}, extra...)
	return usecase.NewSubmit(client, notifier, opts...), nil
}

func cmdSubmit() *cli.Command {
	return &cli.Command{
		Name:  "submit",
		Usage: "File audit report findings on GitHub",
		Commands: []*cli.Command{
			cmdSubmitBugs(),
			cmdSubmitMerge(),
		},
	}
}

func cmdSubmitBugs() *cli.Command {
	var (
		shared   submitFlags
		kindFlag string
	)

	flags := shared.flags(
		&cli.StringFlag{
			Name:        "kind",
			Usage:       "Finding kind to submit (security, quality, all)",
			Category:    "Submit",
			Value:       "all",
			Destination: &kindFlag,
		},
	)

	return &cli.Command{
		Name:  "bugs",
		Usage: "File one GitHub issue per parsed bug report",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			kinds, err := parseKinds(kindFlag)
			if err != nil {
				return err
			}
			var kind types.AuditKind
			if len(kinds) == 1 {
				kind = kinds[0]
			}

			submitUC, err := shared.useCase(ctx)
			if err != nil {
				return err
			}

			result, err := submitUC.Bugs(ctx, shared.report, kind)
			if err != nil {
				return err
			}
			reportSubmitResult(ctx, result)
			return nil
		},
	}
}

func cmdSubmitMerge() *cli.Command {
	var (
		shared submitFlags
		base   string
	)

	flags := shared.flags(
		&cli.StringFlag{
			Name:        "base",
			Usage:       "Base branch for merge requests (repository default when unset)",
			Category:    "Submit",
			Destination: &base,
		},
	)

	return &cli.Command{
		Name:  "merge",
		Usage: "File one draft merge request per affected file",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			submitUC, err := shared.useCase(ctx, usecase.WithBaseBranch(base))
			if err != nil {
				return err
			}

			result, err := submitUC.Merge(ctx, shared.report)
			if err != nil {
				return err
			}
			reportSubmitResult(ctx, result)
			return nil
		},
	}
}

func reportSubmitResult(ctx context.Context, result *usecase.SubmitResult) {
	if result.DryRun {
		fmt.Printf("dry run: %s\n", result)
		return
	}
	fmt.Println(result)
	if result.Failed > 0 {
		ctxlog.From(ctx).Warn("some records failed to submit", "failed", result.Failed)
	}
}
