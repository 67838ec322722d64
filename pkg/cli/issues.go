package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/Scarmonit/aistack/pkg/cli/config"
	"github.com/Scarmonit/aistack/pkg/domain/interfaces"
	"github.com/Scarmonit/aistack/pkg/domain/types"
	"github.com/Scarmonit/aistack/pkg/usecase"
)

func cmdIssues() *cli.Command {
	return &cli.Command{
		Name:  "issues",
		Usage: "Flat-file issue tracking over audit findings",
		Commands: []*cli.Command{
			cmdIssuesGenerate(),
			cmdIssuesList(),
			cmdIssuesUpdate(),
			cmdIssuesReport(),
		},
	}
}

// withIssues opens the issue store, runs fn, and closes the store
func withIssues(
	storeCfg *config.Store,
	stackCfg *config.Stack,
	fn func(ctx context.Context, uc *usecase.Issues) error,
) func(ctx context.Context, c *cli.Command) error {
	return func(ctx context.Context, c *cli.Command) error {
		repo, err := storeCfg.Configure()
		if err != nil {
			return err
		}
		defer closeRepo(ctx, repo)

		return fn(ctx, usecase.NewIssues(repo, stackCfg.ReportsDir()))
	}
}

func closeRepo(ctx context.Context, repo interfaces.Repository) {
	if err := repo.Close(); err != nil {
		ctxlog.From(ctx).Warn("failed to close issue store", "error", err)
	}
}

func cmdIssuesGenerate() *cli.Command {
	var (
		storeCfg   config.Store
		stackCfg   config.Stack
		reportPath string
	)

	flags := joinFlags(
		storeCfg.Flags(),
		stackCfg.Flags(),
		[]cli.Flag{
			&cli.StringFlag{
				Name:        "report",
				Usage:       "JSON audit report to sync from (latest when unset)",
				Category:    "Issues",
				Destination: &reportPath,
			},
		},
	)

	return &cli.Command{
		Name:  "generate",
		Usage: "Seed the issue store from an audit report (idempotent)",
		Flags: flags,
		Action: withIssues(&storeCfg, &stackCfg, func(ctx context.Context, uc *usecase.Issues) error {
			result, err := uc.Generate(ctx, reportPath)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d issues created, %d already tracked\n",
				result.Report, result.Created, result.Skipped)
			return nil
		}),
	}
}

func cmdIssuesList() *cli.Command {
	var (
		storeCfg config.Store
		stackCfg config.Stack
		status   string
		severity string
		kind     string
	)

	flags := joinFlags(
		storeCfg.Flags(),
		stackCfg.Flags(),
		[]cli.Flag{
			&cli.StringFlag{
				Name:        "status",
				Usage:       "Filter by status (open, in_progress, fixed, ignored)",
				Category:    "Issues",
				Destination: &status,
			},
			&cli.StringFlag{
				Name:        "severity",
				Usage:       "Filter by severity (critical, high, medium, low, info)",
				Category:    "Issues",
				Destination: &severity,
			},
			&cli.StringFlag{
				Name:        "kind",
				Usage:       "Filter by kind (security, quality)",
				Category:    "Issues",
				Destination: &kind,
			},
		},
	)

	return &cli.Command{
		Name:  "list",
		Usage: "List tracked issues",
		Flags: flags,
		Action: withIssues(&storeCfg, &stackCfg, func(ctx context.Context, uc *usecase.Issues) error {
			filter, err := buildFilter(status, severity, kind)
			if err != nil {
				return err
			}

			issues, err := uc.List(ctx, filter)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(issues))
			for _, issue := range issues {
				location := issue.File
				if issue.Line > 0 {
					location = fmt.Sprintf("%s:%d", issue.File, issue.Line)
				}
				rows = append(rows, []string{
					strconv.Itoa(int(issue.ID)),
					issue.Status.String(),
					issue.Severity.String(),
					issue.Kind.String(),
					location,
					issue.Title,
				})
			}
			return printTable(os.Stdout,
				[]string{"ID", "STATUS", "SEVERITY", "KIND", "LOCATION", "TITLE"}, rows)
		}),
	}
}

func buildFilter(status, severity, kind string) (usecase.IssueFilter, error) {
	var filter usecase.IssueFilter

	if status != "" {
		parsed, err := types.ParseIssueStatus(status)
		if err != nil {
			return filter, err
		}
		filter.Status = parsed
	}
	if severity != "" {
		parsed, err := types.ParseSeverity(severity)
		if err != nil {
			return filter, err
		}
		filter.Severity = parsed
	}
	if kind != "" {
		parsed, err := types.ParseAuditKind(kind)
		if err != nil {
			return filter, err
		}
		filter.Kind = parsed
	}
	return filter, nil
}

func cmdIssuesUpdate() *cli.Command {
	var (
		storeCfg config.Store
		stackCfg config.Stack
		id       int
		status   string
		note     string
	)

	flags := joinFlags(
		storeCfg.Flags(),
		stackCfg.Flags(),
		[]cli.Flag{
			&cli.IntFlag{
				Name:        "id",
				Usage:       "Issue ID",
				Category:    "Issues",
				Required:    true,
				Destination: &id,
			},
			&cli.StringFlag{
				Name:        "status",
				Usage:       "New status (open, in_progress, fixed, ignored)",
				Category:    "Issues",
				Required:    true,
				Destination: &status,
			},
			&cli.StringFlag{
				Name:        "note",
				Usage:       "Note recorded with the transition",
				Category:    "Issues",
				Destination: &note,
			},
		},
	)

	return &cli.Command{
		Name:  "update",
		Usage: "Apply a status transition to one issue",
		Flags: flags,
		Action: withIssues(&storeCfg, &stackCfg, func(ctx context.Context, uc *usecase.Issues) error {
			parsed, err := types.ParseIssueStatus(status)
			if err != nil {
				return err
			}

			issue, err := uc.Update(ctx, types.IssueID(id), parsed, note)
			if err != nil {
				return goerr.Wrap(err, "failed to update issue", goerr.V("id", id))
			}
			fmt.Printf("issue #%d is now %s\n", issue.ID, issue.Status)
			return nil
		}),
	}
}

func cmdIssuesReport() *cli.Command {
	var (
		storeCfg config.Store
		stackCfg config.Stack
	)

	flags := joinFlags(storeCfg.Flags(), stackCfg.Flags())

	return &cli.Command{
		Name:  "report",
		Usage: "Print the markdown progress report",
		Flags: flags,
		Action: withIssues(&storeCfg, &stackCfg, func(ctx context.Context, uc *usecase.Issues) error {
			progress, err := uc.Progress(ctx)
			if err != nil {
				return err
			}
			fmt.Print(usecase.RenderProgressMarkdown(progress))
			return nil
		}),
	}
}
