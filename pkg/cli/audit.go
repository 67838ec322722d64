package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/Scarmonit/aistack/pkg/cli/config"
	"github.com/Scarmonit/aistack/pkg/domain/types"
	"github.com/Scarmonit/aistack/pkg/usecase"
)

// parseKinds turns the --kind flag value into scanner kinds. "all" and
// the empty string select every kind.
func parseKinds(value string) ([]types.AuditKind, error) {
	if value == "" || value == "all" {
		return nil, nil
	}
	kind, err := types.ParseAuditKind(value)
	if err != nil {
		return nil, err
	}
	return []types.AuditKind{kind}, nil
}

func cmdAudit() *cli.Command {
	var (
		stackCfg config.Stack
		slackCfg config.Slack
		kindFlag string
	)

	flags := joinFlags(
		stackCfg.Flags(),
		slackCfg.Flags(),
		[]cli.Flag{
			&cli.StringFlag{
				Name:        "kind",
				Usage:       "Scanner kind (security, quality, all)",
				Category:    "Audit",
				Value:       "all",
				Sources:     cli.EnvVars("AISTACK_AUDIT_KIND"),
				Destination: &kindFlag,
			},
		},
	)

	return &cli.Command{
		Name:      "audit",
		Usage:     "Run the security and quality scanners and write reports",
		ArgsUsage: "[path]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			root := c.Args().First()
			if root == "" {
				root = "."
			}
			if c.Args().Len() > 1 {
				return goerr.New("audit takes at most one path",
					goerr.V("args", c.Args().Slice()))
			}

			kinds, err := parseKinds(kindFlag)
			if err != nil {
				return err
			}

			notifier, err := slackCfg.Configure(ctx)
			if err != nil {
				return err
			}

			auditUC := usecase.NewAudit(stackCfg.ReportsDir(), notifier)
			result, err := auditUC.Run(ctx, root, kinds)
			if err != nil {
				return err
			}

			report := result.Report
			fmt.Printf("scanned %d files (%d skipped), %d findings\n",
				report.ScannedFiles, report.SkippedFiles, len(report.Findings))
			for _, severity := range types.Severities() {
				if n := report.CountBySeverity()[severity]; n > 0 {
					fmt.Printf("  %s: %d\n", severity, n)
				}
			}
			fmt.Printf("reports: %s, %s\n", result.MarkdownPath, result.JSONPath)
			return nil
		},
	}
}
