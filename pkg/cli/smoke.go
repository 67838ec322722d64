package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/Scarmonit/aistack/pkg/cli/config"
	"github.com/Scarmonit/aistack/pkg/service/stack"
	"github.com/Scarmonit/aistack/pkg/usecase"
)

func cmdSmoke() *cli.Command {
	var (
		stackCfg  config.Stack
		ollamaCfg config.Ollama
	)

	flags := joinFlags(stackCfg.Flags(), ollamaCfg.Flags())

	return &cli.Command{
		Name:  "smoke",
		Usage: "End-to-end stack smoke test: health probes plus a chat round-trip",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			catalog, err := stackCfg.Configure()
			if err != nil {
				return err
			}

			engine := stack.NewEngine(stack.NewExecRunner(), stackCfg.ComposeFile)
			statusUC := usecase.NewStatus(catalog, engine, stack.NewProber())
			smokeUC := usecase.NewSmoke(statusUC, ollamaCfg.Configure(), ollamaCfg.Model)

			result, runErr := smokeUC.Run(ctx)

			// print what was observed even when the run failed partway
			if result.Status != nil {
				rows := make([][]string, 0, len(result.Status.Services))
				for _, svc := range result.Status.Services {
					rows = append(rows, []string{svc.Name.String(), svc.State.String(), svc.Detail})
				}
				if err := printTable(os.Stdout, []string{"SERVICE", "STATE", "DETAIL"}, rows); err != nil {
					return err
				}
			}
			if len(result.Models) > 0 {
				fmt.Printf("\ninstalled models: %d\n", len(result.Models))
			}
			if result.Reply != "" {
				fmt.Printf("chat round-trip ok (%s): %s\n", result.Model, result.Reply)
			}

			return runErr
		},
	}
}
