package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/Scarmonit/aistack/pkg/cli/config"
	"github.com/Scarmonit/aistack/pkg/service/stack"
	"github.com/Scarmonit/aistack/pkg/usecase"
)

// probe latencies are shown rounded, sub-millisecond noise is not useful
const timePrecision = time.Millisecond

func cmdStatus() *cli.Command {
	var stackCfg config.Stack

	return &cli.Command{
		Name:      "status",
		Usage:     "One-shot health summary of the stack and host",
		ArgsUsage: "[service...]",
		Flags:     stackCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			catalog, err := stackCfg.Configure()
			if err != nil {
				return err
			}

			engine := stack.NewEngine(stack.NewExecRunner(), stackCfg.ComposeFile)
			statusUC := usecase.NewStatus(catalog, engine, stack.NewProber())

			status, err := statusUC.Collect(ctx, c.Args().Slice())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(status.Services))
			for _, svc := range status.Services {
				rows = append(rows, []string{
					svc.Name.String(),
					svc.State.String(),
					svc.Latency.Round(timePrecision).String(),
					svc.Detail,
				})
			}
			if err := printTable(os.Stdout, []string{"SERVICE", "STATE", "LATENCY", "DETAIL"}, rows); err != nil {
				return err
			}

			fmt.Printf("\nhost: mem %d/%d MB available, disk %d GB free",
				status.Host.AvailMemMB, status.Host.TotalMemMB, status.Host.FreeDiskGB)
			if status.Host.DockerVersion != "" {
				fmt.Printf(", docker %s", status.Host.DockerVersion)
			}
			fmt.Println()

			if unhealthy := status.Unhealthy(); len(unhealthy) > 0 {
				return goerr.New("stack is not healthy", goerr.V("services", unhealthy))
			}
			return nil
		},
	}
}
