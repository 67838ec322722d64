package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/Scarmonit/aistack/pkg/cli/config"
	"github.com/Scarmonit/aistack/pkg/usecase"
)

func cmdChat() *cli.Command {
	var ollamaCfg config.Ollama

	return &cli.Command{
		Name:      "chat",
		Usage:     "One-shot chat completion against the local Ollama server",
		ArgsUsage: "<prompt...>",
		Flags:     ollamaCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			prompt := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if prompt == "" {
				return goerr.New("prompt is required")
			}

			chatUC := usecase.NewChat(ollamaCfg.Configure(), ollamaCfg.Model)
			reply, err := chatUC.Ask(ctx, prompt)
			if err != nil {
				return err
			}
			fmt.Println(reply)
			return nil
		},
	}
}
