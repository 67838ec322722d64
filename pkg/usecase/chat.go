package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"

	"github.com/Scarmonit/aistack/pkg/domain/interfaces"
	"github.com/Scarmonit/aistack/pkg/domain/model"
)

// Chat sends one-shot prompts to the local Ollama server
type Chat struct {
	ollama       interfaces.OllamaClient
	defaultModel string
}

// NewChat creates a Chat use case. defaultModel may be empty, in which
// case the first installed model is used.
func NewChat(ollama interfaces.OllamaClient, defaultModel string) *Chat {
	return &Chat{
		ollama:       ollama,
		defaultModel: defaultModel,
	}
}

// Ask sends the prompt as a single user message and returns the reply
func (u *Chat) Ask(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", goerr.New("prompt is required")
	}

	name, err := resolveModel(ctx, u.ollama, u.defaultModel)
	if err != nil {
		return "", err
	}

	reply, err := u.ollama.ChatCompletion(ctx, name, []model.ChatMessage{
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return "", goerr.Wrap(err, "chat completion failed", goerr.V("model", name))
	}
	return reply, nil
}

// resolveModel picks the model to use: the configured one, or the first
// installed model when nothing is configured
func resolveModel(ctx context.Context, client interfaces.OllamaClient, preferred string) (string, error) {
	if preferred != "" {
		return preferred, nil
	}

	models, err := client.ListModels(ctx)
	if err != nil {
		return "", goerr.Wrap(err, "failed to list installed models")
	}
	if len(models) == 0 {
		return "", goerr.New("no models installed, run deploy first")
	}
	return models[0], nil
}
