package usecase

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/Scarmonit/aistack/pkg/domain/interfaces"
	"github.com/Scarmonit/aistack/pkg/domain/model"
)

// Smoke verifies the deployed stack end to end: health probes plus a real
// chat round-trip against the Ollama server
type Smoke struct {
	status       *Status
	ollama       interfaces.OllamaClient
	defaultModel string
}

// NewSmoke creates a Smoke use case
func NewSmoke(status *Status, ollama interfaces.OllamaClient, defaultModel string) *Smoke {
	return &Smoke{
		status:       status,
		ollama:       ollama,
		defaultModel: defaultModel,
	}
}

// SmokeResult carries everything the smoke run observed, also on failure
// so callers can print the partial picture
type SmokeResult struct {
	Status *model.StackStatus
	Models []string
	Model  string
	Reply  string
}

// Run probes every service, lists installed models, and performs a short
// chat completion. Unknown health states (services without a health URL)
// do not fail the run; unhealthy ones do.
func (u *Smoke) Run(ctx context.Context) (*SmokeResult, error) {
	logger := ctxlog.From(ctx)
	result := &SmokeResult{}

	status, err := u.status.Collect(ctx, nil)
	if err != nil {
		return result, err
	}
	result.Status = status

	unhealthy := status.Unhealthy()

	models, err := u.ollama.ListModels(ctx)
	if err != nil {
		return result, goerr.Wrap(err, "failed to list installed models")
	}
	result.Models = models

	name, err := resolveModel(ctx, u.ollama, u.defaultModel)
	if err != nil {
		return result, err
	}
	result.Model = name

	reply, err := u.ollama.ChatCompletion(ctx, name, []model.ChatMessage{
		{Role: "user", Content: "Reply with one word: pong"},
	})
	if err != nil {
		return result, goerr.Wrap(err, "chat round-trip failed", goerr.V("model", name))
	}
	result.Reply = reply
	logger.Info("chat round-trip succeeded", "model", name, "reply", reply)

	if len(unhealthy) > 0 {
		return result, goerr.New("smoke test found unhealthy services",
			goerr.V("services", unhealthy))
	}
	return result, nil
}
