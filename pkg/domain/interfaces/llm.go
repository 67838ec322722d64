package interfaces

import (
	"context"

	"github.com/Scarmonit/aistack/pkg/domain/model"
)

// OllamaClient defines the interface for the local Ollama server
type OllamaClient interface {
	// Version returns the server version string
	Version(ctx context.Context) (string, error)

	// ListModels returns the names of installed models
	ListModels(ctx context.Context) ([]string, error)

	// Pull downloads a model, blocking until complete
	Pull(ctx context.Context, name string) error

	// ChatCompletion sends a chat exchange and returns the assistant reply
	ChatCompletion(ctx context.Context, modelName string, messages []model.ChatMessage) (string, error)
}
