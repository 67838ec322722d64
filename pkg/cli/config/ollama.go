package config

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/Scarmonit/aistack/pkg/service/ollama"
)

// Ollama holds the local Ollama server configuration
type Ollama struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Flags returns CLI flags for Ollama configuration
func (o *Ollama) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "ollama-url",
			Usage:       "Ollama server base URL",
			Category:    "Ollama",
			Value:       ollama.DefaultBaseURL,
			Sources:     cli.EnvVars("AISTACK_OLLAMA_URL"),
			Destination: &o.BaseURL,
		},
		&cli.StringFlag{
			Name:        "model",
			Usage:       "Default chat model (first installed model when unset)",
			Category:    "Ollama",
			Sources:     cli.EnvVars("AISTACK_MODEL"),
			Destination: &o.Model,
		},
		&cli.DurationFlag{
			Name:        "ollama-timeout",
			Usage:       "HTTP timeout for Ollama requests (0 uses per-call defaults)",
			Category:    "Ollama",
			Sources:     cli.EnvVars("AISTACK_OLLAMA_TIMEOUT"),
			Destination: &o.Timeout,
		},
	}
}

// Configure creates the Ollama API client
func (o *Ollama) Configure() *ollama.Client {
	var opts []ollama.Option
	if o.Timeout > 0 {
		opts = append(opts, ollama.WithHTTPClient(&http.Client{Timeout: o.Timeout}))
	}
	return ollama.New(o.BaseURL, opts...)
}

// LogValue returns structured log value
func (o Ollama) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("base_url", o.BaseURL),
		slog.String("model", o.Model),
		slog.Duration("timeout", o.Timeout),
	)
}
