package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/Scarmonit/aistack/pkg/domain/interfaces"
	"github.com/Scarmonit/aistack/pkg/domain/model"
)

const (
	// DefaultBaseURL is where a locally deployed Ollama server listens
	DefaultBaseURL = "http://localhost:11434"

	defaultTimeout = 30 * time.Second

	// CPU-bound generation on large models is slow
	chatTimeout = 5 * time.Minute

	// model pulls download multi-gigabyte blobs
	pullTimeout = 30 * time.Minute

	errorBodyLimit = 2048
)

// Client talks to a local Ollama server over its HTTP API
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New creates a Client for the server at baseURL. An empty baseURL falls
// back to DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// withDeadline applies a default timeout when the caller supplied none
func withDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to create request", goerr.V("path", path))
	}
	return c.send(req, path, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return goerr.Wrap(err, "failed to encode request body", goerr.V("path", path))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return goerr.Wrap(err, "failed to create request", goerr.V("path", path))
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, path, out)
}

func (c *Client) send(req *http.Request, path string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "ollama request failed",
			goerr.V("path", path), goerr.V("base_url", c.baseURL))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return goerr.New("ollama returned an error",
			goerr.V("path", path),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", strings.TrimSpace(string(body))),
		)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return goerr.Wrap(err, "failed to decode ollama response", goerr.V("path", path))
	}
	return nil
}

type versionResponse struct {
	Version string `json:"version"`
}

// Version implements interfaces.OllamaClient
func (c *Client) Version(ctx context.Context) (string, error) {
	ctx, cancel := withDeadline(ctx, defaultTimeout)
	defer cancel()

	var version versionResponse
	if err := c.getJSON(ctx, "/api/version", &version); err != nil {
		return "", err
	}
	return version.Version, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels implements interfaces.OllamaClient
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := withDeadline(ctx, defaultTimeout)
	defer cancel()

	var tags tagsResponse
	if err := c.getJSON(ctx, "/api/tags", &tags); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

type pullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

type pullResponse struct {
	Status string `json:"status"`
}

// Pull implements interfaces.OllamaClient. The request blocks until the
// model is fully downloaded.
func (c *Client) Pull(ctx context.Context, name string) error {
	if name == "" {
		return goerr.New("model name is required")
	}

	ctx, cancel := withDeadline(ctx, pullTimeout)
	defer cancel()

	logger := ctxlog.From(ctx)
	logger.Info("pulling ollama model", "model", name)
	started := time.Now()

	var result pullResponse
	if err := c.postJSON(ctx, "/api/pull", pullRequest{Name: name, Stream: false}, &result); err != nil {
		return goerr.Wrap(err, "failed to pull model", goerr.V("model", name))
	}
	if result.Status != "success" {
		return goerr.New("model pull did not succeed",
			goerr.V("model", name), goerr.V("status", result.Status))
	}

	logger.Info("pulled ollama model", "model", name, "elapsed", time.Since(started))
	return nil
}

type chatRequest struct {
	Model    string              `json:"model"`
	Messages []model.ChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message model.ChatMessage `json:"message"`
	} `json:"choices"`
}

// ChatCompletion implements interfaces.OllamaClient using the
// OpenAI-compatible endpoint
func (c *Client) ChatCompletion(ctx context.Context, modelName string, messages []model.ChatMessage) (string, error) {
	if modelName == "" {
		return "", goerr.New("model name is required")
	}
	if len(messages) == 0 {
		return "", goerr.New("at least one message is required")
	}

	ctx, cancel := withDeadline(ctx, chatTimeout)
	defer cancel()

	var completion chatResponse
	if err := c.postJSON(ctx, "/v1/chat/completions", chatRequest{
		Model:    modelName,
		Messages: messages,
		Stream:   false,
	}, &completion); err != nil {
		return "", goerr.Wrap(err, "chat completion failed", goerr.V("model", modelName))
	}

	if len(completion.Choices) == 0 {
		return "", goerr.New("chat completion returned no choices", goerr.V("model", modelName))
	}
	return completion.Choices[0].Message.Content, nil
}

var _ interfaces.OllamaClient = (*Client)(nil)
