package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/Scarmonit/aistack/pkg/domain/model"
	"github.com/Scarmonit/aistack/pkg/service/ollama"
)

func newTestClient(t *testing.T, handler http.Handler) *ollama.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return ollama.New(server.URL)
}

func TestVersion(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.Method, http.MethodGet)
		gt.Equal(t, r.URL.Path, "/api/version")
		_, _ = w.Write([]byte(`{"version": "0.5.1"}`))
	}))

	version, err := client.Version(context.Background())
	gt.NoError(t, err)
	gt.Equal(t, version, "0.5.1")
}

func TestListModels(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.URL.Path, "/api/tags")
		_, _ = w.Write([]byte(`{"models": [
			{"name": "llama3.2:3b", "size": 2019393189},
			{"name": "qwen2.5-coder:7b", "size": 4683087332}
		]}`))
	}))

	models, err := client.ListModels(context.Background())
	gt.NoError(t, err)
	gt.Equal(t, models, []string{"llama3.2:3b", "qwen2.5-coder:7b"})
}

func TestPull(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.Method, http.MethodPost)
		gt.Equal(t, r.URL.Path, "/api/pull")

		var req struct {
			Name   string `json:"name"`
			Stream bool   `json:"stream"`
		}
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gt.Equal(t, req.Name, "llama3.2:3b")
		gt.B(t, req.Stream).False()

		_, _ = w.Write([]byte(`{"status": "success"}`))
	}))

	gt.NoError(t, client.Pull(context.Background(), "llama3.2:3b"))
}

func TestPullFailureStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "pulling manifest"}`))
	}))

	err := client.Pull(context.Background(), "llama3.2:3b")
	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("did not succeed")
}

func TestPullRequiresName(t *testing.T) {
	client := ollama.New("http://localhost:0")
	gt.Error(t, client.Pull(context.Background(), ""))
}

func TestChatCompletion(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.Method, http.MethodPost)
		gt.Equal(t, r.URL.Path, "/v1/chat/completions")

		var req struct {
			Model    string              `json:"model"`
			Messages []model.ChatMessage `json:"messages"`
			Stream   bool                `json:"stream"`
		}
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gt.Equal(t, req.Model, "llama3.2:3b")
		gt.Equal(t, len(req.Messages), 2)
		gt.Equal(t, req.Messages[0].Role, "system")
		gt.B(t, req.Stream).False()

		_, _ = w.Write([]byte(`{
			"choices": [
				{"message": {"role": "assistant", "content": "pong"}}
			]
		}`))
	}))

	reply, err := client.ChatCompletion(context.Background(), "llama3.2:3b", []model.ChatMessage{
		{Role: "system", Content: "You are a connectivity probe."},
		{Role: "user", Content: "ping"},
	})
	gt.NoError(t, err)
	gt.Equal(t, reply, "pong")
}

func TestChatCompletionNoChoices(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))

	_, err := client.ChatCompletion(context.Background(), "llama3.2:3b", []model.ChatMessage{
		{Role: "user", Content: "ping"},
	})
	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("no choices")
}

func TestChatCompletionValidation(t *testing.T) {
	client := ollama.New("http://localhost:0")

	_, err := client.ChatCompletion(context.Background(), "", []model.ChatMessage{{Role: "user", Content: "hi"}})
	gt.Error(t, err)

	_, err = client.ChatCompletion(context.Background(), "llama3.2:3b", nil)
	gt.Error(t, err)
}

func TestServerErrorSurfacesStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "model runner has unexpectedly stopped"}`))
	}))

	_, err := client.Version(context.Background())
	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("ollama returned an error")
}
