package usecase_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/Scarmonit/aistack/pkg/domain/interfaces"
	"github.com/Scarmonit/aistack/pkg/domain/model"
	"github.com/Scarmonit/aistack/pkg/domain/types"
	"github.com/Scarmonit/aistack/pkg/service/stack"
	"github.com/Scarmonit/aistack/pkg/usecase"
)

// scriptedRunner fakes the docker CLI for host fact collection
type scriptedRunner struct {
	version string
}

func (r *scriptedRunner) Run(_ context.Context, name string, args ...string) (*interfaces.RunResult, error) {
	if name == "docker" && len(args) > 0 && args[0] == "version" {
		return &interfaces.RunResult{Stdout: r.version + "\n"}, nil
	}
	return &interfaces.RunResult{ExitCode: 1, Stderr: "unexpected command"}, nil
}

func TestStatusCollect(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	catalog := &stack.Catalog{Services: []*model.Service{
		{Name: "ollama", Kind: types.ServiceKindBinary, HealthURL: healthy.URL,
			Binary: &model.BinarySpec{URL: "https://example.com/ollama"}},
		{Name: "flowise", Kind: types.ServiceKindDocker, Image: "flowiseai/flowise",
			HealthURL: down.URL},
	}}

	engine := stack.NewEngine(&scriptedRunner{version: "27.1.1"}, "")
	statusUC := usecase.NewStatus(catalog, engine, stack.NewProber())

	status, err := statusUC.Collect(context.Background(), nil)
	gt.NoError(t, err)

	gt.A(t, status.Services).Length(2)
	byName := map[types.ServiceName]model.ServiceHealth{}
	for _, svc := range status.Services {
		byName[svc.Name] = svc
	}
	gt.Equal(t, byName["ollama"].State, types.HealthStateHealthy)
	gt.Equal(t, byName["flowise"].State, types.HealthStateUnhealthy)

	gt.Equal(t, status.Host.DockerVersion, "27.1.1")
	gt.B(t, status.CheckedAt.IsZero()).False()
	gt.B(t, status.Healthy()).False()
}

func TestStatusCollectUnknownService(t *testing.T) {
	catalog := &stack.Catalog{Services: []*model.Service{
		{Name: "ollama", Kind: types.ServiceKindBinary,
			Binary: &model.BinarySpec{URL: "https://example.com/ollama"}},
	}}

	engine := stack.NewEngine(&scriptedRunner{version: "27.1.1"}, "")
	statusUC := usecase.NewStatus(catalog, engine, stack.NewProber())

	_, err := statusUC.Collect(context.Background(), []string{"no-such-service"})
	gt.Error(t, err)
}
