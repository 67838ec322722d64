package stack_test

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/Scarmonit/aistack/pkg/domain/interfaces"
	"github.com/Scarmonit/aistack/pkg/domain/model"
	"github.com/Scarmonit/aistack/pkg/domain/types"
	"github.com/Scarmonit/aistack/pkg/service/stack"
)

func checkByName(results []stack.CheckResult, name string) *stack.CheckResult {
	for i := range results {
		if results[i].Name == name {
			return &results[i]
		}
	}
	return nil
}

func TestFatalFailures(t *testing.T) {
	results := []stack.CheckResult{
		{Name: "docker-binary", OK: true, Fatal: true},
		{Name: "docker-daemon", OK: false, Fatal: true, Detail: "daemon down"},
		{Name: "memory", OK: false, Fatal: false, Detail: "8 GB total"},
		{Name: "port-3000", OK: true},
	}

	fatal := stack.FatalFailures(results)
	gt.Equal(t, len(fatal), 1)
	gt.Equal(t, fatal[0].Name, "docker-daemon")
}

func TestPreflightSkipsDockerChecksForBinaryServices(t *testing.T) {
	svc := &model.Service{
		Name:   "ollama",
		Kind:   types.ServiceKindBinary,
		Binary: &model.BinarySpec{URL: "https://ollama.com/download/ollama-linux-amd64", Command: "ollama"},
		Ports:  []string{"11434"},
	}

	preflight := stack.NewPreflight(stack.NewEngine(newFakeRunner(), ""))
	results := preflight.Run(context.Background(), []*model.Service{svc})

	gt.V(t, checkByName(results, "docker-binary")).Nil()
	gt.V(t, checkByName(results, "docker-daemon")).Nil()
	gt.V(t, checkByName(results, "memory")).NotNil()
	gt.V(t, checkByName(results, "disk")).NotNil()
	gt.V(t, checkByName(results, "port-11434")).NotNil()
}

func TestPreflightRunsDockerChecksForDockerServices(t *testing.T) {
	runner := newFakeRunner()
	runner.respond("version --format {{.Server.Version}}",
		&interfaces.RunResult{Stdout: "27.3.1\n"})

	preflight := stack.NewPreflight(stack.NewEngine(runner, ""))
	results := preflight.Run(context.Background(), []*model.Service{dockerService()})

	gt.V(t, checkByName(results, "docker-binary")).NotNil()
	daemon := checkByName(results, "docker-daemon")
	gt.V(t, daemon).NotNil()
	gt.B(t, daemon.OK).True()
	gt.S(t, daemon.Detail).Contains("27.3.1")
}

func TestPreflightBusyPortIsWarning(t *testing.T) {
	listener, err := net.Listen("tcp", ":0")
	gt.NoError(t, err)
	defer func() { _ = listener.Close() }()
	port := listener.Addr().(*net.TCPAddr).Port

	svc := &model.Service{
		Name:   "ollama",
		Kind:   types.ServiceKindBinary,
		Binary: &model.BinarySpec{URL: "https://ollama.com/download/ollama-linux-amd64", Command: "ollama"},
		Ports:  []string{fmt.Sprintf("%d", port)},
	}

	preflight := stack.NewPreflight(stack.NewEngine(newFakeRunner(), ""))
	results := preflight.Run(context.Background(), []*model.Service{svc})

	check := checkByName(results, fmt.Sprintf("port-%d", port))
	gt.V(t, check).NotNil()
	gt.B(t, check.OK).False()
	gt.B(t, check.Fatal).False()
	gt.S(t, check.Detail).Contains("already in use")
	gt.Equal(t, len(stack.FatalFailures(results)), 0)
}

func TestPreflightInvalidPortIsFatal(t *testing.T) {
	svc := &model.Service{
		Name:   "broken",
		Kind:   types.ServiceKindBinary,
		Binary: &model.BinarySpec{URL: "https://example.com/broken", Command: "broken"},
		Ports:  []string{"not-a-port"},
	}

	preflight := stack.NewPreflight(stack.NewEngine(newFakeRunner(), ""))
	results := preflight.Run(context.Background(), []*model.Service{svc})

	check := checkByName(results, "port-broken")
	gt.V(t, check).NotNil()
	gt.B(t, check.Fatal).True()
	gt.Equal(t, len(stack.FatalFailures(results)), 1)
}
