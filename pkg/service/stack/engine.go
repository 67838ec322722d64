package stack

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/Scarmonit/aistack/pkg/domain/interfaces"
	"github.com/Scarmonit/aistack/pkg/domain/model"
)

// Engine drives the docker CLI through a Runner so tests can fake it
type Engine struct {
	runner      interfaces.Runner
	composeFile string
}

// NewEngine creates an Engine. composeFile is only consulted for compose
// kind services and may be empty when none are deployed.
func NewEngine(runner interfaces.Runner, composeFile string) *Engine {
	return &Engine{
		runner:      runner,
		composeFile: composeFile,
	}
}

func (e *Engine) docker(ctx context.Context, args ...string) (*interfaces.RunResult, error) {
	result, err := e.runner.Run(ctx, "docker", args...)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func commandFailed(result *interfaces.RunResult, args []string) error {
	return goerr.New("docker command failed",
		goerr.V("args", args),
		goerr.V("exit_code", result.ExitCode),
		goerr.V("stderr", strings.TrimSpace(result.Stderr)),
	)
}

// Version returns the docker server version
func (e *Engine) Version(ctx context.Context) (string, error) {
	args := []string{"version", "--format", "{{.Server.Version}}"}
	result, err := e.docker(ctx, args...)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", goerr.Wrap(commandFailed(result, args), "docker daemon is not reachable")
	}
	return strings.TrimSpace(result.Stdout), nil
}

// ContainerState returns the state of the named container ("running",
// "exited", ...) or an empty string when no such container exists. Other
// inspect failures, such as an unreachable daemon, are errors.
func (e *Engine) ContainerState(ctx context.Context, name string) (string, error) {
	args := []string{"inspect", "--format", "{{.State.Status}}", name}
	result, err := e.docker(ctx, args...)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		// docker reports a missing container as "Error: No such object: <name>"
		if strings.Contains(result.Stderr, "No such object") {
			return "", nil
		}
		return "", goerr.Wrap(commandFailed(result, args), "failed to inspect container",
			goerr.V("container", name))
	}
	return strings.TrimSpace(result.Stdout), nil
}

// StartDocker ensures the container for a docker kind service is running:
// a running container is left alone, a stopped one is restarted, and a
// missing one is created with the catalog's ports, env and volumes.
func (e *Engine) StartDocker(ctx context.Context, svc *model.Service) error {
	logger := ctxlog.From(ctx)
	name := svc.ContainerName()

	state, err := e.ContainerState(ctx, name)
	if err != nil {
		return err
	}

	switch state {
	case "running":
		logger.Info("container already running", "service", svc.Name, "container", name)
		return nil

	case "":
		args, err := dockerRunArgs(svc)
		if err != nil {
			return err
		}
		logger.Info("creating container", "service", svc.Name, "image", svc.Image)
		result, err := e.docker(ctx, args...)
		if err != nil {
			return err
		}
		if result.ExitCode != 0 {
			return goerr.Wrap(commandFailed(result, args), "failed to create container",
				goerr.V("service", svc.Name))
		}
		return nil

	default:
		logger.Info("starting stopped container", "service", svc.Name, "state", state)
		args := []string{"start", name}
		result, err := e.docker(ctx, args...)
		if err != nil {
			return err
		}
		if result.ExitCode != 0 {
			return goerr.Wrap(commandFailed(result, args), "failed to start container",
				goerr.V("service", svc.Name))
		}
		return nil
	}
}

func dockerRunArgs(svc *model.Service) ([]string, error) {
	mappings, err := svc.PortMappings()
	if err != nil {
		return nil, err
	}

	args := []string{"run", "-d", "--name", svc.ContainerName(), "--restart", "unless-stopped"}
	for _, mapping := range mappings {
		args = append(args, "-p", fmt.Sprintf("%d:%d", mapping.Host, mapping.Container))
	}

	envKeys := make([]string, 0, len(svc.Env))
	for key := range svc.Env {
		envKeys = append(envKeys, key)
	}
	sort.Strings(envKeys)
	for _, key := range envKeys {
		args = append(args, "-e", fmt.Sprintf("%s=%s", key, svc.Env[key]))
	}

	for _, volume := range svc.Volumes {
		args = append(args, "-v", volume)
	}

	args = append(args, svc.Image)
	args = append(args, svc.Args...)
	return args, nil
}

// StopDocker stops and removes the service's container. A missing
// container is not an error.
func (e *Engine) StopDocker(ctx context.Context, svc *model.Service) error {
	logger := ctxlog.From(ctx)
	name := svc.ContainerName()

	state, err := e.ContainerState(ctx, name)
	if err != nil {
		return err
	}
	if state == "" {
		logger.Debug("container does not exist", "service", svc.Name, "container", name)
		return nil
	}

	if state == "running" {
		args := []string{"stop", name}
		result, err := e.docker(ctx, args...)
		if err != nil {
			return err
		}
		if result.ExitCode != 0 {
			return goerr.Wrap(commandFailed(result, args), "failed to stop container",
				goerr.V("service", svc.Name))
		}
	}

	args := []string{"rm", name}
	result, err := e.docker(ctx, args...)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return goerr.Wrap(commandFailed(result, args), "failed to remove container",
			goerr.V("service", svc.Name))
	}

	logger.Info("removed container", "service", svc.Name, "container", name)
	return nil
}

// ComposeUp starts a compose kind service from the configured compose file
func (e *Engine) ComposeUp(ctx context.Context, svc *model.Service) error {
	if e.composeFile == "" {
		return goerr.New("compose file is not configured", goerr.V("service", svc.Name))
	}

	args := []string{"compose", "-f", e.composeFile, "up", "-d", svc.ComposeService}
	result, err := e.docker(ctx, args...)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return goerr.Wrap(commandFailed(result, args), "failed to start compose service",
			goerr.V("service", svc.Name))
	}

	ctxlog.From(ctx).Info("started compose service",
		"service", svc.Name, "compose_service", svc.ComposeService)
	return nil
}

// ComposeDown stops and removes a compose kind service
func (e *Engine) ComposeDown(ctx context.Context, svc *model.Service) error {
	if e.composeFile == "" {
		return goerr.New("compose file is not configured", goerr.V("service", svc.Name))
	}

	args := []string{"compose", "-f", e.composeFile, "rm", "--stop", "--force", svc.ComposeService}
	result, err := e.docker(ctx, args...)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return goerr.Wrap(commandFailed(result, args), "failed to stop compose service",
			goerr.V("service", svc.Name))
	}
	return nil
}
