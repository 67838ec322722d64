package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/Scarmonit/aistack/pkg/domain/interfaces"
	"github.com/Scarmonit/aistack/pkg/domain/model"
	"github.com/Scarmonit/aistack/pkg/domain/types"
	"github.com/Scarmonit/aistack/pkg/service/stack"
	"github.com/Scarmonit/aistack/pkg/utils/async"
)

// DeployConfig holds configuration for the Deploy use case
type DeployConfig struct {
	envPath    string
	readyGrace time.Duration
}

// DeployOption is a functional option for configuring Deploy
type DeployOption func(*DeployConfig)

// WithEnvPath sets the compose .env file rendered before compose
// services start
func WithEnvPath(path string) DeployOption {
	return func(c *DeployConfig) {
		c.envPath = path
	}
}

// WithReadyGrace bounds how long each service may take to become healthy
func WithReadyGrace(grace time.Duration) DeployOption {
	return func(c *DeployConfig) {
		c.readyGrace = grace
	}
}

// Deploy orchestrates stack bring-up and tear-down
type Deploy struct {
	catalog  *stack.Catalog
	engine   *stack.Engine
	binaries *stack.BinaryManager
	prober   *stack.Prober
	ollama   interfaces.OllamaClient
	notifier interfaces.Notifier
	config   *DeployConfig
}

// NewDeploy creates a Deploy use case
func NewDeploy(
	catalog *stack.Catalog,
	engine *stack.Engine,
	binaries *stack.BinaryManager,
	prober *stack.Prober,
	ollama interfaces.OllamaClient,
	notifier interfaces.Notifier,
	opts ...DeployOption,
) *Deploy {
	config := &DeployConfig{}
	for _, opt := range opts {
		opt(config)
	}
	return &Deploy{
		catalog:  catalog,
		engine:   engine,
		binaries: binaries,
		prober:   prober,
		ollama:   ollama,
		notifier: notifier,
		config:   config,
	}
}

// Deploy brings up the named services, or the whole catalog when names is
// empty. Preflight failures marked fatal abort the run; individual service
// failures are logged and collected so the rest of the stack still starts.
func (u *Deploy) Deploy(ctx context.Context, names []string) error {
	logger := ctxlog.From(ctx)

	services, err := u.catalog.Select(names)
	if err != nil {
		return err
	}

	preflight := stack.NewPreflight(u.engine)
	checks := preflight.Run(ctx, services)
	if fatal := stack.FatalFailures(checks); len(fatal) > 0 {
		details := make([]string, 0, len(fatal))
		for _, check := range fatal {
			details = append(details, fmt.Sprintf("%s: %s", check.Name, check.Detail))
		}
		u.notify(ctx, fmt.Sprintf("deploy aborted: %s", strings.Join(details, "; ")))
		return goerr.New("preflight checks failed",
			goerr.V("checks", strings.Join(details, "; ")))
	}

	if err := u.renderEnvFile(ctx, services); err != nil {
		return err
	}

	var failed []string
	for _, svc := range services {
		if err := u.startService(ctx, svc); err != nil {
			logger.Error("failed to start service", "service", svc.Name, "error", err)
			failed = append(failed, svc.Name.String())
			continue
		}
		if err := u.prober.WaitReady(ctx, svc, u.config.readyGrace); err != nil {
			logger.Error("service did not become healthy", "service", svc.Name, "error", err)
			failed = append(failed, svc.Name.String())
			continue
		}
		u.ensureModels(ctx, svc)
	}

	if len(failed) > 0 {
		u.notify(ctx, fmt.Sprintf("deploy failed: %d of %d services (%s)",
			len(failed), len(services), strings.Join(failed, ", ")))
		return goerr.New("deploy finished with failures",
			goerr.V("failed", failed), goerr.V("total", len(services)))
	}

	u.notify(ctx, fmt.Sprintf("deploy finished: %d services healthy", len(services)))
	logger.Info("deploy finished", "services", len(services))
	return nil
}

// Down stops the named services, or everything, in reverse catalog order.
// Stop failures are logged and collected instead of halting the teardown.
func (u *Deploy) Down(ctx context.Context, names []string) error {
	logger := ctxlog.From(ctx)

	services, err := u.catalog.Select(names)
	if err != nil {
		return err
	}

	var failed []string
	for i := len(services) - 1; i >= 0; i-- {
		svc := services[i]
		if err := u.stopService(ctx, svc); err != nil {
			logger.Error("failed to stop service", "service", svc.Name, "error", err)
			failed = append(failed, svc.Name.String())
			continue
		}
		logger.Info("stopped service", "service", svc.Name)
	}

	if len(failed) > 0 {
		return goerr.New("teardown finished with failures", goerr.V("failed", failed))
	}
	return nil
}

func (u *Deploy) startService(ctx context.Context, svc *model.Service) error {
	switch svc.Kind {
	case types.ServiceKindDocker:
		return u.engine.StartDocker(ctx, svc)
	case types.ServiceKindCompose:
		return u.engine.ComposeUp(ctx, svc)
	case types.ServiceKindBinary:
		return u.binaries.Start(ctx, svc)
	default:
		return goerr.New("unknown service kind",
			goerr.V("service", svc.Name), goerr.V("kind", svc.Kind))
	}
}

func (u *Deploy) stopService(ctx context.Context, svc *model.Service) error {
	switch svc.Kind {
	case types.ServiceKindDocker:
		return u.engine.StopDocker(ctx, svc)
	case types.ServiceKindCompose:
		return u.engine.ComposeDown(ctx, svc)
	case types.ServiceKindBinary:
		return u.binaries.Stop(ctx, svc)
	default:
		return goerr.New("unknown service kind",
			goerr.V("service", svc.Name), goerr.V("kind", svc.Kind))
	}
}

// renderEnvFile merges generated compose secrets into the .env file when a
// compose service is being deployed. Existing values always win, so
// secrets are generated exactly once.
func (u *Deploy) renderEnvFile(ctx context.Context, services []*model.Service) error {
	if u.config.envPath == "" {
		return nil
	}

	hasCompose := false
	for _, svc := range services {
		if svc.Kind == types.ServiceKindCompose {
			hasCompose = true
			break
		}
	}
	if !hasCompose {
		return nil
	}

	defaults := map[string]string{
		"SECRET_KEY":        uuid.NewString(),
		"CIPHER_KEY_SALT":   uuid.NewString(),
		"DATABASE_PASSWORD": uuid.NewString(),
	}
	if _, err := stack.MergeEnvFile(u.config.envPath, defaults); err != nil {
		return goerr.Wrap(err, "failed to render compose env file",
			goerr.V("path", u.config.envPath))
	}

	ctxlog.From(ctx).Debug("compose env file ready", "path", u.config.envPath)
	return nil
}

// ensureModels pulls the models the catalog pins for this service. Pull
// failures are warnings: the server is already up and serving.
func (u *Deploy) ensureModels(ctx context.Context, svc *model.Service) {
	if len(svc.Models) == 0 || u.ollama == nil {
		return
	}
	logger := ctxlog.From(ctx)

	installed := map[string]bool{}
	if models, err := u.ollama.ListModels(ctx); err == nil {
		for _, name := range models {
			installed[name] = true
		}
	} else {
		logger.Warn("could not list installed models", "service", svc.Name, "error", err)
	}

	for _, name := range svc.Models {
		if installed[name] {
			logger.Debug("model already installed", "model", name)
			continue
		}
		if err := u.ollama.Pull(ctx, name); err != nil {
			logger.Warn("failed to pull model", "model", name, "error", err)
		}
	}
}

func (u *Deploy) notify(ctx context.Context, message string) {
	async.Dispatch(ctx, func(ctx context.Context) error {
		return u.notifier.Post(ctx, message)
	})
}
