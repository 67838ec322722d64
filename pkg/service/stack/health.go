package stack

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Scarmonit/aistack/pkg/domain/model"
	"github.com/Scarmonit/aistack/pkg/domain/types"
)

const (
	probeTimeout      = 5 * time.Second
	probeConcurrency  = 4
	waitInitialDelay  = 500 * time.Millisecond
	waitMaxDelay      = 5 * time.Second
	waitDelayGrowth   = 1.5
	defaultReadyGrace = 2 * time.Minute
)

// Prober checks service health endpoints
type Prober struct {
	httpClient *http.Client
}

// ProberOption configures a Prober
type ProberOption func(*Prober)

// WithProbeClient overrides the probe HTTP client
func WithProbeClient(httpClient *http.Client) ProberOption {
	return func(p *Prober) {
		p.httpClient = httpClient
	}
}

// NewProber creates a Prober
func NewProber(opts ...ProberOption) *Prober {
	p := &Prober{
		httpClient: &http.Client{Timeout: probeTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe checks one service's health URL. Services without a health URL
// report an unknown state.
func (p *Prober) Probe(ctx context.Context, svc *model.Service) model.ServiceHealth {
	health := model.ServiceHealth{
		Name:      svc.Name,
		State:     types.HealthStateUnknown,
		CheckedAt: time.Now(),
	}

	if svc.HealthURL == "" {
		health.Detail = "no health URL configured"
		return health
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, svc.HealthURL, nil)
	if err != nil {
		health.State = types.HealthStateUnhealthy
		health.Detail = err.Error()
		return health
	}

	started := time.Now()
	resp, err := p.httpClient.Do(req)
	health.Latency = time.Since(started)
	if err != nil {
		health.State = types.HealthStateUnhealthy
		health.Detail = "connection failed"
		return health
	}
	defer resp.Body.Close()

	// redirects count as alive: several UIs bounce / to a login page
	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		health.State = types.HealthStateHealthy
		return health
	}

	health.State = types.HealthStateUnhealthy
	health.Detail = fmt.Sprintf("HTTP %d", resp.StatusCode)
	return health
}

// ProbeAll probes every service concurrently, preserving input order
func (p *Prober) ProbeAll(ctx context.Context, services []*model.Service) []model.ServiceHealth {
	results := make([]model.ServiceHealth, len(services))

	eg, ctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, probeConcurrency)
	for i, svc := range services {
		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = p.Probe(ctx, svc)
			return nil
		})
	}
	_ = eg.Wait()

	return results
}

// WaitReady polls the service's health URL with growing delays until it
// reports healthy or the grace period runs out. Services without a health
// URL are considered ready immediately.
func (p *Prober) WaitReady(ctx context.Context, svc *model.Service, grace time.Duration) error {
	if svc.HealthURL == "" {
		return nil
	}
	if grace <= 0 {
		grace = defaultReadyGrace
	}

	logger := ctxlog.From(ctx)
	deadline := time.Now().Add(grace)
	delay := waitInitialDelay
	started := time.Now()

	var last model.ServiceHealth
	for {
		last = p.Probe(ctx, svc)
		if last.State.IsHealthy() {
			logger.Info("service ready", "service", svc.Name, "elapsed", time.Since(started))
			return nil
		}
		if time.Now().Add(delay).After(deadline) {
			break
		}

		select {
		case <-ctx.Done():
			return goerr.Wrap(ctx.Err(), "canceled while waiting for service",
				goerr.V("service", svc.Name))
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * waitDelayGrowth)
		if delay > waitMaxDelay {
			delay = waitMaxDelay
		}
	}

	return goerr.New("service did not become healthy",
		goerr.V("service", svc.Name),
		goerr.V("health_url", svc.HealthURL),
		goerr.V("waited", grace),
		goerr.V("last_state", last.State),
		goerr.V("last_detail", last.Detail),
	)
}
