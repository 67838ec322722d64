package usecase

import (
	"context"
	"time"

	"github.com/Scarmonit/aistack/pkg/domain/model"
	"github.com/Scarmonit/aistack/pkg/service/stack"
)

// Status collects the one-shot health picture of the stack
type Status struct {
	catalog *stack.Catalog
	engine  *stack.Engine
	prober  *stack.Prober
}

// NewStatus creates a Status use case
func NewStatus(catalog *stack.Catalog, engine *stack.Engine, prober *stack.Prober) *Status {
	return &Status{
		catalog: catalog,
		engine:  engine,
		prober:  prober,
	}
}

// Collect probes the named services (or all of them) and gathers host
// facts into one status snapshot
func (u *Status) Collect(ctx context.Context, names []string) (*model.StackStatus, error) {
	services, err := u.catalog.Select(names)
	if err != nil {
		return nil, err
	}

	return &model.StackStatus{
		Services:  u.prober.ProbeAll(ctx, services),
		Host:      stack.CollectHostFacts(ctx, u.engine),
		CheckedAt: time.Now(),
	}, nil
}
