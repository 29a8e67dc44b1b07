// Package peaexec supplies reference pea.Executor adapters. Apart from
// the dependency-free Echo, each one is grounded on a concrete
// storage/transport dependency already present in this module's go.mod,
// so the Executor contract (§6 of
// SPEC_FULL.md) is exercised against real collaborators rather than
// left purely theoretical.
package peaexec

import (
	"context"

	"github.com/oriys/peapod/internal/pea"
)

func init() {
	pea.RegisterExecutor("echo", newEcho)
}

// Echo is the simplest possible Executor: Call is a no-op, Save and
// Close never fail. Suited to tests and to a uses_internal fallback
// target, since it cannot itself fail to load.
type Echo struct {
	owner interface{}
}

func newEcho(spec pea.ExecutorSpec) (pea.Executor, error) {
	return &Echo{}, nil
}

func (e *Echo) Attach(p *pea.Pea) { e.owner = p }
func (e *Echo) Call(ctx context.Context, requestType string, req pea.Request) error {
	return nil
}
func (e *Echo) Save(ctx context.Context) error  { return nil }
func (e *Echo) Close(ctx context.Context) error { return nil }
