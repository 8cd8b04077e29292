// Package admission orchestrates the batch lifecycle protocol: resolving an
// already-ordered set of candidate modules, registering them, and dispatching
// their stages phase by phase so that every module finishes one stage before
// any module begins the next.
package admission

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Vilsol/slox"
	"github.com/knadh/koanf/v2"
	"github.com/ostiary/ostiary/pkg/lifecycle"
	"github.com/ostiary/ostiary/pkg/ostiary"
	"github.com/ostiary/ostiary/pkg/promise"
	"github.com/ostiary/ostiary/pkg/source"
	"github.com/samber/do/v2"
	"github.com/samber/oops"
)

// Resolver loads one candidate node into a lifecycle handle. It is the
// authoritative resolution used for admission, as opposed to the loader's
// tolerant priority probe.
type Resolver interface {
	Resolve(ctx context.Context, node source.Node, stages []string) (*ostiary.Handle, error)
}

// Pipeline admits batches of modules into a lifecycle registry.
type Pipeline struct {
	registry *lifecycle.Registry
	resolver Resolver
}

// NewPipeline creates a pipeline bound to the given registry and resolver.
func NewPipeline(registry *lifecycle.Registry, resolver Resolver) *Pipeline {
	return &Pipeline{
		registry: registry,
		resolver: resolver,
	}
}

type admitted struct {
	name   string
	handle *ostiary.Handle
}

// configure drives the module's Configurable surface when both the interface
// and a koanf instance through the context injector are present.
func (p *Pipeline) configure(ctx context.Context, handle *ostiary.Handle) error {
	configurable, ok := handle.Value().(ostiary.Configurable)
	if !ok || !ostiary.HasInjector(ctx) {
		return nil
	}

	k, err := do.Invoke[*koanf.Koanf](ostiary.GetInjector(ctx))
	if err != nil {
		return nil
	}

	return configurable.LoadConfig(k) //nolint:wrapcheck
}

// Admit resolves and admits every node, in the caller-supplied order. When a
// koanf instance is available through the context injector, Configurable
// modules load their configuration before dispatch. A node that fails to
// resolve or configure is skipped and degrades the aggregate outcome to
// false, but never aborts the rest of the batch. Stage failures are recorded
// on their outcomes and surface only through WaitFor; they do not fail the
// batch. The aggregate settles after every admitted module's start outcome
// has settled.
func (p *Pipeline) Admit(ctx context.Context, nodes []source.Node) *promise.Future[bool] {
	began := time.Now()
	stages := p.registry.RegisteredStages()

	batch := make([]admitted, 0, len(nodes))
	var failed []string

	for _, node := range nodes {
		handle, err := p.resolver.Resolve(ctx, node, stages)
		if err != nil {
			slox.Warn(ctx, "failed resolving module",
				slog.String("module", node.Name()),
				slog.Any("error", oops.Code(lifecycle.CodeResolution).Wrapf(err, "failed to resolve module %q", node.Name())),
			)

			failed = append(failed, node.Name())
			continue
		}

		p.registry.Attach(handle.Name(), handle)
		batch = append(batch, admitted{name: handle.Name(), handle: handle})
	}

	// Barrier dispatch: one full pass of the batch per dispatch stage, so no
	// module's start begins before every module's init has settled.
	// Signal-bound stages run on their signal, not here. Configurable modules
	// load their file settings right before their first stage; the lookup is
	// per module, so configuration provided by an earlier module's init in the
	// same pass is already visible. A config failure skips the module's stages
	// and degrades the batch, like a resolution failure.
	configured := make(map[string]bool, len(batch))
	skipped := make(map[string]bool)

	for _, stage := range p.registry.DispatchStages() {
		for _, a := range batch {
			if skipped[a.name] || !a.handle.Defines(stage) {
				continue
			}

			if !configured[a.name] {
				configured[a.name] = true

				if err := p.configure(ctx, a.handle); err != nil {
					slox.Warn(ctx, "failed configuring module",
						slog.String("module", a.name),
						slog.Any("error", oops.Code(lifecycle.CodeResolution).Wrapf(err, "failed to configure module %q", a.name)),
					)

					skipped[a.name] = true
					failed = append(failed, a.name)
					continue
				}
			}

			p.registry.Invoke(ctx, a.name, stage)
		}
	}

	var startOutcomes []*promise.Future[any]
	for _, a := range batch {
		if !skipped[a.name] && a.handle.Defines(ostiary.StageStart) {
			startOutcomes = append(startOutcomes, p.registry.WaitFor(a.name, ostiary.StageStart))
		}
	}

	aggregate := promise.New[bool]()
	promise.All(startOutcomes...).OnSettle(func(_ []any, _ error) {
		if len(failed) > 0 {
			slox.Warn(ctx, "module batch degraded by resolution failures",
				slog.String("failed", strings.Join(failed, ", ")),
				slog.Int("admitted", len(batch)),
			)

			aggregate.Resolve(false)
			return
		}

		slox.Info(ctx, "admitted module batch",
			slog.Int("count", len(batch)),
			slog.Duration("elapsed", time.Since(began)),
		)

		aggregate.Resolve(true)
	})

	return aggregate
}
