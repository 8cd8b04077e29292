// Package loader is the public entry point for loading modules out of a
// source container: it discovers candidates, filters them, orders them by
// declared priority, and hands the batch to the admission pipeline.
package loader

import (
	"context"
	"log/slog"
	"slices"

	"github.com/Vilsol/slox"
	"github.com/ostiary/ostiary/pkg/admission"
	"github.com/ostiary/ostiary/pkg/lifecycle"
	"github.com/ostiary/ostiary/pkg/ostiary"
	"github.com/ostiary/ostiary/pkg/promise"
	"github.com/ostiary/ostiary/pkg/source"
	"github.com/samber/lo"
	"github.com/samber/oops"
	"github.com/sourcegraph/conc/iter"
)

// Predicate filters discovered candidates. Only candidates for which it
// returns true are admitted. A nil predicate keeps everything.
type Predicate func(node source.Node) bool

// Loader loads modules from a source into a lifecycle registry.
type Loader struct {
	registry *lifecycle.Registry
	source   source.Source
	pipeline *admission.Pipeline
}

// New creates a loader over the given registry and source.
func New(registry *lifecycle.Registry, src source.Source) *Loader {
	return &Loader{
		registry: registry,
		source:   src,
		pipeline: admission.NewPipeline(registry, src),
	}
}

// LoadChildren loads the immediate children of root. The returned future
// resolves true only if every filtered candidate resolved; it never rejects.
func (l *Loader) LoadChildren(ctx context.Context, root string, predicate Predicate) *promise.Future[bool] {
	return l.load(ctx, root, false, predicate)
}

// LoadDescendants loads the full transitive descendants of root.
func (l *Loader) LoadDescendants(ctx context.Context, root string, predicate Predicate) *promise.Future[bool] {
	return l.load(ctx, root, true, predicate)
}

func (l *Loader) load(ctx context.Context, root string, recursive bool, predicate Predicate) *promise.Future[bool] {
	candidates, err := l.source.Children(ctx, root, recursive)
	if err != nil {
		slox.Warn(ctx, "failed discovering modules",
			slog.String("root", root),
			slog.Any("error", err),
		)

		return promise.Rejected[bool](oops.
			With("root", root).
			Wrapf(err, "failed to discover modules under %q", root))
	}

	candidates = lo.Filter(candidates, func(node source.Node, _ int) bool {
		if !l.source.IsModule(ctx, node) {
			return false
		}
		return predicate == nil || predicate(node)
	})

	ordered := l.orderByPriority(ctx, candidates)

	return l.pipeline.Admit(ctx, ordered)
}

// orderByPriority probes each candidate's declared priority and returns the
// candidates sorted by priority, highest first, discovery order on ties.
// Probing is a tolerant, side-effect-free pass: a candidate that fails to
// resolve here simply keeps the default priority and is still admitted (and
// re-resolved, authoritatively) by the pipeline.
func (l *Loader) orderByPriority(ctx context.Context, candidates []source.Node) []source.Node {
	stages := l.registry.RegisteredStages()

	priorities := iter.Map(candidates, func(node *source.Node) int {
		handle, err := l.source.Resolve(ctx, *node, stages)
		if err != nil {
			slox.Debug(ctx, "priority probe failed, assuming default",
				slog.String("module", node.Name()),
				slog.Any("error", err),
			)

			return ostiary.DefaultPriority
		}

		return handle.Priority()
	})

	type ranked struct {
		node     source.Node
		priority int
	}

	order := make([]ranked, len(candidates))
	for i, node := range candidates {
		order[i] = ranked{node: node, priority: priorities[i]}
	}

	slices.SortStableFunc(order, func(a, b ranked) int {
		return b.priority - a.priority
	})

	return lo.Map(order, func(r ranked, _ int) source.Node {
		return r.node
	})
}
