// Package lifecycle implements the stage registry at the core of ostiary: the
// ordered list of lifecycle stage names, per-module stage outcomes, the named
// dependency-wait protocol, and signal-bound stage dispatch.
package lifecycle

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/Vilsol/slox"
	"github.com/ostiary/ostiary/pkg/ostiary"
	"github.com/ostiary/ostiary/pkg/promise"
	"github.com/samber/do/v2"
	"github.com/samber/oops"
)

var _ Waiter = (*Registry)(nil)

// Registry tracks registered lifecycle stages and, per module, the settled or
// pending outcome of every stage invocation. It has no knowledge of module
// discovery; cross-module ordering is the admission pipeline's concern.
//
// A Registry lives for the duration of one process (or test); stages grow
// monotonically and are never removed.
type Registry struct {
	mu       sync.RWMutex
	stages   []string
	entries  map[string]*entry
	order    []string
	signals  map[string]*signalBinding
	injector do.Injector
}

type entry struct {
	handle   *ostiary.Handle
	waiter   Waiter
	outcomes map[string]*promise.Future[any]
}

// Option configures a Registry.
type Option func(r *Registry)

// WithStages replaces the default stage order ("init", "start").
func WithStages(stages ...string) Option {
	return func(r *Registry) {
		r.stages = r.stages[:0]
		for _, stage := range stages {
			if !slices.Contains(r.stages, stage) {
				r.stages = append(r.stages, stage)
			}
		}
	}
}

// WithInjector provides the registry as a Waiter through the given injector,
// so module code resolved via DI can depend on it.
func WithInjector(injector do.Injector) Option {
	return func(r *Registry) {
		r.injector = injector
	}
}

// New creates a registry with the built-in init and start stages.
func New(options ...Option) *Registry {
	r := &Registry{
		stages:  []string{ostiary.StageInit, ostiary.StageStart},
		entries: make(map[string]*entry),
		signals: make(map[string]*signalBinding),
	}

	for _, option := range options {
		option(r)
	}

	if r.injector != nil {
		do.Provide(r.injector, func(_ do.Injector) (Waiter, error) {
			return r, nil
		})
	}

	return r
}

// RegisterStage appends the stage to the global order if absent. Idempotent.
func (r *Registry) RegisterStage(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !slices.Contains(r.stages, name) {
		r.stages = append(r.stages, name)
	}
}

// RegisteredStages returns a snapshot of the current stage order.
func (r *Registry) RegisteredStages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.stages)
}

// DispatchStages returns the registered stage order with signal-bound stages
// removed. These are the stages driven at connect and admission time;
// signal-bound stages only run when their signal fires.
func (r *Registry) DispatchStages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.stages))
	for _, stage := range r.stages {
		if _, bound := r.signals[stage]; !bound {
			out = append(out, stage)
		}
	}
	return out
}

// ConnectOption configures a single Connect or Attach call.
type ConnectOption func(e *entry)

// WithConnectWaiter overrides the waiter injected into the module's stage
// contexts. The default is the registry itself.
func WithConnectWaiter(waiter Waiter) ConnectOption {
	return func(e *entry) {
		e.waiter = waiter
	}
}

// Attach registers the handle under name without running any stages.
// Registering an already-used name replaces the prior entry wholesale; its
// outcomes are orphaned and no longer reachable through WaitFor.
func (r *Registry) Attach(name string, handle *ostiary.Handle, options ...ConnectOption) {
	e := &entry{
		handle:   handle,
		waiter:   r,
		outcomes: make(map[string]*promise.Future[any]),
	}
	for _, option := range options {
		option(e)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; !exists {
		r.order = append(r.order, name)
	}
	r.entries[name] = e
}

// Connect registers the handle under name and synchronously invokes, in
// registered-stage order, every dispatch stage the handle defines, recording
// each outcome. A failing stage does not stop later stages from being
// attempted. Signal-bound stages are skipped; they run when their signal
// fires. The returned mapping holds one outcome per invoked stage.
func (r *Registry) Connect(ctx context.Context, name string, handle *ostiary.Handle, options ...ConnectOption) map[string]*promise.Future[any] {
	r.Attach(name, handle, options...)

	outcomes := make(map[string]*promise.Future[any])
	for _, stage := range r.DispatchStages() {
		if !handle.Defines(stage) {
			continue
		}
		outcomes[stage] = r.Invoke(ctx, name, stage)
	}

	return outcomes
}

// Invoke runs one stage of one registered module and records its outcome. The
// outcome is recorded (pending) before the thunk runs, so WaitFor observes it
// for the whole invocation. Invoking a stage whose earlier defined stages have
// not settled yields a rejected outcome without running the thunk.
func (r *Registry) Invoke(ctx context.Context, name string, stage string) *promise.Future[any] {
	return r.invoke(ctx, name, stage, false)
}

func (r *Registry) invoke(ctx context.Context, name string, stage string, bypassOrder bool) *promise.Future[any] {
	r.mu.Lock()

	e, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return promise.Rejected[any](oops.
			Code(CodeUnknownModule).
			With("module", name).
			Errorf("module %q is not registered", name))
	}

	fn, ok := e.handle.StageFunc(stage)
	if !ok {
		r.mu.Unlock()
		return promise.Rejected[any](oops.
			Code(CodeStageUnavailable).
			With("module", name).
			With("stage", stage).
			Errorf("module %q does not define stage %q", name, stage))
	}

	if !bypassOrder {
		if blocked, earlier := r.unsettledEarlierStage(e, stage); blocked {
			r.mu.Unlock()
			return promise.Rejected[any](oops.
				Code(CodeStageOrder).
				With("module", name).
				With("stage", stage).
				With("earlier", earlier).
				Errorf("stage %q of module %q invoked before %q settled", stage, name, earlier))
		}
	}

	outcome := promise.New[any]()
	e.outcomes[stage] = outcome
	waiter := e.waiter
	r.mu.Unlock()

	value, err := fn(WithWaiter(ctx, waiter))
	if err != nil {
		slox.Warn(ctx, "module stage failed",
			slog.String("module", name),
			slog.String("stage", stage),
			slog.Any("error", err),
		)

		outcome.Reject(oops.
			Code(CodeStageFailed).
			With("module", name).
			With("stage", stage).
			Wrapf(err, "stage %q of module %q failed", stage, name))

		return outcome
	}

	outcome.Resolve(value)

	return outcome
}

// unsettledEarlierStage reports whether any stage defined by the entry and
// preceding the given one in registered order is missing or unsettled.
// Signal-bound stages are not part of the sequence. Caller holds r.mu.
func (r *Registry) unsettledEarlierStage(e *entry, stage string) (bool, string) {
	for _, earlier := range r.stages {
		if earlier == stage {
			return false, ""
		}
		if _, bound := r.signals[earlier]; bound {
			continue
		}
		if !e.handle.Defines(earlier) {
			continue
		}
		outcome, ok := e.outcomes[earlier]
		if !ok || !outcome.Settled() {
			return true, earlier
		}
	}
	return false, ""
}

// Disconnect removes the module's entry and releases any signal binding stored
// under the same name. Irrecoverable: later WaitFor calls reject as unknown.
func (r *Registry) Disconnect(name string) {
	r.mu.Lock()
	delete(r.entries, name)
	if i := slices.Index(r.order, name); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	binding := r.signals[name]
	delete(r.signals, name)
	r.mu.Unlock()

	if binding != nil {
		binding.release()
	}
}

// WaitFor returns the recorded outcome for (name, stage). It rejects
// immediately when name is not registered or when the stage has no recorded
// outcome yet. There is no retroactive binding; callers observing a rejection
// must retry after the target registers and the stage runs.
func (r *Registry) WaitFor(name string, stage string) *promise.Future[any] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return promise.Rejected[any](oops.
			Code(CodeUnknownModule).
			With("module", name).
			With("stage", stage).
			Errorf("module %q is not registered", name))
	}

	outcome, ok := e.outcomes[stage]
	if !ok {
		return promise.Rejected[any](oops.
			Code(CodeStageUnavailable).
			With("module", name).
			With("stage", stage).
			Errorf("module %q has no recorded outcome for stage %q", name, stage))
	}

	return outcome
}

// Modules returns the names of currently registered modules in registration
// order.
func (r *Registry) Modules() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.order)
}

// ModulesDefining returns the names of registered modules whose capability set
// includes the stage, in registration order.
func (r *Registry) ModulesDefining(stage string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, name := range r.order {
		if e, ok := r.entries[name]; ok && e.handle.Defines(stage) {
			out = append(out, name)
		}
	}
	return out
}
