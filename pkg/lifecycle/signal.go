package lifecycle

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Vilsol/slox"
)

type signalBinding struct {
	stop chan struct{}
	once sync.Once
}

func (b *signalBinding) release() {
	b.once.Do(func() {
		close(b.stop)
	})
}

// BindStage registers the stage and marks it externally driven: it is excluded
// from connect and admission dispatch and from the per-module stage sequence,
// and only runs through FireStage. Binding an already-bound stage replaces the
// previous binding and releases its subscription, if any.
func (r *Registry) BindStage(stage string) {
	r.bindStage(stage)
}

// BindStageToSignal registers the stage and subscribes to the signal channel.
// Every time the signal fires, the stage is invoked on each currently
// registered module that defines it, once per fire, in registration order,
// bypassing the per-module stage sequence. Binding an already-bound stage
// replaces the previous binding and releases its subscription. The
// subscription ends when the signal channel closes, the context is canceled,
// or the binding is released.
func (r *Registry) BindStageToSignal(ctx context.Context, stage string, signal <-chan struct{}) {
	binding := r.bindStage(stage)

	go r.watchSignal(ctx, stage, signal, binding)
}

func (r *Registry) bindStage(stage string) *signalBinding {
	r.RegisterStage(stage)

	binding := &signalBinding{stop: make(chan struct{})}

	r.mu.Lock()
	previous := r.signals[stage]
	r.signals[stage] = binding
	r.mu.Unlock()

	if previous != nil {
		previous.release()
	}

	return binding
}

// ReleaseSignal drops the binding for the stage, if any. The stage itself
// stays registered.
func (r *Registry) ReleaseSignal(stage string) {
	r.mu.Lock()
	binding := r.signals[stage]
	delete(r.signals, stage)
	r.mu.Unlock()

	if binding != nil {
		binding.release()
	}
}

func (r *Registry) watchSignal(ctx context.Context, stage string, signal <-chan struct{}, binding *signalBinding) {
	for {
		select {
		case <-binding.stop:
			return
		case <-ctx.Done():
			return
		case _, ok := <-signal:
			if !ok {
				return
			}
			r.FireStage(ctx, stage)
		}
	}
}

// FireStage invokes the stage on every registered module defining it, exactly
// once, in registration order, bypassing the per-module stage sequence.
// Failures are recorded as rejected outcomes and logged; they do not stop the
// fan-out. Signal bindings call this on every fire; it is also usable directly
// for externally driven stages.
func (r *Registry) FireStage(ctx context.Context, stage string) {
	for _, name := range r.ModulesDefining(stage) {
		slox.Debug(ctx, "firing stage",
			slog.String("module", name),
			slog.String("stage", stage),
		)

		r.invoke(ctx, name, stage, true)
	}
}
