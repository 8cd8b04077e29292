// Package app composes a registry, a source, and a loader into a runnable
// application host with signal-driven shutdown.
package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Vilsol/slox"
	"github.com/ostiary/ostiary/pkg/lifecycle"
	"github.com/ostiary/ostiary/pkg/loader"
	"github.com/ostiary/ostiary/pkg/logging"
	"github.com/ostiary/ostiary/pkg/logging/tint"
	"github.com/ostiary/ostiary/pkg/ostiary"
	"github.com/ostiary/ostiary/pkg/promise"
	"github.com/ostiary/ostiary/pkg/source"
	"github.com/samber/do/v2"
	"github.com/samber/oops"
)

const DefaultShutdownTimeout = 30 * time.Second

// Runtime loads modules out of a source and keeps them running until a
// shutdown signal arrives.
type Runtime struct {
	config   Config
	source   source.Source
	registry *lifecycle.Registry
}

// Config holds the runtime's settings.
type Config struct {
	// Root is the container path modules are loaded from.
	Root string

	// ChildrenOnly restricts loading to the root's immediate children
	// instead of the full transitive descendants.
	ChildrenOnly bool

	// Predicate filters discovered candidates, if set.
	Predicate loader.Predicate

	// Stages overrides the registry's stage order.
	Stages []string

	// ShutdownTimeout bounds the shutdown stage fan-out.
	ShutdownTimeout time.Duration

	// Sink is the logging sink; a tint console sink is built when nil.
	Sink *logging.Sink
}

// Option configures the Runtime.
type Option func(cfg *Config)

// WithRoot sets the container path to load from.
func WithRoot(root string) Option {
	return func(cfg *Config) { cfg.Root = root }
}

// WithChildrenOnly loads only the root's immediate children.
func WithChildrenOnly() Option {
	return func(cfg *Config) { cfg.ChildrenOnly = true }
}

// WithPredicate filters discovered candidates.
func WithPredicate(predicate loader.Predicate) Option {
	return func(cfg *Config) { cfg.Predicate = predicate }
}

// WithStages overrides the registry's stage order.
func WithStages(stages ...string) Option {
	return func(cfg *Config) { cfg.Stages = stages }
}

// WithShutdownTimeout bounds the shutdown fan-out.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(cfg *Config) { cfg.ShutdownTimeout = timeout }
}

// WithSink sets the logging sink.
func WithSink(sink *logging.Sink) Option {
	return func(cfg *Config) { cfg.Sink = sink }
}

// NewRuntime creates a runtime over the given module source.
func NewRuntime(src source.Source, options ...Option) *Runtime {
	cfg := Config{
		ShutdownTimeout: DefaultShutdownTimeout,
	}
	for _, option := range options {
		option(&cfg)
	}

	return &Runtime{
		config: cfg,
		source: src,
	}
}

// Registry returns the lifecycle registry, available once Run has begun.
func (r *Runtime) Registry() *lifecycle.Registry {
	return r.registry
}

// Run starts the runtime with a background context.
func (r *Runtime) Run() error {
	return r.RunContext(context.Background())
}

// RunContext loads every module under the configured root, waits for a
// shutdown signal, and fires the shutdown stage across all registered modules
// within the shutdown timeout.
func (r *Runtime) RunContext(ctx context.Context) error {
	injector := do.New()
	ctx = ostiary.WithInjector(ctx, injector)

	sink := r.config.Sink
	if sink == nil {
		tintConfig := tint.NewDefaultConfig()
		sink = logging.NewSink(tintConfig.NewHandler(), logging.NewDefaultOptions())
	}
	do.Provide(injector, func(_ do.Injector) (*logging.Sink, error) {
		return sink, nil
	})

	ctx = slox.Into(ctx, sink.Logger())

	registryOptions := []lifecycle.Option{lifecycle.WithInjector(injector)}
	if len(r.config.Stages) > 0 {
		registryOptions = append(registryOptions, lifecycle.WithStages(r.config.Stages...))
	}
	r.registry = lifecycle.New(registryOptions...)

	shutdownCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Bind the shutdown stage before loading so handles are probed for it,
	// and so admission never dispatches it. It runs through FireStage once
	// the signal arrives.
	r.registry.BindStage(ostiary.StageShutdown)

	ld := loader.New(r.registry, r.source)

	var outcome *promise.Future[bool]
	if r.config.ChildrenOnly {
		outcome = ld.LoadChildren(shutdownCtx, r.config.Root, r.config.Predicate)
	} else {
		outcome = ld.LoadDescendants(shutdownCtx, r.config.Root, r.config.Predicate)
	}

	loaded, err := outcome.Await(shutdownCtx)
	if err != nil {
		slox.Error(ctx, "failed loading modules", slog.Any("error", err))
		return oops.With("root", r.config.Root).Wrapf(err, "failed loading modules")
	}
	if !loaded {
		return oops.With("root", r.config.Root).Errorf("one or more modules failed to resolve")
	}

	slox.Info(ctx, "modules running", slog.Int("count", len(r.registry.Modules())))

	<-shutdownCtx.Done()
	slox.Info(ctx, "shutdown signal received")
	stop()

	return r.shutdown(ctx)
}

func (r *Runtime) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, r.config.ShutdownTimeout)
	defer cancel()

	r.registry.FireStage(shutdownCtx, ostiary.StageShutdown)

	var outcomes []*promise.Future[any]
	for _, name := range r.registry.ModulesDefining(ostiary.StageShutdown) {
		outcomes = append(outcomes, r.registry.WaitFor(name, ostiary.StageShutdown))
	}

	if _, err := promise.All(outcomes...).Await(shutdownCtx); err != nil {
		slox.Error(ctx, "failed shutting down modules", slog.Any("error", err))
		return err //nolint:wrapcheck
	}

	return nil
}
