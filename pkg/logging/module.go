package logging

import (
	"context"

	"github.com/knadh/koanf/v2"
	"github.com/ostiary/ostiary/pkg/config"
	"github.com/ostiary/ostiary/pkg/logging/tint"
	"github.com/ostiary/ostiary/pkg/ostiary"
	"github.com/samber/do/v2"
	"github.com/samber/oops"
)

var (
	_ ostiary.Initializer  = (*Module)(nil)
	_ ostiary.Configurable = (*Module)(nil)
	_ ostiary.Prioritized  = (*Module)(nil)
)

// ModulePriority admits the logging module right after configuration, ahead of
// regular modules.
const ModulePriority = 900

// Module wires a console sink into an admitted batch: it builds the tint
// handler wrapped in a per-package level filter, provides the sink through DI,
// and re-applies sink and filter settings on config reload. File configuration
// arrives through LoadConfig before init runs. Its init outcome is the sink.
type Module struct {
	name          string
	handlerConfig tint.Config
	options       Options
	filterOptions FilterOptions
	filter        *LevelFilter
	sink          *Sink
}

// ModuleOption configures the logging module.
type ModuleOption func(m *Module)

// WithInstanceName sets the component instance name used in config paths.
func WithInstanceName(name string) ModuleOption {
	return func(m *Module) { m.name = name }
}

// WithHandlerOptions applies tint handler options as defaults, below file
// configuration.
func WithHandlerOptions(options ...tint.Option) ModuleOption {
	return func(m *Module) { m.handlerConfig = tint.NewConfig(options...) }
}

// WithSinkOptions applies sink options as defaults, below file configuration.
func WithSinkOptions(options Options) ModuleOption {
	return func(m *Module) { m.options = options }
}

// WithFilterOptions applies level filter options as defaults, below file
// configuration.
func WithFilterOptions(options FilterOptions) ModuleOption {
	return func(m *Module) { m.filterOptions = options }
}

// NewModule creates a logging module.
func NewModule(options ...ModuleOption) *Module {
	m := &Module{
		handlerConfig: tint.NewDefaultConfig(),
		options:       NewDefaultOptions(),
		filterOptions: NewDefaultFilterOptions(),
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// Priority admits the logging module before regular modules.
func (m *Module) Priority() int {
	return ModulePriority
}

// ConfigPath returns the koanf path for the sink's configuration.
func (m *Module) ConfigPath() string {
	return config.ComponentPath(config.CategoryLogging, "sink", m.name)
}

func (m *Module) handlerConfigPath() string {
	return config.ComponentPath(config.CategoryLogging, "tint", m.name)
}

func (m *Module) filterConfigPath() string {
	return config.ComponentPath(config.CategoryLogging, "filter", m.name)
}

// LoadConfig loads sink, handler and filter configuration from koanf.
func (m *Module) LoadConfig(k *koanf.Koanf) error {
	if path := m.ConfigPath(); k.Exists(path) {
		if err := k.Unmarshal(path, &m.options); err != nil {
			return oops.Wrapf(err, "failed to load sink config at path %s", path)
		}
	}

	if path := m.handlerConfigPath(); k.Exists(path) {
		if err := m.handlerConfig.LoadFromKoanf(k, path); err != nil {
			return err
		}
	}

	if path := m.filterConfigPath(); k.Exists(path) {
		if err := k.Unmarshal(path, &m.filterOptions); err != nil {
			return oops.Wrapf(err, "failed to load filter config at path %s", path)
		}
	}

	return nil
}

// Init builds the handler chain and the sink, and registers the sink in DI.
// When a reload notifier is present, sink and filter settings follow config
// reloads.
func (m *Module) Init(ctx context.Context) (any, error) {
	m.filter = NewLevelFilter(m.handlerConfig.NewHandler(), m.filterOptions.DefaultLevel(), m.filterOptions.LevelRules())
	m.sink = NewSink(m.filter, m.options)

	if ostiary.HasInjector(ctx) {
		injector := ostiary.GetInjector(ctx)

		ostiary.Provide(ctx, m.getSink)

		if notifier, err := do.Invoke[config.ReloadNotifier](injector); err == nil {
			notifier.OnReload(m.onReload)
		}
	}

	return m.sink, nil
}

func (m *Module) onReload(k *koanf.Koanf) {
	options := m.options
	if path := m.ConfigPath(); k.Exists(path) {
		if err := k.Unmarshal(path, &options); err != nil {
			return
		}
	}
	m.sink.Reconfigure(options)

	filterOptions := m.filterOptions
	if path := m.filterConfigPath(); k.Exists(path) {
		if err := k.Unmarshal(path, &filterOptions); err != nil {
			return
		}
	}
	m.filter.Update(filterOptions.DefaultLevel(), filterOptions.LevelRules())
}

// Sink returns the built sink, available after Init.
func (m *Module) Sink() *Sink {
	return m.sink
}

// Filter returns the built level filter, available after Init.
func (m *Module) Filter() *LevelFilter {
	return m.filter
}

func (m *Module) getSink(_ do.Injector) (*Sink, error) {
	return m.sink, nil
}
