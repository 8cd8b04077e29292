package ostiary

// Handle is a resolved module's lifecycle surface: its name, its admission
// priority, and the set of lifecycle stages it defines. The capability set is
// computed exactly once, when the handle is built, and never re-probed.
type Handle struct {
	name     string
	priority int
	stages   map[string]StageFunc
	value    any
}

// HandleOption adjusts a handle at construction time.
type HandleOption func(h *Handle)

// WithPriority overrides the handle's priority, taking precedence over both
// the default and a Prioritized implementation. Sources use this for
// externally declared priorities.
func WithPriority(priority int) HandleOption {
	return func(h *Handle) {
		h.priority = priority
	}
}

// WithName overrides the handle's name.
func WithName(name string) HandleOption {
	return func(h *Handle) {
		h.name = name
	}
}

// NewHandle probes value against the given stage names and returns its
// lifecycle handle. The built-in stages map to the Initializer, Starter and
// Stopper interfaces; any other stage name is looked up through StageProvider.
// A module implementing Named overrides the supplied name; one implementing
// Prioritized overrides the default priority of 1. Options win over both.
func NewHandle(name string, value any, stages []string, options ...HandleOption) *Handle {
	h := &Handle{
		name:     name,
		priority: DefaultPriority,
		stages:   make(map[string]StageFunc),
		value:    value,
	}

	if named, ok := value.(Named); ok && named.Name() != "" {
		h.name = named.Name()
	}

	if prioritized, ok := value.(Prioritized); ok {
		h.priority = prioritized.Priority()
	}

	for _, stage := range stages {
		if fn, ok := probeStage(value, stage); ok {
			h.stages[stage] = fn
		}
	}

	for _, option := range options {
		option(h)
	}

	return h
}

func probeStage(value any, stage string) (StageFunc, bool) {
	switch stage {
	case StageInit:
		if m, ok := value.(Initializer); ok {
			return m.Init, true
		}
	case StageStart:
		if m, ok := value.(Starter); ok {
			return m.Start, true
		}
	case StageShutdown:
		if m, ok := value.(Stopper); ok {
			return m.Shutdown, true
		}
	}

	if provider, ok := value.(StageProvider); ok {
		if fn, ok := provider.Stage(stage); ok {
			return fn, true
		}
	}

	return nil, false
}

// Name returns the module's unique name within one loading run.
func (h *Handle) Name() string {
	return h.name
}

// Priority returns the module's admission priority.
func (h *Handle) Priority() int {
	return h.priority
}

// Defines reports whether the module defines the named stage.
func (h *Handle) Defines(stage string) bool {
	_, ok := h.stages[stage]
	return ok
}

// StageFunc returns the module's thunk for the named stage.
func (h *Handle) StageFunc(stage string) (StageFunc, bool) {
	fn, ok := h.stages[stage]
	return fn, ok
}

// Stages returns the names of the stages the module defines, filtered from the
// given registered order.
func (h *Handle) Stages(order []string) []string {
	out := make([]string, 0, len(h.stages))
	for _, stage := range order {
		if h.Defines(stage) {
			out = append(out, stage)
		}
	}
	return out
}

// Value returns the resolved module value the handle was built from.
func (h *Handle) Value() any {
	return h.value
}
