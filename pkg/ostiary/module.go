package ostiary

import (
	"context"
)

// Built-in lifecycle stage names. Additional stages may be registered on a
// lifecycle registry at any time.
const (
	StageInit     = "init"
	StageStart    = "start"
	StageShutdown = "shutdown"
)

// DefaultPriority is assumed for modules that do not declare a priority.
const DefaultPriority = 1

// StageFunc is a single lifecycle stage of one module: a thunk that either
// produces a value or fails.
type StageFunc func(ctx context.Context) (any, error)

// Initializer is implemented by modules that take part in the init stage.
type Initializer interface {
	Init(ctx context.Context) (any, error)
}

// Starter is implemented by modules that take part in the start stage.
type Starter interface {
	Start(ctx context.Context) (any, error)
}

// Stopper is implemented by modules that take part in the shutdown stage.
type Stopper interface {
	Shutdown(ctx context.Context) (any, error)
}

// StageProvider is implemented by modules that expose custom lifecycle stages
// beyond init, start and shutdown. Stage reports whether the module defines
// the named stage and returns its thunk.
type StageProvider interface {
	Stage(name string) (StageFunc, bool)
}

// Prioritized is implemented by modules that declare an admission priority.
// Higher priorities are admitted first.
type Prioritized interface {
	Priority() int
}

// Named is implemented by modules that carry their own instance name.
type Named interface {
	Name() string
}
