package manifest

import (
	"context"
	"sync"
)

// Factory builds a module value by name on behalf of the manifest source.
type Factory func(ctx context.Context) (any, error)

// Factories is a named registry of module factories. Manifest entries refer to
// factories by name; applications register them in code before loading.
type Factories struct {
	mu sync.RWMutex
	m  map[string]Factory
}

// NewFactories creates an empty factory registry.
func NewFactories() *Factories {
	return &Factories{
		m: make(map[string]Factory),
	}
}

// Register stores a factory under name and returns the registry for chaining.
// Re-registering a name overwrites the prior factory.
func (f *Factories) Register(name string, factory Factory) *Factories {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.m[name] = factory
	return f
}

// Get returns the factory registered under name.
func (f *Factories) Get(name string) (Factory, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	factory, ok := f.m[name]
	return factory, ok
}
