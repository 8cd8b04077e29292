// Package static provides an in-memory module source: a tree of named values
// assembled in code, useful for embedded use, examples and tests.
package static

import (
	"context"
	"strings"
	"sync"

	"github.com/ostiary/ostiary/pkg/ostiary"
	"github.com/ostiary/ostiary/pkg/source"
	"github.com/samber/oops"
)

var _ source.Source = (*Source)(nil)

// Factory builds a module value on resolution. Entries added as factories are
// invoked on every Resolve call, so resolution failures can be modeled.
type Factory func(ctx context.Context) (any, error)

// Source is an in-memory module container keyed by slash-separated paths.
type Source struct {
	mu     sync.RWMutex
	values map[string]any
	paths  []string
}

// New creates an empty static source.
func New() *Source {
	return &Source{
		values: make(map[string]any),
	}
}

// Add registers a value (or Factory) under the given path and returns the
// source for chaining. Re-adding a path overwrites its value but keeps its
// discovery position.
func (s *Source) Add(path string, value any) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.values[path]; !exists {
		s.paths = append(s.paths, path)
	}
	s.values[path] = value

	return s
}

// Children returns the nodes under root in insertion order.
func (s *Source) Children(_ context.Context, root string, recursive bool) ([]source.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := ""
	if root != "" {
		prefix = root + "/"
	}

	var nodes []source.Node
	for _, path := range s.paths {
		if root != "" && !strings.HasPrefix(path, prefix) {
			continue
		}

		rest := strings.TrimPrefix(path, prefix)
		if rest == "" {
			continue
		}
		if !recursive && strings.Contains(rest, "/") {
			continue
		}

		nodes = append(nodes, source.Node{Path: path})
	}

	return nodes, nil
}

// IsModule reports whether a value exists at the node's path.
func (s *Source) IsModule(_ context.Context, node source.Node) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.values[node.Path]
	return ok
}

// Resolve returns the node's lifecycle handle, invoking its factory if one was
// registered.
func (s *Source) Resolve(ctx context.Context, node source.Node, stages []string) (*ostiary.Handle, error) {
	s.mu.RLock()
	value, ok := s.values[node.Path]
	s.mu.RUnlock()

	if !ok {
		return nil, oops.
			With("path", node.Path).
			Errorf("no module at path %q", node.Path)
	}

	if factory, isFactory := value.(Factory); isFactory {
		built, err := factory(ctx)
		if err != nil {
			return nil, oops.
				With("path", node.Path).
				Wrapf(err, "factory for %q failed", node.Path)
		}
		value = built
	}

	return ostiary.NewHandle(node.Name(), value, stages), nil
}
