// Package source defines the module source provider contract: how candidate
// modules are enumerated from a container and resolved into lifecycle handles.
package source

import (
	"context"
	"strings"

	"github.com/ostiary/ostiary/pkg/ostiary"
)

// Node identifies one candidate module within a source's container.
type Node struct {
	// Path is the slash-separated location of the node within the container.
	Path string
}

// Name returns the last path segment, used as the module's default name.
func (n Node) Name() string {
	if i := strings.LastIndex(n.Path, "/"); i >= 0 {
		return n.Path[i+1:]
	}
	return n.Path
}

// Source enumerates and resolves candidate modules. Implementations decide
// what a container is: an in-memory tree, a manifest file, a directory.
type Source interface {
	// Children returns the nodes under root, in the container's order:
	// immediate children only, or the full transitive descendants when
	// recursive is set.
	Children(ctx context.Context, root string, recursive bool) ([]Node, error)

	// IsModule reports whether the node is a loadable module.
	IsModule(ctx context.Context, node Node) bool

	// Resolve loads the node's module and probes its capability set against
	// the given stage names. Resolution may fail; callers decide whether the
	// failure is fatal (admission) or tolerated (priority probing).
	Resolve(ctx context.Context, node Node, stages []string) (*ostiary.Handle, error)
}
