package lifecycle

import (
	"context"

	"github.com/ostiary/ostiary/pkg/promise"
)

// Waiter lets a module await another named module's stage outcome. It is
// injected into every stage invocation's context, so module code can depend on
// siblings without holding a registry reference.
type Waiter interface {
	WaitFor(name string, stage string) *promise.Future[any]
}

type waiterKey struct{}

// WithWaiter returns a new context carrying the waiter.
func WithWaiter(ctx context.Context, waiter Waiter) context.Context {
	return context.WithValue(ctx, waiterKey{}, waiter)
}

// WaiterFrom returns the waiter carried by the context, if any.
func WaiterFrom(ctx context.Context) (Waiter, bool) { //nolint:ireturn
	waiter, ok := ctx.Value(waiterKey{}).(Waiter)
	return waiter, ok
}
