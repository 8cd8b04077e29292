package promise_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MarvinJWendt/testza"
	"github.com/ostiary/ostiary/pkg/promise"
)

func TestFuture_SettlesExactlyOnce(t *testing.T) {
	t.Parallel()

	f := promise.New[int]()
	f.Resolve(1)
	f.Resolve(2)
	f.Reject(errors.New("too late"))

	value, err, settled := f.Result()
	testza.AssertTrue(t, settled)
	testza.AssertNil(t, err)
	testza.AssertEqual(t, 1, value)
}

func TestFuture_RejectWins(t *testing.T) {
	t.Parallel()

	f := promise.New[string]()
	f.Reject(errors.New("boom"))
	f.Resolve("never")

	_, err, settled := f.Result()
	testza.AssertTrue(t, settled)
	testza.AssertNotNil(t, err)
}

func TestDo_EagerExecution(t *testing.T) {
	t.Parallel()

	ran := false
	f := promise.Do(func() (int, error) {
		ran = true
		return 42, nil
	})

	testza.AssertTrue(t, ran)
	testza.AssertTrue(t, f.Settled())

	value, err := f.Await(context.Background())
	testza.AssertNil(t, err)
	testza.AssertEqual(t, 42, value)
}

func TestAwait_BlocksUntilSettled(t *testing.T) {
	t.Parallel()

	f := promise.New[string]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		f.Resolve("done")
	}()

	value, err := f.Await(context.Background())
	testza.AssertNil(t, err)
	testza.AssertEqual(t, "done", value)
}

func TestAwait_ContextCancellation(t *testing.T) {
	t.Parallel()

	f := promise.New[string]()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Await(ctx)
	testza.AssertNotNil(t, err)
	testza.AssertFalse(t, f.Settled())
}

func TestOnSettle_AlreadySettledRunsInline(t *testing.T) {
	t.Parallel()

	f := promise.Resolved(7)

	var seen int
	f.OnSettle(func(value int, err error) {
		seen = value
	})

	testza.AssertEqual(t, 7, seen)
}

func TestThen_MapsValue(t *testing.T) {
	t.Parallel()

	f := promise.New[int]()
	doubled := promise.Then(f, func(v int) (int, error) {
		return v * 2, nil
	})

	f.Resolve(21)

	value, err := doubled.Await(context.Background())
	testza.AssertNil(t, err)
	testza.AssertEqual(t, 42, value)
}

func TestThen_RejectionPassesThrough(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	f := promise.Rejected[int](boom)

	ran := false
	derived := promise.Then(f, func(v int) (int, error) {
		ran = true
		return v, nil
	})

	_, err := derived.Await(context.Background())
	testza.AssertFalse(t, ran)
	testza.AssertTrue(t, errors.Is(err, boom))
}

func TestAll_ResolvesInInputOrder(t *testing.T) {
	t.Parallel()

	a := promise.New[int]()
	b := promise.New[int]()
	c := promise.New[int]()

	all := promise.All(a, b, c)

	c.Resolve(3)
	a.Resolve(1)
	testza.AssertFalse(t, all.Settled())
	b.Resolve(2)

	values, err := all.Await(context.Background())
	testza.AssertNil(t, err)
	testza.AssertEqual(t, []int{1, 2, 3}, values)
}

func TestAll_RejectsOnFirstRejection(t *testing.T) {
	t.Parallel()

	a := promise.New[int]()
	b := promise.New[int]()

	all := promise.All(a, b)

	boom := errors.New("boom")
	b.Reject(boom)

	_, err := all.Await(context.Background())
	testza.AssertTrue(t, errors.Is(err, boom))
}

func TestAll_EmptyResolvesImmediately(t *testing.T) {
	t.Parallel()

	all := promise.All[int]()
	testza.AssertTrue(t, all.Settled())
}
