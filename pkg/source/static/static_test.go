package static_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MarvinJWendt/testza"
	"github.com/ostiary/ostiary/pkg/ostiary"
	"github.com/ostiary/ostiary/pkg/source"
	"github.com/ostiary/ostiary/pkg/source/static"
)

type starter struct{}

func (starter) Start(_ context.Context) (any, error) {
	return "started", nil
}

func TestChildren_InsertionOrder(t *testing.T) {
	t.Parallel()

	src := static.New().
		Add("zeta", starter{}).
		Add("alpha", starter{}).
		Add("mid", starter{})

	nodes, err := src.Children(context.Background(), "", false)
	testza.AssertNil(t, err)
	testza.AssertEqual(t, []source.Node{{Path: "zeta"}, {Path: "alpha"}, {Path: "mid"}}, nodes)
}

func TestChildren_RootScoping(t *testing.T) {
	t.Parallel()

	src := static.New().
		Add("apps/web", starter{}).
		Add("apps/web/assets", starter{}).
		Add("jobs/cron", starter{})

	direct, err := src.Children(context.Background(), "apps", false)
	testza.AssertNil(t, err)
	testza.AssertEqual(t, []source.Node{{Path: "apps/web"}}, direct)

	all, err := src.Children(context.Background(), "apps", true)
	testza.AssertNil(t, err)
	testza.AssertEqual(t, []source.Node{{Path: "apps/web"}, {Path: "apps/web/assets"}}, all)
}

func TestAdd_OverwriteKeepsPosition(t *testing.T) {
	t.Parallel()

	src := static.New().
		Add("a", starter{}).
		Add("b", starter{}).
		Add("a", starter{})

	nodes, err := src.Children(context.Background(), "", false)
	testza.AssertNil(t, err)
	testza.AssertEqual(t, []source.Node{{Path: "a"}, {Path: "b"}}, nodes)
}

func TestIsModule(t *testing.T) {
	t.Parallel()

	src := static.New().Add("present", starter{})

	testza.AssertTrue(t, src.IsModule(context.Background(), source.Node{Path: "present"}))
	testza.AssertFalse(t, src.IsModule(context.Background(), source.Node{Path: "absent"}))
}

func TestResolve_ProbesCapabilities(t *testing.T) {
	t.Parallel()

	src := static.New().Add("svc", starter{})

	handle, err := src.Resolve(context.Background(), source.Node{Path: "svc"}, []string{ostiary.StageInit, ostiary.StageStart})
	testza.AssertNil(t, err)
	testza.AssertEqual(t, "svc", handle.Name())
	testza.AssertFalse(t, handle.Defines(ostiary.StageInit))
	testza.AssertTrue(t, handle.Defines(ostiary.StageStart))
}

func TestResolve_InvokesFactory(t *testing.T) {
	t.Parallel()

	calls := 0
	src := static.New().Add("svc", static.Factory(func(_ context.Context) (any, error) {
		calls++
		return starter{}, nil
	}))

	_, err := src.Resolve(context.Background(), source.Node{Path: "svc"}, nil)
	testza.AssertNil(t, err)
	_, err = src.Resolve(context.Background(), source.Node{Path: "svc"}, nil)
	testza.AssertNil(t, err)
	testza.AssertEqual(t, 2, calls)
}

func TestResolve_FactoryFailure(t *testing.T) {
	t.Parallel()

	src := static.New().Add("svc", static.Factory(func(_ context.Context) (any, error) {
		return nil, errors.New("no capacity")
	}))

	_, err := src.Resolve(context.Background(), source.Node{Path: "svc"}, nil)
	testza.AssertNotNil(t, err)
	testza.AssertContains(t, err.Error(), "no capacity")
}

func TestResolve_UnknownPath(t *testing.T) {
	t.Parallel()

	_, err := static.New().Resolve(context.Background(), source.Node{Path: "ghost"}, nil)
	testza.AssertNotNil(t, err)
}
