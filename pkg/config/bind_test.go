package config_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MarvinJWendt/testza"
	"github.com/knadh/koanf/v2"
	"github.com/ostiary/ostiary/pkg/config"
	"github.com/ostiary/ostiary/pkg/ostiary"
	"github.com/samber/do/v2"
)

type testConfig struct {
	MaxModules int    `koanf:"max_modules"`
	Name       string `koanf:"name"`
}

type validatedConfig struct {
	MaxModules int `koanf:"max_modules"`
}

func (c *validatedConfig) Validate() error {
	if c.MaxModules <= 0 {
		return errors.New("max_modules must be positive")
	}
	return nil
}

func setupContext(t *testing.T, data map[string]any) (context.Context, *fakeReloadNotifier) {
	t.Helper()

	injector := do.New()
	ctx := ostiary.WithInjector(context.Background(), injector)

	k := koanf.New(".")
	if err := k.Load(mapProvider(data), nil); err != nil {
		t.Fatal(err)
	}

	do.Provide(injector, func(_ do.Injector) (*koanf.Koanf, error) {
		return k, nil
	})

	notifier := &fakeReloadNotifier{}
	do.Provide(injector, func(_ do.Injector) (config.ReloadNotifier, error) {
		return notifier, nil
	})

	return ctx, notifier
}

type fakeReloadNotifier struct {
	callbacks []func(k *koanf.Koanf)
}

func (f *fakeReloadNotifier) OnReload(fn func(k *koanf.Koanf)) {
	f.callbacks = append(f.callbacks, fn)
}

func (f *fakeReloadNotifier) fireReload(k *koanf.Koanf) {
	for _, fn := range f.callbacks {
		fn(k)
	}
}

// mapProvider implements koanf.Provider to load from a map.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) { return nil, errors.New("not supported") }
func (m mapProvider) Read() (map[string]any, error) {
	return map[string]any(m), nil
}

func TestBind_BasicGetReturnsConfig(t *testing.T) {
	t.Parallel()

	ctx, _ := setupContext(t, map[string]any{
		"loader": map[string]any{
			"limits": map[string]any{
				"max_modules": 100,
				"name":        "default",
			},
		},
	})

	mod := config.Bind[testConfig]("loader", "limits")
	_, err := mod.Init(ctx)
	testza.AssertNil(t, err)

	cfg := config.Get[testConfig](ctx)
	testza.AssertEqual(t, 100, cfg.MaxModules)
	testza.AssertEqual(t, "default", cfg.Name)
}

func TestBind_ValidationHappyPath(t *testing.T) {
	t.Parallel()

	ctx, _ := setupContext(t, map[string]any{
		"limits": map[string]any{
			"max_modules": 50,
		},
	})

	mod := config.Bind[validatedConfig]("limits")
	_, err := mod.Init(ctx)
	testza.AssertNil(t, err)

	cfg := config.Get[validatedConfig](ctx)
	testza.AssertEqual(t, 50, cfg.MaxModules)
}

func TestBind_ValidationRejection(t *testing.T) {
	t.Parallel()

	ctx, _ := setupContext(t, map[string]any{
		"limits": map[string]any{
			"max_modules": 0,
		},
	})

	mod := config.Bind[validatedConfig]("limits")
	_, err := mod.Init(ctx)
	testza.AssertNotNil(t, err)
}

func TestBind_ReloadUpdatesBinding(t *testing.T) {
	t.Parallel()

	ctx, notifier := setupContext(t, map[string]any{
		"limits": map[string]any{
			"max_modules": 10,
		},
	})

	mod := config.Bind[validatedConfig]("limits")
	_, err := mod.Init(ctx)
	testza.AssertNil(t, err)

	var changed *validatedConfig
	config.GetBinding[validatedConfig](ctx).OnChange(func(cfg *validatedConfig) {
		changed = cfg
	})

	fresh := koanf.New(".")
	testza.AssertNil(t, fresh.Load(mapProvider{
		"limits": map[string]any{
			"max_modules": 25,
		},
	}, nil))
	notifier.fireReload(fresh)

	testza.AssertEqual(t, 25, config.Get[validatedConfig](ctx).MaxModules)
	testza.AssertNotNil(t, changed)
	testza.AssertEqual(t, 25, changed.MaxModules)
}

func TestBind_ReloadKeepsLastGoodOnValidationFailure(t *testing.T) {
	t.Parallel()

	ctx, notifier := setupContext(t, map[string]any{
		"limits": map[string]any{
			"max_modules": 10,
		},
	})

	mod := config.Bind[validatedConfig]("limits")
	_, err := mod.Init(ctx)
	testza.AssertNil(t, err)

	fresh := koanf.New(".")
	testza.AssertNil(t, fresh.Load(mapProvider{
		"limits": map[string]any{
			"max_modules": -1,
		},
	}, nil))
	notifier.fireReload(fresh)

	testza.AssertEqual(t, 10, config.Get[validatedConfig](ctx).MaxModules)
}
