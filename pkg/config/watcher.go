package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/Vilsol/slox"
	"github.com/fsnotify/fsnotify"
)

// Reloads are debounced: editors tend to fire several write events per save.
const debounceDelay = 100 * time.Millisecond

func (m *Module) startWatcher(ctx context.Context) {
	if len(m.configFiles) == 0 {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slox.Warn(ctx, "failed to create config file watcher", slog.Any("error", err))
		return
	}

	for _, cf := range m.configFiles {
		if err := watcher.Add(cf.path); err != nil {
			slox.Warn(ctx, "failed to watch config file",
				slog.String("path", cf.path),
				slog.Any("error", err),
			)
		}
	}

	go m.watchLoop(ctx, watcher)
}

func (m *Module) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer func() { _ = watcher.Close() }()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, func() {
				if err := m.reload(); err != nil {
					slox.Error(ctx, "failed to reload config", slog.Any("error", err))
					return
				}
				slox.Info(ctx, "config reloaded")
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slox.Error(ctx, "config watcher error", slog.Any("error", err))
		}
	}
}
