package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/MarvinJWendt/testza"
	"github.com/Vilsol/slox"
)

func TestSink_Info(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	sink := NewSink(handler, NewDefaultOptions())

	sink.Info(context.Background(), "module admitted", slog.String("module", "api"))

	testza.AssertEqual(t, 1, len(handler.records))
	testza.AssertEqual(t, "module admitted", handler.records[0].Message)
	testza.AssertEqual(t, slog.LevelInfo, handler.records[0].Level)
}

func TestSink_DisabledDropsRecords(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	sink := NewSink(handler, Options{Enabled: false})

	sink.Info(context.Background(), "dropped")
	sink.Warn(context.Background(), "also dropped")

	testza.AssertEqual(t, 0, len(handler.records))
}

func TestSink_Prefix(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	sink := NewSink(handler, Options{Enabled: true, Prefix: "[orchestrator] "})

	sink.Warn(context.Background(), "registry degraded")

	testza.AssertEqual(t, 1, len(handler.records))
	testza.AssertEqual(t, "[orchestrator] registry degraded", handler.records[0].Message)
	testza.AssertEqual(t, slog.LevelWarn, handler.records[0].Level)
}

func TestSink_Reconfigure(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	sink := NewSink(handler, NewDefaultOptions())

	sink.Info(context.Background(), "first")

	options := sink.Options()
	options.Enabled = false
	sink.Reconfigure(options)

	sink.Info(context.Background(), "second")

	testza.AssertEqual(t, 1, len(handler.records))
	testza.AssertEqual(t, "first", handler.records[0].Message)
}

func TestSink_ModuleLabel(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	sink := NewSink(handler, NewDefaultOptions())

	testza.AssertEqual(t, "cache", sink.ModuleLabel("apps/web/cache"))
	testza.AssertEqual(t, "api", sink.ModuleLabel("api"))

	options := sink.Options()
	options.VerboseNaming = true
	sink.Reconfigure(options)

	testza.AssertEqual(t, "apps/web/cache", sink.ModuleLabel("apps/web/cache"))
}

func TestSink_FatalLogsAndExits(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	sink := NewSink(handler, NewDefaultOptions())

	exitCode := -1
	sink.exit = func(code int) {
		exitCode = code
	}

	sink.Fatal(context.Background(), "unrecoverable", slog.String("module", "api"))

	testza.AssertEqual(t, 1, len(handler.records))
	testza.AssertEqual(t, slog.LevelError, handler.records[0].Level)
	testza.AssertEqual(t, 1, exitCode)
}

func TestSink_LoggerEnforcesOptions(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	sink := NewSink(handler, Options{Enabled: false, Prefix: "[off] "})

	// Emissions through the handed-out logger go by the same options as the
	// sink's own methods.
	ctx := slox.Into(context.Background(), sink.Logger())
	slox.Info(ctx, "while disabled", slog.String("module", "apps/web/cache"))
	testza.AssertEqual(t, 0, len(handler.records))

	sink.Reconfigure(Options{Enabled: true, Prefix: "[on] "})
	slox.Info(ctx, "after enable", slog.String("module", "apps/web/cache"))

	testza.AssertEqual(t, 1, len(handler.records))
	testza.AssertEqual(t, "[on] after enable", handler.records[0].Message)

	var label string
	handler.records[0].Attrs(func(attr slog.Attr) bool {
		if attr.Key == "module" {
			label = attr.Value.String()
		}
		return true
	})
	testza.AssertEqual(t, "cache", label)
}

func TestSink_RespectsHandlerEnabled(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	filtered := NewLevelFilter(handler, slog.LevelError, nil)
	sink := NewSink(filtered, NewDefaultOptions())

	sink.Info(context.Background(), "below threshold")

	testza.AssertEqual(t, 0, len(handler.records))
}
