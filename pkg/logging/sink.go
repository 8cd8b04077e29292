// Package logging provides the orchestrator's logging sink: a thin,
// runtime-reconfigurable facade over log/slog with per-package level filtering
// and context-scoped overrides.
package logging

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// moduleKey is the attribute key core emissions use for module paths. The sink
// handler rewrites its values according to VerboseNaming.
const moduleKey = "module"

// Options is the sink's runtime-reconfigurable state.
type Options struct {
	// Enabled gates all output. A disabled sink drops every record.
	Enabled bool `koanf:"enabled"`

	// Prefix is prepended to every message.
	Prefix string `koanf:"prefix"`

	// VerboseNaming switches module labels from leaf names to full
	// container paths.
	VerboseNaming bool `koanf:"verbose_naming"`
}

// NewDefaultOptions returns default sink options.
func NewDefaultOptions() Options {
	return Options{
		Enabled:       true,
		Prefix:        "",
		VerboseNaming: false,
	}
}

// Sink is the logging collaborator handed to the loader and registry layers.
// It wraps an slog.Logger and can be reconfigured while the process runs.
// Every record flows through the sink's own handler, so loggers handed out via
// Logger honor the options too, no matter who emits.
type Sink struct {
	mu      sync.RWMutex
	logger  *slog.Logger
	options Options
	exit    func(code int)
}

// NewSink creates a sink over the given handler.
func NewSink(handler slog.Handler, options Options) *Sink {
	s := &Sink{
		options: options,
		exit:    os.Exit,
	}
	s.logger = slog.New(&sinkHandler{sink: s, upstream: handler})
	return s
}

// Reconfigure atomically replaces the sink's options.
func (s *Sink) Reconfigure(options Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.options = options
}

// Options returns a snapshot of the current options.
func (s *Sink) Options() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.options
}

// Logger returns the sink's slog.Logger, for handing to slox contexts.
func (s *Sink) Logger() *slog.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logger
}

// ModuleLabel formats a module's container path for log output: the full path
// under verbose naming, otherwise just the leaf name.
func (s *Sink) ModuleLabel(path string) string {
	s.mu.RLock()
	verbose := s.options.VerboseNaming
	s.mu.RUnlock()

	if verbose {
		return path
	}
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Info logs at info level.
func (s *Sink) Info(ctx context.Context, msg string, args ...any) {
	s.log(ctx, slog.LevelInfo, msg, args...)
}

// Warn logs at warn level.
func (s *Sink) Warn(ctx context.Context, msg string, args ...any) {
	s.log(ctx, slog.LevelWarn, msg, args...)
}

// Fatal logs at error level and halts the process.
func (s *Sink) Fatal(ctx context.Context, msg string, args ...any) {
	s.log(ctx, slog.LevelError, msg, args...)

	s.mu.RLock()
	exit := s.exit
	s.mu.RUnlock()
	exit(1)
}

func (s *Sink) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	handler := s.Logger().Handler()
	if !handler.Enabled(ctx, level) {
		return
	}

	// Capture the caller's PC so AddSource handlers point at the call site,
	// not at this facade.
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])

	record := slog.NewRecord(time.Now(), level, msg, pcs[0])
	record.Add(args...)
	_ = handler.Handle(ctx, record)
}

var _ slog.Handler = (*sinkHandler)(nil)

// sinkHandler enforces the sink's options on every record: Enabled gates
// output, Prefix decorates messages, and module attributes are relabeled
// according to VerboseNaming.
type sinkHandler struct {
	sink     *Sink
	upstream slog.Handler
}

func (h *sinkHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.sink.Options().Enabled && h.upstream.Enabled(ctx, level)
}

func (h *sinkHandler) Handle(ctx context.Context, record slog.Record) error {
	options := h.sink.Options()
	if !options.Enabled {
		return nil
	}

	out := slog.NewRecord(record.Time, record.Level, options.Prefix+record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == moduleKey && attr.Value.Kind() == slog.KindString {
			attr.Value = slog.StringValue(h.sink.ModuleLabel(attr.Value.String()))
		}
		out.AddAttrs(attr)
		return true
	})

	return h.upstream.Handle(ctx, out) //nolint:wrapcheck
}

func (h *sinkHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sinkHandler{sink: h.sink, upstream: h.upstream.WithAttrs(attrs)}
}

func (h *sinkHandler) WithGroup(name string) slog.Handler {
	return &sinkHandler{sink: h.sink, upstream: h.upstream.WithGroup(name)}
}
