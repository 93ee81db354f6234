package logging

import (
	"context"
	"io"
	"log/slog"
	"runtime"
)

// New returns a *slog.Logger configured for the given environment.
//
// dev (and anything unrecognised) gets human-readable text at DEBUG,
// staging gets JSON at DEBUG, prod gets JSON at INFO.
// ERROR-level records carry a stack trace.
func New(env string, w io.Writer) *slog.Logger {
	var h slog.Handler
	switch env {
	case "prod":
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	case "staging":
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	default:
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return slog.New(&stackHandler{Handler: h})
}

// Setup builds the logger for env and installs it as the slog default.
func Setup(env string, w io.Writer) *slog.Logger {
	l := New(env, w)
	slog.SetDefault(l)
	return l
}

// stackHandler wraps a slog.Handler and appends a stack trace for ERROR+.
type stackHandler struct {
	slog.Handler
}

func (h *stackHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		buf := make([]byte, 4096)
		n := runtime.Stack(buf, false)
		r.AddAttrs(slog.String("stacktrace", string(buf[:n])))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *stackHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &stackHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *stackHandler) WithGroup(name string) slog.Handler {
	return &stackHandler{Handler: h.Handler.WithGroup(name)}
}
