package logger

import (
	"context"
	"log/slog"
)

// SlogHandler returns a slog.Handler that writes through l, for packages
// that take a *slog.Logger.
func (l *Logger) SlogHandler() slog.Handler {
	return &slogHandler{l: l}
}

type slogHandler struct {
	l     *Logger
	attrs []interface{}
	group string
}

func toLevel(level slog.Level) LogLevel {
	switch {
	case level >= slog.LevelError:
		return ERROR
	case level >= slog.LevelWarn:
		return WARN
	case level >= slog.LevelInfo:
		return INFO
	default:
		return DEBUG
	}
}

func (h *slogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return toLevel(level) <= h.l.GetLevel()
}

func (h *slogHandler) Handle(_ context.Context, r slog.Record) error {
	kv := make([]interface{}, 0, len(h.attrs)+2*r.NumAttrs())
	kv = append(kv, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		kv = append(kv, h.key(a.Key), a.Value.Any())
		return true
	})
	h.l.log(toLevel(r.Level), r.Message, kv...)
	return nil
}

func (h *slogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &slogHandler{l: h.l, group: h.group, attrs: append([]interface{}(nil), h.attrs...)}
	for _, a := range attrs {
		next.attrs = append(next.attrs, h.key(a.Key), a.Value.Any())
	}
	return next
}

func (h *slogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &slogHandler{l: h.l, attrs: h.attrs, group: h.key(name)}
}

func (h *slogHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}
