package log

import (
	"context"
	"errors"
	"log/slog"
)

// FanoutHandler dispatches every record to each wrapped handler that is
// enabled for the record's level.
type FanoutHandler struct {
	handlers []slog.Handler
}

// NewFanoutHandler creates a FanoutHandler. Nil handlers are ignored.
func NewFanoutHandler(handlers ...slog.Handler) *FanoutHandler {
	hs := make([]slog.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			hs = append(hs, h)
		}
	}
	return &FanoutHandler{handlers: hs}
}

// Enabled reports whether any wrapped handler handles the level.
func (h *FanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle passes a clone of the record to every enabled handler. A failing
// handler does not stop the others; their errors are joined.
func (h *FanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, hh := range h.handlers {
		if !hh.Enabled(ctx, r.Level) {
			continue
		}
		if err := hh.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithAttrs returns a new handler with the given attributes added to
// every wrapped handler.
func (h *FanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		hs[i] = hh.WithAttrs(attrs)
	}
	return &FanoutHandler{handlers: hs}
}

// WithGroup returns a new handler with the given group name.
func (h *FanoutHandler) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		hs[i] = hh.WithGroup(name)
	}
	return &FanoutHandler{handlers: hs}
}
