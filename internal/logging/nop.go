package logging

import (
	"context"
	"log/slog"
)

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }

// NewNop returns a logger that discards every record. Used in tests and as a
// safe fallback when no logger was injected.
func NewNop() *slog.Logger {
	return slog.New(nopHandler{})
}
