package common

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that discards every record. Enabled reports false so callers
// skip formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// loggerPtr stores the active logger shared by every engine package.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger configures the logger used by the engine and all of its sub-packages.
// By default nothing is logged. Pass nil to restore the silent default.
//
// Levels used:
//   - slog.LevelDebug: cache misses, buffer growth, deferred releases
//   - slog.LevelInfo: backend/adapter selection, profiler output
//   - slog.LevelWarn: discarded frames, rejected callbacks
//
// Parameters:
//   - l: the logger to install, or nil to disable logging
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the current engine logger.
//
// Returns:
//   - *slog.Logger: the active logger (never nil)
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
