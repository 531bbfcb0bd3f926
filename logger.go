package autoremesh

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/autoremesh/holefix"
	"github.com/gogpu/autoremesh/param"
	"github.com/gogpu/autoremesh/quadextract"
	"github.com/gogpu/autoremesh/quadremesh"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for autoremesh and the pipeline packages
// (param, quadextract, quadremesh, holefix). By default nothing is logged.
//
// SetLogger is safe for concurrent use. Pass nil to restore the silent
// default.
//
// Log levels used:
//   - [slog.LevelDebug]: per-trial diagnostics (constraint ratio, singularity
//     count, extraction statistics)
//   - [slog.LevelInfo]: lifecycle events (islands found, island finished)
//   - [slog.LevelWarn]: degraded islands, unfillable holes, topology problems
//
// Example:
//
//	autoremesh.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	propagateLogger(l)
}

// Logger returns the current logger. It is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// propagateLogger hands l to every pipeline package that logs on its own.
func propagateLogger(l *slog.Logger) {
	param.SetLogger(l)
	quadextract.SetLogger(l)
	quadremesh.SetLogger(l)
	holefix.SetLogger(l)
}
