package vs

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/vs/internal/kernel"
)

// nopHandler drops every record. Enabled is false, so log calls on the
// frame path cost a level check and nothing else.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr is read by the owner goroutine on every frame and may be swapped
// by SetLogger from anywhere.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger routes runtime diagnostics to l. The runtime is silent until
// SetLogger is called; nil makes it silent again. The logger is shared with
// the kernel builder.
//
// What gets logged:
//   - Debug: pool and source texture allocations, prev falling back to the
//     source, compiled kernel sizes.
//   - Info: frame size changes, compiled scripts.
//   - Warn: stack depth over the limit (once per frame), skipped parameter
//     buffer updates, ignored attribute overrides and variables, kernels
//     with a fixed workgroup size under a custom tile, underflow
//     replacements.
//
// For example, to see everything on stderr:
//
//	vs.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	kernel.SetLogger(l)
}

// Logger returns the logger set by SetLogger. Safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
