package display

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// discardHandler drops every record. Enabled reports false so callers skip
// building attributes on the per-frame paths.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }

var (
	silent = slog.New(discardHandler{})

	// current is read from the compositor loop, from client goroutines
	// blocked in buffer advances and from HWC callbacks.
	current atomic.Pointer[slog.Logger]
)

func init() {
	current.Store(silent)
}

// SetLogger installs the logger shared by the server and its packages.
// The server is silent until SetLogger is called; nil makes it silent
// again.
//
// Levels:
//   - [slog.LevelDebug]: vsync, swaps, layer lists and other per-frame detail
//   - [slog.LevelInfo]: sessions, devices and server lifecycle
//   - [slog.LevelWarn]: failed releases, dropped frames, late HWC callbacks
//
// For example:
//
//	display.SetLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = silent
	}
	current.Store(l)
}

// Logger returns the installed logger. It never returns nil.
func Logger() *slog.Logger {
	return current.Load()
}
