package recorder

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/recorder/accumulation"
	"github.com/gogpu/recorder/encoder"
	"github.com/gogpu/recorder/readback"
	"github.com/gogpu/recorder/timing"
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

func slogger() *slog.Logger { return loggerPtr.Load() }

// SetLogger configures the logger for the recorder and its sub-packages
// (readback, accumulation, timing, encoder). By default nothing is logged.
// GPU backends have their own SetLogger.
//
// SetLogger is safe for concurrent use. Pass nil to restore silent
// operation.
//
// Log levels used by the recorder:
//   - [slog.LevelDebug]: per-frame detail (skips, buffer allocation, resync)
//   - [slog.LevelInfo]: session lifecycle (begin, end, totals)
//   - [slog.LevelWarn]: dropped frames and ignored settings
//   - [slog.LevelError]: misuse such as unbalanced releases
//
// Example:
//
//	recorder.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	readback.SetLogger(l)
	accumulation.SetLogger(l)
	timing.SetLogger(l)
	encoder.SetLogger(l)
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
