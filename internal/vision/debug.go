package vision

import (
	"io"
	"log"
	"sync/atomic"
)

// LogWriters selects the destinations for the package's three debug streams.
// A nil writer silences that stream.
type LogWriters struct {
	Ops   io.Writer // actionable warnings, errors, lifecycle events
	Diag  io.Writer // day-to-day diagnostics and tuning context
	Trace io.Writer // per-frame telemetry, high volume
}

type logStreams struct {
	ops, diag, trace *log.Logger
}

var streams atomic.Pointer[logStreams]

func init() {
	streams.Store(&logStreams{})
}

// SetLogWriters points the debug streams at the given writers. Safe to call
// while the pipeline is running; in-flight log calls finish on the previous
// writers.
func SetLogWriters(w LogWriters) {
	streams.Store(&logStreams{
		ops:   newLogger("[vision] ", w.Ops),
		diag:  newLogger("[vision] ", w.Diag),
		trace: newLogger("[vision] ", w.Trace),
	})
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// Opsf logs to the ops stream (actionable warnings, errors, lifecycle events).
func Opsf(format string, args ...interface{}) {
	if l := streams.Load().ops; l != nil {
		l.Printf(format, args...)
	}
}

// Diagf logs to the diag stream (day-to-day diagnostics, tuning context).
func Diagf(format string, args ...interface{}) {
	if l := streams.Load().diag; l != nil {
		l.Printf(format, args...)
	}
}

// Tracef logs to the trace stream (high-frequency frame telemetry).
func Tracef(format string, args ...interface{}) {
	if l := streams.Load().trace; l != nil {
		l.Printf(format, args...)
	}
}
