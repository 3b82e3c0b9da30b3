package pipeline

import (
	"io"
	"log"
	"sync/atomic"

	"github.com/skylark-data/overflight.report/internal/vision"
)

// The pipeline shares the vision package's three-stream layout but logs under
// its own prefix, so a single debug file still shows which layer spoke.

type logStreams struct {
	ops, diag, trace *log.Logger
}

var streams atomic.Pointer[logStreams]

func init() {
	streams.Store(&logStreams{})
}

// SetLogWriters points the pipeline's debug streams at the given writers. A
// nil writer silences that stream.
func SetLogWriters(w vision.LogWriters) {
	streams.Store(&logStreams{
		ops:   newLogger("[pipeline] ", w.Ops),
		diag:  newLogger("[pipeline] ", w.Diag),
		trace: newLogger("[pipeline] ", w.Trace),
	})
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// opsf logs to the ops stream (actionable warnings, errors, data loss).
func opsf(format string, args ...interface{}) {
	if l := streams.Load().ops; l != nil {
		l.Printf(format, args...)
	}
}

// diagf logs to the diag stream (day-to-day diagnostics, tuning context).
func diagf(format string, args ...interface{}) {
	if l := streams.Load().diag; l != nil {
		l.Printf(format, args...)
	}
}

// tracef logs to the trace stream (high-frequency frame telemetry).
func tracef(format string, args ...interface{}) {
	if l := streams.Load().trace; l != nil {
		l.Printf(format, args...)
	}
}
