// Package pose wires logging for the pose pipeline packages. Commands
// call SetLogWriters once at startup instead of configuring each layer.
package pose

import (
	"io"
	"log"
	"sync"

	"github.com/banshee-data/pose.report/internal/pose/batch"
	"github.com/banshee-data/pose.report/internal/pose/detect"
	"github.com/banshee-data/pose.report/internal/pose/l3signal"
	"github.com/banshee-data/pose.report/internal/pose/l4normalize"
	"github.com/banshee-data/pose.report/internal/pose/pipeline"
	"github.com/banshee-data/pose.report/internal/pose/storage/sqlite"
	"github.com/banshee-data/pose.report/internal/pose/viewer"
)

// LogWriters holds the io.Writers for each logging stream.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

var (
	mu          sync.RWMutex
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures all three logging streams for this package and
// every pose subpackage. Pass nil for any writer to disable that stream.
func SetLogWriters(w LogWriters) {
	mu.Lock()
	opsLogger = newLogger("[pose] ", w.Ops)
	diagLogger = newLogger("[pose] ", w.Diag)
	traceLogger = newLogger("[pose] ", w.Trace)
	mu.Unlock()

	detect.SetLogWriters(w.Ops, w.Diag, w.Trace)
	l3signal.SetLogWriters(w.Ops, w.Diag, w.Trace)
	l4normalize.SetLogWriters(w.Ops, w.Diag, w.Trace)
	pipeline.SetLogWriters(w.Ops, w.Diag, w.Trace)
	batch.SetLogWriters(w.Ops, w.Diag, w.Trace)
	sqlite.SetLogWriters(w.Ops, w.Diag, w.Trace)
	viewer.SetLogWriters(w.Ops, w.Diag, w.Trace)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// Opsf logs to the ops stream (actionable warnings, errors, lifecycle events).
func Opsf(format string, args ...interface{}) {
	mu.RLock()
	l := opsLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Diagf logs to the diag stream (per-video summaries).
func Diagf(format string, args ...interface{}) {
	mu.RLock()
	l := diagLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Tracef logs to the trace stream (per-frame telemetry).
func Tracef(format string, args ...interface{}) {
	mu.RLock()
	l := traceLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}
