// Package obslog provides the structured logging interface shared by the
// scheduler and update engine.
//
// Package-level configuration for structured logging. This design allows
// external integration with logging frameworks while providing a
// low-overhead built-in implementation for basic usage.
//
// Design decision: a narrow Logger interface, with a pluggable default
// implementation, is appropriate here because logging is an infrastructure
// cross-cutting concern shared by every scheduler and update-engine
// instance, and callers embedding this module may already standardize on
// their own logiface backend.
//
// Grounded on eventloop/logging.go's Logger/LogEntry/DefaultLogger shape;
// the hand-rolled JSON/ANSI formatting there is replaced here with a real
// logiface-backed encoder (stumpy by default, zerolog optionally), since a
// library exists in the retrieval pack for this exact concern.
package obslog

import (
	"os"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/rs/zerolog"
)

// Level mirrors the severity levels a caller of this package cares about.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) toLogiface() logiface.Level {
	switch l {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}

// Entry is a structured log entry, matching the fields the scheduler and
// update engine need to attach: the task/cord a message concerns, an
// optional wait/timer identifier, free-form context fields, and an error
// cause.
type Entry struct {
	Level    Level
	Category string // "sched", "cord", "update"
	CordName string
	TaskID   uint64
	WaitID   uint64
	Message  string
	Fields   map[string]any
	Err      error
}

// Logger is the structured logging interface implemented by this package's
// default loggers, and by any caller-supplied alternative.
type Logger interface {
	Log(e Entry)
	IsEnabled(level Level) bool
}

// noopLogger discards everything; it is the zero-value default so callers
// who never configure logging pay no cost.
type noopLogger struct{}

func (noopLogger) Log(Entry)            {}
func (noopLogger) IsEnabled(Level) bool { return false }

// NoOp returns a Logger that discards all entries.
func NoOp() Logger { return noopLogger{} }

// logifaceLogger adapts a logiface.Logger[*stumpy.Event] (or any other
// logiface.Event implementation) to the Logger interface.
type logifaceLogger[E logiface.Event] struct {
	l     *logiface.Logger[E]
	level Level
}

func (x *logifaceLogger[E]) IsEnabled(level Level) bool {
	return x.l.Level() != logiface.LevelDisabled && level >= x.level
}

func (x *logifaceLogger[E]) Log(e Entry) {
	var b *logiface.Builder[E]
	switch e.Level {
	case LevelDebug:
		b = x.l.Debug()
	case LevelWarn:
		b = x.l.Warning()
	case LevelError:
		b = x.l.Err()
	default:
		b = x.l.Info()
	}
	if e.CordName != "" {
		b = b.Str("cord", e.CordName)
	}
	if e.TaskID != 0 {
		b = b.Uint64("task", e.TaskID)
	}
	if e.WaitID != 0 {
		b = b.Uint64("wait", e.WaitID)
	}
	if e.Category != "" {
		b = b.Str("category", e.Category)
	}
	for k, v := range e.Fields {
		b = b.Interface(k, v)
	}
	if e.Err != nil {
		b = b.Err(e.Err)
	}
	b.Log(e.Message)
}

// NewStumpy builds the default, dependency-light Logger: logiface's core
// with stumpy as the JSON event encoder (itself built on jsonenc). This is
// the teacher's "model" logger, per stumpy/doc.go, and requires no
// additional transitive third-party dependency.
func NewStumpy(min Level) Logger {
	l := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr)),
		stumpy.L.WithLevel(min.toLogiface()),
	)
	return &logifaceLogger[*stumpy.Event]{l: l, level: min}
}

// NewZerolog builds an alternate Logger backed by rs/zerolog via the
// logiface-zerolog adapter, for deployments that already standardize on
// zerolog for log aggregation.
func NewZerolog(min Level) Logger {
	zl := zerolog.New(os.Stderr).With().Timestamp().Logger()
	l := izerolog.L.New(
		izerolog.L.WithZerolog(zl),
		izerolog.L.WithLevel(min.toLogiface()),
	)
	return &logifaceLogger[*izerolog.Event]{l: l, level: min}
}
