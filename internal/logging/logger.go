// Package logging wraps zerolog with the correlation-field vocabulary
// the replication engine's error-handling design requires: every
// handler logs with {sessionId, execId, fixOrderId, fixClOrdId, symbol}.
// The Field composition API mirrors the teacher repo's hand-rolled
// logging/fields.go, but the backing writer is github.com/rs/zerolog
// rather than a bespoke JSON encoder.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Logger is a thin, correlation-aware wrapper over a zerolog.Logger.
type Logger struct {
	base zerolog.Logger
}

var (
	defaultOnce sync.Once
	defaultLog  *Logger
)

// New builds a Logger writing JSON to w, or a console-formatted stream
// when environment is not "production" (matching the teacher's
// environment-gated log formatting).
func New(w io.Writer, environment string) *Logger {
	var out io.Writer = w
	if environment != "production" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	}
	base := zerolog.New(out).With().Timestamp().Logger()
	return &Logger{base: base}
}

// Default returns a process-wide logger writing to stderr, created once.
func Default() *Logger {
	defaultOnce.Do(func() {
		defaultLog = New(os.Stderr, os.Getenv("ENVIRONMENT"))
	})
	return defaultLog
}

// Field is a named value to attach to a log line or a child logger,
// composed the same way the teacher's logging.Field values were.
type Field struct {
	key string
	val interface{}
}

func SessionID(id string) Field    { return Field{"sessionId", id} }
func ExecID(id string) Field       { return Field{"execId", id} }
func FixOrderID(id string) Field   { return Field{"fixOrderId", id} }
func FixClOrdID(id string) Field   { return Field{"fixClOrdId", id} }
func OrigClOrdID(id string) Field  { return Field{"origClOrdId", id} }
func Symbol(sym string) Field      { return Field{"symbol", sym} }
func Component(name string) Field  { return Field{"component", name} }
func AccountNumber(n string) Field { return Field{"account", n} }
func String(key, val string) Field { return Field{key, val} }
func Int(key string, val int) Field { return Field{key, val} }
func Int64(key string, val int64) Field { return Field{key, val} }
func Bool(key string, val bool) Field { return Field{key, val} }

// Err wraps an error as a loggable field; a nil error is a no-op field.
func Err(err error) Field { return Field{"error", err} }

func applyEvent(e *zerolog.Event, fields []Field) *zerolog.Event {
	for _, f := range fields {
		if f.key == "" {
			continue
		}
		if f.key == "error" {
			if err, ok := f.val.(error); ok && err != nil {
				e = e.Err(err)
			}
			continue
		}
		if s, ok := f.val.(string); ok && s == "" {
			continue
		}
		e = e.Interface(f.key, f.val)
	}
	return e
}

func (l *Logger) Debug(msg string, fields ...Field) { applyEvent(l.base.Debug(), fields).Msg(msg) }
func (l *Logger) Info(msg string, fields ...Field)  { applyEvent(l.base.Info(), fields).Msg(msg) }
func (l *Logger) Warn(msg string, fields ...Field)  { applyEvent(l.base.Warn(), fields).Msg(msg) }
func (l *Logger) Error(msg string, fields ...Field) { applyEvent(l.base.Error(), fields).Msg(msg) }

// With returns a child Logger with the given fields permanently attached,
// used by the Dispatcher to build one correlation-scoped logger per
// inbound ExecutionReport and pass it down through handler, replication
// and locate code instead of threading raw field lists everywhere.
func (l *Logger) With(fields ...Field) *Logger {
	ctx := l.base.With()
	for _, f := range fields {
		if f.key == "" {
			continue
		}
		if f.key == "error" {
			if err, ok := f.val.(error); ok && err != nil {
				ctx = ctx.AnErr(f.key, err)
			}
			continue
		}
		if s, ok := f.val.(string); ok && s == "" {
			continue
		}
		ctx = ctx.Interface(f.key, f.val)
	}
	return &Logger{base: ctx.Logger()}
}

// Raw exposes the underlying zerolog.Logger for components (e.g. pgx's
// tracelog bridge) that need a vendor-shaped logging interface.
func (l *Logger) Raw() zerolog.Logger { return l.base }
