// Package logger defines the narrow logging surface used across the
// simulator. The teacher's version of this package wrapped a private
// github.com/evdnx/golog; every call site in the strategy package actually
// built fields with go.uber.org/zap directly, so this adaptation depends on
// zap itself rather than re-deriving an unverified third party's wrapper
// API (see DESIGN.md).
package logger

import "go.uber.org/zap"

// Field re-exports zap.Field so callers do not depend on the concrete logger.
type Field = zap.Field

// Logger defines the minimal logging surface used across the codebase.
type Logger interface {
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// zapLogger adapts *zap.Logger to the local Logger interface.
type zapLogger struct {
	inner *zap.Logger
}

func (l *zapLogger) Info(msg string, fields ...Field) {
	l.inner.Info(msg, fields...)
}

func (l *zapLogger) Warn(msg string, fields ...Field) {
	l.inner.Warn(msg, fields...)
}

func (l *zapLogger) Error(msg string, fields ...Field) {
	l.inner.Error(msg, fields...)
}

// NewProductionLogger creates a production-ready logger with JSON output.
func NewProductionLogger() (Logger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &zapLogger{inner: l}, nil
}

// NewNopLogger returns a Logger that discards everything, used as the
// default when a caller has no logging infrastructure of its own wired up.
func NewNopLogger() Logger {
	return &zapLogger{inner: zap.NewNop()}
}

// Structured field helpers re-exported for convenience.
var (
	String  = zap.String
	Int     = zap.Int
	Int64   = zap.Int64
	Uint32  = zap.Uint32
	Uint64  = zap.Uint64
	Float64 = zap.Float64
	Bool    = zap.Bool
	Any     = zap.Any
	Err     = zap.Error
)


