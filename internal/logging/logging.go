// Package logging provides the structured logger used across lfnwatch.
//
// Components receive a Logger through their options and derive a
// component-scoped logger with WithFields. The package-level logger is used
// when no logger is supplied.
package logging

import (
	"context"
	"sync"
)

// ANSI color codes for terminal output.
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorYellow = "\033[33m"
	ColorBold   = "\033[1m"
)

// Level is a log severity.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Fields holds structured key/value pairs attached to a log entry.
type Fields map[string]any

// Logger is the logging interface every component depends on.
type Logger interface {
	Debug(msg string, fields ...Fields)
	Info(msg string, fields ...Fields)
	Warn(msg string, fields ...Fields)
	Error(err error, msg string, fields ...Fields)

	// WithFields returns a logger with preset fields.
	WithFields(fields Fields) Logger

	// WithContext returns a logger carrying fields stored in ctx by ContextWithFields.
	WithContext(ctx context.Context) Logger

	SetLevel(level Level)
}

type ctxKey struct{}

// ContextWithFields stores fields in ctx for later retrieval by WithContext.
func ContextWithFields(ctx context.Context, fields Fields) context.Context {
	return context.WithValue(ctx, ctxKey{}, fields)
}

func fieldsFromContext(ctx context.Context) (Fields, bool) {
	if ctx == nil {
		return nil, false
	}
	f, ok := ctx.Value(ctxKey{}).(Fields)
	return f, ok
}

var (
	globalMu     sync.RWMutex
	globalLogger Logger = NewDefaultLogger()
)

// SetGlobalLogger replaces the package logger. A nil logger disables logging.
func SetGlobalLogger(logger Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if logger == nil {
		globalLogger = NoOpLogger{}
		return
	}
	globalLogger = logger
}

// GetGlobalLogger returns the package logger.
func GetGlobalLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// OrGlobal returns l, or the package logger when l is nil.
func OrGlobal(l Logger) Logger {
	if l != nil {
		return l
	}
	return GetGlobalLogger()
}

func Debug(msg string, fields ...Fields) { GetGlobalLogger().Debug(msg, fields...) }

func Info(msg string, fields ...Fields) { GetGlobalLogger().Info(msg, fields...) }

func Warn(msg string, fields ...Fields) { GetGlobalLogger().Warn(msg, fields...) }

func Error(err error, msg string, fields ...Fields) { GetGlobalLogger().Error(err, msg, fields...) }

func WithFields(fields Fields) Logger { return GetGlobalLogger().WithFields(fields) }

func SetLevel(level Level) { GetGlobalLogger().SetLevel(level) }
