package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"maps"
	"os"
	"slices"
	"strings"
	"sync/atomic"
)

// DefaultLogger writes through the standard log package.
// Debug/Info go to stdout, Warn/Error to stderr (colored on a terminal).
type DefaultLogger struct {
	stdout    *log.Logger
	stderr    *log.Logger
	level     *atomic.Int32
	fields    Fields
	useColors bool
}

// NewDefaultLogger creates a logger writing to the process stdout/stderr.
func NewDefaultLogger() *DefaultLogger {
	return NewWriterLogger(os.Stdout, os.Stderr, isTerminal())
}

// NewWriterLogger creates a logger writing to the given writers.
func NewWriterLogger(stdout, stderr io.Writer, colors bool) *DefaultLogger {
	lvl := &atomic.Int32{}
	lvl.Store(int32(InfoLevel))
	return &DefaultLogger{
		stdout:    log.New(stdout, "", log.LstdFlags),
		stderr:    log.New(stderr, "", log.LstdFlags),
		level:     lvl,
		fields:    Fields{},
		useColors: colors,
	}
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func (d *DefaultLogger) format(level Level, err error, msg string, fields []Fields) string {
	all := make(Fields, len(d.fields))
	maps.Copy(all, d.fields)
	for _, f := range fields {
		maps.Copy(all, f)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", level, msg)
	if err != nil {
		fmt.Fprintf(&b, ": %v", err)
	}
	// Sorted keys keep log lines stable between runs.
	for _, k := range slices.Sorted(maps.Keys(all)) {
		fmt.Fprintf(&b, " %s=%v", k, all[k])
	}

	out := b.String()
	if d.useColors {
		switch level {
		case WarnLevel:
			out = ColorYellow + out + ColorReset
		case ErrorLevel:
			out = ColorRed + out + ColorReset
		}
	}
	return out
}

func (d *DefaultLogger) log(level Level, err error, msg string, fields []Fields) {
	if level < Level(d.level.Load()) {
		return
	}
	line := d.format(level, err, msg, fields)
	if level >= WarnLevel {
		d.stderr.Println(line)
		return
	}
	d.stdout.Println(line)
}

func (d *DefaultLogger) Debug(msg string, fields ...Fields) { d.log(DebugLevel, nil, msg, fields) }

func (d *DefaultLogger) Info(msg string, fields ...Fields) { d.log(InfoLevel, nil, msg, fields) }

func (d *DefaultLogger) Warn(msg string, fields ...Fields) { d.log(WarnLevel, nil, msg, fields) }

func (d *DefaultLogger) Error(err error, msg string, fields ...Fields) {
	d.log(ErrorLevel, err, msg, fields)
}

func (d *DefaultLogger) WithFields(fields Fields) Logger {
	merged := make(Fields, len(d.fields)+len(fields))
	maps.Copy(merged, d.fields)
	maps.Copy(merged, fields)
	return &DefaultLogger{
		stdout:    d.stdout,
		stderr:    d.stderr,
		level:     d.level,
		fields:    merged,
		useColors: d.useColors,
	}
}

func (d *DefaultLogger) WithContext(ctx context.Context) Logger {
	if f, ok := fieldsFromContext(ctx); ok {
		return d.WithFields(f)
	}
	return d
}

// SetLevel changes the minimum level for this logger and all loggers derived from it.
func (d *DefaultLogger) SetLevel(level Level) { d.level.Store(int32(level)) }

// NoOpLogger discards everything.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...Fields) {}

func (NoOpLogger) Info(string, ...Fields) {}

func (NoOpLogger) Warn(string, ...Fields) {}

func (NoOpLogger) Error(error, string, ...Fields) {}

func (n NoOpLogger) WithFields(Fields) Logger { return n }

func (n NoOpLogger) WithContext(context.Context) Logger { return n }

func (NoOpLogger) SetLevel(Level) {}
