package logging

import (
	"context"
	"maps"
	"sync"
)

// Entry is one log call captured by a Recorder.
type Entry struct {
	Level   Level
	Message string
	Err     error
	Fields  Fields
}

// Recorder keeps every entry in memory. Loggers derived with WithFields share
// the same entry list. Intended for tests.
type Recorder struct {
	mu      *sync.Mutex
	entries *[]Entry
	fields  Fields
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{mu: &sync.Mutex{}, entries: &[]Entry{}, fields: Fields{}}
}

func (r *Recorder) add(level Level, err error, msg string, fields []Fields) {
	all := make(Fields, len(r.fields))
	maps.Copy(all, r.fields)
	for _, f := range fields {
		maps.Copy(all, f)
	}
	r.mu.Lock()
	*r.entries = append(*r.entries, Entry{Level: level, Message: msg, Err: err, Fields: all})
	r.mu.Unlock()
}

func (r *Recorder) Debug(msg string, fields ...Fields) { r.add(DebugLevel, nil, msg, fields) }

func (r *Recorder) Info(msg string, fields ...Fields) { r.add(InfoLevel, nil, msg, fields) }

func (r *Recorder) Warn(msg string, fields ...Fields) { r.add(WarnLevel, nil, msg, fields) }

func (r *Recorder) Error(err error, msg string, fields ...Fields) {
	r.add(ErrorLevel, err, msg, fields)
}

func (r *Recorder) WithFields(fields Fields) Logger {
	merged := make(Fields, len(r.fields)+len(fields))
	maps.Copy(merged, r.fields)
	maps.Copy(merged, fields)
	return &Recorder{mu: r.mu, entries: r.entries, fields: merged}
}

func (r *Recorder) WithContext(ctx context.Context) Logger {
	if f, ok := fieldsFromContext(ctx); ok {
		return r.WithFields(f)
	}
	return r
}

func (r *Recorder) SetLevel(Level) {}

// Entries returns a snapshot of the captured entries.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(*r.entries))
	copy(out, *r.entries)
	return out
}

// Count returns how many entries at level have the given message.
func (r *Recorder) Count(level Level, msg string) int {
	n := 0
	for _, e := range r.Entries() {
		if e.Level == level && e.Message == msg {
			n++
		}
	}
	return n
}
