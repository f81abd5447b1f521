package transform

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cwbudde/lfnwatch/internal/cpu"
)

// Entry describes one registered backend.
type Entry struct {
	Name string
	// Level is the SIMD tier the backend needs.
	Level cpu.SIMDLevel
	// Priority orders entries; higher wins.
	Priority int
	// Accelerated marks backends that may fail over to the reference one.
	Accelerated bool
	New         func(size int) (Backend, error)
}

// Registry holds backend entries sorted by descending priority.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
}

// Global is the registry populated by this package's init.
var Global = &Registry{}

// Register adds or replaces the entry with the same name.
func (r *Registry) Register(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entries {
		if r.entries[i].Name == e.Name {
			r.entries[i] = e
			r.sort()
			return
		}
	}
	r.entries = append(r.entries, e)
	r.sort()
}

func (r *Registry) sort() {
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].Priority > r.entries[j].Priority
	})
}

// Entries returns a copy of all entries in priority order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Get returns the entry registered under name.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Lookup returns the highest-priority entry supported by features whose
// Accelerated flag equals accelerated.
func (r *Registry) Lookup(features cpu.Features, accelerated bool) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.Accelerated != accelerated || e.New == nil {
			continue
		}
		if cpu.Supports(features, e.Level) {
			return e, nil
		}
	}
	kind := "reference"
	if accelerated {
		kind = "accelerated"
	}
	return Entry{}, fmt.Errorf("transform: no %s backend for %s", kind, features.Architecture)
}
