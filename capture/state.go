package capture

import (
	"fmt"
	"slices"
	"sync"

	"github.com/cwbudde/lfnwatch/internal/logging"
)

// State is the session lifecycle state.
type State int

const (
	StateInit State = iota
	StateCapturing
	StateSegmentRotating
	StateStopping
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateCapturing:
		return "CAPTURING"
	case StateSegmentRotating:
		return "SEGMENT_ROTATING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == StateStopped || s == StateFailed }

// transitions lists the allowed successor states. INIT may fail directly
// when the device cannot be opened.
var transitions = map[State][]State{
	StateInit:            {StateCapturing, StateFailed},
	StateCapturing:       {StateSegmentRotating, StateStopping},
	StateSegmentRotating: {StateCapturing, StateStopping},
	StateStopping:        {StateStopped, StateFailed},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

type machine struct {
	mu     sync.RWMutex
	state  State
	logger logging.Logger
}

func (m *machine) current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *machine) transition(to State) error {
	m.mu.Lock()
	from := m.state
	if !CanTransition(from, to) {
		m.mu.Unlock()
		return fmt.Errorf("capture: invalid transition %s -> %s", from, to)
	}
	m.state = to
	m.mu.Unlock()

	fields := logging.Fields{"from": from.String(), "to": to.String()}
	if to == StateSegmentRotating || from == StateSegmentRotating {
		m.logger.Debug("session state", fields)
	} else {
		m.logger.Info("session state", fields)
	}
	return nil
}
