// Package fsm provides a table-driven finite state machine with an
// explicitly enumerated legal-transition set, bounded transition history,
// and enter/exit observers.
package fsm

import (
	"sync"
	"time"

	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

// State is a named machine state.
type State string

// Table maps each state to its legal successor set.
type Table map[State][]State

// HistoryEntry records one applied transition for diagnostics.
type HistoryEntry struct {
	From     State
	To       State
	At       time.Time
	Metadata map[string]any
}

// ObserverFunc is invoked on enter or exit of a state. Observers run
// synchronously under the machine lock; keep them short.
type ObserverFunc func(s State, meta map[string]any)

const maxHistory = 64

// Machine enforces a transition table. The zero value is not usable;
// construct with New.
type Machine struct {
	mu      sync.RWMutex
	table   Table
	current State
	history []HistoryEntry
	nextSub int
	onEnter map[State]map[int]ObserverFunc
	onExit  map[State]map[int]ObserverFunc
}

// New creates a Machine at the given initial state.
func New(table Table, initial State) *Machine {
	return &Machine{
		table:   table,
		current: initial,
		onEnter: make(map[State]map[int]ObserverFunc),
		onExit:  make(map[State]map[int]ObserverFunc),
	}
}

// Current returns the machine's current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Is reports whether the machine is in any of the given states.
func (m *Machine) Is(states ...State) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range states {
		if m.current == s {
			return true
		}
	}
	return false
}

// CanTransition reports whether moving to target is legal from the current state.
func (m *Machine) CanTransition(target State) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.legal(m.current, target)
}

func (m *Machine) legal(from, to State) bool {
	for _, s := range m.table[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves the machine to target. An illegal transition returns
// INVALID_TRANSITION and leaves the state unchanged.
func (m *Machine) Transition(target State, metadata map[string]any) *types.Error {
	m.mu.Lock()

	from := m.current
	if !m.legal(from, target) {
		m.mu.Unlock()
		return types.NewError(types.ErrInvalidTransition, "cannot transition from %s to %s", from, target)
	}

	m.current = target
	m.history = append(m.history, HistoryEntry{From: from, To: target, At: time.Now(), Metadata: metadata})
	if len(m.history) > maxHistory {
		m.history = m.history[len(m.history)-maxHistory:]
	}

	exitObs := collect(m.onExit[from])
	enterObs := collect(m.onEnter[target])
	m.mu.Unlock()

	for _, fn := range exitObs {
		fn(from, metadata)
	}
	for _, fn := range enterObs {
		fn(target, metadata)
	}
	return nil
}

// History returns a copy of the bounded transition history.
func (m *Machine) History() []HistoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]HistoryEntry, len(m.history))
	copy(out, m.history)
	return out
}

// OnEnter registers an observer for entering s. The returned func cancels
// the subscription.
func (m *Machine) OnEnter(s State, fn ObserverFunc) func() {
	return m.subscribe(m.onEnter, s, fn)
}

// OnExit registers an observer for exiting s. The returned func cancels
// the subscription.
func (m *Machine) OnExit(s State, fn ObserverFunc) func() {
	return m.subscribe(m.onExit, s, fn)
}

func (m *Machine) subscribe(reg map[State]map[int]ObserverFunc, s State, fn ObserverFunc) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reg[s] == nil {
		reg[s] = make(map[int]ObserverFunc)
	}
	id := m.nextSub
	m.nextSub++
	reg[s][id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(reg[s], id)
	}
}

func collect(obs map[int]ObserverFunc) []ObserverFunc {
	if len(obs) == 0 {
		return nil
	}
	out := make([]ObserverFunc, 0, len(obs))
	for _, fn := range obs {
		out = append(out, fn)
	}
	return out
}
