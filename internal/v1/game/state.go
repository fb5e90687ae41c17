package game

import (
	"sync"
)

// PlayerMeta is the per-player entry of the well-known state header.
type PlayerMeta struct {
	DisplayName string `json:"displayName"`
	Color       string `json:"color,omitempty"`
	Marker      string `json:"marker,omitempty"`
	Seat        int    `json:"seat,omitempty"`
	Balance     int    `json:"balance,omitempty"`
}

// Header carries the well-known fields the sync layer may read regardless
// of the active game. Strategies must keep these populated.
type Header struct {
	Phase           string                `json:"phase"`
	PlayerOrder     []string              `json:"playerOrder"`
	CurrentPlayerID string                `json:"currentPlayerId"`
	IsComplete      bool                  `json:"isComplete"`
	Winner          string                `json:"winner,omitempty"`
	Players         map[string]PlayerMeta `json:"players"`
}

// StateHeader satisfies the State interface for any struct embedding
// Header. The embedded field is named Header, so the accessor needs a
// distinct name for promotion to work.
func (h *Header) StateHeader() *Header {
	return h
}

// CloneHeader returns a deep copy.
func (h *Header) CloneHeader() Header {
	out := *h
	out.PlayerOrder = append([]string(nil), h.PlayerOrder...)
	out.Players = make(map[string]PlayerMeta, len(h.Players))
	for id, meta := range h.Players {
		out.Players[id] = meta
	}
	return out
}

// State is the authoritative per-room game state. Implementations are
// plain data: Clone must return a deep copy sharing no mutable references
// with the receiver, so replaced versions never alias.
type State interface {
	StateHeader() *Header
	Clone() State
}

// StateManager is the versioned container for a room's authoritative
// state. State is only ever replaced whole; the version increments by one
// per replacement.
type StateManager struct {
	mu      sync.RWMutex
	state   State
	version uint64

	subMu   sync.Mutex
	nextSub int
	subs    map[int]func(version uint64, state State)
}

// NewStateManager wraps the initial state at version 0.
func NewStateManager(initial State) *StateManager {
	return &StateManager{
		state: initial,
		subs:  make(map[int]func(uint64, State)),
	}
}

// Current returns the authoritative state and its version. Callers must
// not mutate the returned state; clone before handing it to strategies.
func (m *StateManager) Current() (State, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, m.version
}

// Version returns the current state version.
func (m *StateManager) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// Replace atomically installs next as the authoritative state and bumps
// the version. Used both for command application and undo restoration, so
// an undo lands at exactly +2 versus the pre-command version.
func (m *StateManager) Replace(next State) uint64 {
	m.mu.Lock()
	m.state = next
	m.version++
	version := m.version
	state := m.state
	m.mu.Unlock()

	for _, fn := range m.changeSubs() {
		fn(version, state)
	}
	return version
}

// OnChange subscribes to state replacements. The returned func cancels the
// subscription.
func (m *StateManager) OnChange(fn func(version uint64, state State)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subs, id)
	}
}

func (m *StateManager) changeSubs() []func(uint64, State) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	out := make([]func(uint64, State), 0, len(m.subs))
	for _, fn := range m.subs {
		out = append(out, fn)
	}
	return out
}
