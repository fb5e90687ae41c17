package game

import (
	"sync"
	"time"

	"github.com/TheZedxD/HomeGameServer/internal/v1/fsm"
	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

// Player is one room participant. Identity is stable across reconnects;
// the session handle changes on every new transport connection.
type Player struct {
	ID          types.PlayerIDType
	DisplayName types.DisplayNameType
	SessionID   types.SessionIDType
	FSM         *fsm.Machine

	Ready           bool
	ConnectAttempts int
	JoinedAt        time.Time
	LastActivity    time.Time
	LastDisconnect  time.Time
}

// PlayerManager is the per-room view of participants. Rooms reference
// players by id only; removing a player here does not destroy global
// player identity.
type PlayerManager struct {
	mu      sync.RWMutex
	players map[types.PlayerIDType]*Player
	order   []types.PlayerIDType // join order
}

func NewPlayerManager() *PlayerManager {
	return &PlayerManager{players: make(map[types.PlayerIDType]*Player)}
}

// Add registers a player. Returns false if the id is already present.
func (pm *PlayerManager) Add(p *Player) bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if _, exists := pm.players[p.ID]; exists {
		return false
	}
	pm.players[p.ID] = p
	pm.order = append(pm.order, p.ID)
	return true
}

// Remove drops the player from the room view.
func (pm *PlayerManager) Remove(id types.PlayerIDType) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.players, id)
	for i, pid := range pm.order {
		if pid == id {
			pm.order = append(pm.order[:i], pm.order[i+1:]...)
			break
		}
	}
}

// Get returns the player or nil.
func (pm *PlayerManager) Get(id types.PlayerIDType) *Player {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.players[id]
}

// Has reports membership.
func (pm *PlayerManager) Has(id types.PlayerIDType) bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	_, ok := pm.players[id]
	return ok
}

// Count returns the number of players in the room.
func (pm *PlayerManager) Count() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.players)
}

// IDs returns player ids in join order.
func (pm *PlayerManager) IDs() []types.PlayerIDType {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return append([]types.PlayerIDType(nil), pm.order...)
}

// All returns the players in join order.
func (pm *PlayerManager) All() []*Player {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	out := make([]*Player, 0, len(pm.order))
	for _, id := range pm.order {
		if p, ok := pm.players[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// SetReady sets the readiness flag. Returns false for unknown players.
func (pm *PlayerManager) SetReady(id types.PlayerIDType, ready bool) bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	p, ok := pm.players[id]
	if !ok {
		return false
	}
	p.Ready = ready
	return true
}

// ToggleReady flips the readiness flag and returns the new value.
func (pm *PlayerManager) ToggleReady(id types.PlayerIDType) (bool, bool) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	p, ok := pm.players[id]
	if !ok {
		return false, false
	}
	p.Ready = !p.Ready
	return p.Ready, true
}

// AllReady reports whether every player is ready. An empty room is not ready.
func (pm *PlayerManager) AllReady() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	if len(pm.players) == 0 {
		return false
	}
	for _, p := range pm.players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// LongestConnected returns the earliest-joined player still present,
// excluding the given id. Used for host promotion.
func (pm *PlayerManager) LongestConnected(excluding types.PlayerIDType) *Player {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	for _, id := range pm.order {
		if id == excluding {
			continue
		}
		if p, ok := pm.players[id]; ok {
			return p
		}
	}
	return nil
}

// TouchActivity records command or membership activity for idle collection.
func (pm *PlayerManager) TouchActivity(id types.PlayerIDType) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if p, ok := pm.players[id]; ok {
		p.LastActivity = time.Now()
	}
}
