package game

import (
	"encoding/json"
	"math/rand"
	"sync"

	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

// Context is the execution environment handed to a strategy. State is a
// deep clone of the authoritative state; strategies may mutate it freely
// but must not retain references to it beyond the call.
type Context struct {
	State    State
	Players  *PlayerManager
	PlayerID types.PlayerIDType
	Payload  json.RawMessage
	Rand     *rand.Rand
}

// Outcome is a successful strategy result. Apply receives the authoritative
// previous state and returns the next; GetUndo restores it.
type Outcome struct {
	Apply    func(prev State) State
	GetUndo  func() func() State
	Metadata map[string]any
}

// Strategy is a named command handler: a pure mapping from (state, context)
// to an outcome or a domain error. Strategies never perform I/O and never
// panic for expected conditions.
type Strategy interface {
	Execute(ctx *Context) (*Outcome, *types.Error)
}

// StrategyFunc adapts a function to the Strategy interface.
type StrategyFunc func(ctx *Context) (*Outcome, *types.Error)

func (f StrategyFunc) Execute(ctx *Context) (*Outcome, *types.Error) {
	return f(ctx)
}

// ReplaceOutcome builds the common outcome shape: install next, remember
// the replaced state for undo.
func ReplaceOutcome(next State) *Outcome {
	var saved State
	return &Outcome{
		Apply: func(prev State) State {
			saved = prev
			return next
		},
		GetUndo: func() func() State {
			return func() State { return saved }
		},
	}
}

// Definition is one entry of the game catalog: an initial-state factory
// plus the set of named command strategies.
type Definition struct {
	ID         types.GameIDType
	Name       string
	MinPlayers int
	MaxPlayers int
	NewState   func(players *PlayerManager, rng *rand.Rand) State
	Strategies map[string]Strategy
}

// Registry is the process-wide catalog of game definitions.
type Registry struct {
	mu   sync.RWMutex
	defs map[types.GameIDType]*Definition
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[types.GameIDType]*Definition)}
}

// Register adds a definition, replacing any previous entry with the same id.
func (r *Registry) Register(def *Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.ID] = def
}

// Get returns the definition or nil.
func (r *Registry) Get(id types.GameIDType) *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defs[id]
}

// IDs returns every registered game id.
func (r *Registry) IDs() []types.GameIDType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.GameIDType, 0, len(r.defs))
	for id := range r.defs {
		out = append(out, id)
	}
	return out
}

// Game is a room's attached game: the definition, the versioned state
// container, the player view, and the room's seeded PRNG.
type Game struct {
	Def     *Definition
	States  *StateManager
	Players *PlayerManager
	Rand    *rand.Rand
}

// NewGame invokes the definition's factory and wraps the initial state.
func NewGame(def *Definition, players *PlayerManager, rng *rand.Rand) *Game {
	return &Game{
		Def:     def,
		States:  NewStateManager(def.NewState(players, rng)),
		Players: players,
		Rand:    rng,
	}
}

// Strategy looks up a registered command strategy by type.
func (g *Game) Strategy(commandType string) Strategy {
	return g.Def.Strategies[commandType]
}
