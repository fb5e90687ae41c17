package game

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

// counterState is a minimal state for exercising the bus machinery.
type counterState struct {
	Header
	Count int `json:"count"`
}

func (s *counterState) Clone() State {
	out := *s
	out.Header = s.CloneHeader()
	return &out
}

func newCounterGame(t *testing.T, strategies map[string]Strategy) *Game {
	t.Helper()
	players := NewPlayerManager()
	require.True(t, players.Add(&Player{ID: "alice", DisplayName: "Alice"}))
	require.True(t, players.Add(&Player{ID: "bob", DisplayName: "Bob"}))

	def := &Definition{
		ID:         "counter",
		Name:       "Counter",
		MinPlayers: 2,
		MaxPlayers: 2,
		NewState: func(_ *PlayerManager, _ *rand.Rand) State {
			return &counterState{Header: Header{Phase: "playing", Players: map[string]PlayerMeta{}}}
		},
		Strategies: strategies,
	}
	return NewGame(def, players, rand.New(rand.NewSource(1)))
}

func incrementStrategy() Strategy {
	return StrategyFunc(func(ctx *Context) (*Outcome, *types.Error) {
		next := ctx.State.Clone().(*counterState)
		next.Count++
		return ReplaceOutcome(next), nil
	})
}

func TestBus_SubmitAppliesInOrder(t *testing.T) {
	g := newCounterGame(t, map[string]Strategy{"increment": incrementStrategy()})
	bus := NewBus(g, time.Second, 8)

	for i := 1; i <= 3; i++ {
		res, err := bus.Submit(types.CommandDescriptor{Type: "increment", PlayerID: "alice"})
		require.Nil(t, err)
		assert.Equal(t, uint64(i), res.Version)
	}

	state, version := g.States.Current()
	assert.Equal(t, uint64(3), version)
	assert.Equal(t, 3, state.(*counterState).Count)
}

func TestBus_SubmitRejectsUnknownCommandAndPlayer(t *testing.T) {
	g := newCounterGame(t, map[string]Strategy{"increment": incrementStrategy()})
	bus := NewBus(g, time.Second, 8)

	_, err := bus.Submit(types.CommandDescriptor{Type: "teleport", PlayerID: "alice"})
	require.NotNil(t, err)
	assert.Equal(t, types.ErrUnknownCommand, err.Code)

	_, err = bus.Submit(types.CommandDescriptor{Type: "increment", PlayerID: "mallory"})
	require.NotNil(t, err)
	assert.Equal(t, types.ErrValidation, err.Code)

	_, err = bus.Submit(types.CommandDescriptor{Type: "  ", PlayerID: "alice"})
	require.NotNil(t, err)
	assert.Equal(t, types.ErrValidation, err.Code)

	assert.Equal(t, uint64(0), g.States.Version())
	assert.Equal(t, 0, bus.JournalLen())
}

func TestBus_RejectedCommandLeavesStateUntouched(t *testing.T) {
	reject := StrategyFunc(func(_ *Context) (*Outcome, *types.Error) {
		return nil, types.NewError(types.ErrInvalidMove, "not now")
	})
	g := newCounterGame(t, map[string]Strategy{"reject": reject})
	bus := NewBus(g, time.Second, 8)

	_, err := bus.Submit(types.CommandDescriptor{Type: "reject", PlayerID: "alice"})
	require.NotNil(t, err)
	assert.Equal(t, types.ErrInvalidMove, err.Code)
	assert.Equal(t, uint64(0), g.States.Version())
	assert.Equal(t, 0, bus.JournalLen())
}

func TestBus_UndoRestoresAtPlusTwo(t *testing.T) {
	g := newCounterGame(t, map[string]Strategy{"increment": incrementStrategy()})
	bus := NewBus(g, time.Second, 8)

	res, err := bus.Submit(types.CommandDescriptor{Type: "increment", PlayerID: "alice"})
	require.Nil(t, err)
	require.Equal(t, uint64(1), res.Version)

	undone, err := bus.Undo("alice")
	require.Nil(t, err)
	assert.Equal(t, uint64(2), undone.Version)

	state, _ := g.States.Current()
	assert.Equal(t, 0, state.(*counterState).Count)
	assert.Equal(t, 0, bus.JournalLen())
}

func TestBus_UndoEnforcesOwnership(t *testing.T) {
	g := newCounterGame(t, map[string]Strategy{"increment": incrementStrategy()})
	bus := NewBus(g, time.Second, 8)

	_, err := bus.Undo("alice")
	require.NotNil(t, err)
	assert.Equal(t, types.ErrUndoForbidden, err.Code)

	_, serr := bus.Submit(types.CommandDescriptor{Type: "increment", PlayerID: "alice"})
	require.Nil(t, serr)

	_, err = bus.Undo("bob")
	require.NotNil(t, err)
	assert.Equal(t, types.ErrUndoForbidden, err.Code)
	assert.Equal(t, 1, bus.JournalLen())
}

func TestBus_JournalIsBounded(t *testing.T) {
	g := newCounterGame(t, map[string]Strategy{"increment": incrementStrategy()})
	bus := NewBus(g, time.Second, 4)

	for i := 0; i < 10; i++ {
		_, err := bus.Submit(types.CommandDescriptor{Type: "increment", PlayerID: "alice"})
		require.Nil(t, err)
	}
	assert.Equal(t, 4, bus.JournalLen())

	// Only the retained tail can be undone.
	for i := 0; i < 4; i++ {
		_, err := bus.Undo("alice")
		require.Nil(t, err)
	}
	_, err := bus.Undo("alice")
	require.NotNil(t, err)
	assert.Equal(t, types.ErrUndoForbidden, err.Code)
}

func TestBus_SlowStrategyTimesOut(t *testing.T) {
	slow := StrategyFunc(func(ctx *Context) (*Outcome, *types.Error) {
		time.Sleep(20 * time.Millisecond)
		return ReplaceOutcome(ctx.State.Clone()), nil
	})
	g := newCounterGame(t, map[string]Strategy{"slow": slow})
	bus := NewBus(g, 2*time.Millisecond, 8)

	_, err := bus.Submit(types.CommandDescriptor{Type: "slow", PlayerID: "alice"})
	require.NotNil(t, err)
	assert.Equal(t, types.ErrCommandTimeout, err.Code)
	assert.Equal(t, uint64(0), g.States.Version())
	assert.Equal(t, 0, bus.JournalLen())
}

func TestBus_ApplyPanicIsRoomFatal(t *testing.T) {
	boom := StrategyFunc(func(_ *Context) (*Outcome, *types.Error) {
		return &Outcome{
			Apply:   func(State) State { panic("strategy bug") },
			GetUndo: func() func() State { return func() State { return nil } },
		}, nil
	})
	g := newCounterGame(t, map[string]Strategy{"boom": boom})
	bus := NewBus(g, time.Second, 8)

	_, err := bus.Submit(types.CommandDescriptor{Type: "boom", PlayerID: "alice"})
	require.NotNil(t, err)
	assert.Equal(t, types.ErrRoomTerminated, err.Code)
	assert.Equal(t, uint64(0), g.States.Version())
}

func TestBus_OnExecutedNotifies(t *testing.T) {
	g := newCounterGame(t, map[string]Strategy{"increment": incrementStrategy()})
	bus := NewBus(g, time.Second, 8)

	var versions []uint64
	cancel := bus.OnExecuted(func(_ types.CommandDescriptor, version uint64) {
		versions = append(versions, version)
	})

	_, err := bus.Submit(types.CommandDescriptor{Type: "increment", PlayerID: "alice"})
	require.Nil(t, err)
	cancel()
	_, err = bus.Submit(types.CommandDescriptor{Type: "increment", PlayerID: "alice"})
	require.Nil(t, err)

	assert.Equal(t, []uint64{1}, versions)
}
