package tictactoe

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheZedxD/HomeGameServer/internal/v1/game"
	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

func newTwoPlayerGame(t *testing.T) *game.Game {
	t.Helper()
	players := game.NewPlayerManager()
	require.True(t, players.Add(&game.Player{ID: "alice", DisplayName: "Alice"}))
	require.True(t, players.Add(&game.Player{ID: "bob", DisplayName: "Bob"}))
	return game.NewGame(Definition(), players, rand.New(rand.NewSource(1)))
}

func place(t *testing.T, bus *game.Bus, playerID string, row, col int) (*game.Result, *types.Error) {
	t.Helper()
	return bus.Submit(types.CommandDescriptor{
		Type:     "placeMark",
		PlayerID: types.PlayerIDType(playerID),
		Payload:  json.RawMessage(fmt.Sprintf(`{"row":%d,"col":%d}`, row, col)),
	})
}

func TestNewState_SeatsMarkersAndTurnOrder(t *testing.T) {
	g := newTwoPlayerGame(t)
	s := mustState(t, g)

	assert.Equal(t, []string{"alice", "bob"}, s.PlayerOrder)
	assert.Equal(t, "alice", s.CurrentPlayerID)
	assert.Equal(t, "X", s.Players["alice"].Marker)
	assert.Equal(t, "O", s.Players["bob"].Marker)
}

func TestPlaceMark_AlternatesTurns(t *testing.T) {
	g := newTwoPlayerGame(t)
	bus := game.NewBus(g, time.Second, 8)

	_, err := place(t, bus, "alice", 0, 0)
	require.Nil(t, err)
	s := mustState(t, g)
	assert.Equal(t, "X", s.Board[0][0])
	assert.Equal(t, "bob", s.CurrentPlayerID)

	_, err = place(t, bus, "bob", 1, 1)
	require.Nil(t, err)
	assert.Equal(t, "O", mustState(t, g).Board[1][1])
}

func TestPlaceMark_OccupiedCellRejectedStateUnchanged(t *testing.T) {
	g := newTwoPlayerGame(t)
	bus := game.NewBus(g, time.Second, 8)

	_, err := place(t, bus, "alice", 1, 1)
	require.Nil(t, err)
	_, version := g.States.Current()

	_, err = place(t, bus, "bob", 1, 1)
	require.NotNil(t, err)
	assert.Equal(t, types.ErrInvalidMove, err.Code)

	s, after := g.States.Current()
	assert.Equal(t, version, after)
	assert.Equal(t, "X", s.(*State).Board[1][1])
	assert.Equal(t, "bob", s.(*State).CurrentPlayerID)
}

func TestPlaceMark_OutOfTurnRejected(t *testing.T) {
	g := newTwoPlayerGame(t)
	bus := game.NewBus(g, time.Second, 8)

	_, err := place(t, bus, "bob", 0, 0)
	require.NotNil(t, err)
	assert.Equal(t, types.ErrNotYourTurn, err.Code)
}

func TestPlaceMark_OutOfBoundsRejected(t *testing.T) {
	g := newTwoPlayerGame(t)
	bus := game.NewBus(g, time.Second, 8)

	_, err := place(t, bus, "alice", 3, 0)
	require.NotNil(t, err)
	assert.Equal(t, types.ErrInvalidMove, err.Code)
}

func TestPlaceMark_RowWinCompletesGame(t *testing.T) {
	g := newTwoPlayerGame(t)
	bus := game.NewBus(g, time.Second, 8)

	moves := []struct {
		player   string
		row, col int
	}{
		{"alice", 0, 0}, {"bob", 1, 0},
		{"alice", 0, 1}, {"bob", 1, 1},
		{"alice", 0, 2},
	}
	for _, m := range moves {
		_, err := place(t, bus, m.player, m.row, m.col)
		require.Nil(t, err)
	}

	s := mustState(t, g)
	assert.True(t, s.IsComplete)
	assert.Equal(t, "alice", s.Winner)
	assert.Equal(t, PhaseComplete, s.Phase)

	_, err := place(t, bus, "bob", 2, 2)
	require.NotNil(t, err)
	assert.Equal(t, types.ErrInvalidMove, err.Code)
}

func TestPlaceMark_DrawCompletesWithoutWinner(t *testing.T) {
	g := newTwoPlayerGame(t)
	bus := game.NewBus(g, time.Second, 16)

	// X X O / O O X / X O X: full board, no line.
	moves := []struct {
		player   string
		row, col int
	}{
		{"alice", 0, 0}, {"bob", 0, 2},
		{"alice", 0, 1}, {"bob", 1, 0},
		{"alice", 1, 2}, {"bob", 1, 1},
		{"alice", 2, 0}, {"bob", 2, 1},
		{"alice", 2, 2},
	}
	for _, m := range moves {
		_, err := place(t, bus, m.player, m.row, m.col)
		require.Nil(t, err)
	}

	s := mustState(t, g)
	assert.True(t, s.IsComplete)
	assert.Empty(t, s.Winner)
}

func mustState(t *testing.T, g *game.Game) *State {
	t.Helper()
	state, _ := g.States.Current()
	s, ok := state.(*State)
	require.True(t, ok)
	return s
}
