// Package tictactoe implements the 3x3 mark-placement game against the
// strategy contract.
package tictactoe

import (
	"encoding/json"
	"math/rand"

	"github.com/TheZedxD/HomeGameServer/internal/v1/game"
	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

const GameID types.GameIDType = "tictactoe"

const (
	PhasePlaying  = "playing"
	PhaseComplete = "complete"
)

// State is the authoritative tic-tac-toe state. Empty cells are "".
type State struct {
	game.Header
	Board [3][3]string `json:"board"`
}

var _ game.State = (*State)(nil)

// Clone returns a deep copy; the board array copies by value.
func (s *State) Clone() game.State {
	out := *s
	out.Header = s.Header.CloneHeader()
	return &out
}

// NewState seats the first two players as X and O; X moves first.
func NewState(players *game.PlayerManager, _ *rand.Rand) game.State {
	ids := players.IDs()
	markers := []string{"X", "O"}
	s := &State{
		Header: game.Header{
			Phase:   PhasePlaying,
			Players: make(map[string]game.PlayerMeta),
		},
	}
	for i, id := range ids {
		if i >= 2 {
			break
		}
		p := players.Get(id)
		s.PlayerOrder = append(s.PlayerOrder, string(id))
		s.Players[string(id)] = game.PlayerMeta{
			DisplayName: string(p.DisplayName),
			Marker:      markers[i],
		}
	}
	if len(s.PlayerOrder) > 0 {
		s.CurrentPlayerID = s.PlayerOrder[0]
	}
	return s
}

// placeMarkPayload is the wire shape of the placeMark command.
type placeMarkPayload struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// PlaceMark validates and applies one mark. Placing on an occupied cell
// always fails with INVALID_MOVE and never changes state.
func PlaceMark(ctx *game.Context) (*game.Outcome, *types.Error) {
	s := ctx.State.(*State)

	if s.IsComplete {
		return nil, types.NewError(types.ErrInvalidMove, "game is complete")
	}
	if string(ctx.PlayerID) != s.CurrentPlayerID {
		return nil, types.NewError(types.ErrNotYourTurn, "it is %s's turn", s.CurrentPlayerID)
	}

	var p placeMarkPayload
	if err := json.Unmarshal(ctx.Payload, &p); err != nil {
		return nil, types.NewError(types.ErrValidation, "malformed placeMark payload")
	}
	if p.Row < 0 || p.Row > 2 || p.Col < 0 || p.Col > 2 {
		return nil, types.NewError(types.ErrInvalidMove, "cell (%d,%d) is out of bounds", p.Row, p.Col)
	}
	if s.Board[p.Row][p.Col] != "" {
		return nil, types.NewError(types.ErrInvalidMove, "cell (%d,%d) is occupied", p.Row, p.Col)
	}

	marker := s.Players[string(ctx.PlayerID)].Marker
	s.Board[p.Row][p.Col] = marker

	if winningMarker(s.Board) == marker {
		s.IsComplete = true
		s.Winner = string(ctx.PlayerID)
		s.Phase = PhaseComplete
	} else if boardFull(s.Board) {
		s.IsComplete = true
		s.Phase = PhaseComplete
	} else {
		s.CurrentPlayerID = nextInOrder(s.PlayerOrder, s.CurrentPlayerID)
	}

	return game.ReplaceOutcome(s), nil
}

func nextInOrder(order []string, current string) string {
	for i, id := range order {
		if id == current {
			return order[(i+1)%len(order)]
		}
	}
	return current
}

func boardFull(b [3][3]string) bool {
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if b[r][c] == "" {
				return false
			}
		}
	}
	return true
}

// winningMarker returns the marker holding three in a row, or "".
func winningMarker(b [3][3]string) string {
	lines := [][3][2]int{
		{{0, 0}, {0, 1}, {0, 2}},
		{{1, 0}, {1, 1}, {1, 2}},
		{{2, 0}, {2, 1}, {2, 2}},
		{{0, 0}, {1, 0}, {2, 0}},
		{{0, 1}, {1, 1}, {2, 1}},
		{{0, 2}, {1, 2}, {2, 2}},
		{{0, 0}, {1, 1}, {2, 2}},
		{{0, 2}, {1, 1}, {2, 0}},
	}
	for _, line := range lines {
		a := b[line[0][0]][line[0][1]]
		if a != "" && a == b[line[1][0]][line[1][1]] && a == b[line[2][0]][line[2][1]] {
			return a
		}
	}
	return ""
}

// Definition returns the catalog entry.
func Definition() *game.Definition {
	return &game.Definition{
		ID:         GameID,
		Name:       "Tic-Tac-Toe",
		MinPlayers: 2,
		MaxPlayers: 2,
		NewState:   NewState,
		Strategies: map[string]game.Strategy{
			"placeMark": game.StrategyFunc(PlaceMark),
		},
	}
}
