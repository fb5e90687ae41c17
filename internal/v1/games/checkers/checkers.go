// Package checkers implements draughts with forced captures, multi-jump
// moves, promotion and a best-of-three series.
package checkers

import (
	"encoding/json"
	"math/rand"

	"github.com/TheZedxD/HomeGameServer/internal/v1/game"
	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

const GameID types.GameIDType = "checkers"

const (
	PhasePlaying  = "playing"
	PhaseRoundEnd = "roundEnd"
	PhaseComplete = "complete"

	seriesTarget = 2 // best of three
)

// Board cells: "" empty, "r"/"R" red man/king, "b"/"B" black man/king.
// Playable squares are those with (row+col) odd. Red starts on rows 5-7
// and moves toward row 0; black starts on rows 0-2 and moves toward row 7.
type State struct {
	game.Header
	Board  [8][8]string   `json:"board"`
	Series map[string]int `json:"series"`
	Round  int            `json:"round"`
}

var _ game.State = (*State)(nil)

func (s *State) Clone() game.State {
	out := *s
	out.Header = s.Header.CloneHeader()
	out.Series = make(map[string]int, len(s.Series))
	for id, n := range s.Series {
		out.Series[id] = n
	}
	return &out
}

// NewState seats the first player (the host) as red, the second as black.
// Red moves first.
func NewState(players *game.PlayerManager, _ *rand.Rand) game.State {
	ids := players.IDs()
	colors := []string{"red", "black"}
	s := &State{
		Header: game.Header{
			Phase:   PhasePlaying,
			Players: make(map[string]game.PlayerMeta),
		},
		Series: make(map[string]int),
		Round:  1,
	}
	for i, id := range ids {
		if i >= 2 {
			break
		}
		p := players.Get(id)
		s.PlayerOrder = append(s.PlayerOrder, string(id))
		s.Players[string(id)] = game.PlayerMeta{
			DisplayName: string(p.DisplayName),
			Color:       colors[i],
		}
	}
	if len(s.PlayerOrder) > 0 {
		s.CurrentPlayerID = s.PlayerOrder[0]
	}
	s.Board = startingBoard()
	return s
}

func startingBoard() [8][8]string {
	var b [8][8]string
	for r := 0; r < 3; r++ {
		for c := 0; c < 8; c++ {
			if (r+c)%2 == 1 {
				b[r][c] = "b"
			}
		}
	}
	for r := 5; r < 8; r++ {
		for c := 0; c < 8; c++ {
			if (r+c)%2 == 1 {
				b[r][c] = "r"
			}
		}
	}
	return b
}

type movePayload struct {
	Path [][2]int `json:"path"`
}

// MovePiece applies one move: either a single diagonal step or a jump
// sequence submitted as one command. Captures are forced: when any capture
// is available to the mover, simple moves are rejected.
func MovePiece(ctx *game.Context) (*game.Outcome, *types.Error) {
	s := ctx.State.(*State)

	if s.IsComplete {
		return nil, types.NewError(types.ErrInvalidMove, "game is complete")
	}
	if string(ctx.PlayerID) != s.CurrentPlayerID {
		return nil, types.NewError(types.ErrNotYourTurn, "it is %s's turn", s.CurrentPlayerID)
	}

	var p movePayload
	if err := json.Unmarshal(ctx.Payload, &p); err != nil || len(p.Path) < 2 {
		return nil, types.NewError(types.ErrValidation, "movePiece requires a path of at least two positions")
	}
	for _, pos := range p.Path {
		if pos[0] < 0 || pos[0] > 7 || pos[1] < 0 || pos[1] > 7 {
			return nil, types.NewError(types.ErrInvalidMove, "position (%d,%d) is off the board", pos[0], pos[1])
		}
	}

	color := s.Players[string(ctx.PlayerID)].Color
	from := p.Path[0]
	piece := s.Board[from[0]][from[1]]
	if piece == "" || pieceColor(piece) != color {
		return nil, types.NewError(types.ErrInvalidMove, "no %s piece at (%d,%d)", color, from[0], from[1])
	}

	if err := applyPath(&s.Board, p.Path, piece, color); err != nil {
		return nil, err
	}

	opponent := nextInOrder(s.PlayerOrder, s.CurrentPlayerID)
	opponentColor := s.Players[opponent].Color
	if !sideHasPieces(s.Board, opponentColor) || !sideHasMoves(s.Board, opponentColor) {
		s.Series[string(ctx.PlayerID)]++
		if s.Series[string(ctx.PlayerID)] >= seriesTarget {
			s.IsComplete = true
			s.Winner = string(ctx.PlayerID)
			s.Phase = PhaseComplete
		} else {
			// Next round of the series: fresh board, red moves first.
			s.Board = startingBoard()
			s.Round++
			s.Phase = PhasePlaying
			s.CurrentPlayerID = s.PlayerOrder[0]
		}
	} else {
		s.CurrentPlayerID = opponent
	}

	return game.ReplaceOutcome(s), nil
}

// applyPath validates and mutates the board along the move path.
func applyPath(b *[8][8]string, path [][2]int, piece, color string) *types.Error {
	from := path[0]
	dr := path[1][0] - from[0]
	dc := path[1][1] - from[1]

	isJump := abs(dr) == 2 && abs(dc) == 2
	if !isJump {
		if len(path) != 2 || abs(dr) != 1 || abs(dc) != 1 {
			return types.NewError(types.ErrInvalidMove, "moves must be single diagonal steps or jump sequences")
		}
		if anyCaptureAvailable(*b, color) {
			return types.NewError(types.ErrInvalidMove, "capture is available and mandatory")
		}
		to := path[1]
		if b[to[0]][to[1]] != "" {
			return types.NewError(types.ErrInvalidMove, "square (%d,%d) is occupied", to[0], to[1])
		}
		if !directionLegal(piece, dr) {
			return types.NewError(types.ErrInvalidMove, "men cannot move backwards")
		}
		b[from[0]][from[1]] = ""
		b[to[0]][to[1]] = maybePromote(piece, to[0])
		return nil
	}

	// Jump sequence: every hop must capture an opposing piece.
	cur := from
	working := *b
	working[cur[0]][cur[1]] = ""
	moving := piece
	for _, to := range path[1:] {
		hr := to[0] - cur[0]
		hc := to[1] - cur[1]
		if abs(hr) != 2 || abs(hc) != 2 {
			return types.NewError(types.ErrInvalidMove, "jump sequences move two squares per hop")
		}
		if !directionLegal(moving, hr) {
			return types.NewError(types.ErrInvalidMove, "men cannot jump backwards")
		}
		if working[to[0]][to[1]] != "" {
			return types.NewError(types.ErrInvalidMove, "landing square (%d,%d) is occupied", to[0], to[1])
		}
		midR, midC := cur[0]+hr/2, cur[1]+hc/2
		victim := working[midR][midC]
		if victim == "" || pieceColor(victim) == color {
			return types.NewError(types.ErrInvalidMove, "no opposing piece to capture at (%d,%d)", midR, midC)
		}
		working[midR][midC] = ""
		moving = maybePromote(moving, to[0])
		cur = to
	}
	working[cur[0]][cur[1]] = moving
	*b = working
	return nil
}

func pieceColor(piece string) string {
	if piece == "r" || piece == "R" {
		return "red"
	}
	return "black"
}

func isKing(piece string) bool {
	return piece == "R" || piece == "B"
}

// directionLegal: red men move toward row 0, black men toward row 7,
// kings either way.
func directionLegal(piece string, dr int) bool {
	if isKing(piece) {
		return true
	}
	if piece == "r" {
		return dr < 0
	}
	return dr > 0
}

// maybePromote crowns a man reaching its back rank.
func maybePromote(piece string, row int) string {
	if piece == "r" && row == 0 {
		return "R"
	}
	if piece == "b" && row == 7 {
		return "B"
	}
	return piece
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func directionsFor(piece string) [][2]int {
	if isKing(piece) {
		return [][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
	}
	if piece == "r" {
		return [][2]int{{-1, -1}, {-1, 1}}
	}
	return [][2]int{{1, -1}, {1, 1}}
}

func onBoard(r, c int) bool {
	return r >= 0 && r < 8 && c >= 0 && c < 8
}

func anyCaptureAvailable(b [8][8]string, color string) bool {
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			piece := b[r][c]
			if piece == "" || pieceColor(piece) != color {
				continue
			}
			for _, d := range directionsFor(piece) {
				mr, mc := r+d[0], c+d[1]
				lr, lc := r+2*d[0], c+2*d[1]
				if !onBoard(lr, lc) {
					continue
				}
				victim := b[mr][mc]
				if victim != "" && pieceColor(victim) != color && b[lr][lc] == "" {
					return true
				}
			}
		}
	}
	return false
}

func sideHasPieces(b [8][8]string, color string) bool {
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			if b[r][c] != "" && pieceColor(b[r][c]) == color {
				return true
			}
		}
	}
	return false
}

func sideHasMoves(b [8][8]string, color string) bool {
	if anyCaptureAvailable(b, color) {
		return true
	}
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			piece := b[r][c]
			if piece == "" || pieceColor(piece) != color {
				continue
			}
			for _, d := range directionsFor(piece) {
				nr, nc := r+d[0], c+d[1]
				if onBoard(nr, nc) && b[nr][nc] == "" {
					return true
				}
			}
		}
	}
	return false
}

func nextInOrder(order []string, current string) string {
	for i, id := range order {
		if id == current {
			return order[(i+1)%len(order)]
		}
	}
	return current
}

// Definition returns the catalog entry.
func Definition() *game.Definition {
	return &game.Definition{
		ID:         GameID,
		Name:       "Checkers",
		MinPlayers: 2,
		MaxPlayers: 2,
		NewState:   NewState,
		Strategies: map[string]game.Strategy{
			"movePiece": game.StrategyFunc(MovePiece),
		},
	}
}
