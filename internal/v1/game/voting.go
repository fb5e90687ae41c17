package game

import "github.com/TheZedxD/HomeGameServer/internal/v1/types"

// Post-game vote choices.
const (
	VoteNewGame = "newGame"
	VoteLobby   = "lobby"
)

// VoteState collects one post-game vote per player in playerOrder. Plain
// data, embedded in game states that use post-round voting.
type VoteState struct {
	Votes map[string]string `json:"votes"`
}

func NewVoteState() *VoteState {
	return &VoteState{Votes: make(map[string]string)}
}

// Clone returns a deep copy.
func (vs *VoteState) Clone() *VoteState {
	out := &VoteState{Votes: make(map[string]string, len(vs.Votes))}
	for id, v := range vs.Votes {
		out.Votes[id] = v
	}
	return out
}

// Cast records a vote. Each player votes exactly once.
func (vs *VoteState) Cast(id, choice string) *types.Error {
	if choice != VoteNewGame && choice != VoteLobby {
		return types.NewError(types.ErrValidation, "vote must be %q or %q", VoteNewGame, VoteLobby)
	}
	if _, voted := vs.Votes[id]; voted {
		return types.NewError(types.ErrInvalidMove, "player %q already voted", id)
	}
	vs.Votes[id] = choice
	return nil
}

// Complete reports whether every player in order has voted.
func (vs *VoteState) Complete(order []string) bool {
	for _, id := range order {
		if _, ok := vs.Votes[id]; !ok {
			return false
		}
	}
	return len(order) > 0
}

// Resolve returns the winning choice. For exactly two players any lobby
// vote wins; otherwise majority wins and ties resolve to lobby.
func (vs *VoteState) Resolve(order []string) string {
	if len(order) == 2 {
		for _, id := range order {
			if vs.Votes[id] == VoteLobby {
				return VoteLobby
			}
		}
		return VoteNewGame
	}
	newGame, lobby := 0, 0
	for _, id := range order {
		switch vs.Votes[id] {
		case VoteNewGame:
			newGame++
		case VoteLobby:
			lobby++
		}
	}
	if newGame > lobby {
		return VoteNewGame
	}
	return VoteLobby
}
