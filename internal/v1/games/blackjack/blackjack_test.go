package blackjack

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheZedxD/HomeGameServer/internal/v1/game"
	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

func newTableState(t *testing.T) *State {
	t.Helper()
	players := game.NewPlayerManager()
	require.True(t, players.Add(&game.Player{ID: "alice", DisplayName: "Alice"}))
	require.True(t, players.Add(&game.Player{ID: "bob", DisplayName: "Bob"}))
	return NewState(players, rand.New(rand.NewSource(1))).(*State)
}

func apply(t *testing.T, s *State, strategy game.StrategyFunc, playerID string, payload any) (*State, *types.Error) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	outcome, cerr := strategy(&game.Context{
		State:    s.Clone(),
		PlayerID: types.PlayerIDType(playerID),
		Payload:  raw,
		Rand:     rand.New(rand.NewSource(1)),
	})
	if cerr != nil {
		return s, cerr
	}
	return outcome.Apply(s).(*State), nil
}

// stackDeck arranges the deck so draws come out in the given order.
func stackDeck(s *State, draws ...game.Card) {
	cards := make([]game.Card, len(draws))
	for i, c := range draws {
		cards[len(draws)-1-i] = c
	}
	s.Deck = &game.Deck{Cards: cards}
}

func TestPlaceBet_EscrowsUntilAllHaveBet(t *testing.T) {
	s := newTableState(t)

	s, err := apply(t, s, PlaceBet, "alice", betPayload{Amount: 100})
	require.Nil(t, err)
	assert.Equal(t, PhaseBetting, s.Phase)
	assert.Equal(t, 100, s.Bets["alice"])
	assert.Equal(t, 100, s.Betting.Pot)
	assert.Equal(t, 900, s.Players["alice"].Balance)

	_, err = apply(t, s, PlaceBet, "alice", betPayload{Amount: 50})
	require.NotNil(t, err)
	assert.Equal(t, types.ErrInvalidMove, err.Code)
}

func TestPlaceBet_LastBetDeals(t *testing.T) {
	s := newTableState(t)
	stackDeck(s,
		game.Card{Rank: 10, Suit: game.Spades}, game.Card{Rank: 9, Suit: game.Hearts}, // alice 19
		game.Card{Rank: 6, Suit: game.Clubs}, game.Card{Rank: 10, Suit: game.Diamonds}, // bob 16
		game.Card{Rank: 10, Suit: game.Hearts}, game.Card{Rank: 7, Suit: game.Spades}, // dealer 17
	)

	s, err := apply(t, s, PlaceBet, "alice", betPayload{Amount: 100})
	require.Nil(t, err)
	s, err = apply(t, s, PlaceBet, "bob", betPayload{Amount: 50})
	require.Nil(t, err)

	assert.Equal(t, PhaseActing, s.Phase)
	assert.Equal(t, "alice", s.CurrentPlayerID)
	assert.Equal(t, 19, game.HandValue(s.Hands["alice"]))
	assert.Equal(t, 16, game.HandValue(s.Hands["bob"]))
	assert.Equal(t, 17, game.HandValue(s.Dealer))
}

func TestAction_StandResolvesAgainstDealer(t *testing.T) {
	s := newTableState(t)
	stackDeck(s,
		game.Card{Rank: 10, Suit: game.Spades}, game.Card{Rank: 9, Suit: game.Hearts},
		game.Card{Rank: 6, Suit: game.Clubs}, game.Card{Rank: 10, Suit: game.Diamonds},
		game.Card{Rank: 10, Suit: game.Hearts}, game.Card{Rank: 7, Suit: game.Spades},
	)
	s, err := apply(t, s, PlaceBet, "alice", betPayload{Amount: 100})
	require.Nil(t, err)
	s, err = apply(t, s, PlaceBet, "bob", betPayload{Amount: 50})
	require.Nil(t, err)

	s, err = apply(t, s, Action, "alice", actionPayload{Action: "stand"})
	require.Nil(t, err)
	assert.Equal(t, "bob", s.CurrentPlayerID)

	s, err = apply(t, s, Action, "bob", actionPayload{Action: "stand"})
	require.Nil(t, err)

	assert.Equal(t, PhaseVoting, s.Phase)
	assert.Equal(t, ResultWin, s.Results["alice"])
	assert.Equal(t, ResultLose, s.Results["bob"])
	assert.Equal(t, 1100, s.Players["alice"].Balance)
	assert.Equal(t, 950, s.Players["bob"].Balance)
}

func TestDeal_NaturalIsAutoResolved(t *testing.T) {
	s := newTableState(t)
	stackDeck(s,
		game.Card{Rank: 14, Suit: game.Spades}, game.Card{Rank: 13, Suit: game.Hearts}, // alice natural
		game.Card{Rank: 6, Suit: game.Clubs}, game.Card{Rank: 10, Suit: game.Diamonds},
		game.Card{Rank: 10, Suit: game.Hearts}, game.Card{Rank: 7, Suit: game.Spades},
	)
	s, err := apply(t, s, PlaceBet, "alice", betPayload{Amount: 100})
	require.Nil(t, err)
	s, err = apply(t, s, PlaceBet, "bob", betPayload{Amount: 50})
	require.Nil(t, err)

	assert.True(t, s.Done["alice"])
	assert.Equal(t, "bob", s.CurrentPlayerID)

	s, err = apply(t, s, Action, "bob", actionPayload{Action: "stand"})
	require.Nil(t, err)
	assert.Equal(t, ResultBlackjack, s.Results["alice"])
	// Natural pays 3:2 on top of the returned bet.
	assert.Equal(t, 1150, s.Players["alice"].Balance)
}

func TestAction_HitPastTwentyOneBusts(t *testing.T) {
	s := newTableState(t)
	stackDeck(s,
		game.Card{Rank: 10, Suit: game.Spades}, game.Card{Rank: 9, Suit: game.Hearts},
		game.Card{Rank: 6, Suit: game.Clubs}, game.Card{Rank: 10, Suit: game.Diamonds},
		game.Card{Rank: 10, Suit: game.Hearts}, game.Card{Rank: 7, Suit: game.Spades},
		game.Card{Rank: 10, Suit: game.Clubs}, // alice's hit card busts her
	)
	s, err := apply(t, s, PlaceBet, "alice", betPayload{Amount: 100})
	require.Nil(t, err)
	s, err = apply(t, s, PlaceBet, "bob", betPayload{Amount: 50})
	require.Nil(t, err)

	s, err = apply(t, s, Action, "alice", actionPayload{Action: "hit"})
	require.Nil(t, err)
	assert.True(t, s.Done["alice"])
	assert.Equal(t, "bob", s.CurrentPlayerID)

	s, err = apply(t, s, Action, "bob", actionPayload{Action: "stand"})
	require.Nil(t, err)
	assert.Equal(t, ResultLose, s.Results["alice"])
	assert.Equal(t, 900, s.Players["alice"].Balance)
}

func TestAction_DoubleDoublesBetAndDrawsOnce(t *testing.T) {
	s := newTableState(t)
	stackDeck(s,
		game.Card{Rank: 5, Suit: game.Spades}, game.Card{Rank: 6, Suit: game.Hearts}, // alice 11
		game.Card{Rank: 6, Suit: game.Clubs}, game.Card{Rank: 10, Suit: game.Diamonds},
		game.Card{Rank: 10, Suit: game.Hearts}, game.Card{Rank: 7, Suit: game.Spades},
		game.Card{Rank: 10, Suit: game.Clubs}, // alice's double card makes 21
	)
	s, err := apply(t, s, PlaceBet, "alice", betPayload{Amount: 100})
	require.Nil(t, err)
	s, err = apply(t, s, PlaceBet, "bob", betPayload{Amount: 50})
	require.Nil(t, err)

	s, err = apply(t, s, Action, "alice", actionPayload{Action: "double"})
	require.Nil(t, err)
	assert.Equal(t, 200, s.Bets["alice"])
	assert.True(t, s.Done["alice"])
	require.Len(t, s.Hands["alice"], 3)

	s, err = apply(t, s, Action, "bob", actionPayload{Action: "stand"})
	require.Nil(t, err)
	assert.Equal(t, ResultWin, s.Results["alice"])
	// 1000 - 200 staked + 400 returned.
	assert.Equal(t, 1200, s.Players["alice"].Balance)
}

func TestAction_OutOfTurnRejected(t *testing.T) {
	s := newTableState(t)
	stackDeck(s,
		game.Card{Rank: 10, Suit: game.Spades}, game.Card{Rank: 9, Suit: game.Hearts},
		game.Card{Rank: 6, Suit: game.Clubs}, game.Card{Rank: 10, Suit: game.Diamonds},
		game.Card{Rank: 10, Suit: game.Hearts}, game.Card{Rank: 7, Suit: game.Spades},
	)
	s, err := apply(t, s, PlaceBet, "alice", betPayload{Amount: 100})
	require.Nil(t, err)
	s, err = apply(t, s, PlaceBet, "bob", betPayload{Amount: 50})
	require.Nil(t, err)

	_, err = apply(t, s, Action, "bob", actionPayload{Action: "hit"})
	require.NotNil(t, err)
	assert.Equal(t, types.ErrNotYourTurn, err.Code)
}

func TestVote_LobbyEndsTable(t *testing.T) {
	s := newTableState(t)
	s.Phase = PhaseVoting

	s, err := apply(t, s, Vote, "alice", votePayload{Choice: game.VoteNewGame})
	require.Nil(t, err)
	assert.Equal(t, PhaseVoting, s.Phase)

	raw, merr := json.Marshal(votePayload{Choice: game.VoteLobby})
	require.NoError(t, merr)
	outcome, cerr := Vote(&game.Context{State: s.Clone(), PlayerID: "bob", Payload: raw, Rand: rand.New(rand.NewSource(1))})
	require.Nil(t, cerr)
	assert.Equal(t, game.VoteLobby, outcome.Metadata["voteResult"])

	s = outcome.Apply(s).(*State)
	assert.Equal(t, PhaseLobby, s.Phase)
	assert.True(t, s.IsComplete)
}

func TestVote_NewGameRedeals(t *testing.T) {
	s := newTableState(t)
	s.Phase = PhaseVoting
	s.Results["alice"] = ResultWin

	s, err := apply(t, s, Vote, "alice", votePayload{Choice: game.VoteNewGame})
	require.Nil(t, err)
	s, err = apply(t, s, Vote, "bob", votePayload{Choice: game.VoteNewGame})
	require.Nil(t, err)

	assert.Equal(t, PhaseBetting, s.Phase)
	assert.Empty(t, s.Bets)
	assert.Empty(t, s.Results)
	assert.Equal(t, 52, s.Deck.Len())
	assert.False(t, s.IsComplete)
}
