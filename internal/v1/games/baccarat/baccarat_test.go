package baccarat

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheZedxD/HomeGameServer/internal/v1/game"
	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

func newTable(t *testing.T) *State {
	t.Helper()
	players := game.NewPlayerManager()
	require.True(t, players.Add(&game.Player{ID: "alice", DisplayName: "Alice"}))
	require.True(t, players.Add(&game.Player{ID: "bob", DisplayName: "Bob"}))
	return NewState(players, rand.New(rand.NewSource(1))).(*State)
}

func bet(t *testing.T, s *State, playerID, target string, amount int) (*State, *types.Error) {
	t.Helper()
	raw, err := json.Marshal(betPayload{Target: target, Amount: amount})
	require.NoError(t, err)

	outcome, cerr := PlaceBet(&game.Context{
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

func TestPlaceBet_ValidatesTargetAndSingleBet(t *testing.T) {
	s := newTable(t)

	_, err := bet(t, s, "alice", "dragon", 100)
	require.NotNil(t, err)
	assert.Equal(t, types.ErrValidation, err.Code)

	s, err = bet(t, s, "alice", BetPlayer, 100)
	require.Nil(t, err)
	assert.Equal(t, PhaseBetting, s.Phase)
	assert.Equal(t, 900, s.Players["alice"].Balance)

	_, err = bet(t, s, "alice", BetBanker, 50)
	require.NotNil(t, err)
	assert.Equal(t, types.ErrInvalidMove, err.Code)
}

func TestDealCoup_PlayerNaturalWinsEvenMoney(t *testing.T) {
	s := newTable(t)
	stackDeck(s,
		game.Card{Rank: 4, Suit: game.Spades}, game.Card{Rank: 5, Suit: game.Hearts}, // player 9, natural
		game.Card{Rank: 10, Suit: game.Diamonds}, game.Card{Rank: 7, Suit: game.Clubs}, // banker 7
	)

	s, err := bet(t, s, "alice", BetPlayer, 100)
	require.Nil(t, err)
	s, err = bet(t, s, "bob", BetBanker, 50)
	require.Nil(t, err)

	require.NotNil(t, s.Result)
	assert.Equal(t, BetPlayer, s.Result.Outcome)
	assert.Equal(t, 9, s.Result.PlayerTotal)
	assert.Equal(t, 7, s.Result.BankerTotal)
	assert.Len(t, s.Result.PlayerHand, 2, "a natural stops the deal")
	assert.Equal(t, PhaseVoting, s.Phase)

	assert.Equal(t, 1100, s.Players["alice"].Balance)
	assert.Equal(t, 950, s.Players["bob"].Balance)
}

func TestDealCoup_BankerWinPaysNinetyFivePercent(t *testing.T) {
	s := newTable(t)
	// Player draws to 2, banker 6 draws on the player's 7 and makes 8.
	stackDeck(s,
		game.Card{Rank: 2, Suit: game.Spades}, game.Card{Rank: 3, Suit: game.Hearts},
		game.Card{Rank: 10, Suit: game.Clubs}, game.Card{Rank: 6, Suit: game.Spades},
		game.Card{Rank: 7, Suit: game.Diamonds}, // player third
		game.Card{Rank: 2, Suit: game.Hearts},   // banker third
	)

	s, err := bet(t, s, "alice", BetBanker, 100)
	require.Nil(t, err)
	s, err = bet(t, s, "bob", BetPlayer, 50)
	require.Nil(t, err)

	require.NotNil(t, s.Result)
	assert.Equal(t, BetBanker, s.Result.Outcome)
	assert.Equal(t, 2, s.Result.PlayerTotal)
	assert.Equal(t, 8, s.Result.BankerTotal)
	assert.Len(t, s.Result.PlayerHand, 3)
	assert.Len(t, s.Result.BankerHand, 3)

	assert.Equal(t, 1095, s.Players["alice"].Balance)
	assert.Equal(t, 950, s.Players["bob"].Balance)
}

func TestDealCoup_TiePaysNineAndPushesSideBets(t *testing.T) {
	s := newTable(t)
	stackDeck(s,
		game.Card{Rank: 10, Suit: game.Spades}, game.Card{Rank: 7, Suit: game.Hearts}, // player 7
		game.Card{Rank: 10, Suit: game.Diamonds}, game.Card{Rank: 7, Suit: game.Clubs}, // banker 7
	)

	s, err := bet(t, s, "alice", BetTie, 100)
	require.Nil(t, err)
	s, err = bet(t, s, "bob", BetPlayer, 50)
	require.Nil(t, err)

	require.NotNil(t, s.Result)
	assert.Equal(t, BetTie, s.Result.Outcome)
	assert.Equal(t, 1800, s.Players["alice"].Balance)
	assert.Equal(t, 1000, s.Players["bob"].Balance, "player bet pushes on a tie")
}

func TestBankerDraws_Tableau(t *testing.T) {
	third := func(rank int) game.Card { return game.Card{Rank: rank, Suit: game.Spades} }

	tests := []struct {
		name        string
		bankerTotal int
		playerDrew  bool
		playerThird game.Card
		want        bool
	}{
		{"player stood, banker 5 draws", 5, false, game.Card{}, true},
		{"player stood, banker 6 stands", 6, false, game.Card{}, false},
		{"banker 2 always draws", 2, true, third(8), true},
		{"banker 3 stands on 8", 3, true, third(8), false},
		{"banker 3 draws on 9", 3, true, third(9), true},
		{"banker 4 draws on 2-7", 4, true, third(2), true},
		{"banker 4 stands on ace", 4, true, third(14), false},
		{"banker 5 draws on 4-7", 5, true, third(4), true},
		{"banker 5 stands on 3", 5, true, third(3), false},
		{"banker 6 draws on 6-7", 6, true, third(7), true},
		{"banker 6 stands on 5", 6, true, third(5), false},
		{"banker 7 stands", 7, true, third(6), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bankerDraws(tt.bankerTotal, tt.playerDrew, tt.playerThird))
		})
	}
}

func TestVote_NewGameOpensNextCoup(t *testing.T) {
	s := newTable(t)
	s.Phase = PhaseVoting
	s.Result = &Result{Outcome: BetPlayer}

	voteFor := func(playerID, choice string) (*game.Outcome, *types.Error) {
		raw, err := json.Marshal(votePayload{Choice: choice})
		require.NoError(t, err)
		return Vote(&game.Context{
			State:    s.Clone(),
			PlayerID: types.PlayerIDType(playerID),
			Payload:  raw,
			Rand:     rand.New(rand.NewSource(2)),
		})
	}

	outcome, cerr := voteFor("alice", game.VoteNewGame)
	require.Nil(t, cerr)
	s = outcome.Apply(s).(*State)

	outcome, cerr = voteFor("bob", game.VoteNewGame)
	require.Nil(t, cerr)
	assert.Equal(t, game.VoteNewGame, outcome.Metadata["voteResult"])
	s = outcome.Apply(s).(*State)

	assert.Equal(t, PhaseBetting, s.Phase)
	assert.Nil(t, s.Result)
	assert.Empty(t, s.Bets)
	assert.Equal(t, 52, s.Deck.Len())
}

func TestVote_LobbyCompletesSession(t *testing.T) {
	s := newTable(t)
	s.Phase = PhaseVoting

	raw, merr := json.Marshal(votePayload{Choice: game.VoteLobby})
	require.NoError(t, merr)

	for _, id := range []string{"alice", "bob"} {
		outcome, cerr := Vote(&game.Context{
			State:    s.Clone(),
			PlayerID: types.PlayerIDType(id),
			Payload:  raw,
			Rand:     rand.New(rand.NewSource(2)),
		})
		require.Nil(t, cerr)
		s = outcome.Apply(s).(*State)
	}

	assert.Equal(t, PhaseLobby, s.Phase)
	assert.True(t, s.IsComplete)
}
