// Package baccarat implements punto banco: players bet on player, banker
// or tie, the tableau draws by the standard third-card rules, and a vote
// follows each coup.
package baccarat

import (
	"encoding/json"
	"math/rand"

	"github.com/TheZedxD/HomeGameServer/internal/v1/game"
	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

const GameID types.GameIDType = "baccarat"

const (
	PhaseBetting = "betting"
	PhaseVoting  = "voting"
	PhaseLobby   = "lobby"

	StartingBalance = 1000
)

// Bet targets.
const (
	BetPlayer = "player"
	BetBanker = "banker"
	BetTie    = "tie"
)

// Bet is one player's wager for the coup.
type Bet struct {
	Target string `json:"target"`
	Amount int    `json:"amount"`
}

// Result summarizes the resolved coup.
type Result struct {
	PlayerHand  []game.Card `json:"playerHand"`
	BankerHand  []game.Card `json:"bankerHand"`
	PlayerTotal int         `json:"playerTotal"`
	BankerTotal int         `json:"bankerTotal"`
	Outcome     string      `json:"outcome"` // player, banker or tie
}

type State struct {
	game.Header
	Deck    *game.Deck         `json:"deck"`
	Bets    map[string]Bet     `json:"bets"`
	Betting *game.BettingState `json:"betting"`
	Votes   *game.VoteState    `json:"votes"`
	Result  *Result            `json:"result,omitempty"`
}

var _ game.State = (*State)(nil)

func (s *State) Clone() game.State {
	out := *s
	out.Header = s.Header.CloneHeader()
	out.Deck = s.Deck.Clone()
	out.Bets = make(map[string]Bet, len(s.Bets))
	for id, b := range s.Bets {
		out.Bets[id] = b
	}
	out.Betting = s.Betting.Clone()
	out.Votes = s.Votes.Clone()
	if s.Result != nil {
		r := *s.Result
		r.PlayerHand = game.CloneCards(s.Result.PlayerHand)
		r.BankerHand = game.CloneCards(s.Result.BankerHand)
		out.Result = &r
	}
	return &out
}

func NewState(players *game.PlayerManager, rng *rand.Rand) game.State {
	s := &State{
		Header: game.Header{
			Phase:   PhaseBetting,
			Players: make(map[string]game.PlayerMeta),
		},
		Deck:  game.NewShuffledDeck(rng),
		Bets:  make(map[string]Bet),
		Votes: game.NewVoteState(),
	}
	for i, id := range players.IDs() {
		p := players.Get(id)
		s.PlayerOrder = append(s.PlayerOrder, string(id))
		s.Players[string(id)] = game.PlayerMeta{
			DisplayName: string(p.DisplayName),
			Seat:        i,
			Balance:     StartingBalance,
		}
	}
	s.Betting = game.NewBettingState(s.PlayerOrder, StartingBalance)
	return s
}

type betPayload struct {
	Target string `json:"target"`
	Amount int    `json:"amount"`
}

type votePayload struct {
	Choice string `json:"choice"`
}

// PlaceBet wagers on player, banker or tie. The coup deals once every
// seated player has bet.
func PlaceBet(ctx *game.Context) (*game.Outcome, *types.Error) {
	s := ctx.State.(*State)
	if s.Phase != PhaseBetting {
		return nil, types.NewError(types.ErrInvalidMove, "bets are closed")
	}

	var p betPayload
	if err := json.Unmarshal(ctx.Payload, &p); err != nil {
		return nil, types.NewError(types.ErrValidation, "malformed placeBet payload")
	}
	if p.Target != BetPlayer && p.Target != BetBanker && p.Target != BetTie {
		return nil, types.NewError(types.ErrValidation, "bet target must be player, banker or tie")
	}
	id := string(ctx.PlayerID)
	if _, placed := s.Bets[id]; placed {
		return nil, types.NewError(types.ErrInvalidMove, "bet already placed")
	}
	if err := s.Betting.PlaceBet(id, p.Amount); err != nil {
		return nil, err
	}
	s.Bets[id] = Bet{Target: p.Target, Amount: p.Amount}
	syncBalances(s)

	if len(s.Bets) == len(s.PlayerOrder) {
		dealCoup(s)
	}

	return game.ReplaceOutcome(s), nil
}

// dealCoup runs one coup by the fixed tableau and settles every bet.
func dealCoup(s *State) {
	playerHand := s.Deck.DrawN(2)
	bankerHand := s.Deck.DrawN(2)

	pt := handTotal(playerHand)
	bt := handTotal(bankerHand)

	// A natural 8 or 9 on either side ends the deal immediately.
	if pt < 8 && bt < 8 {
		playerDrew := false
		var playerThird game.Card
		if pt <= 5 {
			playerThird, _ = s.Deck.Draw()
			playerHand = append(playerHand, playerThird)
			playerDrew = true
		}
		if bankerDraws(bt, playerDrew, playerThird) {
			card, _ := s.Deck.Draw()
			bankerHand = append(bankerHand, card)
		}
		pt = handTotal(playerHand)
		bt = handTotal(bankerHand)
	}

	outcome := BetTie
	if pt > bt {
		outcome = BetPlayer
	} else if bt > pt {
		outcome = BetBanker
	}
	s.Result = &Result{
		PlayerHand:  playerHand,
		BankerHand:  bankerHand,
		PlayerTotal: pt,
		BankerTotal: bt,
		Outcome:     outcome,
	}

	settle(s, outcome)
	s.Phase = PhaseVoting
}

// bankerDraws is the standard banker tableau. When the player stood, the
// banker draws on 0-5; otherwise the decision depends on the banker total
// and the player's third card.
func bankerDraws(bankerTotal int, playerDrew bool, playerThird game.Card) bool {
	if !playerDrew {
		return bankerTotal <= 5
	}
	third := playerThird.BaccaratValue()
	switch bankerTotal {
	case 0, 1, 2:
		return true
	case 3:
		return third != 8
	case 4:
		return third >= 2 && third <= 7
	case 5:
		return third >= 4 && third <= 7
	case 6:
		return third == 6 || third == 7
	default:
		return false
	}
}

// settle pays winning bets: player 1:1, banker 0.95:1, tie 8:1. Tie
// pushes player and banker bets.
func settle(s *State, outcome string) {
	for id, bet := range s.Bets {
		bp := s.Betting.Players[id]
		switch {
		case bet.Target == outcome && outcome == BetPlayer:
			bp.Balance += bet.Amount * 2
		case bet.Target == outcome && outcome == BetBanker:
			bp.Balance += bet.Amount + bet.Amount*95/100
		case bet.Target == outcome && outcome == BetTie:
			bp.Balance += bet.Amount * 9
		case outcome == BetTie:
			// Player and banker bets push on a tie.
			bp.Balance += bet.Amount
		}
	}
	s.Betting.Pot = 0
	s.Betting.CurrentBet = 0
	for _, bp := range s.Betting.Players {
		bp.RoundBet = 0
		bp.Total = 0
		if bp.Status != game.BetStatusFolded {
			bp.Status = game.BetStatusActive
		}
	}
	syncBalances(s)
}

// Vote records a post-coup vote; when complete the table either opens a
// new coup or returns to the lobby.
func Vote(ctx *game.Context) (*game.Outcome, *types.Error) {
	s := ctx.State.(*State)
	if s.Phase != PhaseVoting {
		return nil, types.NewError(types.ErrInvalidMove, "voting is not open")
	}
	var p votePayload
	if err := json.Unmarshal(ctx.Payload, &p); err != nil {
		return nil, types.NewError(types.ErrValidation, "malformed vote payload")
	}
	if err := s.Votes.Cast(string(ctx.PlayerID), p.Choice); err != nil {
		return nil, err
	}

	var meta map[string]any
	if s.Votes.Complete(s.PlayerOrder) {
		result := s.Votes.Resolve(s.PlayerOrder)
		meta = map[string]any{"voteResult": result}
		if result == game.VoteNewGame {
			newCoup(s, ctx.Rand)
		} else {
			s.Phase = PhaseLobby
			s.IsComplete = true
		}
	}

	out := game.ReplaceOutcome(s)
	out.Metadata = meta
	return out, nil
}

// newCoup keeps balances and reshuffles everything else.
func newCoup(s *State, rng *rand.Rand) {
	s.Deck = game.NewShuffledDeck(rng)
	s.Bets = make(map[string]Bet)
	s.Votes = game.NewVoteState()
	s.Result = nil
	s.Phase = PhaseBetting
}

// handTotal is the baccarat hand value: card values mod 10.
func handTotal(cards []game.Card) int {
	total := 0
	for _, c := range cards {
		total += c.BaccaratValue()
	}
	return total % 10
}

func syncBalances(s *State) {
	for id, bp := range s.Betting.Players {
		meta := s.Players[id]
		meta.Balance = bp.Balance
		s.Players[id] = meta
	}
}

// Definition returns the catalog entry.
func Definition() *game.Definition {
	return &game.Definition{
		ID:         GameID,
		Name:       "Baccarat",
		MinPlayers: 1,
		MaxPlayers: 8,
		NewState:   NewState,
		Strategies: map[string]game.Strategy{
			"placeBet": game.StrategyFunc(PlaceBet),
			"vote":     game.StrategyFunc(Vote),
		},
	}
}
