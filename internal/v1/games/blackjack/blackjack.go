// Package blackjack implements house-banked blackjack: bet, act, dealer
// resolution, then a post-hand vote.
package blackjack

import (
	"encoding/json"
	"math/rand"

	"github.com/TheZedxD/HomeGameServer/internal/v1/game"
	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

const GameID types.GameIDType = "blackjack"

const (
	PhaseBetting = "betting"
	PhaseActing  = "acting"
	PhaseVoting  = "voting"
	PhaseLobby   = "lobby"

	StartingBalance = 1000
)

// Hand results.
const (
	ResultBlackjack = "blackjack"
	ResultWin       = "win"
	ResultPush      = "push"
	ResultLose      = "lose"
)

type State struct {
	game.Header
	Deck    *game.Deck             `json:"deck"`
	Hands   map[string][]game.Card `json:"hands"`
	Dealer  []game.Card            `json:"dealer"`
	Bets    map[string]int         `json:"bets"`
	Done    map[string]bool        `json:"done"`
	Results map[string]string      `json:"results"`
	Betting *game.BettingState     `json:"betting"`
	Votes   *game.VoteState        `json:"votes"`
}

var _ game.State = (*State)(nil)

func (s *State) Clone() game.State {
	out := *s
	out.Header = s.Header.CloneHeader()
	out.Deck = s.Deck.Clone()
	out.Hands = make(map[string][]game.Card, len(s.Hands))
	for id, h := range s.Hands {
		out.Hands[id] = game.CloneCards(h)
	}
	out.Dealer = game.CloneCards(s.Dealer)
	out.Bets = cloneIntMap(s.Bets)
	out.Done = cloneBoolMap(s.Done)
	out.Results = cloneStringMap(s.Results)
	out.Betting = s.Betting.Clone()
	out.Votes = s.Votes.Clone()
	return &out
}

func NewState(players *game.PlayerManager, rng *rand.Rand) game.State {
	s := &State{
		Header: game.Header{
			Phase:   PhaseBetting,
			Players: make(map[string]game.PlayerMeta),
		},
		Deck:    game.NewShuffledDeck(rng),
		Hands:   make(map[string][]game.Card),
		Bets:    make(map[string]int),
		Done:    make(map[string]bool),
		Results: make(map[string]string),
		Votes:   game.NewVoteState(),
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
	Amount int `json:"amount"`
}

type actionPayload struct {
	Action string `json:"action"` // hit, stand, double
}

type votePayload struct {
	Choice string `json:"choice"`
}

// PlaceBet escrows a bet during the betting phase. Dealing starts once
// every seated player has bet.
func PlaceBet(ctx *game.Context) (*game.Outcome, *types.Error) {
	s := ctx.State.(*State)
	if s.Phase != PhaseBetting {
		return nil, types.NewError(types.ErrInvalidMove, "bets are closed")
	}

	var p betPayload
	if err := json.Unmarshal(ctx.Payload, &p); err != nil {
		return nil, types.NewError(types.ErrValidation, "malformed placeBet payload")
	}
	id := string(ctx.PlayerID)
	if s.Bets[id] > 0 {
		return nil, types.NewError(types.ErrInvalidMove, "bet already placed")
	}
	if err := s.Betting.PlaceBet(id, p.Amount); err != nil {
		return nil, err
	}
	s.Bets[id] = p.Amount
	syncBalances(s)

	if len(s.Bets) == len(s.PlayerOrder) {
		deal(s)
	}

	return game.ReplaceOutcome(s), nil
}

// deal gives each player two cards in seat order, then two to the dealer,
// and opens the first player's turn.
func deal(s *State) {
	for _, id := range s.PlayerOrder {
		s.Hands[id] = s.Deck.DrawN(2)
	}
	s.Dealer = s.Deck.DrawN(2)
	s.Phase = PhaseActing
	s.CurrentPlayerID = s.PlayerOrder[0]

	// A natural 21 is auto-resolved; skip those players.
	for _, id := range s.PlayerOrder {
		if game.IsNatural(s.Hands[id]) {
			s.Done[id] = true
		}
	}
	advanceTurn(s)
}

// Action applies hit, stand or double for the current player.
func Action(ctx *game.Context) (*game.Outcome, *types.Error) {
	s := ctx.State.(*State)
	if s.Phase != PhaseActing {
		return nil, types.NewError(types.ErrInvalidMove, "no hand in progress")
	}
	id := string(ctx.PlayerID)
	if id != s.CurrentPlayerID {
		return nil, types.NewError(types.ErrNotYourTurn, "it is %s's turn", s.CurrentPlayerID)
	}

	var p actionPayload
	if err := json.Unmarshal(ctx.Payload, &p); err != nil {
		return nil, types.NewError(types.ErrValidation, "malformed action payload")
	}

	switch p.Action {
	case "hit":
		card, _ := s.Deck.Draw()
		s.Hands[id] = append(s.Hands[id], card)
		if game.HandValue(s.Hands[id]) >= 21 {
			s.Done[id] = true
		}
	case "stand":
		s.Done[id] = true
	case "double":
		if len(s.Hands[id]) != 2 {
			return nil, types.NewError(types.ErrInvalidMove, "double is only allowed on the first two cards")
		}
		if err := s.Betting.PlaceBet(id, s.Bets[id]); err != nil {
			return nil, err
		}
		s.Bets[id] *= 2
		card, _ := s.Deck.Draw()
		s.Hands[id] = append(s.Hands[id], card)
		s.Done[id] = true
		syncBalances(s)
	default:
		return nil, types.NewError(types.ErrValidation, "action must be hit, stand or double")
	}

	advanceTurn(s)
	return game.ReplaceOutcome(s), nil
}

// advanceTurn finds the next undone player; when none remain the dealer
// plays and the hand resolves.
func advanceTurn(s *State) {
	for _, id := range s.PlayerOrder {
		if !s.Done[id] {
			s.CurrentPlayerID = id
			return
		}
	}
	playDealer(s)
	resolve(s)
}

// playDealer draws while the dealer total is 16 or less, stands at 17+.
func playDealer(s *State) {
	for game.HandValue(s.Dealer) <= 16 {
		card, ok := s.Deck.Draw()
		if !ok {
			break
		}
		s.Dealer = append(s.Dealer, card)
	}
}

// resolve settles every bet against the dealer. The house is the bank:
// winnings are credited directly, naturals pay 3:2, pushes return the bet.
func resolve(s *State) {
	dealerValue := game.HandValue(s.Dealer)
	dealerBust := dealerValue > 21
	dealerNatural := game.IsNatural(s.Dealer)

	for _, id := range s.PlayerOrder {
		hand := s.Hands[id]
		value := game.HandValue(hand)
		bet := s.Bets[id]
		bp := s.Betting.Players[id]

		switch {
		case value > 21:
			s.Results[id] = ResultLose
		case game.IsNatural(hand) && !dealerNatural:
			s.Results[id] = ResultBlackjack
			bp.Balance += bet + bet*3/2
		case value == dealerValue || (game.IsNatural(hand) && dealerNatural):
			s.Results[id] = ResultPush
			bp.Balance += bet
		case dealerBust || value > dealerValue:
			s.Results[id] = ResultWin
			bp.Balance += bet * 2
		default:
			s.Results[id] = ResultLose
		}
	}

	// Settled hands leave nothing in escrow.
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

	s.Phase = PhaseVoting
	s.CurrentPlayerID = ""
}

// Vote records a post-hand vote; when complete the table either re-deals
// or returns to the lobby.
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
			newHand(s, ctx.Rand)
		} else {
			s.Phase = PhaseLobby
			s.IsComplete = true
		}
	}

	out := game.ReplaceOutcome(s)
	out.Metadata = meta
	return out, nil
}

// newHand keeps balances and reshuffles everything else.
func newHand(s *State, rng *rand.Rand) {
	s.Deck = game.NewShuffledDeck(rng)
	s.Hands = make(map[string][]game.Card)
	s.Dealer = nil
	s.Bets = make(map[string]int)
	s.Done = make(map[string]bool)
	s.Results = make(map[string]string)
	s.Votes = game.NewVoteState()
	s.Phase = PhaseBetting
	s.CurrentPlayerID = ""
}

// syncBalances mirrors chip balances into the header player metadata.
func syncBalances(s *State) {
	for id, bp := range s.Betting.Players {
		meta := s.Players[id]
		meta.Balance = bp.Balance
		s.Players[id] = meta
	}
}

func cloneIntMap(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneBoolMap(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneStringMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Definition returns the catalog entry.
func Definition() *game.Definition {
	return &game.Definition{
		ID:         GameID,
		Name:       "Blackjack",
		MinPlayers: 1,
		MaxPlayers: 6,
		NewState:   NewState,
		Strategies: map[string]game.Strategy{
			"placeBet": game.StrategyFunc(PlaceBet),
			"action":   game.StrategyFunc(Action),
			"vote":     game.StrategyFunc(Vote),
		},
	}
}
