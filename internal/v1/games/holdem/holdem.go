// Package holdem implements Texas Hold'em with 5/10 blinds, four betting
// streets and a best-five-of-seven showdown.
package holdem

import (
	"encoding/json"
	"math/rand"

	"github.com/TheZedxD/HomeGameServer/internal/v1/game"
	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

const GameID types.GameIDType = "holdem"

const (
	StreetPreflop  = "preflop"
	StreetFlop     = "flop"
	StreetTurn     = "turn"
	StreetRiver    = "river"
	StreetShowdown = "showdown"

	SmallBlind      = 5
	BigBlind        = 10
	StartingBalance = 1000
)

// LastHand summarizes the previous showdown for display between hands.
type LastHand struct {
	Winners []string `json:"winners"`
	Rank    string   `json:"rank,omitempty"`
	Pot     int      `json:"pot"`
}

type State struct {
	game.Header
	Deck      *game.Deck             `json:"deck"`
	Hole      map[string][]game.Card `json:"hole"`
	Community []game.Card            `json:"community"`
	Betting   *game.BettingState     `json:"betting"`
	DealerPos int                    `json:"dealerPos"`
	InHand    []string               `json:"inHand"`
	Acted     map[string]bool        `json:"acted"`
	HandNum   int                    `json:"handNum"`
	LastHand  *LastHand              `json:"lastHand,omitempty"`
}

var _ game.State = (*State)(nil)

func (s *State) Clone() game.State {
	out := *s
	out.Header = s.Header.CloneHeader()
	out.Deck = s.Deck.Clone()
	out.Hole = make(map[string][]game.Card, len(s.Hole))
	for id, h := range s.Hole {
		out.Hole[id] = game.CloneCards(h)
	}
	out.Community = game.CloneCards(s.Community)
	out.Betting = s.Betting.Clone()
	out.InHand = append([]string(nil), s.InHand...)
	out.Acted = make(map[string]bool, len(s.Acted))
	for id, v := range s.Acted {
		out.Acted[id] = v
	}
	if s.LastHand != nil {
		lh := *s.LastHand
		lh.Winners = append([]string(nil), s.LastHand.Winners...)
		out.LastHand = &lh
	}
	return &out
}

func NewState(players *game.PlayerManager, rng *rand.Rand) game.State {
	s := &State{
		Header: game.Header{
			Players: make(map[string]game.PlayerMeta),
		},
		Hole:      make(map[string][]game.Card),
		Acted:     make(map[string]bool),
		DealerPos: -1, // advances to 0 on the first hand
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
	startHand(s, rng)
	return s
}

// startHand moves the button, posts blinds and deals hole cards.
func startHand(s *State, rng *rand.Rand) {
	s.HandNum++
	s.Deck = game.NewShuffledDeck(rng)
	s.Community = nil
	s.Hole = make(map[string][]game.Card)
	s.Acted = make(map[string]bool)

	// Only players with chips are dealt in.
	s.InHand = nil
	for _, id := range s.PlayerOrder {
		if s.Betting.Players[id].Balance > 0 {
			s.Betting.Players[id].Status = game.BetStatusActive
			s.InHand = append(s.InHand, id)
		} else {
			s.Betting.Players[id].Status = game.BetStatusFolded
		}
	}
	if len(s.InHand) < 2 {
		finishGame(s)
		return
	}

	s.DealerPos = (s.DealerPos + 1) % len(s.InHand)
	s.Betting.StartRound(StreetPreflop)
	s.Phase = StreetPreflop

	n := len(s.InHand)
	var sb, bb int
	if n == 2 {
		sb = s.DealerPos
		bb = (s.DealerPos + 1) % n
	} else {
		sb = (s.DealerPos + 1) % n
		bb = (s.DealerPos + 2) % n
	}
	postBlind(s, s.InHand[sb], SmallBlind)
	postBlind(s, s.InHand[bb], BigBlind)
	s.Betting.CurrentBet = BigBlind

	for _, id := range s.InHand {
		s.Hole[id] = s.Deck.DrawN(2)
	}

	s.CurrentPlayerID = s.InHand[(bb+1)%n]
	if next := firstActionable(s, s.CurrentPlayerID); next != "" {
		s.CurrentPlayerID = next
	}
	syncBalances(s)
}

// postBlind commits a forced bet, going all-in for a short stack.
func postBlind(s *State, id string, amount int) {
	bp := s.Betting.Players[id]
	if amount >= bp.Balance {
		_ = s.Betting.AllIn(id)
		return
	}
	_ = s.Betting.PlaceBet(id, amount)
}

// finishGame ends the session when fewer than two players have chips.
func finishGame(s *State) {
	s.Phase = StreetShowdown
	s.IsComplete = true
	best, bestID := -1, ""
	for _, id := range s.PlayerOrder {
		if b := s.Betting.Players[id].Balance; b > best {
			best, bestID = b, id
		}
	}
	s.Winner = bestID
	s.CurrentPlayerID = ""
	syncBalances(s)
}

type betPayload struct {
	Action string `json:"action"` // call, raise, check, fold, allIn
	Amount int    `json:"amount,omitempty"`
}

// Bet applies one betting action for the current player.
func Bet(ctx *game.Context) (*game.Outcome, *types.Error) {
	s := ctx.State.(*State)
	if s.IsComplete || s.Phase == StreetShowdown {
		return nil, types.NewError(types.ErrInvalidMove, "no betting round in progress")
	}
	id := string(ctx.PlayerID)
	if id != s.CurrentPlayerID {
		return nil, types.NewError(types.ErrNotYourTurn, "it is %s's turn", s.CurrentPlayerID)
	}

	var p betPayload
	if err := json.Unmarshal(ctx.Payload, &p); err != nil {
		return nil, types.NewError(types.ErrValidation, "malformed bet payload")
	}

	var err *types.Error
	switch p.Action {
	case "call":
		err = s.Betting.Call(id)
	case "raise":
		err = s.Betting.Raise(id, p.Amount)
	case "check":
		err = s.Betting.Check(id)
	case "fold":
		err = s.Betting.Fold(id)
	case "allIn":
		err = s.Betting.AllIn(id)
	default:
		err = types.NewError(types.ErrValidation, "action must be call, raise, check, fold or allIn")
	}
	if err != nil {
		return nil, err
	}

	s.Acted[id] = true
	if p.Action == "raise" || p.Action == "allIn" {
		// A raise reopens the action for everyone else.
		for other := range s.Acted {
			if other != id {
				delete(s.Acted, other)
			}
		}
	}
	syncBalances(s)

	if s.Betting.ActiveCount() == 1 {
		awardUncontested(s, ctx.Rand)
		return game.ReplaceOutcome(s), nil
	}

	if streetComplete(s) {
		advanceStreet(s, ctx.Rand)
	} else {
		s.CurrentPlayerID = firstActionable(s, nextInHand(s, id))
	}

	return game.ReplaceOutcome(s), nil
}

// streetComplete: every non-folded, non-all-in player has acted and
// matched the current bet.
func streetComplete(s *State) bool {
	if !s.Betting.IsRoundComplete() {
		return false
	}
	for _, id := range s.InHand {
		if s.Betting.Players[id].Status == game.BetStatusActive && !s.Acted[id] {
			return false
		}
	}
	return true
}

// advanceStreet deals the next community cards or runs the showdown. When
// nobody can act (everyone all-in) remaining streets fast-forward.
func advanceStreet(s *State, rng *rand.Rand) {
	for {
		switch s.Phase {
		case StreetPreflop:
			s.Community = append(s.Community, s.Deck.DrawN(3)...)
			s.Phase = StreetFlop
		case StreetFlop:
			s.Community = append(s.Community, s.Deck.DrawN(1)...)
			s.Phase = StreetTurn
		case StreetTurn:
			s.Community = append(s.Community, s.Deck.DrawN(1)...)
			s.Phase = StreetRiver
		case StreetRiver:
			showdown(s, rng)
			return
		}

		s.Betting.StartRound(s.Phase)
		s.Acted = make(map[string]bool)

		first := firstActionable(s, s.InHand[(s.DealerPos+1)%len(s.InHand)])
		if first == "" {
			// Everyone is all-in; keep dealing.
			continue
		}
		s.CurrentPlayerID = first
		return
	}
}

// showdown evaluates best five of seven for every non-folded player and
// splits the pot equally among the winners; the odd chip goes to the
// first winner in seating order.
func showdown(s *State, rng *rand.Rand) {
	var winners []string
	var best game.HandRank
	for _, id := range s.InHand {
		if s.Betting.Players[id].Status == game.BetStatusFolded {
			continue
		}
		rank := game.BestFiveOfSeven(append(game.CloneCards(s.Hole[id]), s.Community...))
		switch {
		case len(winners) == 0:
			winners, best = []string{id}, rank
		default:
			switch rank.Compare(best) {
			case 1:
				winners, best = []string{id}, rank
			case 0:
				winners = append(winners, id)
			}
		}
	}

	pot := s.Betting.Pot
	_ = s.Betting.Payout(winners, game.SplitEqual, nil)
	s.LastHand = &LastHand{Winners: winners, Rank: best.Category.String(), Pot: pot}
	syncBalances(s)
	startHand(s, rng)
}

// awardUncontested gives the pot to the last player standing.
func awardUncontested(s *State, rng *rand.Rand) {
	var winner string
	for _, id := range s.InHand {
		if s.Betting.Players[id].Status != game.BetStatusFolded {
			winner = id
			break
		}
	}
	pot := s.Betting.Pot
	_ = s.Betting.Payout([]string{winner}, game.SplitEqual, nil)
	s.LastHand = &LastHand{Winners: []string{winner}, Pot: pot}
	syncBalances(s)
	startHand(s, rng)
}

// nextInHand returns the seat after id in hand order.
func nextInHand(s *State, id string) string {
	for i, pid := range s.InHand {
		if pid == id {
			return s.InHand[(i+1)%len(s.InHand)]
		}
	}
	return id
}

// firstActionable walks from start to the first player who can still act.
func firstActionable(s *State, start string) string {
	idx := 0
	for i, pid := range s.InHand {
		if pid == start {
			idx = i
			break
		}
	}
	for i := 0; i < len(s.InHand); i++ {
		id := s.InHand[(idx+i)%len(s.InHand)]
		if s.Betting.Players[id].Status == game.BetStatusActive {
			return id
		}
	}
	return ""
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
		Name:       "Texas Hold'em",
		MinPlayers: 2,
		MaxPlayers: 8,
		NewState:   NewState,
		Strategies: map[string]game.Strategy{
			"bet": game.StrategyFunc(Bet),
		},
	}
}
