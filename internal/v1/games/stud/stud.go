// Package stud implements 5-card stud: one hole card, four up cards, a
// betting round after each up card, and a post-hand vote.
package stud

import (
	"encoding/json"
	"math/rand"
	"sort"

	"github.com/TheZedxD/HomeGameServer/internal/v1/game"
	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

const GameID types.GameIDType = "stud"

const (
	PhaseSecond   = "secondStreet"
	PhaseThird    = "thirdStreet"
	PhaseFourth   = "fourthStreet"
	PhaseFifth    = "fifthStreet"
	PhaseVoting   = "voting"
	PhaseLobby    = "lobby"
	PhaseShowdown = "showdown"

	Ante            = 5
	StartingBalance = 1000
)

// LastHand summarizes the previous showdown for display during voting.
type LastHand struct {
	Winners []string `json:"winners"`
	Rank    string   `json:"rank,omitempty"`
	Pot     int      `json:"pot"`
}

type State struct {
	game.Header
	Deck     *game.Deck             `json:"deck"`
	Hole     map[string]game.Card   `json:"hole"`
	Up       map[string][]game.Card `json:"up"`
	Betting  *game.BettingState     `json:"betting"`
	InHand   []string               `json:"inHand"`
	Acted    map[string]bool        `json:"acted"`
	Votes    *game.VoteState        `json:"votes"`
	LastHand *LastHand              `json:"lastHand,omitempty"`
}

var _ game.State = (*State)(nil)

func (s *State) Clone() game.State {
	out := *s
	out.Header = s.Header.CloneHeader()
	out.Deck = s.Deck.Clone()
	out.Hole = make(map[string]game.Card, len(s.Hole))
	for id, c := range s.Hole {
		out.Hole[id] = c
	}
	out.Up = make(map[string][]game.Card, len(s.Up))
	for id, cards := range s.Up {
		out.Up[id] = game.CloneCards(cards)
	}
	out.Betting = s.Betting.Clone()
	out.InHand = append([]string(nil), s.InHand...)
	out.Acted = make(map[string]bool, len(s.Acted))
	for id, v := range s.Acted {
		out.Acted[id] = v
	}
	out.Votes = s.Votes.Clone()
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
	startHand(s, rng)
	return s
}

// startHand antes everyone in, deals one down and one up card, and opens
// second street.
func startHand(s *State, rng *rand.Rand) {
	s.Deck = game.NewShuffledDeck(rng)
	s.Hole = make(map[string]game.Card)
	s.Up = make(map[string][]game.Card)
	s.Acted = make(map[string]bool)
	s.Votes = game.NewVoteState()

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

	s.Betting.StartRound(PhaseSecond)
	s.Phase = PhaseSecond
	for _, id := range s.InHand {
		if Ante >= s.Betting.Players[id].Balance {
			_ = s.Betting.AllIn(id)
		} else {
			_ = s.Betting.PlaceBet(id, Ante)
		}
	}
	// Antes are dead money, not a live bet.
	s.Betting.CurrentBet = 0
	for _, id := range s.InHand {
		s.Betting.Players[id].RoundBet = 0
	}

	for _, id := range s.InHand {
		card, _ := s.Deck.Draw()
		s.Hole[id] = card
	}
	for _, id := range s.InHand {
		s.Up[id] = s.Deck.DrawN(1)
	}

	openStreet(s)
	syncBalances(s)
}

// finishGame ends the session when fewer than two players have chips.
func finishGame(s *State) {
	s.Phase = PhaseLobby
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

// openStreet sets the current player to the best showing hand that can
// still act.
func openStreet(s *State) {
	for _, id := range showingOrder(s) {
		if s.Betting.Players[id].Status == game.BetStatusActive {
			s.CurrentPlayerID = id
			return
		}
	}
	s.CurrentPlayerID = ""
}

// showingOrder ranks non-folded players by their visible cards, best
// first. Ties break by seat.
func showingOrder(s *State) []string {
	var ids []string
	for _, id := range s.InHand {
		if s.Betting.Players[id].Status != game.BetStatusFolded {
			ids = append(ids, id)
		}
	}
	sort.SliceStable(ids, func(i, j int) bool {
		return showingLess(s.Up[ids[j]], s.Up[ids[i]])
	})
	return ids
}

// showingLess compares two sets of up cards: larger multiplicity groups
// win, then higher ranks.
func showingLess(a, b []game.Card) bool {
	ka := showingKey(a)
	kb := showingKey(b)
	for i := 0; i < len(ka) && i < len(kb); i++ {
		if ka[i] != kb[i] {
			return ka[i] < kb[i]
		}
	}
	return len(ka) < len(kb)
}

// showingKey encodes up cards as (count, rank) pairs, best group first.
func showingKey(cards []game.Card) []int {
	counts := make(map[int]int)
	for _, c := range cards {
		counts[c.Rank]++
	}
	type grp struct{ count, rank int }
	var groups []grp
	for rank, count := range counts {
		groups = append(groups, grp{count, rank})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].rank > groups[j].rank
	})
	var key []int
	for _, g := range groups {
		key = append(key, g.count, g.rank)
	}
	return key
}

type actionPayload struct {
	Action string `json:"action"` // call, raise, check, fold, allIn
	Amount int    `json:"amount,omitempty"`
}

type votePayload struct {
	Choice string `json:"choice"`
}

// PokerAction applies one betting action for the current player.
func PokerAction(ctx *game.Context) (*game.Outcome, *types.Error) {
	s := ctx.State.(*State)
	switch s.Phase {
	case PhaseSecond, PhaseThird, PhaseFourth, PhaseFifth:
	default:
		return nil, types.NewError(types.ErrInvalidMove, "no betting round in progress")
	}
	id := string(ctx.PlayerID)
	if id != s.CurrentPlayerID {
		return nil, types.NewError(types.ErrNotYourTurn, "it is %s's turn", s.CurrentPlayerID)
	}

	var p actionPayload
	if err := json.Unmarshal(ctx.Payload, &p); err != nil {
		return nil, types.NewError(types.ErrValidation, "malformed pokerAction payload")
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
		for other := range s.Acted {
			if other != id {
				delete(s.Acted, other)
			}
		}
	}
	syncBalances(s)

	if s.Betting.ActiveCount() == 1 {
		awardUncontested(s)
		return game.ReplaceOutcome(s), nil
	}

	if streetComplete(s) {
		advanceStreet(s)
	} else {
		s.CurrentPlayerID = nextActionable(s, id)
	}

	return game.ReplaceOutcome(s), nil
}

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

// advanceStreet deals the next up card to every live player and reopens
// betting, or runs the showdown after fifth street. When nobody can act
// the remaining cards run out automatically.
func advanceStreet(s *State) {
	for {
		next := ""
		switch s.Phase {
		case PhaseSecond:
			next = PhaseThird
		case PhaseThird:
			next = PhaseFourth
		case PhaseFourth:
			next = PhaseFifth
		case PhaseFifth:
			showdown(s)
			return
		}

		for _, id := range s.InHand {
			if s.Betting.Players[id].Status != game.BetStatusFolded {
				s.Up[id] = append(s.Up[id], s.Deck.DrawN(1)...)
			}
		}
		s.Phase = next
		s.Betting.StartRound(next)
		s.Acted = make(map[string]bool)

		openStreet(s)
		if s.CurrentPlayerID == "" {
			// Everyone is all-in; keep dealing.
			continue
		}
		return
	}
}

// showdown ranks each live player's five cards and splits the pot among
// the winners; the odd chip goes to the first winner in seating order.
func showdown(s *State) {
	var winners []string
	var best game.HandRank
	for _, id := range s.InHand {
		if s.Betting.Players[id].Status == game.BetStatusFolded {
			continue
		}
		hand := append([]game.Card{s.Hole[id]}, s.Up[id]...)
		rank := game.Evaluate5(hand)
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
	s.Phase = PhaseVoting
	s.CurrentPlayerID = ""
}

// awardUncontested gives the pot to the last player standing and opens
// the vote.
func awardUncontested(s *State) {
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
	s.Phase = PhaseVoting
	s.CurrentPlayerID = ""
}

// nextActionable walks clockwise from id to the next player who can act.
func nextActionable(s *State, id string) string {
	idx := 0
	for i, pid := range s.InHand {
		if pid == id {
			idx = i
			break
		}
	}
	for i := 1; i <= len(s.InHand); i++ {
		candidate := s.InHand[(idx+i)%len(s.InHand)]
		if s.Betting.Players[candidate].Status == game.BetStatusActive {
			return candidate
		}
	}
	return ""
}

// Vote records a post-hand vote; when complete the table either deals a
// new hand or returns to the lobby.
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
			startHand(s, ctx.Rand)
		} else {
			s.Phase = PhaseLobby
			s.IsComplete = true
		}
	}

	out := game.ReplaceOutcome(s)
	out.Metadata = meta
	return out, nil
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
		Name:       "5-Card Stud",
		MinPlayers: 2,
		MaxPlayers: 8,
		NewState:   NewState,
		Strategies: map[string]game.Strategy{
			"pokerAction": game.StrategyFunc(PokerAction),
			"vote":        game.StrategyFunc(Vote),
		},
	}
}
