package game

import (
	"sort"

	"github.com/TheZedxD/HomeGameServer/internal/v1/types"
)

// Betting status of one player within a hand.
const (
	BetStatusActive = "active"
	BetStatusFolded = "folded"
	BetStatusAllIn  = "allIn"
)

// Payout split modes.
const (
	SplitEqual  = "equal"
	SplitCustom = "custom"
)

// BettingPlayer tracks one player's chips within a betting state.
type BettingPlayer struct {
	Balance  int    `json:"balance"`
	Status   string `json:"status"`
	RoundBet int    `json:"roundBet"` // contribution to the current betting round
	Total    int    `json:"total"`    // total contribution to the pot this hand
}

// BettingState is the shared chip-accounting chunk embedded in every casino
// game state. It is plain data so cloning a game state clones it; all
// mutation goes through its methods, which maintain the invariants
// pot == sum of contributions and balance >= 0.
type BettingState struct {
	Pot        int                       `json:"pot"`
	CurrentBet int                       `json:"currentBet"`
	Round      string                    `json:"round"`
	Players    map[string]*BettingPlayer `json:"players"`
	Order      []string                  `json:"order"`
}

// NewBettingState seats players in order with the given starting balance.
func NewBettingState(order []string, startingBalance int) *BettingState {
	bs := &BettingState{
		Players: make(map[string]*BettingPlayer, len(order)),
		Order:   append([]string(nil), order...),
	}
	for _, id := range order {
		bs.Players[id] = &BettingPlayer{Balance: startingBalance, Status: BetStatusActive}
	}
	return bs
}

// Clone returns a deep copy.
func (bs *BettingState) Clone() *BettingState {
	out := &BettingState{
		Pot:        bs.Pot,
		CurrentBet: bs.CurrentBet,
		Round:      bs.Round,
		Players:    make(map[string]*BettingPlayer, len(bs.Players)),
		Order:      append([]string(nil), bs.Order...),
	}
	for id, p := range bs.Players {
		cp := *p
		out.Players[id] = &cp
	}
	return out
}

func (bs *BettingState) player(id string) (*BettingPlayer, *types.Error) {
	p, ok := bs.Players[id]
	if !ok {
		return nil, types.NewError(types.ErrValidation, "player %q is not seated", id)
	}
	return p, nil
}

// commit moves amount from the player's balance into the pot.
func (bs *BettingState) commit(p *BettingPlayer, amount int) {
	p.Balance -= amount
	p.RoundBet += amount
	p.Total += amount
	bs.Pot += amount
}

// PlaceBet commits a fixed bet (ante-style games). The bet becomes the
// round's current bet if it exceeds it.
func (bs *BettingState) PlaceBet(id string, amount int) *types.Error {
	p, err := bs.player(id)
	if err != nil {
		return err
	}
	if amount <= 0 {
		return types.NewError(types.ErrInvalidMove, "bet must be positive")
	}
	if p.Status != BetStatusActive {
		return types.NewError(types.ErrInvalidMove, "player %q cannot bet while %s", id, p.Status)
	}
	if amount > p.Balance {
		return types.NewError(types.ErrInsufficientBalance, "bet %d exceeds balance %d", amount, p.Balance)
	}
	bs.commit(p, amount)
	if p.RoundBet > bs.CurrentBet {
		bs.CurrentBet = p.RoundBet
	}
	if p.Balance == 0 {
		p.Status = BetStatusAllIn
	}
	return nil
}

// Call matches the current bet.
func (bs *BettingState) Call(id string) *types.Error {
	p, err := bs.player(id)
	if err != nil {
		return err
	}
	if p.Status != BetStatusActive {
		return types.NewError(types.ErrInvalidMove, "player %q cannot call while %s", id, p.Status)
	}
	owed := bs.CurrentBet - p.RoundBet
	if owed <= 0 {
		return types.NewError(types.ErrInvalidMove, "nothing to call")
	}
	if owed >= p.Balance {
		// Calling for less than the full amount is an all-in.
		bs.commit(p, p.Balance)
		p.Status = BetStatusAllIn
		return nil
	}
	bs.commit(p, owed)
	return nil
}

// Raise increases the current bet to p's round contribution plus amount
// over the call.
func (bs *BettingState) Raise(id string, amount int) *types.Error {
	p, err := bs.player(id)
	if err != nil {
		return err
	}
	if p.Status != BetStatusActive {
		return types.NewError(types.ErrInvalidMove, "player %q cannot raise while %s", id, p.Status)
	}
	if amount <= 0 {
		return types.NewError(types.ErrInvalidMove, "raise must be positive")
	}
	total := (bs.CurrentBet - p.RoundBet) + amount
	if total > p.Balance {
		return types.NewError(types.ErrInsufficientBalance, "raise requires %d, balance is %d", total, p.Balance)
	}
	bs.commit(p, total)
	bs.CurrentBet = p.RoundBet
	if p.Balance == 0 {
		p.Status = BetStatusAllIn
	}
	return nil
}

// Check passes without betting; only legal when nothing is owed.
func (bs *BettingState) Check(id string) *types.Error {
	p, err := bs.player(id)
	if err != nil {
		return err
	}
	if p.Status != BetStatusActive {
		return types.NewError(types.ErrInvalidMove, "player %q cannot check while %s", id, p.Status)
	}
	if p.RoundBet < bs.CurrentBet {
		return types.NewError(types.ErrInvalidMove, "cannot check facing a bet of %d", bs.CurrentBet)
	}
	return nil
}

// Fold removes the player from the hand; contributions stay in the pot.
func (bs *BettingState) Fold(id string) *types.Error {
	p, err := bs.player(id)
	if err != nil {
		return err
	}
	if p.Status == BetStatusFolded {
		return types.NewError(types.ErrInvalidMove, "player %q already folded", id)
	}
	p.Status = BetStatusFolded
	return nil
}

// AllIn commits the player's entire balance.
func (bs *BettingState) AllIn(id string) *types.Error {
	p, err := bs.player(id)
	if err != nil {
		return err
	}
	if p.Status != BetStatusActive {
		return types.NewError(types.ErrInvalidMove, "player %q cannot go all-in while %s", id, p.Status)
	}
	if p.Balance == 0 {
		return types.NewError(types.ErrInsufficientBalance, "no chips remaining")
	}
	bs.commit(p, p.Balance)
	if p.RoundBet > bs.CurrentBet {
		bs.CurrentBet = p.RoundBet
	}
	p.Status = BetStatusAllIn
	return nil
}

// StartRound resets per-round contributions for a new named street.
func (bs *BettingState) StartRound(name string) {
	bs.Round = name
	bs.CurrentBet = 0
	for _, p := range bs.Players {
		p.RoundBet = 0
	}
}

// IsRoundComplete reports whether every non-folded, non-all-in player has
// matched the current bet.
func (bs *BettingState) IsRoundComplete() bool {
	for _, p := range bs.Players {
		if p.Status != BetStatusActive {
			continue
		}
		if p.RoundBet != bs.CurrentBet {
			return false
		}
	}
	return true
}

// ActiveCount returns the number of players still in the hand (active or
// all-in).
func (bs *BettingState) ActiveCount() int {
	n := 0
	for _, p := range bs.Players {
		if p.Status != BetStatusFolded {
			n++
		}
	}
	return n
}

// Payout distributes the pot. With SplitEqual the remainder (pot mod n)
// goes to the first winner in seating order; custom shares must sum to the
// pot. The pot is zeroed afterwards.
func (bs *BettingState) Payout(winners []string, mode string, shares map[string]int) *types.Error {
	if len(winners) == 0 {
		return types.NewError(types.ErrValidation, "payout requires at least one winner")
	}
	switch mode {
	case SplitEqual:
		ordered := bs.inSeatingOrder(winners)
		share := bs.Pot / len(ordered)
		remainder := bs.Pot % len(ordered)
		for i, id := range ordered {
			p, err := bs.player(id)
			if err != nil {
				return err
			}
			amount := share
			if i == 0 {
				amount += remainder
			}
			p.Balance += amount
		}
	case SplitCustom:
		total := 0
		for _, amount := range shares {
			total += amount
		}
		if total != bs.Pot {
			return types.NewError(types.ErrValidation, "custom shares sum %d does not match pot %d", total, bs.Pot)
		}
		for id, amount := range shares {
			p, err := bs.player(id)
			if err != nil {
				return err
			}
			p.Balance += amount
		}
	default:
		return types.NewError(types.ErrValidation, "unknown split mode %q", mode)
	}
	bs.Pot = 0
	bs.CurrentBet = 0
	for _, p := range bs.Players {
		p.RoundBet = 0
		p.Total = 0
	}
	return nil
}

// inSeatingOrder sorts winner ids by their seat position.
func (bs *BettingState) inSeatingOrder(winners []string) []string {
	pos := make(map[string]int, len(bs.Order))
	for i, id := range bs.Order {
		pos[id] = i
	}
	out := append([]string(nil), winners...)
	sort.Slice(out, func(i, j int) bool { return pos[out[i]] < pos[out[j]] })
	return out
}
