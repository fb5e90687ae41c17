package game

import (
	"fmt"
	"math/rand"
)

// Suit of a French-deck card.
type Suit string

const (
	Spades   Suit = "S"
	Hearts   Suit = "H"
	Diamonds Suit = "D"
	Clubs    Suit = "C"
)

var suits = []Suit{Spades, Hearts, Diamonds, Clubs}

// Card ranks run 2..14 with Ace high (14). Straight detection additionally
// treats the Ace as the low end of A-2-3-4-5.
type Card struct {
	Rank int  `json:"rank"` // 2..14
	Suit Suit `json:"suit"`
}

func (c Card) String() string {
	names := map[int]string{11: "J", 12: "Q", 13: "K", 14: "A"}
	if n, ok := names[c.Rank]; ok {
		return n + string(c.Suit)
	}
	return fmt.Sprintf("%d%s", c.Rank, c.Suit)
}

// BlackjackValue returns the hard value of a card; aces count 11 here and
// are softened by HandValue.
func (c Card) BlackjackValue() int {
	switch {
	case c.Rank >= 11 && c.Rank <= 13:
		return 10
	case c.Rank == 14:
		return 11
	default:
		return c.Rank
	}
}

// BaccaratValue counts tens and faces as 0, aces as 1.
func (c Card) BaccaratValue() int {
	switch {
	case c.Rank >= 10 && c.Rank <= 13:
		return 0
	case c.Rank == 14:
		return 1
	default:
		return c.Rank
	}
}

// Deck is an ordered stack of cards; the top is the last element.
type Deck struct {
	Cards []Card `json:"cards"`
}

// NewDeck returns a 52-card deck in canonical order.
func NewDeck() *Deck {
	d := &Deck{Cards: make([]Card, 0, 52)}
	for _, s := range suits {
		for r := 2; r <= 14; r++ {
			d.Cards = append(d.Cards, Card{Rank: r, Suit: s})
		}
	}
	return d
}

// NewShuffledDeck returns a deck shuffled with the room's seeded PRNG.
func NewShuffledDeck(rng *rand.Rand) *Deck {
	d := NewDeck()
	d.Shuffle(rng)
	return d
}

// Shuffle permutes the deck in place.
func (d *Deck) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(d.Cards), func(i, j int) {
		d.Cards[i], d.Cards[j] = d.Cards[j], d.Cards[i]
	})
}

// Draw removes and returns the top card. ok is false on an empty deck.
func (d *Deck) Draw() (Card, bool) {
	if len(d.Cards) == 0 {
		return Card{}, false
	}
	c := d.Cards[len(d.Cards)-1]
	d.Cards = d.Cards[:len(d.Cards)-1]
	return c, true
}

// DrawN draws up to n cards.
func (d *Deck) DrawN(n int) []Card {
	out := make([]Card, 0, n)
	for i := 0; i < n; i++ {
		c, ok := d.Draw()
		if !ok {
			break
		}
		out = append(out, c)
	}
	return out
}

// Len returns the remaining card count.
func (d *Deck) Len() int {
	return len(d.Cards)
}

// Clone returns a deep copy.
func (d *Deck) Clone() *Deck {
	return &Deck{Cards: append([]Card(nil), d.Cards...)}
}

// CloneCards deep-copies a card slice.
func CloneCards(cards []Card) []Card {
	return append([]Card(nil), cards...)
}

// HandValue returns the best blackjack total for a hand, softening aces
// from 11 to 1 while the hand would bust.
func HandValue(cards []Card) int {
	total, aces := 0, 0
	for _, c := range cards {
		v := c.BlackjackValue()
		if c.Rank == 14 {
			aces++
		}
		total += v
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total
}

// IsNatural reports a two-card 21.
func IsNatural(cards []Card) bool {
	return len(cards) == 2 && HandValue(cards) == 21
}
