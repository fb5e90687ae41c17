package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDeck(t *testing.T) {
	d := NewDeck()
	require.Equal(t, 52, d.Len())

	seen := make(map[Card]bool)
	for _, c := range d.Cards {
		assert.False(t, seen[c], "duplicate card %s", c)
		seen[c] = true
	}
}

func TestDeck_DrawExhaustion(t *testing.T) {
	d := NewDeck()
	drawn := d.DrawN(52)
	require.Len(t, drawn, 52)

	_, ok := d.Draw()
	assert.False(t, ok)
	assert.Empty(t, d.DrawN(3))
}

func TestDeck_ShuffleIsDeterministicPerSeed(t *testing.T) {
	a := NewShuffledDeck(rand.New(rand.NewSource(7)))
	b := NewShuffledDeck(rand.New(rand.NewSource(7)))
	c := NewShuffledDeck(rand.New(rand.NewSource(8)))

	assert.Equal(t, a.Cards, b.Cards)
	assert.NotEqual(t, a.Cards, c.Cards)
}

func TestHandValue_SoftensAces(t *testing.T) {
	tests := []struct {
		name  string
		cards []Card
		want  int
	}{
		{"hard total", []Card{{Rank: 10, Suit: Spades}, {Rank: 9, Suit: Hearts}}, 19},
		{"soft ace", []Card{{Rank: 14, Suit: Spades}, {Rank: 6, Suit: Hearts}}, 17},
		{"softened ace", []Card{{Rank: 14, Suit: Spades}, {Rank: 6, Suit: Hearts}, {Rank: 9, Suit: Clubs}}, 16},
		{"two aces", []Card{{Rank: 14, Suit: Spades}, {Rank: 14, Suit: Hearts}}, 12},
		{"natural", []Card{{Rank: 14, Suit: Spades}, {Rank: 13, Suit: Hearts}}, 21},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HandValue(tt.cards))
		})
	}
}

func TestIsNatural(t *testing.T) {
	assert.True(t, IsNatural([]Card{{Rank: 14, Suit: Spades}, {Rank: 12, Suit: Hearts}}))
	assert.False(t, IsNatural([]Card{{Rank: 7, Suit: Spades}, {Rank: 7, Suit: Hearts}, {Rank: 7, Suit: Clubs}}))
}

func TestBaccaratValue(t *testing.T) {
	assert.Equal(t, 0, Card{Rank: 10, Suit: Spades}.BaccaratValue())
	assert.Equal(t, 0, Card{Rank: 13, Suit: Spades}.BaccaratValue())
	assert.Equal(t, 1, Card{Rank: 14, Suit: Spades}.BaccaratValue())
	assert.Equal(t, 9, Card{Rank: 9, Suit: Spades}.BaccaratValue())
}
