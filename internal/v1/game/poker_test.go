package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func hand(cards ...Card) []Card { return cards }

func c(rank int, suit Suit) Card { return Card{Rank: rank, Suit: suit} }

func TestEvaluate5_Categories(t *testing.T) {
	tests := []struct {
		name string
		in   []Card
		want HandCategory
	}{
		{"high card", hand(c(14, Spades), c(10, Hearts), c(8, Clubs), c(6, Diamonds), c(2, Spades)), HighCard},
		{"pair", hand(c(9, Spades), c(9, Hearts), c(8, Clubs), c(6, Diamonds), c(2, Spades)), Pair},
		{"two pair", hand(c(9, Spades), c(9, Hearts), c(6, Clubs), c(6, Diamonds), c(2, Spades)), TwoPair},
		{"trips", hand(c(9, Spades), c(9, Hearts), c(9, Clubs), c(6, Diamonds), c(2, Spades)), ThreeOfAKind},
		{"straight", hand(c(9, Spades), c(8, Hearts), c(7, Clubs), c(6, Diamonds), c(5, Spades)), Straight},
		{"wheel", hand(c(14, Spades), c(5, Hearts), c(4, Clubs), c(3, Diamonds), c(2, Spades)), Straight},
		{"flush", hand(c(13, Spades), c(10, Spades), c(8, Spades), c(6, Spades), c(2, Spades)), Flush},
		{"full house", hand(c(9, Spades), c(9, Hearts), c(9, Clubs), c(6, Diamonds), c(6, Spades)), FullHouse},
		{"quads", hand(c(9, Spades), c(9, Hearts), c(9, Clubs), c(9, Diamonds), c(2, Spades)), FourOfAKind},
		{"straight flush", hand(c(9, Spades), c(8, Spades), c(7, Spades), c(6, Spades), c(5, Spades)), StraightFlush},
		{"royal flush", hand(c(14, Spades), c(13, Spades), c(12, Spades), c(11, Spades), c(10, Spades)), RoyalFlush},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate5(tt.in).Category)
		})
	}
}

func TestEvaluate5_WheelRanksBelowSixHighStraight(t *testing.T) {
	wheel := Evaluate5(hand(c(14, Spades), c(5, Hearts), c(4, Clubs), c(3, Diamonds), c(2, Spades)))
	sixHigh := Evaluate5(hand(c(6, Spades), c(5, Hearts), c(4, Clubs), c(3, Diamonds), c(2, Spades)))
	assert.Equal(t, -1, wheel.Compare(sixHigh))
}

func TestHandRank_Compare_KickersBreakTies(t *testing.T) {
	aceKicker := Evaluate5(hand(c(9, Spades), c(9, Hearts), c(14, Clubs), c(6, Diamonds), c(2, Spades)))
	kingKicker := Evaluate5(hand(c(9, Clubs), c(9, Diamonds), c(13, Spades), c(6, Hearts), c(2, Clubs)))
	assert.Equal(t, 1, aceKicker.Compare(kingKicker))

	same := Evaluate5(hand(c(9, Clubs), c(9, Diamonds), c(14, Hearts), c(6, Hearts), c(2, Clubs)))
	assert.Equal(t, 0, aceKicker.Compare(same))
}

func TestBestFiveOfSeven_FindsBuriedHand(t *testing.T) {
	// Flush hides among seven cards with a pair on the board.
	seven := hand(
		c(14, Spades), c(9, Spades),
		c(13, Spades), c(13, Hearts), c(7, Spades), c(4, Spades), c(2, Diamonds),
	)
	rank := BestFiveOfSeven(seven)
	assert.Equal(t, Flush, rank.Category)
	assert.Equal(t, []int{14, 13, 9, 7, 4}, rank.Kickers)
}

func TestBestFiveOfSeven_FullHouseOverFlush(t *testing.T) {
	seven := hand(
		c(13, Spades), c(13, Hearts),
		c(13, Clubs), c(7, Spades), c(7, Hearts), c(4, Spades), c(2, Spades),
	)
	assert.Equal(t, FullHouse, BestFiveOfSeven(seven).Category)
}
