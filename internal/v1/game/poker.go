package game

import "sort"

// HandCategory in ascending rank order.
type HandCategory int

const (
	HighCard HandCategory = iota
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

var categoryNames = map[HandCategory]string{
	HighCard:      "High Card",
	Pair:          "Pair",
	TwoPair:       "Two Pair",
	ThreeOfAKind:  "Three of a Kind",
	Straight:      "Straight",
	Flush:         "Flush",
	FullHouse:     "Full House",
	FourOfAKind:   "Four of a Kind",
	StraightFlush: "Straight Flush",
	RoyalFlush:    "Royal Flush",
}

func (c HandCategory) String() string {
	return categoryNames[c]
}

// HandRank orders hands: category first, then kickers element-wise.
type HandRank struct {
	Category HandCategory `json:"category"`
	Kickers  []int        `json:"kickers"`
}

// Compare returns -1, 0 or 1 as r ranks below, equal to, or above other.
func (r HandRank) Compare(other HandRank) int {
	if r.Category != other.Category {
		if r.Category < other.Category {
			return -1
		}
		return 1
	}
	for i := 0; i < len(r.Kickers) && i < len(other.Kickers); i++ {
		if r.Kickers[i] != other.Kickers[i] {
			if r.Kickers[i] < other.Kickers[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Evaluate5 ranks exactly five cards.
func Evaluate5(cards []Card) HandRank {
	ranks := make([]int, len(cards))
	suitsSeen := make(map[Suit]int)
	counts := make(map[int]int)
	for i, c := range cards {
		ranks[i] = c.Rank
		suitsSeen[c.Suit]++
		counts[c.Rank]++
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ranks)))

	isFlush := len(suitsSeen) == 1
	straightHigh, isStraight := straightHighCard(ranks)

	switch {
	case isStraight && isFlush && straightHigh == 14:
		return HandRank{Category: RoyalFlush, Kickers: []int{14}}
	case isStraight && isFlush:
		return HandRank{Category: StraightFlush, Kickers: []int{straightHigh}}
	}

	// Group ranks by multiplicity: higher count first, then higher rank.
	type group struct{ rank, count int }
	groups := make([]group, 0, len(counts))
	for r, n := range counts {
		groups = append(groups, group{r, n})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].rank > groups[j].rank
	})

	kickers := make([]int, 0, 5)
	for _, g := range groups {
		kickers = append(kickers, g.rank)
	}

	switch {
	case groups[0].count == 4:
		return HandRank{Category: FourOfAKind, Kickers: kickers}
	case groups[0].count == 3 && groups[1].count == 2:
		return HandRank{Category: FullHouse, Kickers: kickers}
	case isFlush:
		return HandRank{Category: Flush, Kickers: ranks}
	case isStraight:
		return HandRank{Category: Straight, Kickers: []int{straightHigh}}
	case groups[0].count == 3:
		return HandRank{Category: ThreeOfAKind, Kickers: kickers}
	case groups[0].count == 2 && groups[1].count == 2:
		return HandRank{Category: TwoPair, Kickers: kickers}
	case groups[0].count == 2:
		return HandRank{Category: Pair, Kickers: kickers}
	default:
		return HandRank{Category: HighCard, Kickers: ranks}
	}
}

// straightHighCard detects a straight in desc-sorted distinct-or-not ranks.
// The wheel (A-2-3-4-5) ranks with high card 5.
func straightHighCard(sortedDesc []int) (int, bool) {
	distinct := sortedDesc[:0:0]
	seen := make(map[int]bool)
	for _, r := range sortedDesc {
		if !seen[r] {
			seen[r] = true
			distinct = append(distinct, r)
		}
	}
	if len(distinct) != 5 {
		return 0, false
	}
	if distinct[0]-distinct[4] == 4 {
		return distinct[0], true
	}
	// Wheel: A,5,4,3,2
	if distinct[0] == 14 && distinct[1] == 5 && distinct[4] == 2 {
		return 5, true
	}
	return 0, false
}

// BestFiveOfSeven enumerates all 21 five-card combinations and keeps the
// lexicographically greatest (category, kickers...) rank.
func BestFiveOfSeven(cards []Card) HandRank {
	if len(cards) == 5 {
		return Evaluate5(cards)
	}
	var best HandRank
	first := true
	n := len(cards)
	pick := make([]Card, 0, 5)
	var choose func(start, need int)
	choose = func(start, need int) {
		if need == 0 {
			rank := Evaluate5(pick)
			if first || rank.Compare(best) > 0 {
				best = rank
				first = false
			}
			return
		}
		for i := start; i <= n-need; i++ {
			pick = append(pick, cards[i])
			choose(i+1, need-1)
			pick = pick[:len(pick)-1]
		}
	}
	choose(0, 5)
	return best
}
