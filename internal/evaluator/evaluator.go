// Package evaluator ranks five-to-seven card Texas Hold'em hands.
//
// Evaluation is exhaustive: every 5-card combination of the input is
// categorized and the best one wins. The result keeps the tiebreaker
// vector and the winning five cards so callers can compare hands across
// players and report what actually won.
package evaluator

import (
	"fmt"
	"sort"

	"github.com/lox/holdemd/internal/deck"
)

// Category is a poker hand category, ascending in strength.
type Category int

const (
	HighCard Category = iota
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

// String returns the display name of the category
func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case Pair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	case RoyalFlush:
		return "Royal Flush"
	default:
		return "Unknown"
	}
}

// Result is the evaluation of a hand: its category, a tiebreaker vector
// ordered most-significant first, and the best five cards.
type Result struct {
	Category    Category
	Tiebreakers [5]int
	Best        []deck.Card
}

// Compare returns 1 if r beats other, -1 if other beats r, 0 on a tie.
func (r Result) Compare(other Result) int {
	if r.Category != other.Category {
		if r.Category > other.Category {
			return 1
		}
		return -1
	}
	for i := range r.Tiebreakers {
		if r.Tiebreakers[i] != other.Tiebreakers[i] {
			if r.Tiebreakers[i] > other.Tiebreakers[i] {
				return 1
			}
			return -1
		}
	}
	return 0
}

// Evaluate returns the best five-card hand from five to seven cards.
func Evaluate(cards []deck.Card) (Result, error) {
	if len(cards) < 5 || len(cards) > 7 {
		return Result{}, fmt.Errorf("evaluator: need 5-7 cards, got %d", len(cards))
	}
	seen := make(map[deck.Card]bool, len(cards))
	for _, c := range cards {
		if seen[c] {
			return Result{}, fmt.Errorf("evaluator: duplicate card %s", c)
		}
		seen[c] = true
	}

	best := Result{Category: -1}
	combination := make([]deck.Card, 5)
	var recurse func(start, depth int)
	recurse = func(start, depth int) {
		if depth == 5 {
			r := rankFive(combination)
			if best.Category < 0 || r.Compare(best) > 0 {
				best = r
			}
			return
		}
		for i := start; i <= len(cards)-(5-depth); i++ {
			combination[depth] = cards[i]
			recurse(i+1, depth+1)
		}
	}
	recurse(0, 0)
	return best, nil
}

// rankFive categorizes exactly five cards.
func rankFive(cards []deck.Card) Result {
	sorted := make([]deck.Card, 5)
	copy(sorted, cards)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Value() > sorted[j].Value() })

	flush := true
	for _, c := range sorted[1:] {
		if c.Suit != sorted[0].Suit {
			flush = false
			break
		}
	}

	straightHigh, straight := straightHighCard(sorted)

	// Rank multiplicities, e.g. quads, trips, pairs.
	counts := make(map[int]int, 5)
	for _, c := range sorted {
		counts[c.Value()]++
	}

	// Group values by count, descending count then descending value.
	type group struct{ value, count int }
	groups := make([]group, 0, len(counts))
	for v, n := range counts {
		groups = append(groups, group{value: v, count: n})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].value > groups[j].value
	})

	result := Result{Best: sorted}

	switch {
	case flush && straight && straightHigh == int(deck.Ace):
		result.Category = RoyalFlush
		result.Tiebreakers = [5]int{straightHigh}
	case flush && straight:
		result.Category = StraightFlush
		result.Tiebreakers = [5]int{straightHigh}
	case groups[0].count == 4:
		result.Category = FourOfAKind
		result.Tiebreakers = [5]int{groups[0].value, groups[1].value}
	case groups[0].count == 3 && groups[1].count == 2:
		result.Category = FullHouse
		result.Tiebreakers = [5]int{groups[0].value, groups[1].value}
	case flush:
		result.Category = Flush
		result.Tiebreakers = kickerVector(sorted)
	case straight:
		result.Category = Straight
		result.Tiebreakers = [5]int{straightHigh}
	case groups[0].count == 3:
		result.Category = ThreeOfAKind
		result.Tiebreakers = [5]int{groups[0].value, groups[1].value, groups[2].value}
	case groups[0].count == 2 && groups[1].count == 2:
		result.Category = TwoPair
		result.Tiebreakers = [5]int{groups[0].value, groups[1].value, groups[2].value}
	case groups[0].count == 2:
		result.Category = Pair
		result.Tiebreakers = [5]int{groups[0].value, groups[1].value, groups[2].value, groups[3].value}
	default:
		result.Category = HighCard
		result.Tiebreakers = kickerVector(sorted)
	}

	if straight && straightHigh == 5 {
		// Reorder the wheel so the five leads and the ace trails.
		wheel := make([]deck.Card, 0, 5)
		for _, c := range sorted[1:] {
			wheel = append(wheel, c)
		}
		wheel = append(wheel, sorted[0])
		result.Best = wheel
	}

	return result
}

// straightHighCard reports whether the five descending-sorted cards form a
// straight and the value of its high card. The wheel (A-5-4-3-2) ranks as
// a five-high straight.
func straightHighCard(sorted []deck.Card) (int, bool) {
	consecutive := true
	for i := 1; i < 5; i++ {
		if sorted[i-1].Value() != sorted[i].Value()+1 {
			consecutive = false
			break
		}
	}
	if consecutive {
		return sorted[0].Value(), true
	}

	// Wheel: A,5,4,3,2 sorts as 14,5,4,3,2.
	if sorted[0].Value() == int(deck.Ace) &&
		sorted[1].Value() == 5 && sorted[2].Value() == 4 &&
		sorted[3].Value() == 3 && sorted[4].Value() == 2 {
		return 5, true
	}
	return 0, false
}

func kickerVector(sorted []deck.Card) [5]int {
	var tb [5]int
	for i, c := range sorted {
		tb[i] = c.Value()
	}
	return tb
}
