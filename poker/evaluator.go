// Package poker implements Texas Hold'em: hand evaluation, pot building and
// the per-hand betting engine.
package poker

import (
	"fmt"
	"sort"

	"github.com/wfunc/cardroom/cards"
	"github.com/wfunc/cardroom/game"
)

// HandRank is the category of a five-card hand, HighCard lowest.
type HandRank uint8

const (
	HighCard HandRank = iota + 1
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

var handNames = [...]string{
	HighCard:      "High Card",
	OnePair:       "One Pair",
	TwoPair:       "Two Pair",
	ThreeOfAKind:  "Three of a Kind",
	Straight:      "Straight",
	Flush:         "Flush",
	FullHouse:     "Full House",
	FourOfAKind:   "Four of a Kind",
	StraightFlush: "Straight Flush",
	RoyalFlush:    "Royal Flush",
}

func (r HandRank) String() string {
	if r < HighCard || r > RoyalFlush {
		return "Unknown"
	}
	return handNames[r]
}

// Result is the best five-card hand found in a seven-card set.
type Result struct {
	Rank     HandRank     `json:"rank"`
	Name     string       `json:"name"`
	BestFive []cards.Card `json:"best_five"`
	// Kickers is the tie-break sequence, most significant first.
	Kickers []cards.Rank `json:"kickers"`
}

// Compare orders two results by rank and then kicker sequence. It returns
// 1 if a wins, -1 if b wins and 0 on a tie.
func Compare(a, b Result) int {
	if a.Rank != b.Rank {
		if a.Rank > b.Rank {
			return 1
		}
		return -1
	}
	for i := 0; i < len(a.Kickers) && i < len(b.Kickers); i++ {
		if a.Kickers[i] != b.Kickers[i] {
			if a.Kickers[i] > b.Kickers[i] {
				return 1
			}
			return -1
		}
	}
	return 0
}

// subsets lists the 21 ways of choosing five of seven positions, as the two
// positions left out.
var subsets = func() [21][2]int {
	var out [21][2]int
	n := 0
	for i := 0; i < 7; i++ {
		for j := i + 1; j < 7; j++ {
			out[n] = [2]int{i, j}
			n++
		}
	}
	return out
}()

// Evaluate returns the best five-card hand among exactly seven distinct cards.
// The input order does not affect the result.
func Evaluate(cs []cards.Card) (Result, error) {
	if len(cs) != 7 {
		return Result{}, game.Errorf(game.KindInvalidHandSize, "need 7 cards, got %d", len(cs))
	}
	var seven [7]cards.Card
	seen := make(map[cards.Card]bool, 7)
	for i, c := range cs {
		if !c.Valid() {
			return Result{}, game.Errorf(game.KindInvalidHandSize, "invalid card %v", c)
		}
		if seen[c] {
			return Result{}, game.Errorf(game.KindInvalidHandSize, "duplicate card %s", c.Code())
		}
		seen[c] = true
		seven[i] = c
	}
	sort.Slice(seven[:], func(i, j int) bool { return canonicalLess(seven[i], seven[j]) })

	var best Result
	for n, skip := range subsets {
		var five [5]cards.Card
		k := 0
		for i, c := range seven {
			if i != skip[0] && i != skip[1] {
				five[k] = c
				k++
			}
		}
		r := evaluateFive(five)
		if n == 0 || Compare(r, best) > 0 {
			best = r
		}
	}
	return best, nil
}

// MustEvaluate is Evaluate for fixtures.
func MustEvaluate(cs []cards.Card) Result {
	r, err := Evaluate(cs)
	if err != nil {
		panic(fmt.Sprintf("poker: %v", err))
	}
	return r
}

func canonicalLess(a, b cards.Card) bool {
	if a.Rank != b.Rank {
		return a.Rank > b.Rank
	}
	return a.Suit < b.Suit
}

// evaluateFive classifies five cards sorted by descending rank.
func evaluateFive(five [5]cards.Card) Result {
	var counts [cards.Ace + 1]int
	flush := true
	for i, c := range five {
		counts[c.Rank]++
		if i > 0 && c.Suit != five[0].Suit {
			flush = false
		}
	}

	high, straight := straightHigh(five, counts)

	// groups ordered by multiplicity then rank
	type group struct {
		rank  cards.Rank
		count int
	}
	groups := make([]group, 0, 5)
	for r := cards.Ace; r >= cards.Two; r-- {
		if counts[r] > 0 {
			groups = append(groups, group{rank: r, count: counts[r]})
		}
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].count > groups[j].count })

	kickers := make([]cards.Rank, len(groups))
	for i, g := range groups {
		kickers[i] = g.rank
	}

	var rank HandRank
	switch {
	case straight && flush && high == cards.Ace:
		rank, kickers = RoyalFlush, []cards.Rank{high}
	case straight && flush:
		rank, kickers = StraightFlush, []cards.Rank{high}
	case groups[0].count == 4:
		rank = FourOfAKind
	case groups[0].count == 3 && groups[1].count == 2:
		rank = FullHouse
	case flush:
		rank = Flush
	case straight:
		rank, kickers = Straight, []cards.Rank{high}
	case groups[0].count == 3:
		rank = ThreeOfAKind
	case groups[0].count == 2 && groups[1].count == 2:
		rank = TwoPair
	case groups[0].count == 2:
		rank = OnePair
	default:
		rank = HighCard
	}

	return Result{
		Rank:     rank,
		Name:     rank.String(),
		BestFive: orderBestFive(five, counts, straight && high == cards.Five),
		Kickers:  kickers,
	}
}

// straightHigh reports the top card of a straight, with the wheel
// A-2-3-4-5 topped by the five.
func straightHigh(five [5]cards.Card, counts [cards.Ace + 1]int) (cards.Rank, bool) {
	for _, n := range counts {
		if n > 1 {
			return 0, false
		}
	}
	top, bottom := five[0].Rank, five[4].Rank
	if top-bottom == 4 {
		return top, true
	}
	if top == cards.Ace && five[1].Rank == cards.Five && bottom == cards.Two {
		return cards.Five, true
	}
	return 0, false
}

// orderBestFive puts the most significant cards first: larger groups before
// smaller ones, the wheel ace last.
func orderBestFive(five [5]cards.Card, counts [cards.Ace + 1]int, wheel bool) []cards.Card {
	out := append([]cards.Card(nil), five[:]...)
	if wheel {
		return append(out[1:], out[0])
	}
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := counts[out[i].Rank], counts[out[j].Rank]
		if ci != cj {
			return ci > cj
		}
		return canonicalLess(out[i], out[j])
	})
	return out
}
