package blot

import (
	"sort"

	"github.com/wfunc/cardroom/cards"
	"github.com/wfunc/cardroom/game"
)

type CombinationKind string

const (
	Tierce      CombinationKind = "tierce"
	Fifty       CombinationKind = "fifty"
	Hundred     CombinationKind = "hundred"
	FourOfAKind CombinationKind = "four_of_a_kind"
	Belote      CombinationKind = "belote"
)

// class orders non-belote combinations.
var class = map[CombinationKind]int{
	Tierce:      1,
	Fifty:       2,
	Hundred:     3,
	FourOfAKind: 4,
}

var fourPoints = [cards.Ace + 1]int{
	cards.Jack:  200,
	cards.Nine:  150,
	cards.Ace:   100,
	cards.Ten:   100,
	cards.King:  100,
	cards.Queen: 100,
}

// Combination is an announced set of cards.
type Combination struct {
	Kind   CombinationKind `json:"kind"`
	Points int             `json:"points"`
	High   cards.Rank      `json:"high"`
	Suit   cards.Suit      `json:"suit"`
	Cards  []cards.Card    `json:"cards"`
}

// ClassifyCombination identifies the combination formed by cs under trump.
func ClassifyCombination(cs []cards.Card, trump cards.Suit) (Combination, error) {
	if len(cs) < 2 {
		return Combination{}, game.Errorf(game.KindIllegalMove, "a combination needs at least two cards")
	}
	sorted := append([]cards.Card(nil), cs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return Combination{}, game.Errorf(game.KindIllegalMove, "duplicate card %s", sorted[i].Code())
		}
	}

	if len(sorted) == 2 {
		if sorted[0] == cards.New(cards.Queen, trump) && sorted[1] == cards.New(cards.King, trump) {
			return Combination{Kind: Belote, Points: 20, High: cards.King, Suit: trump, Cards: sorted}, nil
		}
		return Combination{}, game.Errorf(game.KindIllegalMove, "only king and queen of trump form a belote")
	}

	if len(sorted) == 4 && sorted[0].Rank == sorted[3].Rank {
		r := sorted[0].Rank
		if fourPoints[r] == 0 {
			return Combination{}, game.Errorf(game.KindIllegalMove, "four %ss do not score", r)
		}
		return Combination{Kind: FourOfAKind, Points: fourPoints[r], High: r, Cards: sorted}, nil
	}

	suit := sorted[0].Suit
	for i, c := range sorted {
		if c.Suit != suit {
			return Combination{}, game.Errorf(game.KindIllegalMove, "sequence mixes suits")
		}
		if i > 0 && c.Rank != sorted[i-1].Rank+1 {
			return Combination{}, game.Errorf(game.KindIllegalMove, "cards are not consecutive")
		}
	}
	comb := Combination{High: sorted[len(sorted)-1].Rank, Suit: suit, Cards: sorted}
	switch len(sorted) {
	case 3:
		comb.Kind, comb.Points = Tierce, 20
	case 4:
		comb.Kind, comb.Points = Fifty, 50
	default:
		comb.Kind, comb.Points = Hundred, 100
	}
	return comb, nil
}

// CompareCombinations orders two non-belote combinations by class, points,
// high card and finally trump suit. Zero means they are equal.
func CompareCombinations(a, b Combination, trump cards.Suit) int {
	if d := class[a.Kind] - class[b.Kind]; d != 0 {
		return sign(d)
	}
	if d := a.Points - b.Points; d != 0 {
		return sign(d)
	}
	if d := int(a.High) - int(b.High); d != 0 {
		return sign(d)
	}
	at := a.Kind != FourOfAKind && a.Suit == trump
	bt := b.Kind != FourOfAKind && b.Suit == trump
	switch {
	case at && !bt:
		return 1
	case bt && !at:
		return -1
	}
	return 0
}

func sign(d int) int {
	switch {
	case d > 0:
		return 1
	case d < 0:
		return -1
	}
	return 0
}

// overlaps reports whether two combinations of the same family share a card.
// A card may serve in one sequence and in a four of a kind, but not in two
// sequences.
func overlaps(a, b Combination) bool {
	if family(a.Kind) != family(b.Kind) {
		return false
	}
	for _, c := range a.Cards {
		if cards.Contains(b.Cards, c) {
			return true
		}
	}
	return false
}

func family(k CombinationKind) string {
	switch k {
	case Tierce, Fifty, Hundred:
		return "sequence"
	}
	return string(k)
}
