package poker

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/wfunc/cardroom/game"
)

// Contribution is what one player put into the pot this hand.
type Contribution struct {
	PlayerID string
	Seat     int
	Amount   decimal.Decimal
	Folded   bool
}

// Pot is a main or side pot and the players who can win it.
type Pot struct {
	Amount   decimal.Decimal `json:"amount"`
	Eligible []string        `json:"eligible"`
}

// BuildPots splits contributions into a main pot and side pots, one level per
// distinct contribution amount. Folded chips are counted but never eligible.
// Neighbouring levels with the same eligible set are merged.
func BuildPots(contribs []Contribution) []Pot {
	var levels []decimal.Decimal
	for _, c := range contribs {
		if !c.Amount.IsPositive() {
			continue
		}
		dup := false
		for _, l := range levels {
			if l.Equal(c.Amount) {
				dup = true
				break
			}
		}
		if !dup {
			levels = append(levels, c.Amount)
		}
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].LessThan(levels[j]) })

	var pots []Pot
	var carry decimal.Decimal
	prev := decimal.Zero
	for _, level := range levels {
		amount := carry
		var eligible []string
		for _, c := range contribs {
			amount = amount.Add(decimal.Min(c.Amount, level).Sub(decimal.Min(c.Amount, prev)))
			if !c.Folded && c.Amount.GreaterThanOrEqual(level) {
				eligible = append(eligible, c.PlayerID)
			}
		}
		prev = level
		carry = decimal.Zero

		switch {
		case len(eligible) == 0 && len(pots) > 0:
			last := &pots[len(pots)-1]
			last.Amount = last.Amount.Add(amount)
		case len(eligible) == 0:
			carry = amount
		case len(pots) > 0 && sameMembers(pots[len(pots)-1].Eligible, eligible):
			last := &pots[len(pots)-1]
			last.Amount = last.Amount.Add(amount)
		default:
			pots = append(pots, Pot{Amount: amount, Eligible: eligible})
		}
	}
	return pots
}

func sameMembers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// PotResult records how one pot was awarded.
type PotResult struct {
	Amount   decimal.Decimal `json:"amount"`
	Winners  []string        `json:"winners"`
	HandName string          `json:"hand_name,omitempty"`
}

// AwardPots pays every pot to the best eligible result. Ties split evenly and
// the indivisible remainder goes to the first winner in order, which callers
// arrange to start left of the dealer.
func AwardPots(pots []Pot, results map[string]Result, order []string) (map[string]decimal.Decimal, []PotResult) {
	won := make(map[string]decimal.Decimal)
	awarded := make([]PotResult, 0, len(pots))
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}

	for _, pot := range pots {
		var winners []string
		var best Result
		for _, id := range pot.Eligible {
			r, ok := results[id]
			if !ok {
				continue
			}
			switch {
			case len(winners) == 0:
				winners, best = []string{id}, r
			case Compare(r, best) > 0:
				winners, best = []string{id}, r
			case Compare(r, best) == 0:
				winners = append(winners, id)
			}
		}
		if len(winners) == 0 {
			continue
		}
		sort.Slice(winners, func(i, j int) bool { return pos[winners[i]] < pos[winners[j]] })

		share, rem := game.Split(pot.Amount, len(winners))
		for _, id := range winners {
			won[id] = won[id].Add(share)
		}
		won[winners[0]] = won[winners[0]].Add(rem)
		awarded = append(awarded, PotResult{Amount: pot.Amount, Winners: winners, HandName: best.Name})
	}
	return won, awarded
}
