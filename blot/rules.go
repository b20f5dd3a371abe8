// Package blot implements the trick-taking game Blot (Belote) for two
// players or two partnerships of two.
package blot

import (
	"github.com/wfunc/cardroom/cards"
)

// Card strength within a suit, higher wins.
var (
	trumpStrength = [cards.Ace + 1]int{
		cards.Jack: 8, cards.Nine: 7, cards.Ace: 6, cards.Ten: 5,
		cards.King: 4, cards.Queen: 3, cards.Eight: 2, cards.Seven: 1,
	}
	plainStrength = [cards.Ace + 1]int{
		cards.Ace: 8, cards.Ten: 7, cards.King: 6, cards.Queen: 5,
		cards.Jack: 4, cards.Nine: 3, cards.Eight: 2, cards.Seven: 1,
	}
	trumpPoints = [cards.Ace + 1]int{
		cards.Jack: 20, cards.Nine: 14, cards.Ace: 11, cards.Ten: 10,
		cards.King: 4, cards.Queen: 3,
	}
	plainPoints = [cards.Ace + 1]int{
		cards.Ace: 11, cards.Ten: 10, cards.King: 4, cards.Queen: 3, cards.Jack: 2,
	}
)

// LastTrickBonus is added to the side taking the final trick.
const LastTrickBonus = 10

// CardPoints is the value of c when trump is the trump suit.
func CardPoints(c cards.Card, trump cards.Suit) int {
	if c.Suit == trump {
		return trumpPoints[c.Rank]
	}
	return plainPoints[c.Rank]
}

func strength(c cards.Card, trump cards.Suit) int {
	if c.Suit == trump {
		return trumpStrength[c.Rank]
	}
	return plainStrength[c.Rank]
}

// Play is one card put on the table by the player at Seat.
type Play struct {
	Seat int        `json:"seat"`
	Card cards.Card `json:"card"`
}

// beats reports whether a takes the trick over b given the led suit.
func beats(a, b cards.Card, led, trump cards.Suit) bool {
	switch {
	case a.Suit == trump && b.Suit != trump:
		return true
	case a.Suit != trump && b.Suit == trump:
		return false
	case a.Suit == b.Suit:
		return strength(a, trump) > strength(b, trump)
	default:
		return a.Suit == led
	}
}

// TrickWinner returns the index in trick of the winning play.
func TrickWinner(trick []Play, trump cards.Suit) int {
	if len(trick) == 0 {
		return -1
	}
	led := trick[0].Card.Suit
	best := 0
	for i := 1; i < len(trick); i++ {
		if beats(trick[i].Card, trick[best].Card, led, trump) {
			best = i
		}
	}
	return best
}

// TrickPoints sums the card points of a trick.
func TrickPoints(trick []Play, trump cards.Suit) int {
	sum := 0
	for _, p := range trick {
		sum += CardPoints(p.Card, trump)
	}
	return sum
}

// LegalCards returns the cards of hand that may be played on trick.
//
// The led suit must be followed. When trump is led the player must head the
// highest trump on the table if able. A player who cannot follow must trump,
// overtrumping an opponent's trump when possible, unless the partner is
// currently winning the trick.
func LegalCards(hand []cards.Card, trick []Play, trump cards.Suit, partnerWinning bool) []cards.Card {
	if len(trick) == 0 {
		return append([]cards.Card(nil), hand...)
	}
	led := trick[0].Card.Suit
	winning := trick[TrickWinner(trick, trump)].Card

	follow := ofSuit(hand, led)
	if led == trump {
		if len(follow) == 0 {
			return append([]cards.Card(nil), hand...)
		}
		if over := higherTrumps(follow, winning, trump); len(over) > 0 {
			return over
		}
		return follow
	}
	if len(follow) > 0 {
		return follow
	}

	trumps := ofSuit(hand, trump)
	if len(trumps) == 0 || partnerWinning {
		return append([]cards.Card(nil), hand...)
	}
	if winning.Suit == trump {
		if over := higherTrumps(trumps, winning, trump); len(over) > 0 {
			return over
		}
	}
	return trumps
}

func ofSuit(hand []cards.Card, s cards.Suit) []cards.Card {
	var out []cards.Card
	for _, c := range hand {
		if c.Suit == s {
			out = append(out, c)
		}
	}
	return out
}

func higherTrumps(hand []cards.Card, than cards.Card, trump cards.Suit) []cards.Card {
	if than.Suit != trump {
		return nil
	}
	var out []cards.Card
	for _, c := range hand {
		if c.Suit == trump && strength(c, trump) > strength(than, trump) {
			out = append(out, c)
		}
	}
	return out
}
