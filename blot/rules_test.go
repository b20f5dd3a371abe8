package blot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/cardroom/cards"
	"github.com/wfunc/cardroom/game"
)

func plays(codes ...string) []Play {
	out := make([]Play, len(codes))
	for i, c := range codes {
		card, err := cards.Parse(c)
		if err != nil {
			panic(err)
		}
		out[i] = Play{Seat: i, Card: card}
	}
	return out
}

func TestCardPoints_DeckTotals(t *testing.T) {
	for _, trump := range cards.Suits {
		sum := 0
		for _, c := range cards.BlotDeck() {
			sum += CardPoints(c, trump)
		}
		assert.Equal(t, 152, sum, "trump %s", trump)
	}
	assert.Equal(t, 20, CardPoints(cards.New(cards.Jack, cards.Spades), cards.Spades))
	assert.Equal(t, 2, CardPoints(cards.New(cards.Jack, cards.Hearts), cards.Spades))
	assert.Equal(t, 14, CardPoints(cards.New(cards.Nine, cards.Spades), cards.Spades))
	assert.Equal(t, 0, CardPoints(cards.New(cards.Nine, cards.Hearts), cards.Spades))
}

func TestTrickWinner(t *testing.T) {
	tests := []struct {
		name  string
		trick []Play
		want  int
	}{
		{"highest of led suit", plays("Th", "Ah", "Kh"), 1},
		{"ten beats king", plays("Kh", "Th"), 1},
		{"discard never wins", plays("7h", "Ad", "Ac"), 0},
		{"trump beats led suit", plays("Ah", "7s"), 1},
		{"jack is the top trump", plays("9s", "Js", "As"), 1},
		{"nine beats ace in trump", plays("As", "9s"), 1},
		{"plain jack is low", plays("Jh", "9h", "Qh"), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrickWinner(tt.trick, cards.Spades))
		})
	}
	assert.Equal(t, -1, TrickWinner(nil, cards.Spades))
}

func TestLegalCards(t *testing.T) {
	tests := []struct {
		name    string
		hand    string
		trick   []Play
		partner bool
		want    string
	}{
		{"lead anything", "Ah 7s Kd", nil, false, "Ah 7s Kd"},
		{"must follow suit", "Ah 7s Kd", plays("Qh"), false, "Ah"},
		{"trump led must head it", "Js 8s Ah", plays("9s"), false, "Js"},
		{"trump led cannot head", "8s 7s Ah", plays("9s"), false, "8s 7s"},
		{"void must trump", "7s Kd", plays("Ah"), false, "7s"},
		{"void with partner winning", "7s Kd", plays("Ah", "Kh"), true, "7s Kd"},
		{"must overtrump opponent", "Js 7s Kd", plays("Ah", "9s"), false, "Js"},
		{"must still trump under", "7s Kd", plays("Ah", "9s"), false, "7s"},
		{"void without trump", "Kd 7c", plays("Ah"), false, "Kd 7c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LegalCards(cards.MustParseList(tt.hand), tt.trick, cards.Spades, tt.partner)
			assert.Equal(t, cards.MustParseList(tt.want), got)
		})
	}
}

func TestClassifyCombination(t *testing.T) {
	tests := []struct {
		hand   string
		kind   CombinationKind
		points int
		high   cards.Rank
	}{
		{"7h 8h 9h", Tierce, 20, cards.Nine},
		{"Jd Qd Kd Ad", Fifty, 50, cards.Ace},
		{"9c Tc Jc Qc Kc", Hundred, 100, cards.King},
		{"7c 8c 9c Tc Jc Qc", Hundred, 100, cards.Queen},
		{"Jc Jd Jh Js", FourOfAKind, 200, cards.Jack},
		{"9c 9d 9h 9s", FourOfAKind, 150, cards.Nine},
		{"Ac Ad Ah As", FourOfAKind, 100, cards.Ace},
		{"Ks Qs", Belote, 20, cards.King},
	}
	for _, tt := range tests {
		t.Run(tt.hand, func(t *testing.T) {
			c, err := ClassifyCombination(cards.MustParseList(tt.hand), cards.Spades)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, c.Kind)
			assert.Equal(t, tt.points, c.Points)
			assert.Equal(t, tt.high, c.High)
		})
	}

	for _, bad := range []string{"7c 7d 7h 7s", "8c 8d 8h 8s", "Kh Qh", "7h 8h Th", "7h 8d 9h", "7h", "7h 8h 8h"} {
		_, err := ClassifyCombination(cards.MustParseList(bad), cards.Spades)
		assert.ErrorIs(t, err, game.ErrIllegalMove, bad)
	}
}

func TestCompareCombinations(t *testing.T) {
	mk := func(hand string) Combination {
		c, err := ClassifyCombination(cards.MustParseList(hand), cards.Spades)
		require.NoError(t, err)
		return c
	}
	assert.Equal(t, 1, CompareCombinations(mk("7h 8h 9h Th"), mk("Qd Kd Ad"), cards.Spades))
	assert.Equal(t, 1, CompareCombinations(mk("Qd Kd Ad"), mk("7h 8h 9h"), cards.Spades))
	assert.Equal(t, 1, CompareCombinations(mk("7s 8s 9s"), mk("7h 8h 9h"), cards.Spades), "trump wins a tie")
	assert.Equal(t, 0, CompareCombinations(mk("7d 8d 9d"), mk("7h 8h 9h"), cards.Spades))
	assert.Equal(t, 1, CompareCombinations(mk("Jc Jd Jh Js"), mk("9c 9d 9h 9s"), cards.Spades))
	assert.Equal(t, -1, CompareCombinations(mk("9c Tc Jc Qc Kc"), mk("Ac Ad Ah As"), cards.Spades))
}
