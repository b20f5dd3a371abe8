package poker

import (
	"math/rand/v2"
	"testing"

	hankin "github.com/paulhankin/poker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/cardroom/cards"
	"github.com/wfunc/cardroom/game"
)

func TestEvaluate_Categories(t *testing.T) {
	tests := []struct {
		name    string
		hand    string
		rank    HandRank
		kickers []cards.Rank
	}{
		{"royal flush", "Th Jh Qh Kh Ah 2c 3d", RoyalFlush, []cards.Rank{cards.Ace}},
		{"wheel straight flush", "Ah 2h 3h 4h 5h Kc Qd", StraightFlush, []cards.Rank{cards.Five}},
		{"straight flush", "9s Ts Js Qs Ks 2c 2d", StraightFlush, []cards.Rank{cards.King}},
		{"quads", "9c 9d 9h 9s Kd 2c 3d", FourOfAKind, []cards.Rank{cards.Nine, cards.King}},
		{"full house", "Tc Td Th 4s 4d 2c 3d", FullHouse, []cards.Rank{cards.Ten, cards.Four}},
		{"flush", "2d 7d 9d Jd Kd Ac 3c", Flush, []cards.Rank{cards.King, cards.Jack, cards.Nine, cards.Seven, cards.Two}},
		{"wheel", "Ac 2d 3h 4s 5c 9d Kh", Straight, []cards.Rank{cards.Five}},
		{"broadway", "Tc Jd Qh Ks Ac 2d 3h", Straight, []cards.Rank{cards.Ace}},
		{"trips", "7c 7d 7h As Kd 2c 3d", ThreeOfAKind, []cards.Rank{cards.Seven, cards.Ace, cards.King}},
		{"two pair", "7c 7d 5h 5s Kd Kc 3d", TwoPair, []cards.Rank{cards.King, cards.Seven, cards.Five}},
		{"pair", "Jc Jd 5h 8s Kd 2c 3d", OnePair, []cards.Rank{cards.Jack, cards.King, cards.Eight, cards.Five}},
		{"high card", "Ac Jd 5h 8s Kd 2c 3d", HighCard, []cards.Rank{cards.Ace, cards.King, cards.Jack, cards.Eight, cards.Five}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Evaluate(cards.MustParseList(tt.hand))
			require.NoError(t, err)
			assert.Equal(t, tt.rank, r.Rank)
			assert.Equal(t, tt.rank.String(), r.Name)
			assert.Equal(t, tt.kickers, r.Kickers)
			assert.Len(t, r.BestFive, 5)
		})
	}
}

func TestEvaluate_RoyalFlushBestFive(t *testing.T) {
	r, err := Evaluate(cards.MustParseList("Th Jh Qh Kh Ah 2c 3d"))
	require.NoError(t, err)
	assert.ElementsMatch(t, cards.MustParseList("Th Jh Qh Kh Ah"), r.BestFive)
}

func TestEvaluate_WheelOrdersAceLast(t *testing.T) {
	r, err := Evaluate(cards.MustParseList("Ah 2h 3h 4h 5h Kc Qd"))
	require.NoError(t, err)
	assert.Equal(t, cards.MustParseList("5h 4h 3h 2h Ah"), r.BestFive)
}

func TestEvaluate_InvalidInput(t *testing.T) {
	_, err := Evaluate(cards.MustParseList("Ah Kh Qh Jh Th 9h"))
	assert.ErrorIs(t, err, game.ErrInvalidHandSize)

	_, err = Evaluate(cards.MustParseList("Ah Kh Qh Jh Th 9h Ah"))
	assert.ErrorIs(t, err, game.ErrInvalidHandSize)

	_, err = Evaluate([]cards.Card{{}, {}, {}, {}, {}, {}, {}})
	assert.ErrorIs(t, err, game.ErrInvalidHandSize)
}

func randomSeven(rng *rand.Rand) []cards.Card {
	deck := cards.FullDeck()
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	return deck[:7]
}

func TestEvaluate_DeterministicAcrossOrderings(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 500; i++ {
		hand := randomSeven(rng)
		want, err := Evaluate(hand)
		require.NoError(t, err)

		perm := append([]cards.Card(nil), hand...)
		rng.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
		got, err := Evaluate(perm)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestEvaluate_BestFiveIsMaximalSubset(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 500; i++ {
		hand := randomSeven(rng)
		r, err := Evaluate(hand)
		require.NoError(t, err)

		for _, c := range r.BestFive {
			assert.True(t, cards.Contains(hand, c), "best five card %s not in hand", c)
		}

		var five [5]cards.Card
		copy(five[:], r.BestFive)
		sortFive(&five)
		assert.Equal(t, 0, Compare(evaluateFive(five), r), "best five must score the reported result")

		for _, skip := range subsets {
			var sub [5]cards.Card
			k := 0
			for j, c := range hand {
				if j != skip[0] && j != skip[1] {
					sub[k] = c
					k++
				}
			}
			sortFive(&sub)
			assert.LessOrEqual(t, Compare(evaluateFive(sub), r), 0)
		}
	}
}

func sortFive(five *[5]cards.Card) {
	for i := 1; i < 5; i++ {
		for j := i; j > 0 && canonicalLess(five[j], five[j-1]); j-- {
			five[j], five[j-1] = five[j-1], five[j]
		}
	}
}

func toHankin(t *testing.T, cs []cards.Card) [7]hankin.Card {
	suits := map[cards.Suit]hankin.Suit{
		cards.Clubs:    hankin.Club,
		cards.Diamonds: hankin.Diamond,
		cards.Hearts:   hankin.Heart,
		cards.Spades:   hankin.Spade,
	}
	var out [7]hankin.Card
	for i, c := range cs {
		r := hankin.Rank(c.Rank)
		if c.Rank == cards.Ace {
			r = 1
		}
		hc, err := hankin.MakeCard(suits[c.Suit], r)
		require.NoError(t, err)
		out[i] = hc
	}
	return out
}

// The ordering must agree with an independent evaluator.
func TestCompare_AgreesWithEval7(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	for i := 0; i < 2000; i++ {
		a, b := randomSeven(rng), randomSeven(rng)
		ra, err := Evaluate(a)
		require.NoError(t, err)
		rb, err := Evaluate(b)
		require.NoError(t, err)

		ha, hb := toHankin(t, a), toHankin(t, b)
		sa, sb := hankin.Eval7(&ha), hankin.Eval7(&hb)

		want := 0
		switch {
		case sa > sb:
			want = 1
		case sa < sb:
			want = -1
		}
		require.Equal(t, want, Compare(ra, rb), "%v vs %v", a, b)
	}
}

func TestCompare_Kickers(t *testing.T) {
	a := MustEvaluate(cards.MustParseList("Ac Ad Kh 9s 7d 3c 2d"))
	b := MustEvaluate(cards.MustParseList("Ah As Qh 9c 7h 3d 2s"))
	assert.Equal(t, 1, Compare(a, b))
	assert.Equal(t, -1, Compare(b, a))

	c := MustEvaluate(cards.MustParseList("Ah As Kc 9c 7h 3d 2s"))
	assert.Equal(t, 0, Compare(a, c))
}
