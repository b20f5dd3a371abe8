package blot

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/cardroom/cards"
	"github.com/wfunc/cardroom/game"
)

// stacked deals top to the players in order, eight cards each.
func stacked(t *testing.T, top string) func() *cards.Deck {
	head := cards.MustParseList(top)
	return func() *cards.Deck {
		rest := cards.BlotDeck()
		for _, c := range head {
			rest, _ = cards.Remove(rest, c)
		}
		deck, err := cards.NewDeck(append(append([]cards.Card(nil), head...), rest...))
		require.NoError(t, err)
		return deck
	}
}

func seated(ids ...string) []game.Participant {
	out := make([]game.Participant, len(ids))
	for i, id := range ids {
		out[i] = game.Participant{PlayerID: id, Seat: i, Stack: decimal.NewFromInt(100)}
	}
	return out
}

func pick(player string, s cards.Suit) game.Action {
	return game.Action{Type: game.ActionSelectTrump, PlayerID: player, Suit: &s}
}

func pass(player string) game.Action {
	return game.Action{Type: game.ActionSelectTrump, PlayerID: player, Pass: true}
}

func play(player, code string) game.Action {
	c, err := cards.Parse(code)
	if err != nil {
		panic(err)
	}
	return game.Action{Type: game.ActionPlayCard, PlayerID: player, Card: &c}
}

const headsUpDeal = "7h 8h 9h Ah Ks Qs 7d 8d " + // a
	"Th Jh Qh Kh As Ts 7c 8c" // b

func newHeadsUp(t *testing.T) *Engine {
	e := New(Config{Players: 2, NewDeck: stacked(t, headsUpDeal)})
	require.NoError(t, e.Start(seated("a", "b")))
	return e
}

func TestEngine_TrumpSelection(t *testing.T) {
	e := newHeadsUp(t)
	assert.Equal(t, PhaseTrumpSelection, e.Phase())
	assert.Equal(t, "b", e.CurrentPlayer(), "left of the dealer speaks first")

	assert.ErrorIs(t, e.Apply(pick("a", cards.Spades)), game.ErrIllegalMove)
	assert.ErrorIs(t, e.Apply(play("b", "Th")), game.ErrIllegalMove)

	require.NoError(t, e.Apply(pass("b")))
	require.NoError(t, e.Apply(pick("a", cards.Spades)))
	assert.Equal(t, PhasePlaying, e.Phase())
	assert.Equal(t, cards.Spades, *e.Table().Trump)
	assert.Equal(t, "b", e.CurrentPlayer())
	assert.ErrorIs(t, e.Apply(pick("b", cards.Hearts)), game.ErrIllegalMove, "trump is fixed once play begins")
}

func TestEngine_AllPassRedealsWithNextDealer(t *testing.T) {
	e := newHeadsUp(t)
	require.NoError(t, e.Apply(pass("b")))
	require.NoError(t, e.Apply(pass("a")))

	assert.Equal(t, PhaseTrumpSelection, e.Phase())
	assert.Equal(t, 1, e.Table().Dealer)
	assert.Equal(t, "a", e.CurrentPlayer())
}

func TestEngine_MustFollowSuit(t *testing.T) {
	e := newHeadsUp(t)
	require.NoError(t, e.Apply(pick("b", cards.Spades)))
	require.NoError(t, e.Apply(play("b", "Th")))

	before := e.Table()
	handBefore := e.PrivateView("a").(PrivateView).Hand

	err := e.Apply(play("a", "7d"))
	assert.ErrorIs(t, err, game.ErrIllegalMove)
	assert.Equal(t, before, e.Table(), "trick must not change")
	assert.Equal(t, handBefore, e.PrivateView("a").(PrivateView).Hand)

	require.NoError(t, e.Apply(play("a", "Ah")))
	assert.Equal(t, 1, e.Table().TricksWon[0])
	assert.Equal(t, 21, e.Table().RoundPoints[0])
	assert.Equal(t, "a", e.CurrentPlayer(), "trick winner leads")
	assert.Empty(t, e.Table().Trick)
}

func TestEngine_AnnounceOnlyBeforeFirstCard(t *testing.T) {
	e := newHeadsUp(t)
	announce := func(player, hand string) game.Action {
		return game.Action{Type: game.ActionAnnounce, PlayerID: player, Cards: cards.MustParseList(hand)}
	}
	assert.ErrorIs(t, e.Apply(announce("a", "7h 8h 9h")), game.ErrIllegalMove, "trump not chosen yet")

	require.NoError(t, e.Apply(pick("b", cards.Spades)))
	require.NoError(t, e.Apply(announce("a", "7h 8h 9h")))
	require.NoError(t, e.Apply(announce("a", "Ks Qs")))
	assert.ErrorIs(t, e.Apply(announce("a", "8h 9h Th")), game.ErrIllegalMove, "not in hand")
	assert.ErrorIs(t, e.Apply(announce("a", "7h 8h 9h")), game.ErrIllegalMove, "already announced")
	require.NoError(t, e.Apply(announce("b", "Th Jh Qh Kh")))

	require.NoError(t, e.Apply(play("b", "Th")))
	assert.ErrorIs(t, e.Apply(announce("a", "7d 8d 9d")), game.ErrIllegalMove)
	assert.Len(t, e.Table().Announced, 3)
}

// playOut plays the first legal card for whoever is to act until the hand ends.
func playOut(t *testing.T, e *Engine) {
	for i := 0; !e.IsHandTerminal(); i++ {
		require.Less(t, i, 64)
		p := e.CurrentPlayer()
		legal := e.LegalMoves(p)
		require.NotEmpty(t, legal)
		c := legal[0]
		require.NoError(t, e.Apply(game.Action{Type: game.ActionPlayCard, PlayerID: p, Card: &c}))
	}
}

func TestEngine_FourPlayerHandScoresAllPoints(t *testing.T) {
	seed := uint64(9)
	e := New(Config{Players: 4, NewDeck: func() *cards.Deck { return cards.NewShuffledBlotDeck(&seed) }})
	require.NoError(t, e.Start(seated("a", "b", "c", "d")))
	require.NoError(t, e.Apply(pick("b", cards.Hearts)))
	playOut(t, e)

	score := e.HandOutcome().Summary.(HandScore)
	assert.Equal(t, 162, score.CardPoints[0]+score.CardPoints[1])
	assert.Equal(t, 8, score.TricksWon[0]+score.TricksWon[1])
	assert.Equal(t, score.Total, score.MatchScores)
	assert.Equal(t, "", e.CurrentPlayer())
}

func TestEngine_HeadsUpHandCountsDealtCards(t *testing.T) {
	e := newHeadsUp(t)
	require.NoError(t, e.Apply(pick("b", cards.Spades)))
	playOut(t, e)

	want := LastTrickBonus
	for _, c := range cards.MustParseList(headsUpDeal) {
		want += CardPoints(c, cards.Spades)
	}
	score := e.HandOutcome().Summary.(HandScore)
	assert.Equal(t, want, score.CardPoints[0]+score.CardPoints[1])
}

func TestEngine_CombinationScoring(t *testing.T) {
	tierce := func(hand string) Combination {
		c, err := ClassifyCombination(cards.MustParseList(hand), cards.Spades)
		require.NoError(t, err)
		return c
	}
	belote := tierce("Ks Qs")

	tests := []struct {
		name      string
		announced []Announcement
		tricks    [2]int
		combos    [2]int
		belote    [2]int
		side      int
	}{
		{
			name: "higher class wins",
			announced: []Announcement{
				{Position: 0, Combination: tierce("7h 8h 9h Th")},
				{Position: 1, Combination: tierce("Qd Kd Ad")},
			},
			tricks: [2]int{3, 5},
			combos: [2]int{50, 0},
			side:   0,
		},
		{
			name: "exact tie goes to earlier position",
			announced: []Announcement{
				{Position: 0, Combination: tierce("7h 8h 9h")},
				{Position: 1, Combination: tierce("7d 8d 9d")},
			},
			tricks: [2]int{4, 4},
			combos: [2]int{0, 20},
			side:   1,
		},
		{
			name: "winning side also scores its lesser combinations",
			announced: []Announcement{
				{Position: 0, Combination: tierce("Jc Jd Jh Js")},
				{Position: 0, Combination: tierce("7h 8h 9h")},
				{Position: 1, Combination: tierce("Tc Jc Qc Kc Ac")},
			},
			tricks: [2]int{2, 6},
			combos: [2]int{220, 0},
			side:   0,
		},
		{
			name: "no trick no combinations",
			announced: []Announcement{
				{Position: 0, Combination: tierce("7h 8h 9h Th")},
				{Position: 0, Combination: belote},
			},
			tricks: [2]int{0, 8},
			side:   -1,
		},
		{
			name: "belote always counts for its holder",
			announced: []Announcement{
				{Position: 0, Combination: tierce("7h 8h 9h Th")},
				{Position: 1, Combination: belote},
			},
			tricks: [2]int{1, 7},
			combos: [2]int{50, 0},
			belote: [2]int{0, 20},
			side:   0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trump := cards.Spades
			e := New(Config{Players: 2})
			e.s.Started = true
			e.s.Players = []string{"a", "b"}
			e.s.Phase = PhasePlaying
			e.s.Table = TrickState{Trump: &trump, Dealer: 0, Announced: tt.announced, TricksWon: tt.tricks}
			e.scoreHand()

			score := *e.s.LastHand
			assert.Equal(t, tt.combos, score.Combinations)
			assert.Equal(t, tt.belote, score.Belote)
			assert.Equal(t, tt.side, score.CombinationSide)
			assert.True(t, e.IsHandTerminal())
		})
	}
}

func TestEngine_MatchEndsAtTarget(t *testing.T) {
	e := New(Config{Players: 2, Target: 100, NewDeck: stacked(t, headsUpDeal)})
	ps := seated("a", "b")
	for hand := 0; !e.IsMatchOver(nil); hand++ {
		require.Less(t, hand, 20)
		require.NoError(t, e.Start(ps))
		require.NoError(t, e.Apply(pick(e.CurrentPlayer(), cards.Spades)))
		playOut(t, e)
	}

	m := e.Table().MatchScores
	side := e.WinnerSide()
	require.Contains(t, []int{0, 1}, side)
	assert.GreaterOrEqual(t, m[side], 100)
	assert.Greater(t, m[side], m[1-side])
	assert.ErrorIs(t, e.Start(ps), game.ErrIllegalMove)
}

func TestEngine_TiedMatchPlaysOn(t *testing.T) {
	trump := cards.Spades
	e := New(Config{Players: 2, Target: 50})
	e.s.Started = true
	e.s.Players = []string{"a", "b"}
	e.s.Table = TrickState{Trump: &trump, RoundPoints: [2]int{60, 60}, TricksWon: [2]int{4, 4}}
	e.scoreHand()
	assert.False(t, e.IsMatchOver(nil))
	assert.Equal(t, -1, e.WinnerSide())
}

func TestEngine_MatchPayout(t *testing.T) {
	hundred := decimal.NewFromInt(100)
	stacks := map[string]decimal.Decimal{"a": hundred, "b": hundred, "c": hundred, "d": decimal.RequireFromString("0.00000001")}

	e := New(Config{Players: 4})
	e.s.Players = []string{"a", "b", "c", "d"}
	e.s.Table.Dealer = 1
	e.s.MatchOver = true
	e.s.WinnerSide = 0

	out := e.MatchPayout(stacks)
	// left of dealer b is c, so c collects the odd unit
	assert.True(t, out["c"].Equal(decimal.RequireFromString("150.00000001")), out["c"].String())
	assert.True(t, out["a"].Equal(decimal.NewFromInt(150)))
	assert.True(t, out["b"].IsZero())
	assert.True(t, out["d"].IsZero())
}

func TestEngine_ViewsHideHands(t *testing.T) {
	e := newHeadsUp(t)
	require.NoError(t, e.Apply(pick("b", cards.Spades)))

	pub, err := json.Marshal(e.PublicView())
	require.NoError(t, err)
	assert.NotContains(t, string(pub), `"Ah"`)
	assert.Contains(t, string(pub), `"hand_sizes"`)

	priv := e.PrivateView("b").(PrivateView)
	assert.Len(t, priv.Hand, 8)
	assert.NotEmpty(t, priv.Legal)
	assert.Empty(t, e.PrivateView("a").(PrivateView).Legal)
}

func TestEngine_MarshalRestore(t *testing.T) {
	e := newHeadsUp(t)
	require.NoError(t, e.Apply(pick("b", cards.Spades)))
	require.NoError(t, e.Apply(play("b", "Th")))

	data, err := e.Marshal()
	require.NoError(t, err)
	restored := New(Config{Players: 2})
	require.NoError(t, restored.Restore(data))

	assert.Equal(t, e.Table(), restored.Table())
	assert.Equal(t, e.LegalMoves("a"), restored.LegalMoves("a"))
	require.NoError(t, restored.Apply(play("a", "Ah")))
}
