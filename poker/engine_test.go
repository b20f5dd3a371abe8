package poker

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/cardroom/cards"
	"github.com/wfunc/cardroom/game"
)

// stackedDeck puts the given cards on top of an otherwise ordered deck.
func stackedDeck(t *testing.T, top string) func() *cards.Deck {
	head := cards.MustParseList(top)
	return func() *cards.Deck {
		rest := cards.FullDeck()
		for _, c := range head {
			rest, _ = cards.Remove(rest, c)
		}
		deck, err := cards.NewDeck(append(append([]cards.Card(nil), head...), rest...))
		require.NoError(t, err)
		return deck
	}
}

func newTable(t *testing.T, top string) *Engine {
	return New(Config{BigBlind: d("2"), NewDeck: stackedDeck(t, top)})
}

func participants(stacks ...string) []game.Participant {
	ids := []string{"a", "b", "c", "d"}
	out := make([]game.Participant, len(stacks))
	for i, s := range stacks {
		out[i] = game.Participant{PlayerID: ids[i], Seat: i, Stack: d(s)}
	}
	return out
}

func act(typ game.ActionType, player string) game.Action {
	return game.Action{Type: typ, PlayerID: player}
}

func raise(player, to string) game.Action {
	return game.Action{Type: game.ActionRaise, PlayerID: player, Amount: d(to)}
}

func TestEngine_HeadsUpBlindsAndOrder(t *testing.T) {
	e := newTable(t, "")
	require.NoError(t, e.Start(participants("100", "100")))

	h := e.Hand()
	assert.Equal(t, PhasePreflop, h.Phase)
	assert.Equal(t, 0, h.Dealer)
	assert.True(t, h.Players[0].Bet.Equal(d("1")), "dealer posts the small blind heads-up")
	assert.True(t, h.Players[1].Bet.Equal(d("2")))
	assert.Equal(t, "a", e.CurrentPlayer(), "dealer acts first preflop heads-up")
	for _, p := range h.Players {
		assert.Len(t, p.Hole, 2)
	}
}

func TestEngine_AllInShowdown(t *testing.T) {
	// b: 7c 2d, a: Ah As, board Kd Qh 9c Jd 8h
	e := newTable(t, "7c Ah 2d As 3s Kd Qh 9c 4s Jd 5c 8h")
	require.NoError(t, e.Start(participants("100", "100")))

	require.NoError(t, e.Apply(act(game.ActionAllIn, "a")))
	assert.Equal(t, "b", e.CurrentPlayer())
	require.NoError(t, e.Apply(act(game.ActionCall, "b")))

	require.True(t, e.IsHandTerminal())
	out := e.HandOutcome()
	assert.Equal(t, int64(1), out.HandSeq)
	assert.Equal(t, []string{"a"}, out.Winners)
	assert.True(t, out.Stacks["a"].Equal(d("200")))
	assert.True(t, out.Stacks["b"].IsZero())
	assert.Len(t, e.Hand().Board, 5)
	assert.True(t, e.IsMatchOver(out.Stacks))
}

func TestEngine_FoldAwardsPot(t *testing.T) {
	e := newTable(t, "")
	require.NoError(t, e.Start(participants("100", "100")))

	require.NoError(t, e.Apply(raise("a", "6")))
	require.NoError(t, e.Apply(act(game.ActionFold, "b")))

	require.True(t, e.IsHandTerminal())
	out := e.HandOutcome()
	assert.True(t, out.Stacks["a"].Equal(d("102")))
	assert.True(t, out.Stacks["b"].Equal(d("98")))
	assert.False(t, e.IsMatchOver(out.Stacks))
}

func TestEngine_RejectedActionsDoNotMutate(t *testing.T) {
	e := newTable(t, "")
	require.NoError(t, e.Start(participants("100", "100")))
	before, err := e.Marshal()
	require.NoError(t, err)

	cases := []game.Action{
		act(game.ActionCheck, "b"),
		act(game.ActionCheck, "a"),
		raise("a", "3"),
		raise("a", "500"),
		act(game.ActionPlayCard, "a"),
	}
	for _, a := range cases {
		err := e.Apply(a)
		assert.ErrorIs(t, err, game.ErrIllegalMove, "%+v", a)
		after, _ := e.Marshal()
		assert.JSONEq(t, string(before), string(after))
	}
}

func TestEngine_BettingRoundsAdvance(t *testing.T) {
	e := newTable(t, "")
	require.NoError(t, e.Start(participants("100", "100", "100")))

	// dealer a, sb b, bb c; a is first to act
	assert.Equal(t, "a", e.CurrentPlayer())
	require.NoError(t, e.Apply(act(game.ActionCall, "a")))
	require.NoError(t, e.Apply(act(game.ActionCall, "b")))
	assert.Equal(t, "c", e.CurrentPlayer(), "big blind keeps the option")
	require.NoError(t, e.Apply(act(game.ActionCheck, "c")))

	assert.Equal(t, PhaseFlop, e.Hand().Phase)
	assert.Len(t, e.Hand().Board, 3)
	assert.Equal(t, "b", e.CurrentPlayer())

	require.NoError(t, e.Apply(raise("b", "4")))
	require.NoError(t, e.Apply(raise("c", "10")))
	assert.ErrorIs(t, e.Apply(raise("a", "12")), game.ErrIllegalMove, "re-raise must be at least the last raise")
	require.NoError(t, e.Apply(act(game.ActionFold, "a")))
	require.NoError(t, e.Apply(act(game.ActionCall, "b")))
	assert.Equal(t, PhaseTurn, e.Hand().Phase)
	assert.Len(t, e.Hand().Board, 4)
}

func TestEngine_ThreeWaySidePot(t *testing.T) {
	// deal order b c a b c a, then burn/flop/burn/turn/burn/river
	e := newTable(t, "Kc Qc Ac Kd Qd Ad 2h 3s 7h 9d 2c Jh 2d 4c")
	require.NoError(t, e.Start(participants("50", "100", "100")))

	require.NoError(t, e.Apply(act(game.ActionAllIn, "a")))
	require.NoError(t, e.Apply(act(game.ActionCall, "b")))
	require.NoError(t, e.Apply(act(game.ActionCall, "c")))

	require.Equal(t, PhaseFlop, e.Hand().Phase)
	require.Equal(t, "b", e.CurrentPlayer())
	require.NoError(t, e.Apply(raise("b", "50")))
	require.NoError(t, e.Apply(act(game.ActionCall, "c")))
	require.True(t, e.IsHandTerminal(), "board runs out once nobody can bet")

	out := e.HandOutcome()
	assert.True(t, out.Stacks["a"].Equal(d("150")))
	assert.True(t, out.Stacks["b"].Equal(d("100")))
	assert.True(t, out.Stacks["c"].IsZero())
	assert.Equal(t, []string{"a", "b"}, out.Winners)
	assert.Len(t, e.Hand().Board, 5)
}

func TestEngine_ChipsAreConserved(t *testing.T) {
	e := New(Config{BigBlind: d("2")})
	ps := participants("40", "75.5", "120", "9")
	start := decimal.Zero
	for _, p := range ps {
		start = start.Add(p.Stack)
	}
	require.NoError(t, e.Start(ps))

	moves := []game.ActionType{game.ActionCall, game.ActionCheck, game.ActionAllIn, game.ActionFold}
	for i := 0; !e.IsHandTerminal(); i++ {
		require.Less(t, i, 200)
		player := e.CurrentPlayer()
		for _, m := range moves {
			if e.Apply(act(m, player)) == nil {
				break
			}
		}
	}
	total := decimal.Zero
	for _, s := range e.HandOutcome().Stacks {
		total = total.Add(s)
	}
	assert.True(t, start.Equal(total), "start %s end %s", start, total)
}

func TestEngine_ForfeitReturnsChipsBehind(t *testing.T) {
	e := newTable(t, "")
	require.NoError(t, e.Start(participants("100", "100", "100")))

	require.NoError(t, e.Apply(raise("a", "10")))
	behind, err := e.Forfeit("a")
	require.NoError(t, err)
	assert.True(t, behind.Equal(d("90")))
	assert.Equal(t, "b", e.CurrentPlayer())

	_, err = e.Forfeit("z")
	assert.ErrorIs(t, err, game.ErrNotFound)

	behind, err = e.Forfeit("b")
	require.NoError(t, err)
	assert.True(t, behind.Equal(d("99")))
	require.True(t, e.IsHandTerminal())
	assert.True(t, e.HandOutcome().Stacks["c"].Equal(d("111")))
}

func TestEngine_ButtonMoves(t *testing.T) {
	e := newTable(t, "")
	require.NoError(t, e.Start(participants("100", "100", "100")))
	require.NoError(t, e.Apply(act(game.ActionFold, "a")))
	require.NoError(t, e.Apply(act(game.ActionFold, "b")))
	require.True(t, e.IsHandTerminal())

	require.NoError(t, e.Start(participants("100", "99", "101")))
	assert.Equal(t, 1, e.Hand().Dealer)
	assert.Equal(t, int64(2), e.Hand().Seq)
}

func TestEngine_ViewsHideHoleCards(t *testing.T) {
	e := newTable(t, "7c Ah 2d As")
	require.NoError(t, e.Start(participants("100", "100")))

	pub, err := json.Marshal(e.PublicView())
	require.NoError(t, err)
	assert.NotContains(t, string(pub), `"Ah"`)
	assert.NotContains(t, string(pub), `"hole"`)

	priv := e.PrivateView("a").(PrivateView)
	assert.Equal(t, cards.MustParseList("Ah As"), priv.Hole)
	assert.Nil(t, e.PrivateView("nobody"))
}

func TestEngine_MarshalRestore(t *testing.T) {
	e := newTable(t, "")
	require.NoError(t, e.Start(participants("100", "100")))
	require.NoError(t, e.Apply(raise("a", "6")))

	data, err := e.Marshal()
	require.NoError(t, err)

	restored := New(Config{BigBlind: d("2")})
	require.NoError(t, restored.Restore(data))
	assert.Equal(t, e.CurrentPlayer(), restored.CurrentPlayer())

	require.NoError(t, restored.Apply(act(game.ActionCall, "b")))
	require.NoError(t, e.Apply(act(game.ActionCall, "b")))
	assert.Equal(t, e.Hand().Board, restored.Hand().Board)
}
