package poker

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/wfunc/cardroom/cards"
	"github.com/wfunc/cardroom/game"
)

type Phase string

const (
	PhasePreflop  Phase = "preflop"
	PhaseFlop     Phase = "flop"
	PhaseTurn     Phase = "turn"
	PhaseRiver    Phase = "river"
	PhaseShowdown Phase = "showdown"
)

// Config tunes a table.
type Config struct {
	BigBlind decimal.Decimal
	// NewDeck overrides the shuffled deck, for tests.
	NewDeck func() *cards.Deck
}

// PlayerState is a participant's view of the current hand.
type PlayerState struct {
	PlayerID string          `json:"player_id"`
	Seat     int             `json:"seat"`
	Stack    decimal.Decimal `json:"stack"`
	Bet      decimal.Decimal `json:"bet"`
	Total    decimal.Decimal `json:"total"`
	Hole     []cards.Card    `json:"hole"`
	Folded   bool            `json:"folded"`
	AllIn    bool            `json:"all_in"`
	Acted    bool            `json:"acted"`
}

// HandState is one deal from shuffle to showdown. Dealer and Turn index
// into Players, which is in seat order.
type HandState struct {
	Seq        int64           `json:"seq"`
	Dealer     int             `json:"dealer"`
	Turn       int             `json:"turn"`
	Phase      Phase           `json:"phase"`
	Players    []*PlayerState  `json:"players"`
	Board      []cards.Card    `json:"board"`
	CurrentBet decimal.Decimal `json:"current_bet"`
	MinRaise   decimal.Decimal `json:"min_raise"`
	Deck       *cards.Deck     `json:"deck"`
	Pots       []PotResult     `json:"pots,omitempty"`
	Winners    []string        `json:"winners,omitempty"`
	Done       bool            `json:"done"`
}

// Engine runs consecutive hands at one table.
type Engine struct {
	cfg            Config
	hand           *HandState
	lastDealerSeat int
	handSeq        int64
}

func New(cfg Config) *Engine {
	return &Engine{cfg: cfg, lastDealerSeat: -1}
}

func (e *Engine) Type() game.Type { return game.Poker }

func (e *Engine) CanStart(n int) bool { return n >= 2 }

// Hand exposes the current hand, nil before the first deal.
func (e *Engine) Hand() *HandState { return e.hand }

func (e *Engine) newDeck() *cards.Deck {
	if e.cfg.NewDeck != nil {
		return e.cfg.NewDeck()
	}
	return cards.NewShuffledDeck(nil)
}

// Start moves the button, posts blinds and deals two cards to everyone.
func (e *Engine) Start(ps []game.Participant) error {
	if len(ps) < 2 {
		return game.Errorf(game.KindIllegalMove, "need at least two players, have %d", len(ps))
	}
	ps = append([]game.Participant(nil), ps...)
	sort.Slice(ps, func(i, j int) bool { return ps[i].Seat < ps[j].Seat })

	h := &HandState{
		Seq:        e.handSeq + 1,
		Phase:      PhasePreflop,
		CurrentBet: e.cfg.BigBlind,
		MinRaise:   e.cfg.BigBlind,
		Deck:       e.newDeck(),
	}
	for _, p := range ps {
		if !p.Stack.IsPositive() {
			return game.Errorf(game.KindIllegalMove, "player %s has no chips", p.PlayerID)
		}
		h.Players = append(h.Players, &PlayerState{PlayerID: p.PlayerID, Seat: p.Seat, Stack: p.Stack})
	}
	for i, p := range h.Players {
		if p.Seat > e.lastDealerSeat {
			h.Dealer = i
			break
		}
	}

	sb, bb := h.next(h.Dealer), h.next(h.next(h.Dealer))
	if len(h.Players) == 2 {
		sb, bb = h.Dealer, h.next(h.Dealer)
	}
	h.put(h.Players[sb], decimal.Min(game.Money(e.cfg.BigBlind.Div(decimal.NewFromInt(2))), h.Players[sb].Stack))
	h.put(h.Players[bb], decimal.Min(e.cfg.BigBlind, h.Players[bb].Stack))

	for round := 0; round < 2; round++ {
		for k := 1; k <= len(h.Players); k++ {
			c, err := h.Deck.Deal(1)
			if err != nil {
				return game.Wrap(game.KindDeckExhausted, err, "dealing hole cards")
			}
			p := h.Players[(h.Dealer+k)%len(h.Players)]
			p.Hole = append(p.Hole, c[0])
		}
	}

	h.Turn = h.nextToAct(h.next(bb))
	if len(h.Players) == 2 {
		h.Turn = h.nextToAct(h.Dealer)
	}
	if h.Turn < 0 {
		if err := e.nextStreet(h); err != nil {
			return err
		}
	}

	e.hand = h
	e.handSeq = h.Seq
	e.lastDealerSeat = h.Players[h.Dealer].Seat
	return nil
}

// Apply handles fold, check, call, raise and all_in for the player to act.
func (e *Engine) Apply(a game.Action) error {
	h := e.hand
	if h == nil || h.Done {
		return game.Errorf(game.KindIllegalMove, "no hand in progress")
	}
	if h.Turn < 0 || h.Players[h.Turn].PlayerID != a.PlayerID {
		return game.Errorf(game.KindIllegalMove, "not %s's turn", a.PlayerID)
	}
	p := h.Players[h.Turn]

	switch a.Type {
	case game.ActionFold:
		p.Folded = true
	case game.ActionCheck:
		if p.Bet.LessThan(h.CurrentBet) {
			return game.Errorf(game.KindIllegalMove, "cannot check facing %s", h.CurrentBet.Sub(p.Bet))
		}
	case game.ActionCall:
		owed := h.CurrentBet.Sub(p.Bet)
		if !owed.IsPositive() {
			return game.Errorf(game.KindIllegalMove, "nothing to call")
		}
		h.put(p, decimal.Min(owed, p.Stack))
	case game.ActionRaise:
		if err := h.raiseTo(p, game.Money(a.Amount)); err != nil {
			return err
		}
	case game.ActionAllIn:
		if !p.Stack.IsPositive() {
			return game.Errorf(game.KindIllegalMove, "no chips behind")
		}
		if err := h.raiseTo(p, p.Bet.Add(p.Stack)); err != nil {
			return err
		}
	default:
		return game.Errorf(game.KindIllegalMove, "%s is not a poker action", a.Type)
	}
	p.Acted = true
	return e.advance(h, h.Turn)
}

func (h *HandState) raiseTo(p *PlayerState, to decimal.Decimal) error {
	need := to.Sub(p.Bet)
	if !need.IsPositive() || need.GreaterThan(p.Stack) {
		return game.Errorf(game.KindIllegalMove, "cannot raise to %s with %s behind", to, p.Stack)
	}
	allIn := need.Equal(p.Stack)
	if to.LessThanOrEqual(h.CurrentBet) {
		if !allIn {
			return game.Errorf(game.KindIllegalMove, "raise must exceed %s", h.CurrentBet)
		}
		h.put(p, need)
		return nil
	}
	size := to.Sub(h.CurrentBet)
	if size.LessThan(h.MinRaise) && !allIn {
		return game.Errorf(game.KindIllegalMove, "minimum raise is to %s", h.CurrentBet.Add(h.MinRaise))
	}
	h.put(p, need)
	if size.GreaterThanOrEqual(h.MinRaise) {
		h.MinRaise = size
		for _, o := range h.Players {
			if o != p {
				o.Acted = false
			}
		}
	}
	h.CurrentBet = to
	return nil
}

func (h *HandState) put(p *PlayerState, amount decimal.Decimal) {
	p.Stack = p.Stack.Sub(amount)
	p.Bet = p.Bet.Add(amount)
	p.Total = p.Total.Add(amount)
	if !p.Stack.IsPositive() {
		p.AllIn = true
	}
}

func (h *HandState) next(i int) int { return (i + 1) % len(h.Players) }

func (h *HandState) needsAction(p *PlayerState) bool {
	return !p.Folded && !p.AllIn && (!p.Acted || p.Bet.LessThan(h.CurrentBet))
}

// nextToAct returns the first seat from i onwards that still owes an
// action, or -1.
func (h *HandState) nextToAct(i int) int {
	for k := 0; k < len(h.Players); k++ {
		j := (i + k) % len(h.Players)
		if h.needsAction(h.Players[j]) {
			return j
		}
	}
	return -1
}

func (h *HandState) live() []*PlayerState {
	var out []*PlayerState
	for _, p := range h.Players {
		if !p.Folded {
			out = append(out, p)
		}
	}
	return out
}

func (h *HandState) canBet() int {
	n := 0
	for _, p := range h.Players {
		if !p.Folded && !p.AllIn {
			n++
		}
	}
	return n
}

func (e *Engine) advance(h *HandState, last int) error {
	if live := h.live(); len(live) == 1 {
		h.awardUncontested(live[0])
		return nil
	}
	if next := h.nextToAct(h.next(last)); next >= 0 {
		h.Turn = next
		return nil
	}
	return e.nextStreet(h)
}

// nextStreet closes the betting round and deals on. When at most one player
// can still bet the board runs out to showdown.
func (e *Engine) nextStreet(h *HandState) error {
	for {
		for _, p := range h.Players {
			p.Bet = decimal.Zero
			p.Acted = false
		}
		h.CurrentBet = decimal.Zero
		h.MinRaise = e.cfg.BigBlind

		var n int
		switch h.Phase {
		case PhasePreflop:
			h.Phase, n = PhaseFlop, 3
		case PhaseFlop:
			h.Phase, n = PhaseTurn, 1
		case PhaseTurn:
			h.Phase, n = PhaseRiver, 1
		default:
			return h.showdown()
		}
		if err := h.Deck.Burn(1); err != nil {
			return game.Wrap(game.KindDeckExhausted, err, "burn")
		}
		dealt, err := h.Deck.Deal(n)
		if err != nil {
			return game.Wrap(game.KindDeckExhausted, err, string(h.Phase))
		}
		h.Board = append(h.Board, dealt...)

		if h.canBet() <= 1 {
			continue
		}
		if h.Turn = h.nextToAct(h.next(h.Dealer)); h.Turn >= 0 {
			return nil
		}
	}
}

// order lists player ids starting left of the dealer.
func (h *HandState) order() []string {
	out := make([]string, 0, len(h.Players))
	for k := 1; k <= len(h.Players); k++ {
		out = append(out, h.Players[(h.Dealer+k)%len(h.Players)].PlayerID)
	}
	return out
}

func (h *HandState) pot() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range h.Players {
		sum = sum.Add(p.Total)
	}
	return sum
}

func (h *HandState) awardUncontested(w *PlayerState) {
	total := h.pot()
	w.Stack = w.Stack.Add(total)
	h.Pots = []PotResult{{Amount: total, Winners: []string{w.PlayerID}}}
	h.Winners = []string{w.PlayerID}
	h.Turn = -1
	h.Done = true
}

func (h *HandState) showdown() error {
	h.Phase = PhaseShowdown
	h.Turn = -1

	results := make(map[string]Result)
	contribs := make([]Contribution, 0, len(h.Players))
	for _, p := range h.Players {
		contribs = append(contribs, Contribution{PlayerID: p.PlayerID, Seat: p.Seat, Amount: p.Total, Folded: p.Folded})
		if p.Folded {
			continue
		}
		r, err := Evaluate(append(append([]cards.Card(nil), p.Hole...), h.Board...))
		if err != nil {
			return err
		}
		results[p.PlayerID] = r
	}

	won, awarded := AwardPots(BuildPots(contribs), results, h.order())
	seen := make(map[string]bool)
	for _, pr := range awarded {
		for _, id := range pr.Winners {
			if !seen[id] {
				seen[id] = true
				h.Winners = append(h.Winners, id)
			}
		}
	}
	for _, p := range h.Players {
		p.Stack = p.Stack.Add(won[p.PlayerID])
	}
	h.Pots = awarded
	h.Done = true
	return nil
}

func (e *Engine) CurrentPlayer() string {
	if e.hand == nil || e.hand.Done || e.hand.Turn < 0 {
		return ""
	}
	return e.hand.Players[e.hand.Turn].PlayerID
}

func (e *Engine) IsHandTerminal() bool { return e.hand != nil && e.hand.Done }

// Summary is the audit record of a finished hand.
type Summary struct {
	Board []cards.Card            `json:"board"`
	Pots  []PotResult             `json:"pots"`
	Shown map[string][]cards.Card `json:"shown,omitempty"`
	Hands map[string]string       `json:"hands,omitempty"`
}

func (e *Engine) HandOutcome() game.Outcome {
	h := e.hand
	if h == nil {
		return game.Outcome{}
	}
	out := game.Outcome{
		HandSeq: h.Seq,
		Stacks:  make(map[string]decimal.Decimal, len(h.Players)),
		Winners: append([]string(nil), h.Winners...),
	}
	sum := Summary{Board: h.Board, Pots: h.Pots}
	for _, p := range h.Players {
		out.Stacks[p.PlayerID] = p.Stack
		if h.Phase == PhaseShowdown && !p.Folded {
			if sum.Shown == nil {
				sum.Shown = make(map[string][]cards.Card)
				sum.Hands = make(map[string]string)
			}
			sum.Shown[p.PlayerID] = p.Hole
			if r, err := Evaluate(append(append([]cards.Card(nil), p.Hole...), h.Board...)); err == nil {
				sum.Hands[p.PlayerID] = r.Name
			}
		}
	}
	out.Summary = sum
	return out
}

// IsMatchOver is true once a single player holds every chip.
func (e *Engine) IsMatchOver(stacks map[string]decimal.Decimal) bool {
	funded := 0
	for _, s := range stacks {
		if s.IsPositive() {
			funded++
		}
	}
	return funded <= 1
}

// MatchPayout returns every stack as it stands.
func (e *Engine) MatchPayout(stacks map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(stacks))
	for id, s := range stacks {
		out[id] = s
	}
	return out
}

// Forfeit folds the player out of the running hand and hands back the chips
// still behind. Chips already in the pot stay there.
func (e *Engine) Forfeit(playerID string) (decimal.Decimal, error) {
	h := e.hand
	if h == nil || h.Done {
		return decimal.Zero, game.Errorf(game.KindNotFound, "no hand in progress")
	}
	idx := -1
	for i, p := range h.Players {
		if p.PlayerID == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return decimal.Zero, game.Errorf(game.KindNotFound, "player %s not in hand", playerID)
	}
	p := h.Players[idx]
	behind := p.Stack
	p.Stack = decimal.Zero
	p.Folded = true
	p.Acted = true

	if live := h.live(); len(live) == 1 {
		h.awardUncontested(live[0])
		return behind, nil
	}
	if h.Turn == idx {
		return behind, e.advance(h, idx)
	}
	return behind, nil
}

// PublicPlayer is a seat as everyone at the table sees it.
type PublicPlayer struct {
	PlayerID string          `json:"player_id"`
	Seat     int             `json:"seat"`
	Stack    decimal.Decimal `json:"stack"`
	Bet      decimal.Decimal `json:"bet"`
	Folded   bool            `json:"folded"`
	AllIn    bool            `json:"all_in"`
	Cards    int             `json:"cards"`
}

type PublicView struct {
	HandSeq    int64           `json:"hand_seq"`
	Phase      Phase           `json:"phase"`
	DealerSeat int             `json:"dealer_seat"`
	Turn       string          `json:"turn,omitempty"`
	Board      []cards.Card    `json:"board"`
	Pot        decimal.Decimal `json:"pot"`
	CurrentBet decimal.Decimal `json:"current_bet"`
	MinRaise   decimal.Decimal `json:"min_raise"`
	Players    []PublicPlayer  `json:"players"`
	Pots       []PotResult     `json:"pots,omitempty"`
	Winners    []string        `json:"winners,omitempty"`
}

func (e *Engine) PublicView() any {
	h := e.hand
	if h == nil {
		return nil
	}
	v := PublicView{
		HandSeq:    h.Seq,
		Phase:      h.Phase,
		DealerSeat: h.Players[h.Dealer].Seat,
		Turn:       e.CurrentPlayer(),
		Board:      append([]cards.Card{}, h.Board...),
		Pot:        h.pot(),
		CurrentBet: h.CurrentBet,
		MinRaise:   h.MinRaise,
		Pots:       h.Pots,
		Winners:    h.Winners,
	}
	for _, p := range h.Players {
		v.Players = append(v.Players, PublicPlayer{
			PlayerID: p.PlayerID,
			Seat:     p.Seat,
			Stack:    p.Stack,
			Bet:      p.Bet,
			Folded:   p.Folded,
			AllIn:    p.AllIn,
			Cards:    len(p.Hole),
		})
	}
	return v
}

type PrivateView struct {
	PlayerID string       `json:"player_id"`
	Hole     []cards.Card `json:"hole"`
}

func (e *Engine) PrivateView(playerID string) any {
	if e.hand == nil {
		return nil
	}
	for _, p := range e.hand.Players {
		if p.PlayerID == playerID {
			return PrivateView{PlayerID: playerID, Hole: append([]cards.Card(nil), p.Hole...)}
		}
	}
	return nil
}

type engineState struct {
	LastDealerSeat int        `json:"last_dealer_seat"`
	HandSeq        int64      `json:"hand_seq"`
	Hand           *HandState `json:"hand,omitempty"`
}

func (e *Engine) Marshal() ([]byte, error) {
	return json.Marshal(engineState{LastDealerSeat: e.lastDealerSeat, HandSeq: e.handSeq, Hand: e.hand})
}

func (e *Engine) Restore(data []byte) error {
	var st engineState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	e.lastDealerSeat, e.handSeq, e.hand = st.LastDealerSeat, st.HandSeq, st.Hand
	return nil
}

var _ game.Engine = (*Engine)(nil)
