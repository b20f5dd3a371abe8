package blot

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/wfunc/cardroom/cards"
	"github.com/wfunc/cardroom/game"
)

type Phase string

const (
	PhaseTrumpSelection Phase = "trump_selection"
	PhasePlaying        Phase = "playing"
	PhaseHandOver       Phase = "hand_over"
)

const (
	DefaultTarget = 301
	HandSize      = 8
)

type Config struct {
	// Players is 2, or 4 for two partnerships.
	Players int
	Target  int
	NewDeck func() *cards.Deck
}

// Announcement is a combination declared by the player at Position.
type Announcement struct {
	Position    int         `json:"position"`
	PlayerID    string      `json:"player_id"`
	Combination Combination `json:"combination"`
}

// TrickState is the table between tricks. Seats are positions 0..n-1 and
// side is position % 2.
type TrickState struct {
	Trump       *cards.Suit    `json:"trump,omitempty"`
	Dealer      int            `json:"dealer"`
	Turn        int            `json:"turn"`
	Trick       []Play         `json:"trick"`
	LastTrick   []Play         `json:"last_trick,omitempty"`
	Announced   []Announcement `json:"announced,omitempty"`
	TricksWon   [2]int         `json:"tricks_won"`
	RoundPoints [2]int         `json:"round_points"`
	MatchScores [2]int         `json:"match_scores"`
}

// HandScore is how one hand was scored. CombinationSide is the side whose
// combinations counted, or -1.
type HandScore struct {
	HandSeq         int64      `json:"hand_seq"`
	Trump           cards.Suit `json:"trump"`
	CardPoints      [2]int     `json:"card_points"`
	Combinations    [2]int     `json:"combinations"`
	Belote          [2]int     `json:"belote"`
	Total           [2]int     `json:"total"`
	TricksWon       [2]int     `json:"tricks_won"`
	CombinationSide int        `json:"combination_side"`
	MatchScores     [2]int     `json:"match_scores"`
}

type blotState struct {
	Players    []string       `json:"players"`
	Hands      [][]cards.Card `json:"hands"`
	Table      TrickState     `json:"table"`
	Phase      Phase          `json:"phase"`
	Passes     int            `json:"passes"`
	HandSeq    int64          `json:"hand_seq"`
	Started    bool           `json:"started"`
	MatchOver  bool           `json:"match_over"`
	WinnerSide int            `json:"winner_side"`
	LastHand   *HandScore     `json:"last_hand,omitempty"`
}

// Engine plays one blot match across consecutive hands.
type Engine struct {
	cfg Config
	s   blotState
}

func New(cfg Config) *Engine {
	if cfg.Target <= 0 {
		cfg.Target = DefaultTarget
	}
	return &Engine{cfg: cfg, s: blotState{WinnerSide: -1}}
}

func (e *Engine) Type() game.Type { return game.Blot }

func (e *Engine) CanStart(n int) bool { return n == e.cfg.Players }

// Table exposes the trick state.
func (e *Engine) Table() TrickState { return e.s.Table }

func (e *Engine) Phase() Phase { return e.s.Phase }

func (e *Engine) n() int { return len(e.s.Players) }

func (e *Engine) newDeck() *cards.Deck {
	if e.cfg.NewDeck != nil {
		return e.cfg.NewDeck()
	}
	return cards.NewShuffledBlotDeck(nil)
}

// Start deals the next hand of the match, moving the deal one seat left
// after the first hand.
func (e *Engine) Start(ps []game.Participant) error {
	if e.cfg.Players != 2 && e.cfg.Players != 4 {
		return game.Errorf(game.KindIllegalMove, "blot is played by 2 or 4 players, configured %d", e.cfg.Players)
	}
	if len(ps) != e.cfg.Players {
		return game.Errorf(game.KindIllegalMove, "blot needs %d players, have %d", e.cfg.Players, len(ps))
	}
	if e.s.MatchOver {
		return game.Errorf(game.KindIllegalMove, "match is over")
	}
	ps = append([]game.Participant(nil), ps...)
	sort.Slice(ps, func(i, j int) bool { return ps[i].Seat < ps[j].Seat })

	dealer := 0
	if e.s.Started {
		for i, p := range ps {
			if p.PlayerID != e.s.Players[i] {
				return game.Errorf(game.KindIllegalMove, "players changed during the match")
			}
		}
		dealer = (e.s.Table.Dealer + 1) % len(ps)
	}

	hands, err := e.deal(len(ps))
	if err != nil {
		return err
	}
	if !e.s.Started {
		for _, p := range ps {
			e.s.Players = append(e.s.Players, p.PlayerID)
		}
		e.s.Started = true
	}
	e.s.HandSeq++
	e.s.Hands = hands
	e.s.Phase = PhaseTrumpSelection
	e.s.Passes = 0
	e.s.Table = TrickState{
		Dealer:      dealer,
		Turn:        (dealer + 1) % len(ps),
		MatchScores: e.s.Table.MatchScores,
	}
	return nil
}

func (e *Engine) deal(n int) ([][]cards.Card, error) {
	deck := e.newDeck()
	hands := make([][]cards.Card, n)
	for i := range hands {
		h, err := deck.Deal(HandSize)
		if err != nil {
			return nil, game.Wrap(game.KindDeckExhausted, err, "dealing blot hands")
		}
		hands[i] = h
	}
	return hands, nil
}

func (e *Engine) position(playerID string) int {
	for i, id := range e.s.Players {
		if id == playerID {
			return i
		}
	}
	return -1
}

// Apply handles select_trump, announce and play_card.
func (e *Engine) Apply(a game.Action) error {
	if !e.s.Started || e.s.Phase == PhaseHandOver {
		return game.Errorf(game.KindIllegalMove, "no hand in progress")
	}
	pos := e.position(a.PlayerID)
	if pos < 0 {
		return game.Errorf(game.KindIllegalMove, "%s is not in this match", a.PlayerID)
	}
	switch a.Type {
	case game.ActionSelectTrump:
		return e.selectTrump(pos, a)
	case game.ActionAnnounce:
		return e.announce(pos, a.Cards)
	case game.ActionPlayCard:
		if a.Card == nil {
			return game.Errorf(game.KindIllegalMove, "no card given")
		}
		return e.playCard(pos, *a.Card)
	}
	return game.Errorf(game.KindIllegalMove, "%s is not a blot action", a.Type)
}

func (e *Engine) selectTrump(pos int, a game.Action) error {
	t := &e.s.Table
	if e.s.Phase != PhaseTrumpSelection {
		return game.Errorf(game.KindIllegalMove, "trump is already %s", t.Trump)
	}
	if pos != t.Turn {
		return game.Errorf(game.KindIllegalMove, "not %s's turn to choose trump", a.PlayerID)
	}
	if !a.Pass {
		if a.Suit == nil || !a.Suit.Valid() {
			return game.Errorf(game.KindIllegalMove, "select a suit or pass")
		}
		suit := *a.Suit
		t.Trump = &suit
		t.Turn = (t.Dealer + 1) % e.n()
		e.s.Phase = PhasePlaying
		return nil
	}

	if e.s.Passes+1 < e.n() {
		e.s.Passes++
		t.Turn = (t.Turn + 1) % e.n()
		return nil
	}
	// everybody passed: redeal with the next dealer
	hands, err := e.deal(e.n())
	if err != nil {
		return err
	}
	e.s.Hands = hands
	e.s.Passes = 0
	t.Dealer = (t.Dealer + 1) % e.n()
	t.Turn = (t.Dealer + 1) % e.n()
	return nil
}

func (e *Engine) cardsPlayed() bool {
	t := e.s.Table
	return len(t.Trick) > 0 || t.TricksWon[0]+t.TricksWon[1] > 0
}

func (e *Engine) announce(pos int, cs []cards.Card) error {
	if e.s.Phase != PhasePlaying {
		return game.Errorf(game.KindIllegalMove, "announce after trump is chosen")
	}
	if e.cardsPlayed() {
		return game.Errorf(game.KindIllegalMove, "combinations are announced before the first card")
	}
	for _, c := range cs {
		if !cards.Contains(e.s.Hands[pos], c) {
			return game.Errorf(game.KindIllegalMove, "%s is not in hand", c.Code())
		}
	}
	comb, err := ClassifyCombination(cs, *e.s.Table.Trump)
	if err != nil {
		return err
	}
	for _, prev := range e.s.Table.Announced {
		if prev.Position == pos && overlaps(prev.Combination, comb) {
			return game.Errorf(game.KindIllegalMove, "cards already announced")
		}
	}
	e.s.Table.Announced = append(e.s.Table.Announced, Announcement{
		Position:    pos,
		PlayerID:    e.s.Players[pos],
		Combination: comb,
	})
	return nil
}

func (e *Engine) partnerWinning(pos int) bool {
	t := e.s.Table
	if e.n() != 4 || len(t.Trick) == 0 {
		return false
	}
	return t.Trick[TrickWinner(t.Trick, *t.Trump)].Seat == (pos+2)%4
}

// LegalMoves returns the cards the player to act may play.
func (e *Engine) LegalMoves(playerID string) []cards.Card {
	pos := e.position(playerID)
	if pos < 0 || e.s.Phase != PhasePlaying || pos != e.s.Table.Turn {
		return nil
	}
	return LegalCards(e.s.Hands[pos], e.s.Table.Trick, *e.s.Table.Trump, e.partnerWinning(pos))
}

func (e *Engine) playCard(pos int, c cards.Card) error {
	t := &e.s.Table
	if e.s.Phase != PhasePlaying {
		return game.Errorf(game.KindIllegalMove, "trump has not been chosen")
	}
	if pos != t.Turn {
		return game.Errorf(game.KindIllegalMove, "not %s's turn", e.s.Players[pos])
	}
	if !cards.Contains(e.s.Hands[pos], c) {
		return game.Errorf(game.KindIllegalMove, "%s is not in hand", c.Code())
	}
	if !cards.Contains(LegalCards(e.s.Hands[pos], t.Trick, *t.Trump, e.partnerWinning(pos)), c) {
		return game.Errorf(game.KindIllegalMove, "%s may not be played to this trick", c.Code())
	}

	e.s.Hands[pos], _ = cards.Remove(e.s.Hands[pos], c)
	t.Trick = append(t.Trick, Play{Seat: pos, Card: c})
	if len(t.Trick) < e.n() {
		t.Turn = (pos + 1) % e.n()
		return nil
	}

	winner := t.Trick[TrickWinner(t.Trick, *t.Trump)].Seat
	side := winner % 2
	t.RoundPoints[side] += TrickPoints(t.Trick, *t.Trump)
	t.TricksWon[side]++
	t.LastTrick, t.Trick = t.Trick, nil
	t.Turn = winner
	if len(e.s.Hands[winner]) == 0 {
		t.RoundPoints[side] += LastTrickBonus
		e.scoreHand()
	}
	return nil
}

// earlier reports whether position a speaks before b in this hand.
func (e *Engine) earlier(a, b int) bool {
	n, d := e.n(), e.s.Table.Dealer
	return (a-d-1+n)%n < (b-d-1+n)%n
}

func (e *Engine) scoreHand() {
	t := &e.s.Table
	trump := *t.Trump
	score := HandScore{
		HandSeq:         e.s.HandSeq,
		Trump:           trump,
		CardPoints:      t.RoundPoints,
		TricksWon:       t.TricksWon,
		CombinationSide: -1,
	}

	var best *Announcement
	for i := range t.Announced {
		a := &t.Announced[i]
		if a.Combination.Kind == Belote {
			if t.TricksWon[a.Position%2] > 0 {
				score.Belote[a.Position%2] += a.Combination.Points
			}
			continue
		}
		if best == nil {
			best = a
			continue
		}
		switch c := CompareCombinations(a.Combination, best.Combination, trump); {
		case c > 0, c == 0 && e.earlier(a.Position, best.Position):
			best = a
		}
	}
	if best != nil && t.TricksWon[best.Position%2] > 0 {
		side := best.Position % 2
		score.CombinationSide = side
		for _, a := range t.Announced {
			if a.Position%2 == side && a.Combination.Kind != Belote {
				score.Combinations[side] += a.Combination.Points
			}
		}
	}

	for s := 0; s < 2; s++ {
		score.Total[s] = score.CardPoints[s] + score.Combinations[s] + score.Belote[s]
		t.MatchScores[s] += score.Total[s]
	}
	score.MatchScores = t.MatchScores
	e.s.LastHand = &score
	e.s.Phase = PhaseHandOver

	m := t.MatchScores
	if (m[0] >= e.cfg.Target || m[1] >= e.cfg.Target) && m[0] != m[1] {
		e.s.MatchOver = true
		e.s.WinnerSide = 0
		if m[1] > m[0] {
			e.s.WinnerSide = 1
		}
	}
}

func (e *Engine) CurrentPlayer() string {
	if !e.s.Started || e.s.Phase == PhaseHandOver {
		return ""
	}
	return e.s.Players[e.s.Table.Turn]
}

func (e *Engine) IsHandTerminal() bool { return e.s.Started && e.s.Phase == PhaseHandOver }

func (e *Engine) HandOutcome() game.Outcome {
	out := game.Outcome{HandSeq: e.s.HandSeq}
	if e.s.LastHand == nil {
		return out
	}
	tot := e.s.LastHand.Total
	for i, id := range e.s.Players {
		side := i % 2
		if tot[side] > tot[1-side] {
			out.Winners = append(out.Winners, id)
		}
	}
	out.Summary = *e.s.LastHand
	return out
}

func (e *Engine) IsMatchOver(map[string]decimal.Decimal) bool { return e.s.MatchOver }

// WinnerSide is 0 or 1 once the match is over, -1 before.
func (e *Engine) WinnerSide() int { return e.s.WinnerSide }

// MatchPayout hands the whole escrow to the winning side. Partners split it
// and the odd remainder goes to the partner seated earlier left of the dealer.
func (e *Engine) MatchPayout(stacks map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(stacks))
	if !e.s.MatchOver {
		for id, s := range stacks {
			out[id] = s
		}
		return out
	}
	total := decimal.Zero
	for id, s := range stacks {
		total = total.Add(s)
		out[id] = decimal.Zero
	}
	var winners []string
	for k := 1; k <= e.n(); k++ {
		pos := (e.s.Table.Dealer + k) % e.n()
		if pos%2 == e.s.WinnerSide {
			winners = append(winners, e.s.Players[pos])
		}
	}
	share, rem := game.Split(total, len(winners))
	for _, id := range winners {
		out[id] = out[id].Add(share)
	}
	if len(winners) > 0 {
		out[winners[0]] = out[winners[0]].Add(rem)
	}
	return out
}

// Forfeit is not supported: losing a player voids the blot match.
func (e *Engine) Forfeit(playerID string) (decimal.Decimal, error) {
	return decimal.Zero, game.Errorf(game.KindIllegalMove, "blot cannot continue without %s", playerID)
}

type PublicAnnouncement struct {
	PlayerID string          `json:"player_id"`
	Kind     CombinationKind `json:"kind"`
	Points   int             `json:"points"`
	High     cards.Rank      `json:"high"`
}

type PublicPlay struct {
	PlayerID string     `json:"player_id"`
	Card     cards.Card `json:"card"`
}

type PublicView struct {
	HandSeq     int64                `json:"hand_seq"`
	Phase       Phase                `json:"phase"`
	Dealer      string               `json:"dealer"`
	Turn        string               `json:"turn,omitempty"`
	Trump       *cards.Suit          `json:"trump,omitempty"`
	Trick       []PublicPlay         `json:"trick"`
	LastTrick   []PublicPlay         `json:"last_trick,omitempty"`
	Announced   []PublicAnnouncement `json:"announced,omitempty"`
	HandSizes   map[string]int       `json:"hand_sizes"`
	TricksWon   [2]int               `json:"tricks_won"`
	RoundPoints [2]int               `json:"round_points"`
	MatchScores [2]int               `json:"match_scores"`
	Target      int                  `json:"target"`
	LastHand    *HandScore           `json:"last_hand,omitempty"`
	WinnerSide  int                  `json:"winner_side"`
}

func (e *Engine) publicPlays(ps []Play) []PublicPlay {
	out := make([]PublicPlay, 0, len(ps))
	for _, p := range ps {
		out = append(out, PublicPlay{PlayerID: e.s.Players[p.Seat], Card: p.Card})
	}
	return out
}

func (e *Engine) PublicView() any {
	if !e.s.Started {
		return nil
	}
	t := e.s.Table
	v := PublicView{
		HandSeq:     e.s.HandSeq,
		Phase:       e.s.Phase,
		Dealer:      e.s.Players[t.Dealer],
		Turn:        e.CurrentPlayer(),
		Trump:       t.Trump,
		Trick:       e.publicPlays(t.Trick),
		LastTrick:   e.publicPlays(t.LastTrick),
		HandSizes:   make(map[string]int, e.n()),
		TricksWon:   t.TricksWon,
		RoundPoints: t.RoundPoints,
		MatchScores: t.MatchScores,
		Target:      e.cfg.Target,
		LastHand:    e.s.LastHand,
		WinnerSide:  e.s.WinnerSide,
	}
	for i, id := range e.s.Players {
		v.HandSizes[id] = len(e.s.Hands[i])
	}
	for _, a := range t.Announced {
		v.Announced = append(v.Announced, PublicAnnouncement{
			PlayerID: a.PlayerID,
			Kind:     a.Combination.Kind,
			Points:   a.Combination.Points,
			High:     a.Combination.High,
		})
	}
	return v
}

type PrivateView struct {
	PlayerID string       `json:"player_id"`
	Hand     []cards.Card `json:"hand"`
	Legal    []cards.Card `json:"legal,omitempty"`
}

func (e *Engine) PrivateView(playerID string) any {
	pos := e.position(playerID)
	if pos < 0 || !e.s.Started {
		return nil
	}
	hand := append([]cards.Card(nil), e.s.Hands[pos]...)
	sort.Slice(hand, func(i, j int) bool {
		if hand[i].Suit != hand[j].Suit {
			return hand[i].Suit < hand[j].Suit
		}
		return hand[i].Rank < hand[j].Rank
	})
	return PrivateView{PlayerID: playerID, Hand: hand, Legal: e.LegalMoves(playerID)}
}

func (e *Engine) Marshal() ([]byte, error) { return json.Marshal(e.s) }

func (e *Engine) Restore(data []byte) error {
	var s blotState
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	e.s = s
	return nil
}

var _ game.Engine = (*Engine)(nil)
