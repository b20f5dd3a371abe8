package cards

import (
	crand "crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
)

var ErrDeckExhausted = errors.New("cards: deck exhausted")

// Deck is an ordered, single-use sequence of unique cards. Cards are drawn
// from the front and never returned.
type Deck struct {
	cards []Card
	next  int
}

// NewDeck builds an ordered deck from cs. Duplicates are rejected.
func NewDeck(cs []Card) (*Deck, error) {
	seen := make(map[Card]struct{}, len(cs))
	for _, c := range cs {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCard, c)
		}
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCard, c.Code())
		}
		seen[c] = struct{}{}
	}
	return &Deck{cards: append([]Card(nil), cs...)}, nil
}

// FullDeck returns the 52 cards in canonical order.
func FullDeck() []Card {
	out := make([]Card, 0, 52)
	for _, s := range Suits {
		for r := Two; r <= Ace; r++ {
			out = append(out, Card{Suit: s, Rank: r})
		}
	}
	return out
}

// BlotDeck returns the 32 cards from seven to ace in canonical order.
func BlotDeck() []Card {
	out := make([]Card, 0, 32)
	for _, s := range Suits {
		for r := Seven; r <= Ace; r++ {
			out = append(out, Card{Suit: s, Rank: r})
		}
	}
	return out
}

// NewShuffledDeck returns a randomly permuted 52-card deck. A nil seed draws
// the permutation key from crypto/rand; a non-nil seed is for tests.
func NewShuffledDeck(seed *uint64) *Deck {
	return shuffled(FullDeck(), seed)
}

// NewShuffledBlotDeck is NewShuffledDeck for the 32-card blot deck.
func NewShuffledBlotDeck(seed *uint64) *Deck {
	return shuffled(BlotDeck(), seed)
}

func shuffled(cs []Card, seed *uint64) *Deck {
	rng := newRand(seed)
	rng.Shuffle(len(cs), func(i, j int) { cs[i], cs[j] = cs[j], cs[i] })
	return &Deck{cards: cs}
}

func newRand(seed *uint64) *rand.Rand {
	var key [32]byte
	if seed != nil {
		binary.LittleEndian.PutUint64(key[:8], *seed)
	} else if _, err := crand.Read(key[:]); err != nil {
		panic("cards: crypto/rand unavailable: " + err.Error())
	}
	return rand.New(rand.NewChaCha8(key))
}

// Deal draws n cards from the top of the deck.
func (d *Deck) Deal(n int) ([]Card, error) {
	if n < 0 || n > d.Remaining() {
		return nil, fmt.Errorf("%w: want %d, have %d", ErrDeckExhausted, n, d.Remaining())
	}
	out := append([]Card(nil), d.cards[d.next:d.next+n]...)
	d.next += n
	return out, nil
}

// Burn discards n cards.
func (d *Deck) Burn(n int) error {
	_, err := d.Deal(n)
	return err
}

func (d *Deck) Remaining() int { return len(d.cards) - d.next }

type deckJSON struct {
	Cards []Card `json:"cards"`
	Next  int    `json:"next"`
}

func (d *Deck) MarshalJSON() ([]byte, error) {
	return json.Marshal(deckJSON{Cards: d.cards, Next: d.next})
}

func (d *Deck) UnmarshalJSON(b []byte) error {
	var v deckJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v.Next < 0 || v.Next > len(v.Cards) {
		return fmt.Errorf("%w: cursor %d out of range", ErrInvalidCard, v.Next)
	}
	restored, err := NewDeck(v.Cards)
	if err != nil {
		return err
	}
	restored.next = v.Next
	*d = *restored
	return nil
}
