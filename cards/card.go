// Package cards holds the card and deck primitives shared by every game.
package cards

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCard   = errors.New("cards: invalid card")
	ErrInvalidSuit   = errors.New("cards: invalid suit")
	ErrDuplicateCard = errors.New("cards: duplicate card")
)

type Suit uint8

const (
	Hearts Suit = iota
	Diamonds
	Clubs
	Spades
)

// Suits lists every suit in canonical order.
var Suits = [4]Suit{Hearts, Diamonds, Clubs, Spades}

var (
	suitNames   = [4]string{"hearts", "diamonds", "clubs", "spades"}
	suitLetters = [4]byte{'h', 'd', 'c', 's'}
	suitSymbols = [4]string{"♥", "♦", "♣", "♠"}
)

func (s Suit) Valid() bool { return s <= Spades }

func (s Suit) String() string {
	if !s.Valid() {
		return "?"
	}
	return suitNames[s]
}

// Symbol returns the unicode pip for the suit.
func (s Suit) Symbol() string {
	if !s.Valid() {
		return "?"
	}
	return suitSymbols[s]
}

func (s Suit) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, ErrInvalidSuit
	}
	return []byte(suitNames[s]), nil
}

func (s *Suit) UnmarshalText(b []byte) error {
	parsed, err := ParseSuit(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSuit accepts the full name ("hearts") or the single letter ("h").
func ParseSuit(v string) (Suit, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	for i, name := range suitNames {
		if v == name || (len(v) == 1 && v[0] == suitLetters[i]) {
			return Suit(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSuit, v)
}

// Rank runs from Two (2) to Ace (14).
type Rank uint8

const (
	Two   Rank = 2
	Three Rank = 3
	Four  Rank = 4
	Five  Rank = 5
	Six   Rank = 6
	Seven Rank = 7
	Eight Rank = 8
	Nine  Rank = 9
	Ten   Rank = 10
	Jack  Rank = 11
	Queen Rank = 12
	King  Rank = 13
	Ace   Rank = 14
)

const rankLetters = "23456789TJQKA"

func (r Rank) Valid() bool { return r >= Two && r <= Ace }

func (r Rank) String() string {
	switch r {
	case Ten:
		return "10"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case Ace:
		return "A"
	}
	if r.Valid() {
		return string(rankLetters[r-Two])
	}
	return "?"
}

// Card is an immutable value.
type Card struct {
	Suit Suit
	Rank Rank
}

func New(r Rank, s Suit) Card { return Card{Suit: s, Rank: r} }

func (c Card) Valid() bool { return c.Suit.Valid() && c.Rank.Valid() }

// String renders the card with its suit pip, e.g. "10♥".
func (c Card) String() string {
	return c.Rank.String() + c.Suit.Symbol()
}

// Code is the two-letter ASCII form used on the wire, e.g. "Th".
func (c Card) Code() string {
	if !c.Valid() {
		return "??"
	}
	return string([]byte{rankLetters[c.Rank-Two], suitLetters[c.Suit]})
}

func (c Card) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, ErrInvalidCard
	}
	return []byte(c.Code()), nil
}

func (c *Card) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Parse reads a card code such as "Ah", "Td" or "10c".
func Parse(code string) (Card, error) {
	code = strings.TrimSpace(code)
	if len(code) < 2 {
		return Card{}, fmt.Errorf("%w: %q", ErrInvalidCard, code)
	}
	rankPart, suitPart := strings.ToUpper(code[:len(code)-1]), code[len(code)-1:]
	if rankPart == "10" {
		rankPart = "T"
	}
	if len(rankPart) != 1 {
		return Card{}, fmt.Errorf("%w: %q", ErrInvalidCard, code)
	}
	idx := strings.IndexByte(rankLetters, rankPart[0])
	if idx < 0 {
		return Card{}, fmt.Errorf("%w: %q", ErrInvalidCard, code)
	}
	suit, err := ParseSuit(suitPart)
	if err != nil {
		return Card{}, fmt.Errorf("%w: %q", ErrInvalidCard, code)
	}
	return Card{Suit: suit, Rank: Rank(idx) + Two}, nil
}

// MustParseList parses a space separated list of card codes and panics on
// error. Intended for fixtures.
func MustParseList(codes string) []Card {
	fields := strings.Fields(codes)
	out := make([]Card, 0, len(fields))
	for _, f := range fields {
		c, err := Parse(f)
		if err != nil {
			panic(err)
		}
		out = append(out, c)
	}
	return out
}

// Contains reports whether c is in cs.
func Contains(cs []Card, c Card) bool {
	for _, x := range cs {
		if x == c {
			return true
		}
	}
	return false
}

// Remove returns cs without the first occurrence of c, and whether it was found.
// The input slice is not modified.
func Remove(cs []Card, c Card) ([]Card, bool) {
	for i, x := range cs {
		if x == c {
			out := make([]Card, 0, len(cs)-1)
			out = append(out, cs[:i]...)
			return append(out, cs[i+1:]...), true
		}
	}
	return cs, false
}
