package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidSquare = errors.New("invalid square")

// Square is an 8x8 grid coordinate (a1..h8). Its fields are unexported so a
// constructed Square cannot be altered; the zero value is a1.
type Square struct {
	file int8
	rank int8
}

func NewSquare(file, rank int) (Square, error) {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return Square{}, fmt.Errorf("%w: file=%d rank=%d", ErrInvalidSquare, file, rank)
	}
	return Square{file: int8(file), rank: int8(rank)}, nil
}

// MustSquare panics on malformed input; intended for literals in tables and tests.
func MustSquare(s string) Square {
	sq, err := ParseSquare(s)
	if err != nil {
		panic(err)
	}
	return sq
}

// ParseSquare accepts algebraic coordinates in either case ("E2", "e2").
func ParseSquare(s string) (Square, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 {
		return Square{}, fmt.Errorf("%w: %q", ErrInvalidSquare, s)
	}
	return NewSquare(int(s[0])-'a', int(s[1])-'1')
}

func (s Square) File() int { return int(s.file) }
func (s Square) Rank() int { return int(s.rank) }

// Index is rank*8+file, matching the a1=0 layout used by the rules engine.
func (s Square) Index() int { return int(s.rank)*8 + int(s.file) }

func (s Square) String() string {
	return string([]byte{byte('a' + s.file), byte('1' + s.rank)})
}

func (s Square) Position() Position { return Position{File: int(s.file), Rank: int(s.rank)} }

func (s Square) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Square) UnmarshalText(b []byte) error {
	v, err := ParseSquare(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Position is a physical board location. Captured pieces are parked at
// positions outside the 8x8 grid.
type Position struct {
	File int `json:"file"`
	Rank int `json:"rank"`
}

func (p Position) OnBoard() bool {
	return p.File >= 0 && p.File <= 7 && p.Rank >= 0 && p.Rank <= 7
}

// Square converts an on-board position back to a Square.
func (p Position) Square() (Square, bool) {
	if !p.OnBoard() {
		return Square{}, false
	}
	return Square{file: int8(p.File), rank: int8(p.Rank)}, true
}
