package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidColor = errors.New("invalid color")

// Color identifies a side of the board and the seat that plays it.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) Valid() bool { return c == White || c == Black }

func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, nil
	case "black", "b":
		return Black, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidColor, s)
}

// PieceType is encoded on the wire with its lowercase letter.
type PieceType byte

const (
	NoPieceType PieceType = 0
	Pawn        PieceType = 'p'
	Knight      PieceType = 'n'
	Bishop      PieceType = 'b'
	Rook        PieceType = 'r'
	Queen       PieceType = 'q'
	King        PieceType = 'k'
)

func (p PieceType) String() string {
	if p == NoPieceType {
		return ""
	}
	return string(rune(p))
}

func ParsePieceType(s string) (PieceType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "p", "pawn":
		return Pawn, nil
	case "n", "knight":
		return Knight, nil
	case "b", "bishop":
		return Bishop, nil
	case "r", "rook":
		return Rook, nil
	case "q", "queen":
		return Queen, nil
	case "k", "king":
		return King, nil
	}
	return NoPieceType, fmt.Errorf("unknown piece type %q", s)
}

// Promotable reports whether a pawn may turn into p.
func (p PieceType) Promotable() bool {
	return p == Knight || p == Bishop || p == Rook || p == Queen
}

func (p PieceType) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *PieceType) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*p = NoPieceType
		return nil
	}
	v, err := ParsePieceType(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
