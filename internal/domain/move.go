package domain

import (
	"errors"
	"fmt"
)

var ErrInvalidMoveRecord = errors.New("invalid move record")

// Piece is a board occupant. Once Captured is set the piece never returns to play.
type Piece struct {
	ID       int       `json:"id"`
	Color    Color     `json:"color"`
	Type     PieceType `json:"type"`
	Pos      Position  `json:"pos"`
	Captured bool      `json:"captured"`
}

// Companion is the secondary relocation of a compound move (the rook in castling).
type Companion struct {
	From Square `json:"from"`
	To   Square `json:"to"`
}

// MoveRecord is the wire form of one applied move. It is passed by value and
// never modified after it is emitted.
type MoveRecord struct {
	From      Square     `json:"from"`
	To        Square     `json:"to"`
	Promotion PieceType  `json:"promotion,omitempty"`
	Castle    *Companion `json:"castle,omitempty"`
}

func (r MoveRecord) Validate() error {
	if r.From == r.To {
		return fmt.Errorf("%w: origin equals destination %s", ErrInvalidMoveRecord, r.From)
	}
	if r.Promotion != NoPieceType && !r.Promotion.Promotable() {
		return fmt.Errorf("%w: promotion to %q", ErrInvalidMoveRecord, r.Promotion.String())
	}
	if r.Castle != nil && r.Castle.From == r.Castle.To {
		return fmt.Errorf("%w: castle companion does not move", ErrInvalidMoveRecord)
	}
	return nil
}

// UCI renders the record in engine notation, e.g. "e7e8q".
func (r MoveRecord) UCI() string {
	return r.From.String() + r.To.String() + r.Promotion.String()
}

func (r MoveRecord) String() string { return r.UCI() }
