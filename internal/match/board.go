package match

import (
	"fmt"
	"sort"

	"github.com/park285/cheese-vrchess/internal/chess"
	"github.com/park285/cheese-vrchess/internal/domain"
)

// Board is the physical piece bookkeeping mirrored next to the rules engine.
// It is what the presentation layer animates; only MatchState mutates it.
type Board struct {
	pieces   []*domain.Piece
	at       map[domain.Square]*domain.Piece
	captured map[domain.Color]int
}

func NewBoard(placements []chess.Placement) *Board {
	b := &Board{
		at:       make(map[domain.Square]*domain.Piece, len(placements)),
		captured: map[domain.Color]int{},
	}
	for i, pl := range placements {
		p := &domain.Piece{ID: i + 1, Color: pl.Color, Type: pl.Type, Pos: pl.Square.Position()}
		b.pieces = append(b.pieces, p)
		b.at[pl.Square] = p
	}
	return b
}

// At returns a copy of the active piece on sq.
func (b *Board) At(sq domain.Square) (domain.Piece, bool) {
	p, ok := b.at[sq]
	if !ok {
		return domain.Piece{}, false
	}
	return *p, true
}

// Pieces returns copies of every piece, captured ones included, ordered by ID.
func (b *Board) Pieces() []domain.Piece {
	out := make([]domain.Piece, 0, len(b.pieces))
	for _, p := range b.pieces {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *Board) ActiveCount(c domain.Color) int {
	n := 0
	for _, p := range b.at {
		if p.Color == c {
			n++
		}
	}
	return n
}

// holdingPosition parks the n-th captured piece of a color beside the board:
// white pieces to the left of file a, black pieces to the right of file h.
func holdingPosition(c domain.Color, n int) domain.Position {
	if c == domain.White {
		return domain.Position{File: -1 - n/8, Rank: n % 8}
	}
	return domain.Position{File: 8 + n/8, Rank: n % 8}
}

type relocation struct {
	piece *domain.Piece
	to    domain.Square
}

// Apply relocates the pieces of mv. Every relocation is validated before any
// piece moves, so a failure leaves the board untouched.
func (b *Board) Apply(mv chess.Move) error {
	mover, ok := b.at[mv.From]
	if !ok {
		return fmt.Errorf("%w: no piece on %s", ErrDesync, mv.From)
	}

	var victim *domain.Piece
	switch {
	case mv.EnPassant:
		sq, err := domain.NewSquare(mv.To.File(), mv.From.Rank())
		if err != nil {
			return fmt.Errorf("%w: en passant square: %v", ErrDesync, err)
		}
		victim = b.at[sq]
	case mv.Capture:
		victim = b.at[mv.To]
	default:
		if _, occupied := b.at[mv.To]; occupied {
			return fmt.Errorf("%w: %s occupied on a quiet move", ErrDesync, mv.To)
		}
	}
	if mv.Capture && (victim == nil || victim.Color == mover.Color) {
		return fmt.Errorf("%w: no capturable piece for %s", ErrDesync, mv.UCI())
	}

	moves := []relocation{{piece: mover, to: mv.To}}
	if mv.Castle != nil {
		rook, ok := b.at[mv.Castle.From]
		if !ok || rook.Color != mover.Color || rook.Type != domain.Rook || mover.Type != domain.King {
			return fmt.Errorf("%w: castle companion %s unresolved", ErrDesync, mv.Castle.From)
		}
		if occ, busy := b.at[mv.Castle.To]; busy && occ != mover {
			return fmt.Errorf("%w: castle companion destination %s occupied", ErrDesync, mv.Castle.To)
		}
		moves = append(moves, relocation{piece: rook, to: mv.Castle.To})
	}

	if victim != nil {
		from, _ := victim.Pos.Square()
		delete(b.at, from)
		victim.Captured = true
		victim.Pos = holdingPosition(victim.Color, b.captured[victim.Color])
		b.captured[victim.Color]++
	}
	for _, r := range moves {
		from, _ := r.piece.Pos.Square()
		delete(b.at, from)
	}
	for _, r := range moves {
		r.piece.Pos = r.to.Position()
		b.at[r.to] = r.piece
	}
	if mv.Promotion != domain.NoPieceType {
		mover.Type = mv.Promotion
	}
	return nil
}
