package chess

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-vrchess/internal/domain"
)

var (
	ErrIllegalMove = errors.New("illegal move")
	ErrGameOver    = errors.New("game already finished")
)

// Move is one legal move together with the metadata board bookkeeping needs.
type Move struct {
	From      domain.Square
	To        domain.Square
	Promotion domain.PieceType
	Capture   bool
	EnPassant bool
	Castle    *domain.Companion
}

func (m Move) UCI() string { return m.From.String() + m.To.String() + m.Promotion.String() }

// Status is the end-of-game signal. Winner is empty for draws and running games.
type Status struct {
	Over   bool
	Winner domain.Color
	Method string
}

// Placement is one occupied square of the current position.
type Placement struct {
	Square domain.Square
	Color  domain.Color
	Type   domain.PieceType
}

// Engine is the rules collaborator: legal move generation, move application and
// end-of-game detection. Callers treat it as authoritative.
type Engine interface {
	LegalMoves(from domain.Square) []Move
	AllLegalMoves() []Move
	Apply(from, to domain.Square, promo domain.PieceType) (Move, error)
	Status() Status
	Turn() domain.Color
	FEN() string
	Placements() []Placement
}

// Game implements Engine on top of corentings/chess.
type Game struct {
	mu   sync.Mutex
	game *nchess.Game
}

var _ Engine = (*Game)(nil)

func NewGame() *Game {
	return &Game{game: nchess.NewGame()}
}

func NewGameFromFEN(fen string) (*Game, error) {
	opt, err := nchess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	return &Game{game: nchess.NewGame(opt)}, nil
}

func (g *Game) LegalMoves(from domain.Square) []Move {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Move
	for _, mv := range g.legalLocked() {
		if mv.From == from {
			out = append(out, mv)
		}
	}
	return out
}

func (g *Game) AllLegalMoves() []Move {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.legalLocked()
}

// Apply plays from->to. A pawn reaching the last rank without an explicit
// promotion choice promotes to a queen.
func (g *Game) Apply(from, to domain.Square, promo domain.PieceType) (Move, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.game.Outcome() != nchess.NoOutcome {
		return Move{}, ErrGameOver
	}

	var matched *Move
	legal := g.legalLocked()
	for i := range legal {
		mv := legal[i]
		if mv.From != from || mv.To != to {
			continue
		}
		if mv.Promotion != domain.NoPieceType {
			want := promo
			if want == domain.NoPieceType {
				want = domain.Queen
			}
			if mv.Promotion != want {
				continue
			}
		}
		matched = &mv
		break
	}
	if matched == nil {
		return Move{}, fmt.Errorf("%w: %s%s%s", ErrIllegalMove, from, to, promo)
	}
	if err := g.game.PushNotationMove(matched.UCI(), nchess.UCINotation{}, nil); err != nil {
		return Move{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	return *matched, nil
}

func (g *Game) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := Status{}
	switch g.game.Outcome() {
	case nchess.WhiteWon:
		st.Over, st.Winner = true, domain.White
	case nchess.BlackWon:
		st.Over, st.Winner = true, domain.Black
	case nchess.Draw:
		st.Over = true
	default:
		return st
	}
	st.Method = fmt.Sprint(g.game.Method())
	return st
}

func (g *Game) Turn() domain.Color {
	g.mu.Lock()
	defer g.mu.Unlock()
	return colorFrom(g.game.Position().Turn())
}

func (g *Game) FEN() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.game.FEN()
}

// Placements lists occupied squares ordered a1..h8.
func (g *Game) Placements() []Placement {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Placement
	for sq, pc := range g.game.Position().Board().SquareMap() {
		if pc == nchess.NoPiece {
			continue
		}
		dsq, err := squareFrom(sq)
		if err != nil {
			continue
		}
		out = append(out, Placement{Square: dsq, Color: colorFrom(pc.Color()), Type: pieceTypeFrom(pc.Type())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Square.Index() < out[j].Square.Index() })
	return out
}

func (g *Game) legalLocked() []Move {
	valid := g.game.ValidMoves()
	out := make([]Move, 0, len(valid))
	for _, mv := range valid {
		from, err := squareFrom(mv.S1())
		if err != nil {
			continue
		}
		to, err := squareFrom(mv.S2())
		if err != nil {
			continue
		}
		m := Move{
			From:      from,
			To:        to,
			Promotion: pieceTypeFrom(mv.Promo()),
			EnPassant: mv.HasTag(nchess.EnPassant),
		}
		m.Capture = mv.HasTag(nchess.Capture) || m.EnPassant
		switch {
		case mv.HasTag(nchess.KingSideCastle):
			m.Castle = rookCompanion(from, true)
		case mv.HasTag(nchess.QueenSideCastle):
			m.Castle = rookCompanion(from, false)
		}
		out = append(out, m)
	}
	return out
}

// rookCompanion derives the rook relocation from the king's origin rank.
func rookCompanion(king domain.Square, kingSide bool) *domain.Companion {
	rank := king.Rank()
	fromFile, toFile := 0, 3
	if kingSide {
		fromFile, toFile = 7, 5
	}
	from, err1 := domain.NewSquare(fromFile, rank)
	to, err2 := domain.NewSquare(toFile, rank)
	if err1 != nil || err2 != nil {
		return nil
	}
	return &domain.Companion{From: from, To: to}
}

func squareFrom(sq nchess.Square) (domain.Square, error) {
	return domain.NewSquare(int(sq.File()), int(sq.Rank()))
}

func colorFrom(c nchess.Color) domain.Color {
	if c == nchess.Black {
		return domain.Black
	}
	return domain.White
}

func pieceTypeFrom(pt nchess.PieceType) domain.PieceType {
	switch pt {
	case nchess.King:
		return domain.King
	case nchess.Queen:
		return domain.Queen
	case nchess.Rook:
		return domain.Rook
	case nchess.Bishop:
		return domain.Bishop
	case nchess.Knight:
		return domain.Knight
	case nchess.Pawn:
		return domain.Pawn
	}
	return domain.NoPieceType
}
