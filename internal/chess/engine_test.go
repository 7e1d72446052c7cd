package chess

import (
	"errors"
	"testing"

	"github.com/park285/cheese-vrchess/internal/domain"
)

func sq(s string) domain.Square { return domain.MustSquare(s) }

func TestLegalMovesFromOpeningSquare(t *testing.T) {
	g := NewGame()
	moves := g.LegalMoves(sq("e2"))
	if len(moves) != 2 {
		t.Fatalf("expected 2 moves from e2, got %d", len(moves))
	}
	targets := map[string]bool{}
	for _, mv := range moves {
		targets[mv.To.String()] = true
		if mv.Capture || mv.Castle != nil {
			t.Fatalf("unexpected metadata on %s", mv.UCI())
		}
	}
	if !targets["e3"] || !targets["e4"] {
		t.Fatalf("unexpected targets: %v", targets)
	}
	if got := len(g.LegalMoves(sq("e4"))); got != 0 {
		t.Fatalf("expected no moves from empty square, got %d", got)
	}
	if got := len(g.AllLegalMoves()); got != 20 {
		t.Fatalf("expected 20 opening moves, got %d", got)
	}
}

func TestApplyRejectsIllegalMove(t *testing.T) {
	g := NewGame()
	if _, err := g.Apply(sq("e2"), sq("e5"), domain.NoPieceType); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if g.Turn() != domain.White {
		t.Fatalf("turn should not change after rejected move")
	}
}

func TestApplyReportsCaptureAndTurn(t *testing.T) {
	g := NewGame()
	for _, uci := range [][2]string{{"e2", "e4"}, {"d7", "d5"}} {
		if _, err := g.Apply(sq(uci[0]), sq(uci[1]), domain.NoPieceType); err != nil {
			t.Fatalf("Apply %v: %v", uci, err)
		}
	}
	mv, err := g.Apply(sq("e4"), sq("d5"), domain.NoPieceType)
	if err != nil {
		t.Fatalf("Apply capture: %v", err)
	}
	if !mv.Capture {
		t.Fatalf("expected capture metadata")
	}
	if g.Turn() != domain.Black {
		t.Fatalf("expected black to move")
	}
}

func TestCastlingCompanion(t *testing.T) {
	g, err := NewGameFromFEN("r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	if err != nil {
		t.Fatalf("fen: %v", err)
	}
	mv, err := g.Apply(sq("e1"), sq("g1"), domain.NoPieceType)
	if err != nil {
		t.Fatalf("castle: %v", err)
	}
	if mv.Castle == nil || mv.Castle.From != sq("h1") || mv.Castle.To != sq("f1") {
		t.Fatalf("unexpected companion: %+v", mv.Castle)
	}
	mv, err = g.Apply(sq("e8"), sq("c8"), domain.NoPieceType)
	if err != nil {
		t.Fatalf("castle black: %v", err)
	}
	if mv.Castle == nil || mv.Castle.From != sq("a8") || mv.Castle.To != sq("d8") {
		t.Fatalf("unexpected queen-side companion: %+v", mv.Castle)
	}
}

func TestPromotionDefaultsToQueen(t *testing.T) {
	g, err := NewGameFromFEN("8/P6k/8/8/8/8/8/K7 w - - 0 1")
	if err != nil {
		t.Fatalf("fen: %v", err)
	}
	mv, err := g.Apply(sq("a7"), sq("a8"), domain.NoPieceType)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if mv.Promotion != domain.Queen {
		t.Fatalf("expected queen promotion, got %q", mv.Promotion.String())
	}
}

func TestUnderPromotion(t *testing.T) {
	g, err := NewGameFromFEN("8/P6k/8/8/8/8/8/K7 w - - 0 1")
	if err != nil {
		t.Fatalf("fen: %v", err)
	}
	mv, err := g.Apply(sq("a7"), sq("a8"), domain.Knight)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if mv.Promotion != domain.Knight {
		t.Fatalf("expected knight promotion, got %q", mv.Promotion.String())
	}
}

func TestStatusAfterFoolsMate(t *testing.T) {
	g := NewGame()
	for _, m := range [][2]string{{"f2", "f3"}, {"e7", "e5"}, {"g2", "g4"}, {"d8", "h4"}} {
		if _, err := g.Apply(sq(m[0]), sq(m[1]), domain.NoPieceType); err != nil {
			t.Fatalf("Apply %v: %v", m, err)
		}
	}
	st := g.Status()
	if !st.Over || st.Winner != domain.Black {
		t.Fatalf("expected black win, got %+v", st)
	}
	if _, err := g.Apply(sq("a2"), sq("a3"), domain.NoPieceType); !errors.Is(err, ErrGameOver) {
		t.Fatalf("expected ErrGameOver, got %v", err)
	}
}

func TestPlacementsStartPosition(t *testing.T) {
	ps := NewGame().Placements()
	if len(ps) != 32 {
		t.Fatalf("expected 32 placements, got %d", len(ps))
	}
	if ps[0].Square != sq("a1") || ps[0].Type != domain.Rook || ps[0].Color != domain.White {
		t.Fatalf("unexpected first placement %+v", ps[0])
	}
	if last := ps[len(ps)-1]; last.Square != sq("h8") || last.Color != domain.Black {
		t.Fatalf("unexpected last placement %+v", last)
	}
}
