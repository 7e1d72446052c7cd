package chess

import (
	"errors"
	"testing"
)

func TestEasyPrefersLastCapture(t *testing.T) {
	legal := []Move{
		{From: sq("a2"), To: sq("a3")},
		{From: sq("b2"), To: sq("c3"), Capture: true},
		{From: sq("c2"), To: sq("c3")},
		{From: sq("d2"), To: sq("e3"), Capture: true},
		{From: sq("h2"), To: sq("h3")},
	}
	for seed := int64(1); seed <= 20; seed++ {
		s, err := NewSelector(TierEasy, seed)
		if err != nil {
			t.Fatalf("NewSelector: %v", err)
		}
		mv, err := s.SelectMove(legal)
		if err != nil {
			t.Fatalf("SelectMove: %v", err)
		}
		if mv.From != sq("d2") || mv.To != sq("e3") {
			t.Fatalf("seed %d: expected last capture d2e3, got %s", seed, mv.UCI())
		}
	}
}

func TestEasyPicksFromLegalSet(t *testing.T) {
	legal := []Move{
		{From: sq("a2"), To: sq("a3")},
		{From: sq("b2"), To: sq("b3")},
		{From: sq("c2"), To: sq("c3")},
	}
	s, err := NewSelector(TierEasy, 42)
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		mv, err := s.SelectMove(legal)
		if err != nil {
			t.Fatalf("SelectMove: %v", err)
		}
		seen[mv.UCI()] = true
	}
	for _, mv := range legal {
		if !seen[mv.UCI()] {
			t.Fatalf("move %s never chosen in 200 draws", mv.UCI())
		}
	}
}

func TestEasyNoLegalMoves(t *testing.T) {
	s, _ := NewSelector(TierEasy, 1)
	if _, err := s.SelectMove(nil); !errors.Is(err, ErrNoLegalMoves) {
		t.Fatalf("expected ErrNoLegalMoves, got %v", err)
	}
}

func TestReservedTiersFailClosed(t *testing.T) {
	legal := []Move{{From: sq("a2"), To: sq("a3")}}
	for _, tier := range []Tier{TierIntermediate, TierExpert} {
		s, err := NewSelector(tier, 1)
		if err != nil {
			t.Fatalf("NewSelector(%s): %v", tier, err)
		}
		mv, err := s.SelectMove(legal)
		if !errors.Is(err, ErrNotImplemented) {
			t.Fatalf("%s: expected ErrNotImplemented, got %v", tier, err)
		}
		if mv != (Move{}) {
			t.Fatalf("%s: expected zero move alongside error", tier)
		}
	}
}

func TestParseTier(t *testing.T) {
	if tier, err := ParseTier(" Easy "); err != nil || tier != TierEasy {
		t.Fatalf("ParseTier easy: %v %v", tier, err)
	}
	if _, err := ParseTier("grandmaster"); !errors.Is(err, ErrUnknownTier) {
		t.Fatalf("expected ErrUnknownTier, got %v", err)
	}
	if _, err := NewSelector("human", 1); err == nil {
		t.Fatalf("expected error for non-tier selector")
	}
}
