package chess

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotImplemented = errors.New("move selection policy not implemented")
	ErrNoLegalMoves   = errors.New("no legal moves to choose from")
	ErrUnknownTier    = errors.New("unknown difficulty tier")
)

// Tier is an automated opponent difficulty.
type Tier string

const (
	TierEasy         Tier = "easy"
	TierIntermediate Tier = "intermediate"
	TierExpert       Tier = "expert"
)

var Tiers = []Tier{TierEasy, TierIntermediate, TierExpert}

func ParseTier(s string) (Tier, error) {
	v := Tier(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case TierEasy, TierIntermediate, TierExpert:
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
}

// Selector picks one move for an automated seat.
type Selector struct {
	tier   Tier
	randMu sync.Mutex
	rand   *rand.Rand
}

func NewSelector(tier Tier, seed int64) (*Selector, error) {
	if _, err := ParseTier(string(tier)); err != nil {
		return nil, err
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Selector{tier: tier, rand: rand.New(rand.NewSource(seed))}, nil
}

func (s *Selector) Tier() Tier { return s.tier }

// SelectMove never returns a zero Move with a nil error.
func (s *Selector) SelectMove(legal []Move) (Move, error) {
	switch s.tier {
	case TierEasy:
		return s.selectEasy(legal)
	case TierIntermediate, TierExpert:
		return Move{}, fmt.Errorf("%w: tier %s", ErrNotImplemented, s.tier)
	}
	return Move{}, fmt.Errorf("%w: %q", ErrUnknownTier, s.tier)
}

// selectEasy draws uniformly, then lets the last capture in iteration order
// override the draw.
func (s *Selector) selectEasy(legal []Move) (Move, error) {
	if len(legal) == 0 {
		return Move{}, ErrNoLegalMoves
	}
	s.randMu.Lock()
	idx := s.rand.Intn(len(legal))
	s.randMu.Unlock()

	choice := legal[idx]
	for _, mv := range legal {
		if mv.Capture {
			choice = mv
		}
	}
	return choice, nil
}
