package match

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/park285/cheese-vrchess/internal/chess"
	"github.com/park285/cheese-vrchess/internal/domain"
	"github.com/park285/cheese-vrchess/internal/obslog"
	"go.uber.org/zap"
)

var (
	// ErrDesync means board bookkeeping and the rules engine disagree. It is
	// fatal to the match.
	ErrDesync     = errors.New("board bookkeeping out of sync with rules engine")
	ErrTerminated = errors.New("match terminated")
	ErrMatchOver  = errors.New("match is over")
	ErrOutOfTurn  = errors.New("remote move while a local seat is to move")
)

// Phase of the per-match state machine.
type Phase string

const (
	PhaseAwaitingSelection Phase = "AWAITING_SELECTION"
	PhaseSquareSelected    Phase = "SQUARE_SELECTED"
	PhaseGameOver          Phase = "GAME_OVER"
	// PhaseAborted is terminal: the match was terminated or failed closed.
	PhaseAborted Phase = "ABORTED"
)

func (p Phase) Terminal() bool { return p == PhaseGameOver || p == PhaseAborted }

type ControllerKind int

const (
	LocalHuman ControllerKind = iota
	RemoteHuman
	Automated
)

func (k ControllerKind) String() string {
	switch k {
	case LocalHuman:
		return "local"
	case RemoteHuman:
		return "remote"
	case Automated:
		return "automated"
	}
	return "unknown"
}

// MoveSelector picks a move for an automated seat (see chess.Selector).
type MoveSelector interface {
	SelectMove(legal []chess.Move) (chess.Move, error)
}

type Controller struct {
	Kind     ControllerKind
	Tier     string
	Selector MoveSelector
}

// LatencyRecorder receives automated move selection latency per tier.
type LatencyRecorder interface {
	AutomatedMove(tier string, elapsed time.Duration)
}

type Options struct {
	Controllers map[domain.Color]Controller
	// OnMove receives every locally produced MoveRecord (human or automated)
	// for relay. It is called after the state lock is released.
	OnMove func(domain.MoveRecord)
	// OnGameOver fires once when the engine reports the end of the game.
	OnGameOver func(chess.Status)
	Recorder   LatencyRecorder
	// Promotion is the piece chosen when a local pawn promotes; queen when unset.
	Promotion domain.PieceType
}

// MatchState is the authoritative turn-by-turn state machine for one side of a match.
type MatchState struct {
	mu          sync.Mutex
	engine      chess.Engine
	board       *Board
	controllers map[domain.Color]Controller
	mover       domain.Color
	phase       Phase

	selected    domain.Square
	hasSelected bool
	legal       []chess.Move

	status     chess.Status
	err        error
	terminated atomic.Bool

	onMove     func(domain.MoveRecord)
	onGameOver func(chess.Status)
	recorder   LatencyRecorder
	promotion  domain.PieceType
	outbox     []domain.MoveRecord
	overFired  bool
}

func New(engine chess.Engine, opts Options) (*MatchState, error) {
	if engine == nil {
		return nil, errors.New("rules engine required")
	}
	ctrls := make(map[domain.Color]Controller, 2)
	for _, c := range []domain.Color{domain.White, domain.Black} {
		ctrl, ok := opts.Controllers[c]
		if !ok {
			return nil, fmt.Errorf("missing controller for %s", c)
		}
		if ctrl.Kind == Automated && ctrl.Selector == nil {
			return nil, fmt.Errorf("automated %s seat needs a selector", c)
		}
		ctrls[c] = ctrl
	}
	promo := opts.Promotion
	if promo == domain.NoPieceType {
		promo = domain.Queen
	}
	return &MatchState{
		engine:      engine,
		board:       NewBoard(engine.Placements()),
		controllers: ctrls,
		mover:       engine.Turn(),
		phase:       PhaseAwaitingSelection,
		onMove:      opts.OnMove,
		onGameOver:  opts.OnGameOver,
		recorder:    opts.Recorder,
		promotion:   promo,
	}, nil
}

// Start runs the automated loop when the first mover is automated. It is a
// no-op otherwise.
func (m *MatchState) Start() error {
	m.mu.Lock()
	err := m.settleLocked()
	out, over := m.drainLocked()
	m.mu.Unlock()
	m.flush(out, over)
	return err
}

// ProcessSelection handles a field-selection signal from the local UI.
// Selections that do not form a move are silent no-ops; an error is only
// returned when the match fails.
func (m *MatchState) ProcessSelection(sq domain.Square) error {
	m.mu.Lock()
	err := m.processLocked(sq)
	out, over := m.drainLocked()
	m.mu.Unlock()
	m.flush(out, over)
	return err
}

// ApplyRemoteMove replays the opponent's MoveRecord without re-deriving
// legality on this side, then advances the turn.
func (m *MatchState) ApplyRemoteMove(rec domain.MoveRecord) error {
	m.mu.Lock()
	err := m.applyRemoteLocked(rec)
	out, over := m.drainLocked()
	m.mu.Unlock()
	m.flush(out, over)
	return err
}

// AdvanceTurn hands the turn to the other seat, running automated seats
// until a human is to move or the game ends.
func (m *MatchState) AdvanceTurn() error {
	m.mu.Lock()
	err := m.advanceLocked()
	out, over := m.drainLocked()
	m.mu.Unlock()
	m.flush(out, over)
	return err
}

// Terminate cancels the match; an automated loop in flight stops before its next move.
func (m *MatchState) Terminate() {
	m.terminated.Store(true)
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.phase.Terminal() {
		m.abortLocked(ErrTerminated)
	}
}

func (m *MatchState) processLocked(sq domain.Square) error {
	if m.phase.Terminal() {
		return nil
	}
	if m.controllers[m.mover].Kind != LocalHuman {
		return nil
	}
	if !m.hasSelected {
		if p, ok := m.board.At(sq); ok && p.Color == m.mover {
			m.selectLocked(sq)
			return nil
		}
		m.resetMoveProperties()
		return nil
	}
	if mv, ok := m.targetLocked(sq); ok {
		if err := m.playLocked(mv.From, mv.To, mv.Promotion, nil); err != nil {
			return err
		}
		return m.advanceLocked()
	}
	if p, ok := m.board.At(sq); ok && p.Color == m.mover {
		m.selectLocked(sq)
		return nil
	}
	m.resetMoveProperties()
	return nil
}

func (m *MatchState) applyRemoteLocked(rec domain.MoveRecord) error {
	if m.phase.Terminal() {
		return ErrMatchOver
	}
	if m.controllers[m.mover].Kind != RemoteHuman {
		return ErrOutOfTurn
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	m.resetMoveProperties()
	if err := m.playLocked(rec.From, rec.To, rec.Promotion, &rec); err != nil {
		return err
	}
	return m.advanceLocked()
}

func (m *MatchState) selectLocked(sq domain.Square) {
	m.selected = sq
	m.hasSelected = true
	m.legal = m.engine.LegalMoves(sq)
	m.phase = PhaseSquareSelected
}

// resetMoveProperties clears the selection together with its cached legal moves.
func (m *MatchState) resetMoveProperties() {
	m.selected = domain.Square{}
	m.hasSelected = false
	m.legal = nil
	if !m.phase.Terminal() {
		m.phase = PhaseAwaitingSelection
	}
}

// targetLocked resolves a destination against the cached legal moves,
// preferring the configured promotion piece when several moves share it.
func (m *MatchState) targetLocked(sq domain.Square) (chess.Move, bool) {
	var found *chess.Move
	for i := range m.legal {
		mv := m.legal[i]
		if mv.To != sq {
			continue
		}
		if mv.Promotion == domain.NoPieceType || mv.Promotion == m.promotion {
			return mv, true
		}
		if found == nil {
			found = &mv
		}
	}
	if found != nil {
		return *found, true
	}
	return chess.Move{}, false
}

// playLocked applies one move to the engine and the board. remote carries the
// sender's record on the relay path; local moves are emitted for relay.
func (m *MatchState) playLocked(from, to domain.Square, promo domain.PieceType, remote *domain.MoveRecord) error {
	applied, err := m.engine.Apply(from, to, promo)
	if err != nil {
		return m.abortLocked(fmt.Errorf("%w: %v", ErrDesync, err))
	}
	if remote != nil && remote.Castle != nil {
		if applied.Castle == nil || *applied.Castle != *remote.Castle {
			return m.abortLocked(fmt.Errorf("%w: castle companion mismatch for %s", ErrDesync, remote.UCI()))
		}
	}
	if err := m.board.Apply(applied); err != nil {
		return m.abortLocked(err)
	}
	rec := domain.MoveRecord{From: applied.From, To: applied.To, Promotion: applied.Promotion}
	if applied.Castle != nil {
		c := *applied.Castle
		rec.Castle = &c
	}
	obslog.L().Debug("match_move_applied",
		zap.String("mover", string(m.mover)),
		zap.String("move", rec.UCI()),
		zap.Bool("capture", applied.Capture),
		zap.Bool("castle", applied.Castle != nil),
		zap.Bool("remote", remote != nil),
	)
	if remote == nil {
		m.outbox = append(m.outbox, rec)
	}
	return nil
}

func (m *MatchState) advanceLocked() error {
	if m.phase.Terminal() {
		return nil
	}
	m.resetMoveProperties()
	if m.finishIfOverLocked() {
		return nil
	}
	m.mover = m.mover.Opponent()
	return m.settleLocked()
}

// settleLocked plays automated seats back to back until a human is to move.
func (m *MatchState) settleLocked() error {
	for m.controllers[m.mover].Kind == Automated {
		if m.terminated.Load() {
			return m.abortLocked(ErrTerminated)
		}
		if m.phase.Terminal() {
			return nil
		}
		if err := m.automatedMoveLocked(); err != nil {
			return err
		}
		m.resetMoveProperties()
		if m.finishIfOverLocked() {
			return nil
		}
		m.mover = m.mover.Opponent()
	}
	if !m.phase.Terminal() {
		m.phase = PhaseAwaitingSelection
	}
	return nil
}

func (m *MatchState) automatedMoveLocked() error {
	ctrl := m.controllers[m.mover]
	start := time.Now()
	mv, err := ctrl.Selector.SelectMove(m.engine.AllLegalMoves())
	elapsed := time.Since(start)
	if err != nil {
		obslog.L().Error("match_automated_move_error", zap.String("mover", string(m.mover)), zap.String("tier", ctrl.Tier), zap.Error(err))
		return m.abortLocked(err)
	}
	if m.recorder != nil && ctrl.Tier != "" {
		m.recorder.AutomatedMove(ctrl.Tier, elapsed)
	}
	return m.playLocked(mv.From, mv.To, mv.Promotion, nil)
}

func (m *MatchState) finishIfOverLocked() bool {
	st := m.engine.Status()
	if !st.Over {
		return false
	}
	m.status = st
	m.phase = PhaseGameOver
	obslog.L().Info("match_game_over", zap.String("winner", string(st.Winner)), zap.String("method", st.Method))
	return true
}

func (m *MatchState) abortLocked(err error) error {
	m.resetMoveProperties()
	m.phase = PhaseAborted
	m.err = err
	if !errors.Is(err, ErrTerminated) {
		obslog.L().Error("match_aborted", zap.Error(err))
	}
	return err
}

func (m *MatchState) drainLocked() ([]domain.MoveRecord, *chess.Status) {
	out := m.outbox
	m.outbox = nil
	var over *chess.Status
	if m.phase == PhaseGameOver && !m.overFired {
		m.overFired = true
		st := m.status
		over = &st
	}
	return out, over
}

func (m *MatchState) flush(out []domain.MoveRecord, over *chess.Status) {
	if m.onMove != nil {
		for _, rec := range out {
			m.onMove(rec)
		}
	}
	if over != nil && m.onGameOver != nil {
		m.onGameOver(*over)
	}
}

func (m *MatchState) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *MatchState) Mover() domain.Color {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mover
}

func (m *MatchState) Selected() (domain.Square, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selected, m.hasSelected
}

// LegalTargets lists the destinations highlighted for the current selection.
func (m *MatchState) LegalTargets() []domain.Square {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[domain.Square]bool, len(m.legal))
	var out []domain.Square
	for _, mv := range m.legal {
		if !seen[mv.To] {
			seen[mv.To] = true
			out = append(out, mv.To)
		}
	}
	return out
}

func (m *MatchState) Pieces() []domain.Piece {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.board.Pieces()
}

func (m *MatchState) PieceAt(sq domain.Square) (domain.Piece, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.board.At(sq)
}

func (m *MatchState) Status() chess.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Err is the reason the match aborted, if it did.
func (m *MatchState) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *MatchState) FEN() string { return m.engine.FEN() }
