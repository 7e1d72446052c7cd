package lobby

import (
	"strings"
	"sync"
	"time"

	"github.com/park285/cheese-vrchess/internal/chess"
	"github.com/park285/cheese-vrchess/internal/domain"
	"github.com/park285/cheese-vrchess/internal/obslog"
	"github.com/park285/cheese-vrchess/pkg/chessdto"
	"go.uber.org/zap"
)

type Options struct {
	RedirectURL string
	Roster      AvatarPicker
	Recorder    PreparationRecorder
	// OnPhase is called with the lock held whenever the lobby phase changes.
	OnPhase func(Snapshot)
	Now     func() time.Time
}

// Coordinator is the session authority for one lobby. Every handler takes the
// lobby lock, so events for a lobby are processed one at a time.
type Coordinator struct {
	mu      sync.Mutex
	lobby   Lobby
	opts    Options
	retired bool
}

func NewCoordinator(id string, opts Options) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{lobby: newLobby(id), opts: opts}
}

func (c *Coordinator) ID() string { return c.lobby.ID }

// OnConnect assigns the connection a seat, white first, or redirects it.
func (c *Coordinator) OnConnect(conn Conn) (domain.Color, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l := &c.lobby

	if s := l.seatOf(conn); s != nil {
		return s.Color, nil
	}
	if c.retired {
		c.redirect(conn, "lobby retired")
		return "", ErrRetired
	}
	var seat *Seat
	if l.PlayerCount < l.PlayerLimit {
		switch {
		case l.White.empty():
			seat = &l.White
		case l.Black.empty():
			seat = &l.Black
		}
	}
	if seat == nil {
		obslog.L().Info("lobby_connect_rejected", zap.String("lobby", l.ID), zap.String("conn", conn.ID()),
			zap.Int("player_count", l.PlayerCount), zap.Int("player_limit", l.PlayerLimit))
		c.redirect(conn, "lobby full")
		return "", ErrLobbyFull
	}

	if l.PlayerCount == 0 {
		l.sessionStart = c.opts.Now()
	}
	l.PlayerCount++
	seat.conn = conn
	obslog.L().Info("lobby_connect", zap.String("lobby", l.ID), zap.String("conn", conn.ID()),
		zap.String("color", string(seat.Color)), zap.Int("player_count", l.PlayerCount))
	if err := seat.send(chessdto.EventInitiate, seat.Color); err != nil {
		obslog.L().Warn("lobby_send_error", zap.String("event", chessdto.EventInitiate), zap.Error(err))
	}
	c.settleLocked()
	return seat.Color, nil
}

// OnSelectionSubmitted merges a seat configuration and marks the seat ready.
// A non-human opponent chosen by white turns black into an automated seat.
func (c *Coordinator) OnSelectionSubmitted(conn Conn, data chessdto.SelectionData) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	l := &c.lobby

	seat := l.seatOf(conn)
	if seat == nil {
		return ErrUnknownConn
	}
	if l.prepareSent {
		obslog.L().Debug("lobby_selection_ignored", zap.String("lobby", l.ID), zap.String("color", string(seat.Color)))
		return ErrOutOfOrder
	}
	data.Normalize()
	if err := data.Validate(); err != nil {
		obslog.L().Warn("lobby_selection_invalid", zap.String("lobby", l.ID), zap.Error(err))
		return err
	}

	var tier chess.Tier
	if seat.Color == domain.White && !data.OpponentIsHuman() {
		t, err := chess.ParseTier(data.Opponent)
		if err != nil {
			obslog.L().Warn("lobby_selection_invalid", zap.String("lobby", l.ID), zap.Error(err))
			return chessdto.DomainError{Code: chessdto.CodeUnknownOpponent, Message: err.Error()}
		}
		tier = t
	}

	seat.Avatar = data.Avatar
	seat.Controller = data.Controller
	if seat.Color == domain.White {
		seat.Opponent = chessdto.OpponentHuman
		if tier != "" {
			seat.Opponent = string(tier)
		}
	}
	seat.Ready = true

	if tier != "" {
		c.automateBlackLocked(tier)
	}

	obslog.L().Info("lobby_ready", zap.String("lobby", l.ID), zap.String("color", string(seat.Color)),
		zap.String("avatar", seat.Avatar), zap.String("opponent", seat.Opponent))
	if err := seat.send(chessdto.EventReady, seat.View()); err != nil {
		obslog.L().Warn("lobby_send_error", zap.String("event", chessdto.EventReady), zap.Error(err))
	}
	c.maybePrepareLocked()
	c.settleLocked()
	return nil
}

// automateBlackLocked replaces the black seat with an automated opponent that
// is ready and prepared from the start.
// 흑 좌석에 이미 사람이 있으면 좌석을 잃고 redirect 된다.
func (c *Coordinator) automateBlackLocked(tier chess.Tier) {
	l := &c.lobby
	if l.Black.human() {
		late := l.Black.conn
		obslog.L().Info("lobby_black_superseded", zap.String("lobby", l.ID), zap.String("conn", late.ID()),
			zap.String("tier", string(tier)))
		l.Black.conn = nil
		l.PlayerCount--
		c.redirect(late, "seat taken by automated opponent")
	}
	avatar, controller := "robot", "ai"
	if c.opts.Roster != nil {
		avatar, controller = c.opts.Roster.Pick(string(tier))
	}
	l.Black = Seat{
		Color:      domain.Black,
		Avatar:     avatar,
		Controller: controller,
		Automated:  true,
		Tier:       string(tier),
		Ready:      true,
		Prepared:   true,
	}
	l.PlayerLimit = 1
}

func (c *Coordinator) maybePrepareLocked() {
	l := &c.lobby
	if l.prepareSent || l.White.empty() || l.Black.empty() || !l.White.Ready || !l.Black.Ready {
		return
	}
	l.prepareSent = true
	c.broadcastPairLocked(chessdto.EventPrepare)
}

// OnPreparationDone marks the seat prepared and starts play once both are.
func (c *Coordinator) OnPreparationDone(conn Conn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	l := &c.lobby

	seat := l.seatOf(conn)
	if seat == nil {
		return ErrUnknownConn
	}
	if !l.prepareSent || l.started {
		return ErrOutOfOrder
	}
	seat.Prepared = true
	elapsed := c.opts.Now().Sub(l.sessionStart)
	if c.opts.Recorder != nil {
		c.opts.Recorder.Preparation(elapsed)
	}
	obslog.L().Info("lobby_prepared", zap.String("lobby", l.ID), zap.String("color", string(seat.Color)),
		zap.Duration("since_session_start", elapsed))

	if l.White.Prepared && l.Black.Prepared {
		l.started = true
		l.turn = domain.White
		c.broadcastPairLocked(chessdto.EventStart)
	}
	c.settleLocked()
	return nil
}

// OnMove relays a move from the seat to move to the other seat. Moves for an
// automated seat arrive from the human seat hosting it. Legality is not
// re-checked here.
func (c *Coordinator) OnMove(conn Conn, rec domain.MoveRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	l := &c.lobby

	seat := l.seatOf(conn)
	if seat == nil {
		return ErrUnknownConn
	}
	if !l.started {
		return ErrNotPlaying
	}
	mover := l.seat(l.turn)
	if mover != seat && !(mover.Automated && seat.Color == l.turn.Opponent()) {
		obslog.L().Debug("lobby_move_out_of_turn", zap.String("lobby", l.ID),
			zap.String("from", string(seat.Color)), zap.String("turn", string(l.turn)))
		return ErrOutOfTurn
	}
	if err := rec.Validate(); err != nil {
		obslog.L().Warn("lobby_move_invalid", zap.String("lobby", l.ID), zap.Error(err))
		return err
	}

	other := l.seat(l.turn.Opponent())
	if other != seat {
		if err := other.send(chessdto.EventOtherPlayerMove, rec); err != nil {
			obslog.L().Warn("lobby_send_error", zap.String("event", chessdto.EventOtherPlayerMove), zap.Error(err))
		}
	}
	obslog.L().Debug("lobby_move_relayed", zap.String("lobby", l.ID), zap.String("mover", string(l.turn)),
		zap.String("move", rec.UCI()))
	l.turn = l.turn.Opponent()
	return nil
}

// OnDisconnect clears the seat of conn and tells a surviving human to reset.
// The lobby returns to its initial state when nobody is left.
func (c *Coordinator) OnDisconnect(conn Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l := &c.lobby

	seat := l.seatOf(conn)
	if seat == nil {
		return
	}
	color := seat.Color
	survivor := l.seat(color.Opponent())
	if survivor.human() {
		if err := survivor.send(chessdto.EventGameReset, color); err != nil {
			obslog.L().Warn("lobby_send_error", zap.String("event", chessdto.EventGameReset), zap.Error(err))
		}
	}
	*seat = newSeat(color)
	conn.Close("disconnected")
	l.PlayerCount--
	obslog.L().Info("lobby_disconnect", zap.String("lobby", l.ID), zap.String("conn", conn.ID()),
		zap.String("color", string(color)), zap.Int("player_count", l.PlayerCount))

	if l.PlayerCount <= 0 {
		// 이전 phase 유지: settleLocked가 EMPTY 전이를 통지하도록
		prev := l.Phase
		c.lobby = newLobby(l.ID)
		c.lobby.Phase = prev
	} else {
		survivor.Ready, survivor.Prepared = false, false
		l.prepareSent, l.started = false, false
	}
	c.settleLocked()
}

func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// retireIfEmpty marks an empty lobby unusable so it can be dropped.
func (c *Coordinator) retireIfEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lobby.phase() != PhaseEmpty {
		return false
	}
	c.retired = true
	return true
}

func (c *Coordinator) snapshotLocked() Snapshot {
	l := &c.lobby
	return Snapshot{
		ID:          l.ID,
		Phase:       l.Phase,
		PlayerCount: l.PlayerCount,
		PlayerLimit: l.PlayerLimit,
		Turn:        l.turn,
		White:       l.White.snapshot(),
		Black:       l.Black.snapshot(),
	}
}

// broadcastPairLocked sends [self, opponent] views to every human seat.
func (c *Coordinator) broadcastPairLocked(event string) {
	l := &c.lobby
	for _, s := range []*Seat{&l.White, &l.Black} {
		if !s.human() {
			continue
		}
		opp := l.seat(s.Color.Opponent())
		if err := s.send(event, []chessdto.SeatView{s.View(), opp.View()}); err != nil {
			obslog.L().Warn("lobby_send_error", zap.String("event", event), zap.Error(err))
		}
	}
}

func (c *Coordinator) redirect(conn Conn, reason string) {
	if err := conn.Send(chessdto.EventRedirect, c.opts.RedirectURL); err != nil {
		obslog.L().Warn("lobby_send_error", zap.String("event", chessdto.EventRedirect), zap.Error(err))
	}
	conn.Close(reason)
}

func (c *Coordinator) settleLocked() {
	l := &c.lobby
	next := l.phase()
	if next == l.Phase {
		return
	}
	obslog.L().Info("lobby_phase", zap.String("lobby", l.ID),
		zap.String("from", strings.ToLower(string(l.Phase))), zap.String("to", strings.ToLower(string(next))))
	l.Phase = next
	if c.opts.OnPhase != nil {
		c.opts.OnPhase(c.snapshotLocked())
	}
}
