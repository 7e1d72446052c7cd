package lobby

import (
	"time"

	"github.com/park285/cheese-vrchess/internal/domain"
	"github.com/park285/cheese-vrchess/pkg/chessdto"
)

// Phase is the lobby lifecycle state.
type Phase string

const (
	PhaseEmpty              Phase = "EMPTY"
	PhaseAwaitingSecondSeat Phase = "AWAITING_SECOND_SEAT"
	PhaseBothConnected      Phase = "BOTH_CONNECTED"
	PhaseReadyPending       Phase = "READY_PENDING"
	PhasePreparing          Phase = "PREPARING"
	PhasePlaying            Phase = "PLAYING"
)

// Conn is one peer connection as the coordinator sees it. Send must not block
// on the network.
type Conn interface {
	ID() string
	Send(event string, payload any) error
	Close(reason string)
}

// AvatarPicker dresses automated seats.
type AvatarPicker interface {
	Pick(tier string) (avatar, controller string)
}

// PreparationRecorder receives handshake latency samples.
type PreparationRecorder interface {
	Preparation(elapsed time.Duration)
}

// Seat is one color's slot. A seat holds either a human connection or an
// automated opponent, never both.
type Seat struct {
	Color domain.Color
	conn  Conn

	Avatar     string
	Controller string
	Opponent   string

	Automated bool
	Tier      string

	Ready    bool
	Prepared bool
}

func newSeat(c domain.Color) Seat { return Seat{Color: c} }

// View is the sanitized projection sent to peers.
func (s *Seat) View() chessdto.SeatView {
	return chessdto.SeatView{
		Color:      string(s.Color),
		Avatar:     s.Avatar,
		Controller: s.Controller,
		Opponent:   s.Opponent,
		Automated:  s.Automated,
		Tier:       s.Tier,
	}
}

func (s *Seat) empty() bool { return s.conn == nil && !s.Automated }

func (s *Seat) human() bool { return s.conn != nil }

func (s *Seat) send(event string, payload any) error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Send(event, payload)
}

// Lobby is the per-lobby state owned by one Coordinator.
type Lobby struct {
	ID          string
	White       Seat
	Black       Seat
	PlayerCount int
	PlayerLimit int
	Phase       Phase

	sessionStart time.Time
	prepareSent  bool
	started      bool
	turn         domain.Color
}

func newLobby(id string) Lobby {
	return Lobby{
		ID:          id,
		White:       newSeat(domain.White),
		Black:       newSeat(domain.Black),
		PlayerLimit: 2,
		Phase:       PhaseEmpty,
	}
}

func (l *Lobby) seat(c domain.Color) *Seat {
	if c == domain.Black {
		return &l.Black
	}
	return &l.White
}

func (l *Lobby) seatOf(conn Conn) *Seat {
	if conn == nil {
		return nil
	}
	for _, s := range []*Seat{&l.White, &l.Black} {
		if s.conn != nil && s.conn.ID() == conn.ID() {
			return s
		}
	}
	return nil
}

func (l *Lobby) phase() Phase {
	switch {
	case l.PlayerCount == 0 && l.White.empty() && l.Black.empty():
		return PhaseEmpty
	case l.White.empty() || l.Black.empty():
		return PhaseAwaitingSecondSeat
	case l.started:
		return PhasePlaying
	case l.prepareSent:
		return PhasePreparing
	case l.White.Ready || l.Black.Ready:
		return PhaseReadyPending
	}
	return PhaseBothConnected
}

type SeatSnapshot struct {
	Color     domain.Color
	ConnID    string
	Automated bool
	Tier      string
	Ready     bool
	Prepared  bool
	View      chessdto.SeatView
}

// Snapshot is a copy of lobby state for inspection and publishing.
type Snapshot struct {
	ID          string
	Phase       Phase
	PlayerCount int
	PlayerLimit int
	Turn        domain.Color
	White       SeatSnapshot
	Black       SeatSnapshot
}

func (s *Seat) snapshot() SeatSnapshot {
	out := SeatSnapshot{
		Color:     s.Color,
		Automated: s.Automated,
		Tier:      s.Tier,
		Ready:     s.Ready,
		Prepared:  s.Prepared,
		View:      s.View(),
	}
	if s.conn != nil {
		out.ConnID = s.conn.ID()
	}
	return out
}

var (
	ErrLobbyFull   = errf("lobby full")
	ErrUnknownConn = errf("connection holds no seat")
	ErrOutOfTurn   = errf("move out of turn")
	ErrNotPlaying  = errf("lobby not playing")
	ErrOutOfOrder  = errf("event out of handshake order")
	ErrRetired     = errf("lobby retired")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
