package peer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/park285/cheese-vrchess/internal/chess"
	"github.com/park285/cheese-vrchess/internal/domain"
	"github.com/park285/cheese-vrchess/internal/match"
	"github.com/park285/cheese-vrchess/internal/obslog"
	"github.com/park285/cheese-vrchess/pkg/chessdto"
	"go.uber.org/zap"
)

const sendTimeout = 5 * time.Second

var ErrNoMatch = errors.New("no match in progress")

// Sender is the outbound half of the session transport (see wsnet.Client).
type Sender interface {
	Send(ctx context.Context, event string, payload any) error
}

// Hooks let the presentation layer follow the session. All are optional.
type Hooks struct {
	OnSeat     func(color domain.Color)
	OnRedirect func(url string)
	OnStart    func(self, opponent chessdto.SeatView)
	OnMove     func(rec domain.MoveRecord, remote bool)
	OnGameOver func(st chess.Status)
	OnReset    func(left domain.Color)
	OnError    func(err error)
}

type Options struct {
	Selection chessdto.SelectionData
	Recorder  match.LatencyRecorder
	Hooks     Hooks
	// Seed feeds automated seats hosted by this peer; zero picks a time seed.
	Seed int64
}

// Driver plays one side of a session: it answers the handshake and keeps a
// MatchState in step with the relayed moves.
type Driver struct {
	out  Sender
	opts Options

	mu         sync.Mutex
	color      domain.Color
	redirected string
	state      *match.MatchState
	started    bool
}

func New(out Sender, opts Options) *Driver {
	opts.Selection.Normalize()
	return &Driver{out: out, opts: opts}
}

// Handle consumes one inbound envelope. Register it with the transport's
// message callback.
func (d *Driver) Handle(env chessdto.Envelope) {
	var err error
	switch env.Event {
	case chessdto.EventInitiate:
		err = d.onInitiate(env)
	case chessdto.EventRedirect:
		err = d.onRedirect(env)
	case chessdto.EventReady:
		obslog.L().Debug("peer_ready_ack", zap.String("color", string(d.Color())))
	case chessdto.EventPrepare:
		err = d.onPrepare(env)
	case chessdto.EventStart:
		err = d.onStart(env)
	case chessdto.EventOtherPlayerMove:
		err = d.onRemoteMove(env)
	case chessdto.EventGameReset:
		err = d.onReset(env)
	default:
		obslog.L().Debug("peer_unknown_event", zap.String("event", env.Event))
	}
	if err != nil {
		obslog.L().Warn("peer_event_error", zap.String("event", env.Event), zap.Error(err))
		if d.opts.Hooks.OnError != nil {
			d.opts.Hooks.OnError(err)
		}
	}
}

func (d *Driver) onInitiate(env chessdto.Envelope) error {
	var color domain.Color
	if err := env.Decode(&color); err != nil {
		return err
	}
	if !color.Valid() {
		return domain.ErrInvalidColor
	}
	d.mu.Lock()
	d.color = color
	d.mu.Unlock()
	if d.opts.Hooks.OnSeat != nil {
		d.opts.Hooks.OnSeat(color)
	}
	return d.submitSelection(color)
}

// submitSelection sends the configured selection; only white picks the opponent.
func (d *Driver) submitSelection(color domain.Color) error {
	sel := d.opts.Selection
	if color != domain.White {
		sel.Opponent = ""
	}
	return d.send(chessdto.EventSelectionDone, sel)
}

func (d *Driver) onRedirect(env chessdto.Envelope) error {
	var url string
	if err := env.Decode(&url); err != nil {
		return err
	}
	d.mu.Lock()
	d.redirected = url
	st := d.state
	d.state = nil
	d.mu.Unlock()
	if st != nil {
		st.Terminate()
	}
	if d.opts.Hooks.OnRedirect != nil {
		d.opts.Hooks.OnRedirect(url)
	}
	return nil
}

// onPrepare builds the local match from the [self, opponent] seat pair and
// acknowledges with preparation_done.
func (d *Driver) onPrepare(env chessdto.Envelope) error {
	var views []chessdto.SeatView
	if err := env.Decode(&views); err != nil {
		return err
	}
	if len(views) != 2 {
		return chessdto.DomainError{Code: chessdto.CodeMalformedPayload, Message: "prepare: expected two seats"}
	}
	self, opp := views[0], views[1]
	color, err := domain.ParseColor(self.Color)
	if err != nil {
		return err
	}

	ctrls := map[domain.Color]match.Controller{color: {Kind: match.LocalHuman}}
	if opp.Automated {
		tier, err := chess.ParseTier(opp.Tier)
		if err != nil {
			return err
		}
		sel, err := chess.NewSelector(tier, d.opts.Seed)
		if err != nil {
			return err
		}
		ctrls[color.Opponent()] = match.Controller{Kind: match.Automated, Tier: string(tier), Selector: sel}
	} else {
		ctrls[color.Opponent()] = match.Controller{Kind: match.RemoteHuman}
	}

	st, err := match.New(chess.NewGame(), match.Options{
		Controllers: ctrls,
		OnMove:      d.relay,
		OnGameOver:  d.gameOver,
		Recorder:    d.opts.Recorder,
	})
	if err != nil {
		return err
	}
	d.mu.Lock()
	if d.state != nil {
		d.state.Terminate()
	}
	d.color = color
	d.state = st
	d.started = false
	d.mu.Unlock()
	return d.send(chessdto.EventPreparationDone, nil)
}

func (d *Driver) onStart(env chessdto.Envelope) error {
	var views []chessdto.SeatView
	if err := env.Decode(&views); err != nil {
		return err
	}
	d.mu.Lock()
	st := d.state
	d.started = st != nil
	d.mu.Unlock()
	if st == nil {
		return ErrNoMatch
	}
	if d.opts.Hooks.OnStart != nil && len(views) == 2 {
		d.opts.Hooks.OnStart(views[0], views[1])
	}
	return st.Start()
}

func (d *Driver) onRemoteMove(env chessdto.Envelope) error {
	var rec domain.MoveRecord
	if err := env.Decode(&rec); err != nil {
		return err
	}
	st := d.Match()
	if st == nil {
		return ErrNoMatch
	}
	if err := st.ApplyRemoteMove(rec); err != nil {
		return err
	}
	if d.opts.Hooks.OnMove != nil {
		d.opts.Hooks.OnMove(rec, true)
	}
	return nil
}

func (d *Driver) onReset(env chessdto.Envelope) error {
	var left domain.Color
	if err := env.Decode(&left); err != nil {
		return err
	}
	d.mu.Lock()
	st := d.state
	color := d.color
	d.state = nil
	d.started = false
	d.mu.Unlock()
	if st != nil {
		st.Terminate()
	}
	obslog.L().Info("peer_game_reset", zap.String("left", string(left)))
	if d.opts.Hooks.OnReset != nil {
		d.opts.Hooks.OnReset(left)
	}
	// the server cleared our ready flag; rejoin the handshake for the next opponent
	return d.submitSelection(color)
}

// Select forwards a field selection from the UI to the match.
func (d *Driver) Select(sq domain.Square) error {
	d.mu.Lock()
	st, started := d.state, d.started
	d.mu.Unlock()
	if st == nil || !started {
		return ErrNoMatch
	}
	return st.ProcessSelection(sq)
}

func (d *Driver) relay(rec domain.MoveRecord) {
	if err := d.send(chessdto.EventPlayerMove, rec); err != nil {
		obslog.L().Warn("peer_relay_error", zap.String("move", rec.UCI()), zap.Error(err))
	}
	if d.opts.Hooks.OnMove != nil {
		d.opts.Hooks.OnMove(rec, false)
	}
}

func (d *Driver) gameOver(st chess.Status) {
	obslog.L().Info("peer_game_over", zap.String("winner", string(st.Winner)), zap.String("method", st.Method))
	if d.opts.Hooks.OnGameOver != nil {
		d.opts.Hooks.OnGameOver(st)
	}
}

func (d *Driver) send(event string, payload any) error {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	return d.out.Send(ctx, event, payload)
}

func (d *Driver) Color() domain.Color {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.color
}

// Match is the current match, nil between games.
func (d *Driver) Match() *match.MatchState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Redirected returns the redirect target once the server turned this peer away.
func (d *Driver) Redirected() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.redirected
}

func (d *Driver) Started() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}
