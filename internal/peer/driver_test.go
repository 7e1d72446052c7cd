package peer

import (
	"context"
	"sync"
	"testing"

	"github.com/park285/cheese-vrchess/internal/domain"
	"github.com/park285/cheese-vrchess/internal/match"
	"github.com/park285/cheese-vrchess/internal/telemetry"
	"github.com/park285/cheese-vrchess/pkg/chessdto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outbound struct {
	event   string
	payload any
}

type fakeSender struct {
	mu   sync.Mutex
	sent []outbound
}

func (f *fakeSender) Send(_ context.Context, event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, outbound{event: event, payload: payload})
	return nil
}

func (f *fakeSender) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.event)
	}
	return out
}

func (f *fakeSender) moves() []domain.MoveRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.MoveRecord
	for _, s := range f.sent {
		if rec, ok := s.payload.(domain.MoveRecord); ok {
			out = append(out, rec)
		}
	}
	return out
}

func envelope(t *testing.T, event string, payload any) chessdto.Envelope {
	t.Helper()
	env, err := chessdto.NewEnvelope(event, payload)
	require.NoError(t, err)
	return env
}

func TestDriverHostsAutomatedOpponent(t *testing.T) {
	out := &fakeSender{}
	sink, err := telemetry.NewFileSink(t.TempDir())
	require.NoError(t, err)
	d := New(out, Options{
		Selection: chessdto.SelectionData{Avatar: "knight", Controller: "vr", Opponent: "easy"},
		Recorder:  telemetry.NewRecorder(sink),
		Seed:      7,
	})

	d.Handle(envelope(t, chessdto.EventInitiate, domain.White))
	require.Equal(t, []string{chessdto.EventSelectionDone}, out.events())
	assert.Equal(t, "easy", out.sent[0].payload.(chessdto.SelectionData).Opponent)

	assert.ErrorIs(t, d.Select(domain.MustSquare("e2")), ErrNoMatch)

	d.Handle(envelope(t, chessdto.EventPrepare, []chessdto.SeatView{
		{Color: "white", Avatar: "knight", Controller: "vr", Opponent: "easy"},
		{Color: "black", Avatar: "robot-rookie", Controller: "ai", Automated: true, Tier: "easy"},
	}))
	require.Equal(t, chessdto.EventPreparationDone, out.events()[1])
	require.NotNil(t, d.Match())
	assert.False(t, d.Started())

	d.Handle(envelope(t, chessdto.EventStart, []chessdto.SeatView{{Color: "white"}, {Color: "black"}}))
	require.True(t, d.Started())

	require.NoError(t, d.Select(domain.MustSquare("e2")))
	require.NoError(t, d.Select(domain.MustSquare("e4")))

	moves := out.moves()
	require.Len(t, moves, 2, "human move and the hosted automated reply")
	assert.Equal(t, "e2e4", moves[0].UCI())
	assert.Equal(t, domain.White, d.Match().Mover())
	assert.Equal(t, match.PhaseAwaitingSelection, d.Match().Phase())

	samples, err := sink.ReadStream("easy")
	require.NoError(t, err)
	assert.Len(t, samples, 1, "one latency sample per automated move")
}

func TestDriverFollowsRemoteMovesAndReset(t *testing.T) {
	out := &fakeSender{}
	var resets []domain.Color
	d := New(out, Options{
		Selection: chessdto.SelectionData{Avatar: "bishop", Controller: "keyboard", Opponent: "easy"},
		Hooks:     Hooks{OnReset: func(c domain.Color) { resets = append(resets, c) }},
	})

	d.Handle(envelope(t, chessdto.EventInitiate, domain.Black))
	sel := out.sent[0].payload.(chessdto.SelectionData)
	assert.Empty(t, sel.Opponent, "only white chooses the opponent")

	d.Handle(envelope(t, chessdto.EventPrepare, []chessdto.SeatView{{Color: "black"}, {Color: "white"}}))
	d.Handle(envelope(t, chessdto.EventStart, []chessdto.SeatView{{Color: "black"}, {Color: "white"}}))
	require.Equal(t, domain.Black, d.Color())

	d.Handle(envelope(t, chessdto.EventOtherPlayerMove, domain.MoveRecord{From: domain.MustSquare("e2"), To: domain.MustSquare("e4")}))
	p, ok := d.Match().PieceAt(domain.MustSquare("e4"))
	require.True(t, ok)
	assert.Equal(t, domain.White, p.Color)
	assert.Equal(t, domain.Black, d.Match().Mover())

	require.NoError(t, d.Select(domain.MustSquare("e7")))
	require.NoError(t, d.Select(domain.MustSquare("e5")))
	require.Len(t, out.moves(), 1)

	st := d.Match()
	d.Handle(envelope(t, chessdto.EventGameReset, domain.White))
	assert.Nil(t, d.Match())
	assert.Equal(t, match.PhaseAborted, st.Phase())
	assert.Equal(t, []domain.Color{domain.White}, resets)

	events := out.events()
	require.Equal(t, chessdto.EventSelectionDone, events[len(events)-1], "reset rejoins the handshake")
	resub := out.sent[len(out.sent)-1].payload.(chessdto.SelectionData)
	assert.Equal(t, "bishop", resub.Avatar)
	assert.Empty(t, resub.Opponent)
}

func TestDriverRecordsRedirect(t *testing.T) {
	d := New(&fakeSender{}, Options{})
	d.Handle(envelope(t, chessdto.EventRedirect, "https://example.com/full"))
	assert.Equal(t, "https://example.com/full", d.Redirected())
}

func TestDriverReportsBadPayload(t *testing.T) {
	var errs []error
	d := New(&fakeSender{}, Options{Hooks: Hooks{OnError: func(err error) { errs = append(errs, err) }}})
	d.Handle(chessdto.Envelope{Event: chessdto.EventInitiate, Data: []byte(`"green"`)})
	d.Handle(chessdto.Envelope{Event: chessdto.EventOtherPlayerMove, Data: []byte(`{"from":"e2","to":"e4"}`)})
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], domain.ErrInvalidColor)
	assert.ErrorIs(t, errs[1], ErrNoMatch)
}
