package peer

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/park285/cheese-vrchess/internal/domain"
	"github.com/park285/cheese-vrchess/internal/lobby"
	"github.com/park285/cheese-vrchess/internal/server"
	"github.com/park285/cheese-vrchess/internal/wsnet"
	"github.com/park285/cheese-vrchess/pkg/chessdto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

type stubRoster struct{}

func (stubRoster) Pick(tier string) (string, string) { return "robot-" + tier, "ai" }

type session struct {
	client *wsnet.Client
	driver *Driver
}

func newTestServer(t *testing.T) (*lobby.Hub, string) {
	t.Helper()
	hub := lobby.NewHub(8, lobby.Options{RedirectURL: "https://example.com/full", Roster: stubRoster{}}, nil)
	srv := httptest.NewServer(server.NewRouter(hub, server.Options{}))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func join(t *testing.T, url string, sel chessdto.SelectionData) *session {
	t.Helper()
	c := wsnet.NewClient(url)
	d := New(c, Options{Selection: sel, Seed: 11})
	c.OnMessage(d.Handle)
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = c.Close(ctx)
	})
	return &session{client: c, driver: d}
}

func (s *session) leave(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.client.Close(ctx))
}

func TestEndToEndHumanVersusHuman(t *testing.T) {
	hub, base := newTestServer(t)
	url := base + "/ws/duel"

	a := join(t, url, chessdto.SelectionData{Avatar: "knight", Controller: "vr", Opponent: "human"})
	require.Eventually(t, func() bool { return a.driver.Color() == domain.White }, waitFor, tick)
	b := join(t, url, chessdto.SelectionData{Avatar: "bishop", Controller: "keyboard"})

	require.Eventually(t, func() bool { return a.driver.Started() && b.driver.Started() }, waitFor, tick)
	assert.Equal(t, domain.Black, b.driver.Color())

	require.NoError(t, a.driver.Select(domain.MustSquare("e2")))
	require.NoError(t, a.driver.Select(domain.MustSquare("e4")))
	require.Eventually(t, func() bool {
		_, ok := b.driver.Match().PieceAt(domain.MustSquare("e4"))
		return ok && b.driver.Match().Mover() == domain.Black
	}, waitFor, tick)

	coord, err := hub.Lobby("duel")
	require.NoError(t, err)
	assert.Equal(t, domain.Black, coord.Snapshot().Turn)

	b.leave(t)
	require.Eventually(t, func() bool { return a.driver.Match() == nil }, waitFor, tick)
	require.Eventually(t, func() bool { return coord.Snapshot().PlayerCount == 1 }, waitFor, tick)

	a.leave(t)
	require.Eventually(t, func() bool { return coord.Snapshot().Phase == lobby.PhaseEmpty }, waitFor, tick)
	assert.Equal(t, 2, coord.Snapshot().PlayerLimit)
}

func TestEndToEndRejoinAfterReset(t *testing.T) {
	hub, base := newTestServer(t)
	url := base + "/ws/rematch"

	a := join(t, url, chessdto.SelectionData{Avatar: "knight", Controller: "vr", Opponent: "human"})
	require.Eventually(t, func() bool { return a.driver.Color() == domain.White }, waitFor, tick)
	b := join(t, url, chessdto.SelectionData{Avatar: "bishop", Controller: "keyboard"})
	require.Eventually(t, func() bool { return a.driver.Started() && b.driver.Started() }, waitFor, tick)

	b.leave(t)
	require.Eventually(t, func() bool { return a.driver.Match() == nil && !a.driver.Started() }, waitFor, tick)

	c := join(t, url, chessdto.SelectionData{Avatar: "rook", Controller: "vr"})
	require.Eventually(t, func() bool { return a.driver.Started() && c.driver.Started() }, waitFor, tick)
	assert.Equal(t, domain.Black, c.driver.Color())

	coord, err := hub.Lobby("rematch")
	require.NoError(t, err)
	assert.Equal(t, lobby.PhasePlaying, coord.Snapshot().Phase)

	require.NoError(t, a.driver.Select(domain.MustSquare("e2")))
	require.NoError(t, a.driver.Select(domain.MustSquare("e4")))
	require.Eventually(t, func() bool {
		_, ok := c.driver.Match().PieceAt(domain.MustSquare("e4"))
		return ok
	}, waitFor, tick)
}

func TestEndToEndAgainstAutomatedOpponent(t *testing.T) {
	hub, base := newTestServer(t)
	url := base + "/ws/solo"

	a := join(t, url, chessdto.SelectionData{Avatar: "knight", Controller: "vr", Opponent: "easy"})
	require.Eventually(t, a.driver.Started, waitFor, tick)

	coord, err := hub.Lobby("solo")
	require.NoError(t, err)
	snap := coord.Snapshot()
	assert.Equal(t, 1, snap.PlayerLimit)
	assert.True(t, snap.Black.Automated)

	require.NoError(t, a.driver.Select(domain.MustSquare("d2")))
	require.NoError(t, a.driver.Select(domain.MustSquare("d4")))
	assert.Equal(t, domain.White, a.driver.Match().Mover())
	require.Eventually(t, func() bool { return coord.Snapshot().Turn == domain.White }, waitFor, tick)

	late := join(t, url, chessdto.SelectionData{Avatar: "rook", Controller: "vr"})
	require.Eventually(t, func() bool { return late.driver.Redirected() == "https://example.com/full" }, waitFor, tick)
	assert.Equal(t, 1, coord.Snapshot().PlayerCount)
}
