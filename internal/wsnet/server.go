package wsnet

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/cheese-vrchess/internal/lobby"
	"github.com/park285/cheese-vrchess/internal/obslog"
	"github.com/park285/cheese-vrchess/pkg/chessdto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	sendBuffer   = 32
	writeTimeout = 5 * time.Second
	readLimit    = 16 << 10
)

var (
	ErrConnClosed = errors.New("connection closed")
	ErrSendFull   = errors.New("send buffer full")
)

// Resolver picks the coordinator for an incoming upgrade request.
type Resolver func(r *http.Request) (*lobby.Coordinator, error)

type ServerOptions struct {
	// OriginPatterns is passed to websocket.Accept; empty means same origin only.
	OriginPatterns []string
}

// Handler upgrades requests to websocket sessions bound to a lobby coordinator.
func Handler(resolve Resolver, opts ServerOptions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		coord, err := resolve(r)
		if err != nil {
			obslog.L().Warn("ws_resolve_error", zap.String("path", r.URL.Path), zap.Error(err))
			status := http.StatusNotFound
			if errors.Is(err, lobby.ErrTooManyLobbies) {
				status = http.StatusServiceUnavailable
			}
			http.Error(w, err.Error(), status)
			return
		}
		ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns:  opts.OriginPatterns,
			CompressionMode: websocket.CompressionNoContextTakeover,
		})
		if err != nil {
			obslog.L().Warn("ws_accept_error", zap.Error(err))
			return
		}
		ws.SetReadLimit(readLimit)
		serve(r.Context(), coord, ws)
	})
}

// serverConn adapts a websocket to lobby.Conn. Writes go through a buffered
// pump so coordinator handlers never block on the network.
type serverConn struct {
	id string
	ws *websocket.Conn

	mu     sync.Mutex
	out    chan chessdto.Envelope
	done   chan struct{}
	closed bool
	reason string
}

var _ lobby.Conn = (*serverConn)(nil)

func newServerConn(ws *websocket.Conn) *serverConn {
	return &serverConn{
		id:   uuid.NewString(),
		ws:   ws,
		out:  make(chan chessdto.Envelope, sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *serverConn) ID() string { return c.id }

func (c *serverConn) Send(event string, payload any) error {
	env, err := chessdto.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.out <- env:
		return nil
	default:
		return ErrSendFull
	}
}

// Close flushes queued frames and then closes the socket.
func (c *serverConn) Close(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.reason = reason
	close(c.done)
}

func (c *serverConn) writePump(ctx context.Context) {
	write := func(env chessdto.Envelope) bool {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		if err := wsjson.Write(wctx, c.ws, env); err != nil {
			obslog.L().Debug("ws_write_error", zap.String("conn", c.id), zap.String("event", env.Event), zap.Error(err))
			return false
		}
		return true
	}
	for {
		select {
		case env := <-c.out:
			if !write(env) {
				_ = c.ws.Close(websocket.StatusInternalError, "write failed")
				return
			}
		case <-c.done:
			for {
				select {
				case env := <-c.out:
					if !write(env) {
						_ = c.ws.Close(websocket.StatusInternalError, "write failed")
						return
					}
				default:
					c.mu.Lock()
					reason := c.reason
					c.mu.Unlock()
					_ = c.ws.Close(websocket.StatusNormalClosure, reason)
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func serve(ctx context.Context, coord *lobby.Coordinator, ws *websocket.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	conn := newServerConn(ws)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		conn.writePump(ctx)
	}()

	log := obslog.L().With(zap.String("lobby", coord.ID()), zap.String("conn", conn.id))
	if _, err := coord.OnConnect(conn); err != nil {
		log.Info("ws_connect_rejected", zap.Error(err))
	}

	for {
		var env chessdto.Envelope
		if err := wsjson.Read(ctx, ws, &env); err != nil {
			log.Debug("ws_read_end", zap.Error(err))
			break
		}
		if err := dispatch(coord, conn, env); err != nil {
			// protocol violations are dropped without telling the peer
			log.Debug("ws_event_dropped", zap.String("event", env.Event), zap.Error(err))
		}
	}

	coord.OnDisconnect(conn)
	conn.Close("read loop ended")
	wg.Wait()
}

func dispatch(coord *lobby.Coordinator, conn lobby.Conn, env chessdto.Envelope) error {
	switch env.Event {
	case chessdto.EventSelectionDone:
		var data chessdto.SelectionData
		if err := env.Decode(&data); err != nil {
			return err
		}
		return coord.OnSelectionSubmitted(conn, data)
	case chessdto.EventPreparationDone:
		return coord.OnPreparationDone(conn)
	case chessdto.EventPlayerMove:
		var rec chessdto.MoveRecord
		if err := env.Decode(&rec); err != nil {
			return err
		}
		return coord.OnMove(conn, rec)
	}
	return chessdto.DomainError{Code: chessdto.CodeUnknownEvent, Message: "unknown event " + env.Event}
}
