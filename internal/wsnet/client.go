package wsnet

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/park285/cheese-vrchess/internal/obslog"
	"github.com/park285/cheese-vrchess/pkg/chessdto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type ClientState string

const (
	StateDisconnected ClientState = "disconnected"
	StateConnecting   ClientState = "connecting"
	StateConnected    ClientState = "connected"
	StateFailed       ClientState = "failed"
)

type MessageCallback func(env chessdto.Envelope)

type StateCallback func(state ClientState)

// HeaderProvider supplies extra handshake headers.
type HeaderProvider func() map[string]string

// Client is the peer side of the session protocol. Dropped connections are
// not retried; the owner decides what to do on StateDisconnected.
type Client struct {
	url string

	conn   *websocket.Conn
	connM  sync.RWMutex
	state  ClientState
	stateM sync.RWMutex

	msgCbs   []MessageCallback
	stateCbs []StateCallback
	cbM      sync.RWMutex

	pingInterval   time.Duration
	headerProvider HeaderProvider

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

func NewClient(url string) *Client {
	return &Client{
		url:          url,
		state:        StateDisconnected,
		pingInterval: 30 * time.Second,
		stopCh:       make(chan struct{}),
	}
}

// SetPingInterval must be called before Connect.
func (c *Client) SetPingInterval(d time.Duration) {
	if d > 0 {
		c.pingInterval = d
	}
}

func (c *Client) SetHeaderProvider(h HeaderProvider) { c.headerProvider = h }

func (c *Client) Connect(ctx context.Context) error {
	if s := c.State(); s == StateConnected || s == StateConnecting {
		return nil
	}
	c.rootCtx, c.rootCancel = context.WithCancel(context.Background())
	c.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      c.buildHeaders(),
	})
	if err != nil {
		c.setState(StateFailed)
		return err
	}
	conn.SetReadLimit(readLimit)

	c.connM.Lock()
	c.conn = conn
	c.connM.Unlock()
	c.setState(StateConnected)

	c.wg.Add(2)
	go c.listen()
	go c.pingLoop()
	return nil
}

func (c *Client) current() *websocket.Conn {
	c.connM.RLock()
	defer c.connM.RUnlock()
	return c.conn
}

func (c *Client) listen() {
	defer c.wg.Done()
	for {
		conn := c.current()
		if conn == nil {
			return
		}
		var env chessdto.Envelope
		if err := wsjson.Read(c.rootCtx, conn, &env); err != nil {
			if c.isStopping() {
				return
			}
			obslog.L().Debug("ws_client_read_end", zap.Error(err))
			_ = c.closeConn(websocket.StatusGoingAway, "read failed")
			c.setState(StateDisconnected)
			c.stop()
			return
		}

		c.cbM.RLock()
		callbacks := append([]MessageCallback(nil), c.msgCbs...)
		c.cbM.RUnlock()
		for _, cb := range callbacks {
			cb(env)
		}
	}
}

func (c *Client) pingLoop() {
	defer c.wg.Done()
	t := time.NewTicker(c.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-c.stopCh:
			return
		case <-t.C:
			conn := c.current()
			if conn == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(c.rootCtx, 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				obslog.L().Warn("ws_client_ping_failure", zap.Error(err))
				_ = c.closeConn(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

// Send writes one envelope. nhooyr connections allow concurrent writers.
func (c *Client) Send(ctx context.Context, event string, payload any) error {
	conn := c.current()
	if conn == nil {
		return ErrConnClosed
	}
	env, err := chessdto.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, conn, env)
}

func (c *Client) OnMessage(cb MessageCallback) {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	c.msgCbs = append(c.msgCbs, cb)
}

func (c *Client) OnStateChange(cb StateCallback) {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	c.stateCbs = append(c.stateCbs, cb)
}

func (c *Client) State() ClientState {
	c.stateM.RLock()
	defer c.stateM.RUnlock()
	return c.state
}

func (c *Client) setState(state ClientState) {
	c.stateM.Lock()
	c.state = state
	c.stateM.Unlock()

	c.cbM.RLock()
	callbacks := append([]StateCallback(nil), c.stateCbs...)
	c.cbM.RUnlock()
	for _, cb := range callbacks {
		cb(state)
	}
}

func (c *Client) Close(ctx context.Context) error {
	c.stop()
	_ = c.closeConn(websocket.StatusNormalClosure, "close")

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		if c.rootCancel != nil {
			c.rootCancel()
		}
		if c.State() != StateDisconnected {
			c.setState(StateDisconnected)
		}
		return nil
	}
}

func (c *Client) stop() { c.stopOnce.Do(func() { close(c.stopCh) }) }

func (c *Client) closeConn(code websocket.StatusCode, reason string) error {
	c.connM.Lock()
	conn := c.conn
	c.conn = nil
	c.connM.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close(code, reason)
}

func (c *Client) isStopping() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func (c *Client) buildHeaders() http.Header {
	hdr := http.Header{}
	if c.headerProvider == nil {
		return hdr
	}
	for k, v := range c.headerProvider() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}
