package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"rpsnet/internal/logger"

	"github.com/gorilla/websocket"
)

const closeWait = time.Second

// WSListener is an http.Handler that upgrades the first request to a
// WebSocket and hands it to Accept. Later requests get 409 Conflict.
type WSListener struct {
	upgrader websocket.Upgrader
	opts     Options
	conns    chan Conn

	mu      sync.Mutex
	claimed bool
	closed  bool
}

// NewWSListener builds a listener. An empty allowedOrigin accepts any
// Origin header.
func NewWSListener(opts Options, allowedOrigin string) *WSListener {
	return &WSListener{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
		opts:  opts.withDefaults(),
		conns: make(chan Conn, 1),
	}
}

func (l *WSListener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l.mu.Lock()
	if l.claimed || l.closed {
		l.mu.Unlock()
		http.Error(w, "session already has a peer", http.StatusConflict)
		return
	}
	l.claimed = true
	l.mu.Unlock()

	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		l.mu.Lock()
		l.claimed = false
		l.mu.Unlock()
		logger.Warn("transport: ws upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newWSConn(conn, l.opts)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		logger.Debug("transport: ws listener closed during upgrade", "remote", conn.RemoteAddr().String())
		_ = c.Close()
		return
	}
	logger.Debug("transport: ws accepted", "remote", conn.RemoteAddr().String())
	// Only the claiming request gets here, so the buffered send never blocks.
	l.conns <- c
}

// Accept waits for the single peer connection.
func (l *WSListener) Accept(ctx context.Context) (Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-ctx.Done():
		return nil, &Error{Kind: KindBind, Op: "accept", Err: ctx.Err()}
	}
}

// Claimed reports whether a peer has already connected.
func (l *WSListener) Claimed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.claimed
}

// Close refuses further upgrades and drops a connection that was
// upgraded but never accepted.
func (l *WSListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	select {
	case c := <-l.conns:
		return c.Close()
	default:
		return nil
	}
}

// DialWS connects to a host's WebSocket accept point, e.g.
// ws://192.168.1.5:8080/ws.
func DialWS(ctx context.Context, url string, opts Options) (Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, &Error{Kind: KindConnect, Op: "dial", Addr: url, Err: err}
	}
	return newWSConn(conn, opts.withDefaults()), nil
}

// wsConn maps lines onto text messages. A message holding several lines
// is split so the line contract matches TCP.
type wsConn struct {
	conn    *websocket.Conn
	opts    Options
	pending [][]byte

	writeMu sync.Mutex
}

func newWSConn(c *websocket.Conn, opts Options) *wsConn {
	c.SetReadLimit(int64(opts.MaxLineBytes))
	return &wsConn{conn: c, opts: opts}
}

func (c *wsConn) ReadLine() ([]byte, error) {
	for len(c.pending) == 0 {
		_ = c.conn.SetReadDeadline(deadline(c.opts.ReadTimeout))
		typ, msg, err := c.conn.ReadMessage()
		if err != nil {
			switch {
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				err = io.EOF
			case errors.Is(err, websocket.ErrReadLimit):
				err = ErrLineTooLong
			}
			return nil, &Error{Kind: KindIO, Op: "read", Addr: c.RemoteAddr(), Err: err}
		}
		if typ != websocket.TextMessage {
			continue
		}
		for _, l := range bytes.Split(bytes.TrimRight(msg, "\n"), []byte("\n")) {
			c.pending = append(c.pending, bytes.TrimSuffix(l, []byte("\r")))
		}
	}

	line := c.pending[0]
	c.pending = c.pending[1:]
	return line, nil
}

func (c *wsConn) WriteLine(line []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(deadline(c.opts.WriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, line); err != nil {
		return &Error{Kind: KindIO, Op: "write", Addr: c.RemoteAddr(), Err: err}
	}
	return nil
}

func (c *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
	return c.conn.Close()
}

func (c *wsConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
