package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"rpsnet/internal/logger"
)

// Listener accepts a single session connection.
type Listener struct {
	ln   net.Listener
	opts Options
	once sync.Once
}

// Listen binds addr. A bind failure (e.g. port in use) is reported as a
// KindBind error.
func Listen(ctx context.Context, addr string, opts Options) (*Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, &Error{Kind: KindBind, Op: "listen", Addr: addr, Err: err}
	}
	return &Listener{ln: ln, opts: opts.withDefaults()}, nil
}

func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Accept waits for the peer and closes the listener afterwards, so no
// second game can be joined on the same socket.
func (l *Listener) Accept(ctx context.Context) (Conn, error) {
	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	c, err := l.ln.Accept()
	_ = l.Close()
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		if errors.Is(err, net.ErrClosed) {
			err = ErrAlreadyAccepted
		}
		return nil, &Error{Kind: KindBind, Op: "accept", Addr: l.ln.Addr().String(), Err: err}
	}

	logger.Debug("transport: accepted", "remote", c.RemoteAddr().String())
	return newTCPConn(c, l.opts), nil
}

func (l *Listener) Close() error {
	var err error
	l.once.Do(func() { err = l.ln.Close() })
	return err
}

// Dial connects to a listening host. Refusals and unreachable hosts are
// reported as KindConnect errors.
func Dial(ctx context.Context, addr string, opts Options) (Conn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &Error{Kind: KindConnect, Op: "dial", Addr: addr, Err: err}
	}
	return newTCPConn(c, opts.withDefaults()), nil
}

type tcpConn struct {
	conn    net.Conn
	scanner *bufio.Scanner
	opts    Options

	writeMu sync.Mutex
}

func newTCPConn(c net.Conn, opts Options) *tcpConn {
	sc := bufio.NewScanner(c)
	sc.Buffer(make([]byte, 0, min(512, opts.MaxLineBytes+1)), opts.MaxLineBytes+1)
	return &tcpConn{conn: c, scanner: sc, opts: opts}
}

func (c *tcpConn) ReadLine() ([]byte, error) {
	_ = c.conn.SetReadDeadline(deadline(c.opts.ReadTimeout))
	if !c.scanner.Scan() {
		err := c.scanner.Err()
		switch {
		case err == nil:
			err = io.EOF
		case errors.Is(err, bufio.ErrTooLong):
			err = ErrLineTooLong
		}
		return nil, &Error{Kind: KindIO, Op: "read", Addr: c.RemoteAddr(), Err: err}
	}
	// Scanner reuses its buffer on the next Scan.
	line := append([]byte(nil), c.scanner.Bytes()...)
	return line, nil
}

func (c *tcpConn) WriteLine(line []byte) error {
	buf := make([]byte, 0, len(line)+1)
	buf = append(append(buf, line...), '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(deadline(c.opts.WriteTimeout))
	if _, err := c.conn.Write(buf); err != nil {
		return &Error{Kind: KindIO, Op: "write", Addr: c.RemoteAddr(), Err: err}
	}
	return nil
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}

func (c *tcpConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
