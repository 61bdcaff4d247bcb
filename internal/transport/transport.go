// Package transport supplies ordered, line-delimited byte streams between
// exactly two peers. TCP is the primary binding; WebSocket is an
// alternative binding with the same contract.
package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// Conn is one peer's end of a session connection.
//
// ReadLine blocks until a complete line arrives and returns it without
// the terminator. It must only be called from one goroutine at a time.
// WriteLine is safe for concurrent use and appends the terminator.
// Close unblocks a pending ReadLine.
type Conn interface {
	ReadLine() ([]byte, error)
	WriteLine(line []byte) error
	Close() error
	RemoteAddr() string
}

type Options struct {
	// ReadTimeout bounds every ReadLine. Zero waits forever.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxLineBytes int
}

const (
	DefaultReadTimeout  = 2 * time.Minute
	DefaultWriteTimeout = 10 * time.Second
	DefaultMaxLineBytes = 4096
)

func DefaultOptions() Options {
	return Options{
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		MaxLineBytes: DefaultMaxLineBytes,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxLineBytes <= 0 {
		o.MaxLineBytes = DefaultMaxLineBytes
	}
	return o
}

// ErrorKind distinguishes where a transport failure happened.
type ErrorKind int

const (
	KindBind ErrorKind = iota + 1
	KindConnect
	KindIO
)

func (k ErrorKind) String() string {
	switch k {
	case KindBind:
		return "bind"
	case KindConnect:
		return "connect"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

var (
	// ErrLineTooLong is returned when a peer sends more than MaxLineBytes
	// without a newline.
	ErrLineTooLong = errors.New("line too long")
	// ErrAlreadyAccepted is returned by a listener that has already handed
	// out its single connection.
	ErrAlreadyAccepted = errors.New("connection already accepted")
)

type Error struct {
	Kind ErrorKind
	Op   string
	Addr string
	Err  error
}

func (e *Error) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("transport %s %s %s: %v", e.Kind, e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("transport %s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind of err, or zero when err is not a
// transport error.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}

// IsTimeout reports whether err was caused by a read or write deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}
