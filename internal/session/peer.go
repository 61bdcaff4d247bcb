package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rpsnet/internal/game"
	"rpsnet/internal/logger"
	"rpsnet/internal/metrics"
	"rpsnet/internal/protocol"
	"rpsnet/internal/transport"

	"github.com/google/uuid"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultKeepalive        = 30 * time.Second

	eventBuffer     = 16
	finalEventWait  = time.Second
	disconnectGrace = 200 * time.Millisecond
)

// Peer is one side of a session. It owns its connection: Run closes it.
type Peer struct {
	conn  transport.Conn
	moves MoveSource
	log   *slog.Logger

	handshakeTimeout time.Duration
	keepalive        time.Duration

	session Session
	events  chan Event
}

type Option func(*Peer)

// WithHandshakeTimeout bounds the wait for the peer's handshake. Zero
// waits until the transport gives up.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(p *Peer) { p.handshakeTimeout = d }
}

// WithKeepalive sets how often an idle peer pings. Zero disables pings.
func WithKeepalive(d time.Duration) Option {
	return func(p *Peer) { p.keepalive = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Peer) { p.log = l }
}

func WithSessionID(id string) Option {
	return func(p *Peer) { p.session.ID = id }
}

// NewHost creates the authoritative side: it resolves every round and
// broadcasts the result.
func NewHost(conn transport.Conn, moves MoveSource, opts ...Option) *Peer {
	return newPeer(game.RoleHost, conn, moves, opts)
}

// NewJoiner creates the side that adopts the host's results verbatim.
func NewJoiner(conn transport.Conn, moves MoveSource, opts ...Option) *Peer {
	return newPeer(game.RoleJoiner, conn, moves, opts)
}

func newPeer(role game.Role, conn transport.Conn, moves MoveSource, opts []Option) *Peer {
	p := &Peer{
		conn:             conn,
		moves:            moves,
		handshakeTimeout: DefaultHandshakeTimeout,
		keepalive:        DefaultKeepalive,
		session: Session{
			ID:    uuid.NewString(),
			Role:  role,
			State: StateConnecting,
		},
		events: make(chan Event, eventBuffer),
	}
	for _, o := range opts {
		o(p)
	}
	if p.log == nil {
		p.log = logger.Get()
	}
	p.log = p.log.With("session", p.session.ID, "role", string(role), "remote", conn.RemoteAddr())
	return p
}

// Events delivers handshake, round and end notifications. The channel is
// closed after the EventSessionEnded event. Consumers must keep draining
// it or the protocol loop stalls.
func (p *Peer) Events() <-chan Event {
	return p.events
}

func (p *Peer) ID() string {
	return p.session.ID
}

func (p *Peer) Role() game.Role {
	return p.session.Role
}

// inbound is one line from the reader goroutine: either a decoded
// envelope or an error. Errors wrapping protocol.ErrMalformed are
// recoverable; anything else means the transport is gone.
type inbound struct {
	env protocol.Envelope
	err error
}

// Run plays the session until it ends and returns how it ended. It must
// be called exactly once.
func (p *Peer) Run(ctx context.Context) End {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	role := string(p.session.Role)
	metrics.SessionsStarted.WithLabelValues(role).Inc()
	p.log.Info("session: started")

	in := make(chan inbound)
	done := make(chan struct{})
	go p.readPump(in, done)

	end := p.loop(ctx, in)

	// Closing the connection unblocks readPump.
	_ = p.conn.Close()
	close(done)

	p.transition(StateDisconnected)
	end.Session = p.session

	metrics.SessionsEnded.WithLabelValues(role, string(end.Reason)).Inc()
	p.log.Info("session: ended",
		"reason", end.Reason,
		"rounds", end.Session.Round,
		"score", game.FormatScore(end.Session.Scores.Host, end.Session.Scores.Joiner),
		"error", end.Err,
	)

	p.finish(end)
	return end
}

func (p *Peer) loop(ctx context.Context, in <-chan inbound) End {
	if end := p.handshake(ctx, in); end != nil {
		return *end
	}
	for {
		if end := p.playRound(ctx, in); end != nil {
			return *end
		}
	}
}

func (p *Peer) readPump(out chan<- inbound, done <-chan struct{}) {
	for {
		line, err := p.conn.ReadLine()

		var msg inbound
		if err != nil {
			msg.err = err
		} else if env, derr := protocol.Decode(line); derr != nil {
			msg.err = derr
		} else {
			msg.env = env
		}

		select {
		case out <- msg:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (p *Peer) handshake(ctx context.Context, in <-chan inbound) *End {
	p.transition(StateHandshaking)

	hello := protocol.Handshake{Role: p.session.Role, Version: protocol.ProtocolVersion}
	if err := p.send(hello); err != nil {
		return p.failHandshake(err)
	}

	var timeout <-chan time.Time
	if p.handshakeTimeout > 0 {
		t := time.NewTimer(p.handshakeTimeout)
		defer t.Stop()
		timeout = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return p.cancelled(ctx)

		case <-timeout:
			return p.failHandshake(fmt.Errorf("no handshake within %s", p.handshakeTimeout))

		case msg := <-in:
			if msg.err != nil {
				if errors.Is(msg.err, protocol.ErrMalformed) {
					p.violation(ctx, msg.err)
					continue
				}
				return p.failHandshake(msg.err)
			}

			switch m := msg.env.(type) {
			case protocol.Handshake:
				if m.Role != p.session.Role.Peer() {
					return p.failHandshake(fmt.Errorf("peer announced role %q", m.Role))
				}
				if !protocol.Compatible(m.Version) {
					return p.failHandshake(fmt.Errorf("incompatible protocol version %q", m.Version))
				}
				p.log.Info("session: handshake complete", "peer_version", m.Version)
				p.emit(ctx, Event{Kind: EventHandshakeComplete, PeerRole: m.Role})
				return nil
			case protocol.Disconnect:
				return p.failHandshake(ErrPeerDisconnected)
			case protocol.Ping:
			default:
				p.violation(ctx, fmt.Errorf("%w: %s before handshake", ErrProtocolViolation, m.Kind()))
			}
		}
	}
}

func (p *Peer) failHandshake(err error) *End {
	p.sendQuietly(protocol.Disconnect{})
	return &End{Reason: ReasonHandshakeFailed, Err: fmt.Errorf("%w: %w", ErrHandshakeFailed, err)}
}

func (p *Peer) cancelled(ctx context.Context) *End {
	p.sendQuietly(protocol.Disconnect{})
	return &End{Reason: ReasonCancelled, Err: ctx.Err()}
}

func (p *Peer) lost(err error) *End {
	return &End{Reason: ReasonConnectionLost, Err: fmt.Errorf("%w: %w", ErrConnectionLost, err)}
}

func (p *Peer) send(env protocol.Envelope) error {
	line, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	return p.conn.WriteLine(line)
}

func (p *Peer) sendQuietly(env protocol.Envelope) {
	if err := p.send(env); err != nil {
		p.log.Debug("session: best-effort send failed", "type", env.Kind(), "error", err)
	}
}

func (p *Peer) transition(s State) {
	if p.session.State == s {
		return
	}
	p.log.Debug("session: state", "from", p.session.State.String(), "to", s.String())
	p.session.State = s
}

func (p *Peer) violation(ctx context.Context, err error) {
	metrics.ProtocolViolations.WithLabelValues(string(p.session.Role)).Inc()
	p.log.Warn("session: protocol violation", "state", p.session.State.String(), "error", err)
	p.emit(ctx, Event{Kind: EventProtocolViolation, Err: err})
}

func (p *Peer) emit(ctx context.Context, ev Event) {
	select {
	case p.events <- ev:
	case <-ctx.Done():
	}
}

func (p *Peer) finish(end End) {
	t := time.NewTimer(finalEventWait)
	defer t.Stop()

	select {
	case p.events <- Event{Kind: EventSessionEnded, Reason: end.Reason, Err: end.Err}:
	case <-t.C:
		p.log.Warn("session: events not drained, dropping end event")
	}
	close(p.events)
}
