package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rpsnet/internal/game"
	"rpsnet/internal/metrics"
	"rpsnet/internal/protocol"
)

// round is the in-flight state of the round being played.
type round struct {
	number uint64
	local  game.Move
	// remote is the peer's MoveSubmission. The joiner keeps it only for
	// logging; the host's result is what counts.
	remote game.Move
}

type moveReply struct {
	move game.Move
	err  error
}

func (p *Peer) requestMove(ctx context.Context, n uint64) <-chan moveReply {
	ch := make(chan moveReply, 1)
	go func() {
		m, err := p.moves.NextMove(ctx, n)
		ch <- moveReply{move: m, err: err}
	}()
	return ch
}

// playRound runs one round to completion. It returns nil once the round
// is settled on this side, or the End that stopped the session.
func (p *Peer) playRound(ctx context.Context, in <-chan inbound) *End {
	r := &round{number: p.session.Round + 1}
	p.transition(StateAwaitingLocalMove)

	moveCtx, cancelMove := context.WithCancel(ctx)
	defer cancelMove()
	moves := p.requestMove(moveCtx, r.number)

	var keepalive <-chan time.Time
	if p.keepalive > 0 {
		t := time.NewTicker(p.keepalive)
		defer t.Stop()
		keepalive = t.C
	}

	for {
		if p.session.Role == game.RoleHost && r.local != "" && r.remote != "" {
			return p.settle(ctx, in, r)
		}

		select {
		case <-ctx.Done():
			return p.cancelled(ctx)

		case reply := <-moves:
			if reply.err != nil {
				if ctx.Err() != nil {
					return p.cancelled(ctx)
				}
				p.sendQuietly(protocol.Disconnect{})
				if errors.Is(reply.err, ErrQuit) {
					return &End{Reason: ReasonQuit}
				}
				return &End{Reason: ReasonQuit, Err: fmt.Errorf("move source: %w", reply.err)}
			}

			if err := reply.move.Validate(); err != nil {
				p.log.Warn("session: rejected local move", "round", r.number, "error", err)
				p.emit(ctx, Event{Kind: EventInvalidMove, Err: err})
				moves = p.requestMove(moveCtx, r.number)
				continue
			}

			r.local = reply.move
			moves = nil
			sub := protocol.MoveSubmission{Role: p.session.Role, Move: r.local, Round: r.number}
			if err := p.send(sub); err != nil {
				return p.writeFailed(in, err)
			}
			p.log.Debug("session: move sent", "round", r.number)
			p.transition(StateAwaitingRemoteMove)

		case msg := <-in:
			end, settled := p.receive(ctx, msg, r)
			if end != nil {
				return end
			}
			if settled {
				return nil
			}

		case <-keepalive:
			if err := p.send(protocol.Ping{}); err != nil {
				return p.writeFailed(in, err)
			}
		}
	}
}

// receive handles one inbound line during a round. settled is true when
// the joiner adopted the host's result.
func (p *Peer) receive(ctx context.Context, msg inbound, r *round) (end *End, settled bool) {
	if msg.err != nil {
		if errors.Is(msg.err, protocol.ErrMalformed) {
			p.violation(ctx, msg.err)
			return nil, false
		}
		return p.lost(msg.err), false
	}

	switch m := msg.env.(type) {
	case protocol.Ping:
		return nil, false

	case protocol.Disconnect:
		p.log.Info("session: peer disconnected", "round", r.number)
		return &End{Reason: ReasonPeerDisconnected, Err: ErrPeerDisconnected}, false

	case protocol.MoveSubmission:
		if err := p.acceptMove(m, r); err != nil {
			p.violation(ctx, err)
		}
		return nil, false

	case protocol.RoundResult:
		if p.session.Role == game.RoleHost {
			p.violation(ctx, fmt.Errorf("%w: only the host may send results", ErrProtocolViolation))
			return nil, false
		}
		if err := p.adopt(ctx, m, r); err != nil {
			p.violation(ctx, err)
			return nil, false
		}
		return nil, true

	default:
		p.violation(ctx, fmt.Errorf("%w: unexpected %s in round %d", ErrProtocolViolation, m.Kind(), r.number))
		return nil, false
	}
}

// writeFailed ends the session after a failed send. A peer that said
// Disconnect before closing is reported as gone, not lost, even when our
// write reached the socket after its close.
func (p *Peer) writeFailed(in <-chan inbound, err error) *End {
	t := time.NewTimer(disconnectGrace)
	defer t.Stop()

	for {
		select {
		case msg := <-in:
			if msg.err != nil {
				if errors.Is(msg.err, protocol.ErrMalformed) {
					continue
				}
				return p.lost(err)
			}
			if _, ok := msg.env.(protocol.Disconnect); ok {
				p.log.Info("session: peer disconnected")
				return &End{Reason: ReasonPeerDisconnected, Err: ErrPeerDisconnected}
			}
		case <-t.C:
			return p.lost(err)
		}
	}
}

func (p *Peer) acceptMove(m protocol.MoveSubmission, r *round) error {
	if err := m.Move.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}
	if m.Role != "" && m.Role != p.session.Role.Peer() {
		return fmt.Errorf("%w: move from role %q", ErrProtocolViolation, m.Role)
	}
	if m.Round != 0 && m.Round != r.number {
		return fmt.Errorf("%w: move for round %d during round %d", ErrProtocolViolation, m.Round, r.number)
	}
	if r.remote != "" {
		return fmt.Errorf("%w: second move in round %d", ErrProtocolViolation, r.number)
	}

	r.remote = m.Move
	p.log.Debug("session: remote move received", "round", r.number)
	return nil
}

// settle is the host's half of a round: decide, send the result, and
// only then commit the new scores.
func (p *Peer) settle(ctx context.Context, in <-chan inbound, r *round) *End {
	winner := game.Decide(r.local, r.remote)
	scores := p.session.Scores.Record(winner)

	res := protocol.RoundResult{
		Winner:      winner,
		HostMove:    r.local,
		JoinerMove:  r.remote,
		HostScore:   scores.Host,
		JoinerScore: scores.Joiner,
		Round:       r.number,
	}
	if err := p.send(res); err != nil {
		return p.writeFailed(in, err)
	}

	p.session.Round = r.number
	p.session.Scores = scores
	p.settled(ctx, res)
	return nil
}

// adopt is the joiner's half: take the host's verdict and scores as
// they are. Results that cannot follow the current state are refused.
func (p *Peer) adopt(ctx context.Context, res protocol.RoundResult, r *round) error {
	if r.local == "" {
		return fmt.Errorf("%w: result for round %d before our move", ErrProtocolViolation, res.Round)
	}
	if res.Round != r.number {
		return fmt.Errorf("%w: result for round %d during round %d", ErrProtocolViolation, res.Round, r.number)
	}
	if err := res.HostMove.Validate(); err != nil {
		return fmt.Errorf("%w: server_move: %w", ErrProtocolViolation, err)
	}
	if err := res.JoinerMove.Validate(); err != nil {
		return fmt.Errorf("%w: client_move: %w", ErrProtocolViolation, err)
	}
	scores := res.Scores()
	if !scores.Follows(p.session.Scores) {
		return fmt.Errorf("%w: scores %d-%d cannot follow %d-%d", ErrProtocolViolation,
			scores.Host, scores.Joiner, p.session.Scores.Host, p.session.Scores.Joiner)
	}
	if res.JoinerMove != r.local {
		p.log.Warn("session: host reported a different move for us", "round", r.number, "sent", r.local, "reported", res.JoinerMove)
	}

	p.session.Round = res.Round
	p.session.Scores = scores
	p.settled(ctx, res)
	return nil
}

func (p *Peer) settled(ctx context.Context, res protocol.RoundResult) {
	p.transition(StateRoundSettled)
	metrics.RoundsSettled.WithLabelValues(string(p.session.Role), string(res.Winner)).Inc()

	local, remote := res.HostMove, res.JoinerMove
	if p.session.Role == game.RoleJoiner {
		local, remote = remote, local
	}

	report := RoundReport{
		Role:       p.session.Role,
		Round:      res.Round,
		Winner:     res.Winner,
		Outcome:    game.OutcomeFor(p.session.Role, res.Winner),
		LocalMove:  local,
		RemoteMove: remote,
		Scores:     res.Scores(),
	}

	p.log.Info("session: round settled",
		"round", report.Round,
		"winner", string(report.Winner),
		"score", game.FormatScore(report.Scores.Host, report.Scores.Joiner),
	)
	p.emit(ctx, Event{Kind: EventRoundResult, Result: &report})
}
