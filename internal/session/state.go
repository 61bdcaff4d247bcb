package session

import (
	"errors"

	"rpsnet/internal/game"
)

type State int

const (
	StateConnecting State = iota
	StateHandshaking
	StateAwaitingLocalMove
	StateAwaitingRemoteMove
	StateRoundSettled
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateAwaitingLocalMove:
		return "awaiting_local_move"
	case StateAwaitingRemoteMove:
		return "awaiting_remote_move"
	case StateRoundSettled:
		return "round_settled"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session is the state of one game conversation. It is owned by the
// Peer's protocol loop; callers only ever see copies.
type Session struct {
	ID     string
	Role   game.Role
	Round  uint64
	Scores game.Scores
	State  State
}

type EndReason string

const (
	ReasonQuit             EndReason = "quit"
	ReasonCancelled        EndReason = "cancelled"
	ReasonHandshakeFailed  EndReason = "handshake_failed"
	ReasonPeerDisconnected EndReason = "peer_disconnected"
	ReasonConnectionLost   EndReason = "connection_lost"
)

// End describes how a session finished.
type End struct {
	Reason  EndReason
	Err     error
	Session Session
}

var (
	ErrHandshakeFailed   = errors.New("handshake failed")
	ErrPeerDisconnected  = errors.New("peer disconnected")
	ErrConnectionLost    = errors.New("connection lost")
	ErrProtocolViolation = errors.New("protocol violation")
)
