package session

import "rpsnet/internal/game"

type EventKind int

const (
	EventHandshakeComplete EventKind = iota + 1
	EventRoundResult
	EventInvalidMove
	EventProtocolViolation
	EventSessionEnded
)

func (k EventKind) String() string {
	switch k {
	case EventHandshakeComplete:
		return "handshake_complete"
	case EventRoundResult:
		return "round_result"
	case EventInvalidMove:
		return "invalid_move"
	case EventProtocolViolation:
		return "protocol_violation"
	case EventSessionEnded:
		return "session_ended"
	default:
		return "unknown"
	}
}

// Event is pushed to whoever renders the game. Only the fields that
// belong to Kind are set.
type Event struct {
	Kind EventKind

	// EventHandshakeComplete
	PeerRole game.Role

	// EventRoundResult
	Result *RoundReport

	// EventSessionEnded
	Reason EndReason

	// EventInvalidMove, EventProtocolViolation, EventSessionEnded
	Err error
}

// RoundReport is a settled round seen from the local player.
type RoundReport struct {
	Role       game.Role
	Round      uint64
	Winner     game.Winner
	Outcome    game.Outcome
	LocalMove  game.Move
	RemoteMove game.Move
	Scores     game.Scores
}
