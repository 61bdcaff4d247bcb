package protocol

import (
	"strings"

	"rpsnet/internal/game"
)

// Kind is the value of the "type" discriminator on the wire.
type Kind string

const (
	KindHandshake  Kind = "handshake"
	KindMove       Kind = "move"
	KindResult     Kind = "result"
	KindDisconnect Kind = "disconnect"
	KindPing       Kind = "ping"
)

// ProtocolVersion is announced in every handshake.
const ProtocolVersion = "1.0"

// DefaultPort is the TCP port the host listens on unless told otherwise.
const DefaultPort = 50007

// Compatible reports whether a peer announcing version v can play with us.
// Only the major component has to match.
func Compatible(v string) bool {
	return major(v) != "" && major(v) == major(ProtocolVersion)
}

func major(v string) string {
	m, _, _ := strings.Cut(v, ".")
	return m
}

// Envelope is one line on the wire. The set of implementations is closed.
type Envelope interface {
	Kind() Kind
	envelope()
}

type Handshake struct {
	Role    game.Role
	Version string
}

// MoveSubmission carries a player's move for a round. Move is not
// validated by Decode; Round 0 means the sender did not say.
type MoveSubmission struct {
	Role  game.Role
	Move  game.Move
	Round uint64
}

type RoundResult struct {
	Winner      game.Winner
	HostMove    game.Move
	JoinerMove  game.Move
	HostScore   uint64
	JoinerScore uint64
	Round       uint64
}

// Scores returns the reported scores as a game.Scores value.
func (r RoundResult) Scores() game.Scores {
	return game.Scores{Host: r.HostScore, Joiner: r.JoinerScore}
}

type Disconnect struct{}

// Ping keeps an idle connection inside the peer's read timeout.
type Ping struct{}

func (Handshake) Kind() Kind      { return KindHandshake }
func (MoveSubmission) Kind() Kind { return KindMove }
func (RoundResult) Kind() Kind    { return KindResult }
func (Disconnect) Kind() Kind     { return KindDisconnect }
func (Ping) Kind() Kind           { return KindPing }

func (Handshake) envelope()      {}
func (MoveSubmission) envelope() {}
func (RoundResult) envelope()    {}
func (Disconnect) envelope()     {}
func (Ping) envelope()           {}
