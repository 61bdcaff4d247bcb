package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"rpsnet/internal/game"
)

// ErrMalformed wraps every Decode failure.
var ErrMalformed = errors.New("malformed message")

// wireMessage is the union of all fields any kind may carry. Field order
// fixes the order of keys in encoded lines.
type wireMessage struct {
	Type        Kind    `json:"type"`
	Player      *string `json:"player,omitempty"`
	Version     *string `json:"version,omitempty"`
	Winner      *string `json:"winner,omitempty"`
	Move        *string `json:"move,omitempty"`
	ServerMove  *string `json:"server_move,omitempty"`
	ClientMove  *string `json:"client_move,omitempty"`
	ServerScore *uint64 `json:"server_score,omitempty"`
	ClientScore *uint64 `json:"client_score,omitempty"`
	Round       *uint64 `json:"round,omitempty"`
}

// Encode renders e as a single JSON line without the trailing newline.
func Encode(e Envelope) ([]byte, error) {
	var w wireMessage

	switch m := e.(type) {
	case Handshake:
		w.Type = KindHandshake
		w.Player = str(string(m.Role))
		w.Version = str(m.Version)
	case MoveSubmission:
		w.Type = KindMove
		if m.Role != "" {
			w.Player = str(string(m.Role))
		}
		w.Move = str(string(m.Move))
		if m.Round != 0 {
			w.Round = &m.Round
		}
	case RoundResult:
		w.Type = KindResult
		w.Winner = str(string(m.Winner))
		w.ServerMove = str(string(m.HostMove))
		w.ClientMove = str(string(m.JoinerMove))
		w.ServerScore = &m.HostScore
		w.ClientScore = &m.JoinerScore
		w.Round = &m.Round
	case Disconnect:
		w.Type = KindDisconnect
	case Ping:
		w.Type = KindPing
	default:
		return nil, fmt.Errorf("encode: unsupported envelope %T", e)
	}

	// json.Marshal escapes control characters inside strings, so the
	// output never contains a raw newline.
	return json.Marshal(w)
}

// Decode parses one line. Any failure wraps ErrMalformed.
func Decode(line []byte) (Envelope, error) {
	var w wireMessage
	if err := json.Unmarshal(line, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch w.Type {
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)

	case KindHandshake:
		if w.Player == nil || w.Version == nil {
			return nil, missing(w.Type, "player", "version")
		}
		return Handshake{Role: game.Role(*w.Player), Version: *w.Version}, nil

	case KindMove:
		if w.Move == nil {
			return nil, missing(w.Type, "move")
		}
		m := MoveSubmission{Move: game.Move(*w.Move)}
		if w.Player != nil {
			m.Role = game.Role(*w.Player)
		}
		if w.Round != nil {
			m.Round = *w.Round
		}
		return m, nil

	case KindResult:
		if w.Winner == nil || w.ServerMove == nil || w.ClientMove == nil ||
			w.ServerScore == nil || w.ClientScore == nil || w.Round == nil {
			return nil, missing(w.Type, "winner", "server_move", "client_move", "server_score", "client_score", "round")
		}
		winner := game.Winner(*w.Winner)
		if !winner.Valid() {
			return nil, fmt.Errorf("%w: unknown winner %q", ErrMalformed, *w.Winner)
		}
		return RoundResult{
			Winner:      winner,
			HostMove:    game.Move(*w.ServerMove),
			JoinerMove:  game.Move(*w.ClientMove),
			HostScore:   *w.ServerScore,
			JoinerScore: *w.ClientScore,
			Round:       *w.Round,
		}, nil

	case KindDisconnect:
		return Disconnect{}, nil

	case KindPing:
		return Ping{}, nil
	}

	return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, w.Type)
}

func missing(k Kind, fields ...string) error {
	return fmt.Errorf("%w: %s requires %v", ErrMalformed, k, fields)
}

func str(s string) *string {
	return &s
}
