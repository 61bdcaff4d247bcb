package protocol

import (
	"bytes"
	"errors"
	"testing"

	"rpsnet/internal/game"
)

func TestEncodeWireFormat(t *testing.T) {
	cases := []struct {
		env  Envelope
		want string
	}{
		{
			Handshake{Role: game.RoleHost, Version: ProtocolVersion},
			`{"type":"handshake","player":"server","version":"1.0"}`,
		},
		{
			MoveSubmission{Role: game.RoleHost, Move: game.Rock, Round: 1},
			`{"type":"move","player":"server","move":"Rock","round":1}`,
		},
		{
			RoundResult{Winner: game.WinnerHost, HostMove: game.Rock, JoinerMove: game.Scissors, HostScore: 1, JoinerScore: 0, Round: 1},
			`{"type":"result","winner":"server","server_move":"Rock","client_move":"Scissors","server_score":1,"client_score":0,"round":1}`,
		},
		{Disconnect{}, `{"type":"disconnect"}`},
		{Ping{}, `{"type":"ping"}`},
	}

	for _, tc := range cases {
		got, err := Encode(tc.env)
		if err != nil {
			t.Fatalf("Encode(%#v): %v", tc.env, err)
		}
		if string(got) != tc.want {
			t.Fatalf("Encode(%#v) = %s; want %s", tc.env, got, tc.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	envs := []Envelope{
		Handshake{Role: game.RoleJoiner, Version: "1.0"},
		Handshake{Role: game.RoleHost, Version: "line\nbreak"},
		MoveSubmission{Role: game.RoleJoiner, Move: game.Scissors, Round: 7},
		MoveSubmission{Move: game.Paper},
		RoundResult{Winner: game.WinnerTie, HostMove: game.Paper, JoinerMove: game.Paper, HostScore: 3, JoinerScore: 2, Round: 9},
		RoundResult{Winner: game.WinnerJoiner, HostMove: game.Rock, JoinerMove: game.Paper, Round: 1, JoinerScore: 1},
		Disconnect{},
		Ping{},
	}

	for _, e := range envs {
		line, err := Encode(e)
		if err != nil {
			t.Fatalf("Encode(%#v): %v", e, err)
		}
		if bytes.ContainsAny(line, "\r\n") {
			t.Fatalf("Encode(%#v) produced a multi-line message: %q", e, line)
		}
		got, err := Decode(line)
		if err != nil {
			t.Fatalf("Decode(%s): %v", line, err)
		}
		if got != e {
			t.Fatalf("round trip: got %#v; want %#v", got, e)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	lines := []string{
		``,
		`   `,
		`not json`,
		`null`,
		`[]`,
		`{}`,
		`{"player":"server"}`,
		`{"type":"hello"}`,
		`{"type":5}`,
		`{"type":"handshake","player":"server"}`,
		`{"type":"move","player":"client","round":1}`,
		`{"type":"result","winner":"server","server_move":"Rock","client_move":"Scissors","server_score":1,"round":1}`,
		`{"type":"result","winner":"nobody","server_move":"Rock","client_move":"Scissors","server_score":1,"client_score":0,"round":1}`,
		`{"type":"move","move":"Rock","round":-1}`,
	}

	for _, l := range lines {
		env, err := Decode([]byte(l))
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("Decode(%q) = %#v, %v; want ErrMalformed", l, env, err)
		}
	}
}

func TestDecodeAcceptsUnknownMoveToken(t *testing.T) {
	env, err := Decode([]byte(`{"type":"move","move":"Lizard"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	m, ok := env.(MoveSubmission)
	if !ok {
		t.Fatalf("got %T; want MoveSubmission", env)
	}
	if !errors.Is(m.Move.Validate(), game.ErrInvalidMove) {
		t.Fatalf("Lizard should fail move validation")
	}
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	env, err := Decode([]byte(`{"type":"handshake","player":"client","version":"1.0","nickname":"bob","caps":[1,2]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := Handshake{Role: game.RoleJoiner, Version: "1.0"}
	if env != want {
		t.Fatalf("got %#v; want %#v", env, want)
	}
}

func TestCompatible(t *testing.T) {
	cases := map[string]bool{
		"1.0": true,
		"1.7": true,
		"1":   true,
		"2.0": false,
		"":    false,
		"0.9": false,
	}
	for v, want := range cases {
		if got := Compatible(v); got != want {
			t.Fatalf("Compatible(%q) = %v; want %v", v, got, want)
		}
	}
}
