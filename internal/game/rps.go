package game

import (
	"errors"
	"fmt"
	"math/rand"
)

// ErrInvalidMove is returned for any token outside Rock, Paper, Scissors.
var ErrInvalidMove = errors.New("invalid move")

type Move string

const (
	Rock     Move = "Rock"
	Paper    Move = "Paper"
	Scissors Move = "Scissors"
)

// Moves lists every valid move.
var Moves = [...]Move{Rock, Paper, Scissors}

func (m Move) Validate() error {
	switch m {
	case Rock, Paper, Scissors:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidMove, string(m))
}

func (m Move) String() string {
	return string(m)
}

// ParseMove accepts exactly the wire tokens "Rock", "Paper" and "Scissors".
func ParseMove(s string) (Move, error) {
	m := Move(s)
	if err := m.Validate(); err != nil {
		return "", err
	}
	return m, nil
}

// Resolve compares a against b.
func Resolve(a, b Move) Outcome {
	if a == b {
		return Tie
	}
	if beats(a, b) {
		return FirstWins
	}
	return SecondWins
}

// Decide resolves a round with the host's move first.
func Decide(hostMove, joinerMove Move) Winner {
	switch Resolve(hostMove, joinerMove) {
	case FirstWins:
		return WinnerHost
	case SecondWins:
		return WinnerJoiner
	default:
		return WinnerTie
	}
}

// RandomMove picks a move uniformly, for automated players.
func RandomMove() Move {
	return Moves[rand.Intn(len(Moves))]
}

func beats(a, b Move) bool {
	switch a {
	case Rock:
		return b == Scissors
	case Paper:
		return b == Rock
	case Scissors:
		return b == Paper
	}
	return false
}
