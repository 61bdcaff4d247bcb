package game

import "fmt"

// Role identifies one side of a session. The values are the labels the
// peers put on the wire.
type Role string

const (
	RoleHost   Role = "server"
	RoleJoiner Role = "client"
)

// Peer returns the opposite role.
func (r Role) Peer() Role {
	if r == RoleHost {
		return RoleJoiner
	}
	return RoleHost
}

func (r Role) Valid() bool {
	return r == RoleHost || r == RoleJoiner
}

// Winner is the authoritative round verdict broadcast by the host.
type Winner string

const (
	WinnerHost   Winner = "server"
	WinnerJoiner Winner = "client"
	WinnerTie    Winner = "tie"
)

func (w Winner) Valid() bool {
	return w == WinnerHost || w == WinnerJoiner || w == WinnerTie
}

// Outcome is the result of comparing an ordered pair of moves.
type Outcome int

const (
	Tie Outcome = iota
	FirstWins
	SecondWins
)

func (o Outcome) String() string {
	switch o {
	case FirstWins:
		return "first_wins"
	case SecondWins:
		return "second_wins"
	default:
		return "tie"
	}
}

// OutcomeFor translates a round verdict into an outcome seen from role:
// FirstWins means role won.
func OutcomeFor(role Role, w Winner) Outcome {
	switch w {
	case WinnerTie:
		return Tie
	case Winner(role):
		return FirstWins
	default:
		return SecondWins
	}
}

// Scores holds both players' points for the current session.
type Scores struct {
	Host   uint64
	Joiner uint64
}

// Record returns the scores after a round with verdict w. A tie leaves
// the scores unchanged.
func (s Scores) Record(w Winner) Scores {
	switch w {
	case WinnerHost:
		s.Host++
	case WinnerJoiner:
		s.Joiner++
	}
	return s
}

// Total is the number of decisive rounds.
func (s Scores) Total() uint64 {
	return s.Host + s.Joiner
}

// Of returns the score of role.
func (s Scores) Of(role Role) uint64 {
	if role == RoleHost {
		return s.Host
	}
	return s.Joiner
}

// Follows reports whether s is a legal successor of prev after exactly
// one round: nothing decreases and at most one point is added.
func (s Scores) Follows(prev Scores) bool {
	if s.Host < prev.Host || s.Joiner < prev.Joiner {
		return false
	}
	return s.Total()-prev.Total() <= 1
}

// FormatScore renders a "mine - theirs" score line.
func FormatScore(local, remote uint64) string {
	return fmt.Sprintf("%d - %d", local, remote)
}
