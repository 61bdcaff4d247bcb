package game

import (
	"errors"
	"testing"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		a, b Move
		want Outcome
	}{
		{Rock, Scissors, FirstWins},
		{Scissors, Paper, FirstWins},
		{Paper, Rock, FirstWins},
		{Rock, Paper, SecondWins},
		{Scissors, Rock, SecondWins},
		{Paper, Scissors, SecondWins},
		{Rock, Rock, Tie},
		{Paper, Paper, Tie},
		{Scissors, Scissors, Tie},
	}

	for _, tc := range cases {
		if got := Resolve(tc.a, tc.b); got != tc.want {
			t.Fatalf("Resolve(%s,%s) = %s; want %s", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestResolveSymmetric(t *testing.T) {
	for _, a := range Moves {
		for _, b := range Moves {
			ab, ba := Resolve(a, b), Resolve(b, a)
			switch {
			case a == b:
				if ab != Tie || ba != Tie {
					t.Fatalf("Resolve(%s,%s) = %s/%s; want tie both ways", a, b, ab, ba)
				}
			case ab == FirstWins:
				if ba != SecondWins {
					t.Fatalf("Resolve(%s,%s) = first, reverse = %s", a, b, ba)
				}
			case ab == SecondWins:
				if ba != FirstWins {
					t.Fatalf("Resolve(%s,%s) = second, reverse = %s", a, b, ba)
				}
			default:
				t.Fatalf("Resolve(%s,%s) = tie for different moves", a, b)
			}
		}
	}
}

func TestParseMove(t *testing.T) {
	for _, m := range Moves {
		got, err := ParseMove(string(m))
		if err != nil || got != m {
			t.Fatalf("ParseMove(%q) = %q, %v", m, got, err)
		}
	}

	for _, bad := range []string{"", "rock", "Lizard", "Spock", " Rock"} {
		if _, err := ParseMove(bad); !errors.Is(err, ErrInvalidMove) {
			t.Fatalf("ParseMove(%q) err = %v; want ErrInvalidMove", bad, err)
		}
	}
}

func TestDecide(t *testing.T) {
	if w := Decide(Rock, Scissors); w != WinnerHost {
		t.Fatalf("Decide(Rock,Scissors) = %s", w)
	}
	if w := Decide(Rock, Paper); w != WinnerJoiner {
		t.Fatalf("Decide(Rock,Paper) = %s", w)
	}
	if w := Decide(Paper, Paper); w != WinnerTie {
		t.Fatalf("Decide(Paper,Paper) = %s", w)
	}
}

func TestScoresRecord(t *testing.T) {
	var s Scores
	s = s.Record(WinnerHost)
	s = s.Record(WinnerJoiner)
	s = s.Record(WinnerTie)
	s = s.Record(WinnerHost)

	if s.Host != 2 || s.Joiner != 1 {
		t.Fatalf("scores = %+v; want host=2 joiner=1", s)
	}
	if s.Total() != 3 {
		t.Fatalf("total = %d; want 3", s.Total())
	}
	if s.Of(RoleJoiner) != 1 {
		t.Fatalf("joiner score = %d", s.Of(RoleJoiner))
	}
}

func TestScoresFollows(t *testing.T) {
	prev := Scores{Host: 2, Joiner: 1}
	cases := []struct {
		next Scores
		want bool
	}{
		{Scores{Host: 2, Joiner: 1}, true},
		{Scores{Host: 3, Joiner: 1}, true},
		{Scores{Host: 2, Joiner: 2}, true},
		{Scores{Host: 3, Joiner: 2}, false},
		{Scores{Host: 1, Joiner: 2}, false},
		{Scores{Host: 4, Joiner: 1}, false},
	}
	for _, tc := range cases {
		if got := tc.next.Follows(prev); got != tc.want {
			t.Fatalf("%+v.Follows(%+v) = %v; want %v", tc.next, prev, got, tc.want)
		}
	}
}

func TestOutcomeFor(t *testing.T) {
	if OutcomeFor(RoleHost, WinnerHost) != FirstWins {
		t.Fatal("host should see its own win as FirstWins")
	}
	if OutcomeFor(RoleJoiner, WinnerHost) != SecondWins {
		t.Fatal("joiner should see a host win as SecondWins")
	}
	if OutcomeFor(RoleJoiner, WinnerTie) != Tie {
		t.Fatal("tie should stay a tie")
	}
}

func TestRandomMoveValid(t *testing.T) {
	for i := 0; i < 100; i++ {
		if err := RandomMove().Validate(); err != nil {
			t.Fatalf("RandomMove produced invalid move: %v", err)
		}
	}
}

func TestFormatScore(t *testing.T) {
	if got := FormatScore(1, 0); got != "1 - 0" {
		t.Fatalf("FormatScore = %q", got)
	}
}
