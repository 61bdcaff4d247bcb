package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"rpsnet/internal/game"
	"rpsnet/internal/session"
)

// Prompter asks a human for moves. It satisfies session.MoveSource.
type Prompter struct {
	in  io.Reader
	out io.Writer

	once  sync.Once
	lines chan string
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out}
}

// readLines feeds lines from in until EOF. Reading from a terminal cannot
// be interrupted, so it lives for the whole process.
func (p *Prompter) readLines() {
	p.lines = make(chan string)
	go func() {
		defer close(p.lines)
		sc := bufio.NewScanner(p.in)
		for sc.Scan() {
			p.lines <- sc.Text()
		}
	}()
}

func (p *Prompter) NextMove(ctx context.Context, round uint64) (game.Move, error) {
	p.once.Do(p.readLines)

	for {
		fmt.Fprintf(p.out, "Round %d. Rock, Paper or Scissors? ", round)

		select {
		case <-ctx.Done():
			fmt.Fprintln(p.out)
			return "", ctx.Err()
		case line, ok := <-p.lines:
			if !ok {
				return "", session.ErrQuit
			}
			input := normalize(line)
			if strings.EqualFold(input, "quit") {
				return "", session.ErrQuit
			}
			m, err := game.ParseMove(input)
			if err != nil {
				fmt.Fprintf(p.out, "Invalid move %q. Try again or type quit.\n", strings.TrimSpace(line))
				continue
			}
			return m, nil
		}
	}
}

// normalize trims s and upper-cases its first letter, so "rock" plays Rock.
func normalize(s string) string {
	s = strings.TrimSpace(s)
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

// Render prints events until the channel closes.
func Render(events <-chan session.Event, w io.Writer) {
	for ev := range events {
		switch ev.Kind {
		case session.EventHandshakeComplete:
			fmt.Fprintf(w, "Connected to %s.\n", ev.PeerRole)
		case session.EventRoundResult:
			renderRound(w, *ev.Result)
		case session.EventInvalidMove:
			fmt.Fprintf(w, "Move not played: %v\n", ev.Err)
		case session.EventProtocolViolation:
			fmt.Fprintf(w, "Ignored bad message from peer: %v\n", ev.Err)
		case session.EventSessionEnded:
			renderEnd(w, ev)
		}
	}
}

func renderRound(w io.Writer, r session.RoundReport) {
	fmt.Fprintf(w, "\nRound %d: you played %s, opponent played %s.\n", r.Round, r.LocalMove, r.RemoteMove)
	switch r.Outcome {
	case game.FirstWins:
		fmt.Fprintln(w, "You Win!")
	case game.SecondWins:
		fmt.Fprintln(w, "You Lose!")
	default:
		fmt.Fprintln(w, "It's a Tie!")
	}
	fmt.Fprintf(w, "Score: %s\n\n", localScore(r))
}

// localScore puts the local player's points first.
func localScore(r session.RoundReport) string {
	return game.FormatScore(r.Scores.Of(r.Role), r.Scores.Of(r.Role.Peer()))
}

func renderEnd(w io.Writer, ev session.Event) {
	switch ev.Reason {
	case session.ReasonQuit:
		fmt.Fprintln(w, "You left the game.")
	case session.ReasonPeerDisconnected:
		fmt.Fprintln(w, "Opponent left the game.")
	case session.ReasonCancelled:
		fmt.Fprintln(w, "Game interrupted.")
	default:
		fmt.Fprintf(w, "Game over: %s (%v)\n", ev.Reason, ev.Err)
	}
}
