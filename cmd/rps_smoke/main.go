package main

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"rpsnet/internal/game"
	"rpsnet/internal/logger"
	"rpsnet/internal/session"
	"rpsnet/internal/transport"

	"gopkg.in/urfave/cli.v1"
)

func main() {
	app := cli.NewApp()
	app.Name = "rps_smoke"
	app.Usage = "play a host and a joiner against each other over loopback"
	app.Flags = []cli.Flag{
		cli.IntFlag{Name: "rounds", Value: 10, Usage: "rounds the host plays before quitting"},
		cli.BoolFlag{Name: "ws", Usage: "use the WebSocket binding instead of TCP"},
		cli.StringFlag{Name: "log-level", Value: "warn"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger.Init(c.String("log-level"), false)

	rounds := c.Int("rounds")
	if rounds <= 0 {
		return cli.NewExitError("--rounds must be positive", 2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	opts := transport.DefaultOptions()
	opts.ReadTimeout = 10 * time.Second

	dial := tcpPair
	if c.Bool("ws") {
		dial = wsPair
	}
	hostConn, joinConn, err := dial(ctx, opts)
	if err != nil {
		return err
	}

	host := session.NewHost(hostConn, session.RandomMoves(rounds), session.WithKeepalive(time.Second))
	joiner := session.NewJoiner(joinConn, session.RandomMoves(0), session.WithKeepalive(time.Second))

	hostDone := collect(ctx, host)
	joinDone := collect(ctx, joiner)
	hr, jr := <-hostDone, <-joinDone

	if err := verify(rounds, hr, jr); err != nil {
		return cli.NewExitError("smoke failed: "+err.Error(), 1)
	}

	s := hr.end.Session
	fmt.Printf("ok: %d rounds, host %d - joiner %d, %d ties\n",
		s.Round, s.Scores.Host, s.Scores.Joiner, s.Round-s.Scores.Total())
	return nil
}

type outcome struct {
	end     session.End
	reports []session.RoundReport
}

func collect(ctx context.Context, p *session.Peer) <-chan outcome {
	done := make(chan outcome, 1)
	reports := make(chan []session.RoundReport, 1)
	go func() {
		var rs []session.RoundReport
		for ev := range p.Events() {
			if ev.Kind == session.EventRoundResult {
				rs = append(rs, *ev.Result)
			}
		}
		reports <- rs
	}()
	go func() {
		end := p.Run(ctx)
		done <- outcome{end: end, reports: <-reports}
	}()
	return done
}

// verify checks both sides agree on every round and the score adds up.
func verify(rounds int, host, joiner outcome) error {
	if host.end.Reason != session.ReasonQuit {
		return fmt.Errorf("host ended with %s: %v", host.end.Reason, host.end.Err)
	}
	if joiner.end.Reason != session.ReasonPeerDisconnected {
		return fmt.Errorf("joiner ended with %s: %v", joiner.end.Reason, joiner.end.Err)
	}
	if len(host.reports) != rounds || len(joiner.reports) != rounds {
		return fmt.Errorf("rounds settled: host=%d joiner=%d, want %d", len(host.reports), len(joiner.reports), rounds)
	}

	var scores game.Scores
	for i := range host.reports {
		h, j := host.reports[i], joiner.reports[i]
		if h.Round != uint64(i+1) || j.Round != h.Round {
			return fmt.Errorf("round numbering: host=%d joiner=%d at index %d", h.Round, j.Round, i)
		}
		if h.Winner != game.Decide(h.LocalMove, h.RemoteMove) {
			return fmt.Errorf("round %d: host declared %s for %s vs %s", h.Round, h.Winner, h.LocalMove, h.RemoteMove)
		}
		if j.Winner != h.Winner || j.LocalMove != h.RemoteMove || j.RemoteMove != h.LocalMove {
			return fmt.Errorf("round %d: sides disagree: host=%+v joiner=%+v", h.Round, h, j)
		}
		scores = scores.Record(h.Winner)
		if h.Scores != scores || j.Scores != scores {
			return fmt.Errorf("round %d: scores host=%+v joiner=%+v want %+v", h.Round, h.Scores, j.Scores, scores)
		}
	}
	if host.end.Session.Scores != joiner.end.Session.Scores {
		return errors.New("final scores differ")
	}
	return nil
}

func tcpPair(ctx context.Context, opts transport.Options) (transport.Conn, transport.Conn, error) {
	ln, err := transport.Listen(ctx, "127.0.0.1:0", opts)
	if err != nil {
		return nil, nil, err
	}

	// use 127.0.0.1 to prefer IPv4 (avoid resolving to [::1])
	joiner, err := transport.Dial(ctx, ln.Addr().String(), opts)
	if err != nil {
		_ = ln.Close()
		return nil, nil, err
	}
	host, err := ln.Accept(ctx)
	if err != nil {
		_ = joiner.Close()
		return nil, nil, err
	}
	return host, joiner, nil
}

func wsPair(ctx context.Context, opts transport.Options) (transport.Conn, transport.Conn, error) {
	ln := transport.NewWSListener(opts, "")
	// The test server lives until the process exits.
	srv := httptest.NewServer(ln)

	joiner, err := transport.DialWS(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), opts)
	if err != nil {
		srv.Close()
		return nil, nil, err
	}
	host, err := ln.Accept(ctx)
	if err != nil {
		_ = joiner.Close()
		srv.Close()
		return nil, nil, err
	}
	return host, joiner, nil
}
