package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"rpsnet/internal/config"
	"rpsnet/internal/console"
	httpServer "rpsnet/internal/http"
	"rpsnet/internal/http/middleware"
	"rpsnet/internal/logger"
	"rpsnet/internal/protocol"
	"rpsnet/internal/session"
	"rpsnet/internal/transport"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"gopkg.in/urfave/cli.v1"
)

var version = "dev"

func main() {
	app := cli.NewApp()
	app.Name = "rps"
	app.Usage = "Rock Paper Scissors between two machines"
	app.Version = version
	app.Commands = []cli.Command{
		{
			Name:      "host",
			Usage:     "wait for a player and referee the game",
			ArgsUsage: " ",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "port", Usage: "TCP port to listen on (default RPS_PORT)"},
				cli.IntFlag{Name: "bot-rounds", Usage: "play N random moves instead of reading stdin"},
			},
			Action: host,
		},
		{
			Name:      "join",
			Usage:     "connect to a host",
			ArgsUsage: "HOST",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "port", Usage: "host TCP port (default RPS_PORT)"},
				cli.BoolFlag{Name: "ws", Usage: "connect over WebSocket; HOST is the host's ops address or a ws:// URL"},
				cli.IntFlag{Name: "bot-rounds", Usage: "play N random moves instead of reading stdin"},
			},
			Action: join,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, cli.NewExitError(err.Error(), 2)
	}
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	if c.IsSet("port") {
		cfg.Port = c.Int("port")
		if err := cfg.Validate(); err != nil {
			return nil, cli.NewExitError(err.Error(), 2)
		}
	}
	return cfg, nil
}

func host(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := newStatus()

	var ws *transport.WSListener
	if cfg.OpsAddr != "" {
		ws = transport.NewWSListener(cfg.Transport(), cfg.AllowedOrigin)
		shutdown := startOps(ctx, cfg, st, ws)
		defer shutdown()
	}

	ln, err := transport.Listen(ctx, cfg.ListenAddr(), cfg.Transport())
	if err != nil {
		return err
	}
	ip := protocol.LocalIP()
	fmt.Printf("Waiting for a player on %s...\n", net.JoinHostPort(ip, strconv.Itoa(cfg.Port)))
	fmt.Printf("Share this with the other player: rps join %s --port %d\n", ip, cfg.Port)
	if ws != nil {
		fmt.Printf("WebSocket players can join at %s\n", opsURL(ip, cfg.OpsAddr))
	}

	conn, err := acceptFirst(ctx, ln, ws)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	fmt.Printf("Player connected from %s\n", conn.RemoteAddr())

	peer := session.NewHost(conn, moveSource(c), peerOptions(cfg)...)
	return play(ctx, peer, st)
}

func join(c *cli.Context) error {
	addr := c.Args().First()
	if addr == "" {
		return cli.NewExitError("usage: rps join HOST", 2)
	}

	cfg, err := setup(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var conn transport.Conn
	if c.Bool("ws") {
		conn, err = transport.DialWS(ctx, wsURL(addr), cfg.Transport())
	} else {
		conn, err = transport.Dial(ctx, net.JoinHostPort(addr, strconv.Itoa(cfg.Port)), cfg.Transport())
	}
	if err != nil {
		return err
	}
	fmt.Printf("Connected to %s\n", conn.RemoteAddr())

	peer := session.NewJoiner(conn, moveSource(c), peerOptions(cfg)...)
	return play(ctx, peer, newStatus())
}

// opsURL is the WebSocket address of the ops server as seen from the LAN.
func opsURL(ip, opsAddr string) string {
	host, port, err := net.SplitHostPort(opsAddr)
	if err != nil {
		return "ws://" + opsAddr + "/ws"
	}
	if host == "" || net.ParseIP(host).IsUnspecified() {
		host = ip
	}
	return "ws://" + net.JoinHostPort(host, port) + "/ws"
}

func wsURL(addr string) string {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return addr
	}
	return "ws://" + addr + "/ws"
}

func moveSource(c *cli.Context) session.MoveSource {
	if n := c.Int("bot-rounds"); n > 0 {
		return session.RandomMoves(n)
	}
	return console.NewPrompter(os.Stdin, os.Stdout)
}

func peerOptions(cfg *config.Config) []session.Option {
	return []session.Option{
		session.WithHandshakeTimeout(cfg.HandshakeTimeout),
		session.WithKeepalive(cfg.Keepalive),
	}
}

// acceptFirst takes whichever peer arrives first, over TCP or WebSocket,
// and retires the other accept point.
func acceptFirst(ctx context.Context, ln *transport.Listener, ws *transport.WSListener) (transport.Conn, error) {
	if ws == nil {
		return ln.Accept(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type accepted struct {
		conn transport.Conn
		err  error
	}
	results := make(chan accepted, 2)
	go func() {
		c, err := ln.Accept(ctx)
		results <- accepted{c, err}
	}()
	go func() {
		c, err := ws.Accept(ctx)
		results <- accepted{c, err}
	}()

	first := <-results
	cancel()
	_ = ln.Close()
	_ = ws.Close()

	// The loser either failed on cancel or raced us with a real peer.
	if second := <-results; second.err == nil {
		if first.err != nil {
			return second.conn, nil
		}
		_ = second.conn.Close()
	}
	return first.conn, first.err
}

func startOps(ctx context.Context, cfg *config.Config, st *status, ws *transport.WSListener) func() {
	gin.SetMode(gin.ReleaseMode)

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		client, err := middleware.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			// keep serving with the in-memory limiter
			logger.Warn("ops: redis unavailable", "error", err)
		} else {
			rdb = client
		}
	}

	r := httpServer.NewRouter(httpServer.Options{
		Version:      version + " (protocol " + protocol.ProtocolVersion + ")",
		State:        st.String,
		Redis:        rdb,
		WS:           ws,
		WSRateLimit:  cfg.WSRateLimit,
		WSRateWindow: cfg.WSRateWindow,
	})

	srv := &http.Server{
		Addr:    cfg.OpsAddr,
		Handler: r,
	}

	go func() {
		logger.Info("ops: server started", "addr", cfg.OpsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops: listen", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("ops: forced shutdown", "error", err)
		}
		if rdb != nil {
			_ = rdb.Close()
		}
		logger.Info("ops: server exited")
	}
}

// play runs peer and renders its events until the session ends.
func play(ctx context.Context, peer *session.Peer, st *status) error {
	st.set(stateHandshaking)

	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		console.Render(st.track(peer.Events()), os.Stdout)
	}()

	end := peer.Run(ctx)
	<-rendered

	fmt.Printf("Final score: %d - %d after %d rounds\n",
		end.Session.Scores.Of(peer.Role()), end.Session.Scores.Of(peer.Role().Peer()), end.Session.Round)

	switch end.Reason {
	case session.ReasonQuit, session.ReasonPeerDisconnected, session.ReasonCancelled:
		return nil
	default:
		return cli.NewExitError(end.Err.Error(), 1)
	}
}
