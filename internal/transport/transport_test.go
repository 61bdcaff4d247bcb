package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testOptions() Options {
	return Options{
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		MaxLineBytes: 64,
	}
}

// pair returns both ends of a loopback TCP session connection.
func pair(t *testing.T, opts Options) (host, joiner Conn) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ln, err := Listen(ctx, "127.0.0.1:0", opts)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	accepted := make(chan Conn, 1)
	errc := make(chan error, 1)
	go func() {
		c, err := ln.Accept(ctx)
		if err != nil {
			errc <- err
			return
		}
		accepted <- c
	}()

	joiner, err = Dial(ctx, ln.Addr().String(), opts)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	select {
	case host = <-accepted:
	case err := <-errc:
		t.Fatalf("accept: %v", err)
	}

	t.Cleanup(func() {
		host.Close()
		joiner.Close()
	})
	return host, joiner
}

func TestTCPLineExchange(t *testing.T) {
	host, joiner := pair(t, testOptions())

	if err := host.WriteLine([]byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	line, err := joiner.ReadLine()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(line) != `{"type":"ping"}` {
		t.Fatalf("got %q", line)
	}
}

func TestTCPReassemblesPartialReads(t *testing.T) {
	server, client := net.Pipe()
	c := newTCPConn(server, testOptions().withDefaults())
	defer c.Close()

	go func() {
		for _, chunk := range []string{"fir", "st\r\nsec", "ond\nthi", "rd\n"} {
			if _, err := client.Write([]byte(chunk)); err != nil {
				return
			}
		}
		client.Close()
	}()

	for _, want := range []string{"first", "second", "third"} {
		got, err := c.ReadLine()
		if err != nil {
			t.Fatalf("read %q: %v", want, err)
		}
		if string(got) != want {
			t.Fatalf("got %q; want %q", got, want)
		}
	}

	_, err := c.ReadLine()
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after close, got %v", err)
	}
	if KindOf(err) != KindIO {
		t.Fatalf("expected io kind, got %v", KindOf(err))
	}
}

func TestTCPLineTooLong(t *testing.T) {
	host, joiner := pair(t, testOptions())

	if err := host.WriteLine([]byte(strings.Repeat("x", 200))); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := joiner.ReadLine()
	if !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("expected ErrLineTooLong, got %v", err)
	}
}

func TestTCPReadTimeout(t *testing.T) {
	opts := testOptions()
	opts.ReadTimeout = 50 * time.Millisecond
	_, joiner := pair(t, opts)

	_, err := joiner.ReadLine()
	if !IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if KindOf(err) != KindIO {
		t.Fatalf("expected io kind, got %v", KindOf(err))
	}
}

func TestListenPortInUse(t *testing.T) {
	ctx := context.Background()
	ln, err := Listen(ctx, "127.0.0.1:0", testOptions())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	_, err = Listen(ctx, ln.Addr().String(), testOptions())
	if KindOf(err) != KindBind {
		t.Fatalf("expected bind error, got %v", err)
	}
}

func TestDialRefused(t *testing.T) {
	ctx := context.Background()
	ln, err := Listen(ctx, "127.0.0.1:0", testOptions())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	_, err = Dial(ctx, addr, testOptions())
	if KindOf(err) != KindConnect {
		t.Fatalf("expected connect error, got %v", err)
	}
}

func TestAcceptOnlyOnce(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ln, err := Listen(ctx, "127.0.0.1:0", testOptions())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()

	go func() {
		if c, err := Dial(ctx, addr, testOptions()); err == nil {
			defer c.Close()
			<-ctx.Done()
		}
	}()

	c, err := ln.Accept(ctx)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	defer c.Close()

	if _, err := Dial(ctx, addr, testOptions()); KindOf(err) != KindConnect {
		t.Fatalf("second dial should be refused, got %v", err)
	}
	if _, err := ln.Accept(ctx); !errors.Is(err, ErrAlreadyAccepted) {
		t.Fatalf("second accept: expected ErrAlreadyAccepted, got %v", err)
	}
}

func TestAcceptCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ln, err := Listen(ctx, "127.0.0.1:0", testOptions())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	time.AfterFunc(20*time.Millisecond, cancel)
	_, err = ln.Accept(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWebSocketBinding(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ln := NewWSListener(testOptions(), "")
	srv := httptest.NewServer(ln)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	joiner, err := DialWS(ctx, url, testOptions())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer joiner.Close()

	host, err := ln.Accept(ctx)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	defer host.Close()

	if err := joiner.WriteLine([]byte("one\ntwo")); err != nil {
		t.Fatalf("write: %v", err)
	}
	for _, want := range []string{"one", "two"} {
		got, err := host.ReadLine()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(got) != want {
			t.Fatalf("got %q; want %q", got, want)
		}
	}

	// One peer per session.
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second peer status = %d; want 409", resp.StatusCode)
	}

	joiner.Close()
	if _, err := host.ReadLine(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after peer close, got %v", err)
	}
}

func TestWebSocketListenerClose(t *testing.T) {
	ln := NewWSListener(testOptions(), "")
	srv := httptest.NewServer(ln)
	defer srv.Close()

	if err := ln.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := DialWS(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), testOptions())
	if KindOf(err) != KindConnect {
		t.Fatalf("dial after close: %v; want connect error", err)
	}
}

func TestWebSocketListenerStaysClosedAfterFailedUpgrade(t *testing.T) {
	ln := NewWSListener(testOptions(), "")

	plainGet := func() int {
		w := httptest.NewRecorder()
		ln.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
		return w.Code
	}

	// A failed upgrade frees the slot for a real peer.
	for i := 0; i < 2; i++ {
		if code := plainGet(); code != http.StatusBadRequest {
			t.Fatalf("plain GET %d = %d; want 400", i+1, code)
		}
	}
	if ln.Claimed() {
		t.Fatal("failed upgrades left the listener claimed")
	}

	if err := ln.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if code := plainGet(); code != http.StatusConflict {
		t.Fatalf("GET after close = %d; want 409", code)
	}
}

func TestWebSocketCloseDuringUpgrade(t *testing.T) {
	ln := NewWSListener(testOptions(), "")
	entered := make(chan struct{})
	release := make(chan struct{})
	ln.upgrader.CheckOrigin = func(r *http.Request) bool {
		close(entered)
		<-release
		return true
	}
	srv := httptest.NewServer(ln)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dialed := make(chan Conn, 1)
	go func() {
		c, err := DialWS(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), testOptions())
		if err != nil {
			t.Errorf("dial: %v", err)
		}
		dialed <- c
	}()

	<-entered
	if err := ln.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	close(release)

	joiner := <-dialed
	if joiner == nil {
		t.FailNow()
	}
	defer joiner.Close()

	// The late upgrade is dropped, not parked for Accept.
	if _, err := joiner.ReadLine(); err == nil {
		t.Fatal("expected the late connection to be closed")
	}
	actx, acancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer acancel()
	if c, err := ln.Accept(actx); err == nil {
		c.Close()
		t.Fatal("accept returned a connection upgraded after close")
	}
}
