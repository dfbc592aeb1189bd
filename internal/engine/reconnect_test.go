package engine

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/danmuck/csta/internal/testutil/testlog"
	"github.com/danmuck/csta/internal/transport"
)

func TestBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	b := Backoff{InitialDelay: 250 * time.Millisecond, Multiplier: 2.0, MaxDelay: 5 * time.Second}
	cases := map[int]time.Duration{
		0: 250 * time.Millisecond,
		1: 250 * time.Millisecond,
		2: 500 * time.Millisecond,
		3: time.Second,
		6: 5 * time.Second,
	}
	for attempt, want := range cases {
		if got := b.Delay(attempt, nil); got != want {
			t.Fatalf("attempt %d: got %v want %v", attempt, got, want)
		}
	}
	if got := (Backoff{}).Delay(3, nil); got != 0 {
		t.Fatalf("zero backoff delay=%v", got)
	}
}

func TestBackoffDelayJitterRange(t *testing.T) {
	testlog.Start(t)
	b := DefaultBackoff()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		got := b.Delay(1, rng)
		if got < 125*time.Millisecond || got >= 375*time.Millisecond {
			t.Fatalf("jitter out of range: %v", got)
		}
	}
}

func closedPort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	_ = ln.Close()
	return port
}

func TestConnectRetryGivesUpAfterMaxAttempts(t *testing.T) {
	testlog.Start(t)
	e := newTestEngine(t, time.Hour)
	b := Backoff{InitialDelay: 10 * time.Millisecond, Multiplier: 1}
	start := time.Now()
	ok, err := e.ConnectRetry(context.Background(), "127.0.0.1", closedPort(t), transport.ModePlain, b, 3)
	if ok || err != nil {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("expected two backoff waits, took %v", elapsed)
	}
}

func TestConnectRetryStopsOnContext(t *testing.T) {
	testlog.Start(t)
	e := newTestEngine(t, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	b := Backoff{InitialDelay: time.Hour}
	ok, err := e.ConnectRetry(ctx, "127.0.0.1", closedPort(t), transport.ModePlain, b, 0)
	if ok || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
}

func TestConnectRetrySucceeds(t *testing.T) {
	testlog.Start(t)
	e := newTestEngine(t, time.Hour)
	srv, _ := connectPlain(t, e)
	e.Disconnect()

	ok, err := e.ConnectRetry(context.Background(), srv.Host(), srv.Port(), transport.ModePlain, DefaultBackoff(), 2)
	if !ok || err != nil {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	srv.Accept(waitTimeout)
}
